package dashboard

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/ledgerline/ledgersync/internal/reconcile"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/syncer"
)

// SyncStartedData contains sync start information
type SyncStartedData struct {
	Mode  string `json:"mode"`
	Owner string `json:"owner"`
}

// KindReconciledData contains the outcome of reconciling one kind
type KindReconciledData struct {
	Kind      string        `json:"kind"`
	Scope     string        `json:"scope,omitempty"`
	Applied   int           `json:"applied"`
	Skipped   int           `json:"skipped"`
	Unchanged int           `json:"unchanged"`
	Retired   int           `json:"retired"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// SyncCompleteData contains sync completion information
type SyncCompleteData struct {
	Mode     string        `json:"mode"`
	Owner    string        `json:"owner"`
	Parents  int           `json:"parents"`
	Applied  int           `json:"applied"`
	Removed  int           `json:"removed"`
	Errors   []string      `json:"errors,omitempty"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration"`
}

// StatusData is the checkpoint summary served on /status
type StatusData struct {
	AllSynced bool                 `json:"all_synced"`
	Oldest    *time.Time           `json:"oldest,omitempty"`
	Kinds     map[string]time.Time `json:"kinds"`
	Missing   []string             `json:"missing,omitempty"`
}

func newStatusData(st syncer.Status) StatusData {
	out := StatusData{
		AllSynced: st.AllSynced,
		Kinds:     make(map[string]time.Time, len(st.Kinds)),
	}
	if !st.Oldest.IsZero() {
		oldest := st.Oldest
		out.Oldest = &oldest
	}
	for k, at := range st.Kinds {
		out.Kinds[string(k)] = at
	}
	for _, k := range st.Missing {
		out.Missing = append(out.Missing, string(k))
	}
	sort.Strings(out.Missing)
	return out
}

// Handler turns sync progress into dashboard messages. Register it as a
// syncer.Observer.
type Handler struct {
	server *Server
}

var _ syncer.Observer = (*Handler)(nil)

// NewHandler creates a handler broadcasting through server
func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

func (h *Handler) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.server.log.WithError(err).WithField("type", typ).Warn("failed to marshal message data")
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}

// SyncStarted implements syncer.Observer.
func (h *Handler) SyncStarted(mode, owner string) {
	h.send(MessageTypeSyncStarted, SyncStartedData{Mode: mode, Owner: owner})
}

// KindReconciled implements syncer.Observer.
func (h *Handler) KindReconciled(res reconcile.Result) {
	h.send(MessageTypeKindReconciled, KindReconciledData{
		Kind:      string(res.Kind),
		Scope:     res.Scope,
		Applied:   res.Applied,
		Skipped:   res.Skipped,
		Unchanged: res.Unchanged,
		Retired:   res.Retired,
		Errors:    len(res.Errors),
		Duration:  res.Duration,
	})
}

// SyncFinished implements syncer.Observer. A status message follows the
// completion message.
func (h *Handler) SyncFinished(rep syncer.Report) {
	data := SyncCompleteData{
		Mode:     rep.Mode,
		Owner:    rep.Owner,
		Parents:  rep.Parents,
		Applied:  rep.Applied(),
		OK:       rep.OK(),
		Duration: rep.Finished.Sub(rep.Started),
	}
	for _, sw := range rep.Sweeps {
		data.Removed += len(sw.Removed)
	}
	for _, err := range rep.Errors {
		data.Errors = append(data.Errors, err.Error())
	}
	for _, kind := range schema.Kinds() {
		res, ok := rep.Results[kind]
		if !ok {
			continue
		}
		for _, err := range res.Errors {
			data.Errors = append(data.Errors, err.Error())
		}
	}
	h.send(MessageTypeSyncComplete, data)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.server.Broadcast(h.server.statusMessage(ctx))
}
