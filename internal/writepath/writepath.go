// Package writepath is the mutation API used by the CLI and the daemon.
//
// Every mutation is applied to the local store first and its result returned
// to the caller. When the device is online the same mutation is then
// mirrored to the remote store by a background queue that preserves issue
// order. Mirror failures are logged and dropped; the next full sync is the
// only repair.
package writepath

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/blob"
	"github.com/ledgerline/ledgersync/internal/connectivity"
	"github.com/ledgerline/ledgersync/internal/ids"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/session"
	"github.com/ledgerline/ledgersync/internal/store"
)

// Config holds the collaborators of a Service.
type Config struct {
	Logger  logrus.FieldLogger
	IDs     ids.Generator   // defaults to UUIDv7
	Session session.Context // supplies the owner for owner-scoped records
	Blob    blob.Uploader   // required by Attach
	Now     func() time.Time
}

// Service applies mutations locally and mirrors them remotely.
type Service struct {
	local  store.Adapter
	remote store.RemoteAdapter
	conn   connectivity.Provider
	ids    ids.Generator
	sess   session.Context
	blob   blob.Uploader
	now    func() time.Time
	log    logrus.FieldLogger

	// Mirrors run one at a time in the order they were issued.
	wg       sync.WaitGroup
	mu       sync.Mutex
	queue    []mirrorJob
	draining bool
}

// New creates a Service.
func New(local store.Adapter, remote store.RemoteAdapter, conn connectivity.Provider, cfg Config) *Service {
	gen := cfg.IDs
	if gen == nil {
		gen = ids.UUID{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		local:  local,
		remote: remote,
		conn:   conn,
		ids:    gen,
		sess:   cfg.Session,
		blob:   cfg.Blob,
		now:    now,
		log:    logging.For(cfg.Logger, "write"),
	}
}

// Create assigns an id if rec has none, fills the owner of owner-scoped
// records from the session, stores rec locally and mirrors it.
func (s *Service) Create(ctx context.Context, rec schema.Record) (schema.Record, error) {
	spec, ok := schema.Spec(rec.RecordKind())
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", rec.RecordKind())
	}
	if err := s.fillScope(spec, rec); err != nil {
		return nil, err
	}
	if rec.RecordID() == "" {
		rec.SetRecordID(s.ids.NewID())
	}
	rec.Touch(s.now())
	if err := rec.Validate(); err != nil {
		return nil, apperr.InvalidRecord(string(spec.Kind), err)
	}
	if spec.Tier == schema.TierDependent {
		s.checkParent(ctx, rec)
	}

	if err := s.local.Add(ctx, rec); err != nil {
		return nil, err
	}
	s.mirror(ctx, "create", rec, func(ctx context.Context, cp schema.Record) error {
		return s.remote.CreateOrUpdate(ctx, cp)
	})
	return rec, nil
}

// fillScope sets the owner on owner-level records that were built without
// one.
func (s *Service) fillScope(spec schema.KindSpec, rec schema.Record) error {
	switch spec.Tier {
	case schema.TierProfile:
		if rec.RecordID() != "" {
			return nil
		}
	case schema.TierParent, schema.TierOwnerScoped:
		if rec.ScopeID() != "" {
			return nil
		}
	default:
		return nil
	}
	owner, err := session.Require(s.sess)
	if err != nil {
		return err
	}
	rec.SetScopeID(owner)
	return nil
}

// checkParent warns when a dependent points at a transaction the local store
// does not hold. The write still goes ahead.
func (s *Service) checkParent(ctx context.Context, rec schema.Record) {
	_, err := s.local.Get(ctx, schema.KindTransaction, rec.ScopeID())
	if err == nil {
		return
	}
	if errors.Is(err, apperr.ErrNotFound) {
		err = apperr.ScopeMismatch(string(rec.RecordKind()), rec.RecordID(), rec.ScopeID())
	}
	s.log.WithError(err).WithFields(logrus.Fields{
		"kind":   rec.RecordKind(),
		"id":     rec.RecordID(),
		"parent": rec.ScopeID(),
	}).Warn("parent not found locally")
}

// Update stores rec locally and mirrors it. A record the remote has never
// seen is created there.
func (s *Service) Update(ctx context.Context, rec schema.Record) error {
	rec.Touch(s.now())
	if err := rec.Validate(); err != nil {
		return apperr.InvalidRecord(string(rec.RecordKind()), err)
	}
	if err := s.local.Update(ctx, rec); err != nil {
		return err
	}
	s.mirror(ctx, "update", rec, func(ctx context.Context, cp schema.Record) error {
		err := s.remote.Update(ctx, cp)
		if errors.Is(err, apperr.ErrNotFound) {
			return s.remote.CreateOrUpdate(ctx, cp)
		}
		return err
	})
	return nil
}

// SetStatus changes the status of a transaction.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*schema.Transaction, error) {
	if !schema.ValidStatus(status) {
		return nil, apperr.InvalidRecord(string(schema.KindTransaction), fmt.Errorf("invalid status %q", status))
	}
	rec, err := s.local.Get(ctx, schema.KindTransaction, id)
	if err != nil {
		return nil, err
	}
	txn := rec.(*schema.Transaction)
	txn.Status = status
	if err := s.Update(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Delete removes a record. Deleting a transaction first deletes every
// dependent in its scope, locally and then remotely.
func (s *Service) Delete(ctx context.Context, kind schema.Kind, id string) error {
	spec, ok := schema.Spec(kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	if _, err := s.local.Get(ctx, kind, id); err != nil {
		return err
	}

	cascade := spec.Tier == schema.TierParent
	if cascade {
		if err := deleteDependents(ctx, s.local, id); err != nil {
			return err
		}
	}
	if err := s.local.Delete(ctx, kind, id); err != nil {
		return err
	}

	if !s.conn.Online() {
		s.log.WithFields(logrus.Fields{"kind": kind, "id": id}).Debug("offline, delete not mirrored")
		return nil
	}
	s.goMirror(ctx, "delete", kind, id, func(ctx context.Context) error {
		if cascade {
			if err := deleteDependents(ctx, s.remote, id); err != nil {
				return err
			}
		}
		return ignoreNotFound(s.remote.Delete(ctx, kind, id))
	})
	return nil
}

// deleteDependents deletes every dependent of parent held by st.
func deleteDependents(ctx context.Context, st store.Adapter, parent string) error {
	for _, kind := range schema.DependentKinds() {
		recs, err := st.GetAll(ctx, kind, parent)
		if err != nil {
			return fmt.Errorf("failed to list %s of %s: %w", kind, parent, err)
		}
		for _, rec := range recs {
			if err := ignoreNotFound(st.Delete(ctx, kind, rec.RecordID())); err != nil {
				return fmt.Errorf("failed to delete %s %s: %w", kind, rec.RecordID(), err)
			}
		}
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}

// Attach uploads content and creates the attachment record pointing at it.
// The uploader decides where content lands when the backend is unreachable;
// with blob.Fallback the record gets a local file URI.
func (s *Service) Attach(ctx context.Context, att *schema.Attachment, content io.Reader) (*schema.Attachment, error) {
	if s.blob == nil {
		return nil, errors.New("no blob uploader configured")
	}
	if att.TransactionID == "" {
		return nil, apperr.InvalidRecord(string(schema.KindAttachment), errors.New("transaction_id is required"))
	}
	if att.ID == "" {
		att.ID = s.ids.NewID()
	}
	cr := &countingReader{r: content}
	key := path.Join(att.TransactionID, att.ID, path.Base(att.FileName))
	uri, err := s.blob.Upload(ctx, key, cr, att.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", att.FileName, err)
	}
	att.URI = uri
	att.Size = cr.n

	if _, err := s.Create(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Get reads a record from the local store.
func (s *Service) Get(ctx context.Context, kind schema.Kind, id string) (schema.Record, error) {
	return s.local.Get(ctx, kind, id)
}

// List reads every local record of kind in scope. An empty scope on an
// owner-level kind means the session owner.
func (s *Service) List(ctx context.Context, kind schema.Kind, scope string) ([]schema.Record, error) {
	spec, ok := schema.Spec(kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if scope == "" && spec.Tier != schema.TierDependent {
		owner, err := session.Require(s.sess)
		if err != nil {
			return nil, err
		}
		scope = owner
	}
	return s.local.GetAll(ctx, kind, scope)
}

// Wait blocks until every queued mirror has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// mirror copies rec and runs fn against the copy in the background when
// the device is online.
func (s *Service) mirror(ctx context.Context, op string, rec schema.Record, fn func(context.Context, schema.Record) error) {
	if !s.conn.Online() {
		s.log.WithFields(logrus.Fields{"kind": rec.RecordKind(), "id": rec.RecordID()}).Debugf("offline, %s not mirrored", op)
		return
	}
	cp, err := schema.Clone(rec)
	if err != nil {
		s.log.WithError(err).WithField("id", rec.RecordID()).Warn("mirror skipped")
		return
	}
	s.goMirror(ctx, op, rec.RecordKind(), rec.RecordID(), func(ctx context.Context) error {
		return fn(ctx, cp)
	})
}

// goMirror queues fn behind every mirror issued before it. A single drainer
// runs the queue in order, so the remote sees mutations in issuance order.
func (s *Service) goMirror(ctx context.Context, op string, kind schema.Kind, id string, fn func(context.Context) error) {
	// The caller's deadline ends with the local write; the mirror outlives it.
	j := mirrorJob{ctx: context.WithoutCancel(ctx), op: op, kind: kind, id: id, fn: fn}
	s.wg.Add(1)
	s.mu.Lock()
	s.queue = append(s.queue, j)
	if !s.draining {
		s.draining = true
		go s.drain()
	}
	s.mu.Unlock()
}

type mirrorJob struct {
	ctx  context.Context
	op   string
	kind schema.Kind
	id   string
	fn   func(context.Context) error
}

// drain runs queued mirrors one at a time until the queue is empty.
func (s *Service) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue[0] = mirrorJob{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(j)
		s.wg.Done()
	}
}

func (s *Service) run(j mirrorJob) {
	fields := logrus.Fields{"op": j.op, "kind": j.kind, "id": j.id}
	if err := j.fn(j.ctx); err != nil {
		s.log.WithError(err).WithFields(fields).Warn("remote mirror failed")
		return
	}
	s.log.WithFields(fields).Debug("mirrored")
}
