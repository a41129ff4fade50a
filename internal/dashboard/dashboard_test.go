package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/reconcile"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/syncer"
)

var synced = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedStatus(context.Context) (syncer.Status, error) {
	return syncer.Status{
		AllSynced: false,
		Oldest:    synced,
		Kinds:     map[schema.Kind]time.Time{schema.KindTransaction: synced},
		Missing:   []schema.Kind{schema.KindPayment},
	}, nil
}

func startServer(t *testing.T, status StatusFunc) *Server {
	t.Helper()
	server := NewServer(&Config{
		Host:   "127.0.0.1",
		Port:   0,
		Status: status,
		Logger: logging.Discard(),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, server *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Logger: logging.Discard()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocket_WelcomeCarriesStatus(t *testing.T) {
	server := startServer(t, fixedStatus)
	conn, ctx := dial(t, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected welcome message type %s, got %s", MessageTypeStatus, msg.Type)
	}
	var st StatusData
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if st.AllSynced || len(st.Missing) != 1 || st.Missing[0] != "payment" {
		t.Errorf("Unexpected status: %+v", st)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestHandler_BroadcastsSyncLifecycle(t *testing.T) {
	server := startServer(t, fixedStatus)
	conn, ctx := dial(t, server)
	readMessage(t, ctx, conn) // welcome

	h := NewHandler(server)
	h.SyncStarted(syncer.ModeFull, "o-1")
	h.KindReconciled(reconcile.Result{Kind: schema.KindNote, Scope: "t-1", Applied: 2})
	h.SyncFinished(syncer.Report{
		Mode:     syncer.ModeFull,
		Owner:    "o-1",
		Started:  synced,
		Finished: synced.Add(time.Second),
		Results: map[schema.Kind]reconcile.Result{
			schema.KindNote: {Kind: schema.KindNote, Applied: 2, Errors: []error{errors.New("boom")}},
		},
	})

	want := []MessageType{
		MessageTypeSyncStarted,
		MessageTypeKindReconciled,
		MessageTypeSyncComplete,
		MessageTypeStatus,
	}
	var complete SyncCompleteData
	for i, typ := range want {
		msg := readMessage(t, ctx, conn)
		if msg.Type != typ {
			t.Fatalf("message %d: expected %s, got %s", i, typ, msg.Type)
		}
		if typ == MessageTypeSyncComplete {
			if err := json.Unmarshal(msg.Data, &complete); err != nil {
				t.Fatalf("Failed to unmarshal completion: %v", err)
			}
		}
	}
	if complete.Applied != 2 || complete.OK || len(complete.Errors) != 1 {
		t.Errorf("Unexpected completion: %+v", complete)
	}
	if complete.Duration != time.Second {
		t.Errorf("Expected duration 1s, got %v", complete.Duration)
	}
}

func TestHTTPEndpoints(t *testing.T) {
	server := startServer(t, fixedStatus)
	base := "http://" + server.GetAddr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("Unexpected health: %v", health)
	}

	resp, err = http.Get(base + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	var st StatusData
	_ = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.Oldest == nil || !st.Oldest.Equal(synced) {
		t.Errorf("Unexpected oldest checkpoint: %v", st.Oldest)
	}
	if _, ok := st.Kinds["transaction"]; !ok {
		t.Errorf("Expected transaction checkpoint, got %v", st.Kinds)
	}
}

func TestStatusEndpoint_Unavailable(t *testing.T) {
	server := startServer(t, nil)
	resp, err := http.Get("http://" + server.GetAddr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestObserverWiring(t *testing.T) {
	var _ syncer.Observer = NewHandler(NewServer(nil))
}
