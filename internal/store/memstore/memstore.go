// Package memstore provides an in-memory store that satisfies both the local
// and the remote adapter contracts. It records every call and can inject
// failures, which makes it the double of choice for reconciler and write
// path tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
)

// Operation names used for call counting and failure injection.
const (
	OpGet            = "get"
	OpGetAll         = "get_all"
	OpAdd            = "add"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpCreateOrUpdate = "create_or_update"
	OpPing           = "ping"
)

// FailFunc decides whether a call fails. Returning nil lets it proceed.
type FailFunc func(op string, kind schema.Kind, id string) error

// Store is a mutex-guarded map of kind to id to record.
type Store struct {
	mu          sync.Mutex
	remote      bool
	records     map[schema.Kind]map[string]schema.Record
	checkpoints map[schema.Kind]time.Time
	calls       map[string]int
	fail        FailFunc
}

var (
	_ store.LocalAdapter  = (*Store)(nil)
	_ store.RemoteAdapter = (*Store)(nil)
)

// NewLocal returns a store that reports id collisions as AlreadyExists.
func NewLocal() *Store {
	return newStore(false)
}

// NewRemote returns a store that reports id collisions as Conflict and
// wraps injected failures as RemoteUnavailable.
func NewRemote() *Store {
	return newStore(true)
}

func newStore(remote bool) *Store {
	return &Store{
		remote:      remote,
		records:     make(map[schema.Kind]map[string]schema.Record),
		checkpoints: make(map[schema.Kind]time.Time),
		calls:       make(map[string]int),
	}
}

// FailWith installs a failure injector. Pass nil to clear it.
func (s *Store) FailWith(f FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = f
}

// FailAll makes every call fail with err.
func (s *Store) FailAll(err error) {
	s.FailWith(func(string, schema.Kind, string) error { return err })
}

// Calls returns the number of calls made for op.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// ResetCalls zeroes the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// Len returns the number of records of kind.
func (s *Store) Len(kind schema.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[kind])
}

// Seed inserts records directly, bypassing counters and failure injection.
func (s *Store) Seed(records ...schema.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.put(rec)
	}
}

// begin counts the call and evaluates the failure injector. Must hold mu.
func (s *Store) begin(op string, kind schema.Kind, id string) error {
	s.calls[op]++
	if s.fail == nil {
		return nil
	}
	err := s.fail(op, kind, id)
	if err == nil {
		return nil
	}
	if s.remote && apperr.CodeOf(err) == "" {
		return apperr.RemoteUnavailable(fmt.Sprintf("%s %s %s", op, kind, id), err)
	}
	return err
}

func (s *Store) put(rec schema.Record) {
	kind := rec.RecordKind()
	if s.records[kind] == nil {
		s.records[kind] = make(map[string]schema.Record)
	}
	s.records[kind][rec.RecordID()] = clone(rec)
}

func clone(rec schema.Record) schema.Record {
	c, err := schema.Clone(rec)
	if err != nil {
		panic(fmt.Sprintf("memstore: clone %s %s: %v", rec.RecordKind(), rec.RecordID(), err))
	}
	return c
}

func (s *Store) Get(_ context.Context, kind schema.Kind, id string) (schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpGet, kind, id); err != nil {
		return nil, err
	}
	rec, ok := s.records[kind][id]
	if !ok {
		return nil, apperr.NotFound(string(kind), id)
	}
	return clone(rec), nil
}

func (s *Store) GetAll(_ context.Context, kind schema.Kind, scope string) ([]schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpGetAll, kind, ""); err != nil {
		return nil, err
	}
	var out []schema.Record
	for _, rec := range s.records[kind] {
		if scope == "" || rec.ScopeID() == scope {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out, nil
}

func (s *Store) Add(_ context.Context, rec schema.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(OpAdd, rec)
}

func (s *Store) add(op string, rec schema.Record) error {
	kind, id := rec.RecordKind(), rec.RecordID()
	if err := s.begin(op, kind, id); err != nil {
		return err
	}
	if id == "" {
		return apperr.InvalidRecord(string(kind), errors.New("id is required"))
	}
	if _, exists := s.records[kind][id]; exists {
		if s.remote {
			return apperr.Conflict(string(kind), id, nil)
		}
		return apperr.AlreadyExists(string(kind), id)
	}
	s.put(rec)
	return nil
}

func (s *Store) Update(_ context.Context, rec schema.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, id := rec.RecordKind(), rec.RecordID()
	if err := s.begin(OpUpdate, kind, id); err != nil {
		return err
	}
	if _, exists := s.records[kind][id]; !exists {
		return apperr.NotFound(string(kind), id)
	}
	s.put(rec)
	return nil
}

func (s *Store) Delete(_ context.Context, kind schema.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDelete, kind, id); err != nil {
		return err
	}
	if _, exists := s.records[kind][id]; !exists {
		return apperr.NotFound(string(kind), id)
	}
	delete(s.records[kind], id)
	return nil
}

func (s *Store) CreateOrUpdate(_ context.Context, rec schema.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, id := rec.RecordKind(), rec.RecordID()
	if err := s.begin(OpCreateOrUpdate, kind, id); err != nil {
		return err
	}
	if id == "" {
		return apperr.InvalidRecord(string(kind), errors.New("id is required"))
	}
	s.put(rec)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(OpPing, "", "")
}

func (s *Store) Checkpoint(_ context.Context, kind schema.Kind) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.checkpoints[kind]
	return at, ok, nil
}

func (s *Store) SetCheckpoint(_ context.Context, kind schema.Kind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[kind] = at
	return nil
}

func (s *Store) Checkpoints(_ context.Context) (map[schema.Kind]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[schema.Kind]time.Time, len(s.checkpoints))
	for k, v := range s.checkpoints {
		out[k] = v
	}
	return out, nil
}
