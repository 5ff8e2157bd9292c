package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/ports"
)

type fakeOpener struct {
	session *fakeSession
	err     error
	opened  atomic.Int32
}

func (o *fakeOpener) Open(ctx context.Context) (ports.RegistrySession, error) {
	o.opened.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

// fakeSession serves canned snapshots keyed by date.
type fakeSession struct {
	mu       sync.Mutex
	byDate   map[string]domain.Snapshot
	panicOn  map[string]bool
	delay    time.Duration
	calls    []string
	active   atomic.Int32
	peak     atomic.Int32
	closed   atomic.Int32
	fallback func(date string) domain.Snapshot
}

func (s *fakeSession) FetchSnapshot(ctx context.Context, day time.Time) domain.Snapshot {
	date := day.Format(dateLayout)

	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, date)
	snap, ok := s.byDate[date]
	shouldPanic := s.panicOn[date]
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if shouldPanic {
		panic("upstream exploded")
	}
	if !ok {
		if s.fallback != nil {
			return s.fallback(date)
		}
		return domain.Snapshot{Date: date, Status: domain.SnapshotComplete, Results: []json.RawMessage{}}
	}
	return snap
}

func (s *fakeSession) Close() {
	s.closed.Add(1)
}

func completeSnapshot(date string, numbers ...string) domain.Snapshot {
	results := make([]json.RawMessage, 0, len(numbers))
	for _, n := range numbers {
		results = append(results, json.RawMessage(fmt.Sprintf(
			`{"document_number":%q,"title":"Title %s","publication_date":%q,"agencies":[{"raw_name":"AGENCY"}]}`,
			n, n, date)))
	}
	return domain.Snapshot{Date: date, Count: len(results), Results: results, Status: domain.SnapshotComplete, Pages: 1}
}

// memoryStore is an in-memory SnapshotStore.
type memoryStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	failFor map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: map[string][]byte{}, failFor: map[string]error{}}
}

func (m *memoryStore) Save(ctx context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[snap.Date]; err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.files[snap.Date+".json"] = raw
	return nil
}

func (m *memoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor["*list"]; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sortStrings(names)
	return names, nil
}

func (m *memoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return raw, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// fakeRepository records upserts and can fail selectively.
type fakeRepository struct {
	mu         sync.Mutex
	schemaErr  error
	upsertErr  map[string]error
	upserted   [][]domain.Document
	searchDocs []domain.Document
	searchErr  error
	lastSearch domain.SearchParams
}

func (r *fakeRepository) EnsureSchema(ctx context.Context) error {
	return r.schemaErr
}

func (r *fakeRepository) UpsertDocuments(ctx context.Context, docs []domain.Document) (ports.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		if err := r.upsertErr[d.DocumentNumber]; err != nil {
			return ports.UpsertResult{}, err
		}
	}
	r.upserted = append(r.upserted, docs)
	return ports.UpsertResult{Submitted: len(docs), RowsAffected: int64(len(docs))}, nil
}

func (r *fakeRepository) Search(ctx context.Context, params domain.SearchParams) ([]domain.Document, error) {
	r.lastSearch = params
	return r.searchDocs, r.searchErr
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (n *fakeNotifier) PublishReport(ctx context.Context, report string) error {
	n.messages = append(n.messages, report)
	return n.err
}
