package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/moon/internal/store"
	"github.com/roach88/moon/internal/value"
)

// MemStore is an in-memory engine.Storage for tests.
//
// It reproduces the sqlite store's observable behavior: Get on a missing
// collection returns store.ErrCollectionNotFound, Delete and Drop of
// missing data succeed, listings are sorted.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemStore struct {
	mu          sync.Mutex
	collections map[string]map[string]value.Value
	fail        error
	calls       []string
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{collections: make(map[string]map[string]value.Value)}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls returns the operations performed so far, e.g. "get users/1".
func (m *MemStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MemStore) begin(op string) error {
	m.calls = append(m.calls, op)
	return m.fail
}

func checkName(collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: %q", store.ErrInvalidCollection, collection)
	}
	return nil
}

func (m *MemStore) Upsert(_ context.Context, collection, id string, v value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("upsert " + collection + "/" + id); err != nil {
		return err
	}
	if err := checkName(collection); err != nil {
		return err
	}
	records, ok := m.collections[collection]
	if !ok {
		records = make(map[string]value.Value)
		m.collections[collection] = records
	}
	records[id] = v
	return nil
}

func (m *MemStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete " + collection + "/" + id); err != nil {
		return err
	}
	if err := checkName(collection); err != nil {
		return err
	}
	delete(m.collections[collection], id)
	return nil
}

func (m *MemStore) Drop(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("drop " + collection); err != nil {
		return err
	}
	if err := checkName(collection); err != nil {
		return err
	}
	delete(m.collections, collection)
	return nil
}

func (m *MemStore) Collections(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("collections"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.collections))
	for n := range m.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemStore) Get(_ context.Context, collection, id string) (value.Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get " + collection + "/" + id); err != nil {
		return nil, false, err
	}
	if err := checkName(collection); err != nil {
		return nil, false, err
	}
	records, ok := m.collections[collection]
	if !ok {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, store.ErrCollectionNotFound)
	}
	v, found := records[id]
	return v, found, nil
}

func (m *MemStore) All(_ context.Context, collection string) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("all " + collection); err != nil {
		return nil, err
	}
	if err := checkName(collection); err != nil {
		return nil, err
	}
	records := m.collections[collection]
	out := make([]store.Record, 0, len(records))
	for id, v := range records {
		out = append(out, store.Record{ID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
