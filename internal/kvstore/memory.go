package kvstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store implementation used in tests.
type MemoryStore struct {
	name string
	mu   sync.RWMutex
	data map[string][]byte

	// FailPut, when set, is returned by every Put call.
	FailPut error
	// FailGet, when set, is returned by every Get call.
	FailGet error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name: name,
		data: make(map[string][]byte),
	}
}

// Name returns the store's name.
func (s *MemoryStore) Name() string {
	return s.name
}

// Get returns the value for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.FailGet != nil {
		return nil, false, s.FailGet
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, true, nil
}

// Put stores value under key.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if s.FailPut != nil {
		return s.FailPut
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

// Keys returns all keys in sorted order.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored values.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// MemoryOpener is an Opener over a fixed set of in-memory stores.
type MemoryOpener struct {
	mu     sync.Mutex
	stores map[string]Store
}

// NewMemoryOpener creates an empty MemoryOpener.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{stores: make(map[string]Store)}
}

// Open returns the named store, creating an empty MemoryStore on first use.
func (o *MemoryOpener) Open(name string) Store {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.stores[name]; ok {
		return s
	}
	s := NewMemoryStore(name)
	o.stores[name] = s
	return s
}

// Add registers an existing store under its name, replacing any previous one.
func (o *MemoryOpener) Add(s Store) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stores[s.Name()] = s
}
