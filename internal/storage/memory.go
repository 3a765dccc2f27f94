package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in memory. Data is copied on Put and Get. Used
// for tests and ephemeral indexes.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	locks map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		locks: make(map[string]string),
	}
}

func (m *MemoryStore) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return storageErr("put", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[id] = slices.Clone(data)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("get", id, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[id]
	if !ok {
		return nil, notFound("get", id)
	}
	return slices.Clone(data), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.blobs {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Lock implements Locker within a single MemoryStore.
func (m *MemoryStore) Lock(_ context.Context, name, owner string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, held := m.locks[name]; held && holder != owner {
		return nil, lockConflict(name)
	}
	m.locks[name] = owner
	return &memoryLease{store: m, name: name, owner: owner}, nil
}

type memoryLease struct {
	store *MemoryStore
	name  string
	owner string
}

func (l *memoryLease) Release(context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if l.store.locks[l.name] == l.owner {
		delete(l.store.locks, l.name)
	}
	return nil
}
