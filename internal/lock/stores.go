package lock

import (
	"encoding/json"
	"sync"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/store"
)

// MemoryStore is an in-memory Store for tests and ephemeral stores.
type MemoryStore struct {
	mu    sync.RWMutex
	locks map[string]Lock
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]Lock)}
}

// Put implements Store.Put.
func (m *MemoryStore) Put(l Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[l.ID] = l
	return nil
}

// Get implements Store.Get.
func (m *MemoryStore) Get(id string) (Lock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locks[id]
	if !ok {
		return Lock{}, &domain.NotFoundError{Kind: "lock", ID: id}
	}
	return l, nil
}

// Delete implements Store.Delete.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locks[id]; !ok {
		return &domain.NotFoundError{Kind: "lock", ID: id}
	}
	delete(m.locks, id)
	return nil
}

// ListByVersion implements Store.ListByVersion.
func (m *MemoryStore) ListByVersion(versionID string) ([]Lock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Lock
	for _, l := range m.locks {
		if l.VersionID == versionID {
			out = append(out, l)
		}
	}
	return out, nil
}

// BoltStore persists locks in the store database.
type BoltStore struct {
	db *store.DB
}

// NewBoltStore creates a Store backed by the store's lock bucket.
func NewBoltStore(db *store.DB) *BoltStore {
	return &BoltStore{db: db}
}

// Put implements Store.Put.
func (b *BoltStore) Put(l Lock) error {
	return b.db.PutJSON(store.BucketLocks, l.ID, l)
}

// Get implements Store.Get.
func (b *BoltStore) Get(id string) (Lock, error) {
	var l Lock
	found, err := b.db.GetJSON(store.BucketLocks, id, &l)
	if err != nil {
		return Lock{}, err
	}
	if !found {
		return Lock{}, &domain.NotFoundError{Kind: "lock", ID: id}
	}
	return l, nil
}

// Delete implements Store.Delete.
func (b *BoltStore) Delete(id string) error {
	found, err := b.db.Has(store.BucketLocks, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Kind: "lock", ID: id}
	}
	return b.db.Delete(store.BucketLocks, id)
}

// ListByVersion implements Store.ListByVersion.
func (b *BoltStore) ListByVersion(versionID string) ([]Lock, error) {
	var out []Lock
	err := b.db.ForEach(store.BucketLocks, func(_, value []byte) error {
		var l Lock
		if err := json.Unmarshal(value, &l); err != nil {
			return err
		}
		if l.VersionID == versionID {
			out = append(out, l)
		}
		return nil
	})
	return out, err
}
