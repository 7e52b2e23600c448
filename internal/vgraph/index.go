package vgraph

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/store"
)

// MemoryIndex is an in-memory Index for tests and ephemeral stores.
type MemoryIndex struct {
	mu       sync.RWMutex
	versions map[string]Version
	children map[string]int // parent id -> child count
}

// NewMemoryIndex creates an empty memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		versions: make(map[string]Version),
		children: make(map[string]int),
	}
}

// Put implements Index.Put.
func (m *MemoryIndex) Put(v Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.versions[v.ID]; exists {
		return fmt.Errorf("version %s already stored", v.ID)
	}
	m.versions[v.ID] = v
	for _, p := range v.Parents {
		m.children[p]++
	}
	return nil
}

// Get implements Index.Get.
func (m *MemoryIndex) Get(id string) (Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.versions[id]
	if !ok {
		return Version{}, &domain.NotFoundError{Kind: "version", ID: id}
	}
	return v, nil
}

// Delete implements Index.Delete.
func (m *MemoryIndex) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.versions[id]
	if !ok {
		return &domain.NotFoundError{Kind: "version", ID: id}
	}
	delete(m.versions, id)
	for _, p := range v.Parents {
		if m.children[p] > 0 {
			m.children[p]--
		}
	}
	return nil
}

// HasChildren implements Index.HasChildren.
func (m *MemoryIndex) HasChildren(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.children[id] > 0, nil
}

// BoltIndex persists version records in the store database.
type BoltIndex struct {
	db *store.DB
}

// NewBoltIndex creates an Index backed by the store's version bucket.
func NewBoltIndex(db *store.DB) *BoltIndex {
	return &BoltIndex{db: db}
}

// Put implements Index.Put.
func (b *BoltIndex) Put(v Version) error {
	exists, err := b.db.Has(store.BucketVersions, v.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("version %s already stored", v.ID)
	}
	return b.db.PutJSON(store.BucketVersions, v.ID, v)
}

// Get implements Index.Get.
func (b *BoltIndex) Get(id string) (Version, error) {
	var v Version
	found, err := b.db.GetJSON(store.BucketVersions, id, &v)
	if err != nil {
		return Version{}, err
	}
	if !found {
		return Version{}, &domain.NotFoundError{Kind: "version", ID: id}
	}
	return v, nil
}

// Delete implements Index.Delete.
func (b *BoltIndex) Delete(id string) error {
	found, err := b.db.Has(store.BucketVersions, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Kind: "version", ID: id}
	}
	return b.db.Delete(store.BucketVersions, id)
}

// HasChildren implements Index.HasChildren by scanning the bucket. The
// operation backs version deletion only, which is rare enough that an
// index is not worth its write amplification.
func (b *BoltIndex) HasChildren(id string) (bool, error) {
	var found bool
	err := b.db.ForEach(store.BucketVersions, func(_, value []byte) error {
		if found {
			return nil
		}
		var v Version
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		for _, p := range v.Parents {
			if p == id {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}
