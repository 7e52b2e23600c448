package comment

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/store"
)

// MemoryStore is an in-memory Store for tests and ephemeral stores.
type MemoryStore struct {
	mu       sync.RWMutex
	comments map[string]Comment
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{comments: make(map[string]Comment)}
}

// Put implements Store.Put.
func (m *MemoryStore) Put(c Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.ID] = c
	return nil
}

// Get implements Store.Get.
func (m *MemoryStore) Get(id string) (Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return Comment{}, &domain.NotFoundError{Kind: "comment", ID: id}
	}
	return c, nil
}

// Delete implements Store.Delete.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return &domain.NotFoundError{Kind: "comment", ID: id}
	}
	delete(m.comments, id)
	return nil
}

// ListByVersion implements Store.ListByVersion.
func (m *MemoryStore) ListByVersion(versionID string) ([]Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Comment
	for _, c := range m.comments {
		if c.VersionID == versionID {
			out = append(out, c)
		}
	}
	sortComments(out)
	return out, nil
}

// BoltStore persists comments in the store database.
type BoltStore struct {
	db *store.DB
}

// NewBoltStore creates a Store backed by the store's comment bucket.
func NewBoltStore(db *store.DB) *BoltStore {
	return &BoltStore{db: db}
}

// Put implements Store.Put.
func (b *BoltStore) Put(c Comment) error {
	return b.db.PutJSON(store.BucketComments, c.ID, c)
}

// Get implements Store.Get.
func (b *BoltStore) Get(id string) (Comment, error) {
	var c Comment
	found, err := b.db.GetJSON(store.BucketComments, id, &c)
	if err != nil {
		return Comment{}, err
	}
	if !found {
		return Comment{}, &domain.NotFoundError{Kind: "comment", ID: id}
	}
	return c, nil
}

// Delete implements Store.Delete.
func (b *BoltStore) Delete(id string) error {
	found, err := b.db.Has(store.BucketComments, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Kind: "comment", ID: id}
	}
	return b.db.Delete(store.BucketComments, id)
}

// ListByVersion implements Store.ListByVersion.
func (b *BoltStore) ListByVersion(versionID string) ([]Comment, error) {
	var out []Comment
	err := b.db.ForEach(store.BucketComments, func(_, value []byte) error {
		var c Comment
		if err := json.Unmarshal(value, &c); err != nil {
			return err
		}
		if c.VersionID == versionID {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortComments(out)
	return out, nil
}

func sortComments(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
