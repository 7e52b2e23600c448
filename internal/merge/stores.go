package merge

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/store"
)

// MemoryRequestStore is an in-memory RequestStore for tests and
// ephemeral stores.
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]Request
}

// NewMemoryRequestStore creates an empty memory store.
func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]Request)}
}

// Put implements RequestStore.Put.
func (m *MemoryRequestStore) Put(r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

// Get implements RequestStore.Get.
func (m *MemoryRequestStore) Get(id string) (Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return Request{}, &domain.NotFoundError{Kind: "merge request", ID: id}
	}
	return r, nil
}

// List implements RequestStore.List.
func (m *MemoryRequestStore) List(docID string, f Filter) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Request
	for _, r := range m.requests {
		if r.DocID == docID && f.matches(r) {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

// BoltRequestStore persists merge requests in the store database.
type BoltRequestStore struct {
	db *store.DB
}

// NewBoltRequestStore creates a RequestStore backed by the store's
// merge request bucket.
func NewBoltRequestStore(db *store.DB) *BoltRequestStore {
	return &BoltRequestStore{db: db}
}

// Put implements RequestStore.Put.
func (b *BoltRequestStore) Put(r Request) error {
	return b.db.PutJSON(store.BucketMergeRequests, r.ID, r)
}

// Get implements RequestStore.Get.
func (b *BoltRequestStore) Get(id string) (Request, error) {
	var r Request
	found, err := b.db.GetJSON(store.BucketMergeRequests, id, &r)
	if err != nil {
		return Request{}, err
	}
	if !found {
		return Request{}, &domain.NotFoundError{Kind: "merge request", ID: id}
	}
	return r, nil
}

// List implements RequestStore.List.
func (b *BoltRequestStore) List(docID string, f Filter) ([]Request, error) {
	var out []Request
	err := b.db.ForEach(store.BucketMergeRequests, func(_, value []byte) error {
		var r Request
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		if r.DocID == docID && f.matches(r) {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRequests(out)
	return out, nil
}

func sortRequests(requests []Request) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
