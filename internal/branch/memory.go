package branch

import (
	"sync"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

// MemoryStore is an in-memory Store used by tests and ephemeral
// embedders. One mutex covers both the branch table and the history
// log, which gives the same commit-both-or-neither guarantee the bbolt
// transaction provides.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]Branch
	byName   map[string]string // docID + "\x00" + name -> id
	order    []string
	log      history.Log
}

// NewMemoryStore creates an empty memory store appending history to log.
func NewMemoryStore(log history.Log) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Branch),
		byName: make(map[string]string),
		log:    log,
	}
}

func nameKey(docID, name string) string { return docID + "\x00" + name }

// Create implements Store.Create.
func (s *MemoryStore) Create(b Branch, entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(b.DocID, b.Name)
	if _, exists := s.byName[key]; exists {
		return &domain.BranchExistsError{Name: b.Name}
	}
	s.byID[b.ID] = b
	s.byName[key] = b.ID
	s.order = append(s.order, b.ID)
	return s.log.Append(entry)
}

// Get implements Store.Get.
func (s *MemoryStore) Get(id string) (Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return Branch{}, &domain.NotFoundError{Kind: "branch", ID: id}
	}
	return b, nil
}

// GetByName implements Store.GetByName.
func (s *MemoryStore) GetByName(docID, name string) (Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[nameKey(docID, name)]
	if !ok {
		return Branch{}, &domain.NotFoundError{Kind: "branch", ID: name}
	}
	return s.byID[id], nil
}

// List implements Store.List.
func (s *MemoryStore) List(docID string) ([]Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Branch
	for _, id := range s.order {
		if b, ok := s.byID[id]; ok && b.DocID == docID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Update implements Store.Update. The stored head is preserved.
func (s *MemoryStore) Update(b Branch, entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[b.ID]
	if !ok {
		return &domain.NotFoundError{Kind: "branch", ID: b.ID}
	}
	b.Head = current.Head
	s.byID[b.ID] = b
	return s.log.Append(entry)
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(id string, entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return &domain.NotFoundError{Kind: "branch", ID: id}
	}
	delete(s.byID, id)
	delete(s.byName, nameKey(b.DocID, b.Name))
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.log.Append(entry)
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *MemoryStore) CompareAndSwap(branchID, oldHead, newHead string, entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[branchID]
	if !ok {
		return &domain.NotFoundError{Kind: "branch", ID: branchID}
	}
	if b.Head != oldHead {
		return &domain.ConcurrentModificationError{
			BranchID: branchID,
			Expected: oldHead,
			Actual:   b.Head,
		}
	}
	b.Head = newHead
	s.byID[branchID] = b
	return s.log.Append(entry)
}
