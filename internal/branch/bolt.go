package branch

import (
	"go.etcd.io/bbolt"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/store"
)

// BoltStore persists branches in the store database. Each mutation and
// its history entry commit in a single bbolt transaction.
type BoltStore struct {
	db *store.DB
}

// NewBoltStore creates a Store backed by the store's branch buckets.
func NewBoltStore(db *store.DB) *BoltStore {
	return &BoltStore{db: db}
}

// Create implements Store.Create.
func (s *BoltStore) Create(b Branch, entry history.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(store.BucketBranchNames)
		key := []byte(nameKey(b.DocID, b.Name))
		if names.Get(key) != nil {
			return &domain.BranchExistsError{Name: b.Name}
		}
		if err := names.Put(key, []byte(b.ID)); err != nil {
			return err
		}
		if err := store.TxPutJSON(tx, store.BucketBranches, b.ID, b); err != nil {
			return err
		}
		return history.TxAppend(tx, entry)
	})
}

// Get implements Store.Get.
func (s *BoltStore) Get(id string) (Branch, error) {
	var b Branch
	found, err := s.db.GetJSON(store.BucketBranches, id, &b)
	if err != nil {
		return Branch{}, err
	}
	if !found {
		return Branch{}, &domain.NotFoundError{Kind: "branch", ID: id}
	}
	return b, nil
}

// GetByName implements Store.GetByName.
func (s *BoltStore) GetByName(docID, name string) (Branch, error) {
	var b Branch
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(store.BucketBranchNames).Get([]byte(nameKey(docID, name)))
		if id == nil {
			return &domain.NotFoundError{Kind: "branch", ID: name}
		}
		found, err := store.TxGetJSON(tx, store.BucketBranches, string(id), &b)
		if err != nil {
			return err
		}
		if !found {
			return &domain.NotFoundError{Kind: "branch", ID: string(id)}
		}
		return nil
	})
	return b, err
}

// List implements Store.List.
func (s *BoltStore) List(docID string) ([]Branch, error) {
	var out []Branch
	err := s.db.ForEach(store.BucketBranches, func(_, value []byte) error {
		var b Branch
		if err := decodeBranch(value, &b); err != nil {
			return err
		}
		if b.DocID == docID {
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByCreation(out)
	return out, nil
}

// Update implements Store.Update. The stored head is preserved.
func (s *BoltStore) Update(b Branch, entry history.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var current Branch
		found, err := store.TxGetJSON(tx, store.BucketBranches, b.ID, &current)
		if err != nil {
			return err
		}
		if !found {
			return &domain.NotFoundError{Kind: "branch", ID: b.ID}
		}
		b.Head = current.Head
		if err := store.TxPutJSON(tx, store.BucketBranches, b.ID, b); err != nil {
			return err
		}
		return history.TxAppend(tx, entry)
	})
}

// Delete implements Store.Delete.
func (s *BoltStore) Delete(id string, entry history.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var b Branch
		found, err := store.TxGetJSON(tx, store.BucketBranches, id, &b)
		if err != nil {
			return err
		}
		if !found {
			return &domain.NotFoundError{Kind: "branch", ID: id}
		}
		if err := tx.Bucket(store.BucketBranches).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(store.BucketBranchNames).Delete([]byte(nameKey(b.DocID, b.Name))); err != nil {
			return err
		}
		return history.TxAppend(tx, entry)
	})
}

// CompareAndSwap implements Store.CompareAndSwap. The head check, head
// write, and history append share one transaction.
func (s *BoltStore) CompareAndSwap(branchID, oldHead, newHead string, entry history.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var b Branch
		found, err := store.TxGetJSON(tx, store.BucketBranches, branchID, &b)
		if err != nil {
			return err
		}
		if !found {
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
		if err := store.TxPutJSON(tx, store.BucketBranches, branchID, b); err != nil {
			return err
		}
		return history.TxAppend(tx, entry)
	})
}
