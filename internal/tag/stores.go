package tag

import (
	"encoding/json"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/store"
)

func nameKey(docID, name string) string { return docID + "\x00" + name }

// MemoryStore is an in-memory Store for tests and ephemeral stores.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]Tag
	byName map[string]string
	log    history.Log
}

// NewMemoryStore creates an empty memory store appending history to log.
func NewMemoryStore(log history.Log) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Tag),
		byName: make(map[string]string),
		log:    log,
	}
}

// Create implements Store.Create.
func (m *MemoryStore) Create(t Tag, entry history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := nameKey(t.DocID, t.Name)
	if _, exists := m.byName[key]; exists {
		return domain.Validationf("tag %q already exists", t.Name)
	}
	m.byID[t.ID] = t
	m.byName[key] = t.ID
	return m.log.Append(entry)
}

// Get implements Store.Get.
func (m *MemoryStore) Get(id string) (Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return Tag{}, &domain.NotFoundError{Kind: "tag", ID: id}
	}
	return t, nil
}

// List implements Store.List.
func (m *MemoryStore) List(docID string) ([]Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Tag
	for _, t := range m.byID {
		if t.DocID == docID {
			out = append(out, t)
		}
	}
	sortTags(out)
	return out, nil
}

// ListByVersion implements Store.ListByVersion.
func (m *MemoryStore) ListByVersion(versionID string) ([]Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Tag
	for _, t := range m.byID {
		if t.VersionID == versionID {
			out = append(out, t)
		}
	}
	sortTags(out)
	return out, nil
}

// Delete implements Store.Delete.
func (m *MemoryStore) Delete(id string, entry history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return &domain.NotFoundError{Kind: "tag", ID: id}
	}
	delete(m.byID, id)
	delete(m.byName, nameKey(t.DocID, t.Name))
	return m.log.Append(entry)
}

// BoltStore persists tags in the store database.
type BoltStore struct {
	db *store.DB
}

// NewBoltStore creates a Store backed by the store's tag buckets.
func NewBoltStore(db *store.DB) *BoltStore {
	return &BoltStore{db: db}
}

// Create implements Store.Create.
func (b *BoltStore) Create(t Tag, entry history.Entry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(store.BucketTagNames)
		key := []byte(nameKey(t.DocID, t.Name))
		if names.Get(key) != nil {
			return domain.Validationf("tag %q already exists", t.Name)
		}
		if err := names.Put(key, []byte(t.ID)); err != nil {
			return err
		}
		if err := store.TxPutJSON(tx, store.BucketTags, t.ID, t); err != nil {
			return err
		}
		return history.TxAppend(tx, entry)
	})
}

// Get implements Store.Get.
func (b *BoltStore) Get(id string) (Tag, error) {
	var t Tag
	found, err := b.db.GetJSON(store.BucketTags, id, &t)
	if err != nil {
		return Tag{}, err
	}
	if !found {
		return Tag{}, &domain.NotFoundError{Kind: "tag", ID: id}
	}
	return t, nil
}

// List implements Store.List.
func (b *BoltStore) List(docID string) ([]Tag, error) {
	return b.scan(func(t Tag) bool { return t.DocID == docID })
}

// ListByVersion implements Store.ListByVersion.
func (b *BoltStore) ListByVersion(versionID string) ([]Tag, error) {
	return b.scan(func(t Tag) bool { return t.VersionID == versionID })
}

// Delete implements Store.Delete.
func (b *BoltStore) Delete(id string, entry history.Entry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		var t Tag
		found, err := store.TxGetJSON(tx, store.BucketTags, id, &t)
		if err != nil {
			return err
		}
		if !found {
			return &domain.NotFoundError{Kind: "tag", ID: id}
		}
		if err := tx.Bucket(store.BucketTags).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(store.BucketTagNames).Delete([]byte(nameKey(t.DocID, t.Name))); err != nil {
			return err
		}
		return history.TxAppend(tx, entry)
	})
}

func (b *BoltStore) scan(keep func(Tag) bool) ([]Tag, error) {
	var out []Tag
	err := b.db.ForEach(store.BucketTags, func(_, value []byte) error {
		var t Tag
		if err := json.Unmarshal(value, &t); err != nil {
			return err
		}
		if keep(t) {
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTags(out)
	return out, nil
}

func sortTags(tags []Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].CreatedAt.Before(tags[j].CreatedAt)
	})
}
