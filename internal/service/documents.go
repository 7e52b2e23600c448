package service

import (
	"encoding/json"
	"regexp"
	"sort"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/store"
	"github.com/nholden/verso/internal/vgraph"
)

// Document is the root record every branch and version hangs off.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentStore persists document records.
type DocumentStore interface {
	Put(d Document) error
	Get(id string) (Document, error)
	List() ([]Document, error)
}

var nameRe = regexp.MustCompile(`^[^\x00-\x1f]+$`)

func validateName(kind, name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 200),
		validation.Match(nameRe),
	)
	if err != nil {
		return domain.Validationf("%s name %q: %v", kind, name, err)
	}
	return nil
}

// CreateDocument bootstraps a document: the record, its root "main"
// branch, and the initial version holding body.
func (s *Store) CreateDocument(name string, body any, createdBy string) (doc Document, main branch.Branch, initial vgraph.Version, err error) {
	defer s.observe("createDocument", time.Now(), &err)

	if err = validateName("document", name); err != nil {
		return Document{}, branch.Branch{}, vgraph.Version{}, err
	}
	normalized, err := s.normalize(body)
	if err != nil {
		return Document{}, branch.Branch{}, vgraph.Version{}, err
	}

	doc = Document{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err = s.docs.Put(doc); err != nil {
		return Document{}, branch.Branch{}, vgraph.Version{}, err
	}

	main, err = s.branches.CreateRoot(doc.ID, "", createdBy)
	if err != nil {
		return Document{}, branch.Branch{}, vgraph.Version{}, err
	}
	initial, err = s.versions.Append(main, normalized, createdBy, vgraph.AppendOptions{
		Action:  history.ActionDocumentCreate,
		Summary: "initial version of " + name,
	})
	if err != nil {
		return Document{}, branch.Branch{}, vgraph.Version{}, err
	}
	main.Head = initial.ID
	s.metrics.VersionsCreatedTotal.Inc()
	return doc, main, initial, nil
}

// GetDocument returns a document record by id.
func (s *Store) GetDocument(id string) (Document, error) {
	return s.docs.Get(id)
}

// ListDocuments returns every document in creation order.
func (s *Store) ListDocuments() ([]Document, error) {
	return s.docs.List()
}

// MemoryDocuments is an in-memory DocumentStore.
type MemoryDocuments struct {
	mu   sync.RWMutex
	byID map[string]Document
}

// NewMemoryDocuments creates an empty memory store.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{byID: make(map[string]Document)}
}

// Put implements DocumentStore.Put.
func (m *MemoryDocuments) Put(d Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[d.ID] = d
	return nil
}

// Get implements DocumentStore.Get.
func (m *MemoryDocuments) Get(id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.byID[id]
	if !ok {
		return Document{}, &domain.NotFoundError{Kind: "document", ID: id}
	}
	return d, nil
}

// List implements DocumentStore.List.
func (m *MemoryDocuments) List() ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.byID))
	for _, d := range m.byID {
		out = append(out, d)
	}
	sortDocuments(out)
	return out, nil
}

// BoltDocuments persists document records in the store database.
type BoltDocuments struct {
	db *store.DB
}

// NewBoltDocuments creates a DocumentStore backed by the documents
// bucket.
func NewBoltDocuments(db *store.DB) *BoltDocuments {
	return &BoltDocuments{db: db}
}

// Put implements DocumentStore.Put.
func (b *BoltDocuments) Put(d Document) error {
	return b.db.PutJSON(store.BucketDocuments, d.ID, d)
}

// Get implements DocumentStore.Get.
func (b *BoltDocuments) Get(id string) (Document, error) {
	var d Document
	found, err := b.db.GetJSON(store.BucketDocuments, id, &d)
	if err != nil {
		return Document{}, err
	}
	if !found {
		return Document{}, &domain.NotFoundError{Kind: "document", ID: id}
	}
	return d, nil
}

// List implements DocumentStore.List.
func (b *BoltDocuments) List() ([]Document, error) {
	var out []Document
	err := b.db.ForEach(store.BucketDocuments, func(_, value []byte) error {
		var d Document
		if err := json.Unmarshal(value, &d); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDocuments(out)
	return out, nil
}

func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}
