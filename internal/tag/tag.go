// Package tag implements immutable named references to versions.
// Tags are create-only: deleting a tag removes the pointer, never the
// version it names.
package tag

import (
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/history"
)

// Tag is an immutable named pointer to a version. Names are unique
// within the owning document.
type Tag struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	VersionID string    `json:"version_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"` // e.g. "release", "review", "baseline"
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists tag records. Create fails with ValidationError on a
// duplicate name without mutating state.
type Store interface {
	Create(t Tag, entry history.Entry) error
	Get(id string) (Tag, error)
	List(docID string) ([]Tag, error)
	ListByVersion(versionID string) ([]Tag, error)
	Delete(id string, entry history.Entry) error
}

// Service wraps a Store with entry construction.
type Service struct {
	store Store
}

// NewService creates a tag service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create tags a version with a document-unique name.
func (s *Service) Create(docID, versionID, name, tagType, createdBy string) (Tag, error) {
	t := Tag{
		ID:        uuid.NewString(),
		DocID:     docID,
		VersionID: versionID,
		Name:      name,
		Type:      tagType,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	entry := history.Entry{
		ID:        uuid.NewString(),
		DocID:     docID,
		VersionID: versionID,
		Actor:     createdBy,
		Action:    history.ActionTagCreate,
		Summary:   "tag " + name,
		At:        t.CreatedAt,
	}
	if err := s.store.Create(t, entry); err != nil {
		return Tag{}, err
	}
	return t, nil
}

// Get returns a tag by id.
func (s *Service) Get(id string) (Tag, error) { return s.store.Get(id) }

// List returns a document's tags in creation order.
func (s *Service) List(docID string) ([]Tag, error) { return s.store.List(docID) }

// ListByVersion returns the tags naming a version.
func (s *Service) ListByVersion(versionID string) ([]Tag, error) {
	return s.store.ListByVersion(versionID)
}

// Delete removes the tag pointer.
func (s *Service) Delete(id, actor string) error {
	t, err := s.store.Get(id)
	if err != nil {
		return err
	}
	entry := history.Entry{
		ID:        uuid.NewString(),
		DocID:     t.DocID,
		VersionID: t.VersionID,
		Actor:     actor,
		Action:    history.ActionTagDelete,
		Summary:   "removed tag " + t.Name,
		At:        time.Now().UTC(),
	}
	return s.store.Delete(id, entry)
}
