// Package comment implements threaded review comments on versions,
// optionally anchored to a structural path within the document.
package comment

import (
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

// Comment is one review note. ParentID threads replies; Path anchors
// the comment to a location in the document.
type Comment struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	VersionID string    `json:"version_id"`
	Path      string    `json:"path,omitempty"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	ParentID  string    `json:"parent_id,omitempty"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists comment records.
type Store interface {
	Put(c Comment) error
	Get(id string) (Comment, error)
	Delete(id string) error
	ListByVersion(versionID string) ([]Comment, error)
}

// Service enforces comment semantics over a Store.
type Service struct {
	store Store
	log   history.Log
}

// NewService creates a comment service.
func NewService(store Store, log history.Log) *Service {
	return &Service{store: store, log: log}
}

// Create adds a comment. A reply must reference an existing comment on
// the same version.
func (s *Service) Create(docID, versionID, path, text, author, parentID string) (Comment, error) {
	if text == "" {
		return Comment{}, domain.Validationf("comment text is required")
	}
	if parentID != "" {
		parent, err := s.store.Get(parentID)
		if err != nil {
			return Comment{}, err
		}
		if parent.VersionID != versionID {
			return Comment{}, domain.Validationf("reply must target a comment on the same version")
		}
	}
	now := time.Now().UTC()
	c := Comment{
		ID:        uuid.NewString(),
		DocID:     docID,
		VersionID: versionID,
		Path:      path,
		Text:      text,
		Author:    author,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(c); err != nil {
		return Comment{}, err
	}
	err := s.log.Append(history.Entry{
		ID:        uuid.NewString(),
		DocID:     docID,
		VersionID: versionID,
		Actor:     author,
		Action:    history.ActionCommentCreate,
		Summary:   path,
		At:        now,
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// Update replaces a comment's text.
func (s *Service) Update(id, text string) (Comment, error) {
	if text == "" {
		return Comment{}, domain.Validationf("comment text is required")
	}
	c, err := s.store.Get(id)
	if err != nil {
		return Comment{}, err
	}
	c.Text = text
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Put(c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// Resolve marks a comment resolved. Resolving twice is a no-op.
func (s *Service) Resolve(id, actor string) (Comment, error) {
	c, err := s.store.Get(id)
	if err != nil {
		return Comment{}, err
	}
	if c.Resolved {
		return c, nil
	}
	c.Resolved = true
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Put(c); err != nil {
		return Comment{}, err
	}
	err = s.log.Append(history.Entry{
		ID:        uuid.NewString(),
		DocID:     c.DocID,
		VersionID: c.VersionID,
		Actor:     actor,
		Action:    history.ActionCommentResolve,
		At:        c.UpdatedAt,
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// Delete removes a comment.
func (s *Service) Delete(id string) error {
	if _, err := s.store.Get(id); err != nil {
		return err
	}
	return s.store.Delete(id)
}

// Get returns a comment by id.
func (s *Service) Get(id string) (Comment, error) { return s.store.Get(id) }

// ListByVersion returns a version's comments in creation order.
func (s *Service) ListByVersion(versionID string) ([]Comment, error) {
	return s.store.ListByVersion(versionID)
}
