package branch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

// Manager enforces the branch lifecycle rules on top of a Store:
// source resolution on create, root and protection checks on delete,
// protection toggling.
type Manager struct {
	store Store
}

// NewManager creates a branch manager over a store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Store exposes the underlying store for head CAS operations.
func (m *Manager) Store() Store { return m.store }

// CreateRoot creates the distinguished "main" branch for a new document
// pointing at its initial version.
func (m *Manager) CreateRoot(docID, initialVersionID, createdBy string) (Branch, error) {
	b := Branch{
		ID:        uuid.NewString(),
		DocID:     docID,
		Name:      RootBranchName,
		Head:      initialVersionID,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	entry := history.Entry{
		ID:        uuid.NewString(),
		DocID:     docID,
		BranchID:  b.ID,
		VersionID: initialVersionID,
		Actor:     createdBy,
		Action:    history.ActionBranchCreate,
		Summary:   "root branch " + RootBranchName,
		At:        b.CreatedAt,
	}
	if err := m.store.Create(b, entry); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Create creates a branch from a source branch. The new head is
// sourceVersionID when given, otherwise the source branch's current
// head.
func (m *Manager) Create(docID, name, sourceBranchName, sourceVersionID, createdBy string) (Branch, error) {
	source, err := m.store.GetByName(docID, sourceBranchName)
	if err != nil {
		return Branch{}, err
	}

	head := source.Head
	if sourceVersionID != "" {
		head = sourceVersionID
	}

	b := Branch{
		ID:              uuid.NewString(),
		DocID:           docID,
		Name:            name,
		Head:            head,
		SourceBranchID:  source.ID,
		SourceVersionID: head,
		IsActive:        true,
		CreatedBy:       createdBy,
		CreatedAt:       time.Now().UTC(),
	}
	entry := history.Entry{
		ID:        uuid.NewString(),
		DocID:     docID,
		BranchID:  b.ID,
		VersionID: head,
		Actor:     createdBy,
		Action:    history.ActionBranchCreate,
		Summary:   "branched " + name + " from " + sourceBranchName,
		At:        b.CreatedAt,
	}
	if err := m.store.Create(b, entry); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Delete removes a branch. The root branch is never deletable; a
// protected branch requires force.
func (m *Manager) Delete(docID, name string, force bool, actor string) error {
	b, err := m.store.GetByName(docID, name)
	if err != nil {
		return err
	}
	if b.IsRoot() {
		return &domain.ProtectedBranchError{Name: name, Reason: "root branch cannot be deleted"}
	}
	if b.IsProtected && !force {
		return &domain.ProtectedBranchError{Name: name, Reason: "delete requires force"}
	}
	entry := history.Entry{
		ID:       uuid.NewString(),
		DocID:    docID,
		BranchID: b.ID,
		Actor:    actor,
		Action:   history.ActionBranchDelete,
		Summary:  "deleted branch " + name,
		At:       time.Now().UTC(),
	}
	return m.store.Delete(b.ID, entry)
}

// Protect marks a branch protected with the given rules.
func (m *Manager) Protect(docID, name string, rules Protection, actor string) (Branch, error) {
	b, err := m.store.GetByName(docID, name)
	if err != nil {
		return Branch{}, err
	}
	b.IsProtected = true
	b.Protection = rules
	entry := history.Entry{
		ID:       uuid.NewString(),
		DocID:    docID,
		BranchID: b.ID,
		Actor:    actor,
		Action:   history.ActionBranchProtect,
		Summary:  "protected branch " + name + ": " + protectionSummary(rules),
		At:       time.Now().UTC(),
	}
	if err := m.store.Update(b, entry); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Unprotect clears a branch's protection.
func (m *Manager) Unprotect(docID, name string, actor string) (Branch, error) {
	b, err := m.store.GetByName(docID, name)
	if err != nil {
		return Branch{}, err
	}
	b.IsProtected = false
	b.Protection = Protection{}
	entry := history.Entry{
		ID:       uuid.NewString(),
		DocID:    docID,
		BranchID: b.ID,
		Actor:    actor,
		Action:   history.ActionBranchUnprotect,
		Summary:  "unprotected branch " + name,
		At:       time.Now().UTC(),
	}
	if err := m.store.Update(b, entry); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Get returns a branch by id.
func (m *Manager) Get(id string) (Branch, error) { return m.store.Get(id) }

// GetByName returns a branch by document and name.
func (m *Manager) GetByName(docID, name string) (Branch, error) {
	return m.store.GetByName(docID, name)
}

// List returns a document's branches in creation order.
func (m *Manager) List(docID string) ([]Branch, error) { return m.store.List(docID) }

func protectionSummary(p Protection) string {
	data, _ := json.Marshal(p)
	return string(data)
}

func decodeBranch(data []byte, out *Branch) error {
	return json.Unmarshal(data, out)
}

func sortByCreation(branches []Branch) {
	sort.SliceStable(branches, func(i, j int) bool {
		return branches[i].CreatedAt.Before(branches[j].CreatedAt)
	})
}
