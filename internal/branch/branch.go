// Package branch manages named mutable pointers into the version graph.
//
// A branch's head is its only mutable field, and every head advance
// goes through Store.CompareAndSwap keyed on the previous head, so
// concurrent writers are serialized without a global lock: the loser
// of a race gets ConcurrentModificationError and retries against the
// new head after re-diffing.
package branch

import (
	"time"

	"github.com/nholden/verso/internal/history"
)

// RootBranchName is the distinguished root branch every document gets
// at creation. It can never be deleted.
const RootBranchName = "main"

// Protection holds the rules applied to a protected branch.
type Protection struct {
	RequireReview       bool `json:"require_review"`
	RestrictPush        bool `json:"restrict_push"`
	RequireStatusChecks bool `json:"require_status_checks"`
}

// Branch is a named pointer to a version. Head traces back through
// SourceBranchID/SourceVersionID to the document root.
type Branch struct {
	ID              string     `json:"id"`
	DocID           string     `json:"doc_id"`
	Name            string     `json:"name"`
	Head            string     `json:"head"` // version id; mutable via CompareAndSwap only
	SourceBranchID  string     `json:"source_branch_id,omitempty"`
	SourceVersionID string     `json:"source_version_id,omitempty"`
	IsActive        bool       `json:"is_active"`
	IsProtected     bool       `json:"is_protected"`
	Protection      Protection `json:"protection"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsRoot reports whether this is the document's root branch.
func (b Branch) IsRoot() bool { return b.Name == RootBranchName }

// Store persists branch records. Mutations carry the history entry that
// must commit atomically with them; implementations either write both
// in one transaction or fail both.
type Store interface {
	// Create stores a new branch. Fails with BranchExistsError when the
	// name is already taken within the document.
	Create(b Branch, entry history.Entry) error

	// Get returns a branch by id, NotFoundError when absent.
	Get(id string) (Branch, error)

	// GetByName returns a branch by document and name.
	GetByName(docID, name string) (Branch, error)

	// List returns all branches of a document, creation order.
	List(docID string) ([]Branch, error)

	// Update rewrites a branch record's immutable-head fields
	// (protection, active flag). The head is ignored; use CompareAndSwap.
	Update(b Branch, entry history.Entry) error

	// Delete removes a branch record and its name index entry.
	Delete(id string, entry history.Entry) error

	// CompareAndSwap advances the head from oldHead to newHead. Fails
	// with ConcurrentModificationError when the stored head is no
	// longer oldHead. The history entry commits with the swap.
	CompareAndSwap(branchID, oldHead, newHead string, entry history.Entry) error
}
