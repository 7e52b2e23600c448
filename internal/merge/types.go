// Package merge implements three-way merges between branch heads:
// lowest-common-ancestor search, conflict detection, resolution
// suggestions, cherry-picks, and reverts.
package merge

import (
	"time"
)

// Status is the lifecycle state of a merge request.
type Status string

const (
	StatusOpen   Status = "open"
	StatusMerged Status = "merged"
	StatusClosed Status = "closed"
)

// Conflict records a path changed to different values by both sides of
// a merge relative to their common ancestor. A nil side means that side
// removed the path.
type Conflict struct {
	Path   string `json:"path"`
	Base   any    `json:"base_value"`
	Source any    `json:"source_value"`
	Target any    `json:"target_value"`
}

// Resolution chooses the merged value for one conflicted path. A nil
// Value removes the path from the merged document.
type Resolution struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Suggestion is a heuristic candidate resolution. Never authoritative.
type Suggestion struct {
	Strategy string `json:"strategy"` // "prefer-source", "prefer-target", "concat"
	Value    any    `json:"value"`
}

// Request tracks one source-to-target merge.
type Request struct {
	ID              string     `json:"id"`
	DocID           string     `json:"doc_id"`
	SourceBranchID  string     `json:"source_branch_id"`
	TargetBranchID  string     `json:"target_branch_id"`
	Status          Status     `json:"status"`
	Conflicts       []Conflict `json:"conflicts,omitempty"`
	MergedVersionID string     `json:"merged_version_id,omitempty"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasConflicts reports whether the last merge attempt found conflicts.
func (r Request) HasConflicts() bool { return len(r.Conflicts) > 0 }

// Filter narrows a merge request listing. Zero fields do not filter.
type Filter struct {
	Status         Status
	SourceBranchID string
	TargetBranchID string
}

func (f Filter) matches(r Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.SourceBranchID != "" && r.SourceBranchID != f.SourceBranchID {
		return false
	}
	if f.TargetBranchID != "" && r.TargetBranchID != f.TargetBranchID {
		return false
	}
	return true
}

// RequestStore persists merge requests.
type RequestStore interface {
	Put(r Request) error
	Get(id string) (Request, error)
	List(docID string, f Filter) ([]Request, error)
}

// Outcome is the result of an auto or manual merge attempt.
type Outcome struct {
	Success         bool
	MergedVersionID string
	Conflicts       []Conflict
}
