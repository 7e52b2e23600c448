// Package vgraph implements the version graph: immutable document
// snapshots linked by parent pointers into a DAG, with branch heads as
// the only mutable entry points.
//
// Bodies live in the content-addressed store; records live in an Index.
// A record may exist without being reachable from any branch head (a
// lost head race leaves no trace; the body blob is shared content and
// is never removed).
package vgraph

import (
	"time"
)

// Version is an immutable snapshot of a document plus lineage metadata.
//
// Parents[0] is the mainline parent: the head the branch had when this
// version was created. A merge version carries exactly two parents,
// [target head, source head], so mainline walks stay on the branch the
// merge landed on.
type Version struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	BranchID  string    `json:"branch_id"`
	Parents   []string  `json:"parents,omitempty"`
	BodyHash  string    `json:"body_hash"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// MainlineParent returns the first parent id, or "" for a root version.
func (v Version) MainlineParent() string {
	if len(v.Parents) == 0 {
		return ""
	}
	return v.Parents[0]
}

// IsMerge reports whether the version has two parents.
func (v Version) IsMerge() bool { return len(v.Parents) == 2 }

// Index persists version records.
type Index interface {
	// Put stores a record. Records are immutable; Put of an existing id
	// is an error.
	Put(v Version) error

	// Get returns a record by id, NotFoundError when absent.
	Get(id string) (Version, error)

	// Delete removes a record. Used only for unreferenced versions and
	// for rolling back a record whose head swap lost its race.
	Delete(id string) error

	// HasChildren reports whether any stored version lists id as a parent.
	HasChildren(id string) (bool, error)
}
