package vgraph

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/cas"
	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

// DefaultMaxLineageDepth bounds ancestor walks on degenerate graphs.
const DefaultMaxLineageDepth = 1000

// Store is the version graph engine. Reads are lock-free against the
// immutable records and bodies; the only mutable state it touches is
// the branch head, always through the branch store's compare-and-swap.
type Store struct {
	blobs    cas.CAS
	index    Index
	branches branch.Store
	schema   *document.Schema
	maxDepth int
}

// New creates a version graph over the given stores.
func New(blobs cas.CAS, index Index, branches branch.Store, schema *document.Schema) *Store {
	if schema == nil {
		schema = document.DefaultSchema()
	}
	return &Store{
		blobs:    blobs,
		index:    index,
		branches: branches,
		schema:   schema,
		maxDepth: DefaultMaxLineageDepth,
	}
}

// Schema returns the identity-key schema documents are normalized under.
func (s *Store) Schema() *document.Schema { return s.schema }

// SetMaxLineageDepth overrides the lineage walk bound.
func (s *Store) SetMaxLineageDepth(depth int) {
	if depth > 0 {
		s.maxDepth = depth
	}
}

// AppendOptions control how a new version is committed.
type AppendOptions struct {
	Action       history.Action // history action recorded with the head swap
	Summary      string         // audit summary (usually a diff summary)
	SecondParent string         // set for merge versions
	ExpectedHead string         // head observed at operation start; the CAS target
}

// Append stores a document body, writes the version record, and
// advances the branch head from opts.ExpectedHead with a compare-and-
// swap. A lost race returns ConcurrentModificationError and leaves no
// record behind; the caller re-reads the head, re-diffs, and retries.
func (s *Store) Append(b branch.Branch, doc *document.Document, createdBy string, opts AppendOptions) (Version, error) {
	body, err := document.Encode(doc)
	if err != nil {
		return Version{}, fmt.Errorf("encode body: %w", err)
	}
	hash := cas.Sum(body)
	if err := s.blobs.Put(hash, body); err != nil {
		return Version{}, fmt.Errorf("store body: %w", err)
	}

	var parents []string
	if opts.ExpectedHead != "" {
		parents = append(parents, opts.ExpectedHead)
	}
	if opts.SecondParent != "" {
		parents = append(parents, opts.SecondParent)
	}

	v := Version{
		ID:        uuid.NewString(),
		DocID:     b.DocID,
		BranchID:  b.ID,
		Parents:   parents,
		BodyHash:  hash.String(),
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.index.Put(v); err != nil {
		return Version{}, err
	}

	entry := history.Entry{
		ID:        uuid.NewString(),
		DocID:     b.DocID,
		BranchID:  b.ID,
		VersionID: v.ID,
		Actor:     createdBy,
		Action:    opts.Action,
		Summary:   opts.Summary,
		At:        v.CreatedAt,
	}
	if err := s.branches.CompareAndSwap(b.ID, opts.ExpectedHead, v.ID, entry); err != nil {
		// The record never became reachable; drop it. The body blob
		// stays, it is content-addressed and may be shared.
		_ = s.index.Delete(v.ID)
		return Version{}, err
	}
	return v, nil
}

// Get returns a version record by id.
func (s *Store) Get(id string) (Version, error) {
	return s.index.Get(id)
}

// Body loads and normalizes a version's document.
func (s *Store) Body(v Version) (*document.Document, error) {
	hash, err := cas.ParseHash(v.BodyHash)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(hash)
	if err != nil {
		return nil, err
	}
	return document.Decode(data, s.schema)
}

// BodyByID loads a version's document by version id.
func (s *Store) BodyByID(id string) (*document.Document, error) {
	v, err := s.index.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Body(v)
}

// List returns versions of a branch in reverse-chronological order,
// walking mainline parents from the branch head. limit <= 0 walks to
// the lineage depth bound.
func (s *Store) List(branchID string, limit int) ([]Version, error) {
	b, err := s.branches.Get(branchID)
	if err != nil {
		return nil, err
	}
	max := s.maxDepth
	if limit > 0 && limit < max {
		max = limit
	}
	return s.walkMainline(b.Head, max)
}

// Lineage returns a version and its mainline ancestors, nearest first,
// bounded by maxDepth (the store default when maxDepth <= 0).
func (s *Store) Lineage(versionID string, maxDepth int) ([]Version, error) {
	if maxDepth <= 0 || maxDepth > s.maxDepth {
		maxDepth = s.maxDepth
	}
	return s.walkMainline(versionID, maxDepth)
}

func (s *Store) walkMainline(fromID string, max int) ([]Version, error) {
	var out []Version
	current := fromID
	for current != "" && len(out) < max {
		v, err := s.index.Get(current)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		current = v.MainlineParent()
	}
	return out, nil
}

// Restore creates a new version on the branch whose document equals the
// target version's document: a content-identical restore that preserves
// history rather than rewriting the head pointer. With createBackup, a
// version snapshotting the pre-restore head is committed first.
func (s *Store) Restore(b branch.Branch, targetVersionID string, createBackup bool, createdBy string) (Version, error) {
	target, err := s.index.Get(targetVersionID)
	if err != nil {
		return Version{}, err
	}
	targetDoc, err := s.Body(target)
	if err != nil {
		return Version{}, err
	}

	head := b.Head
	if createBackup {
		headDoc, err := s.BodyByID(head)
		if err != nil {
			return Version{}, err
		}
		backup, err := s.Append(b, headDoc, createdBy, AppendOptions{
			Action:       history.ActionVersionCreate,
			Summary:      "pre-restore backup of " + head,
			ExpectedHead: head,
		})
		if err != nil {
			return Version{}, err
		}
		head = backup.ID
	}

	return s.Append(b, targetDoc, createdBy, AppendOptions{
		Action:       history.ActionVersionRestore,
		Summary:      "restored version " + targetVersionID,
		ExpectedHead: head,
	})
}

// Delete removes an unreferenced version record. Callers are
// responsible for the head/tag/lock reference checks; the graph itself
// refuses only to orphan children.
func (s *Store) Delete(id string) error {
	hasChildren, err := s.index.HasChildren(id)
	if err != nil {
		return err
	}
	if hasChildren {
		return domain.Validationf("version %s has descendants and cannot be deleted", id)
	}
	return s.index.Delete(id)
}
