package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/structdiff"
	"github.com/nholden/verso/internal/vgraph"
)

func (s *Store) normalize(body any) (*document.Document, error) {
	return document.Normalize(body, s.schema)
}

// CreateVersion commits body as a new version on a branch. The head is
// advanced with a compare-and-swap against the head read here, so a
// racing writer surfaces as ConcurrentModificationError and the caller
// retries with fresh state. A protected branch with RestrictPush
// rejects direct version creation; an active foreign lock on the head
// rejects it with LockHeld.
//
// The diff against the previous head is returned and summarized into
// the audit history.
func (s *Store) CreateVersion(docID, branchName string, body any, actor string) (v vgraph.Version, diff *structdiff.Diff, err error) {
	defer s.observe("createVersion", time.Now(), &err)

	b, err := s.branches.GetByName(docID, branchName)
	if err != nil {
		return vgraph.Version{}, nil, err
	}
	if b.IsProtected && b.Protection.RestrictPush {
		return vgraph.Version{}, nil, &domain.ProtectedBranchError{Name: b.Name, Reason: "direct version creation is restricted"}
	}
	if err = s.locks.CheckWritable(b.Head, actor); err != nil {
		return vgraph.Version{}, nil, err
	}

	newDoc, err := s.normalize(body)
	if err != nil {
		return vgraph.Version{}, nil, err
	}
	oldDoc, err := s.versions.BodyByID(b.Head)
	if err != nil {
		return vgraph.Version{}, nil, err
	}
	diff = structdiff.Compute(oldDoc, newDoc)
	if diff.Empty() {
		return vgraph.Version{}, nil, domain.Validationf("document is unchanged from the branch head")
	}

	v, err = s.versions.Append(b, newDoc, actor, vgraph.AppendOptions{
		Action:       history.ActionVersionCreate,
		Summary:      summarize(diff),
		ExpectedHead: b.Head,
	})
	if err != nil {
		return vgraph.Version{}, nil, err
	}
	s.metrics.VersionsCreatedTotal.Inc()
	s.metrics.DiffChangesTotal.Add(float64(diff.Summary.TotalChanges))
	return v, diff, nil
}

// GetVersion returns a version record by id.
func (s *Store) GetVersion(id string) (vgraph.Version, error) {
	return s.versions.Get(id)
}

// GetVersionBody returns a version's document as plain Go values.
func (s *Store) GetVersionBody(id string) (any, error) {
	doc, err := s.versions.BodyByID(id)
	if err != nil {
		return nil, err
	}
	return document.Export(doc), nil
}

// ListVersions returns a branch's versions newest first.
func (s *Store) ListVersions(docID, branchName string, limit int) ([]vgraph.Version, error) {
	b, err := s.branches.GetByName(docID, branchName)
	if err != nil {
		return nil, err
	}
	return s.versions.List(b.ID, limit)
}

// GetLineage returns a version and its mainline ancestors, nearest
// first.
func (s *Store) GetLineage(versionID string, maxDepth int) ([]vgraph.Version, error) {
	return s.versions.Lineage(versionID, maxDepth)
}

// RestoreVersion commits a new head whose content equals an older
// version's, optionally preceded by a backup of the current head.
func (s *Store) RestoreVersion(docID, branchName, versionID string, createBackup bool, actor string) (v vgraph.Version, err error) {
	defer s.observe("restoreVersion", time.Now(), &err)

	b, err := s.branches.GetByName(docID, branchName)
	if err != nil {
		return vgraph.Version{}, err
	}
	if b.IsProtected && b.Protection.RestrictPush {
		return vgraph.Version{}, &domain.ProtectedBranchError{Name: b.Name, Reason: "direct version creation is restricted"}
	}
	if err = s.locks.CheckWritable(b.Head, actor); err != nil {
		return vgraph.Version{}, err
	}
	v, err = s.versions.Restore(b, versionID, createBackup, actor)
	if err != nil {
		return vgraph.Version{}, err
	}
	s.metrics.VersionsCreatedTotal.Inc()
	return v, nil
}

// DeleteVersion removes an unreferenced version record: no branch head,
// tag, active lock, or child version may point at it. The body blob
// stays in the content store, it may be shared.
func (s *Store) DeleteVersion(docID, versionID, actor string) (err error) {
	defer s.observe("deleteVersion", time.Now(), &err)

	v, err := s.versions.Get(versionID)
	if err != nil {
		return err
	}
	if v.DocID != docID {
		return &domain.NotFoundError{Kind: "version", ID: versionID}
	}

	branches, err := s.branches.List(docID)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if b.Head == versionID {
			return domain.Validationf("version %s is the head of branch %q", versionID, b.Name)
		}
	}
	tags, err := s.tags.ListByVersion(versionID)
	if err != nil {
		return err
	}
	if len(tags) > 0 {
		return domain.Validationf("version %s is referenced by tag %q", versionID, tags[0].Name)
	}
	locks, err := s.locks.List(versionID)
	if err != nil {
		return err
	}
	if len(locks) > 0 {
		return domain.Validationf("version %s is locked by %s", versionID, locks[0].Holder)
	}

	if err = s.versions.Delete(versionID); err != nil {
		return err
	}
	return s.history.Append(history.Entry{
		ID:        uuid.NewString(),
		DocID:     docID,
		BranchID:  v.BranchID,
		VersionID: versionID,
		Actor:     actor,
		Action:    history.ActionVersionDelete,
		At:        time.Now().UTC(),
	})
}

// CompareVersions diffs two arbitrary versions, base against other.
func (s *Store) CompareVersions(baseID, otherID string) (*structdiff.Diff, error) {
	baseDoc, err := s.versions.BodyByID(baseID)
	if err != nil {
		return nil, err
	}
	otherDoc, err := s.versions.BodyByID(otherID)
	if err != nil {
		return nil, err
	}
	d := structdiff.Compute(baseDoc, otherDoc)
	s.metrics.DiffChangesTotal.Add(float64(d.Summary.TotalChanges))
	return d, nil
}

// CompareBranches diffs two branch heads of the same document, base
// against other.
func (s *Store) CompareBranches(docID, baseName, otherName string) (*structdiff.Diff, error) {
	base, err := s.branches.GetByName(docID, baseName)
	if err != nil {
		return nil, err
	}
	other, err := s.branches.GetByName(docID, otherName)
	if err != nil {
		return nil, err
	}
	return s.CompareVersions(base.Head, other.Head)
}

// CreateBranch creates a branch from a source branch's head, or from an
// explicit version on the source branch.
func (s *Store) CreateBranch(docID, name, sourceBranch, sourceVersionID, actor string) (b branch.Branch, err error) {
	defer s.observe("createBranch", time.Now(), &err)
	if err = validateName("branch", name); err != nil {
		return branch.Branch{}, err
	}
	return s.branches.Create(docID, name, sourceBranch, sourceVersionID, actor)
}

// DeleteBranch removes a branch; the root branch never, a protected
// branch only with force.
func (s *Store) DeleteBranch(docID, name string, force bool, actor string) (err error) {
	defer s.observe("deleteBranch", time.Now(), &err)
	return s.branches.Delete(docID, name, force, actor)
}

// ProtectBranch marks a branch protected with the given rules.
func (s *Store) ProtectBranch(docID, name string, rules branch.Protection, actor string) (branch.Branch, error) {
	return s.branches.Protect(docID, name, rules, actor)
}

// UnprotectBranch clears a branch's protection.
func (s *Store) UnprotectBranch(docID, name, actor string) (branch.Branch, error) {
	return s.branches.Unprotect(docID, name, actor)
}

// GetBranch returns a branch by document and name.
func (s *Store) GetBranch(docID, name string) (branch.Branch, error) {
	return s.branches.GetByName(docID, name)
}

// ListBranches returns a document's branches in creation order.
func (s *Store) ListBranches(docID string) ([]branch.Branch, error) {
	return s.branches.List(docID)
}

// summarize renders a diff summary for audit entries.
func summarize(d *structdiff.Diff) string {
	sum := d.Summary
	return fmt.Sprintf("%d changes (%d values, %d added, %d removed, %d retyped) in %v",
		sum.TotalChanges, sum.ValuesChanged, sum.ItemsAdded, sum.ItemsRemoved,
		sum.TypeChanges, sum.AffectedPaths)
}
