package merge

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/structdiff"
	"github.com/nholden/verso/internal/vgraph"
)

// Engine performs three-way merges over the version graph. It never
// mutates existing versions: a completed merge is a new version on the
// target branch with the target head as mainline parent and the source
// head as second parent.
type Engine struct {
	versions *vgraph.Store
	branches branch.Store
	requests RequestStore
	maxDepth int
}

// NewEngine creates a merge engine over the given stores.
func NewEngine(versions *vgraph.Store, branches branch.Store, requests RequestStore) *Engine {
	return &Engine{
		versions: versions,
		branches: branches,
		requests: requests,
		maxDepth: vgraph.DefaultMaxLineageDepth,
	}
}

// SetMaxDepth overrides the ancestor search bound.
func (e *Engine) SetMaxDepth(depth int) {
	if depth > 0 {
		e.maxDepth = depth
	}
}

// CreateRequest opens a merge request between two branches of the same
// document. At most one open request may exist per source/target pair.
func (e *Engine) CreateRequest(docID, sourceBranchID, targetBranchID, createdBy string) (Request, error) {
	if sourceBranchID == targetBranchID {
		return Request{}, domain.Validationf("source and target branch are the same")
	}
	src, err := e.branches.Get(sourceBranchID)
	if err != nil {
		return Request{}, err
	}
	tgt, err := e.branches.Get(targetBranchID)
	if err != nil {
		return Request{}, err
	}
	if src.DocID != docID || tgt.DocID != docID {
		return Request{}, domain.Validationf("branches belong to a different document")
	}
	open, err := e.requests.List(docID, Filter{
		Status:         StatusOpen,
		SourceBranchID: sourceBranchID,
		TargetBranchID: targetBranchID,
	})
	if err != nil {
		return Request{}, err
	}
	if len(open) > 0 {
		return Request{}, domain.Validationf("an open merge request already exists for %s into %s", src.Name, tgt.Name)
	}

	now := time.Now().UTC()
	r := Request{
		ID:             uuid.NewString(),
		DocID:          docID,
		SourceBranchID: sourceBranchID,
		TargetBranchID: targetBranchID,
		Status:         StatusOpen,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.requests.Put(r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// GetRequest returns a merge request by id.
func (e *Engine) GetRequest(id string) (Request, error) {
	return e.requests.Get(id)
}

// ListRequests returns a document's merge requests, optionally filtered.
func (e *Engine) ListRequests(docID string, f Filter) ([]Request, error) {
	return e.requests.List(docID, f)
}

// Close abandons an open merge request without merging.
func (e *Engine) Close(requestID string) (Request, error) {
	r, err := e.requests.Get(requestID)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusOpen {
		return Request{}, domain.Validationf("merge request %s is %s", r.ID, r.Status)
	}
	r.Status = StatusClosed
	r.UpdatedAt = time.Now().UTC()
	if err := e.requests.Put(r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Auto attempts the merge. Non-overlapping changes from both sides are
// combined onto the common ancestor; a path both sides changed to
// different values is a conflict. With conflicts the request stays open
// carrying them; without, a two-parent merged version is committed on
// the target branch.
//
// The commit is a compare-and-swap against the target head observed at
// the start of the merge, so a concurrent head move surfaces as
// ConcurrentModificationError and the caller retries the whole merge.
func (e *Engine) Auto(requestID, actor string) (Outcome, error) {
	r, err := e.requests.Get(requestID)
	if err != nil {
		return Outcome{}, err
	}
	if r.Status != StatusOpen {
		return Outcome{}, domain.Validationf("merge request %s is %s", r.ID, r.Status)
	}

	state, err := e.prepare(r)
	if err != nil {
		return Outcome{}, err
	}

	if len(state.conflicts) > 0 {
		r.Conflicts = state.conflicts
		r.UpdatedAt = time.Now().UTC()
		if err := e.requests.Put(r); err != nil {
			return Outcome{}, err
		}
		return Outcome{Conflicts: state.conflicts}, nil
	}
	return e.commit(r, state, state.applied, actor)
}

// Manual completes a conflicted merge. The conflicts are recomputed
// from the current heads and every one must be covered by exactly one
// resolution; resolutions for paths that are not in conflict are
// rejected.
func (e *Engine) Manual(requestID string, resolutions []Resolution, actor string) (Outcome, error) {
	r, err := e.requests.Get(requestID)
	if err != nil {
		return Outcome{}, err
	}
	if r.Status != StatusOpen {
		return Outcome{}, domain.Validationf("merge request %s is %s", r.ID, r.Status)
	}

	state, err := e.prepare(r)
	if err != nil {
		return Outcome{}, err
	}
	if len(state.conflicts) == 0 {
		return Outcome{}, domain.Validationf("merge request %s has no conflicts; use an automatic merge", r.ID)
	}

	byPath := make(map[string]Resolution, len(resolutions))
	for _, res := range resolutions {
		if _, dup := byPath[res.Path]; dup {
			return Outcome{}, domain.Validationf("duplicate resolution for path %s", res.Path)
		}
		byPath[res.Path] = res
	}

	changes := state.applied
	for _, c := range state.conflicts {
		res, ok := byPath[c.Path]
		if !ok {
			return Outcome{}, fmt.Errorf("path %s: %w", c.Path, domain.ErrMissingResolution)
		}
		delete(byPath, c.Path)
		change, apply, err := resolutionChange(c, res)
		if err != nil {
			return Outcome{}, err
		}
		if apply {
			changes = append(changes, change)
		}
	}
	for path := range byPath {
		return Outcome{}, domain.Validationf("resolution for non-conflicted path %s", path)
	}
	return e.commit(r, state, changes, actor)
}

// Conflicts recomputes the conflict set for an open request from the
// current branch heads.
func (e *Engine) Conflicts(requestID string) ([]Conflict, error) {
	r, err := e.requests.Get(requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusOpen {
		return nil, domain.Validationf("merge request %s is %s", r.ID, r.Status)
	}
	state, err := e.prepare(r)
	if err != nil {
		return nil, err
	}
	return state.conflicts, nil
}

// mergeState is everything Auto and Manual share: the heads observed at
// preparation time, the ancestor document, and the combined delta.
type mergeState struct {
	source    branch.Branch
	target    branch.Branch
	baseDoc   *document.Document
	applied   []structdiff.Change
	conflicts []Conflict
}

func (e *Engine) prepare(r Request) (*mergeState, error) {
	src, err := e.branches.Get(r.SourceBranchID)
	if err != nil {
		return nil, err
	}
	tgt, err := e.branches.Get(r.TargetBranchID)
	if err != nil {
		return nil, err
	}
	if src.Head == tgt.Head {
		return nil, domain.Validationf("branches %s and %s are already identical", src.Name, tgt.Name)
	}

	baseID, err := e.lowestCommonAncestor(src.Head, tgt.Head)
	if err != nil {
		return nil, err
	}
	baseDoc, err := e.versions.BodyByID(baseID)
	if err != nil {
		return nil, err
	}
	srcDoc, err := e.versions.BodyByID(src.Head)
	if err != nil {
		return nil, err
	}
	tgtDoc, err := e.versions.BodyByID(tgt.Head)
	if err != nil {
		return nil, err
	}

	srcDiff := structdiff.Compute(baseDoc, srcDoc)
	tgtDiff := structdiff.Compute(baseDoc, tgtDoc)
	applied, conflicts := combine(srcDiff, tgtDiff)

	return &mergeState{
		source:    src,
		target:    tgt,
		baseDoc:   baseDoc,
		applied:   applied,
		conflicts: conflicts,
	}, nil
}

func (e *Engine) commit(r Request, state *mergeState, changes []structdiff.Change, actor string) (Outcome, error) {
	merged, err := structdiff.Apply(state.baseDoc, changes, e.versions.Schema())
	if err != nil {
		return Outcome{}, err
	}
	v, err := e.versions.Append(state.target, merged, actor, vgraph.AppendOptions{
		Action:       history.ActionMerge,
		Summary:      fmt.Sprintf("merged %s into %s", state.source.Name, state.target.Name),
		SecondParent: state.source.Head,
		ExpectedHead: state.target.Head,
	})
	if err != nil {
		return Outcome{}, err
	}

	r.Status = StatusMerged
	r.MergedVersionID = v.ID
	r.Conflicts = nil
	r.UpdatedAt = time.Now().UTC()
	if err := e.requests.Put(r); err != nil {
		return Outcome{}, err
	}
	return Outcome{Success: true, MergedVersionID: v.ID}, nil
}

// lowestCommonAncestor finds the nearest version reachable from both
// ids, following all parents so earlier merges shrink later deltas.
func (e *Engine) lowestCommonAncestor(aID, bID string) (string, error) {
	if aID == bID {
		return aID, nil
	}
	ancestors := make(map[string]struct{}, 64)
	queue := []string{aID}
	for len(queue) > 0 && len(ancestors) < e.maxDepth {
		id := queue[0]
		queue = queue[1:]
		if _, seen := ancestors[id]; seen {
			continue
		}
		ancestors[id] = struct{}{}
		v, err := e.versions.Get(id)
		if err != nil {
			return "", err
		}
		queue = append(queue, v.Parents...)
	}

	visited := make(map[string]struct{}, 64)
	queue = []string{bID}
	for len(queue) > 0 && len(visited) < e.maxDepth {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		if _, ok := ancestors[id]; ok {
			return id, nil
		}
		v, err := e.versions.Get(id)
		if err != nil {
			return "", err
		}
		queue = append(queue, v.Parents...)
	}
	return "", domain.Validationf("versions %s and %s share no common ancestor", aID, bID)
}

// combine partitions the two deltas into changes safe to replay onto
// the ancestor and conflicts requiring a decision. A path changed by
// both sides is safe only when both made the identical change. A change
// beneath a subtree the other side removed or retyped conflicts too,
// surfaced at the deeper path.
func combine(src, tgt *structdiff.Diff) ([]structdiff.Change, []Conflict) {
	srcDrop := make(map[int]bool)
	tgtDrop := make(map[int]bool)
	var conflicts []Conflict

	tgtByPath := make(map[string]int, len(tgt.Changes))
	for i, c := range tgt.Changes {
		tgtByPath[c.Path.String()] = i
	}

	for i, sc := range src.Changes {
		j, ok := tgtByPath[sc.Path.String()]
		if !ok {
			continue
		}
		tc := tgt.Changes[j]
		if changesEqual(sc, tc) {
			// Both sides made the same change; keep the target's copy.
			srcDrop[i] = true
			continue
		}
		srcDrop[i] = true
		tgtDrop[j] = true
		conflicts = append(conflicts, Conflict{
			Path:   sc.Path.String(),
			Base:   changeBase(sc),
			Source: changeResult(sc),
			Target: changeResult(tc),
		})
	}

	// Container removals and retypes swallow the other side's deeper
	// edits. Quadratic, but deltas between review snapshots are small.
	for i, sc := range src.Changes {
		if srcDrop[i] || !containerChange(sc) {
			continue
		}
		for j, tc := range tgt.Changes {
			if tgtDrop[j] || !strictlyUnder(tc.Path, sc.Path) {
				continue
			}
			srcDrop[i] = true
			tgtDrop[j] = true
			conflicts = append(conflicts, Conflict{
				Path:   tc.Path.String(),
				Base:   changeBase(tc),
				Source: changeResult(sc),
				Target: changeResult(tc),
			})
		}
	}
	for j, tc := range tgt.Changes {
		if tgtDrop[j] || !containerChange(tc) {
			continue
		}
		for i, sc := range src.Changes {
			if srcDrop[i] || !strictlyUnder(sc.Path, tc.Path) {
				continue
			}
			srcDrop[i] = true
			tgtDrop[j] = true
			conflicts = append(conflicts, Conflict{
				Path:   sc.Path.String(),
				Base:   changeBase(sc),
				Source: changeResult(sc),
				Target: changeResult(tc),
			})
		}
	}

	var applied []structdiff.Change
	for j, tc := range tgt.Changes {
		if !tgtDrop[j] {
			applied = append(applied, tc)
		}
	}
	for i, sc := range src.Changes {
		if !srcDrop[i] {
			applied = append(applied, sc)
		}
	}
	sort.SliceStable(conflicts, func(a, b int) bool {
		return conflicts[a].Path < conflicts[b].Path
	})
	return applied, conflicts
}

func changesEqual(a, b structdiff.Change) bool {
	return a.Kind == b.Kind &&
		reflect.DeepEqual(a.New, b.New) &&
		reflect.DeepEqual(a.Old, b.Old)
}

// changeBase is the ancestor-side value of a change.
func changeBase(c structdiff.Change) any {
	if c.Kind == structdiff.ItemAdded {
		return nil
	}
	return c.Old
}

// changeResult is the value a side wants at the path; nil for removals.
func changeResult(c structdiff.Change) any {
	if c.Kind == structdiff.ItemRemoved {
		return nil
	}
	return c.New
}

func containerChange(c structdiff.Change) bool {
	return c.Kind == structdiff.ItemRemoved || c.Kind == structdiff.TypeChanged
}

func strictlyUnder(p, prefix document.Path) bool {
	return len(p) > len(prefix) && p.HasPrefix(prefix)
}

// resolutionChange translates a resolution into a change replayed onto
// the ancestor document. The second return is false when there is
// nothing to do (removing a path the ancestor never had).
func resolutionChange(c Conflict, r Resolution) (structdiff.Change, bool, error) {
	path, err := document.ParsePath(c.Path)
	if err != nil {
		return structdiff.Change{}, false, err
	}
	seq := path[len(path)-1].Elem

	if r.Value == nil {
		if c.Base == nil {
			return structdiff.Change{}, false, nil
		}
		return structdiff.Change{
			Kind:     structdiff.ItemRemoved,
			Path:     path,
			Old:      c.Base,
			Sequence: seq,
		}, true, nil
	}
	if c.Base == nil {
		return structdiff.Change{
			Kind:     structdiff.ItemAdded,
			Path:     path,
			New:      r.Value,
			Sequence: seq,
		}, true, nil
	}
	return structdiff.Change{
		Kind:     structdiff.ValueChanged,
		Path:     path,
		Old:      c.Base,
		New:      r.Value,
		Sequence: seq,
	}, true, nil
}
