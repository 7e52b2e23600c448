package merge

import (
	"fmt"

	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/structdiff"
	"github.com/nholden/verso/internal/vgraph"
)

// CherryPick replays the delta a version introduced over its parent
// onto another branch's head as a new single-parent version. With
// paths, only changes at or below those paths are replayed; a path the
// delta never touches is rejected with InvalidPathError.
func (e *Engine) CherryPick(versionID, targetBranchID string, paths []string, actor string) (vgraph.Version, error) {
	delta, v, err := e.versionDelta(versionID)
	if err != nil {
		return vgraph.Version{}, err
	}

	if len(paths) > 0 {
		parsed := make([]document.Path, 0, len(paths))
		for _, raw := range paths {
			p, err := document.ParsePath(raw)
			if err != nil {
				return vgraph.Version{}, err
			}
			if !touchesPath(delta, p) {
				return vgraph.Version{}, &domain.InvalidPathError{Path: raw}
			}
			parsed = append(parsed, p)
		}
		delta = delta.Filter(parsed)
	}
	if delta.Empty() {
		return vgraph.Version{}, domain.Validationf("version %s introduced no changes to replay", versionID)
	}

	return e.replay(targetBranchID, delta.Changes, actor, vgraph.AppendOptions{
		Action:  history.ActionCherryPick,
		Summary: fmt.Sprintf("cherry-picked %s (%d changes)", v.ID, len(delta.Changes)),
	})
}

// Revert applies the inverse of the delta a version introduced onto a
// branch head, producing a new version that undoes it. The reverted
// version itself stays in the graph untouched.
func (e *Engine) Revert(versionID, targetBranchID, actor string) (vgraph.Version, error) {
	delta, v, err := e.versionDelta(versionID)
	if err != nil {
		return vgraph.Version{}, err
	}
	inverse := delta.Invert()
	if inverse.Empty() {
		return vgraph.Version{}, domain.Validationf("version %s introduced no changes to revert", versionID)
	}

	return e.replay(targetBranchID, inverse.Changes, actor, vgraph.AppendOptions{
		Action:  history.ActionRevert,
		Summary: fmt.Sprintf("reverted %s (%d changes)", v.ID, len(inverse.Changes)),
	})
}

// versionDelta computes the changes a version introduced relative to
// its mainline parent. A rootless version is diffed against an empty
// document, so its delta adds everything it contains.
func (e *Engine) versionDelta(versionID string) (*structdiff.Diff, vgraph.Version, error) {
	v, err := e.versions.Get(versionID)
	if err != nil {
		return nil, vgraph.Version{}, err
	}
	doc, err := e.versions.Body(v)
	if err != nil {
		return nil, vgraph.Version{}, err
	}

	var parentDoc *document.Document
	if parentID := v.MainlineParent(); parentID != "" {
		parentDoc, err = e.versions.BodyByID(parentID)
	} else {
		parentDoc, err = document.Normalize(map[string]any{}, e.versions.Schema())
	}
	if err != nil {
		return nil, vgraph.Version{}, err
	}
	return structdiff.Compute(parentDoc, doc), v, nil
}

// replay applies changes onto a branch head and commits the result.
func (e *Engine) replay(branchID string, changes []structdiff.Change, actor string, opts vgraph.AppendOptions) (vgraph.Version, error) {
	b, err := e.branches.Get(branchID)
	if err != nil {
		return vgraph.Version{}, err
	}
	headDoc, err := e.versions.BodyByID(b.Head)
	if err != nil {
		return vgraph.Version{}, err
	}
	result, err := structdiff.Apply(headDoc, changes, e.versions.Schema())
	if err != nil {
		return vgraph.Version{}, err
	}
	opts.ExpectedHead = b.Head
	return e.versions.Append(b, result, actor, opts)
}

func touchesPath(d *structdiff.Diff, p document.Path) bool {
	for _, c := range d.Changes {
		if c.Path.HasPrefix(p) || p.HasPrefix(c.Path) {
			return true
		}
	}
	return false
}
