package service

import (
	"time"

	"github.com/nholden/verso/internal/merge"
	"github.com/nholden/verso/internal/vgraph"
)

// CreateMergeRequest opens a merge request from one branch into
// another, both named within the same document.
func (s *Store) CreateMergeRequest(docID, sourceBranch, targetBranch, actor string) (r merge.Request, err error) {
	defer s.observe("createMergeRequest", time.Now(), &err)

	src, err := s.branches.GetByName(docID, sourceBranch)
	if err != nil {
		return merge.Request{}, err
	}
	tgt, err := s.branches.GetByName(docID, targetBranch)
	if err != nil {
		return merge.Request{}, err
	}
	return s.engine.CreateRequest(docID, src.ID, tgt.ID, actor)
}

// GetMergeRequest returns a merge request by id.
func (s *Store) GetMergeRequest(id string) (merge.Request, error) {
	return s.engine.GetRequest(id)
}

// ListMergeRequests returns a document's merge requests, optionally
// filtered by status and branches.
func (s *Store) ListMergeRequests(docID string, f merge.Filter) ([]merge.Request, error) {
	return s.engine.ListRequests(docID, f)
}

// CloseMergeRequest abandons an open request without merging.
func (s *Store) CloseMergeRequest(id string) (merge.Request, error) {
	return s.engine.Close(id)
}

// AutoMerge attempts the three-way merge. A conflicting outcome leaves
// the request open with its conflicts recorded.
func (s *Store) AutoMerge(requestID, actor string) (out merge.Outcome, err error) {
	defer s.observe("autoMerge", time.Now(), &err)

	out, err = s.engine.Auto(requestID, actor)
	if err != nil {
		return merge.Outcome{}, err
	}
	if out.Success {
		s.metrics.MergesCompletedTotal.Inc()
		s.metrics.VersionsCreatedTotal.Inc()
	} else {
		s.metrics.MergeConflictsTotal.Add(float64(len(out.Conflicts)))
	}
	return out, nil
}

// ManualMerge completes a conflicted merge with explicit resolutions,
// one per conflict.
func (s *Store) ManualMerge(requestID string, resolutions []merge.Resolution, actor string) (out merge.Outcome, err error) {
	defer s.observe("manualMerge", time.Now(), &err)

	out, err = s.engine.Manual(requestID, resolutions, actor)
	if err != nil {
		return merge.Outcome{}, err
	}
	s.metrics.MergesCompletedTotal.Inc()
	s.metrics.VersionsCreatedTotal.Inc()
	return out, nil
}

// GetConflicts recomputes an open request's conflicts from the current
// branch heads.
func (s *Store) GetConflicts(requestID string) ([]merge.Conflict, error) {
	return s.engine.Conflicts(requestID)
}

// ConflictSuggestions pairs a conflict with heuristic resolutions.
type ConflictSuggestions struct {
	Conflict    merge.Conflict     `json:"conflict"`
	Suggestions []merge.Suggestion `json:"suggestions"`
}

// SuggestResolutions returns candidate resolutions for each open
// conflict of a request.
func (s *Store) SuggestResolutions(requestID string) ([]ConflictSuggestions, error) {
	conflicts, err := s.engine.Conflicts(requestID)
	if err != nil {
		return nil, err
	}
	out := make([]ConflictSuggestions, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, ConflictSuggestions{
			Conflict:    c,
			Suggestions: merge.Suggest(c),
		})
	}
	return out, nil
}

// CherryPick replays one version's delta, optionally restricted to
// paths, onto a named branch.
func (s *Store) CherryPick(docID, versionID, targetBranch string, paths []string, actor string) (v vgraph.Version, err error) {
	defer s.observe("cherryPick", time.Now(), &err)

	tgt, err := s.branches.GetByName(docID, targetBranch)
	if err != nil {
		return vgraph.Version{}, err
	}
	if err = s.locks.CheckWritable(tgt.Head, actor); err != nil {
		return vgraph.Version{}, err
	}
	v, err = s.engine.CherryPick(versionID, tgt.ID, paths, actor)
	if err != nil {
		return vgraph.Version{}, err
	}
	s.metrics.VersionsCreatedTotal.Inc()
	return v, nil
}

// RevertVersion commits the inverse of one version's delta onto a
// named branch.
func (s *Store) RevertVersion(docID, versionID, targetBranch, actor string) (v vgraph.Version, err error) {
	defer s.observe("revertVersion", time.Now(), &err)

	tgt, err := s.branches.GetByName(docID, targetBranch)
	if err != nil {
		return vgraph.Version{}, err
	}
	if err = s.locks.CheckWritable(tgt.Head, actor); err != nil {
		return vgraph.Version{}, err
	}
	v, err = s.engine.Revert(versionID, tgt.ID, actor)
	if err != nil {
		return vgraph.Version{}, err
	}
	s.metrics.VersionsCreatedTotal.Inc()
	return v, nil
}
