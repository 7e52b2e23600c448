package service

import (
	"errors"
	"testing"
	"time"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/merge"
	"github.com/nholden/verso/internal/vgraph"
)

func protocolBody(title, an1Name string) map[string]any {
	return map[string]any{
		"title": title,
		"analyses": []any{
			map[string]any{"id": "AN1", "name": an1Name, "population": "ITT"},
			map[string]any{"id": "AN2", "name": "Secondary", "population": "PP"},
		},
	}
}

func newStore(t *testing.T) (*Store, Document) {
	t.Helper()
	s := NewMemory(Options{})
	doc, main, initial, err := s.CreateDocument("Protocol A", protocolBody("Study A", "Primary"), "alice")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if main.Name != branch.RootBranchName || main.Head != initial.ID {
		t.Fatalf("bootstrap: main=%+v initial=%s", main, initial.ID)
	}
	return s, doc
}

func TestCreateDocumentBootstrap(t *testing.T) {
	s, doc := newStore(t)

	main, err := s.GetBranch(doc.ID, "main")
	if err != nil {
		t.Fatalf("get main: %v", err)
	}
	if !main.IsRoot() {
		t.Error("main branch is not root")
	}
	body, err := s.GetVersionBody(main.Head)
	if err != nil {
		t.Fatalf("get head body: %v", err)
	}
	if body.(map[string]any)["title"] != "Study A" {
		t.Errorf("head body = %v", body)
	}

	entries, err := s.GetChangeHistory(doc.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var sawCreate bool
	for _, e := range entries {
		if e.Action == history.ActionDocumentCreate {
			sawCreate = true
		}
	}
	if !sawCreate {
		t.Error("no document.create entry in history")
	}

	if _, _, _, err := s.CreateDocument("", nil, "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty name: %v, want validation error", err)
	}
}

func TestCreateVersionDiffAndAudit(t *testing.T) {
	s, doc := newStore(t)

	v, diff, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v2", "Primary"), "bob")
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if diff.Summary.TotalChanges != 1 || diff.Summary.ValuesChanged != 1 {
		t.Errorf("diff summary = %+v, want one value change", diff.Summary)
	}

	main, _ := s.GetBranch(doc.ID, "main")
	if main.Head != v.ID {
		t.Errorf("head = %s, want %s", main.Head, v.ID)
	}

	// An identical body is rejected rather than committed as noise.
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v2", "Primary"), "bob"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unchanged body: %v, want validation error", err)
	}

	entries, err := s.GetBranchHistory(doc.ID, "main", 1)
	if err != nil {
		t.Fatalf("branch history: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != history.ActionVersionCreate {
		t.Fatalf("latest entry = %+v", entries)
	}
	if entries[0].Summary == "" {
		t.Error("version.create entry has no diff summary")
	}
}

func TestRestrictPushBlocksDirectWrites(t *testing.T) {
	s, doc := newStore(t)

	if _, err := s.ProtectBranch(doc.ID, "main", branch.Protection{RestrictPush: true}, "alice"); err != nil {
		t.Fatalf("protect: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("X", "Primary"), "bob"); !errors.Is(err, domain.ErrProtectedBranch) {
		t.Fatalf("push to restricted branch: %v, want ErrProtectedBranch", err)
	}
	if _, err := s.UnprotectBranch(doc.ID, "main", "alice"); err != nil {
		t.Fatalf("unprotect: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("X", "Primary"), "bob"); err != nil {
		t.Fatalf("push after unprotect: %v", err)
	}
}

// Scenario: two reviewers branch off main, edit disjoint fields, and
// both branches merge back cleanly.
func TestDisjointBranchesMergeCleanly(t *testing.T) {
	s, doc := newStore(t)

	if _, err := s.CreateBranch(doc.ID, "stats-review", "main", "", "bob"); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if _, err := s.CreateBranch(doc.ID, "medical-review", "main", "", "carol"); err != nil {
		t.Fatalf("branch: %v", err)
	}

	if _, _, err := s.CreateVersion(doc.ID, "stats-review", protocolBody("Study A", "Primary Endpoint"), "bob"); err != nil {
		t.Fatalf("stats edit: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "medical-review", protocolBody("Study A (amended)", "Primary"), "carol"); err != nil {
		t.Fatalf("medical edit: %v", err)
	}

	r1, err := s.CreateMergeRequest(doc.ID, "stats-review", "main", "bob")
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	out1, err := s.AutoMerge(r1.ID, "bob")
	if err != nil || !out1.Success {
		t.Fatalf("merge 1: %v %+v", err, out1)
	}

	r2, err := s.CreateMergeRequest(doc.ID, "medical-review", "main", "carol")
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	out2, err := s.AutoMerge(r2.ID, "carol")
	if err != nil || !out2.Success {
		t.Fatalf("merge 2: %v %+v", err, out2)
	}

	main, _ := s.GetBranch(doc.ID, "main")
	body, err := s.GetVersionBody(main.Head)
	if err != nil {
		t.Fatalf("merged body: %v", err)
	}
	m := body.(map[string]any)
	if m["title"] != "Study A (amended)" {
		t.Errorf("title = %v", m["title"])
	}
	an1 := m["analyses"].([]any)[0].(map[string]any)
	if an1["name"] != "Primary Endpoint" {
		t.Errorf("analyses[AN1].name = %v", an1["name"])
	}
}

// Scenario: both sides change the same field differently; the merge
// conflicts, suggestions are offered, and a manual resolution lands.
func TestConflictedMergeWithSuggestions(t *testing.T) {
	s, doc := newStore(t)

	if _, err := s.CreateBranch(doc.ID, "review", "main", "", "bob"); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "review", protocolBody("Study A v2", "Primary"), "bob"); err != nil {
		t.Fatalf("review edit: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v3", "Primary"), "alice"); err != nil {
		t.Fatalf("main edit: %v", err)
	}

	r, err := s.CreateMergeRequest(doc.ID, "review", "main", "bob")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	out, err := s.AutoMerge(r.ID, "bob")
	if err != nil {
		t.Fatalf("auto merge: %v", err)
	}
	if out.Success || len(out.Conflicts) != 1 {
		t.Fatalf("outcome = %+v, want one conflict", out)
	}

	suggestions, err := s.SuggestResolutions(r.ID)
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(suggestions) != 1 || len(suggestions[0].Suggestions) < 2 {
		t.Fatalf("suggestions = %+v", suggestions)
	}

	done, err := s.ManualMerge(r.ID, []merge.Resolution{{Path: "title", Value: "Study A final"}}, "bob")
	if err != nil || !done.Success {
		t.Fatalf("manual merge: %v %+v", err, done)
	}

	main, _ := s.GetBranch(doc.ID, "main")
	body, _ := s.GetVersionBody(main.Head)
	if body.(map[string]any)["title"] != "Study A final" {
		t.Errorf("title = %v", body.(map[string]any)["title"])
	}
}

// Scenario: an expired lock no longer blocks writes, and foreign active
// locks do.
func TestLockLifecycle(t *testing.T) {
	s, doc := newStore(t)

	now := time.Now().UTC()
	clock := now
	s.LockClock(func() time.Time { return clock })

	main, _ := s.GetBranch(doc.ID, "main")
	if _, err := s.AcquireLock(doc.ID, main.Head, "reviewing", "alice", 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// A foreign writer is blocked while the lock is active.
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("X", "Primary"), "bob"); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("write under foreign lock: %v, want ErrLockHeld", err)
	}
	// The holder writes through their own lock.
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v2", "Primary"), "alice"); err != nil {
		t.Fatalf("holder write: %v", err)
	}

	// A second lock with a TTL expires and becomes inert.
	main, _ = s.GetBranch(doc.ID, "main")
	if _, err := s.AcquireLock(doc.ID, main.Head, "final check", "alice", time.Hour); err != nil {
		t.Fatalf("acquire with ttl: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Y", "Primary"), "bob"); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("write under ttl lock: %v, want ErrLockHeld", err)
	}

	clock = now.Add(2 * time.Hour)
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Y", "Primary"), "bob"); err != nil {
		t.Fatalf("write after expiry: %v", err)
	}
	locks, err := s.ListLocks(main.Head)
	if err != nil {
		t.Fatalf("list locks: %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("expired lock still listed: %+v", locks)
	}
}

// Scenario: two writers race on the same head; exactly one commit wins
// and the loser succeeds after re-reading.
func TestRacingWritersOneWins(t *testing.T) {
	s, doc := newStore(t)

	head, _ := s.GetBranch(doc.ID, "main")

	// First writer lands normally.
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v2", "Primary"), "bob"); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	// Second writer committing against the stale head loses the swap.
	stale := head
	newDoc, err := s.normalize(protocolBody("Study A v2-carol", "Primary"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	_, err = s.versions.Append(stale, newDoc, "carol", vgraph.AppendOptions{
		Action:       history.ActionVersionCreate,
		ExpectedHead: stale.Head,
	})
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("stale append: %v, want ErrConcurrentModification", err)
	}

	// Retrying through the facade re-reads the head and succeeds.
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v2-carol", "Primary"), "carol"); err != nil {
		t.Fatalf("retry: %v", err)
	}

	versions, err := s.ListVersions(doc.ID, "main", 0)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Errorf("mainline has %d versions, want 3", len(versions))
	}
}

func TestDeleteVersionReferenceChecks(t *testing.T) {
	s, doc := newStore(t)

	first, _ := s.GetBranch(doc.ID, "main")
	v2, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v2", "Primary"), "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Head versions are not deletable.
	if err := s.DeleteVersion(doc.ID, v2.ID, "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("delete head: %v, want validation error", err)
	}
	// Versions with children are not deletable.
	if err := s.DeleteVersion(doc.ID, first.Head, "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("delete parent: %v, want validation error", err)
	}

	// A tagged leaf stays undeletable until the tag goes.
	if _, _, err := s.CreateVersion(doc.ID, "main", protocolBody("Study A v3", "Primary"), "bob"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tg, err := s.CreateTag(doc.ID, v2.ID, "review-1", "review", "alice")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if err := s.DeleteVersion(doc.ID, v2.ID, "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("delete tagged: %v, want validation error", err)
	}
	if err := s.DeleteTag(tg.ID, "alice"); err != nil {
		t.Fatalf("delete tag: %v", err)
	}
	// Still the parent of v3, so still refused.
	if err := s.DeleteVersion(doc.ID, v2.ID, "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("delete mid-chain: %v, want validation error", err)
	}
}

func TestCompareBranchesAndUserActivity(t *testing.T) {
	s, doc := newStore(t)

	if _, err := s.CreateBranch(doc.ID, "review", "main", "", "bob"); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if _, _, err := s.CreateVersion(doc.ID, "review", protocolBody("Study A v2", "Primary"), "bob"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	d, err := s.CompareBranches(doc.ID, "main", "review")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if d.Summary.TotalChanges != 1 {
		t.Errorf("diff = %+v, want one change", d.Summary)
	}

	activity, err := s.GetUserActivity(doc.ID, "bob", 0)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) != 2 { // branch.create + version.create
		t.Errorf("bob's activity has %d entries, want 2: %+v", len(activity), activity)
	}
}

func TestCommentsThread(t *testing.T) {
	s, doc := newStore(t)
	main, _ := s.GetBranch(doc.ID, "main")

	root, err := s.AddComment(doc.ID, main.Head, "analyses[AN1].name", "is this the final name?", "bob", "")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := s.AddComment(doc.ID, main.Head, "", "yes, confirmed", "alice", root.ID); err != nil {
		t.Fatalf("reply: %v", err)
	}
	resolved, err := s.ResolveComment(root.ID, "alice")
	if err != nil || !resolved.Resolved {
		t.Fatalf("resolve: %v %+v", err, resolved)
	}
	again, err := s.ResolveComment(root.ID, "alice")
	if err != nil || !again.Resolved {
		t.Fatalf("re-resolve must be a no-op: %v", err)
	}
	all, err := s.ListComments(main.Head)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("comments = %d, want 2", len(all))
	}
}
