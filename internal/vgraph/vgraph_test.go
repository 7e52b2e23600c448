package vgraph

import (
	"errors"
	"testing"

	"github.com/nholden/verso/internal/branch"
	"github.com/nholden/verso/internal/cas"
	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

type graph struct {
	store    *Store
	branches *branch.Manager
	main     branch.Branch
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	log := history.NewMemoryLog()
	branches := branch.NewManager(branch.NewMemoryStore(log))
	s := New(cas.NewMemoryCAS(), NewMemoryIndex(), branches.Store(), nil)

	main, err := branches.CreateRoot("doc-1", "", "alice")
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	return &graph{store: s, branches: branches, main: main}
}

func (g *graph) body(t *testing.T, title string) *document.Document {
	t.Helper()
	d, err := document.Normalize(map[string]any{"title": title}, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return d
}

// commit appends a version on the branch's current head.
func (g *graph) commit(t *testing.T, branchID, title string) Version {
	t.Helper()
	b, err := g.branches.Get(branchID)
	if err != nil {
		t.Fatalf("get branch: %v", err)
	}
	v, err := g.store.Append(b, g.body(t, title), "alice", AppendOptions{
		Action:       history.ActionVersionCreate,
		Summary:      "set title to " + title,
		ExpectedHead: b.Head,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return v
}

func TestAppendAdvancesHead(t *testing.T) {
	g := newGraph(t)
	v1 := g.commit(t, g.main.ID, "Study A")
	if len(v1.Parents) != 0 {
		t.Errorf("root version parents = %v", v1.Parents)
	}

	v2 := g.commit(t, g.main.ID, "Study A v2")
	if v2.MainlineParent() != v1.ID {
		t.Errorf("parent = %s, want %s", v2.MainlineParent(), v1.ID)
	}

	b, _ := g.branches.Get(g.main.ID)
	if b.Head != v2.ID {
		t.Errorf("head = %s, want %s", b.Head, v2.ID)
	}

	doc, err := g.store.BodyByID(v2.ID)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if document.Export(doc).(map[string]any)["title"] != "Study A v2" {
		t.Error("body does not match committed document")
	}
}

func TestStaleAppendLeavesNoRecord(t *testing.T) {
	g := newGraph(t)
	v1 := g.commit(t, g.main.ID, "Study A")
	g.commit(t, g.main.ID, "Study A v2")

	// Writer still holding v1 as the head.
	stale, _ := g.branches.Get(g.main.ID)
	stale.Head = v1.ID
	_, err := g.store.Append(stale, g.body(t, "conflicting edit"), "bob", AppendOptions{
		Action:       history.ActionVersionCreate,
		ExpectedHead: v1.ID,
	})
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("stale append: %v, want ErrConcurrentModification", err)
	}

	// The loser's record was rolled back; the lineage has two versions.
	lineage, err := g.store.List(g.main.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(lineage) != 2 {
		t.Errorf("lineage length = %d after lost race", len(lineage))
	}
}

func TestLineageNearestFirst(t *testing.T) {
	g := newGraph(t)
	v1 := g.commit(t, g.main.ID, "a")
	v2 := g.commit(t, g.main.ID, "b")
	v3 := g.commit(t, g.main.ID, "c")

	lineage, err := g.store.Lineage(v3.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{v3.ID, v2.ID, v1.ID}
	if len(lineage) != 3 {
		t.Fatalf("lineage = %d versions", len(lineage))
	}
	for i, v := range lineage {
		if v.ID != want[i] {
			t.Errorf("lineage[%d] = %s, want %s", i, v.ID, want[i])
		}
	}

	// A depth bound truncates the walk.
	bounded, err := g.store.Lineage(v3.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(bounded) != 2 {
		t.Errorf("bounded lineage = %d versions", len(bounded))
	}
}

func TestMergeVersionParents(t *testing.T) {
	g := newGraph(t)
	g.commit(t, g.main.ID, "a")
	v2 := g.commit(t, g.main.ID, "b")

	other, err := g.branches.Create("doc-1", "review", branch.RootBranchName, "", "alice")
	if err != nil {
		t.Fatal(err)
	}
	v3 := g.commit(t, other.ID, "review edit")

	b, _ := g.branches.Get(g.main.ID)
	merged, err := g.store.Append(b, g.body(t, "merged"), "alice", AppendOptions{
		Action:       history.ActionMerge,
		SecondParent: v3.ID,
		ExpectedHead: b.Head,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !merged.IsMerge() {
		t.Fatal("merge version not flagged as merge")
	}
	if merged.Parents[0] != v2.ID || merged.Parents[1] != v3.ID {
		t.Errorf("parents = %v, want [%s %s]", merged.Parents, v2.ID, v3.ID)
	}

	// Mainline walks stay on the branch the merge landed on.
	lineage, _ := g.store.Lineage(merged.ID, 0)
	for _, v := range lineage {
		if v.ID == v3.ID {
			t.Error("mainline walk crossed into the source branch")
		}
	}
}

func TestRestoreIsContentIdentical(t *testing.T) {
	g := newGraph(t)
	v1 := g.commit(t, g.main.ID, "original")
	g.commit(t, g.main.ID, "edited")

	b, _ := g.branches.Get(g.main.ID)
	restored, err := g.store.Restore(b, v1.ID, false, "alice")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID == v1.ID {
		t.Fatal("restore reused the target version record")
	}
	if restored.BodyHash != v1.BodyHash {
		t.Errorf("restored body hash = %s, want %s", restored.BodyHash, v1.BodyHash)
	}

	lineage, _ := g.store.List(g.main.ID, 0)
	if len(lineage) != 3 {
		t.Errorf("lineage = %d versions, history was rewritten", len(lineage))
	}
}

func TestRestoreWithBackup(t *testing.T) {
	g := newGraph(t)
	v1 := g.commit(t, g.main.ID, "original")
	v2 := g.commit(t, g.main.ID, "edited")

	b, _ := g.branches.Get(g.main.ID)
	restored, err := g.store.Restore(b, v1.ID, true, "alice")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	lineage, _ := g.store.List(g.main.ID, 0)
	if len(lineage) != 4 {
		t.Fatalf("lineage = %d versions, want original, edit, backup, restore", len(lineage))
	}
	backup := lineage[1]
	if backup.BodyHash != v2.BodyHash {
		t.Errorf("backup body hash = %s, want pre-restore head %s", backup.BodyHash, v2.BodyHash)
	}
	if restored.MainlineParent() != backup.ID {
		t.Errorf("restore parent = %s, want backup %s", restored.MainlineParent(), backup.ID)
	}
}

func TestDeleteRefusesParents(t *testing.T) {
	g := newGraph(t)
	v1 := g.commit(t, g.main.ID, "a")
	v2 := g.commit(t, g.main.ID, "b")

	if err := g.store.Delete(v1.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("delete with descendants: %v, want validation error", err)
	}

	// The leaf deletes; head reference checks are the caller's job.
	if err := g.store.Delete(v2.ID); err != nil {
		t.Fatalf("delete leaf: %v", err)
	}
	if _, err := g.store.Get(v2.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted version still readable: %v", err)
	}
}
