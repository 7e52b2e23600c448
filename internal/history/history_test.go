package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nholden/verso/internal/store"
)

func seed(t *testing.T, log Log) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "e1", DocID: "doc-1", BranchID: "b1", Actor: "alice", Action: ActionDocumentCreate, At: base},
		{ID: "e2", DocID: "doc-1", BranchID: "b1", VersionID: "v2", Actor: "alice", Action: ActionVersionCreate, At: base.Add(time.Minute)},
		{ID: "e3", DocID: "doc-1", BranchID: "b2", VersionID: "v3", Actor: "bob", Action: ActionVersionCreate, At: base.Add(2 * time.Minute)},
		{ID: "e4", DocID: "doc-2", BranchID: "b3", Actor: "bob", Action: ActionDocumentCreate, At: base.Add(3 * time.Minute)},
		{ID: "e5", DocID: "doc-1", BranchID: "b1", VersionID: "v4", Actor: "bob", Action: ActionMerge, At: base.Add(4 * time.Minute)},
	}
	for _, e := range entries {
		if err := log.Append(e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func runLogTests(t *testing.T, log Log) {
	seed(t, log)

	t.Run("newest first", func(t *testing.T) {
		got, err := log.Query(Query{DocID: "doc-1"})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"e5", "e3", "e2", "e1"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("order = %v, want %v", ids(got), want)
		}
	})

	t.Run("by actor", func(t *testing.T) {
		got, err := log.Query(Query{DocID: "doc-1", Actor: "bob"})
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(ids(got)) != fmt.Sprint([]string{"e5", "e3"}) {
			t.Errorf("bob's entries = %v", ids(got))
		}
	})

	t.Run("by branch and action", func(t *testing.T) {
		got, err := log.Query(Query{BranchID: "b1", Action: ActionVersionCreate})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "e2" {
			t.Errorf("filtered = %v", ids(got))
		}
	})

	t.Run("since", func(t *testing.T) {
		since := time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC)
		got, err := log.Query(Query{DocID: "doc-1", Since: since})
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(ids(got)) != fmt.Sprint([]string{"e5", "e3"}) {
			t.Errorf("since = %v", ids(got))
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, err := log.Query(Query{DocID: "doc-1", Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(ids(got)) != fmt.Sprint([]string{"e5", "e3"}) {
			t.Errorf("limited = %v", ids(got))
		}
	})
}

func TestMemoryLog(t *testing.T) {
	runLogTests(t, NewMemoryLog())
}

func TestBoltLog(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	runLogTests(t, NewBoltLog(db))
}
