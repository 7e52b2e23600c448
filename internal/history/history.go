// Package history implements the append-only audit trail. Every
// mutating operation writes an entry; entries that accompany a branch
// head advance are committed in the same transaction as the head swap,
// so history is never ahead of or behind the branch state it describes.
package history

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nholden/verso/internal/store"
)

// Action identifies the kind of mutating operation an entry records.
type Action string

const (
	ActionDocumentCreate  Action = "document.create"
	ActionVersionCreate   Action = "version.create"
	ActionVersionRestore  Action = "version.restore"
	ActionVersionDelete   Action = "version.delete"
	ActionBranchCreate    Action = "branch.create"
	ActionBranchDelete    Action = "branch.delete"
	ActionBranchProtect   Action = "branch.protect"
	ActionBranchUnprotect Action = "branch.unprotect"
	ActionMerge           Action = "merge.complete"
	ActionCherryPick      Action = "version.cherry-pick"
	ActionRevert          Action = "version.revert"
	ActionTagCreate       Action = "tag.create"
	ActionTagDelete       Action = "tag.delete"
	ActionLockAcquire     Action = "lock.acquire"
	ActionLockRelease     Action = "lock.release"
	ActionCommentCreate   Action = "comment.create"
	ActionCommentResolve  Action = "comment.resolve"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	BranchID  string    `json:"branch_id,omitempty"`
	VersionID string    `json:"version_id,omitempty"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Summary   string    `json:"summary,omitempty"`
	At        time.Time `json:"at"`
}

// Query filters history entries. Zero-valued fields do not filter.
type Query struct {
	DocID     string
	BranchID  string
	VersionID string
	Actor     string
	Action    Action
	Since     time.Time
	Limit     int
}

func (q Query) matches(e Entry) bool {
	if q.DocID != "" && e.DocID != q.DocID {
		return false
	}
	if q.BranchID != "" && e.BranchID != q.BranchID {
		return false
	}
	if q.VersionID != "" && e.VersionID != q.VersionID {
		return false
	}
	if q.Actor != "" && e.Actor != q.Actor {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if !q.Since.IsZero() && e.At.Before(q.Since) {
		return false
	}
	return true
}

// Log is the append-only audit trail. Implementations must preserve
// append order; Query returns newest entries first.
type Log interface {
	Append(e Entry) error
	Query(q Query) ([]Entry, error)
}

// MemoryLog is an in-memory Log for tests and ephemeral stores.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append implements Log.Append.
func (l *MemoryLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// Query implements Log.Query.
func (l *MemoryLog) Query(q Query) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if !q.matches(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// BoltLog persists entries in the store database, keyed by a
// zero-padded monotonic sequence so iteration order is append order.
type BoltLog struct {
	db *store.DB
}

// NewBoltLog creates a Log backed by the store's history bucket.
func NewBoltLog(db *store.DB) *BoltLog {
	return &BoltLog{db: db}
}

// Append implements Log.Append in its own transaction. Entries that
// must commit atomically with a branch head swap go through TxAppend.
func (l *BoltLog) Append(e Entry) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		return TxAppend(tx, e)
	})
}

// TxAppend writes an entry within an open store transaction.
func TxAppend(tx *bbolt.Tx, e Entry) error {
	bucket := tx.Bucket(store.BucketHistory)
	seq, err := bucket.NextSequence()
	if err != nil {
		return fmt.Errorf("history sequence: %w", err)
	}
	return store.TxPutJSON(tx, store.BucketHistory, seqKey(seq), e)
}

// Query implements Log.Query.
func (l *BoltLog) Query(q Query) ([]Entry, error) {
	var matched []Entry
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(store.BucketHistory).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if !q.matches(e) {
				continue
			}
			matched = append(matched, e)
			if q.Limit > 0 && len(matched) >= q.Limit {
				return nil
			}
		}
		return nil
	})
	return matched, err
}

func seqKey(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}
