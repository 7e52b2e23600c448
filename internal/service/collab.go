package service

import (
	"time"

	"github.com/nholden/verso/internal/comment"
	"github.com/nholden/verso/internal/history"
	"github.com/nholden/verso/internal/lock"
	"github.com/nholden/verso/internal/tag"
)

// GetChangeHistory returns a document's audit trail, newest first.
func (s *Store) GetChangeHistory(docID string, limit int) ([]history.Entry, error) {
	return s.history.Query(history.Query{DocID: docID, Limit: limit})
}

// GetUserActivity returns one actor's entries on a document, newest
// first.
func (s *Store) GetUserActivity(docID, actor string, limit int) ([]history.Entry, error) {
	return s.history.Query(history.Query{DocID: docID, Actor: actor, Limit: limit})
}

// GetBranchHistory returns a branch's entries, newest first.
func (s *Store) GetBranchHistory(docID, branchName string, limit int) ([]history.Entry, error) {
	b, err := s.branches.GetByName(docID, branchName)
	if err != nil {
		return nil, err
	}
	return s.history.Query(history.Query{DocID: docID, BranchID: b.ID, Limit: limit})
}

// QueryHistory runs an arbitrary audit query.
func (s *Store) QueryHistory(q history.Query) ([]history.Entry, error) {
	return s.history.Query(q)
}

// CreateTag names a version. Tag names are unique per document.
func (s *Store) CreateTag(docID, versionID, name, tagType, actor string) (t tag.Tag, err error) {
	defer s.observe("createTag", time.Now(), &err)
	if err = validateName("tag", name); err != nil {
		return tag.Tag{}, err
	}
	if _, err = s.versions.Get(versionID); err != nil {
		return tag.Tag{}, err
	}
	return s.tags.Create(docID, versionID, name, tagType, actor)
}

// ListTags returns a document's tags in creation order.
func (s *Store) ListTags(docID string) ([]tag.Tag, error) {
	return s.tags.List(docID)
}

// ListTagsForVersion returns the tags naming a version.
func (s *Store) ListTagsForVersion(versionID string) ([]tag.Tag, error) {
	return s.tags.ListByVersion(versionID)
}

// DeleteTag removes a tag pointer; the version it named stays.
func (s *Store) DeleteTag(tagID, actor string) (err error) {
	defer s.observe("deleteTag", time.Now(), &err)
	return s.tags.Delete(tagID, actor)
}

// AddComment attaches a comment to a version, optionally anchored to a
// path and threaded under a parent comment.
func (s *Store) AddComment(docID, versionID, path, text, author, parentID string) (c comment.Comment, err error) {
	defer s.observe("addComment", time.Now(), &err)
	if _, err = s.versions.Get(versionID); err != nil {
		return comment.Comment{}, err
	}
	return s.comments.Create(docID, versionID, path, text, author, parentID)
}

// UpdateComment replaces a comment's text.
func (s *Store) UpdateComment(commentID, text string) (comment.Comment, error) {
	return s.comments.Update(commentID, text)
}

// ResolveComment marks a comment resolved; resolving twice is a no-op.
func (s *Store) ResolveComment(commentID, actor string) (comment.Comment, error) {
	return s.comments.Resolve(commentID, actor)
}

// DeleteComment removes a comment.
func (s *Store) DeleteComment(commentID string) error {
	return s.comments.Delete(commentID)
}

// ListComments returns a version's comments in creation order.
func (s *Store) ListComments(versionID string) ([]comment.Comment, error) {
	return s.comments.ListByVersion(versionID)
}

// AcquireLock takes an advisory lock on a version. A zero ttl uses the
// store's configured default; a zero default means no expiry.
func (s *Store) AcquireLock(docID, versionID, reason, holder string, ttl time.Duration) (l lock.Lock, err error) {
	defer s.observe("acquireLock", time.Now(), &err)

	if _, err = s.versions.Get(versionID); err != nil {
		return lock.Lock{}, err
	}
	if ttl == 0 {
		ttl = s.defaultLockTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}
	l, err = s.locks.Acquire(docID, versionID, reason, holder, expiresAt)
	if err != nil {
		return lock.Lock{}, err
	}
	s.metrics.LocksActiveGauge.Inc()
	return l, nil
}

// ReleaseLock releases a lock by id.
func (s *Store) ReleaseLock(lockID, actor string) (err error) {
	defer s.observe("releaseLock", time.Now(), &err)
	if err = s.locks.Release(lockID, actor); err != nil {
		return err
	}
	s.metrics.LocksActiveGauge.Dec()
	return nil
}

// ListLocks returns the unexpired locks on a version.
func (s *Store) ListLocks(versionID string) ([]lock.Lock, error) {
	return s.locks.List(versionID)
}

// LockClock overrides the lock service time source, for tests.
func (s *Store) LockClock(now func() time.Time) { s.locks.SetClock(now) }
