// Package lock implements advisory pessimistic locks on versions.
//
// Locks serialize concurrent edits when callers opt in: version
// creation and restore check for an active foreign lock on the branch
// head and fail fast instead of queuing. Expiry is lazy; an expired
// lock is treated as absent wherever it is read, and no background
// sweeper exists.
package lock

import (
	"time"

	"github.com/google/uuid"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

// Lock is an advisory hold on a version.
type Lock struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	VersionID string    `json:"version_id"`
	Reason    string    `json:"reason,omitempty"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero means no expiry
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the lock is unexpired at now.
func (l Lock) ActiveAt(now time.Time) bool {
	return l.ExpiresAt.IsZero() || now.Before(l.ExpiresAt)
}

// Store persists lock records.
type Store interface {
	Put(l Lock) error
	Get(id string) (Lock, error)
	Delete(id string) error
	ListByVersion(versionID string) ([]Lock, error)
}

// Service enforces lock semantics over a Store.
type Service struct {
	store Store
	log   history.Log
	now   func() time.Time
}

// NewService creates a lock service.
func NewService(store Store, log history.Log) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Acquire locks a version for holder. An unexpired lock held by a
// different caller fails with AlreadyLockedError; re-acquiring one's
// own lock refreshes its reason and expiry.
func (s *Service) Acquire(docID, versionID, reason, holder string, expiresAt time.Time) (Lock, error) {
	now := s.now().UTC()
	existing, err := s.activeAt(versionID, now)
	if err != nil {
		return Lock{}, err
	}
	if existing != nil && existing.Holder != holder {
		return Lock{}, &domain.AlreadyLockedError{VersionID: versionID, Holder: existing.Holder}
	}

	l := Lock{
		ID:        uuid.NewString(),
		DocID:     docID,
		VersionID: versionID,
		Reason:    reason,
		Holder:    holder,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if existing != nil {
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
	}
	if err := s.store.Put(l); err != nil {
		return Lock{}, err
	}
	err = s.log.Append(history.Entry{
		ID:        uuid.NewString(),
		DocID:     docID,
		VersionID: versionID,
		Actor:     holder,
		Action:    history.ActionLockAcquire,
		Summary:   reason,
		At:        now,
	})
	if err != nil {
		return Lock{}, err
	}
	return l, nil
}

// Release removes a lock by id. Releasing an unknown lock is NotFound.
func (s *Service) Release(lockID, actor string) error {
	l, err := s.store.Get(lockID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(lockID); err != nil {
		return err
	}
	return s.log.Append(history.Entry{
		ID:        uuid.NewString(),
		DocID:     l.DocID,
		VersionID: l.VersionID,
		Actor:     actor,
		Action:    history.ActionLockRelease,
		At:        s.now().UTC(),
	})
}

// Active returns the unexpired lock on a version, if any.
func (s *Service) Active(versionID string) (*Lock, error) {
	return s.activeAt(versionID, s.now().UTC())
}

// CheckWritable fails with LockHeldError when an active lock on the
// version is held by someone other than actor.
func (s *Service) CheckWritable(versionID, actor string) error {
	active, err := s.Active(versionID)
	if err != nil {
		return err
	}
	if active != nil && active.Holder != actor {
		return &domain.LockHeldError{VersionID: versionID, Holder: active.Holder}
	}
	return nil
}

// List returns the unexpired locks on a version.
func (s *Service) List(versionID string) ([]Lock, error) {
	locks, err := s.store.ListByVersion(versionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var active []Lock
	for _, l := range locks {
		if l.ActiveAt(now) {
			active = append(active, l)
		}
	}
	return active, nil
}

func (s *Service) activeAt(versionID string, now time.Time) (*Lock, error) {
	locks, err := s.store.ListByVersion(versionID)
	if err != nil {
		return nil, err
	}
	for _, l := range locks {
		if l.ActiveAt(now) {
			held := l
			return &held, nil
		}
	}
	return nil, nil
}
