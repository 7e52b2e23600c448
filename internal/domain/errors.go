// Package domain defines the error taxonomy shared by every verso component.
//
// Errors come in two layers: sentinel values for errors.Is matching, and
// typed structs carrying enough context for a caller to correct the
// failure (which branch, which path, which lock). Every typed error
// implements Is against its sentinel so both styles interoperate.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrBranchExists           = errors.New("branch already exists")
	ErrProtectedBranch        = errors.New("branch is protected")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrLockHeld               = errors.New("version is locked")
	ErrAlreadyLocked          = errors.New("lock already held")
	ErrConflictsUnresolved    = errors.New("merge conflicts unresolved")
	ErrMissingResolution      = errors.New("missing conflict resolution")
	ErrInvalidPath            = errors.New("invalid path")
	ErrValidation             = errors.New("validation failed")
)

// NotFoundError reports an absent resource by kind and identifier.
type NotFoundError struct {
	Kind string // "version", "branch", "tag", "comment", "lock", "merge request", "document"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// BranchExistsError reports a duplicate branch name within a document.
type BranchExistsError struct {
	Name string
}

func (e *BranchExistsError) Error() string {
	return fmt.Sprintf("branch %q already exists", e.Name)
}

func (e *BranchExistsError) Is(target error) bool { return target == ErrBranchExists }

// ProtectedBranchError reports a rejected mutation of a protected branch.
type ProtectedBranchError struct {
	Name   string
	Reason string
}

func (e *ProtectedBranchError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("branch %q is protected", e.Name)
	}
	return fmt.Sprintf("branch %q is protected: %s", e.Name, e.Reason)
}

func (e *ProtectedBranchError) Is(target error) bool { return target == ErrProtectedBranch }

// ConcurrentModificationError reports a lost head compare-and-swap.
// Callers are expected to re-read the branch head, re-diff, and retry.
type ConcurrentModificationError struct {
	BranchID string
	Expected string // head the caller swapped against
	Actual   string // head found at commit time
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("branch %s head moved from %s to %s during update",
		e.BranchID, e.Expected, e.Actual)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// LockHeldError reports a mutation blocked by another caller's active lock.
type LockHeldError struct {
	VersionID string
	Holder    string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("version %s is locked by %s", e.VersionID, e.Holder)
}

func (e *LockHeldError) Is(target error) bool { return target == ErrLockHeld }

// AlreadyLockedError reports a lock acquisition against an existing lock.
type AlreadyLockedError struct {
	VersionID string
	Holder    string
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("version %s already locked by %s", e.VersionID, e.Holder)
}

func (e *AlreadyLockedError) Is(target error) bool { return target == ErrAlreadyLocked }

// InvalidPathError reports a structural path absent from a document.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("path %s not present in document", e.Path)
}

func (e *InvalidPathError) Is(target error) bool { return target == ErrInvalidPath }

// ValidationError reports malformed input, such as a duplicate identity
// key inside a sequence or an ill-formed branch name.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
