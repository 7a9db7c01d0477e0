package simpleresource

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrAlreadyExists indicates a create collided with an existing id
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNotFound indicates a conditional update targeted a missing record
	ErrNotFound = errors.New("resource not found")

	// ErrPolicyViolation indicates sensitive data was detected in the payload
	ErrPolicyViolation = errors.New("sensitive data detected in payload")

	// ErrInvalidCategory indicates a category outside the enumerated set
	ErrInvalidCategory = errors.New("invalid resource category")

	// ErrUpstreamUnavailable indicates a store-level outage; the caller may retry
	ErrUpstreamUnavailable = errors.New("store unavailable")
)

// PartialFailureError reports that the authoritative primary-store
// mutation succeeded but a dependent mirror step did not. It is
// returned together with the written record: the operation is still
// considered to have succeeded and the caller may retry the mirror
// independently.
type PartialFailureError struct {
	Op   string
	Step string
	Err  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("operation %s succeeded but %s failed: %v", e.Op, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// ArchiveError reports a failed archive-tier write during delete. It is
// fatal: the delete aborts and the primary record remains untouched.
type ArchiveError struct {
	ID  string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive write failed for resource %s: %v", e.ID, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// StoreError is produced by store adapters for infrastructure-level
// failures. Throttled marks sustained-overload rejections, which
// additionally trigger an out-of-band operator notification.
type StoreError struct {
	Store     string
	Op        string
	Key       string
	Throttled bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed for key %s on %s: %v", e.Op, e.Key, e.Store, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether err carries a throttled StoreError.
func IsThrottled(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Throttled
}
