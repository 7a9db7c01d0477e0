package simpleresource

import (
	"context"
	"time"
)

// PrimaryStore is the interface to the strongly-consistent
// authoritative record store. Conditional operations must be atomic:
// the condition check and the mutation happen as one step.
type PrimaryStore interface {
	// PutIfNotExists writes the record only if no record with the same
	// id exists. Returns ErrAlreadyExists when the precondition fails.
	PutIfNotExists(ctx context.Context, res *Resource) error

	// Get returns the record by id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Resource, error)

	// Put writes the record unconditionally. Used by the read-through
	// repair path.
	Put(ctx context.Context, res *Resource) error

	// Update applies the supplied payload fields, stamps
	// updatedAt/updatedBy, and increments version by exactly one,
	// conditioned on the record existing. Returns ErrNotFound when the
	// condition fails, otherwise the full new record as stored.
	Update(ctx context.Context, params UpdateParams) (*Resource, error)

	// DeleteIfExists removes the record if present. The bool reports
	// whether a record was actually removed; already-gone is not an
	// error.
	DeleteIfExists(ctx context.Context, id string) (bool, error)

	// Query returns one page of a category partition, newest-first,
	// bounded by Limit. CreatedAfter, when set, is applied by the store
	// after the index scan, not client-side.
	Query(ctx context.Context, q Query) (*ResourceList, error)
}

// UpdateParams carries a conditional update for the primary store.
type UpdateParams struct {
	ID        string
	Fields    map[string]interface{}
	UpdatedBy string
	Now       time.Time
}

// Query carries a paged category listing for the primary store.
type Query struct {
	Category     Category
	Limit        int
	NextToken    string
	CreatedAfter *time.Time
}

// BackupStore is the interface to the durable blob store used for
// recovery and archival. The active tier mirrors live records; the
// archive tier holds post-deletion records on a colder storage class.
type BackupStore interface {
	PutActive(ctx context.Context, res *Resource) error

	// GetActive returns the mirrored record, or (nil, nil) when absent.
	GetActive(ctx context.Context, category Category, id string) (*Resource, error)

	DeleteActive(ctx context.Context, category Category, id string) error

	PutArchive(ctx context.Context, rec *ArchivedResource) error
}

// Publisher is the interface to the event bus, the optional
// async-processing queue, and the notification channel. All calls are
// best-effort from the orchestrator's point of view.
type Publisher interface {
	// PublishEvent emits a domain event. Fire-and-forget semantics are
	// acceptable.
	PublishEvent(ctx context.Context, event Event) error

	// Enqueue hands a message to the async-processing queue. When no
	// queue is configured the call is a no-op.
	Enqueue(ctx context.Context, msg QueueMessage) error

	// Notify sends a point notification, used for deletions and
	// critical-error alerts.
	Notify(ctx context.Context, subject, message string) error
}

// Classifier detects sensitive-data patterns in submitted payloads.
// Detection failure is treated as "no sensitive data found" by the
// orchestrator (fail-open), logged as a degraded-mode event.
type Classifier interface {
	ContainsSensitiveData(ctx context.Context, text string) (bool, error)
}

// MetricsSink is a passive fire-and-forget observer. Implementations
// must never block the calling operation on delivery.
type MetricsSink interface {
	Count(name string, n int)
	Annotate(key, value string)
}
