package simpleresource

import (
	"context"
)

// Service defines the main interface for the simple-resource library
type Service interface {
	// CreateResource creates a resource with a fresh id, version 1, and
	// a fixed retention window, mirrors it to the backup active tier,
	// and emits an ItemCreated event. A failed mirror is reported as a
	// *PartialFailureError alongside the created record.
	CreateResource(ctx context.Context, req CreateResourceRequest) (*Resource, error)

	// GetResource returns the record by id, transparently repairing a
	// primary-store miss from the backup active tier. Returns
	// (nil, nil) when the record is absent from both stores; category
	// is an optional hint needed only for backup key reconstruction.
	GetResource(ctx context.Context, id string, category Category) (*Resource, error)

	// ListResources returns one page of a category, newest-first, with
	// an opaque continuation token.
	ListResources(ctx context.Context, req ListResourcesRequest) (*ResourceList, error)

	// UpdateResource applies payload fields via a conditional update,
	// re-mirrors the record, and emits an ItemUpdated event carrying
	// the changed field names. Mirror failure is reported as a
	// *PartialFailureError alongside the updated record.
	UpdateResource(ctx context.Context, req UpdateResourceRequest) (*Resource, error)

	// DeleteResource archives the record to the backup archive tier and
	// then removes the primary and active-tier copies. The archive
	// write is a hard precondition: if it fails the primary record is
	// left untouched. Returns (nil, nil) when the record is absent.
	DeleteResource(ctx context.Context, req DeleteResourceRequest) (*ArchivedResource, error)
}
