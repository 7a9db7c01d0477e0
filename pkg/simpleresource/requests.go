package simpleresource

import "time"

// Request DTOs

// CreateResourceRequest contains parameters for creating a resource.
// The request is assumed to be authenticated and schema-validated
// upstream; the service still enforces the category set and payload
// policy.
type CreateResourceRequest struct {
	Category Category
	Data     map[string]interface{}
	Owner    string
}

// ListResourcesRequest contains parameters for listing a category.
// Limit defaults to 20 and is clamped to 100. NextToken is the opaque
// continuation token from a previous page.
type ListResourcesRequest struct {
	Category     Category
	Limit        int
	NextToken    string
	CreatedAfter *time.Time
}

// UpdateResourceRequest contains parameters for updating a resource's
// payload fields. Only the named fields are touched; server-computed
// fields (version, updatedAt) are managed by the store.
type UpdateResourceRequest struct {
	ID        string
	Fields    map[string]interface{}
	UpdatedBy string
}

// DeleteResourceRequest contains parameters for deleting a resource.
// Category is an optional hint used only to reconstruct the backup key
// if the record has to be recovered before deletion.
type DeleteResourceRequest struct {
	ID        string
	Category  Category
	DeletedBy string
}
