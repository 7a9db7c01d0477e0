package simpleresource

import (
	"time"
)

// Category is the domain type for the fixed set of resource categories.
type Category string

// Category constants (typed).
const (
	CategoryProduct Category = "product"
	CategoryUser    Category = "user"
	CategoryOrder   Category = "order"
)

// IsValid reports whether the category is one of the enumerated set.
func (c Category) IsValid() bool {
	switch c {
	case CategoryProduct, CategoryUser, CategoryOrder:
		return true
	}
	return false
}

// Resource is the unit of storage.
//
// ID and Category are immutable once assigned. Version starts at 1 and
// is incremented exactly once per successful update; it doubles as the
// ETag value on the HTTP surface. ExpiresAt is fixed at creation time
// (creation + retention window) and makes the record eligible for
// passive removal by the primary store once past.
type Resource struct {
	ID        string                 `json:"id"`
	Category  Category               `json:"category"`
	Data      map[string]interface{} `json:"data"`
	Owner     string                 `json:"owner"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	UpdatedBy string                 `json:"updated_by,omitempty"`
	Version   int64                  `json:"version"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// Clone returns a deep-enough copy for handing records across the
// service boundary without sharing the payload map.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Data != nil {
		cp.Data = make(map[string]interface{}, len(r.Data))
		for k, v := range r.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}

// ArchivedResource is the terminal product of a delete: the last state
// of the record plus deletion provenance. Never mutated afterward.
type ArchivedResource struct {
	Resource
	DeletedAt time.Time `json:"deleted_at"`
	DeletedBy string    `json:"deleted_by"`
}

// ResourceList is one page of a category query.
type ResourceList struct {
	Items []*Resource `json:"items"`
	// NextToken is an opaque continuation token issued by the primary
	// store. Empty when the listing is exhausted.
	NextToken string `json:"next_token,omitempty"`
	Count     int    `json:"count"`
}

// Event types published after successful mutations. The same names are
// used for the corresponding counter metrics.
const (
	EventItemCreated    = "ItemCreated"
	EventItemUpdated    = "ItemUpdated"
	EventItemDeleted    = "ItemDeleted"
	MetricItemRetrieved = "ItemRetrieved"
	MetricItemsListed   = "ItemsListed"
)

// Event is a best-effort domain event.
type Event struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Detail map[string]interface{} `json:"detail"`
}

// QueueMessage is handed to the async-processing queue when one is
// configured.
type QueueMessage struct {
	Action   string    `json:"action"`
	Category Category  `json:"category"`
	Resource *Resource `json:"resource"`
}
