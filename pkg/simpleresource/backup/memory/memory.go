package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Backend is an in-memory implementation of the
// simpleresource.BackupStore interface
type Backend struct {
	mu      sync.RWMutex
	active  map[string]*simpleresource.Resource
	archive map[string]*simpleresource.ArchivedResource
}

// New creates a new in-memory backup store
func New() *Backend {
	return &Backend{
		active:  make(map[string]*simpleresource.Resource),
		archive: make(map[string]*simpleresource.ArchivedResource),
	}
}

func key(category simpleresource.Category, id string) string {
	return fmt.Sprintf("%s/%s", category, id)
}

func (b *Backend) PutActive(ctx context.Context, res *simpleresource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.active[key(res.Category, res.ID)] = res.Clone()
	return nil
}

func (b *Backend) GetActive(ctx context.Context, category simpleresource.Category, id string) (*simpleresource.Resource, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	res, exists := b.active[key(category, id)]
	if !exists {
		return nil, nil
	}
	return res.Clone(), nil
}

func (b *Backend) DeleteActive(ctx context.Context, category simpleresource.Category, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.active, key(category, id))
	return nil
}

func (b *Backend) PutArchive(ctx context.Context, rec *simpleresource.ArchivedResource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *rec
	cp.Resource = *rec.Resource.Clone()
	b.archive[key(rec.Category, rec.ID)] = &cp
	return nil
}

// GetArchive returns an archived record, or nil when absent. Not part
// of the BackupStore contract; used by tests and operational tooling.
func (b *Backend) GetArchive(category simpleresource.Category, id string) *simpleresource.ArchivedResource {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, exists := b.archive[key(category, id)]
	if !exists {
		return nil
	}
	cp := *rec
	cp.Resource = *rec.Resource.Clone()
	return &cp
}
