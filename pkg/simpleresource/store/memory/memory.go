package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Store implements simpleresource.PrimaryStore using in-memory storage.
// It honors the full conditional-write contract, so service behavior in
// tests and development matches a real backend.
type Store struct {
	mu      sync.RWMutex
	records map[string]*simpleresource.Resource
}

// New creates a new in-memory primary store
func New() *Store {
	return &Store{
		records: make(map[string]*simpleresource.Resource),
	}
}

func (s *Store) PutIfNotExists(ctx context.Context, res *simpleresource.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[res.ID]; exists {
		return simpleresource.ErrAlreadyExists
	}
	s.records[res.ID] = res.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*simpleresource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, exists := s.records[id]
	if !exists {
		return nil, nil
	}
	return res.Clone(), nil
}

func (s *Store) Put(ctx context.Context, res *simpleresource.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[res.ID] = res.Clone()
	return nil
}

func (s *Store) Update(ctx context.Context, params simpleresource.UpdateParams) (*simpleresource.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[params.ID]
	if !exists {
		return nil, simpleresource.ErrNotFound
	}

	updated := current.Clone()
	if updated.Data == nil {
		updated.Data = make(map[string]interface{}, len(params.Fields))
	}
	for k, v := range params.Fields {
		updated.Data[k] = v
	}
	updated.UpdatedAt = params.Now
	updated.UpdatedBy = params.UpdatedBy
	updated.Version = current.Version + 1

	s.records[params.ID] = updated
	return updated.Clone(), nil
}

func (s *Store) DeleteIfExists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *Store) Query(ctx context.Context, q simpleresource.Query) (*simpleresource.ResourceList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*simpleresource.Resource
	for _, res := range s.records {
		if res.Category != q.Category {
			continue
		}
		matched = append(matched, res)
	}

	// Newest-first by creation time, id as the tiebreaker so the cursor
	// stays stable across identical timestamps.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start := 0
	if q.NextToken != "" {
		afterID, err := decodeToken(q.NextToken)
		if err != nil {
			return nil, err
		}
		start = len(matched)
		for i, res := range matched {
			if res.ID == afterID {
				start = i + 1
				break
			}
		}
	}

	var items []*simpleresource.Resource
	i := start
	for ; i < len(matched) && len(items) < q.Limit; i++ {
		res := matched[i]
		if q.CreatedAfter != nil && res.CreatedAt.Before(*q.CreatedAfter) {
			// Post-index filter: the row is consumed from the page
			// window but excluded from the results.
			continue
		}
		items = append(items, res.Clone())
	}

	list := &simpleresource.ResourceList{
		Items: items,
		Count: len(items),
	}
	if i > start && i < len(matched) {
		list.NextToken = encodeToken(matched[i-1].ID)
	}
	return list, nil
}

func encodeToken(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed continuation token: %w", err)
	}
	return string(raw), nil
}
