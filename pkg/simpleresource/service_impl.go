package simpleresource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Defaults for service construction.
const (
	// DefaultRetention is the fixed retention window applied at
	// creation time.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultListLimit is the page size used when a listing does not
	// supply one.
	DefaultListLimit = 20

	// MaxListLimit is the hard clamp on a listing page size.
	MaxListLimit = 100
)

// service implements the Service interface
type service struct {
	primary    PrimaryStore
	backup     BackupStore
	publisher  Publisher
	classifier Classifier
	metrics    MetricsSink
	logger     *slog.Logger
	newID      func() string
	retention  time.Duration
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithPrimaryStore sets the authoritative record store for the service
func WithPrimaryStore(store PrimaryStore) Option {
	return func(s *service) {
		s.primary = store
	}
}

// WithBackupStore sets the durable backup store for the service
func WithBackupStore(store BackupStore) Option {
	return func(s *service) {
		s.backup = store
	}
}

// WithPublisher sets the event publisher for the service
func WithPublisher(pub Publisher) Option {
	return func(s *service) {
		s.publisher = pub
	}
}

// WithClassifier sets the sensitive-data classifier for the service
func WithClassifier(c Classifier) Option {
	return func(s *service) {
		s.classifier = c
	}
}

// WithMetrics sets the metrics sink for the service
func WithMetrics(m MetricsSink) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// WithIDGenerator overrides the id-generation strategy. Uniqueness is
// the generator's responsibility; the store's not-exists precondition
// is the only backstop.
func WithIDGenerator(gen func() string) Option {
	return func(s *service) {
		s.newID = gen
	}
}

// WithRetention overrides the retention window applied at creation
func WithRetention(d time.Duration) Option {
	return func(s *service) {
		s.retention = d
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		publisher:  NewNoopPublisher(),
		classifier: NewNoopClassifier(),
		metrics:    NewNoopMetrics(),
		retention:  DefaultRetention,
		newID: func() string {
			return ulid.Make().String()
		},
		now: time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.primary == nil {
		return nil, fmt.Errorf("primary store is required")
	}
	if s.backup == nil {
		return nil, fmt.Errorf("backup store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) CreateResource(ctx context.Context, req CreateResourceRequest) (*Resource, error) {
	if !req.Category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	data := SanitizePayload(req.Data)

	flagged, err := s.classifySensitive(ctx, data)
	if err != nil {
		// Fail-open: a broken classifier must not block writes, but the
		// degraded mode is visible in the logs.
		s.logger.WarnContext(ctx, "sensitive-data detection unavailable, proceeding without it",
			"error", err)
	}
	if flagged {
		return nil, ErrPolicyViolation
	}

	now := s.now().UTC()
	res := &Resource{
		ID:        s.newID(),
		Category:  req.Category,
		Data:      data,
		Owner:     req.Owner,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		ExpiresAt: now.Add(s.retention),
	}

	if err := s.primary.PutIfNotExists(ctx, res); err != nil {
		s.alertIfThrottled(ctx, "create", err)
		return nil, err
	}

	mirrorErr := s.backup.PutActive(ctx, res)
	if mirrorErr != nil {
		s.logger.WarnContext(ctx, "backup mirror failed after create",
			"id", res.ID, "category", res.Category, "error", mirrorErr)
	}

	s.enqueue(ctx, QueueMessage{Action: "item_created", Category: res.Category, Resource: res})
	s.publish(ctx, EventItemCreated, map[string]interface{}{
		"id":       res.ID,
		"category": string(res.Category),
		"owner":    res.Owner,
	})

	s.metrics.Count(EventItemCreated, 1)
	s.metrics.Annotate("category", string(res.Category))

	if mirrorErr != nil {
		return res, &PartialFailureError{Op: "create", Step: "backup mirror", Err: mirrorErr}
	}
	return res, nil
}

func (s *service) GetResource(ctx context.Context, id string, category Category) (*Resource, error) {
	res, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res != nil {
		s.metrics.Count(MetricItemRetrieved, 1)
		return res, nil
	}

	// Primary miss: attempt recovery from the backup active tier. The
	// category hint is required to reconstruct the backup key.
	if category == "" {
		return nil, nil
	}

	recovered, err := s.backup.GetActive(ctx, category, id)
	if err != nil {
		s.logger.WarnContext(ctx, "backup lookup failed",
			"id", id, "category", category, "error", err)
		return nil, nil
	}
	if recovered == nil {
		return nil, nil
	}

	// Best-effort repair of the authoritative store; a failed repair
	// does not fail the read.
	if err := s.primary.Put(ctx, recovered); err != nil {
		s.logger.WarnContext(ctx, "primary repair write failed",
			"id", id, "error", err)
	}

	return recovered, nil
}

func (s *service) ListResources(ctx context.Context, req ListResourcesRequest) (*ResourceList, error) {
	if !req.Category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	list, err := s.primary.Query(ctx, Query{
		Category:     req.Category,
		Limit:        limit,
		NextToken:    req.NextToken,
		CreatedAfter: req.CreatedAfter,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Count(MetricItemsListed, list.Count)
	return list, nil
}

func (s *service) UpdateResource(ctx context.Context, req UpdateResourceRequest) (*Resource, error) {
	if len(req.Fields) == 0 {
		return nil, fmt.Errorf("update requires at least one field")
	}

	fields := make(map[string]interface{}, len(req.Fields))
	for k, v := range req.Fields {
		// Field names are flat keys; a dot would be read as a nested
		// document path by some stores.
		if k == "" || strings.Contains(k, ".") {
			return nil, fmt.Errorf("invalid field name %q", k)
		}
		fields[k] = sanitizeValue(v)
	}

	updated, err := s.primary.Update(ctx, UpdateParams{
		ID:        req.ID,
		Fields:    fields,
		UpdatedBy: req.UpdatedBy,
		Now:       s.now().UTC(),
	})
	if err != nil {
		s.alertIfThrottled(ctx, "update", err)
		return nil, err
	}

	mirrorErr := s.backup.PutActive(ctx, updated)
	if mirrorErr != nil {
		s.logger.WarnContext(ctx, "backup mirror failed after update",
			"id", updated.ID, "error", mirrorErr)
	}

	// The event names the changed fields, never their values.
	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}
	sort.Strings(changed)
	s.publish(ctx, EventItemUpdated, map[string]interface{}{
		"id":         updated.ID,
		"updated_by": req.UpdatedBy,
		"changes":    changed,
	})

	s.metrics.Count(EventItemUpdated, 1)

	if mirrorErr != nil {
		return updated, &PartialFailureError{Op: "update", Step: "backup mirror", Err: mirrorErr}
	}
	return updated, nil
}

func (s *service) DeleteResource(ctx context.Context, req DeleteResourceRequest) (*ArchivedResource, error) {
	res, err := s.GetResource(ctx, req.ID, req.Category)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	archived := &ArchivedResource{
		Resource:  *res.Clone(),
		DeletedAt: s.now().UTC(),
		DeletedBy: req.DeletedBy,
	}

	// The archive write gates everything that follows: without a
	// durable archived copy the primary record must remain untouched.
	if err := s.backup.PutArchive(ctx, archived); err != nil {
		return nil, &ArchiveError{ID: req.ID, Err: err}
	}

	removed, err := s.primary.DeleteIfExists(ctx, req.ID)
	if err != nil {
		s.alertIfThrottled(ctx, "delete", err)
		return nil, err
	}
	if !removed {
		// Lost a race with another deleter; the archive copy exists and
		// the record is gone, which is the outcome we wanted.
		s.logger.InfoContext(ctx, "record already removed from primary store", "id", req.ID)
	}

	if err := s.backup.DeleteActive(ctx, res.Category, res.ID); err != nil {
		s.logger.WarnContext(ctx, "active-tier backup cleanup failed",
			"id", res.ID, "category", res.Category, "error", err)
	}

	s.publish(ctx, EventItemDeleted, map[string]interface{}{
		"id":       res.ID,
		"category": string(res.Category),
		"owner":    req.DeletedBy,
	})
	s.notifyDeleted(ctx, archived)

	s.metrics.Count(EventItemDeleted, 1)

	return archived, nil
}

// classifySensitive runs the classifier over the serialized payload.
// The bool is authoritative only when err is nil.
func (s *service) classifySensitive(ctx context.Context, data map[string]interface{}) (bool, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("payload not serializable for classification: %w", err)
	}
	return s.classifier.ContainsSensitiveData(ctx, string(raw))
}

func (s *service) publish(ctx context.Context, eventType string, detail map[string]interface{}) {
	event := Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		Detail: detail,
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "type", eventType, "error", err)
	}
}

func (s *service) enqueue(ctx context.Context, msg QueueMessage) {
	if err := s.publisher.Enqueue(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "queue enqueue failed", "action", msg.Action, "error", err)
	}
}

func (s *service) notifyDeleted(ctx context.Context, archived *ArchivedResource) {
	body, err := json.Marshal(map[string]interface{}{
		"id":         archived.ID,
		"category":   string(archived.Category),
		"deleted_by": archived.DeletedBy,
		"timestamp":  archived.DeletedAt,
	})
	if err != nil {
		return
	}
	if err := s.publisher.Notify(ctx, "Resource Deleted", string(body)); err != nil {
		s.logger.WarnContext(ctx, "deletion notification failed", "id", archived.ID, "error", err)
	}
}

// alertIfThrottled sends the out-of-band operator notification when the
// primary store rejects writes due to sustained overload. The normal
// error response still reaches the caller.
func (s *service) alertIfThrottled(ctx context.Context, op string, err error) {
	if !IsThrottled(err) {
		return
	}
	var se *StoreError
	errors.As(err, &se)
	body, merr := json.Marshal(map[string]interface{}{
		"operation": op,
		"store":     se.Store,
		"key":       se.Key,
		"error":     se.Err.Error(),
	})
	if merr != nil {
		return
	}
	if nerr := s.publisher.Notify(ctx, "Critical Error: primary store throughput exceeded", string(body)); nerr != nil {
		s.logger.ErrorContext(ctx, "operator alert failed", "operation", op, "error", nerr)
	}
}
