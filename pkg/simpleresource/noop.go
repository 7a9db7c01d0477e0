package simpleresource

import (
	"context"
)

// NoopPublisher is a no-operation implementation of Publisher
// Useful when no event infrastructure is configured or for testing
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-operation publisher
func NewNoopPublisher() Publisher {
	return &NoopPublisher{}
}

// PublishEvent does nothing and returns nil
func (n *NoopPublisher) PublishEvent(ctx context.Context, event Event) error {
	return nil
}

// Enqueue does nothing and returns nil
func (n *NoopPublisher) Enqueue(ctx context.Context, msg QueueMessage) error {
	return nil
}

// Notify does nothing and returns nil
func (n *NoopPublisher) Notify(ctx context.Context, subject, message string) error {
	return nil
}

// NoopClassifier is a no-operation implementation of Classifier that
// never flags a payload
type NoopClassifier struct{}

// NewNoopClassifier creates a new no-operation classifier
func NewNoopClassifier() Classifier {
	return &NoopClassifier{}
}

// ContainsSensitiveData always reports false
func (n *NoopClassifier) ContainsSensitiveData(ctx context.Context, text string) (bool, error) {
	return false, nil
}

// NoopMetrics is a no-operation implementation of MetricsSink
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-operation metrics sink
func NewNoopMetrics() MetricsSink {
	return &NoopMetrics{}
}

// Count does nothing
func (n *NoopMetrics) Count(name string, count int) {}

// Annotate does nothing
func (n *NoopMetrics) Annotate(key, value string) {}
