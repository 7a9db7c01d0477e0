package memory

import (
	"sync"
)

// Sink is an in-memory simpleresource.MetricsSink that accumulates
// counters and annotations for inspection in tests.
type Sink struct {
	mu          sync.Mutex
	counts      map[string]int
	annotations map[string]string
}

// New creates a new in-memory metrics sink
func New() *Sink {
	return &Sink{
		counts:      make(map[string]int),
		annotations: make(map[string]string),
	}
}

func (s *Sink) Count(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[name] += n
}

func (s *Sink) Annotate(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.annotations[key] = value
}

// CountOf returns the accumulated value for a counter
func (s *Sink) CountOf(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[name]
}

// Annotation returns the last value recorded for a key
func (s *Sink) Annotation(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.annotations[key]
}
