package memory

import (
	"context"
	"sync"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Notification is a recorded Notify call.
type Notification struct {
	Subject string
	Message string
}

// Publisher is an in-memory simpleresource.Publisher that records every
// call. Useful for tests asserting on fan-out behavior and call counts.
// Each channel can be made to fail independently.
type Publisher struct {
	mu            sync.Mutex
	events        []simpleresource.Event
	messages      []simpleresource.QueueMessage
	notifications []Notification

	// FailPublish, FailEnqueue, and FailNotify, when set, are returned
	// by the corresponding method instead of recording the call.
	FailPublish error
	FailEnqueue error
	FailNotify  error
}

// New creates a new recording publisher
func New() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishEvent(ctx context.Context, event simpleresource.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailPublish != nil {
		return p.FailPublish
	}
	p.events = append(p.events, event)
	return nil
}

func (p *Publisher) Enqueue(ctx context.Context, msg simpleresource.QueueMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailEnqueue != nil {
		return p.FailEnqueue
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *Publisher) Notify(ctx context.Context, subject, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailNotify != nil {
		return p.FailNotify
	}
	p.notifications = append(p.notifications, Notification{Subject: subject, Message: message})
	return nil
}

// Events returns a copy of the recorded domain events
func (p *Publisher) Events() []simpleresource.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]simpleresource.Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOfType returns the recorded events with the given type
func (p *Publisher) EventsOfType(eventType string) []simpleresource.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []simpleresource.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns a copy of the recorded queue messages
func (p *Publisher) Messages() []simpleresource.QueueMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]simpleresource.QueueMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Notifications returns a copy of the recorded notifications
func (p *Publisher) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}
