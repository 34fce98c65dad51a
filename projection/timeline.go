// Package projection builds local timelines from observed events.
// Handles ordering and per-group views.
// Does not emit events or interact with transports directly.
package projection

import (
	"context"
	"sync"

	"talk-hub/domain"
	"talk-hub/domain/event"
)

// Timeline holds a simple per-group local timeline. It consumes fan-out
// events as a permanent sink, so embedders and tests can observe delivery
// order without a live connection.
type Timeline struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{
		messages: make(map[string][]domain.Message),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		t.mu.Lock()
		t.messages[evt.GroupID] = append(t.messages[evt.GroupID], fromEvent(evt))
		t.mu.Unlock()
	}
	return nil
}

// Messages returns the observed timeline of one group, in delivery order.
func (t *Timeline) Messages(groupID string) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Message(nil), t.messages[groupID]...)
}

func fromEvent(evt event.MessagePosted) domain.Message {
	return domain.Message{
		ID:        evt.ID,
		GroupID:   evt.GroupID,
		Sender:    evt.Sender,
		Body:      evt.Body,
		CreatedAt: evt.At,
	}
}
