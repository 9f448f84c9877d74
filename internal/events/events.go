// Package events is an in-process domain event bus.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EnquiryCreated      = "enquiry.created"
	OrderCreated        = "order.created"
	OrderPaymentToggled = "order.payment_toggled"
	MergeCompleted      = "merge.completed"
)

// Any subscribes a handler to every event type.
const Any = "*"

type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event Event) error

// EventBus delivers events synchronously, in subscription order, on the
// publishing goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	now      func() time.Time
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]EventHandler), now: time.Now}
}

// Subscribe registers handler for eventType, or for all events with Any.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Publish runs every matching handler. A failing handler does not stop the
// others; their errors are joined.
func (b *EventBus) Publish(event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now()
	}

	b.mu.RLock()
	matched := make([]EventHandler, 0, len(b.handlers[event.Type])+len(b.handlers[Any]))
	matched = append(matched, b.handlers[event.Type]...)
	matched = append(matched, b.handlers[Any]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range matched {
		if err := h(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// PublishJSON publishes payload encoded as JSON.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}
