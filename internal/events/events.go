package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventQuoteSubmitted     = "quote_submitted"
	EventQuoteApproved      = "quote_approved"
	EventQuoteRejected      = "quote_rejected"
	EventEmployeeAssigned   = "employee_assigned"
	EventEmployeeUnassigned = "employee_unassigned"
	EventWorkStarted        = "work_started"
	EventBookingCompleted   = "booking_completed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingPaid        = "booking_paid"
)

// BookingEventPayload is the lifecycle snapshot handed to subscribers.
type BookingEventPayload struct {
	QuoteID     int64  `json:"quote_id"`
	BookingID   int64  `json:"booking_id,omitempty"`
	RequesterID int64  `json:"requester_id"`
	EmployeeID  int64  `json:"employee_id,omitempty"`
	ServiceType string `json:"service_type"`
	ServiceDate string `json:"service_date,omitempty"`
	ServiceTime string `json:"service_time,omitempty"`
	Status      string `json:"status"`
	ChangedByID int64  `json:"changed_by_id"`
	ChangedBy   string `json:"changed_by"` // role
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged when logger is set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type synchronously and returns
// how many of them failed.
func (b *EventBus) Publish(event *Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			failed++
			b.logger.Error().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
	return failed
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
