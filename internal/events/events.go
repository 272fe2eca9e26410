package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationCancelled = "reservation_cancelled"
	EventSeriesCreated        = "series_created"
	EventSeriesCancelled      = "series_cancelled"
)

// ReservationEventPayload is the reservation snapshot handed to event consumers.
type ReservationEventPayload struct {
	ReservationID string   `json:"reservation_id"`
	StadiumID     string   `json:"stadium_id"`
	FieldID       string   `json:"field_id"`
	UserID        string   `json:"user_id"`
	Date          string   `json:"date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Status        string   `json:"status"`
	BookingType   string   `json:"booking_type"`
	Total         float64  `json:"total"`
	Currency      string   `json:"currency"`
	RefundAmount  *float64 `json:"refund_amount,omitempty"`
	RefundStatus  string   `json:"refund_status,omitempty"`
	ChangedBy     string   `json:"changed_by,omitempty"`
	ChangedByRole string   `json:"changed_by_role,omitempty"`
}

// SeriesEventPayload summarizes a membership series operation.
type SeriesEventPayload struct {
	SeriesID    string   `json:"series_id"`
	FieldID     string   `json:"field_id"`
	UserID      string   `json:"user_id"`
	Pattern     string   `json:"pattern,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	Created     int      `json:"created"`
	Skipped     int      `json:"skipped"`
	Dates       []string `json:"dates,omitempty"`
	ChangedBy   string   `json:"changed_by,omitempty"`
	Cancelled   int64    `json:"cancelled,omitempty"`
	EffectiveOn string   `json:"effective_on,omitempty"`
}

type Event struct {
	Seq       uint64
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s event #%d: %w", e.Type, e.Seq, err)
	}
	return nil
}

type EventHandler func(event *Event) error

// EventBus is a synchronous in-process pub/sub. Handlers run on the
// publisher's goroutine in subscription order; catch-all handlers run last.
type EventBus struct {
	mu       sync.RWMutex
	byType   map[string][]EventHandler
	catchAll []EventHandler

	seq      atomic.Uint64
	failures atomic.Int64
	now      func() time.Time
}

func NewEventBus() *EventBus {
	return &EventBus{byType: make(map[string][]EventHandler), now: time.Now}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], handler)
	b.mu.Unlock()
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	b.catchAll = append(b.catchAll, handler)
	b.mu.Unlock()
}

// Publish stamps the event and delivers it. A failing or panicking handler
// does not stop the others; it only bumps Failures.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.byType[event.Type])+len(b.catchAll))
	handlers = append(handlers, b.byType[event.Type]...)
	handlers = append(handlers, b.catchAll...)
	b.mu.RUnlock()

	event.Seq = b.seq.Add(1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now()
	}

	for _, h := range handlers {
		if err := safeCall(h, event); err != nil {
			b.failures.Add(1)
		}
	}
}

func safeCall(h EventHandler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(event)
}

// PublishJSON marshals payload and publishes it. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	b.Publish(&Event{Type: eventType, Payload: raw})
	return nil
}

// Published is the number of events delivered so far.
func (b *EventBus) Published() uint64 {
	return b.seq.Load()
}

// Failures returns how many handler invocations returned an error or panicked.
func (b *EventBus) Failures() int64 {
	return b.failures.Load()
}
