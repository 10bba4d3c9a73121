// Package events publishes domain events such as appointment bookings to a
// message broker so other systems can react without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	AppointmentBooked    = "appointment.booked"
	AppointmentUpdated   = "appointment.updated"
	AppointmentCancelled = "appointment.cancelled"
	ScheduleReplaced     = "doctor.schedule_replaced"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an envelope with a fresh id.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// Publisher delivers events. Publishing is best effort from the caller's
// point of view: a failed publish must not undo a committed write.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Emit builds and publishes an event, logging instead of returning failures.
func Emit(ctx context.Context, p Publisher, logger zerolog.Logger, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		logger.Error().Err(err).Str("event", eventType).Msg("build event")
		return
	}
	if err := p.Publish(ctx, evt); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Str("event_id", evt.ID).Msg("publish event")
	}
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// LogPublisher writes events to the logger. Used when no broker is configured.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(_ context.Context, evt Event) error {
	p.Logger.Info().
		Str("event", evt.Type).
		Str("event_id", evt.ID).
		RawJSON("payload", evt.Payload).
		Msg("domain event")
	return nil
}

// RecordingPublisher keeps published events in memory for tests.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, evt Event) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// Events returns a copy of the recorded events.
func (p *RecordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Types returns the recorded event types in publish order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
