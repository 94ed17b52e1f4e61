// Package events publishes call-history change events to Redis so other
// views of the history can refresh.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/recents/pkg/logging"
)

// Redis channels for call-history events
const (
	ChannelCallsDeleted  = "events.calls.deleted"
	ChannelCallsCleared  = "events.calls.cleared"
	ChannelCallsRestored = "events.calls.restored"
)

// Source identifies this service in published events.
const Source = "recents"

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID *string   `json:"request_id,omitempty"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults. The request id is
// taken from ctx when one was attached with logging.WithRequestID.
func NewBaseEvent(ctx context.Context, eventType string) BaseEvent {
	event := BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    Source,
		Version:   "1.0",
	}
	if id := logging.RequestID(ctx); id != "" {
		event.RequestID = &id
	}
	return event
}

// CallsDeletedEvent is published after records are deleted by id.
type CallsDeletedEvent struct {
	BaseEvent

	IDs   []int64 `json:"ids"`
	Count int     `json:"count"`
}

// CallsClearedEvent is published after the whole history is cleared.
type CallsClearedEvent struct {
	BaseEvent
}

// CallsRestoredEvent is published after previously deleted calls are written back.
type CallsRestoredEvent struct {
	BaseEvent

	Count int `json:"count"`
}

// RedisPublisher is the subset of *redis.Client used for publishing.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher publishes call-history events to Redis.
type Publisher struct {
	client RedisPublisher
	logger logging.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(client RedisPublisher, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		client: client,
		logger: logger.With(logging.Component("event_publisher")),
	}
}

// CallsDeleted publishes the ids of deleted records.
func (p *Publisher) CallsDeleted(ctx context.Context, ids []int64) error {
	event := CallsDeletedEvent{
		BaseEvent: NewBaseEvent(ctx, "calls.deleted"),
		IDs:       ids,
		Count:     len(ids),
	}
	return p.publish(ctx, ChannelCallsDeleted, event)
}

// CallsCleared publishes that the history was emptied.
func (p *Publisher) CallsCleared(ctx context.Context) error {
	return p.publish(ctx, ChannelCallsCleared, CallsClearedEvent{
		BaseEvent: NewBaseEvent(ctx, "calls.cleared"),
	})
}

// CallsRestored publishes how many calls were written back.
func (p *Publisher) CallsRestored(ctx context.Context, count int) error {
	return p.publish(ctx, ChannelCallsRestored, CallsRestoredEvent{
		BaseEvent: NewBaseEvent(ctx, "calls.restored"),
		Count:     count,
	})
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}
