package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes briefing events to Redis Streams
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewPublisherFromClient(redis.NewClient(opts)), nil
}

// NewPublisherFromClient wraps an existing client.
func NewPublisherFromClient(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishEvent appends ev to the events stream and returns the entry id.
func (p *Publisher) PublishEvent(ctx context.Context, ev BriefingEvent) (string, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	values, err := encodeEvent(ev)
	if err != nil {
		return "", err
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamBriefingEvents,
		MaxLen: 10000,
		Approx: true,
		ID:     "*", // auto-generate ID
		Values: values,
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", result.Err())
	}

	return result.Val(), nil
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

func encodeEvent(ev BriefingEvent) (map[string]interface{}, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return map[string]interface{}{
		"type":           ev.Type,
		"payload":        string(payload),
		"published_at":   ev.OccurredAt.Unix(),
		"schema_version": SchemaVersionV1,
	}, nil
}

// decodeEvent parses the values of one stream entry.
func decodeEvent(values map[string]interface{}) (BriefingEvent, error) {
	payloadStr, ok := values["payload"].(string)
	if !ok {
		return BriefingEvent{}, fmt.Errorf("missing payload")
	}
	if v, ok := values["schema_version"].(string); ok && v != SchemaVersionV1 {
		return BriefingEvent{}, fmt.Errorf("unsupported schema version %q", v)
	}

	var ev BriefingEvent
	if err := json.Unmarshal([]byte(payloadStr), &ev); err != nil {
		return BriefingEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}

// Sink accepts briefing events. *Publisher implements it.
type Sink interface {
	PublishEvent(ctx context.Context, ev BriefingEvent) (string, error)
}

// Emit publishes ev on sink and logs failures. Events are best effort: a
// stream outage never fails the write that produced them. A nil sink is a
// no-op.
func Emit(ctx context.Context, sink Sink, ev BriefingEvent) {
	if sink == nil {
		return
	}
	if _, err := sink.PublishEvent(ctx, ev); err != nil {
		slog.Warn("Failed to publish briefing event",
			"type", ev.Type,
			"briefing_id", ev.BriefingID,
			"error", err,
		)
	}
}
