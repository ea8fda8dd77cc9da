package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// EventConsumer consumes briefing events from Redis Streams
type EventConsumer struct {
	rdb          *redis.Client
	groupName    string
	consumerName string
}

// NewEventConsumer creates a new EventConsumer instance
func NewEventConsumer(redisURL, consumerName string) (*EventConsumer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	// Read timeout must exceed the XReadGroup Block duration (5s)
	// to avoid spurious i/o timeout errors on idle streams.
	opts.ReadTimeout = 10 * time.Second

	client := redis.NewClient(opts)

	// Start ID "0" means read from beginning if group is new
	err = client.XGroupCreateMkStream(context.Background(), StreamBriefingEvents, GroupBriefingWorkers, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		client.Close()
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &EventConsumer{
		rdb:          client,
		groupName:    GroupBriefingWorkers,
		consumerName: consumerName,
	}, nil
}

// Consume runs a blocking loop handing events to handler until ctx is done.
// Entries whose handler fails stay pending and are not acknowledged.
func (c *EventConsumer) Consume(ctx context.Context, handler func(BriefingEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupName,
			Consumer: c.consumerName,
			Streams:  []string{StreamBriefingEvents, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Blocking reads return a timeout when no messages arrive
			// within the Block duration; that is normal.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			slog.Error("Failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				ev, err := decodeEvent(message.Values)
				if err != nil {
					slog.Error("Dropping malformed event", "error", err, "message_id", message.ID)
					c.ack(ctx, message.ID)
					continue
				}

				if err := handler(ev); err != nil {
					slog.Error("Handler failed", "error", err, "briefing_id", ev.BriefingID)
					continue
				}

				c.ack(ctx, message.ID)
			}
		}
	}
}

func (c *EventConsumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, StreamBriefingEvents, c.groupName, id).Err(); err != nil {
		slog.Error("Failed to ACK message", "error", err, "message_id", id)
	}
}

// Close closes the Redis client connection
func (c *EventConsumer) Close() error {
	return c.rdb.Close()
}

// StartEventConsumer starts the event consumer in a background goroutine and
// returns a stop function
func StartEventConsumer(redisURL string, db *gorm.DB) (stop func(), err error) {
	consumer, err := NewEventConsumer(redisURL, "briefing-worker-1")
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := consumer.Consume(ctx, HandleBriefingEvent(db)); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Event consumer stopped with error", "error", err)
		}
	}()

	slog.Info("Event consumer started", "stream", StreamBriefingEvents)

	return func() {
		cancel()
		consumer.Close()
	}, nil
}
