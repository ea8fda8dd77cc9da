package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/config"
	"github.com/jimdaga/briefdesk/internal/streams"
)

// Generator turns a conversation into a briefing document.
type Generator interface {
	GenerateBriefing(ctx context.Context, conversation, userID string) (*briefing.Document, error)
}

// Store persists generated briefings.
type Store interface {
	Create(ctx context.Context, ownerID uint, title string, doc briefing.Document) (*briefing.Briefing, error)
}

// Deps are the collaborators of the task handlers. Events may be nil.
type Deps struct {
	Generator Generator
	Store     Store
	Events    streams.Sink
}

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

// Implement asynq.Logger interface methods
func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, deps Deps) error {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return err
	}
	// Run blocks and handles its own signal interception
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, deps Deps) (stop func(), err error) {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

const concurrency = 5

func newServer(cfg *config.Config, deps Deps) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     concurrency,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGenerateBriefing, handleGenerateBriefing(logger, deps))

	logger.Info("Worker starting", "concurrency", concurrency, "redis", redactURL(cfg.RedisURL))
	return srv, mux, nil
}

// handleGenerateBriefing generates a briefing from the task's conversation,
// stores it under the owner and announces it on the events stream.
func handleGenerateBriefing(logger *slog.Logger, deps Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload GeneratePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
		if payload.OwnerID == 0 {
			return fmt.Errorf("payload has no owner: %w", asynq.SkipRetry)
		}

		logger.Info(
			"Processing briefing:generate task",
			"owner_id", payload.OwnerID,
			"conversation_chars", len(payload.Conversation),
		)

		doc, err := deps.Generator.GenerateBriefing(ctx, payload.Conversation, strconv.FormatUint(uint64(payload.OwnerID), 10))
		if err != nil {
			logger.Error(
				"Briefing generation failed",
				"owner_id", payload.OwnerID,
				"error", err.Error(),
			)
			// A briefing is generated at most once per request.
			return errors.Join(fmt.Errorf("generation failed: %w", err), asynq.SkipRetry)
		}

		title := briefing.DeriveTitle(*doc, payload.Conversation, time.Now())
		saved, err := deps.Store.Create(ctx, payload.OwnerID, title, *doc)
		if err != nil {
			logger.Error(
				"Failed to store generated briefing",
				"owner_id", payload.OwnerID,
				"error", err.Error(),
			)
			return errors.Join(fmt.Errorf("failed to store briefing: %w", err), asynq.SkipRetry)
		}

		streams.Emit(ctx, deps.Events, streams.BriefingEvent{
			Type:       streams.EventCreated,
			BriefingID: saved.ID,
			OwnerID:    saved.OwnerID,
			Title:      saved.Title,
			OccurredAt: saved.CreatedAt,
		})

		logger.Info(
			"Briefing generation completed",
			"briefing_id", saved.ID,
			"owner_id", saved.OwnerID,
		)

		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
			logger.Error(
				"Task archived",
				"task_type", task.Type(),
				"payload_bytes", len(task.Payload()),
			)
		}
	}
}

// redactURL drops credentials from a connection URL before it is logged.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
