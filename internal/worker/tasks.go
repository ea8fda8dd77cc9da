package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskGenerateBriefing = "briefing:generate"
)

// GeneratePayload is the body of a TaskGenerateBriefing task.
type GeneratePayload struct {
	OwnerID      uint   `json:"owner_id"`
	Conversation string `json:"conversation"`
}

// ErrClientNotInitialized is returned by enqueue functions before InitClient.
var ErrClientNotInitialized = errors.New("worker client not initialized")

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before any EnqueueX functions.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// NewGenerateBriefingTask builds a generation task. Generation is not
// idempotent at the endpoint, so a failed task is never retried.
func NewGenerateBriefingTask(ownerID uint, conversation string) (*asynq.Task, error) {
	payload, err := json.Marshal(GeneratePayload{OwnerID: ownerID, Conversation: conversation})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskGenerateBriefing,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// EnqueueGenerateBriefing queues background generation of a briefing from
// conversation for ownerID and returns the task id.
func EnqueueGenerateBriefing(ctx context.Context, ownerID uint, conversation string) (string, error) {
	if client == nil {
		return "", ErrClientNotInitialized
	}

	task, err := NewGenerateBriefingTask(ownerID, conversation)
	if err != nil {
		return "", err
	}

	info, err := client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}
