package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeGenerateRun = "run:generate"
)

type RunPayload struct {
	RunID string `json:"run_id"`
}

// Enqueuer hands a stored run to the background workers.
type Enqueuer interface {
	EnqueueRun(ctx context.Context, runID string) error
}

type Queue struct {
	client *asynq.Client
}

func NewQueue(opt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(opt)}
}

func NewRunTask(runID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RunPayload{RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypeGenerateRun, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(20*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

func (q *Queue) EnqueueRun(ctx context.Context, runID string) error {
	task, err := NewRunTask(runID)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	slog.Info("Run enqueued", "run_id", runID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
