// Package job wires the engine's background work onto Asynq: solver runs,
// preload loads, nightly batch auto-resolution and notification delivery.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeSolveSchedule = "schedule:solve"
	TypeLoadPreloads  = "preload:load"
	TypeBatchResolve  = "conflict:batch_resolve"
)

// nightlyBatchResolveSpec is the cron spec for the recurring batch
// auto-resolve sweep.
const nightlyBatchResolveSpec = "0 2 * * *"

// Scheduler manages job enqueueing to Asynq.
type Scheduler struct {
	client *asynq.Client
	redis  asynq.RedisClientOpt
}

// NewScheduler creates a scheduler and verifies Redis connectivity.
func NewScheduler(redisAddr string) (*Scheduler, error) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(redisOpt)

	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Scheduler{client: client, redis: redisOpt}, nil
}

// Client exposes the underlying asynq client for the notification sink.
func (s *Scheduler) Client() *asynq.Client {
	return s.client
}

// SolveSchedulePayload parameterizes a background solver run.
type SolveSchedulePayload struct {
	TaskID         string    `json:"task_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	BlockNumber    *int      `json:"block_number,omitempty"`
	CreatorID      uuid.UUID `json:"creator_id"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
	Workers        int       `json:"workers"`
}

// EnqueueSolveSchedule enqueues a background solver run. The returned task
// id keys the solver's progress snapshots.
func (s *Scheduler) EnqueueSolveSchedule(ctx context.Context, payload SolveSchedulePayload) (string, error) {
	if payload.TaskID == "" {
		payload.TaskID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	timeout := time.Duration(payload.TimeoutSeconds*float64(time.Second)) + 2*time.Minute
	task := asynq.NewTask(TypeSolveSchedule, body)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(1), asynq.Timeout(timeout)); err != nil {
		return "", fmt.Errorf("failed to enqueue solve job: %w", err)
	}
	return payload.TaskID, nil
}

// LoadPreloadsPayload parameterizes a background preload run.
type LoadPreloadsPayload struct {
	BlockNumber  int        `json:"block_number"`
	AcademicYear int        `json:"academic_year"`
	BlockStart   *time.Time `json:"block_start,omitempty"`
}

// EnqueueLoadPreloads enqueues a preload load for one block.
func (s *Scheduler) EnqueueLoadPreloads(ctx context.Context, payload LoadPreloadsPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	task := asynq.NewTask(TypeLoadPreloads, body)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(2), asynq.Timeout(10*time.Minute)); err != nil {
		return fmt.Errorf("failed to enqueue preload job: %w", err)
	}
	return nil
}

// BatchResolvePayload parameterizes a batch auto-resolve sweep. An empty
// AlertIDs list means every open alert.
type BatchResolvePayload struct {
	AlertIDs     []uuid.UUID `json:"alert_ids,omitempty"`
	AutoApply    bool        `json:"auto_apply"`
	MaxRiskLevel string      `json:"max_risk_level"`
}

// EnqueueBatchResolve enqueues a batch auto-resolve run.
func (s *Scheduler) EnqueueBatchResolve(ctx context.Context, payload BatchResolvePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	task := asynq.NewTask(TypeBatchResolve, body)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(1), asynq.Timeout(5*time.Minute)); err != nil {
		return fmt.Errorf("failed to enqueue batch resolve job: %w", err)
	}
	return nil
}

// NewPeriodicScheduler returns an asynq scheduler with the nightly batch
// auto-resolve sweep registered. The caller runs it alongside the worker
// server.
func (s *Scheduler) NewPeriodicScheduler() (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(s.redis, nil)

	body, err := json.Marshal(BatchResolvePayload{AutoApply: true, MaxRiskLevel: "medium"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nightly payload: %w", err)
	}
	if _, err := scheduler.Register(nightlyBatchResolveSpec, asynq.NewTask(TypeBatchResolve, body)); err != nil {
		return nil, fmt.Errorf("failed to register nightly batch resolve: %w", err)
	}
	return scheduler, nil
}

// Close releases the client.
func (s *Scheduler) Close() error {
	return s.client.Close()
}
