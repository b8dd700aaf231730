// Package notify is the notification sink boundary: the engine enqueues,
// delivery happens elsewhere.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Kind classifies a notification.
type Kind string

const (
	KindSchedulePublished Kind = "SCHEDULE_PUBLISHED"
	KindScheduleRolledBack Kind = "SCHEDULE_ROLLED_BACK"
	KindConflictResolved  Kind = "CONFLICT_RESOLVED"
	KindSwapCreated       Kind = "SWAP_CREATED"
)

// Sink is the notification contract consumed by the engine.
type Sink interface {
	Enqueue(ctx context.Context, recipient uuid.UUID, kind Kind, payload map[string]interface{}) error
	FlushPending(ctx context.Context) error
}

// TypeDeliverNotification is the asynq task type delivery workers consume.
const TypeDeliverNotification = "notification:deliver"

// Payload is the asynq task body for one notification.
type Payload struct {
	Recipient uuid.UUID              `json:"recipient"`
	Kind      Kind                   `json:"kind"`
	Data      map[string]interface{} `json:"data"`
}

// AsynqSink enqueues notification tasks onto the shared queue.
type AsynqSink struct {
	client *asynq.Client
}

// NewAsynqSink creates a queue-backed sink.
func NewAsynqSink(client *asynq.Client) *AsynqSink {
	return &AsynqSink{client: client}
}

// Enqueue stages one notification task.
func (s *AsynqSink) Enqueue(ctx context.Context, recipient uuid.UUID, kind Kind, payload map[string]interface{}) error {
	body, err := json.Marshal(Payload{Recipient: recipient, Kind: kind, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	task := asynq.NewTask(TypeDeliverNotification, body)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// FlushPending is a no-op for the queue-backed sink: asynq delivers
// continuously.
func (s *AsynqSink) FlushPending(ctx context.Context) error {
	return nil
}

// MemorySink collects notifications in memory for tests.
type MemorySink struct {
	mu      sync.Mutex
	Pending []Payload
	Flushed []Payload
}

// NewMemorySink creates an empty test sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Enqueue stages one notification.
func (s *MemorySink) Enqueue(ctx context.Context, recipient uuid.UUID, kind Kind, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pending = append(s.Pending, Payload{Recipient: recipient, Kind: kind, Data: payload})
	return nil
}

// FlushPending moves pending notifications to the flushed list.
func (s *MemorySink) FlushPending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Flushed = append(s.Flushed, s.Pending...)
	s.Pending = nil
	return nil
}
