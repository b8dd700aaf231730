package solver

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rotamed/scheduler/internal/kv"
)

// ProgressSnapshot is the JSON document written per intermediate solution.
type ProgressSnapshot struct {
	SolutionsFound   int      `json:"solutions_found"`
	CurrentObjective float64  `json:"current_objective"`
	BestBound        float64  `json:"best_bound"`
	OptimalityGapPct *float64 `json:"optimality_gap_pct"`
	ProgressPct      float64  `json:"progress_pct"`
	ElapsedSeconds   float64  `json:"elapsed_seconds"`
	Status           string   `json:"status"` // solving | completed | failed
	SolverStatus     string   `json:"solver_status,omitempty"`
	Timestamp        int64    `json:"timestamp"`
}

// ProgressFunc receives intermediate-solution snapshots.
type ProgressFunc func(ProgressSnapshot)

// ProgressTTL bounds how long a stale snapshot stays readable.
const ProgressTTL = 300 * time.Second

// ProgressKey is the KV key for a solver task's snapshot.
func ProgressKey(taskID string) string {
	return "solver_progress:" + taskID
}

// NewKVProgress returns a ProgressFunc that writes snapshots to the shared
// key-value store under the task's key. Writes are last-writer-wins;
// failures are logged and dropped so a flaky store never stalls a solve.
func NewKVProgress(store kv.Store, taskID string, log *zap.SugaredLogger) ProgressFunc {
	return func(snapshot ProgressSnapshot) {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			log.Warnw("failed to marshal progress snapshot", "task_id", taskID, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.SetWithTTL(ctx, ProgressKey(taskID), payload, ProgressTTL); err != nil {
			log.Warnw("failed to write progress snapshot", "task_id", taskID, "error", err)
		}
	}
}
