package solver

import (
	"context"

	"go.uber.org/zap"
)

// Solver is the common solve contract all three backends obey.
type Solver interface {
	Solve(ctx context.Context, sc *Context, preserved []Assignment) (*Result, error)
}

// HybridSolver attempts the CP solver within its time budget, falls back to
// the LP solver with a smaller budget on infeasibility or timeout without a
// feasible solution, and reports both statuses when neither succeeds.
type HybridSolver struct {
	CP *CPSolver
	LP *LPSolver

	log *zap.SugaredLogger
}

// NewHybridSolver creates the CP-then-LP strategy. The LP budget is half
// the CP budget.
func NewHybridSolver(manager *Manager, workers int, timeoutSeconds float64, progress ProgressFunc, log *zap.SugaredLogger) *HybridSolver {
	cp := NewCPSolver(manager, workers, timeoutSeconds, log)
	cp.Progress = progress
	return &HybridSolver{
		CP:  cp,
		LP:  NewLPSolver(manager, timeoutSeconds/2, log),
		log: log,
	}
}

// Solve runs the hybrid strategy.
func (s *HybridSolver) Solve(ctx context.Context, sc *Context, preserved []Assignment) (*Result, error) {
	if s.CP == nil {
		// Defensive branch mirroring the "CP backend not installed" failure
		// mode; the hybrid still falls through to LP.
		s.log.Warnw("cp solver unavailable, falling through to lp")
		return s.LP.Solve(ctx, sc, preserved)
	}

	cpResult, cpErr := s.CP.Solve(ctx, sc, preserved)
	if cpErr == nil && cpResult.Success {
		return cpResult, nil
	}
	if cpResult != nil && cpResult.Status == StatusEmpty {
		return cpResult, nil
	}

	s.log.Warnw("cp solve failed, attempting lp fallback",
		"cp_status", statusOf(cpResult), "cp_error", cpErr)

	lpResult, lpErr := s.LP.Solve(ctx, sc, preserved)
	if lpErr == nil && lpResult.Success {
		lpResult.SolverStatus = "cp failed (" + statusOf(cpResult) + "); " + lpResult.SolverStatus
		return lpResult, nil
	}

	combined := &Result{
		Status:       StatusInfeasible,
		SolverStatus: "cp: " + statusOf(cpResult) + "; lp: " + statusOf(lpResult),
	}
	if cpResult != nil {
		combined.Statistics = cpResult.Statistics
		combined.RuntimeSeconds = cpResult.RuntimeSeconds
	}
	if lpResult != nil {
		combined.RuntimeSeconds += lpResult.RuntimeSeconds
	}
	return combined, nil
}

func statusOf(r *Result) string {
	if r == nil {
		return string(StatusError)
	}
	return string(r.Status)
}
