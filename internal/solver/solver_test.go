package solver_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/kv"
	"github.com/rotamed/scheduler/internal/logger"
	"github.com/rotamed/scheduler/internal/solver"
	"github.com/rotamed/scheduler/tests/helpers"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekdaySlots(start time.Time, days int) []entity.Slot {
	var slots []entity.Slot
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		if entity.IsWeekend(d) {
			continue
		}
		slots = append(slots,
			entity.Slot{Date: d, HalfDay: entity.HalfDayAM},
			entity.Slot{Date: d, HalfDay: entity.HalfDayPM})
	}
	return slots
}

func testContext(residents, faculty int) *solver.Context {
	sc := &solver.Context{
		Slots: weekdaySlots(day(2026, time.March, 16), 5),
		Templates: []*entity.RotationTemplate{
			helpers.NewTemplateBuilder("FMC").Build(),
			helpers.NewTemplateBuilder("PROC").RequiringCredential().Build(),
		},
	}
	for i := 0; i < residents; i++ {
		sc.Residents = append(sc.Residents, helpers.NewPersonBuilder().WithName("R").AsResident(i%3+1).Build())
	}
	for i := 0; i < faculty; i++ {
		sc.Faculty = append(sc.Faculty, helpers.NewPersonBuilder().WithName("F").Build())
	}
	return sc
}

func defaultManager() *solver.Manager {
	return solver.NewManager().
		Register(solver.AvailabilityConstraint{}).
		Register(solver.CapacityConstraint{}).
		Register(solver.WorkloadEquityConstraint{})
}

// At most one rotation per (person, slot), and credential-gated templates
// never reach residents without the credential.
func TestCPSolverStructuralInvariants(t *testing.T) {
	sc := testContext(3, 2)
	cp := solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop())

	result, err := cp.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, []solver.Status{solver.StatusOptimal, solver.StatusFeasible}, result.Status)

	credentialed := make(map[uuid.UUID]bool)
	for _, r := range sc.Residents {
		credentialed[r.ID] = r.HasProcedureCredential
	}
	procID := sc.Templates[1].ID

	seen := make(map[string]int)
	for _, a := range result.Assignments {
		seen[a.PersonID.String()+"/"+a.Slot.Key()]++
		if a.TemplateID == procID {
			if isCred, isResident := credentialed[a.PersonID]; isResident {
				assert.True(t, isCred, "uncredentialed resident on credential-gated template")
			}
		}
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "multiple rotations at %s", key)
	}
}

// Preserved assignments appear in the output and nothing else occupies
// their (person, slot).
func TestSolverPreservesAssignments(t *testing.T) {
	sc := testContext(3, 0)
	preserved := []solver.Assignment{{
		PersonID:   sc.Residents[0].ID,
		Slot:       sc.Slots[4],
		TemplateID: sc.Templates[0].ID,
	}}

	for _, backend := range []solver.Solver{
		solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop()),
		solver.NewLPSolver(defaultManager(), 2, logger.NewNop()),
	} {
		result, err := backend.Solve(context.Background(), sc, preserved)
		require.NoError(t, err)
		require.True(t, result.Success)

		found := 0
		for _, a := range result.Assignments {
			if a.PersonID == preserved[0].PersonID && a.Slot.Key() == preserved[0].Slot.Key() {
				found++
				assert.Equal(t, preserved[0].TemplateID, a.TemplateID)
			}
		}
		assert.Equal(t, 1, found, "preserved assignment must appear exactly once")
	}
}

// Availability masking forces the masked (person, slot) empty.
func TestAvailabilityMasking(t *testing.T) {
	sc := testContext(2, 0)
	masked := sc.Slots[0]
	sc.Availability = map[uuid.UUID]map[string]bool{
		sc.Residents[0].ID: {masked.Key(): false},
	}

	lp := solver.NewLPSolver(defaultManager(), 2, logger.NewNop())
	result, err := lp.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	for _, a := range result.Assignments {
		if a.PersonID == sc.Residents[0].ID {
			assert.NotEqual(t, masked.Key(), a.Slot.Key())
		}
	}
}

// Capacity bounds hold per (template, slot).
func TestCapacityBound(t *testing.T) {
	sc := testContext(4, 0)
	sc.Templates = []*entity.RotationTemplate{
		helpers.NewTemplateBuilder("FMC").WithMaxConcurrent(2).Build(),
	}

	cp := solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop())
	result, err := cp.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	perSlot := make(map[string]int)
	for _, a := range result.Assignments {
		perSlot[a.Slot.Key()]++
	}
	for key, n := range perSlot {
		assert.LessOrEqual(t, n, 2, "capacity exceeded at %s", key)
	}
}

// Conflicting preserved assignments make the model infeasible.
func TestPreservedConflictInfeasible(t *testing.T) {
	sc := testContext(1, 0)
	sc.Templates = append(sc.Templates, helpers.NewTemplateBuilder("ALT").Build())
	preserved := []solver.Assignment{
		{PersonID: sc.Residents[0].ID, Slot: sc.Slots[0], TemplateID: sc.Templates[0].ID},
		{PersonID: sc.Residents[0].ID, Slot: sc.Slots[0], TemplateID: sc.Templates[2].ID},
	}

	cp := solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop())
	result, err := cp.Solve(context.Background(), sc, preserved)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, solver.StatusInfeasible, result.Status)
}

// Empty contexts return the empty status.
func TestEmptyContext(t *testing.T) {
	cp := solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop())
	result, err := cp.Solve(context.Background(), &solver.Context{}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, solver.StatusEmpty, result.Status)
}

// The progress callback writes snapshots to the KV store with the task key.
func TestProgressSnapshots(t *testing.T) {
	store := kv.NewMemory()
	taskID := "test-task"

	sc := testContext(2, 1)
	cp := solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop())
	cp.Progress = solver.NewKVProgress(store, taskID, logger.NewNop())

	result, err := cp.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	raw, err := store.Get(context.Background(), solver.ProgressKey(taskID))
	require.NoError(t, err)

	var snapshot solver.ProgressSnapshot
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Equal(t, "completed", snapshot.Status)
	assert.GreaterOrEqual(t, snapshot.SolutionsFound, 1)
	assert.Equal(t, float64(100), snapshot.ProgressPct)
}

// The greedy heuristic explains each decision, with candidate scores and a
// confidence tag.
func TestGreedyExplanations(t *testing.T) {
	sc := testContext(3, 0)
	greedy := solver.NewGreedySolver()

	result, err := greedy.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.Explanations)

	for _, explanation := range result.Explanations {
		assert.NotEmpty(t, explanation.Candidates)
		assert.Contains(t, []solver.Confidence{
			solver.ConfidenceHigh, solver.ConfidenceMedium, solver.ConfidenceLow,
		}, explanation.Confidence)

		// The chosen candidate leads the recorded candidate list.
		assert.Equal(t, explanation.PersonID, explanation.Candidates[0].PersonID)
	}
}

// The hybrid strategy falls through to LP and reports both statuses when
// everything fails.
func TestHybridFallback(t *testing.T) {
	sc := testContext(2, 1)
	hybrid := solver.NewHybridSolver(defaultManager(), 2, 1, nil, logger.NewNop())

	result, err := hybrid.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// Conflicting preserved assignments fail both backends.
	sc2 := testContext(1, 0)
	sc2.Templates = append(sc2.Templates, helpers.NewTemplateBuilder("ALT").Build())
	preserved := []solver.Assignment{
		{PersonID: sc2.Residents[0].ID, Slot: sc2.Slots[0], TemplateID: sc2.Templates[0].ID},
		{PersonID: sc2.Residents[0].ID, Slot: sc2.Slots[0], TemplateID: sc2.Templates[2].ID},
	}
	result, err = hybrid.Solve(context.Background(), sc2, preserved)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, solver.StatusInfeasible, result.Status)
	assert.Contains(t, result.SolverStatus, "cp:")
	assert.Contains(t, result.SolverStatus, "lp:")
}

// Statistics reflect the solved model.
func TestSolverStatistics(t *testing.T) {
	sc := testContext(2, 1)
	cp := solver.NewCPSolver(defaultManager(), 2, 1, logger.NewNop())

	result, err := cp.Solve(context.Background(), sc, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, len(sc.Slots), result.Statistics.Blocks)
	assert.Equal(t, 2, result.Statistics.Residents)
	assert.Equal(t, 1, result.Statistics.Faculty)
	assert.Equal(t, 2, result.Statistics.Templates)
	assert.Greater(t, result.Statistics.CoverageRate, 0.0)
	assert.NotNil(t, result.RandomSeed)
}
