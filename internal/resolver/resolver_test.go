package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotamed/scheduler/internal/clock"
	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/logger"
	"github.com/rotamed/scheduler/internal/repository/memory"
	"github.com/rotamed/scheduler/internal/resolver"
	"github.com/rotamed/scheduler/tests/helpers"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekStart is the Monday anchoring the test alerts.
var weekStart = day(2026, time.March, 16)

type fixture struct {
	db  *memory.Database
	clk *clock.Frozen
	res *resolver.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	resolver.DrainCache()
	t.Cleanup(resolver.DrainCache)

	db := memory.NewDatabase()
	helpers.SeedActivities(t, db)
	clk := clock.NewFrozen(day(2026, time.March, 10).Add(8 * time.Hour))
	res := resolver.NewResolver(db, clk, nil, nil, logger.NewNop())
	return &fixture{db: db, clk: clk, res: res}
}

// seedWeek populates a resolvable week: the conflicted faculty member, a
// spare faculty member with no load, and working coverage.
func (f *fixture) seedWeek(t *testing.T) (*entity.Person, *entity.Person) {
	t.Helper()
	ctx := context.Background()

	conflicted := helpers.NewPersonBuilder().WithName("Dr. Conflicted").Build()
	spare := helpers.NewPersonBuilder().WithName("Dr. Spare").Build()
	worker := helpers.NewPersonBuilder().WithName("Dr. Worker").Build()
	require.NoError(t, f.db.PersonRepository().Create(ctx, conflicted))
	require.NoError(t, f.db.PersonRepository().Create(ctx, spare))
	require.NoError(t, f.db.PersonRepository().Create(ctx, worker))

	activity, err := f.db.ActivityRepository().GetByCode(ctx, entity.CodeFMIT)
	require.NoError(t, err)

	// Balanced coverage across the conflicted person and a second worker.
	for _, person := range []*entity.Person{conflicted, worker} {
		for i := 0; i < 3; i++ {
			_, err := f.db.AssignmentRepository().UpsertWithSourcePolicy(ctx, &entity.HalfDayAssignment{
				PersonID:         person.ID,
				Date:             weekStart.AddDate(0, 0, i),
				HalfDay:          entity.HalfDayAM,
				ActivityID:       activity.ID,
				ActivityCode:     activity.Code,
				ActivityCategory: activity.Category,
				Source:           entity.SourcePreload,
			})
			require.NoError(t, err)
		}
	}
	return conflicted, spare
}

func (f *fixture) createAlert(t *testing.T, alert *entity.ConflictAlert) *entity.ConflictAlert {
	t.Helper()
	require.NoError(t, f.db.ConflictAlertRepository().Create(context.Background(), alert))
	return alert
}

func TestAnalyzeSafeConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).WithLeave(uuid.New()).Build())

	analysis, err := f.res.Analyze(ctx, alert.ID)
	require.NoError(t, err)

	assert.Equal(t, "Faculty scheduled for FMIT during approved leave period", analysis.RootCause)
	assert.Len(t, analysis.SafetyChecks, 5)
	assert.True(t, analysis.AllChecksPassed(), "checks: %+v", analysis.SafetyChecks)
	assert.Less(t, analysis.ComplexityScore, 0.7)
	assert.True(t, analysis.AutoResolutionSafe)
	assert.Contains(t, analysis.Constraints, "approved leave present for the affected week")
	assert.Contains(t, analysis.RecommendedStrategies, resolver.StrategySwapAssignments)
	assert.Equal(t, resolver.StrategyDeferToHuman, analysis.RecommendedStrategies[len(analysis.RecommendedStrategies)-1])
}

// A critical conflict with cascading alerts in the same week is unsafe.
func TestAnalyzeUnsafeWhenCascading(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)

	// Three other active alerts share the FMIT week.
	for i := 0; i < 3; i++ {
		other := helpers.NewPersonBuilder().WithName("Other").Build()
		require.NoError(t, f.db.PersonRepository().Create(ctx, other))
		f.createAlert(t, helpers.NewAlertBuilder(other.ID, weekStart).Build())
	}
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Critical().Build())

	analysis, err := f.res.Analyze(ctx, alert.ID)
	require.NoError(t, err)

	// 0.3 (critical) + 0.3 (involved people, capped) + 0.2 (cascading).
	assert.GreaterOrEqual(t, analysis.ComplexityScore, 0.7)
	assert.False(t, analysis.AutoResolutionSafe)
	assert.NotEmpty(t, analysis.Blockers)
}

// Options come back sorted non-increasing by overall score.
func TestOptionsSortedByOverall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Build())

	options, err := f.res.GenerateOptions(ctx, alert.ID, resolver.DefaultMaxOptions)
	require.NoError(t, err)
	require.NotEmpty(t, options)
	assert.LessOrEqual(t, len(options), resolver.DefaultMaxOptions)

	for i := 1; i < len(options); i++ {
		assert.GreaterOrEqual(t, options[i-1].Impact.Overall, options[i].Impact.Overall)
	}

	// A defer-to-human option is always present and never auto-applies.
	foundDefer := false
	for _, opt := range options {
		if opt.Strategy == resolver.StrategyDeferToHuman {
			foundDefer = true
			assert.False(t, opt.CanAutoApply)
			assert.Equal(t, resolver.RiskLow, opt.RiskLevel)
		}
	}
	assert.True(t, foundDefer)
}

// Option lists are cached per (alert, max) for five minutes.
func TestOptionsCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Build())

	first, err := f.res.GenerateOptions(ctx, alert.ID, 5)
	require.NoError(t, err)
	second, err := f.res.GenerateOptions(ctx, alert.ID, 5)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	// After the TTL the options are regenerated with fresh ids.
	f.clk.Advance(6 * time.Minute)
	third, err := f.res.GenerateOptions(ctx, alert.ID, 5)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, third[0].ID)
}

// Auto-resolve applies the top option: a swap record in APPROVED status and
// the alert resolved.
func TestAutoResolveAppliesSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, spare := f.seedWeek(t)
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Build())
	userID := uuid.New()

	result, err := f.res.AutoResolveIfSafe(ctx, alert.ID, nil, &userID)
	require.NoError(t, err)
	require.True(t, result.Success, "warnings: %v", result.Warnings)
	assert.Equal(t, resolver.StatusApplied, result.Status)
	assert.True(t, result.ConflictResolved)
	require.NotNil(t, result.AppliedAt)

	updated, err := f.db.ConflictAlertRepository().GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStatusResolved, updated.Status)
	assert.Contains(t, updated.ResolutionNotes, "Auto-resolved via swap_assignments")
	require.NotNil(t, updated.SwapID)

	swap, err := f.db.SwapRepository().GetByID(ctx, *updated.SwapID)
	require.NoError(t, err)
	assert.Equal(t, entity.SwapStatusApproved, swap.Status)
	assert.Equal(t, entity.SwapTypeAbsorb, swap.SwapType)
	assert.Equal(t, conflicted.ID, swap.SourcePersonID)
	assert.Equal(t, spare.ID, swap.TargetPersonID)
	assert.Contains(t, swap.Reason, "Auto-resolution for conflict")
}

// A conflict whose analysis is unsafe is never resolved.
func TestAutoResolveRejectsUnsafe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)

	for i := 0; i < 3; i++ {
		other := helpers.NewPersonBuilder().WithName("Other").Build()
		require.NoError(t, f.db.PersonRepository().Create(ctx, other))
		f.createAlert(t, helpers.NewAlertBuilder(other.ID, weekStart).Build())
	}
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Critical().Build())

	result, err := f.res.AutoResolveIfSafe(ctx, alert.ID, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, resolver.StatusRejected, result.Status)
	assert.Equal(t, resolver.ErrCodeSafetyCheckFailed, result.ErrorCode)

	// The alert is untouched.
	updated, err := f.db.ConflictAlertRepository().GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStatusNew, updated.Status)
}

func TestAutoResolveAlreadyResolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)
	alert := helpers.NewAlertBuilder(conflicted.ID, weekStart).Build()
	require.NoError(t, alert.MarkResolved(uuid.New(), "done", f.clk.Now()))
	f.createAlert(t, alert)

	result, err := f.res.AutoResolveIfSafe(ctx, alert.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, resolver.StatusRejected, result.Status)
	assert.Equal(t, resolver.ErrCodeAlreadyResolved, result.ErrorCode)
}

func TestAutoResolveUnknownStrategy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Build())

	bogus := resolver.Strategy("teleport")
	result, err := f.res.AutoResolveIfSafe(ctx, alert.ID, &bogus, nil)
	require.NoError(t, err)
	assert.Equal(t, resolver.StatusRejected, result.Status)
	assert.Equal(t, resolver.ErrCodeStrategyNotAvailable, result.ErrorCode)
}

// Requesting a non-auto-applicable strategy defers with the option id.
func TestAutoResolveApprovalRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)
	alert := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Build())

	strategy := resolver.StrategyDeferToHuman
	result, err := f.res.AutoResolveIfSafe(ctx, alert.ID, &strategy, nil)
	require.NoError(t, err)
	assert.Equal(t, resolver.StatusRejected, result.Status)
	assert.Equal(t, resolver.ErrCodeApprovalRequired, result.ErrorCode)
	assert.NotNil(t, result.RecommendedOptionID)
}

// Batch accounting always adds up, and per-item failures never
// short-circuit.
func TestBatchAccounting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conflicted, _ := f.seedWeek(t)

	resolvable := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, weekStart).Build())

	// An unsafe critical alert in a crowded other week.
	otherWeek := weekStart.AddDate(0, 0, 7)
	for i := 0; i < 3; i++ {
		other := helpers.NewPersonBuilder().WithName("Other").Build()
		require.NoError(t, f.db.PersonRepository().Create(ctx, other))
		f.createAlert(t, helpers.NewAlertBuilder(other.ID, otherWeek).Build())
	}
	unsafe := f.createAlert(t, helpers.NewAlertBuilder(conflicted.ID, otherWeek).Critical().Build())

	missing := uuid.New()

	report, err := f.res.BatchAutoResolve(ctx, []uuid.UUID{resolvable.ID, unsafe.ID, missing}, true, resolver.RiskMedium)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalAnalyzed)
	assert.Equal(t, report.TotalAnalyzed, report.Applied+report.Deferred+report.Failed)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "partial", report.OverallStatus)
	assert.NotEmpty(t, report.PendingApprovals)
	assert.NotEmpty(t, report.Recommendations)
	assert.Greater(t, report.SafetyChecksPassed+report.SafetyChecksFailed, 0)
}
