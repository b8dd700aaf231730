package draft_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotamed/scheduler/internal/clock"
	"github.com/rotamed/scheduler/internal/draft"
	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/logger"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/repository/memory"
	"github.com/rotamed/scheduler/tests/helpers"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	db   *memory.Database
	clk  *clock.Frozen
	sink *notify.MemorySink
	svc  *draft.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.NewDatabase()
	helpers.SeedActivities(t, db)
	clk := clock.NewFrozen(day(2026, time.March, 1).Add(9 * time.Hour))
	sink := notify.NewMemorySink()
	svc := draft.NewService(db, clk, nil, sink, nil, logger.NewNop())
	return &fixture{db: db, clk: clk, sink: sink, svc: svc}
}

func (f *fixture) createDraft(t *testing.T) *entity.ScheduleDraft {
	t.Helper()
	d, err := f.svc.CreateDraft(context.Background(), draft.CreateDraftInput{
		SourceType:  entity.DraftSourceManual,
		StartDate:   day(2026, time.March, 16),
		EndDate:     day(2026, time.March, 22),
		CreatedByID: uuid.New(),
	})
	require.NoError(t, err)
	return d
}

// Re-creating a draft over the same (start, end) returns the existing one.
func TestCreateDraftReturnsExisting(t *testing.T) {
	f := newFixture(t)
	first := f.createDraft(t)
	second := f.createDraft(t)
	assert.Equal(t, first.ID, second.ID)

	// A different range creates a fresh draft.
	other, err := f.svc.CreateDraft(context.Background(), draft.CreateDraftInput{
		SourceType:  entity.DraftSourceManual,
		StartDate:   day(2026, time.March, 23),
		EndDate:     day(2026, time.March, 29),
		CreatedByID: uuid.New(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateDraftRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateDraft(context.Background(), draft.CreateDraftInput{
		SourceType:  entity.DraftSourceManual,
		StartDate:   day(2026, time.March, 22),
		EndDate:     day(2026, time.March, 16),
		CreatedByID: uuid.New(),
	})
	assert.ErrorIs(t, err, entity.ErrInvalidDateRange)
}

// A second add at the same slot updates instead of duplicating, and the
// change counters follow.
func TestAddDraftAssignmentUpserts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)
	personID := uuid.New()

	_, err := f.svc.AddDraftAssignment(ctx, d.ID, draft.AddAssignmentInput{
		PersonID:     personID,
		Date:         day(2026, time.March, 17),
		TimeOfDay:    entity.TimeOfDayAM,
		ActivityCode: entity.CodeClinic,
		ChangeType:   entity.ChangeTypeAdd,
	})
	require.NoError(t, err)

	_, err = f.svc.AddDraftAssignment(ctx, d.ID, draft.AddAssignmentInput{
		PersonID:     personID,
		Date:         day(2026, time.March, 17),
		TimeOfDay:    entity.TimeOfDayAM,
		ActivityCode: entity.CodeLecture,
		ChangeType:   entity.ChangeTypeDelete,
	})
	require.NoError(t, err)

	updated, err := f.db.DraftRepository().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AddedCount)
	assert.Equal(t, 1, updated.DeletedCount)

	assignments, err := f.db.DraftRepository().ListAssignments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, entity.CodeLecture, assignments[0].ActivityCode)
}

// Bulk add computes modify against live rows and add otherwise; preserved
// keys are skipped.
func TestBulkAddSolverOutput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	occupied := uuid.New()
	fresh := uuid.New()
	preservedPerson := uuid.New()
	slotDate := day(2026, time.March, 17)

	activity, err := f.db.ActivityRepository().GetByCode(ctx, entity.CodeClinic)
	require.NoError(t, err)
	_, err = f.db.AssignmentRepository().UpsertWithSourcePolicy(ctx, &entity.HalfDayAssignment{
		PersonID:         occupied,
		Date:             slotDate,
		HalfDay:          entity.HalfDayAM,
		ActivityID:       activity.ID,
		ActivityCode:     activity.Code,
		ActivityCategory: activity.Category,
		Source:           entity.SourceSolver,
	})
	require.NoError(t, err)

	staged := []draft.SolverAssignment{
		{PersonID: occupied, Date: slotDate, HalfDay: entity.HalfDayAM, ActivityCode: entity.CodeClinic},
		{PersonID: fresh, Date: slotDate, HalfDay: entity.HalfDayPM, ActivityCode: entity.CodeClinic},
		{PersonID: preservedPerson, Date: slotDate, HalfDay: entity.HalfDayAM, ActivityCode: entity.CodeClinic},
	}
	preserved := map[string]bool{staged[2].Key(): true}

	added, modified, err := f.svc.BulkAddSolverOutput(ctx, d.ID, staged, preserved)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, modified)

	assignments, err := f.db.DraftRepository().ListAssignments(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
	assert.Equal(t, entity.ChangeTypeModify, assignments[0].ChangeType)
	require.NotNil(t, assignments[0].ExistingAssignmentID)
}

// Flag acknowledgment is idempotent on the counters.
func TestFlagAcknowledgmentIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	flag, err := f.svc.AddFlag(ctx, d.ID, draft.FlagInput{
		FlagType: entity.FlagTypeManualReview,
		Severity: entity.FlagSeverityWarning,
		Message:  "needs review",
	})
	require.NoError(t, err)

	acker := uuid.New()
	_, err = f.svc.AcknowledgeFlag(ctx, flag.ID, acker, "looks fine")
	require.NoError(t, err)
	_, err = f.svc.AcknowledgeFlag(ctx, flag.ID, uuid.New(), "again")
	require.NoError(t, err)

	updated, err := f.db.DraftRepository().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FlagsTotal)
	assert.Equal(t, 1, updated.FlagsAcknowledged)
}

// Publish then rollback of an add-only ALL draft: four live rows in, four
// rows out. (Publish writes AM and PM for each ALL assignment.)
func TestPublishThenRollbackAddOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)
	publisher := uuid.New()
	personA, personB := uuid.New(), uuid.New()

	for _, personID := range []uuid.UUID{personA, personB} {
		_, err := f.svc.AddDraftAssignment(ctx, d.ID, draft.AddAssignmentInput{
			PersonID:     personID,
			Date:         day(2026, time.March, 17),
			TimeOfDay:    entity.TimeOfDayAll,
			ActivityCode: entity.CodeClinic,
			ChangeType:   entity.ChangeTypeAdd,
		})
		require.NoError(t, err)
	}

	result, err := f.svc.Publish(ctx, d.ID, publisher, "", false)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 4, result.PublishedCount)
	assert.Zero(t, result.ErrorCount)
	assert.True(t, result.RollbackAvailable)
	require.NotNil(t, result.RollbackExpiresAt)
	assert.Equal(t, f.clk.Now().Add(24*time.Hour), *result.RollbackExpiresAt)

	// Live rows are MANUAL source.
	live, err := f.db.AssignmentRepository().GetBySlot(ctx, personA, day(2026, time.March, 17), entity.HalfDayAM)
	require.NoError(t, err)
	assert.Equal(t, entity.SourceManual, live.Source)

	count, err := f.db.AssignmentRepository().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	// Publish notifications went to both people.
	assert.Len(t, f.sink.Pending, 2)

	// Rollback ten minutes later removes all four rows.
	f.clk.Advance(10 * time.Minute)
	rollback, err := f.svc.Rollback(ctx, d.ID, publisher)
	require.NoError(t, err)
	require.True(t, rollback.Success)
	assert.Equal(t, 4, rollback.RolledBackCount)
	assert.Zero(t, rollback.FailedCount)

	count, err = f.db.AssignmentRepository().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	final, err := f.db.DraftRepository().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DraftStatusRolledBack, final.Status)
}

// Publishing an empty draft is allowed and mutates nothing.
func TestPublishEmptyDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	result, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.PublishedCount)

	count, err := f.db.AssignmentRepository().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// Unacknowledged flags gate publish behind an override comment.
func TestPublishRequiresOverrideForUnacknowledgedFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	_, err := f.svc.AddFlag(ctx, d.ID, draft.FlagInput{
		FlagType: entity.FlagTypeACGMEViolation,
		Severity: entity.FlagSeverityError,
		Message:  "duty hours",
	})
	require.NoError(t, err)

	result, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, draft.ErrCodeOverrideCommentRequired, result.ErrorCode)

	// With an override comment the publish proceeds.
	result, err = f.svc.Publish(ctx, d.ID, uuid.New(), "chief approved", false)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

// Publishing anything but a DRAFT draft is an INVALID_STATUS no-op.
func TestPublishInvalidStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	_, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)

	result, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, draft.ErrCodeInvalidStatus, result.ErrorCode)
}

// Rollback past the 24-hour window returns ROLLBACK_EXPIRED and mutates
// nothing.
func TestRollbackExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	_, err := f.svc.AddDraftAssignment(ctx, d.ID, draft.AddAssignmentInput{
		PersonID:     uuid.New(),
		Date:         day(2026, time.March, 17),
		TimeOfDay:    entity.TimeOfDayAM,
		ActivityCode: entity.CodeClinic,
		ChangeType:   entity.ChangeTypeAdd,
	})
	require.NoError(t, err)

	result, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)
	require.True(t, result.Success)

	f.clk.Advance(24*time.Hour + time.Minute)
	rollback, err := f.svc.Rollback(ctx, d.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, rollback.Success)
	assert.Equal(t, draft.ErrCodeRollbackExpired, rollback.ErrorCode)

	// Live rows untouched, draft still published.
	count, err := f.db.AssignmentRepository().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	current, err := f.db.DraftRepository().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DraftStatusPublished, current.Status)
}

// Modify changes cannot be rolled back without a prior-state backup.
func TestRollbackModifyRecordsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)
	personID := uuid.New()
	slotDate := day(2026, time.March, 17)

	activity, err := f.db.ActivityRepository().GetByCode(ctx, entity.CodeFMIT)
	require.NoError(t, err)
	_, err = f.db.AssignmentRepository().UpsertWithSourcePolicy(ctx, &entity.HalfDayAssignment{
		PersonID:         personID,
		Date:             slotDate,
		HalfDay:          entity.HalfDayAM,
		ActivityID:       activity.ID,
		ActivityCode:     activity.Code,
		ActivityCategory: activity.Category,
		Source:           entity.SourceSolver,
	})
	require.NoError(t, err)

	_, err = f.svc.AddDraftAssignment(ctx, d.ID, draft.AddAssignmentInput{
		PersonID:     personID,
		Date:         slotDate,
		TimeOfDay:    entity.TimeOfDayAM,
		ActivityCode: entity.CodeClinic,
		ChangeType:   entity.ChangeTypeModify,
	})
	require.NoError(t, err)

	result, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)
	require.True(t, result.Success)

	rollback, err := f.svc.Rollback(ctx, d.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, rollback.Success)
	assert.Equal(t, 1, rollback.FailedCount)
	assert.Equal(t, draft.ErrCodeRollbackFailed, rollback.ErrorCode)

	// The draft stays published for manual recovery.
	current, err := f.db.DraftRepository().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DraftStatusPublished, current.Status)
}

// Preview reflects counts, assignments and flags without mutating.
func TestPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	person := helpers.NewPersonBuilder().WithName("Dr. Chen").Build()
	require.NoError(t, f.db.PersonRepository().Create(ctx, person))

	_, err := f.svc.AddDraftAssignment(ctx, d.ID, draft.AddAssignmentInput{
		PersonID:     person.ID,
		Date:         day(2026, time.March, 17),
		TimeOfDay:    entity.TimeOfDayAll,
		ActivityCode: entity.CodeClinic,
		ChangeType:   entity.ChangeTypeAdd,
	})
	require.NoError(t, err)
	_, err = f.svc.AddFlag(ctx, d.ID, draft.FlagInput{
		FlagType: entity.FlagTypeCoverageGap,
		Severity: entity.FlagSeverityInfo,
		Message:  "gap on Tuesday",
	})
	require.NoError(t, err)

	preview, err := f.svc.Preview(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.AddCount)
	assert.Equal(t, 1, preview.FlagsTotal)
	require.Len(t, preview.Assignments, 1)
	assert.Equal(t, "Dr. Chen", preview.Assignments[0].PersonName)
	assert.Equal(t, "2026-03-17", preview.Assignments[0].Date)
	assert.Equal(t, "ALL", preview.Assignments[0].TimeOfDay)
	require.Len(t, preview.Flags, 1)
	assert.False(t, preview.Flags[0].Acknowledged)
}

// Discarded drafts accept no further transitions.
func TestDiscard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.createDraft(t)

	require.NoError(t, f.svc.Discard(ctx, d.ID))

	result, err := f.svc.Publish(ctx, d.ID, uuid.New(), "", false)
	require.NoError(t, err)
	assert.Equal(t, draft.ErrCodeInvalidStatus, result.ErrorCode)
}
