package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assignment(personID uuid.UUID, d time.Time, halfDay entity.HalfDay, code string, category entity.ActivityCategory, source entity.AssignmentSource) *entity.HalfDayAssignment {
	return &entity.HalfDayAssignment{
		PersonID:         personID,
		Date:             d,
		HalfDay:          halfDay,
		ActivityID:       uuid.New(),
		ActivityCode:     code,
		ActivityCategory: category,
		Source:           source,
	}
}

// The slot key is unique: upserting twice leaves exactly one record.
func TestUpsertUniqueness(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	repo := db.AssignmentRepository()
	personID := uuid.New()
	d := day(2026, time.March, 16)

	outcome, err := repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "FMIT", entity.ActivityCategoryClinical, entity.SourceSolver))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertInserted, outcome)

	outcome, err = repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "IM", entity.ActivityCategoryClinical, entity.SourceSolver))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertUpdated, outcome)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

// Source monotonicity: lower-ranked writes are skipped, higher-ranked ones
// upgrade in place.
func TestUpsertSourcePolicy(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	repo := db.AssignmentRepository()
	personID := uuid.New()
	d := day(2026, time.March, 16)

	_, err := repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "FMIT", entity.ActivityCategoryClinical, entity.SourcePreload))
	require.NoError(t, err)

	// Solver cannot downgrade a preload.
	outcome, err := repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "IM", entity.ActivityCategoryClinical, entity.SourceSolver))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertSkipped, outcome)

	row, err := repo.GetBySlot(ctx, personID, d, entity.HalfDayAM)
	require.NoError(t, err)
	assert.Equal(t, "FMIT", row.ActivityCode)

	// A time-off preload replaces the clinical preload.
	outcome, err = repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "LV-AM", entity.ActivityCategoryTimeOff, entity.SourcePreload))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertUpdated, outcome)

	// Manual always wins and marks the override.
	outcome, err = repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "C", entity.ActivityCategoryClinical, entity.SourceManual))
	require.NoError(t, err)
	assert.Equal(t, repository.UpsertUpdated, outcome)

	row, err = repo.GetBySlot(ctx, personID, d, entity.HalfDayAM)
	require.NoError(t, err)
	assert.Equal(t, entity.SourceManual, row.Source)
	assert.True(t, row.IsOverride)
}

// DeleteBySlotAndSource only removes matching-source rows.
func TestDeleteBySlotAndSource(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	repo := db.AssignmentRepository()
	personID := uuid.New()
	d := day(2026, time.March, 16)

	_, err := repo.UpsertWithSourcePolicy(ctx, assignment(personID, d, entity.HalfDayAM, "FMIT", entity.ActivityCategoryClinical, entity.SourcePreload))
	require.NoError(t, err)

	deleted, err := repo.DeleteBySlotAndSource(ctx, personID, d, entity.HalfDayAM, entity.SourceManual)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteBySlotAndSource(ctx, personID, d, entity.HalfDayAM, entity.SourcePreload)
	require.NoError(t, err)
	assert.True(t, deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// Draft assignment uniqueness surfaces as ConflictError.
func TestDraftAssignmentUniqueness(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	drafts := db.DraftRepository()

	d := &entity.ScheduleDraft{
		StartDate:   day(2026, time.March, 16),
		EndDate:     day(2026, time.March, 22),
		Status:      entity.DraftStatusDraft,
		SourceType:  entity.DraftSourceManual,
		CreatedByID: uuid.New(),
	}
	require.NoError(t, drafts.Create(ctx, d))

	da := &entity.DraftAssignment{
		DraftID:      d.ID,
		PersonID:     uuid.New(),
		Date:         day(2026, time.March, 17),
		TimeOfDay:    entity.TimeOfDayAM,
		ActivityCode: "C",
		ChangeType:   entity.ChangeTypeAdd,
	}
	require.NoError(t, drafts.CreateAssignment(ctx, da))

	dup := *da
	dup.ID = uuid.Nil
	err := drafts.CreateAssignment(ctx, &dup)
	require.Error(t, err)
	assert.True(t, repository.IsConflict(err))
}

// ListAssignments preserves insertion order.
func TestDraftAssignmentsStableOrder(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	drafts := db.DraftRepository()

	d := &entity.ScheduleDraft{
		StartDate:   day(2026, time.March, 16),
		EndDate:     day(2026, time.March, 22),
		Status:      entity.DraftStatusDraft,
		SourceType:  entity.DraftSourceManual,
		CreatedByID: uuid.New(),
	}
	require.NoError(t, drafts.Create(ctx, d))

	var want []string
	for i := 0; i < 5; i++ {
		da := &entity.DraftAssignment{
			DraftID:      d.ID,
			PersonID:     uuid.New(),
			Date:         day(2026, time.March, 17+i),
			TimeOfDay:    entity.TimeOfDayPM,
			ActivityCode: "C",
			ChangeType:   entity.ChangeTypeAdd,
		}
		require.NoError(t, drafts.CreateAssignment(ctx, da))
		want = append(want, da.ID.String())
	}

	rows, err := drafts.ListAssignments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, want[i], row.ID.String())
	}
}
