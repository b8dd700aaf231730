// Package postgres integration tests run against a disposable PostgreSQL
// container. They are skipped in -short mode.
package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

func startPostgres(ctx context.Context, t *testing.T) *DB {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "scheduler_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/scheduler_test?sslmode=disable", host, port.Port())
	db, err := New(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, ApplySchema(ctx, db.DB))
	return db
}

func TestPostgresRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db := startPostgres(ctx, t)

	t.Run("assignment upsert enforces source policy", func(t *testing.T) {
		repo := db.AssignmentRepository()
		personID := uuid.New()
		d := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)

		row := &entity.HalfDayAssignment{
			PersonID:         personID,
			Date:             d,
			HalfDay:          entity.HalfDayAM,
			ActivityID:       uuid.New(),
			ActivityCode:     "FMIT",
			ActivityCategory: entity.ActivityCategoryClinical,
			Source:           entity.SourcePreload,
		}
		outcome, err := repo.UpsertWithSourcePolicy(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, repository.UpsertInserted, outcome)

		// A solver write cannot downgrade the preload.
		lower := &entity.HalfDayAssignment{
			PersonID:         personID,
			Date:             d,
			HalfDay:          entity.HalfDayAM,
			ActivityID:       uuid.New(),
			ActivityCode:     "IM",
			ActivityCategory: entity.ActivityCategoryClinical,
			Source:           entity.SourceSolver,
		}
		outcome, err = repo.UpsertWithSourcePolicy(ctx, lower)
		require.NoError(t, err)
		assert.Equal(t, repository.UpsertSkipped, outcome)

		got, err := repo.GetBySlot(ctx, personID, d, entity.HalfDayAM)
		require.NoError(t, err)
		assert.Equal(t, "FMIT", got.ActivityCode)

		// A manual write overrides and flags it.
		manual := &entity.HalfDayAssignment{
			PersonID:         personID,
			Date:             d,
			HalfDay:          entity.HalfDayAM,
			ActivityID:       uuid.New(),
			ActivityCode:     "C",
			ActivityCategory: entity.ActivityCategoryClinical,
			Source:           entity.SourceManual,
		}
		outcome, err = repo.UpsertWithSourcePolicy(ctx, manual)
		require.NoError(t, err)
		assert.Equal(t, repository.UpsertUpdated, outcome)

		got, err = repo.GetBySlot(ctx, personID, d, entity.HalfDayAM)
		require.NoError(t, err)
		assert.Equal(t, entity.SourceManual, got.Source)
		assert.True(t, got.IsOverride)
	})

	t.Run("repeated upsert of one slot inside a transaction", func(t *testing.T) {
		tx, err := db.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		repo := tx.AssignmentRepository()
		personID := uuid.New()
		d := time.Date(2026, time.March, 17, 0, 0, 0, 0, time.UTC)

		for i := 0; i < 2; i++ {
			row := &entity.HalfDayAssignment{
				PersonID:         personID,
				Date:             d,
				HalfDay:          entity.HalfDayPM,
				ActivityID:       uuid.New(),
				ActivityCode:     "NF",
				ActivityCategory: entity.ActivityCategoryClinical,
				Source:           entity.SourcePreload,
			}
			_, err := repo.UpsertWithSourcePolicy(ctx, row)
			require.NoError(t, err)
		}
		require.NoError(t, tx.Commit())

		count, err := db.AssignmentRepository().Count(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, int64(1))
	})

	t.Run("draft roundtrip with assignments and flags", func(t *testing.T) {
		drafts := db.DraftRepository()

		d := &entity.ScheduleDraft{
			StartDate:   time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2026, time.March, 22, 0, 0, 0, 0, time.UTC),
			Status:      entity.DraftStatusDraft,
			SourceType:  entity.DraftSourceSolver,
			CreatedByID: uuid.New(),
		}
		require.NoError(t, drafts.Create(ctx, d))

		found, err := drafts.GetActiveDraftByRange(ctx, d.StartDate, d.EndDate)
		require.NoError(t, err)
		assert.Equal(t, d.ID, found.ID)

		da := &entity.DraftAssignment{
			DraftID:      d.ID,
			PersonID:     uuid.New(),
			Date:         time.Date(2026, time.March, 17, 0, 0, 0, 0, time.UTC),
			TimeOfDay:    entity.TimeOfDayAll,
			ActivityCode: "C",
			ChangeType:   entity.ChangeTypeAdd,
		}
		require.NoError(t, drafts.CreateAssignment(ctx, da))

		// The slot key is unique within the draft.
		dup := *da
		dup.ID = uuid.Nil
		err = drafts.CreateAssignment(ctx, &dup)
		require.Error(t, err)
		assert.True(t, repository.IsConflict(err))

		flag := &entity.DraftFlag{
			DraftID:  d.ID,
			FlagType: entity.FlagTypeCoverageGap,
			Severity: entity.FlagSeverityWarning,
			Message:  "gap",
		}
		require.NoError(t, drafts.CreateFlag(ctx, flag))

		rows, err := drafts.ListAssignments(ctx, d.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		flags, err := drafts.ListFlags(ctx, d.ID)
		require.NoError(t, err)
		assert.Len(t, flags, 1)
	})

	t.Run("conflict alerts and swaps", func(t *testing.T) {
		alerts := db.ConflictAlertRepository()
		weekStart := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)

		alert := &entity.ConflictAlert{
			PersonID:      uuid.New(),
			FMITWeekStart: weekStart,
			ConflictType:  entity.ConflictLeaveFMITOverlap,
			Severity:      entity.ConflictSeverityWarning,
			Status:        entity.AlertStatusNew,
		}
		require.NoError(t, alerts.Create(ctx, alert))

		open, err := alerts.ListOpenByWeek(ctx, weekStart)
		require.NoError(t, err)
		assert.Len(t, open, 1)

		require.NoError(t, alert.MarkResolved(uuid.New(), "resolved in test", time.Now().UTC()))
		require.NoError(t, alerts.Update(ctx, alert))

		open, err = alerts.ListOpenByWeek(ctx, weekStart)
		require.NoError(t, err)
		assert.Empty(t, open)

		swap := &entity.SwapRecord{
			SourcePersonID:  alert.PersonID,
			SourceWeekStart: weekStart,
			TargetPersonID:  uuid.New(),
			SwapType:        entity.SwapTypeAbsorb,
			Status:          entity.SwapStatusApproved,
			Reason:          "integration test",
		}
		require.NoError(t, db.SwapRepository().Create(ctx, swap))
		got, err := db.SwapRepository().GetByID(ctx, swap.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.SwapStatusApproved, got.Status)
	})
}
