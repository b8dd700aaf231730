package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository/memory"
	"github.com/rotamed/scheduler/internal/validation"
	"github.com/rotamed/scheduler/tests/helpers"
)

func seedClinicalWeek(t *testing.T, db *memory.Database, person *entity.Person, start time.Time, days int) {
	t.Helper()
	ctx := context.Background()
	activity, err := db.ActivityRepository().GetByCode(ctx, entity.CodeFMIT)
	require.NoError(t, err)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		for _, halfDay := range []entity.HalfDay{entity.HalfDayAM, entity.HalfDayPM} {
			_, err := db.AssignmentRepository().UpsertWithSourcePolicy(ctx, &entity.HalfDayAssignment{
				PersonID:         person.ID,
				Date:             d,
				HalfDay:          halfDay,
				ActivityID:       activity.ID,
				ActivityCode:     activity.Code,
				ActivityCategory: activity.Category,
				Source:           entity.SourcePreload,
			})
			require.NoError(t, err)
		}
	}
}

// A fully clinical week is 14 half-days = 56 hours, inside the 80-hour
// limit: no warnings.
func TestACGMECheckerCleanWeek(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDatabase()
	helpers.SeedActivities(t, db)

	resident := helpers.NewPersonBuilder().WithName("R. Busy").AsResident(2).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))

	start := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)
	seedClinicalWeek(t, db, resident, start, 7)

	checker := validation.NewACGMEChecker(db)
	result, err := checker.Validate(ctx, start, start.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.False(t, result.HasWarnings())
}

// Faculty hours never trigger resident duty-hour warnings.
func TestACGMECheckerIgnoresNonResidents(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDatabase()
	helpers.SeedActivities(t, db)

	faculty := helpers.NewPersonBuilder().Build()
	require.NoError(t, db.PersonRepository().Create(ctx, faculty))

	start := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)
	seedClinicalWeek(t, db, faculty, start, 7)

	checker := validation.NewACGMEChecker(db)
	result, err := checker.Validate(ctx, start, start.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
}
