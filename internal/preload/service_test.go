package preload_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/logger"
	"github.com/rotamed/scheduler/internal/preload"
	"github.com/rotamed/scheduler/internal/repository/memory"
	"github.com/rotamed/scheduler/tests/helpers"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// block 10 of AY2025 in these tests runs 2026-03-12 .. 2026-04-08.
func testWindow() entity.BlockWindow {
	return entity.BlockWindow{Number: 10, AcademicYear: 2025, Start: day(2026, time.March, 12)}
}

func newFixture(t *testing.T) (*memory.Database, *preload.Service) {
	t.Helper()
	db := memory.NewDatabase()
	helpers.SeedActivities(t, db)
	svc := preload.NewService(db, logger.NewNop(), preload.Config{})
	return db, svc
}

func getSlot(t *testing.T, db *memory.Database, personID entity.PersonID, d time.Time, halfDay entity.HalfDay) *entity.HalfDayAssignment {
	t.Helper()
	a, err := db.AssignmentRepository().GetBySlot(context.Background(), personID, d, halfDay)
	require.NoError(t, err)
	return a
}

// Absences are pass 1 and win over the later inpatient pass: a vacation day
// inside a KAP stint stays leave.
func TestAbsenceBeatsInpatientPreload(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	resident := helpers.NewPersonBuilder().AsResident(2).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))

	monday := day(2026, time.March, 16)
	preloads := db.PreloadRepository()
	require.NoError(t, preloads.CreateInpatientPreload(ctx, &entity.InpatientPreload{
		PersonID:  resident.ID,
		StartDate: monday,
		EndDate:   monday,
		RotationType: "KAP",
	}))
	require.NoError(t, preloads.CreateAbsence(ctx, &entity.Absence{
		PersonID:              resident.ID,
		StartDate:             monday,
		EndDate:               monday,
		AbsenceType:           entity.AbsenceTypeVacation,
		Approved:              true,
		ShouldBlockAssignment: true,
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	am := getSlot(t, db, resident.ID, monday, entity.HalfDayAM)
	assert.Equal(t, entity.CodeLeaveAM, am.ActivityCode)
	assert.Equal(t, entity.SourcePreload, am.Source)

	pm := getSlot(t, db, resident.ID, monday, entity.HalfDayPM)
	assert.Equal(t, entity.CodeLeavePM, pm.ActivityCode)
	assert.Equal(t, entity.SourcePreload, pm.Source)
}

// Both half-days of every blocking absence day carry leave codes.
func TestAbsenceCoversEveryDay(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	resident := helpers.NewPersonBuilder().AsResident(1).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))
	require.NoError(t, db.PreloadRepository().CreateAbsence(ctx, &entity.Absence{
		PersonID:              resident.ID,
		StartDate:             day(2026, time.March, 16),
		EndDate:               day(2026, time.March, 18),
		AbsenceType:           entity.AbsenceTypeConference,
		Approved:              true,
		ShouldBlockAssignment: true,
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	entity.EachDay(day(2026, time.March, 16), day(2026, time.March, 18), func(d time.Time) {
		assert.Equal(t, entity.CodeLeaveAM, getSlot(t, db, resident.ID, d, entity.HalfDayAM).ActivityCode)
		assert.Equal(t, entity.CodeLeavePM, getSlot(t, db, resident.ID, d, entity.HalfDayPM).ActivityCode)
	})
}

// Non-blocking absences emit nothing.
func TestNonBlockingAbsenceSkipped(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)

	resident := helpers.NewPersonBuilder().AsResident(1).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))
	require.NoError(t, db.PreloadRepository().CreateAbsence(ctx, &entity.Absence{
		PersonID:              resident.ID,
		StartDate:             day(2026, time.March, 16),
		EndDate:               day(2026, time.March, 16),
		AbsenceType:           entity.AbsenceTypeOther,
		ShouldBlockAssignment: false,
	}))

	result, err := svc.LoadBlockPreloads(ctx, testWindow())
	require.NoError(t, err)
	assert.Zero(t, result.ByPass[preload.PassAbsences])
}

// Mid-block transition: primary NEURO gives way to secondary NF on day 11.
func TestMidBlockTransitionToNightFloat(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	resident := helpers.NewPersonBuilder().AsResident(2).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))

	neuro := helpers.NewTemplateBuilder("NEURO").Build()
	nf := helpers.NewTemplateBuilder("NF").Inpatient().Build()
	require.NoError(t, db.RotationTemplateRepository().Create(ctx, neuro))
	require.NoError(t, db.RotationTemplateRepository().Create(ctx, nf))

	require.NoError(t, db.PreloadRepository().CreateBlockAssignment(ctx, &entity.BlockAssignment{
		PersonID:            resident.ID,
		BlockNumber:         window.Number,
		AcademicYear:        window.AcademicYear,
		PrimaryTemplateID:   neuro.ID,
		SecondaryTemplateID: &nf.ID,
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	// 2026-03-24 (day 12, second half) is an NF weekday: OFF / NF.
	tuesday := day(2026, time.March, 24)
	assert.Equal(t, entity.CodeOff, getSlot(t, db, resident.ID, tuesday, entity.HalfDayAM).ActivityCode)
	assert.Equal(t, entity.CodeNF, getSlot(t, db, resident.ID, tuesday, entity.HalfDayPM).ActivityCode)

	// 2026-03-22 (day 10, first half) is still NEURO: the only row comes
	// from the compound-weekend pass, not the NF pattern.
	sunday := day(2026, time.March, 22)
	assert.Equal(t, entity.CodeWeekend, getSlot(t, db, resident.ID, sunday, entity.HalfDayPM).ActivityCode)

	// And the NEURO weekdays carry no NF rows at all.
	monday := day(2026, time.March, 16)
	_, err = db.AssignmentRepository().GetBySlot(ctx, resident.ID, monday, entity.HalfDayPM)
	assert.Error(t, err)
}

// Compound weekends: the day-rotation half gets W on its weekends; the
// night-float half keeps its own weekend pattern.
func TestCompoundRotationWeekends(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	resident := helpers.NewPersonBuilder().AsResident(2).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))

	neuro := helpers.NewTemplateBuilder("NEURO").Build()
	nf := helpers.NewTemplateBuilder("NF").Inpatient().WithWeekendWork().Build()
	require.NoError(t, db.RotationTemplateRepository().Create(ctx, neuro))
	require.NoError(t, db.RotationTemplateRepository().Create(ctx, nf))

	require.NoError(t, db.PreloadRepository().CreateBlockAssignment(ctx, &entity.BlockAssignment{
		PersonID:            resident.ID,
		BlockNumber:         window.Number,
		AcademicYear:        window.AcademicYear,
		PrimaryTemplateID:   neuro.ID,
		SecondaryTemplateID: &nf.ID,
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	// 2026-03-21 (Saturday, day 9, NEURO half): weekend off.
	saturday := day(2026, time.March, 21)
	assert.Equal(t, entity.CodeWeekend, getSlot(t, db, resident.ID, saturday, entity.HalfDayAM).ActivityCode)
	assert.Equal(t, entity.CodeWeekend, getSlot(t, db, resident.ID, saturday, entity.HalfDayPM).ActivityCode)

	// 2026-03-28 (Saturday, day 16, NF half): the compound pass skips it;
	// the NF day pattern owns the slot.
	secondSaturday := day(2026, time.March, 28)
	pm := getSlot(t, db, resident.ID, secondSaturday, entity.HalfDayPM)
	assert.Equal(t, entity.CodeWeekend, pm.ActivityCode)
}

// FMIT faculty get CALL on Friday and Saturday PM of the stint.
func TestFMITCall(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	faculty := helpers.NewPersonBuilder().Build()
	require.NoError(t, db.PersonRepository().Create(ctx, faculty))
	require.NoError(t, db.PreloadRepository().CreateInpatientPreload(ctx, &entity.InpatientPreload{
		PersonID:     faculty.ID,
		StartDate:    day(2026, time.March, 16),
		EndDate:      day(2026, time.March, 22),
		RotationType: "FMIT",
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	friday := day(2026, time.March, 20)
	saturday := day(2026, time.March, 21)
	assert.Equal(t, entity.CodeCall, getSlot(t, db, faculty.ID, friday, entity.HalfDayPM).ActivityCode)
	assert.Equal(t, entity.CodeCall, getSlot(t, db, faculty.ID, saturday, entity.HalfDayPM).ActivityCode)

	// Mornings stay FMIT.
	assert.Equal(t, entity.CodeFMIT, getSlot(t, db, faculty.ID, friday, entity.HalfDayAM).ActivityCode)
	assert.Equal(t, entity.CodeFMIT, getSlot(t, db, faculty.ID, day(2026, time.March, 17), entity.HalfDayPM).ActivityCode)
}

// FMIT residents get their continuity clinic half-day by PGY level.
func TestFMITInpatientContinuityClinic(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	pgy2 := helpers.NewPersonBuilder().WithName("R2").AsResident(2).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, pgy2))
	require.NoError(t, db.PreloadRepository().CreateInpatientPreload(ctx, &entity.InpatientPreload{
		PersonID:     pgy2.ID,
		StartDate:    day(2026, time.March, 16),
		EndDate:      day(2026, time.March, 22),
		RotationType: "FMIT",
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	// PGY-2: Tuesday PM.
	tuesday := day(2026, time.March, 17)
	assert.Equal(t, entity.CodeClinicInpatient, getSlot(t, db, pgy2.ID, tuesday, entity.HalfDayPM).ActivityCode)
	assert.Equal(t, entity.CodeFMIT, getSlot(t, db, pgy2.ID, tuesday, entity.HalfDayAM).ActivityCode)
}

// The day after a faculty call night is post-call morning and day off
// afternoon, unless the person is on FMIT that day.
func TestFacultyPostCall(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	faculty := helpers.NewPersonBuilder().Build()
	onFMIT := helpers.NewPersonBuilder().WithName("FMIT Faculty").Build()
	require.NoError(t, db.PersonRepository().Create(ctx, faculty))
	require.NoError(t, db.PersonRepository().Create(ctx, onFMIT))

	preloads := db.PreloadRepository()
	wednesday := day(2026, time.March, 18)
	require.NoError(t, preloads.CreateCallAssignment(ctx, &entity.CallAssignment{PersonID: faculty.ID, Date: wednesday}))
	require.NoError(t, preloads.CreateCallAssignment(ctx, &entity.CallAssignment{PersonID: onFMIT.ID, Date: wednesday}))
	require.NoError(t, preloads.CreateInpatientPreload(ctx, &entity.InpatientPreload{
		PersonID:     onFMIT.ID,
		StartDate:    day(2026, time.March, 16),
		EndDate:      day(2026, time.March, 22),
		RotationType: "FMIT",
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	thursday := day(2026, time.March, 19)
	assert.Equal(t, entity.CodePostCall, getSlot(t, db, faculty.ID, thursday, entity.HalfDayAM).ActivityCode)
	assert.Equal(t, entity.CodeDayOff, getSlot(t, db, faculty.ID, thursday, entity.HalfDayPM).ActivityCode)

	// The FMIT faculty member keeps FMIT instead of post-call.
	assert.Equal(t, entity.CodeFMIT, getSlot(t, db, onFMIT.ID, thursday, entity.HalfDayAM).ActivityCode)
}

// The post-call pass can be suppressed when the solver owns PCAT/DO.
func TestFacultyPostCallSuppressed(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDatabase()
	helpers.SeedActivities(t, db)
	svc := preload.NewService(db, logger.NewNop(), preload.Config{SkipFacultyPostCall: true})

	faculty := helpers.NewPersonBuilder().Build()
	require.NoError(t, db.PersonRepository().Create(ctx, faculty))
	require.NoError(t, db.PreloadRepository().CreateCallAssignment(ctx, &entity.CallAssignment{
		PersonID: faculty.ID,
		Date:     day(2026, time.March, 18),
	}))

	result, err := svc.LoadBlockPreloads(ctx, testWindow())
	require.NoError(t, err)
	_, ran := result.ByPass[preload.PassFacultyPostCall]
	assert.False(t, ran)
	_, err = db.AssignmentRepository().GetBySlot(ctx, faculty.ID, day(2026, time.March, 19), entity.HalfDayAM)
	assert.Error(t, err)
}

// Sports medicine faculty get their admin half-day every Wednesday morning.
func TestSportsMedicinePass(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	sm := helpers.NewPersonBuilder().WithAdminType("SM").Build()
	require.NoError(t, db.PersonRepository().Create(ctx, sm))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	for _, d := range []time.Time{
		day(2026, time.March, 18), day(2026, time.March, 25),
		day(2026, time.April, 1), day(2026, time.April, 8),
	} {
		assert.Equal(t, entity.CodeSportsMed, getSlot(t, db, sm.ID, d, entity.HalfDayAM).ActivityCode, d.Format("2006-01-02"))
	}
}

// Institutional events skip residents on inpatient service unless flagged.
func TestInstitutionalEventInpatientExclusion(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	inpatient := helpers.NewPersonBuilder().WithName("Ward Resident").AsResident(2).Build()
	clinic := helpers.NewPersonBuilder().WithName("Clinic Resident").AsResident(2).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, inpatient))
	require.NoError(t, db.PersonRepository().Create(ctx, clinic))

	eventDay := day(2026, time.March, 25)
	halfDay := entity.HalfDayAM
	preloads := db.PreloadRepository()
	require.NoError(t, preloads.CreateInpatientPreload(ctx, &entity.InpatientPreload{
		PersonID:     inpatient.ID,
		StartDate:    day(2026, time.March, 23),
		EndDate:      day(2026, time.March, 29),
		RotationType: "IM",
	}))
	require.NoError(t, preloads.CreateInstitutionalEvent(ctx, &entity.InstitutionalEvent{
		Name:         "All-hands didactics",
		StartDate:    eventDay,
		EndDate:      eventDay,
		Scope:        entity.EventScopeResident,
		HalfDay:      &halfDay,
		ActivityCode: entity.CodeLecture,
		Active:       true,
	}))

	_, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)

	assert.Equal(t, entity.CodeLecture, getSlot(t, db, clinic.ID, eventDay, entity.HalfDayAM).ActivityCode)
	// The ward resident keeps the IM preload.
	assert.Equal(t, entity.CodeIM, getSlot(t, db, inpatient.ID, eventDay, entity.HalfDayAM).ActivityCode)
}

// Two runs over the same inputs leave the store unchanged: every record is
// already present, so the second run writes nothing.
func TestPreloadDeterminismAndIdempotence(t *testing.T) {
	ctx := context.Background()
	db, svc := newFixture(t)
	window := testWindow()

	resident := helpers.NewPersonBuilder().AsResident(1).Build()
	faculty := helpers.NewPersonBuilder().WithName("Call Faculty").Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))
	require.NoError(t, db.PersonRepository().Create(ctx, faculty))

	preloads := db.PreloadRepository()
	require.NoError(t, preloads.CreateInpatientPreload(ctx, &entity.InpatientPreload{
		PersonID:     resident.ID,
		StartDate:    day(2026, time.March, 16),
		EndDate:      day(2026, time.March, 22),
		RotationType: "FMIT",
	}))
	require.NoError(t, preloads.CreateCallAssignment(ctx, &entity.CallAssignment{
		PersonID: faculty.ID,
		Date:     day(2026, time.March, 18),
	}))

	first, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)
	require.NotZero(t, first.Total)

	countAfterFirst, err := db.AssignmentRepository().Count(ctx)
	require.NoError(t, err)

	second, err := svc.LoadBlockPreloads(ctx, window)
	require.NoError(t, err)
	assert.Zero(t, second.Total)

	countAfterSecond, err := db.AssignmentRepository().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, countAfterSecond)
}

// An unknown required activity aborts the run.
func TestUnknownRequiredActivityAborts(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDatabase() // no seeded activities
	svc := preload.NewService(db, logger.NewNop(), preload.Config{})

	resident := helpers.NewPersonBuilder().AsResident(1).Build()
	require.NoError(t, db.PersonRepository().Create(ctx, resident))
	require.NoError(t, db.PreloadRepository().CreateAbsence(ctx, &entity.Absence{
		PersonID:              resident.ID,
		StartDate:             day(2026, time.March, 16),
		EndDate:               day(2026, time.March, 16),
		AbsenceType:           entity.AbsenceTypeVacation,
		ShouldBlockAssignment: true,
	}))

	_, err := svc.LoadBlockPreloads(ctx, testWindow())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrActivityNotFound)
}
