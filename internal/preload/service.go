package preload

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// Config tunes the preload run.
type Config struct {
	// SkipFacultyPostCall suppresses the faculty post-call pass when a
	// downstream solver generates PCAT/DO from newly generated call
	// assignments instead.
	SkipFacultyPostCall bool
}

// Service runs the ordered preload passes for a block window. Each pass only
// adds or upgrades half-day records; the store's source-precedence rules
// guarantee no pass downgrades an earlier one.
type Service struct {
	db  repository.Database
	log *zap.SugaredLogger
	cfg Config
}

// NewService creates a preload service.
func NewService(db repository.Database, log *zap.SugaredLogger, cfg Config) *Service {
	return &Service{db: db, log: log, cfg: cfg}
}

// LoadResult reports what one preload run wrote, per pass.
type LoadResult struct {
	Window entity.BlockWindow
	ByPass map[string]int
	Total  int
}

// Pass names, in execution order.
const (
	PassAbsences            = "absences"
	PassInstitutionalEvents = "institutional_events"
	PassRotationProtected   = "rotation_protected"
	PassInpatient           = "inpatient"
	PassFMITCall            = "fmit_call"
	PassInpatientClinic     = "inpatient_clinic"
	PassResidentCall        = "resident_call"
	PassFacultyPostCall     = "faculty_post_call"
	PassSportsMedicine      = "sports_medicine"
	PassCompoundWeekends    = "compound_weekends"
)

// loadContext carries the reference data and declarative inputs for one run.
type loadContext struct {
	window        entity.BlockWindow
	assignments   repository.AssignmentRepository
	persons       map[uuid.UUID]*entity.Person
	activities    map[string]*entity.Activity
	templates     map[uuid.UUID]*entity.RotationTemplate
	templateByAbb map[string]*entity.RotationTemplate

	absences      []*entity.Absence
	events        []*entity.InstitutionalEvent
	inpatients    []*entity.InpatientPreload
	calls         []*entity.CallAssignment
	residentCalls []*entity.ResidentCallPreload
	blockAssigns  []*entity.BlockAssignment

	inpatientsByPerson map[uuid.UUID][]*entity.InpatientPreload
}

// LoadBlockPreloads populates all locked assignments for the window inside
// one transaction, running every pass in the fixed order. A hard failure in
// any pass aborts the whole run.
func (s *Service) LoadBlockPreloads(ctx context.Context, window entity.BlockWindow) (*LoadResult, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin preload transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lc, err := s.buildLoadContext(ctx, tx, window)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Window: window, ByPass: make(map[string]int)}

	passes := []struct {
		name string
		run  func(context.Context, *loadContext) (int, error)
	}{
		{PassAbsences, s.loadAbsences},
		{PassInstitutionalEvents, s.loadInstitutionalEvents},
		{PassRotationProtected, s.loadRotationProtected},
		{PassInpatient, s.loadInpatient},
		{PassFMITCall, s.loadFMITCall},
		{PassInpatientClinic, s.loadInpatientClinic},
		{PassResidentCall, s.loadResidentCall},
		{PassFacultyPostCall, s.loadFacultyPostCall},
		{PassSportsMedicine, s.loadSportsMedicine},
		{PassCompoundWeekends, s.loadCompoundWeekends},
	}

	for _, pass := range passes {
		if pass.name == PassFacultyPostCall && s.cfg.SkipFacultyPostCall {
			s.log.Infow("skipping faculty post-call pass", "reason", "solver generates post-call")
			continue
		}
		count, err := pass.run(ctx, lc)
		if err != nil {
			return nil, fmt.Errorf("preload pass %s failed: %w", pass.name, err)
		}
		result.ByPass[pass.name] = count
		result.Total += count
		s.log.Infow("preload pass complete", "pass", pass.name, "written", count)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit preload transaction: %w", err)
	}
	committed = true

	s.log.Infow("preloads loaded",
		"block", window.Number, "academic_year", window.AcademicYear, "total", result.Total)
	return result, nil
}

func (s *Service) buildLoadContext(ctx context.Context, tx repository.Transaction, window entity.BlockWindow) (*loadContext, error) {
	lc := &loadContext{
		window:             window,
		assignments:        tx.AssignmentRepository(),
		persons:            make(map[uuid.UUID]*entity.Person),
		activities:         make(map[string]*entity.Activity),
		templates:          make(map[uuid.UUID]*entity.RotationTemplate),
		templateByAbb:      make(map[string]*entity.RotationTemplate),
		inpatientsByPerson: make(map[uuid.UUID][]*entity.InpatientPreload),
	}

	persons, err := tx.PersonRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persons: %w", err)
	}
	for _, p := range persons {
		lc.persons[p.ID] = p
	}

	activities, err := tx.ActivityRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	for _, a := range activities {
		lc.activities[a.Code] = a
	}

	templates, err := tx.RotationTemplateRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rotation templates: %w", err)
	}
	for _, t := range templates {
		lc.templates[t.ID] = t
		lc.templateByAbb[CanonicalRotationCode(t.Abbreviation)] = t
	}

	preloads := tx.PreloadRepository()
	start, end := window.Start, window.End()
	if lc.absences, err = preloads.ListAbsences(ctx, start, end); err != nil {
		return nil, err
	}
	if lc.events, err = preloads.ListInstitutionalEvents(ctx, start, end); err != nil {
		return nil, err
	}
	// Post-call emission can land one day past a call night at the window
	// edge, so inpatient lookups extend one day beyond.
	if lc.inpatients, err = preloads.ListInpatientPreloads(ctx, start, end.AddDate(0, 0, 1)); err != nil {
		return nil, err
	}
	if lc.calls, err = preloads.ListCallAssignments(ctx, start.AddDate(0, 0, -1), end); err != nil {
		return nil, err
	}
	if lc.residentCalls, err = preloads.ListResidentCallPreloads(ctx, start, end); err != nil {
		return nil, err
	}
	if lc.blockAssigns, err = preloads.ListBlockAssignments(ctx, window.Number, window.AcademicYear); err != nil {
		return nil, err
	}

	for _, p := range lc.inpatients {
		lc.inpatientsByPerson[p.PersonID] = append(lc.inpatientsByPerson[p.PersonID], p)
	}
	return lc, nil
}

// emit writes one locked half-day record. Unknown required activity codes
// abort the pass; unknown optional ones log a warning and skip the emit.
// Returns 1 when a row was inserted or upgraded.
func (s *Service) emit(ctx context.Context, lc *loadContext, personID uuid.UUID, d time.Time, halfDay entity.HalfDay, activityCode string, template *entity.RotationTemplate, required bool) (int, error) {
	activity, ok := lc.activities[activityCode]
	if !ok {
		if required {
			return 0, fmt.Errorf("%w: %s", entity.ErrActivityNotFound, activityCode)
		}
		s.log.Warnw("skipping preload emit: unknown activity code",
			"activity", activityCode, "person", personID, "date", d.Format("2006-01-02"))
		return 0, nil
	}

	assignment := &entity.HalfDayAssignment{
		PersonID:             personID,
		Date:                 d,
		HalfDay:              halfDay,
		ActivityID:           activity.ID,
		ActivityCode:         activity.Code,
		ActivityCategory:     activity.Category,
		Source:               entity.SourcePreload,
		CountsTowardCapacity: deriveCountsTowardCapacity(activity, template),
	}
	if template != nil {
		id := template.ID
		assignment.RotationTemplateID = &id
	}

	outcome, err := lc.assignments.UpsertWithSourcePolicy(ctx, assignment)
	if err != nil {
		return 0, err
	}
	if outcome == repository.UpsertSkipped {
		return 0, nil
	}
	return 1, nil
}

// deriveCountsTowardCapacity derives the stored capacity flag from the
// activity and the active rotation template so downstream checks are O(1).
func deriveCountsTowardCapacity(activity *entity.Activity, template *entity.RotationTemplate) bool {
	if !activity.CountsTowardCapacity {
		return false
	}
	return template == nil || template.Class != entity.RotationClassOff
}

// loadAbsences is pass 1: every day of each blocking absence becomes a
// leave pair.
func (s *Service) loadAbsences(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, absence := range lc.absences {
		if !absence.ShouldBlockAssignment {
			continue
		}
		start, end := clampRange(absence.StartDate, absence.EndDate, lc.window)
		var passErr error
		entity.EachDay(start, end, func(d time.Time) {
			if passErr != nil {
				return
			}
			n, err := s.emit(ctx, lc, absence.PersonID, d, entity.HalfDayAM, entity.CodeLeaveAM, nil, true)
			if err != nil {
				passErr = err
				return
			}
			count += n
			n, err = s.emit(ctx, lc, absence.PersonID, d, entity.HalfDayPM, entity.CodeLeavePM, nil, true)
			if err != nil {
				passErr = err
				return
			}
			count += n
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// loadInstitutionalEvents is pass 2. Residents currently on an inpatient
// preload are excluded unless the event applies to inpatient.
func (s *Service) loadInstitutionalEvents(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, event := range lc.events {
		start, end := clampRange(event.StartDate, event.EndDate, lc.window)
		for _, person := range sortedPersons(lc.persons) {
			if !event.AppliesTo(person.Kind) {
				continue
			}
			var passErr error
			entity.EachDay(start, end, func(d time.Time) {
				if passErr != nil {
					return
				}
				if person.IsResident() && !event.AppliesToInpatient && s.onInpatientPreload(lc, person.ID, d) {
					return
				}
				for _, halfDay := range event.HalfDays() {
					n, err := s.emit(ctx, lc, person.ID, d, halfDay, event.ActivityCode, nil, false)
					if err != nil {
						passErr = err
						return
					}
					count += n
				}
			})
			if passErr != nil {
				return count, passErr
			}
		}
	}
	return count, nil
}

// loadRotationProtected is pass 3: lecture, advising, intern continuity
// clinic, offsite patterns, night-float patterns and template weekly
// patterns derived from block assignments.
func (s *Service) loadRotationProtected(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	lastWed := lastWednesday(lc.window.End())

	for _, ba := range lc.blockAssigns {
		person, ok := lc.persons[ba.PersonID]
		if !ok {
			continue
		}

		var passErr error
		entity.EachDay(lc.window.Start, lc.window.End(), func(d time.Time) {
			if passErr != nil {
				return
			}
			template, code, rangeStart := s.resolveActiveRotation(lc, ba, d)
			if code == "" {
				return
			}

			emit := func(halfDay entity.HalfDay, activityCode string, required bool) {
				if passErr != nil {
					return
				}
				n, err := s.emit(ctx, lc, person.ID, d, halfDay, activityCode, template, required)
				if err != nil {
					passErr = err
					return
				}
				count += n
			}

			switch {
			case IsOffsite(code):
				am, pm := entity.CodeTDY, entity.CodeTDY
				if code == "HILO" || code == "OKI" {
					am, pm = offsiteCodes(d, rangeStart)
				}
				emit(entity.HalfDayAM, am, true)
				emit(entity.HalfDayPM, pm, true)
			case code == "KAP" || code == "LDNF" || code == "NF" || code == "PEDNF":
				am, pm, _ := rotationDayCodes(code, d, rangeStart, person.IsResident(), s.templateHasTimeOff(lc, template))
				emit(entity.HalfDayAM, am, true)
				emit(entity.HalfDayPM, pm, true)
			}
			if passErr != nil {
				return
			}

			if d.Weekday() == time.Wednesday && person.IsResident() && !IsLECExempt(code) {
				if entity.DateEqual(d, lastWed) {
					emit(entity.HalfDayAM, entity.CodeLecture, true)
					emit(entity.HalfDayPM, entity.CodeAdvising, true)
				} else {
					emit(entity.HalfDayPM, entity.CodeLecture, true)
				}
			}

			if d.Weekday() == time.Wednesday && person.IsResident() && person.PGY() == 1 &&
				template != nil && template.Class == entity.RotationClassOutpatient &&
				!IsInternContinuityExempt(code) {
				emit(entity.HalfDayAM, entity.CodeClinic, true)
			}

			if template != nil {
				week := weekInBlock(d, lc.window.Start)
				for _, pattern := range template.PatternsFor(week, entity.DayOfWeekSunFirst(d)) {
					emit(pattern.HalfDay, pattern.ActivityCode, false)
				}
			}
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// loadInpatient is pass 4: FMIT, IM, PedW and night-float stints resolved
// through the day-of-week code rules.
func (s *Service) loadInpatient(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, stint := range lc.inpatients {
		person, ok := lc.persons[stint.PersonID]
		if !ok {
			continue
		}
		code := CanonicalRotationCode(stint.RotationType)
		template := lc.templateByAbb[code]

		if _, _, known := rotationDayCodes(code, stint.StartDate, stint.StartDate, person.IsResident(), false); !known {
			s.log.Warnw("skipping inpatient preload: unknown rotation type",
				"rotation", stint.RotationType, "person", person.ID)
			continue
		}

		start, end := clampRange(stint.StartDate, stint.EndDate, lc.window)
		var passErr error
		entity.EachDay(start, end, func(d time.Time) {
			if passErr != nil {
				return
			}
			am, pm, _ := rotationDayCodes(code, d, stint.StartDate, person.IsResident(), s.templateHasTimeOff(lc, template))
			// Resident FMIT continuity-clinic slots belong to the C-I pass.
			skipAM, skipPM := false, false
			if code == "FMIT" && person.IsResident() {
				switch person.PGY() {
				case 1:
					skipAM = d.Weekday() == time.Wednesday
				case 2:
					skipPM = d.Weekday() == time.Tuesday
				case 3:
					skipPM = d.Weekday() == time.Monday
				}
			}
			if !skipAM {
				n, err := s.emit(ctx, lc, person.ID, d, entity.HalfDayAM, am, template, true)
				if err != nil {
					passErr = err
					return
				}
				count += n
			}
			if skipPM {
				return
			}
			// Faculty FMIT Friday/Saturday PM belongs to the call pass.
			if code == "FMIT" && person.IsFaculty() &&
				(d.Weekday() == time.Friday || d.Weekday() == time.Saturday) {
				return
			}
			n, err := s.emit(ctx, lc, person.ID, d, entity.HalfDayPM, pm, template, true)
			if err != nil {
				passErr = err
				return
			}
			count += n
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// loadFMITCall is pass 5: Friday and Saturday PM call for FMIT faculty.
func (s *Service) loadFMITCall(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, stint := range lc.inpatients {
		if CanonicalRotationCode(stint.RotationType) != "FMIT" {
			continue
		}
		person, ok := lc.persons[stint.PersonID]
		if !ok || !person.IsFaculty() {
			continue
		}
		start, end := clampRange(stint.StartDate, stint.EndDate, lc.window)
		var passErr error
		entity.EachDay(start, end, func(d time.Time) {
			if passErr != nil {
				return
			}
			if d.Weekday() != time.Friday && d.Weekday() != time.Saturday {
				return
			}
			n, err := s.emit(ctx, lc, person.ID, d, entity.HalfDayPM, entity.CodeCall, nil, true)
			if err != nil {
				passErr = err
				return
			}
			count += n
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// loadInpatientClinic is pass 6: inpatient continuity clinic for FMIT
// residents, one protected half-day per week by PGY level.
func (s *Service) loadInpatientClinic(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, stint := range lc.inpatients {
		if CanonicalRotationCode(stint.RotationType) != "FMIT" {
			continue
		}
		person, ok := lc.persons[stint.PersonID]
		if !ok || !person.IsResident() {
			continue
		}

		var weekday time.Weekday
		var halfDay entity.HalfDay
		switch person.PGY() {
		case 1:
			weekday, halfDay = time.Wednesday, entity.HalfDayAM
		case 2:
			weekday, halfDay = time.Tuesday, entity.HalfDayPM
		case 3:
			weekday, halfDay = time.Monday, entity.HalfDayPM
		default:
			continue
		}

		start, end := clampRange(stint.StartDate, stint.EndDate, lc.window)
		var passErr error
		entity.EachDay(start, end, func(d time.Time) {
			if passErr != nil || d.Weekday() != weekday {
				return
			}
			n, err := s.emit(ctx, lc, person.ID, d, halfDay, entity.CodeClinicInpatient, nil, true)
			if err != nil {
				passErr = err
				return
			}
			count += n
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// loadResidentCall is pass 7: each resident call preload becomes CALL on the
// PM of its date.
func (s *Service) loadResidentCall(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, call := range lc.residentCalls {
		if !lc.window.Contains(call.Date) {
			continue
		}
		n, err := s.emit(ctx, lc, call.PersonID, call.Date, entity.HalfDayPM, entity.CodeCall, nil, true)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// loadFacultyPostCall is pass 8: the day after a faculty call night gets a
// post-call morning and a day off afternoon, unless the person is on FMIT
// that day.
func (s *Service) loadFacultyPostCall(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, call := range lc.calls {
		person, ok := lc.persons[call.PersonID]
		if !ok || !person.IsFaculty() {
			continue
		}
		next := call.Date.AddDate(0, 0, 1)
		if !lc.window.Contains(next) {
			continue
		}
		if s.onFMIT(lc, person.ID, next) {
			continue
		}
		n, err := s.emit(ctx, lc, person.ID, next, entity.HalfDayAM, entity.CodePostCall, nil, true)
		if err != nil {
			return count, err
		}
		count += n
		n, err = s.emit(ctx, lc, person.ID, next, entity.HalfDayPM, entity.CodeDayOff, nil, true)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// loadSportsMedicine is pass 9: sports medicine faculty get their admin
// half-day every Wednesday morning.
func (s *Service) loadSportsMedicine(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, person := range sortedPersons(lc.persons) {
		if !person.IsFaculty() || person.AdminType != "SM" {
			continue
		}
		var passErr error
		entity.EachDay(lc.window.Start, lc.window.End(), func(d time.Time) {
			if passErr != nil || d.Weekday() != time.Wednesday {
				return
			}
			n, err := s.emit(ctx, lc, person.ID, d, entity.HalfDayAM, entity.CodeSportsMed, nil, true)
			if err != nil {
				passErr = err
				return
			}
			count += n
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// loadCompoundWeekends is pass 10: a night-float rotation paired with a
// day rotation gets weekend-off preloads on the day rotation's half of the
// block.
func (s *Service) loadCompoundWeekends(ctx context.Context, lc *loadContext) (int, error) {
	count := 0
	for _, ba := range lc.blockAssigns {
		person, ok := lc.persons[ba.PersonID]
		if !ok {
			continue
		}

		firstCode, secondCode, partnerTemplate := s.compoundCodes(lc, ba)
		if secondCode == "" {
			continue
		}

		var dayHalfFirst bool
		switch {
		case IsNightFloat(firstCode) && !IsNightFloat(secondCode):
			dayHalfFirst = false
		case IsNightFloat(secondCode) && !IsNightFloat(firstCode):
			dayHalfFirst = true
		default:
			continue
		}

		dayCode := firstCode
		if !dayHalfFirst {
			dayCode = secondCode
		}
		if IsOffsite(dayCode) {
			continue
		}
		if partnerTemplate != nil && partnerTemplate.IncludesWeekendWork {
			continue
		}

		halfStart, halfEnd := lc.window.Start, lc.window.SecondHalfStart().AddDate(0, 0, -1)
		if !dayHalfFirst {
			halfStart, halfEnd = lc.window.SecondHalfStart(), lc.window.End()
		}

		var passErr error
		entity.EachDay(halfStart, halfEnd, func(d time.Time) {
			if passErr != nil || !entity.IsWeekend(d) {
				return
			}
			for _, halfDay := range []entity.HalfDay{entity.HalfDayAM, entity.HalfDayPM} {
				n, err := s.emit(ctx, lc, person.ID, d, halfDay, entity.CodeWeekend, partnerTemplate, true)
				if err != nil {
					passErr = err
					return
				}
				count += n
			}
		})
		if passErr != nil {
			return count, passErr
		}
	}
	return count, nil
}

// resolveActiveRotation resolves the template, canonical code and active
// range start governing a date under a block assignment, honoring the
// mid-block transition and compound abbreviations.
func (s *Service) resolveActiveRotation(lc *loadContext, ba *entity.BlockAssignment, d time.Time) (*entity.RotationTemplate, string, time.Time) {
	rangeStart := lc.window.Start
	inSecondHalf := lc.window.InSecondHalf(d)
	if inSecondHalf {
		rangeStart = lc.window.SecondHalfStart()
	}

	if ba.SecondaryTemplateID != nil {
		template := lc.templates[ba.ActiveTemplateID(lc.window, d)]
		if template == nil {
			return nil, "", rangeStart
		}
		if !inSecondHalf {
			rangeStart = lc.window.Start
		}
		return template, CanonicalRotationCode(template.Abbreviation), rangeStart
	}

	template := lc.templates[ba.PrimaryTemplateID]
	if template == nil {
		return nil, "", rangeStart
	}
	first, second := SplitCompoundCode(template.Abbreviation)
	if second == "" {
		// Single rotation runs the whole block.
		return template, first, lc.window.Start
	}
	if inSecondHalf {
		return template, second, rangeStart
	}
	return template, first, rangeStart
}

// compoundCodes returns the first- and second-half codes of a compound
// block assignment and the template of the non-night-float partner.
func (s *Service) compoundCodes(lc *loadContext, ba *entity.BlockAssignment) (first, second string, partner *entity.RotationTemplate) {
	primary := lc.templates[ba.PrimaryTemplateID]
	if primary == nil {
		return "", "", nil
	}
	if ba.SecondaryTemplateID != nil {
		secondary := lc.templates[*ba.SecondaryTemplateID]
		if secondary == nil {
			return "", "", nil
		}
		first = CanonicalRotationCode(primary.Abbreviation)
		second = CanonicalRotationCode(secondary.Abbreviation)
		if IsNightFloat(first) {
			partner = secondary
		} else {
			partner = primary
		}
		return first, second, partner
	}
	first, second = SplitCompoundCode(primary.Abbreviation)
	return first, second, primary
}

func (s *Service) templateHasTimeOff(lc *loadContext, template *entity.RotationTemplate) bool {
	if template == nil {
		return false
	}
	return template.HasTimeOffPatterns(func(code string) bool {
		activity, ok := lc.activities[code]
		return ok && activity.IsTimeOff()
	})
}

func (s *Service) onInpatientPreload(lc *loadContext, personID uuid.UUID, d time.Time) bool {
	for _, stint := range lc.inpatientsByPerson[personID] {
		if stint.Covers(d) {
			return true
		}
	}
	return false
}

func (s *Service) onFMIT(lc *loadContext, personID uuid.UUID, d time.Time) bool {
	for _, stint := range lc.inpatientsByPerson[personID] {
		if stint.Covers(d) && CanonicalRotationCode(stint.RotationType) == "FMIT" {
			return true
		}
	}
	return false
}

// clampRange intersects [start, end] with the block window.
func clampRange(start, end time.Time, window entity.BlockWindow) (time.Time, time.Time) {
	if start.Before(window.Start) {
		start = window.Start
	}
	if end.After(window.End()) {
		end = window.End()
	}
	return start, end
}

// sortedPersons returns people in a stable intra-pass order: by name, then
// id.
func sortedPersons(persons map[uuid.UUID]*entity.Person) []*entity.Person {
	out := make([]*entity.Person, 0, len(persons))
	for _, p := range persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
