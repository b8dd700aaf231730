package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// acgmeWeeklyHourLimit is the resident duty-hour ceiling per week.
const acgmeWeeklyHourLimit = 80

// hoursPerClinicalHalfDay converts clinical half-day counts to hours.
const hoursPerClinicalHalfDay = 4

// workloadBalanceFloor is the minimum acceptable balance score.
const workloadBalanceFloor = 0.7

// runSafetyChecks runs all five checks, unconditionally and in order.
func (r *Resolver) runSafetyChecks(ctx context.Context, alert *entity.ConflictAlert) ([]SafetyCheckResult, error) {
	person, err := r.db.PersonRepository().GetByID(ctx, alert.PersonID)
	if err != nil {
		return nil, err
	}
	weekStart, weekEnd := alert.WeekRange()
	weekAssignments, err := r.db.AssignmentRepository().GetByDateRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	checks := []SafetyCheckResult{
		r.checkACGMECompliance(person, weekAssignments),
		r.checkCoverageGap(person, weekAssignments),
	}
	availability, err := r.checkFacultyAvailability(ctx, alert, person, weekAssignments)
	if err != nil {
		return nil, err
	}
	checks = append(checks,
		availability,
		r.checkSupervisionRatio(ctx, person, weekAssignments),
		r.checkWorkloadBalance(ctx, person, weekAssignments),
	)
	return checks, nil
}

// checkACGMECompliance verifies resident duty hours in the alert's week.
// Faculty pass trivially.
func (r *Resolver) checkACGMECompliance(person *entity.Person, weekAssignments []*entity.HalfDayAssignment) SafetyCheckResult {
	result := SafetyCheckResult{Type: CheckACGMECompliance}
	if !person.IsResident() {
		result.Passed = true
		result.Message = "not applicable: person is faculty"
		return result
	}

	clinical := 0
	for _, a := range weekAssignments {
		if a.PersonID == person.ID && a.ActivityCategory == entity.ActivityCategoryClinical {
			clinical++
		}
	}
	hours := clinical * hoursPerClinicalHalfDay
	result.Passed = hours <= acgmeWeeklyHourLimit
	result.Details = map[string]interface{}{"hours": hours, "limit": acgmeWeeklyHourLimit}
	if result.Passed {
		result.Message = fmt.Sprintf("%d clinical hours within the %d-hour limit", hours, acgmeWeeklyHourLimit)
	} else {
		result.Message = fmt.Sprintf("%d clinical hours exceed the %d-hour limit", hours, acgmeWeeklyHourLimit)
	}
	return result
}

// checkCoverageGap verifies the week retains coverage from other people.
func (r *Resolver) checkCoverageGap(person *entity.Person, weekAssignments []*entity.HalfDayAssignment) SafetyCheckResult {
	result := SafetyCheckResult{Type: CheckCoverageGap}
	others := 0
	for _, a := range weekAssignments {
		if a.PersonID != person.ID {
			others++
		}
	}
	result.Passed = others > 1
	result.Details = map[string]interface{}{"other_assignments": others}
	if result.Passed {
		result.Message = fmt.Sprintf("%d other assignments cover the week", others)
	} else {
		result.Message = "removing this person would leave the week uncovered"
	}
	return result
}

// checkFacultyAvailability enumerates other faculty with no open alert and
// no assignment overlapping the week.
func (r *Resolver) checkFacultyAvailability(ctx context.Context, alert *entity.ConflictAlert, person *entity.Person, weekAssignments []*entity.HalfDayAssignment) (SafetyCheckResult, error) {
	result := SafetyCheckResult{Type: CheckFacultyAvailability}

	faculty, err := r.db.PersonRepository().GetByKind(ctx, entity.PersonKindFaculty)
	if err != nil {
		return result, err
	}

	busy := make(map[uuid.UUID]bool)
	for _, a := range weekAssignments {
		busy[a.PersonID] = true
	}

	var available []string
	for _, f := range faculty {
		if f.ID == person.ID || busy[f.ID] {
			continue
		}
		open, err := r.db.ConflictAlertRepository().ListOpenByPerson(ctx, f.ID)
		if err != nil {
			return result, err
		}
		if len(open) == 0 {
			available = append(available, f.ID.String())
		}
	}

	result.Passed = len(available) > 0
	result.Details = map[string]interface{}{"available_faculty": available}
	if result.Passed {
		result.Message = fmt.Sprintf("%d faculty available for the week", len(available))
	} else {
		result.Message = "no faculty available to take over the week"
	}
	return result, nil
}

// checkSupervisionRatio applies only to faculty: residents working the week
// must not be left without any other faculty.
func (r *Resolver) checkSupervisionRatio(ctx context.Context, person *entity.Person, weekAssignments []*entity.HalfDayAssignment) SafetyCheckResult {
	result := SafetyCheckResult{Type: CheckSupervisionRatio}
	if !person.IsFaculty() {
		result.Passed = true
		result.Message = "not applicable: person is a resident"
		return result
	}

	kinds := make(map[uuid.UUID]entity.PersonKind)
	residents, otherFaculty := 0, 0
	for _, a := range weekAssignments {
		if a.PersonID == person.ID {
			continue
		}
		kind, ok := kinds[a.PersonID]
		if !ok {
			p, err := r.db.PersonRepository().GetByID(ctx, a.PersonID)
			if err != nil {
				continue
			}
			kind = p.Kind
			kinds[a.PersonID] = kind
		}
		switch kind {
		case entity.PersonKindResident:
			residents++
		case entity.PersonKindFaculty:
			otherFaculty++
		}
	}

	result.Passed = !(residents > 0 && otherFaculty == 0)
	result.Details = map[string]interface{}{"residents": residents, "other_faculty": otherFaculty}
	if result.Passed {
		result.Message = "supervision ratio maintained"
	} else {
		result.Message = "residents would be left without faculty supervision"
	}
	return result
}

// checkWorkloadBalance scores the person's weekly load against the average:
// balance = 1 − |current − average| / max(average, 1), failing at or below
// the floor.
func (r *Resolver) checkWorkloadBalance(ctx context.Context, person *entity.Person, weekAssignments []*entity.HalfDayAssignment) SafetyCheckResult {
	result := SafetyCheckResult{Type: CheckWorkloadBalance}

	perPerson := make(map[uuid.UUID]int)
	for _, a := range weekAssignments {
		perPerson[a.PersonID]++
	}

	current := float64(perPerson[person.ID])
	total, people := 0.0, 0.0
	for _, n := range perPerson {
		total += float64(n)
		people++
	}
	average := 0.0
	if people > 0 {
		average = total / people
	}
	denominator := average
	if denominator < 1 {
		denominator = 1
	}
	diff := current - average
	if diff < 0 {
		diff = -diff
	}
	score := 1 - diff/denominator

	result.Passed = score > workloadBalanceFloor
	result.Details = map[string]interface{}{"score": score, "current": current, "average": average}
	if result.Passed {
		result.Message = fmt.Sprintf("workload balance score %.2f", score)
	} else {
		result.Message = fmt.Sprintf("workload balance score %.2f at or below %.2f floor", score, workloadBalanceFloor)
	}
	return result
}
