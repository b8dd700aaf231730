package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// weeklyHourLimit is the resident duty-hour ceiling per ISO calendar week.
const weeklyHourLimit = 80

// hoursPerClinicalHalfDay converts clinical half-day counts to hours.
const hoursPerClinicalHalfDay = 4

// ACGMEChecker is a rule-based duty-hour validator over the live half-day
// store. The production deployment swaps in the full compliance service;
// this implementation covers the weekly-hours rule so publish wiring is
// exercised end to end.
type ACGMEChecker struct {
	db repository.Database
}

// NewACGMEChecker creates a checker over the given store.
func NewACGMEChecker(db repository.Database) *ACGMEChecker {
	return &ACGMEChecker{db: db}
}

// Validate scans [start, end] week by week and reports residents whose
// clinical half-days exceed the weekly hour limit. Warnings only; it never
// blocks a publish.
func (c *ACGMEChecker) Validate(ctx context.Context, start, end time.Time) (*Result, error) {
	result := NewResult()

	residents, err := c.db.PersonRepository().GetByKind(ctx, entity.PersonKindResident)
	if err != nil {
		return nil, err
	}
	assignments, err := c.db.AssignmentRepository().GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	residentNames := make(map[uuid.UUID]string, len(residents))
	for _, r := range residents {
		residentNames[r.ID] = r.Name
	}

	// Clinical half-days per (resident, ISO week).
	type weekKey struct {
		personID uuid.UUID
		year     int
		week     int
	}
	counts := make(map[weekKey]int)
	for _, a := range assignments {
		if _, isResident := residentNames[a.PersonID]; !isResident {
			continue
		}
		if a.ActivityCategory != entity.ActivityCategoryClinical {
			continue
		}
		year, week := a.Date.ISOWeek()
		counts[weekKey{personID: a.PersonID, year: year, week: week}]++
	}

	for key, halfDays := range counts {
		hours := halfDays * hoursPerClinicalHalfDay
		if hours <= weeklyHourLimit {
			continue
		}
		result.Add(SeverityWarning, CodeACGMEHours,
			fmt.Sprintf("%s scheduled %d clinical hours in week %d-W%02d (limit %d)",
				residentNames[key.personID], hours, key.year, key.week, weeklyHourLimit),
			map[string]interface{}{"person_id": key.personID.String(), "hours": hours})
	}
	return result, nil
}
