package entity

import (
	"time"

	"github.com/google/uuid"
)

// RotationClass groups rotation templates by where the work happens.
type RotationClass string

const (
	RotationClassInpatient  RotationClass = "INPATIENT"
	RotationClassOutpatient RotationClass = "OUTPATIENT"
	RotationClassOff        RotationClass = "OFF"
)

// WeeklyPattern declares a recurring preload inside a rotation template:
// on the given week of the block (nil = every week) and Sunday=0 day of
// week, the given half-day carries the given activity.
type WeeklyPattern struct {
	WeekNumber   *int // 1-based week within the block; nil matches any week
	DayOfWeek    int  // 0..6, Sunday first
	HalfDay      HalfDay
	ActivityCode string
}

// Matches reports whether the pattern applies on the given week-in-block and
// day-of-week.
func (p WeeklyPattern) Matches(weekInBlock, dayOfWeek int) bool {
	if p.DayOfWeek != dayOfWeek {
		return false
	}
	return p.WeekNumber == nil || *p.WeekNumber == weekInBlock
}

// RotationTemplate is a named assignable activity stream. Templates are
// externally owned reference data; the engine reads them to materialize
// preloads and to build solver variables.
type RotationTemplate struct {
	ID                          uuid.UUID
	Name                        string
	Abbreviation                string
	DisplayAbbreviation         string
	Class                       RotationClass
	RequiresProcedureCredential bool
	MaxConcurrent               *int // capacity per slot, nil = unbounded
	SecondaryTemplateID         *uuid.UUID
	IncludesWeekendWork         bool
	WeeklyPatterns              []WeeklyPattern
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// IsInpatient reports whether the template is an inpatient rotation.
func (t *RotationTemplate) IsInpatient() bool {
	return t.Class == RotationClassInpatient
}

// PatternsFor returns all weekly patterns matching the given week-in-block
// and Sunday-first day-of-week, in declaration order.
func (t *RotationTemplate) PatternsFor(weekInBlock, dayOfWeek int) []WeeklyPattern {
	var out []WeeklyPattern
	for _, p := range t.WeeklyPatterns {
		if p.Matches(weekInBlock, dayOfWeek) {
			out = append(out, p)
		}
	}
	return out
}

// HasTimeOffPatterns reports whether any weekly pattern carries one of the
// given time-off codes. Templates with explicit time-off patterns opt out of
// the default Saturday/Sunday-off rules.
func (t *RotationTemplate) HasTimeOffPatterns(isTimeOff func(code string) bool) bool {
	for _, p := range t.WeeklyPatterns {
		if isTimeOff(p.ActivityCode) {
			return true
		}
	}
	return false
}
