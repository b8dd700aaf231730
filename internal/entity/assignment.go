package entity

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentSource tags who wrote a half-day assignment. Sources are
// total-ordered for overwrite rights: PRELOAD > MANUAL > TEMPLATE > SOLVER.
type AssignmentSource string

const (
	SourcePreload  AssignmentSource = "PRELOAD"
	SourceManual   AssignmentSource = "MANUAL"
	SourceTemplate AssignmentSource = "TEMPLATE"
	SourceSolver   AssignmentSource = "SOLVER"
)

// Rank returns the source's position in the precedence order; higher wins.
func (s AssignmentSource) Rank() int {
	switch s {
	case SourcePreload:
		return 3
	case SourceManual:
		return 2
	case SourceTemplate:
		return 1
	case SourceSolver:
		return 0
	}
	return -1
}

// OverwriteDecision is the outcome of applying the source-monotonicity rule
// to a colliding write.
type OverwriteDecision struct {
	Allowed    bool
	IsOverride bool // set when a MANUAL write replaces a non-MANUAL record
}

// DecideOverwrite applies the source precedence rules of the half-day store:
//
//   - a MANUAL write always succeeds, and marks is_override when it replaces
//     a non-MANUAL record;
//   - a higher-ranked source replaces a lower-ranked one;
//   - PRELOAD never replaces an existing PRELOAD, except that a time-off
//     preload replaces a non-time-off preload for the same slot;
//   - equal non-PRELOAD sources may overwrite their own records.
func DecideOverwrite(existing, incoming AssignmentSource, existingTimeOff, incomingTimeOff bool) OverwriteDecision {
	if incoming == SourceManual {
		return OverwriteDecision{Allowed: true, IsOverride: existing != SourceManual}
	}
	if incoming.Rank() > existing.Rank() {
		return OverwriteDecision{Allowed: true}
	}
	if incoming.Rank() < existing.Rank() {
		return OverwriteDecision{}
	}
	if incoming == SourcePreload {
		return OverwriteDecision{Allowed: incomingTimeOff && !existingTimeOff}
	}
	return OverwriteDecision{Allowed: true}
}

// HalfDayAssignment is the engine's authoritative output record: one person
// doing one activity on one (date, half-day) slot. At most one record exists
// per (person, date, half-day).
type HalfDayAssignment struct {
	ID                   uuid.UUID
	PersonID             uuid.UUID
	Date                 time.Time
	HalfDay              HalfDay
	ActivityID           uuid.UUID
	ActivityCode         string           // denormalized for previews and checks
	ActivityCategory     ActivityCategory // denormalized so overwrite policy is O(1)
	RotationTemplateID   *uuid.UUID
	Source               AssignmentSource
	IsOverride           bool
	CountsTowardCapacity bool // derived on write from activity x template
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Slot returns the assignment's canonical slot key.
func (a *HalfDayAssignment) Slot() Slot {
	return Slot{Date: a.Date, HalfDay: a.HalfDay}
}

// IsTimeOff reports whether the assignment carries a time-off activity.
func (a *HalfDayAssignment) IsTimeOff() bool {
	return a.ActivityCategory == ActivityCategoryTimeOff
}
