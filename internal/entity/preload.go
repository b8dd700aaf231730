package entity

import (
	"time"

	"github.com/google/uuid"
)

// AbsenceType classifies an absence record.
type AbsenceType string

const (
	AbsenceTypeVacation   AbsenceType = "VACATION"
	AbsenceTypeSick       AbsenceType = "SICK"
	AbsenceTypeConference AbsenceType = "CONFERENCE"
	AbsenceTypeFMLA       AbsenceType = "FMLA"
	AbsenceTypeOther      AbsenceType = "OTHER"
)

// Absence is a declarative leave record. Blocking absences emit LV-AM/LV-PM
// preloads for every day in the range.
type Absence struct {
	ID                    uuid.UUID
	PersonID              uuid.UUID
	StartDate             time.Time
	EndDate               time.Time
	AbsenceType           AbsenceType
	Approved              bool
	ShouldBlockAssignment bool
}

// Overlaps reports whether the absence intersects [start, end].
func (a *Absence) Overlaps(start, end time.Time) bool {
	return !a.EndDate.Before(start) && !a.StartDate.After(end)
}

// EventScope limits which people an institutional event applies to.
type EventScope string

const (
	EventScopeAll      EventScope = "ALL"
	EventScopeFaculty  EventScope = "FACULTY"
	EventScopeResident EventScope = "RESIDENT"
)

// InstitutionalEvent is a program-wide calendar event (holiday, retreat,
// didactics day) that preloads an activity for the scoped people set.
type InstitutionalEvent struct {
	ID                uuid.UUID
	Name              string
	StartDate         time.Time
	EndDate           time.Time
	Scope             EventScope
	HalfDay           *HalfDay // nil = both halves
	AppliesToInpatient bool
	ActivityCode      string
	Active            bool
}

// AppliesTo reports whether the event's scope covers the given person kind.
func (e *InstitutionalEvent) AppliesTo(kind PersonKind) bool {
	switch e.Scope {
	case EventScopeAll:
		return true
	case EventScopeFaculty:
		return kind == PersonKindFaculty
	case EventScopeResident:
		return kind == PersonKindResident
	}
	return false
}

// HalfDays returns the half-days the event occupies.
func (e *InstitutionalEvent) HalfDays() []HalfDay {
	if e.HalfDay == nil {
		return []HalfDay{HalfDayAM, HalfDayPM}
	}
	return []HalfDay{*e.HalfDay}
}

// InpatientPreload declares a contiguous inpatient stint (FMIT, IM, PedW,
// night float variants) for one person.
type InpatientPreload struct {
	ID               uuid.UUID
	PersonID         uuid.UUID
	StartDate        time.Time
	EndDate          time.Time
	RotationType     string // raw rotation code, normalized by the loader
	IncludesPostCall bool
}

// Overlaps reports whether the stint intersects [start, end].
func (p *InpatientPreload) Overlaps(start, end time.Time) bool {
	return !p.EndDate.Before(start) && !p.StartDate.After(end)
}

// Covers reports whether the stint covers the given day.
func (p *InpatientPreload) Covers(d time.Time) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// CallAssignment is a faculty call night; the day after a call night gets
// PCAT/DO post-call preloads unless the person is on FMIT that day.
type CallAssignment struct {
	ID       uuid.UUID
	PersonID uuid.UUID
	Date     time.Time
}

// ResidentCallPreload is a resident call night; it preloads CALL on the PM
// of its date.
type ResidentCallPreload struct {
	ID       uuid.UUID
	PersonID uuid.UUID
	Date     time.Time
}

// BlockAssignment ties a person to a rotation template for one macro-block,
// optionally switching to a secondary template at the mid-block transition.
type BlockAssignment struct {
	ID                  uuid.UUID
	PersonID            uuid.UUID
	BlockNumber         int
	AcademicYear        int
	PrimaryTemplateID   uuid.UUID
	SecondaryTemplateID *uuid.UUID
}

// ActiveTemplateID returns the template governing the given date: primary
// before the mid-block transition, secondary on or after it.
func (b *BlockAssignment) ActiveTemplateID(window BlockWindow, d time.Time) uuid.UUID {
	if b.SecondaryTemplateID != nil && window.InSecondHalf(d) {
		return *b.SecondaryTemplateID
	}
	return b.PrimaryTemplateID
}
