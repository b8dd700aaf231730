package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type aliases for domain IDs
type (
	PersonID          = uuid.UUID
	ActivityID        = uuid.UUID
	RotationID        = uuid.UUID
	AssignmentID      = uuid.UUID
	DraftID           = uuid.UUID
	DraftAssignmentID = uuid.UUID
	DraftFlagID       = uuid.UUID
	ConflictAlertID   = uuid.UUID
	SwapRecordID      = uuid.UUID
	UserID            = uuid.UUID
)

// Now returns the current UTC instant.
func Now() time.Time {
	return time.Now().UTC()
}

// NowPtr returns a pointer to the current UTC instant.
func NowPtr() *time.Time {
	now := time.Now().UTC()
	return &now
}

// PersonKind distinguishes faculty from residents.
type PersonKind string

const (
	PersonKindFaculty  PersonKind = "FACULTY"
	PersonKindResident PersonKind = "RESIDENT"
)

// Certification is a credential held by a person, optionally expiring.
type Certification struct {
	Name      string
	ExpiresAt *time.Time
}

// IsActive reports whether the certification is valid at the given instant.
func (c Certification) IsActive(at time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(at)
}

// Person is a scheduled subject: a faculty member or a resident.
// Persons are externally owned; the engine treats them as immutable facts
// during a run.
type Person struct {
	ID                     uuid.UUID
	Name                   string
	Email                  string
	Kind                   PersonKind
	PGYLevel               *int // residents only, 1-based
	SpecialtyTags          []string
	HasProcedureCredential bool
	AdminType              string // e.g. "SM" for sports medicine faculty
	Certifications         []Certification
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              *time.Time
}

// IsResident reports whether the person is a resident.
func (p *Person) IsResident() bool {
	return p.Kind == PersonKindResident
}

// IsFaculty reports whether the person is a faculty member.
func (p *Person) IsFaculty() bool {
	return p.Kind == PersonKindFaculty
}

// IsDeleted checks if a person is soft-deleted.
func (p *Person) IsDeleted() bool {
	return p.DeletedAt != nil
}

// Validate enforces person invariants: residents carry a PGY level >= 1.
func (p *Person) Validate() error {
	if p.Kind != PersonKindFaculty && p.Kind != PersonKindResident {
		return ErrUnknownPersonKind
	}
	if p.Kind == PersonKindResident {
		if p.PGYLevel == nil || *p.PGYLevel < 1 {
			return ErrInvalidPGYLevel
		}
	}
	return nil
}

// PGY returns the resident's postgraduate year, or 0 for faculty.
func (p *Person) PGY() int {
	if p.PGYLevel == nil {
		return 0
	}
	return *p.PGYLevel
}
