package entity

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus is the lifecycle state of a schedule draft.
type DraftStatus string

const (
	DraftStatusDraft      DraftStatus = "DRAFT"
	DraftStatusPublished  DraftStatus = "PUBLISHED"
	DraftStatusRolledBack DraftStatus = "ROLLED_BACK"
	DraftStatusDiscarded  DraftStatus = "DISCARDED"
)

// DraftSourceType records what produced the staged changes.
type DraftSourceType string

const (
	DraftSourceSolver DraftSourceType = "SOLVER"
	DraftSourceManual DraftSourceType = "MANUAL"
	DraftSourceSwap   DraftSourceType = "SWAP"
	DraftSourceImport DraftSourceType = "IMPORT"
)

// RollbackWindow is how long after publish a draft remains reversible.
const RollbackWindow = 24 * time.Hour

// ScheduleDraft is a staged change set against the live half-day store.
// Drafts are engine-owned for their entire lifecycle; after publish they are
// retained read-only for audit and the rollback window.
type ScheduleDraft struct {
	ID                uuid.UUID
	StartDate         time.Time
	EndDate           time.Time
	BlockNumber       *int
	Status            DraftStatus
	SourceType        DraftSourceType
	CreatedByID       uuid.UUID
	Notes             string
	AddedCount        int
	ModifiedCount     int
	DeletedCount      int
	FlagsTotal        int
	FlagsAcknowledged int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PublishedAt       *time.Time
	PublishedByID     *uuid.UUID
	RollbackAvailable bool
	RollbackExpiresAt *time.Time
	RolledBackAt      *time.Time
	RolledBackByID    *uuid.UUID
}

// IsTerminal reports whether no further transitions are permitted.
func (d *ScheduleDraft) IsTerminal() bool {
	return d.Status == DraftStatusRolledBack || d.Status == DraftStatusDiscarded
}

// MarkPublished transitions the draft to PUBLISHED and opens the rollback
// window.
func (d *ScheduleDraft) MarkPublished(publisherID uuid.UUID, now time.Time) error {
	if d.Status != DraftStatusDraft {
		return ErrInvalidDraftStatus
	}
	expires := now.Add(RollbackWindow)
	d.Status = DraftStatusPublished
	d.PublishedAt = &now
	d.PublishedByID = &publisherID
	d.RollbackAvailable = true
	d.RollbackExpiresAt = &expires
	d.UpdatedAt = now
	return nil
}

// MarkRolledBack transitions a published draft to ROLLED_BACK.
func (d *ScheduleDraft) MarkRolledBack(rolledBackByID uuid.UUID, now time.Time) error {
	if d.Status != DraftStatusPublished {
		return ErrInvalidDraftStatus
	}
	d.Status = DraftStatusRolledBack
	d.RolledBackAt = &now
	d.RolledBackByID = &rolledBackByID
	d.RollbackAvailable = false
	d.UpdatedAt = now
	return nil
}

// MarkDiscarded transitions an unpublished draft to DISCARDED.
func (d *ScheduleDraft) MarkDiscarded(now time.Time) error {
	if d.Status != DraftStatusDraft {
		return ErrInvalidDraftStatus
	}
	d.Status = DraftStatusDiscarded
	d.UpdatedAt = now
	return nil
}

// RollbackOpen reports whether a rollback is still permitted at now.
func (d *ScheduleDraft) RollbackOpen(now time.Time) bool {
	return d.Status == DraftStatusPublished &&
		d.RollbackAvailable &&
		d.RollbackExpiresAt != nil &&
		!now.After(*d.RollbackExpiresAt)
}

// ChangeType says what a draft assignment does to the live store.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "ADD"
	ChangeTypeModify ChangeType = "MODIFY"
	ChangeTypeDelete ChangeType = "DELETE"
)

// DraftAssignment is one staged change. (draft, person, date, time_of_day)
// is unique; re-adding updates the existing row.
type DraftAssignment struct {
	ID                   uuid.UUID
	DraftID              uuid.UUID
	PersonID             uuid.UUID
	Date                 time.Time
	TimeOfDay            TimeOfDay
	ActivityCode         string
	RotationTemplateID   *uuid.UUID
	ChangeType           ChangeType
	ExistingAssignmentID *uuid.UUID // live row this change targets, if any
	CreatedAssignmentID  *uuid.UUID // live row written at publish
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FlagType classifies draft review flags.
type FlagType string

const (
	FlagTypeACGMEViolation FlagType = "ACGME_VIOLATION"
	FlagTypeCoverageGap    FlagType = "COVERAGE_GAP"
	FlagTypeConflict       FlagType = "CONFLICT"
	FlagTypeManualReview   FlagType = "MANUAL_REVIEW"
)

// FlagSeverity grades a draft flag.
type FlagSeverity string

const (
	FlagSeverityInfo    FlagSeverity = "INFO"
	FlagSeverityWarning FlagSeverity = "WARNING"
	FlagSeverityError   FlagSeverity = "ERROR"
)

// DraftFlag is a reviewable issue attached to a draft. Unacknowledged flags
// gate publish behind an override comment.
type DraftFlag struct {
	ID               uuid.UUID
	DraftID          uuid.UUID
	FlagType         FlagType
	Severity         FlagSeverity
	Message          string
	PersonID         *uuid.UUID
	Date             *time.Time
	Acknowledged     bool
	AcknowledgedAt   *time.Time
	AcknowledgedByID *uuid.UUID
	ResolutionNote   string
	CreatedAt        time.Time
}

// Acknowledge records the first acknowledgment; repeated calls are no-ops.
// It returns true only on the first transition.
func (f *DraftFlag) Acknowledge(byID uuid.UUID, note string, now time.Time) bool {
	if f.Acknowledged {
		return false
	}
	f.Acknowledged = true
	f.AcknowledgedAt = &now
	f.AcknowledgedByID = &byID
	f.ResolutionNote = note
	return true
}
