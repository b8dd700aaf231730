// Package draft stages proposed schedule changes, detects flags, publishes
// atomically to the live half-day store and supports a time-bounded
// rollback.
package draft

import (
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// Error codes carried by user-visible failures.
const (
	ErrCodeInvalidStatus           = "INVALID_STATUS"
	ErrCodeOverrideCommentRequired = "OVERRIDE_COMMENT_REQUIRED"
	ErrCodeRollbackExpired         = "ROLLBACK_EXPIRED"
	ErrCodeRollbackUnavailable     = "ROLLBACK_UNAVAILABLE"
	ErrCodePublishFailed           = "PUBLISH_FAILED"
	ErrCodeRollbackFailed          = "ROLLBACK_FAILED"
)

// CreateDraftInput describes a new draft.
type CreateDraftInput struct {
	SourceType  entity.DraftSourceType
	StartDate   time.Time
	EndDate     time.Time
	BlockNumber *int
	CreatedByID uuid.UUID
	Notes       string
}

// AddAssignmentInput describes one staged change.
type AddAssignmentInput struct {
	PersonID             uuid.UUID
	Date                 time.Time
	TimeOfDay            entity.TimeOfDay
	ActivityCode         string
	RotationTemplateID   *uuid.UUID
	ChangeType           entity.ChangeType
	ExistingAssignmentID *uuid.UUID
}

// SolverAssignment is one solver output row staged through bulk add.
type SolverAssignment struct {
	PersonID           uuid.UUID
	Date               time.Time
	HalfDay            entity.HalfDay
	ActivityCode       string
	RotationTemplateID *uuid.UUID
}

// Key identifies the assignment against the preserved set.
func (a SolverAssignment) Key() string {
	return a.PersonID.String() + "/" + a.Date.Format("2006-01-02") + "/" + string(a.HalfDay)
}

// FlagInput describes one draft flag.
type FlagInput struct {
	FlagType entity.FlagType
	Severity entity.FlagSeverity
	Message  string
	PersonID *uuid.UUID
	Date     *time.Time
}

// Preview is the read-only draft summary.
type Preview struct {
	DraftID           uuid.UUID           `json:"draft_id"`
	AddCount          int                 `json:"add_count"`
	ModifyCount       int                 `json:"modify_count"`
	DeleteCount       int                 `json:"delete_count"`
	FlagsTotal        int                 `json:"flags_total"`
	FlagsAcknowledged int                 `json:"flags_acknowledged"`
	Assignments       []PreviewAssignment `json:"assignments"`
	Flags             []PreviewFlag       `json:"flags"`
}

// PreviewAssignment is one staged change in a preview.
type PreviewAssignment struct {
	ID           uuid.UUID `json:"id"`
	PersonID     uuid.UUID `json:"person_id"`
	PersonName   string    `json:"person_name,omitempty"`
	Date         string    `json:"date"`
	TimeOfDay    string    `json:"time_of_day"`
	ActivityCode string    `json:"activity_code"`
	ChangeType   string    `json:"change_type"`
}

// PreviewFlag is one flag in a preview.
type PreviewFlag struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Date           *string    `json:"date,omitempty"`
}

// RowError is one per-row publish or rollback failure.
type RowError struct {
	DraftAssignmentID uuid.UUID `json:"draft_assignment_id"`
	PersonID          uuid.UUID `json:"person_id"`
	Date              string    `json:"date"`
	Error             string    `json:"error"`
}

// PublishResult reports a publish attempt.
type PublishResult struct {
	Success           bool       `json:"success"`
	DraftID           uuid.UUID  `json:"draft_id"`
	Status            string     `json:"status"`
	PublishedCount    int        `json:"published_count"`
	ErrorCount        int        `json:"error_count"`
	Errors            []RowError `json:"errors,omitempty"`
	ACGMEWarnings     []string   `json:"acgme_warnings,omitempty"`
	RollbackAvailable bool       `json:"rollback_available"`
	RollbackExpiresAt *time.Time `json:"rollback_expires_at,omitempty"`
	Message           string     `json:"message"`
	ErrorCode         string     `json:"error_code,omitempty"`
}

// RollbackResult reports a rollback attempt, symmetric to publish.
type RollbackResult struct {
	Success         bool       `json:"success"`
	DraftID         uuid.UUID  `json:"draft_id"`
	Status          string     `json:"status"`
	RolledBackCount int        `json:"rolled_back_count"`
	FailedCount     int        `json:"failed_count"`
	Errors          []RowError `json:"errors,omitempty"`
	Message         string     `json:"message"`
	ErrorCode       string     `json:"error_code,omitempty"`
}
