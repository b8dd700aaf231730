package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType classifies a detected scheduling conflict.
type ConflictType string

const (
	ConflictLeaveFMITOverlap     ConflictType = "LEAVE_FMIT_OVERLAP"
	ConflictBackToBack           ConflictType = "BACK_TO_BACK"
	ConflictCallCascade          ConflictType = "CALL_CASCADE"
	ConflictExcessiveAlternating ConflictType = "EXCESSIVE_ALTERNATING"
	ConflictExternalCommitment   ConflictType = "EXTERNAL_COMMITMENT"
)

// ConflictSeverity grades a conflict alert.
type ConflictSeverity string

const (
	ConflictSeverityCritical ConflictSeverity = "CRITICAL"
	ConflictSeverityWarning  ConflictSeverity = "WARNING"
	ConflictSeverityInfo     ConflictSeverity = "INFO"
)

// AlertStatus is the lifecycle state of a conflict alert.
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "NEW"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusDismissed    AlertStatus = "DISMISSED"
)

// ConflictAlert is one detected conflict anchored to a person and the
// Monday start of the affected FMIT week. Alerts are created by an external
// detector; the resolver writes only resolution metadata and status
// transitions.
type ConflictAlert struct {
	ID              uuid.UUID
	PersonID        uuid.UUID
	FMITWeekStart   time.Time // Monday of the affected week
	ConflictType    ConflictType
	Severity        ConflictSeverity
	Status          AlertStatus
	Description     string
	LeaveID         *uuid.UUID
	SwapID          *uuid.UUID
	ResolvedAt      *time.Time
	ResolvedByID    *uuid.UUID
	ResolutionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen reports whether the alert still needs attention.
func (a *ConflictAlert) IsOpen() bool {
	return a.Status == AlertStatusNew || a.Status == AlertStatusAcknowledged
}

// MarkResolved records a resolution on the alert.
func (a *ConflictAlert) MarkResolved(byID uuid.UUID, notes string, now time.Time) error {
	if a.Status == AlertStatusResolved {
		return ErrAlertAlreadyResolved
	}
	a.Status = AlertStatusResolved
	a.ResolvedAt = &now
	a.ResolvedByID = &byID
	a.ResolutionNotes = notes
	a.UpdatedAt = now
	return nil
}

// WeekRange returns the [Monday..Sunday] range of the alert's FMIT week.
func (a *ConflictAlert) WeekRange() (time.Time, time.Time) {
	return a.FMITWeekStart, a.FMITWeekStart.AddDate(0, 0, 6)
}

// SwapType distinguishes a one-for-one trade from an absorb.
type SwapType string

const (
	SwapTypeOneToOne SwapType = "ONE_TO_ONE"
	SwapTypeAbsorb   SwapType = "ABSORB"
)

// SwapStatus is the lifecycle state of a swap record.
type SwapStatus string

const (
	SwapStatusPending  SwapStatus = "PENDING"
	SwapStatusApproved SwapStatus = "APPROVED"
	SwapStatusRejected SwapStatus = "REJECTED"
	SwapStatusExecuted SwapStatus = "EXECUTED"
)

// SwapRecord is a staged or executed FMIT-week trade between two people.
type SwapRecord struct {
	ID              uuid.UUID
	SourcePersonID  uuid.UUID
	SourceWeekStart time.Time
	TargetPersonID  uuid.UUID
	TargetWeekStart *time.Time // nil for absorbs
	SwapType        SwapType
	Status          SwapStatus
	Reason          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
