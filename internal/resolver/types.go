// Package resolver analyzes conflict alerts, runs safety checks, generates
// scored resolution options and either applies the safest one or defers to
// human review.
package resolver

import (
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// Strategy names a resolution approach.
type Strategy string

const (
	StrategySwapAssignments  Strategy = "swap_assignments"
	StrategyReassignJunior   Strategy = "reassign_junior"
	StrategyEscalateToBackup Strategy = "escalate_to_backup"
	StrategySplitCoverage    Strategy = "split_coverage"
	StrategyDeferToHuman     Strategy = "defer_to_human"
)

// ValidStrategy reports whether the name is a known strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategySwapAssignments, StrategyReassignJunior, StrategyEscalateToBackup,
		StrategySplitCoverage, StrategyDeferToHuman:
		return true
	}
	return false
}

// RiskLevel grades an option.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// rank orders risk levels for the batch max-risk gate.
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	}
	return 3
}

// AtMost reports whether r is at or below the given ceiling.
func (r RiskLevel) AtMost(ceiling RiskLevel) bool {
	return r.rank() <= ceiling.rank()
}

// SafetyCheckType names one of the five checks.
type SafetyCheckType string

const (
	CheckACGMECompliance    SafetyCheckType = "acgme_compliance"
	CheckCoverageGap        SafetyCheckType = "coverage_gap"
	CheckFacultyAvailability SafetyCheckType = "faculty_availability"
	CheckSupervisionRatio   SafetyCheckType = "supervision_ratio"
	CheckWorkloadBalance    SafetyCheckType = "workload_balance"
)

// SafetyCheckResult is the outcome of one safety check.
type SafetyCheckResult struct {
	Type    SafetyCheckType        `json:"type"`
	Passed  bool                   `json:"passed"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ConflictAnalysis is the full analysis of one alert.
type ConflictAnalysis struct {
	ConflictID            uuid.UUID               `json:"conflict_id"`
	ConflictType          entity.ConflictType     `json:"conflict_type"`
	Severity              entity.ConflictSeverity `json:"severity"`
	RootCause             string                  `json:"root_cause"`
	ComplexityScore       float64                 `json:"complexity_score"`
	SafetyChecks          []SafetyCheckResult     `json:"safety_checks"`
	AutoResolutionSafe    bool                    `json:"auto_resolution_safe"`
	Constraints           []string                `json:"constraints"`
	Blockers              []string                `json:"blockers"`
	RecommendedStrategies []Strategy              `json:"recommended_strategies"`
}

// AllChecksPassed reports whether every safety check passed.
func (a *ConflictAnalysis) AllChecksPassed() bool {
	for _, check := range a.SafetyChecks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// FailedCheckMessages collects the messages of failed checks.
func (a *ConflictAnalysis) FailedCheckMessages() []string {
	var out []string
	for _, check := range a.SafetyChecks {
		if !check.Passed {
			out = append(out, check.Message)
		}
	}
	return out
}

// ImpactAssessment scores one option's predicted effect.
type ImpactAssessment struct {
	AffectedFacultyCount     int     `json:"affected_faculty_count"`
	AffectedWeeksCount       int     `json:"affected_weeks_count"`
	AffectedBlocksCount      int     `json:"affected_blocks_count"`
	NewConflictsCreated      int     `json:"new_conflicts_created"`
	ConflictsResolved        int     `json:"conflicts_resolved"`
	CascadingChangesRequired int     `json:"cascading_changes_required"`
	WorkloadBalance          float64 `json:"workload_balance"`
	Fairness                 float64 `json:"fairness"`
	Disruption               float64 `json:"disruption"`
	Feasibility              float64 `json:"feasibility"`
	ConfidenceLevel          float64 `json:"confidence_level"`
	Overall                  float64 `json:"overall"`
}

// scoreOverall combines the five component scores with the fixed weights.
func (i *ImpactAssessment) scoreOverall() {
	i.Overall = 0.30*i.Feasibility +
		0.20*i.WorkloadBalance +
		0.20*i.Fairness +
		0.15*(1-i.Disruption) +
		0.15*i.ConfidenceLevel
}

// ResolutionOption is one generated option.
type ResolutionOption struct {
	ID              uuid.UUID        `json:"id"`
	Strategy        Strategy         `json:"strategy"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	RiskLevel       RiskLevel        `json:"risk_level"`
	TargetPersonID  *uuid.UUID       `json:"target_person_id,omitempty"`
	Impact          ImpactAssessment `json:"impact"`
	SafetyValidated bool             `json:"safety_validated"`
	CanAutoApply    bool             `json:"can_auto_apply"`
}

// Resolution statuses.
const (
	StatusApplied  = "APPLIED"
	StatusRejected = "REJECTED"
	StatusFailed   = "FAILED"
)

// Error codes for rejected or failed resolutions.
const (
	ErrCodeSafetyCheckFailed    = "SAFETY_CHECK_FAILED"
	ErrCodeApprovalRequired     = "APPROVAL_REQUIRED"
	ErrCodeStrategyNotAvailable = "STRATEGY_NOT_AVAILABLE"
	ErrCodeAlreadyResolved      = "ALREADY_RESOLVED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// ResolutionResult reports an auto-resolution attempt.
type ResolutionResult struct {
	Success              bool              `json:"success"`
	Status               string            `json:"status"`
	ErrorCode            string            `json:"error_code,omitempty"`
	ChangesApplied       []string          `json:"changes_applied"`
	EntitiesModified     map[string]string `json:"entities_modified"`
	ConflictResolved     bool              `json:"conflict_resolved"`
	NewConflictsCreated  []string          `json:"new_conflicts_created"`
	Warnings             []string          `json:"warnings"`
	AppliedAt            *time.Time        `json:"applied_at,omitempty"`
	CanRollback          bool              `json:"can_rollback"`
	RollbackInstructions string            `json:"rollback_instructions,omitempty"`
	RecommendedOptionID  *uuid.UUID        `json:"recommended_option_id,omitempty"`
}

// BatchItemResult is one alert's outcome inside a batch run.
type BatchItemResult struct {
	ConflictID uuid.UUID         `json:"conflict_id"`
	Outcome    string            `json:"outcome"` // applied | deferred | failed
	Result     *ResolutionResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// PendingApproval is a deferred option awaiting human review.
type PendingApproval struct {
	ConflictID uuid.UUID        `json:"conflict_id"`
	Option     ResolutionOption `json:"option"`
}

// BatchReport aggregates one batch run.
type BatchReport struct {
	TotalAnalyzed         int               `json:"total_analyzed"`
	Applied               int               `json:"applied"`
	Deferred              int               `json:"deferred"`
	Failed                int               `json:"failed"`
	OverallStatus         string            `json:"overall_status"` // completed | partial | failed
	Items                 []BatchItemResult `json:"items"`
	PendingApprovals      []PendingApproval `json:"pending_approvals"`
	SafetyChecksPassed    int               `json:"safety_checks_passed"`
	SafetyChecksFailed    int               `json:"safety_checks_failed"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
	Recommendations       []string          `json:"recommendations"`
}
