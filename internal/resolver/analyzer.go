package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rotamed/scheduler/internal/clock"
	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/metrics"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/repository"
)

// Resolver is the conflict auto-resolver.
type Resolver struct {
	db       repository.Database
	clk      clock.Clock
	notifier notify.Sink
	metrics  *metrics.Registry
	log      *zap.SugaredLogger
	cache    *optionCache
}

// NewResolver creates a resolver. notifier and metrics may be nil.
func NewResolver(db repository.Database, clk clock.Clock, notifier notify.Sink, m *metrics.Registry, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		db:       db,
		clk:      clk,
		notifier: notifier,
		metrics:  m,
		log:      log,
		cache:    sharedOptionCache(),
	}
}

// complexityUnsafeThreshold gates auto-resolution on analysis complexity.
const complexityUnsafeThreshold = 0.7

// Analyze produces the full analysis of one alert, running all five safety
// checks unconditionally.
func (r *Resolver) Analyze(ctx context.Context, alertID uuid.UUID) (*ConflictAnalysis, error) {
	alert, err := r.db.ConflictAlertRepository().GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	weekAlerts, err := r.otherOpenAlertsInWeek(ctx, alert)
	if err != nil {
		return nil, err
	}
	personAlerts, err := r.otherOpenAlertsForPerson(ctx, alert)
	if err != nil {
		return nil, err
	}

	cascading := len(weekAlerts) >= 2
	complexity := r.complexityScore(alert, weekAlerts, personAlerts, cascading)

	checks, err := r.runSafetyChecks(ctx, alert)
	if err != nil {
		return nil, err
	}

	analysis := &ConflictAnalysis{
		ConflictID:      alert.ID,
		ConflictType:    alert.ConflictType,
		Severity:        alert.Severity,
		RootCause:       rootCause(alert),
		ComplexityScore: complexity,
		SafetyChecks:    checks,
		Constraints:     []string{},
		Blockers:        []string{},
	}
	analysis.AutoResolutionSafe = analysis.AllChecksPassed() && complexity < complexityUnsafeThreshold

	if alert.LeaveID != nil {
		analysis.Constraints = append(analysis.Constraints, "approved leave present for the affected week")
	}
	if alert.ConflictType == entity.ConflictBackToBack {
		analysis.Constraints = append(analysis.Constraints, "back-to-back rest rule applies")
	}
	if person, err := r.db.PersonRepository().GetByID(ctx, alert.PersonID); err == nil && person.IsResident() {
		analysis.Constraints = append(analysis.Constraints, "ACGME duty-hour rules apply to residents")
	}

	if alert.Severity == entity.ConflictSeverityCritical && cascading {
		analysis.Blockers = append(analysis.Blockers, "critical conflict with cascading alerts in the same week")
	}
	if len(weekAlerts) > 3 {
		analysis.Blockers = append(analysis.Blockers, fmt.Sprintf("%d alerts in the same period", len(weekAlerts)+1))
	}

	analysis.RecommendedStrategies = recommendStrategies(alert, checks)

	r.log.Debugw("conflict analyzed",
		"alert_id", alert.ID, "complexity", complexity, "safe", analysis.AutoResolutionSafe)
	return analysis, nil
}

// complexityScore is additive: severity base, affected weeks, involved
// people and cascading alerts, each capped.
func (r *Resolver) complexityScore(alert *entity.ConflictAlert, weekAlerts, personAlerts []*entity.ConflictAlert, cascading bool) float64 {
	complexity := 0.0

	switch alert.Severity {
	case entity.ConflictSeverityCritical:
		complexity += 0.3
	case entity.ConflictSeverityWarning:
		complexity += 0.1
	}

	// Each other open alert for the person implies another affected week.
	affectedWeeks := float64(len(personAlerts)) * 0.1
	if affectedWeeks > 0.3 {
		affectedWeeks = 0.3
	}
	complexity += affectedWeeks

	involved := make(map[uuid.UUID]bool)
	for _, other := range weekAlerts {
		if other.PersonID != alert.PersonID {
			involved[other.PersonID] = true
		}
	}
	involvedScore := float64(len(involved)) * 0.15
	if involvedScore > 0.3 {
		involvedScore = 0.3
	}
	complexity += involvedScore

	if cascading {
		complexity += 0.2
	}
	return complexity
}

// rootCause maps a conflict type to its short human cause.
func rootCause(alert *entity.ConflictAlert) string {
	switch alert.ConflictType {
	case entity.ConflictLeaveFMITOverlap:
		if alert.LeaveID != nil {
			return "Faculty scheduled for FMIT during approved leave period"
		}
		return "Scheduling conflict between FMIT assignment and absence"
	case entity.ConflictBackToBack:
		return "Faculty assigned to consecutive FMIT weeks without adequate rest"
	case entity.ConflictExcessiveAlternating:
		return "Faculty has too many alternating FMIT assignments"
	case entity.ConflictCallCascade:
		return "Call coverage cascade affecting multiple faculty"
	default:
		return fmt.Sprintf("Conflict of type %s", alert.ConflictType)
	}
}

// recommendStrategies derives the candidate strategy set from the conflict
// type and which safety checks passed.
func recommendStrategies(alert *entity.ConflictAlert, checks []SafetyCheckResult) []Strategy {
	passed := make(map[SafetyCheckType]bool)
	for _, check := range checks {
		passed[check.Type] = check.Passed
	}

	var out []Strategy
	switch alert.ConflictType {
	case entity.ConflictLeaveFMITOverlap:
		if passed[CheckFacultyAvailability] {
			out = append(out, StrategySwapAssignments)
		}
		if passed[CheckACGMECompliance] {
			out = append(out, StrategyReassignJunior)
		}
		out = append(out, StrategyEscalateToBackup)
	case entity.ConflictBackToBack:
		if passed[CheckCoverageGap] {
			out = append(out, StrategySplitCoverage)
		}
		if passed[CheckFacultyAvailability] {
			out = append(out, StrategySwapAssignments)
		}
	case entity.ConflictCallCascade, entity.ConflictExcessiveAlternating:
		if passed[CheckFacultyAvailability] {
			out = append(out, StrategySwapAssignments)
		}
	case entity.ConflictExternalCommitment:
		out = append(out, StrategyEscalateToBackup)
	}
	return append(out, StrategyDeferToHuman)
}

// otherOpenAlertsInWeek returns open alerts sharing the alert's FMIT week,
// excluding the alert itself.
func (r *Resolver) otherOpenAlertsInWeek(ctx context.Context, alert *entity.ConflictAlert) ([]*entity.ConflictAlert, error) {
	alerts, err := r.db.ConflictAlertRepository().ListOpenByWeek(ctx, alert.FMITWeekStart)
	if err != nil {
		return nil, err
	}
	var out []*entity.ConflictAlert
	for _, a := range alerts {
		if a.ID != alert.ID {
			out = append(out, a)
		}
	}
	return out, nil
}

// otherOpenAlertsForPerson returns the person's other open alerts.
func (r *Resolver) otherOpenAlertsForPerson(ctx context.Context, alert *entity.ConflictAlert) ([]*entity.ConflictAlert, error) {
	alerts, err := r.db.ConflictAlertRepository().ListOpenByPerson(ctx, alert.PersonID)
	if err != nil {
		return nil, err
	}
	var out []*entity.ConflictAlert
	for _, a := range alerts {
		if a.ID != alert.ID {
			out = append(out, a)
		}
	}
	return out, nil
}
