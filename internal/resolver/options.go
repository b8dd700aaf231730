package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// DefaultMaxOptions bounds a generated option list.
const DefaultMaxOptions = 5

// autoApplyOverallFloor is the minimum overall score for auto-application.
const autoApplyOverallFloor = 0.7

// GenerateOptions produces up to max scored options for an alert, sorted
// descending by overall score. Results are cached per (alert, max) for five
// minutes.
func (r *Resolver) GenerateOptions(ctx context.Context, alertID uuid.UUID, max int) ([]ResolutionOption, error) {
	if max <= 0 {
		max = DefaultMaxOptions
	}
	now := r.clk.Now()
	cacheKey := fmt.Sprintf("%s/%d", alertID, max)
	if cached, ok := r.cache.get(cacheKey, now); ok {
		return cached, nil
	}

	alert, err := r.db.ConflictAlertRepository().GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	analysis, err := r.Analyze(ctx, alertID)
	if err != nil {
		return nil, err
	}

	candidates, err := r.swapCandidates(ctx, alert, analysis)
	if err != nil {
		return nil, err
	}

	var options []ResolutionOption
	switch alert.ConflictType {
	case entity.ConflictLeaveFMITOverlap:
		for i, candidate := range candidates {
			if i >= 2 {
				break
			}
			options = append(options, r.swapOption(ctx, alert, analysis, candidate, RiskMedium))
		}
		if junior := r.juniorCandidate(ctx); junior != nil {
			options = append(options, r.reassignJuniorOption(alert, analysis, junior))
		}
		options = append(options, r.backupPoolOption(alert, analysis))

	case entity.ConflictBackToBack:
		options = append(options, r.splitCoverageOption(alert, analysis))
		if len(candidates) > 0 {
			options = append(options, r.swapOption(ctx, alert, analysis, candidates[0], RiskMedium))
		}

	case entity.ConflictCallCascade, entity.ConflictExcessiveAlternating:
		if len(candidates) > 0 {
			opt := r.swapOption(ctx, alert, analysis, candidates[0], RiskHigh)
			opt.Title = "Redistribute coverage via swap"
			opt.Description = "Redistribute the cascading coverage onto an available faculty member"
			options = append(options, opt)
		}

	case entity.ConflictExternalCommitment:
		options = append(options, r.backupPoolOption(alert, analysis))
	}

	options = append(options, r.deferOption(analysis))

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Impact.Overall > options[j].Impact.Overall
	})
	if len(options) > max {
		options = options[:max]
	}

	r.cache.put(cacheKey, options, now)
	return options, nil
}

// swapCandidates extracts the available-faculty ids surfaced by the
// availability safety check.
func (r *Resolver) swapCandidates(ctx context.Context, alert *entity.ConflictAlert, analysis *ConflictAnalysis) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, check := range analysis.SafetyChecks {
		if check.Type != CheckFacultyAvailability || check.Details == nil {
			continue
		}
		ids, ok := check.Details["available_faculty"].([]string)
		if !ok {
			continue
		}
		for _, raw := range ids {
			if id, err := uuid.Parse(raw); err == nil {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// juniorCandidate finds a senior resident who could absorb supervised
// coverage.
func (r *Resolver) juniorCandidate(ctx context.Context) *entity.Person {
	residents, err := r.db.PersonRepository().GetByKind(ctx, entity.PersonKindResident)
	if err != nil {
		return nil
	}
	for _, resident := range residents {
		if resident.PGY() >= 3 {
			return resident
		}
	}
	return nil
}

func (r *Resolver) swapOption(ctx context.Context, alert *entity.ConflictAlert, analysis *ConflictAnalysis, target uuid.UUID, risk RiskLevel) ResolutionOption {
	impact := ImpactAssessment{
		AffectedFacultyCount:     2,
		AffectedWeeksCount:       1,
		AffectedBlocksCount:      1,
		ConflictsResolved:        1,
		CascadingChangesRequired: 0,
		WorkloadBalance:          0.7,
		Fairness:                 0.75,
		Disruption:               0.3,
		Feasibility:              0.85,
		ConfidenceLevel:          0.8,
	}
	// A swap onto a faculty member already drowning in alerts breeds new
	// conflicts.
	if open, err := r.db.ConflictAlertRepository().ListOpenByPerson(ctx, target); err == nil && len(open) >= 3 {
		impact.NewConflictsCreated = 1
		impact.ConfidenceLevel = 0.6
	}
	if risk == RiskHigh {
		impact.Disruption = 0.6
		impact.ConfidenceLevel = 0.55
	}
	impact.scoreOverall()

	targetID := target
	opt := ResolutionOption{
		ID:              uuid.New(),
		Strategy:        StrategySwapAssignments,
		Title:           "Swap FMIT week to available faculty",
		Description:     fmt.Sprintf("Absorb the %s FMIT week onto available faculty", alert.FMITWeekStart.Format("2006-01-02")),
		RiskLevel:       risk,
		TargetPersonID:  &targetID,
		Impact:          impact,
		SafetyValidated: analysis.AllChecksPassed(),
	}
	opt.CanAutoApply = canAutoApply(opt)
	return opt
}

func (r *Resolver) reassignJuniorOption(alert *entity.ConflictAlert, analysis *ConflictAnalysis, junior *entity.Person) ResolutionOption {
	impact := ImpactAssessment{
		AffectedFacultyCount:     1,
		AffectedWeeksCount:       1,
		AffectedBlocksCount:      1,
		ConflictsResolved:        1,
		CascadingChangesRequired: 1,
		WorkloadBalance:          0.65,
		Fairness:                 0.6,
		Disruption:               0.4,
		Feasibility:              0.6,
		ConfidenceLevel:          0.6,
	}
	impact.scoreOverall()

	juniorID := junior.ID
	opt := ResolutionOption{
		ID:              uuid.New(),
		Strategy:        StrategyReassignJunior,
		Title:           "Reassign coverage to senior resident",
		Description:     fmt.Sprintf("Cover supervised portions of the week with %s under backup attending oversight", junior.Name),
		RiskLevel:       RiskMedium,
		TargetPersonID:  &juniorID,
		Impact:          impact,
		SafetyValidated: analysis.AllChecksPassed(),
	}
	opt.CanAutoApply = canAutoApply(opt)
	return opt
}

func (r *Resolver) backupPoolOption(alert *entity.ConflictAlert, analysis *ConflictAnalysis) ResolutionOption {
	impact := ImpactAssessment{
		AffectedFacultyCount:     1,
		AffectedWeeksCount:       1,
		AffectedBlocksCount:      1,
		ConflictsResolved:        1,
		CascadingChangesRequired: 0,
		WorkloadBalance:          0.6,
		Fairness:                 0.65,
		Disruption:               0.35,
		Feasibility:              0.7,
		ConfidenceLevel:          0.65,
	}
	impact.scoreOverall()

	opt := ResolutionOption{
		ID:              uuid.New(),
		Strategy:        StrategyEscalateToBackup,
		Title:           "Escalate to backup pool",
		Description:     "Pull coverage from the designated backup attending pool",
		RiskLevel:       RiskMedium,
		Impact:          impact,
		SafetyValidated: analysis.AllChecksPassed(),
	}
	opt.CanAutoApply = canAutoApply(opt)
	return opt
}

func (r *Resolver) splitCoverageOption(alert *entity.ConflictAlert, analysis *ConflictAnalysis) ResolutionOption {
	impact := ImpactAssessment{
		AffectedFacultyCount:     2,
		AffectedWeeksCount:       2,
		AffectedBlocksCount:      1,
		ConflictsResolved:        1,
		CascadingChangesRequired: 1,
		WorkloadBalance:          0.8,
		Fairness:                 0.8,
		Disruption:               0.45,
		Feasibility:              0.65,
		ConfidenceLevel:          0.6,
	}
	impact.scoreOverall()

	opt := ResolutionOption{
		ID:              uuid.New(),
		Strategy:        StrategySplitCoverage,
		Title:           "Split the consecutive weeks",
		Description:     "Split coverage of the back-to-back weeks between two faculty to restore rest",
		RiskLevel:       RiskMedium,
		Impact:          impact,
		SafetyValidated: analysis.AllChecksPassed(),
	}
	opt.CanAutoApply = canAutoApply(opt)
	return opt
}

func (r *Resolver) deferOption(analysis *ConflictAnalysis) ResolutionOption {
	impact := ImpactAssessment{
		ConflictsResolved: 1,
		WorkloadBalance:   0.5,
		Fairness:          0.5,
		Disruption:        0.0,
		Feasibility:       1.0,
		ConfidenceLevel:   0.5,
	}
	impact.scoreOverall()

	return ResolutionOption{
		ID:              uuid.New(),
		Strategy:        StrategyDeferToHuman,
		Title:           "Defer to human review",
		Description:     "Route the conflict to the chief scheduler for manual resolution",
		RiskLevel:       RiskLow,
		Impact:          impact,
		SafetyValidated: analysis.AllChecksPassed(),
		CanAutoApply:    false, // deferral is never auto-applied
	}
}

// canAutoApply is the auto-applicability predicate.
func canAutoApply(opt ResolutionOption) bool {
	return opt.SafetyValidated &&
		opt.Impact.Overall >= autoApplyOverallFloor &&
		opt.RiskLevel != RiskHigh &&
		opt.Strategy != StrategyDeferToHuman
}
