package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/repository"
)

// BatchAutoResolve processes a list of alerts: each is analyzed, options
// generated, and either applied immediately or deferred to the
// pending-approval list. Per-item failures never short-circuit the batch.
func (r *Resolver) BatchAutoResolve(ctx context.Context, alertIDs []uuid.UUID, autoApplySafe bool, maxRisk RiskLevel) (*BatchReport, error) {
	start := r.clk.Now()
	report := &BatchReport{
		Items:            []BatchItemResult{},
		PendingApprovals: []PendingApproval{},
		Recommendations:  []string{},
	}

	for _, alertID := range alertIDs {
		item := BatchItemResult{ConflictID: alertID}

		analysis, err := r.Analyze(ctx, alertID)
		if err != nil {
			if repository.IsNotFound(err) {
				// Unknown ids are no-ops for the batch.
				item.Outcome = "failed"
				item.Error = err.Error()
				report.Failed++
				report.Items = append(report.Items, item)
				report.TotalAnalyzed++
				continue
			}
			return nil, err
		}
		report.TotalAnalyzed++
		for _, check := range analysis.SafetyChecks {
			if check.Passed {
				report.SafetyChecksPassed++
			} else {
				report.SafetyChecksFailed++
			}
		}

		options, err := r.GenerateOptions(ctx, alertID, DefaultMaxOptions)
		if err != nil {
			item.Outcome = "failed"
			item.Error = err.Error()
			report.Failed++
			report.Items = append(report.Items, item)
			continue
		}

		top := topAutoApplicable(options)
		if autoApplySafe && analysis.AutoResolutionSafe && top != nil && top.RiskLevel.AtMost(maxRisk) {
			result, err := r.AutoResolveIfSafe(ctx, alertID, nil, nil)
			if err != nil {
				item.Outcome = "failed"
				item.Error = err.Error()
				report.Failed++
			} else if result.Success {
				item.Outcome = "applied"
				item.Result = result
				report.Applied++
			} else {
				item.Outcome = "deferred"
				item.Result = result
				report.Deferred++
				r.appendPending(report, alertID, options)
			}
		} else {
			item.Outcome = "deferred"
			report.Deferred++
			r.appendPending(report, alertID, options)
		}
		report.Items = append(report.Items, item)
	}

	switch {
	case report.Failed == 0 && report.Deferred == 0:
		report.OverallStatus = "completed"
	case report.Applied > 0 || report.Deferred > 0:
		report.OverallStatus = "partial"
	default:
		report.OverallStatus = "failed"
	}

	if report.Deferred > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("review %d deferred conflicts in the pending-approval list", report.Deferred))
	}
	if report.Failed > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("investigate %d failed items", report.Failed))
	}
	for _, item := range report.Items {
		if item.Result != nil && len(item.Result.NewConflictsCreated) > 0 {
			report.Recommendations = append(report.Recommendations,
				"review predicted new conflicts created by applied swaps")
			break
		}
	}

	report.ProcessingTimeSeconds = r.clk.Now().Sub(start).Seconds()
	r.log.Infow("batch auto-resolve complete",
		"total", report.TotalAnalyzed, "applied", report.Applied,
		"deferred", report.Deferred, "failed", report.Failed)
	return report, nil
}

func (r *Resolver) appendPending(report *BatchReport, alertID uuid.UUID, options []ResolutionOption) {
	if len(options) == 0 {
		return
	}
	report.PendingApprovals = append(report.PendingApprovals, PendingApproval{
		ConflictID: alertID,
		Option:     options[0],
	})
}

func topAutoApplicable(options []ResolutionOption) *ResolutionOption {
	for i := range options {
		if options[i].CanAutoApply {
			return &options[i]
		}
	}
	return nil
}
