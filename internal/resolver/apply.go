package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/repository"
)

// AutoResolveIfSafe applies the safest generated option to an alert, or
// returns a structured rejection. A specific strategy may be requested;
// userID attributes the resolution.
func (r *Resolver) AutoResolveIfSafe(ctx context.Context, alertID uuid.UUID, strategy *Strategy, userID *uuid.UUID) (*ResolutionResult, error) {
	alerts := r.db.ConflictAlertRepository()
	alert, err := alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	result := &ResolutionResult{
		ChangesApplied:      []string{},
		EntitiesModified:    map[string]string{},
		NewConflictsCreated: []string{},
		Warnings:            []string{},
	}

	if alert.Status == entity.AlertStatusResolved {
		result.Status = StatusRejected
		result.ErrorCode = ErrCodeAlreadyResolved
		result.Warnings = append(result.Warnings, "conflict alert is already resolved")
		r.record(StatusRejected)
		return result, nil
	}

	if strategy != nil && !ValidStrategy(*strategy) {
		result.Status = StatusRejected
		result.ErrorCode = ErrCodeStrategyNotAvailable
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown strategy %q", *strategy))
		r.record(StatusRejected)
		return result, nil
	}

	analysis, err := r.Analyze(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !analysis.AutoResolutionSafe {
		result.Status = StatusRejected
		result.ErrorCode = ErrCodeSafetyCheckFailed
		result.Warnings = append(result.Warnings, analysis.FailedCheckMessages()...)
		if analysis.ComplexityScore >= complexityUnsafeThreshold {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("complexity score %.2f at or above %.2f threshold", analysis.ComplexityScore, complexityUnsafeThreshold))
		}
		r.record(StatusRejected)
		return result, nil
	}

	options, err := r.GenerateOptions(ctx, alertID, DefaultMaxOptions)
	if err != nil {
		return nil, err
	}

	chosen, rejection := pickOption(options, strategy)
	if rejection != nil {
		result.Status = StatusRejected
		result.ErrorCode = rejection.code
		result.RecommendedOptionID = rejection.recommended
		result.Warnings = append(result.Warnings, rejection.warning)
		r.record(StatusRejected)
		return result, nil
	}

	applied, err := r.applyOption(ctx, alert, chosen, userID, result)
	if err != nil || !applied {
		result.Success = false
		result.Status = StatusFailed
		result.ErrorCode = ErrCodeInternalError
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
		r.record(StatusFailed)
		return result, nil
	}

	now := r.clk.Now()
	result.Success = true
	result.Status = StatusApplied
	result.ConflictResolved = true
	result.AppliedAt = &now
	r.record(StatusApplied)

	if r.notifier != nil {
		if err := r.notifier.Enqueue(ctx, alert.PersonID, notify.KindConflictResolved, map[string]interface{}{
			"alert_id": alert.ID.String(),
			"strategy": string(chosen.Strategy),
		}); err != nil {
			r.log.Warnw("failed to enqueue resolution notification", "alert_id", alert.ID, "error", err)
		}
	}
	return result, nil
}

type optionRejection struct {
	code        string
	warning     string
	recommended *uuid.UUID
}

// pickOption selects the requested strategy if auto-applicable, otherwise
// the top auto-applicable option, otherwise rejects with the top option as
// the recommendation.
func pickOption(options []ResolutionOption, strategy *Strategy) (*ResolutionOption, *optionRejection) {
	if strategy != nil {
		for i := range options {
			if options[i].Strategy != *strategy {
				continue
			}
			if !options[i].CanAutoApply {
				id := options[i].ID
				return nil, &optionRejection{
					code:        ErrCodeApprovalRequired,
					warning:     fmt.Sprintf("strategy %s requires approval", *strategy),
					recommended: &id,
				}
			}
			return &options[i], nil
		}
		return nil, &optionRejection{
			code:    ErrCodeStrategyNotAvailable,
			warning: fmt.Sprintf("strategy %s not available for this conflict", *strategy),
		}
	}

	for i := range options {
		if options[i].CanAutoApply {
			return &options[i], nil
		}
	}
	rejection := &optionRejection{
		code:    ErrCodeApprovalRequired,
		warning: "no option qualifies for auto-application",
	}
	if len(options) > 0 {
		id := options[0].ID
		rejection.recommended = &id
	}
	return nil, rejection
}

// applyOption performs the chosen option's side effects and resolves the
// alert. On any failure the transaction is rolled back and nothing sticks.
func (r *Resolver) applyOption(ctx context.Context, alert *entity.ConflictAlert, opt *ResolutionOption, userID *uuid.UUID, result *ResolutionResult) (bool, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := r.clk.Now()

	switch opt.Strategy {
	case StrategySwapAssignments:
		if opt.TargetPersonID == nil {
			return false, fmt.Errorf("swap option has no target faculty")
		}
		swap := &entity.SwapRecord{
			ID:              uuid.New(),
			SourcePersonID:  alert.PersonID,
			SourceWeekStart: alert.FMITWeekStart,
			TargetPersonID:  *opt.TargetPersonID,
			SwapType:        entity.SwapTypeAbsorb,
			Status:          entity.SwapStatusApproved,
			Reason:          fmt.Sprintf("Auto-resolution for conflict %s", alert.ID),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.SwapRepository().Create(ctx, swap); err != nil {
			return false, err
		}
		swapID := swap.ID
		alert.SwapID = &swapID
		result.ChangesApplied = append(result.ChangesApplied,
			fmt.Sprintf("created absorb swap %s to faculty %s", swap.ID, *opt.TargetPersonID))
		result.EntitiesModified["swap_record"] = swap.ID.String()
		result.CanRollback = true
		result.RollbackInstructions = "reject the created swap record to undo"
		if opt.Impact.NewConflictsCreated > 0 {
			result.NewConflictsCreated = append(result.NewConflictsCreated,
				fmt.Sprintf("target faculty %s has a heavy alert load", *opt.TargetPersonID))
		}

	case StrategyReassignJunior, StrategyEscalateToBackup, StrategySplitCoverage:
		// Recorded as successful simulation actions; the concrete schedule
		// mutation rides a staged draft created by the operator.
		result.ChangesApplied = append(result.ChangesApplied,
			fmt.Sprintf("recorded %s action for week %s", opt.Strategy, alert.FMITWeekStart.Format("2006-01-02")))

	default:
		return false, fmt.Errorf("%w: %s", entity.ErrUnknownStrategy, opt.Strategy)
	}

	resolvedBy := uuid.Nil
	if userID != nil {
		resolvedBy = *userID
	}
	notes := fmt.Sprintf("Auto-resolved via %s: %s", opt.Strategy, opt.Title)
	if err := alert.MarkResolved(resolvedBy, notes, now); err != nil {
		return false, err
	}
	if err := tx.ConflictAlertRepository().Update(ctx, alert); err != nil {
		return false, err
	}
	result.EntitiesModified["conflict_alert"] = alert.ID.String()

	if err := tx.AuditLogRepository().Create(ctx, &repository.AuditLog{
		ActorID:   resolvedBy,
		Action:    "AUTO_RESOLVE",
		Resource:  "ConflictAlert#" + alert.ID.String(),
		Details:   fmt.Sprintf(`{"strategy":%q}`, opt.Strategy),
		Timestamp: now,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

func (r *Resolver) record(status string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(status)
	}
}
