package draft

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/notify"
)

// Rollback reverses a published draft inside the rollback window. Only adds
// are reversible: modify and delete changes have no prior-state backup and
// are recorded as per-row failures.
func (s *Service) Rollback(ctx context.Context, draftID, rolledBackByID uuid.UUID) (*RollbackResult, error) {
	result := &RollbackResult{DraftID: draftID}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin rollback transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	drafts := tx.DraftRepository()
	draft, err := drafts.GetByIDForUpdate(ctx, draftID)
	if err != nil {
		return nil, err
	}
	result.Status = string(draft.Status)

	if draft.Status != entity.DraftStatusPublished {
		result.ErrorCode = ErrCodeInvalidStatus
		result.Message = fmt.Sprintf("draft is %s, only PUBLISHED drafts can be rolled back", draft.Status)
		return result, nil
	}
	if !draft.RollbackAvailable {
		result.ErrorCode = ErrCodeRollbackUnavailable
		result.Message = "rollback is no longer available for this draft"
		return result, nil
	}
	now := s.clk.Now()
	if draft.RollbackExpiresAt == nil || now.After(*draft.RollbackExpiresAt) {
		result.ErrorCode = ErrCodeRollbackExpired
		result.Message = "rollback window has expired"
		return result, nil
	}

	assignments, err := drafts.ListAssignments(ctx, draftID)
	if err != nil {
		return nil, err
	}

	live := tx.AssignmentRepository()
	affected := make(map[uuid.UUID]bool)

	for _, da := range assignments {
		if da.CreatedAssignmentID == nil {
			continue
		}
		switch da.ChangeType {
		case entity.ChangeTypeAdd:
			for _, halfDay := range da.TimeOfDay.HalfDays() {
				deleted, err := live.DeleteBySlotAndSource(ctx, da.PersonID, da.Date, halfDay, entity.SourceManual)
				if err != nil {
					result.FailedCount++
					result.Errors = append(result.Errors, RowError{
						DraftAssignmentID: da.ID,
						PersonID:          da.PersonID,
						Date:              da.Date.Format("2006-01-02"),
						Error:             err.Error(),
					})
					continue
				}
				if deleted {
					result.RolledBackCount++
					affected[da.PersonID] = true
				}
			}
		case entity.ChangeTypeModify, entity.ChangeTypeDelete:
			result.FailedCount++
			result.Errors = append(result.Errors, RowError{
				DraftAssignmentID: da.ID,
				PersonID:          da.PersonID,
				Date:              da.Date.Format("2006-01-02"),
				Error:             fmt.Sprintf("cannot restore %s change: no backup of prior state", da.ChangeType),
			})
		}
	}

	if result.RolledBackCount == 0 && result.FailedCount > 0 {
		result.Success = false
		result.ErrorCode = ErrCodeRollbackFailed
		result.Message = fmt.Sprintf("rollback failed: %d changes could not be restored", result.FailedCount)
		return result, nil
	}

	if err := draft.MarkRolledBack(rolledBackByID, now); err != nil {
		return nil, err
	}
	if result.FailedCount > 0 {
		draft.Notes = appendNote(draft.Notes,
			fmt.Sprintf("partial rollback: %d rows restored, %d could not be", result.RolledBackCount, result.FailedCount))
	}
	if err := drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	s.audit(ctx, tx.AuditLogRepository(), rolledBackByID, "ROLLBACK_DRAFT", draft.ID,
		fmt.Sprintf(`{"rolled_back":%d,"failed":%d}`, result.RolledBackCount, result.FailedCount))

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rollback: %w", err)
	}
	committed = true

	result.Success = true
	result.Status = string(draft.Status)
	result.Message = fmt.Sprintf("rolled back %d rows (%d failures)", result.RolledBackCount, result.FailedCount)

	if s.notifier != nil {
		for personID := range affected {
			if err := s.notifier.Enqueue(ctx, personID, notify.KindScheduleRolledBack, map[string]interface{}{
				"draft_id": draft.ID.String(),
			}); err != nil {
				s.log.Warnw("failed to enqueue rollback notification", "person_id", personID, "error", err)
			}
		}
	}
	if s.metrics != nil {
		s.metrics.RecordRollback()
	}

	s.log.Infow("draft rolled back",
		"draft_id", draft.ID, "rolled_back", result.RolledBackCount, "failed", result.FailedCount)
	return result, nil
}
