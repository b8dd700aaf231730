package draft

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/repository"
)

// Publish translates the draft's staged changes into live half-day writes
// under a per-draft row lock. Partial success is permitted and reported:
// with zero successes and any errors the draft stays in DRAFT status.
func (s *Service) Publish(ctx context.Context, draftID, publisherID uuid.UUID, overrideComment string, validateACGME bool) (*PublishResult, error) {
	start := s.clk.Now()
	result := &PublishResult{DraftID: draftID}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish transaction: %w", err)
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

	if draft.Status != entity.DraftStatusDraft {
		result.ErrorCode = ErrCodeInvalidStatus
		result.Message = fmt.Sprintf("draft is %s, only DRAFT drafts can be published", draft.Status)
		return result, nil
	}

	if draft.FlagsTotal > draft.FlagsAcknowledged && overrideComment == "" {
		result.ErrorCode = ErrCodeOverrideCommentRequired
		result.Message = fmt.Sprintf("%d unacknowledged flags require an override comment",
			draft.FlagsTotal-draft.FlagsAcknowledged)
		return result, nil
	}

	assignments, err := drafts.ListAssignments(ctx, draftID)
	if err != nil {
		return nil, err
	}

	live := tx.AssignmentRepository()
	activities := tx.ActivityRepository()
	affected := make(map[uuid.UUID]bool)

	for _, da := range assignments {
		if err := s.publishOne(ctx, live, activities, da, drafts); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, RowError{
				DraftAssignmentID: da.ID,
				PersonID:          da.PersonID,
				Date:              da.Date.Format("2006-01-02"),
				Error:             err.Error(),
			})
			continue
		}
		result.PublishedCount += len(da.TimeOfDay.HalfDays())
		affected[da.PersonID] = true
	}

	if result.PublishedCount == 0 && result.ErrorCount > 0 {
		result.Success = false
		result.ErrorCode = ErrCodePublishFailed
		result.Message = fmt.Sprintf("publish failed: %d errors, no rows written", result.ErrorCount)
		if s.metrics != nil {
			s.metrics.RecordPublish("failed", s.clk.Now().Sub(start).Seconds(), result.ErrorCount)
		}
		return result, nil
	}

	now := s.clk.Now()
	if err := draft.MarkPublished(publisherID, now); err != nil {
		return nil, err
	}
	if overrideComment != "" {
		draft.Notes = appendNote(draft.Notes, "override: "+overrideComment)
	}
	if err := drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	s.audit(ctx, tx.AuditLogRepository(), publisherID, "PUBLISH_DRAFT", draft.ID,
		fmt.Sprintf(`{"published":%d,"errors":%d}`, result.PublishedCount, result.ErrorCount))

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}
	committed = true

	result.Success = true
	result.Status = string(draft.Status)
	result.RollbackAvailable = draft.RollbackAvailable
	result.RollbackExpiresAt = draft.RollbackExpiresAt
	result.Message = fmt.Sprintf("published %d rows (%d errors)", result.PublishedCount, result.ErrorCount)

	if validateACGME && result.PublishedCount > 0 && s.validator != nil {
		validation, err := s.validator.Validate(ctx, draft.StartDate, draft.EndDate)
		if err != nil {
			s.log.Warnw("acgme validation failed", "draft_id", draft.ID, "error", err)
		} else {
			result.ACGMEWarnings = validation.WarningTexts()
		}
	}

	if s.notifier != nil {
		for personID := range affected {
			if err := s.notifier.Enqueue(ctx, personID, notify.KindSchedulePublished, map[string]interface{}{
				"draft_id": draft.ID.String(),
				"start":    draft.StartDate.Format("2006-01-02"),
				"end":      draft.EndDate.Format("2006-01-02"),
			}); err != nil {
				s.log.Warnw("failed to enqueue publish notification", "person_id", personID, "error", err)
			}
		}
	}
	if s.metrics != nil {
		s.metrics.RecordPublish("published", s.clk.Now().Sub(start).Seconds(), result.ErrorCount)
	}

	s.log.Infow("draft published",
		"draft_id", draft.ID, "published", result.PublishedCount, "errors", result.ErrorCount)
	return result, nil
}

// publishOne applies one draft assignment: one or two live writes when the
// time of day is ALL.
func (s *Service) publishOne(ctx context.Context, live repository.AssignmentRepository, activities repository.ActivityRepository, da *entity.DraftAssignment, drafts repository.DraftRepository) error {
	var firstCreated *uuid.UUID

	for _, halfDay := range da.TimeOfDay.HalfDays() {
		switch da.ChangeType {
		case entity.ChangeTypeAdd, entity.ChangeTypeModify:
			activity, err := activities.GetByCode(ctx, da.ActivityCode)
			if err != nil {
				return fmt.Errorf("cannot resolve activity %q: %w", da.ActivityCode, err)
			}

			existing, err := live.GetBySlot(ctx, da.PersonID, da.Date, halfDay)
			if err != nil && !repository.IsNotFound(err) {
				return err
			}

			if existing != nil {
				wasManual := existing.Source == entity.SourceManual
				existing.ActivityID = activity.ID
				existing.ActivityCode = activity.Code
				existing.ActivityCategory = activity.Category
				existing.RotationTemplateID = da.RotationTemplateID
				existing.Source = entity.SourceManual
				if !wasManual {
					existing.IsOverride = true
				}
				existing.CountsTowardCapacity = activity.CountsTowardCapacity
				if err := live.Update(ctx, existing); err != nil {
					return err
				}
				if firstCreated == nil {
					id := existing.ID
					firstCreated = &id
				}
				continue
			}

			if da.ChangeType == entity.ChangeTypeModify {
				return fmt.Errorf("no live assignment to modify at %s %s", da.Date.Format("2006-01-02"), halfDay)
			}

			created := &entity.HalfDayAssignment{
				ID:                   uuid.New(),
				PersonID:             da.PersonID,
				Date:                 da.Date,
				HalfDay:              halfDay,
				ActivityID:           activity.ID,
				ActivityCode:         activity.Code,
				ActivityCategory:     activity.Category,
				RotationTemplateID:   da.RotationTemplateID,
				Source:               entity.SourceManual,
				CountsTowardCapacity: activity.CountsTowardCapacity,
				CreatedAt:            s.clk.Now(),
				UpdatedAt:            s.clk.Now(),
			}
			if _, err := live.UpsertWithSourcePolicy(ctx, created); err != nil {
				return err
			}
			if firstCreated == nil {
				id := created.ID
				firstCreated = &id
			}

		case entity.ChangeTypeDelete:
			existing, err := live.GetBySlot(ctx, da.PersonID, da.Date, halfDay)
			if err != nil {
				return fmt.Errorf("no live assignment to delete at %s %s", da.Date.Format("2006-01-02"), halfDay)
			}
			if err := live.DeleteByID(ctx, existing.ID); err != nil {
				return err
			}
			// Deletes record no created id.

		default:
			return fmt.Errorf("unknown change type %q", da.ChangeType)
		}
	}

	if firstCreated != nil {
		da.CreatedAssignmentID = firstCreated
		if err := drafts.UpdateAssignment(ctx, da); err != nil {
			return err
		}
	}
	return nil
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
