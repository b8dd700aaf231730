package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rotamed/scheduler/internal/clock"
	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/metrics"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/repository"
	"github.com/rotamed/scheduler/internal/validation"
)

// ACGMEValidator checks a published window for duty-hour violations. It is
// an external collaborator; its warnings never block a publish.
type ACGMEValidator interface {
	Validate(ctx context.Context, start, end time.Time) (*validation.Result, error)
}

// Service is the draft engine.
type Service struct {
	db        repository.Database
	clk       clock.Clock
	validator ACGMEValidator
	notifier  notify.Sink
	metrics   *metrics.Registry
	log       *zap.SugaredLogger
}

// NewService creates a draft service. validator, notifier and metrics may
// be nil.
func NewService(db repository.Database, clk clock.Clock, validator ACGMEValidator, notifier notify.Sink, m *metrics.Registry, log *zap.SugaredLogger) *Service {
	return &Service{db: db, clk: clk, validator: validator, notifier: notifier, metrics: m, log: log}
}

// CreateDraft creates a new draft, or returns the existing active draft for
// the exact (start, end) pair instead of duplicating it.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (*entity.ScheduleDraft, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, entity.ErrInvalidDateRange
	}

	drafts := s.db.DraftRepository()
	existing, err := drafts.GetActiveDraftByRange(ctx, input.StartDate, input.EndDate)
	if err == nil {
		s.log.Infow("returning existing active draft",
			"draft_id", existing.ID, "start", input.StartDate.Format("2006-01-02"))
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	now := s.clk.Now()
	draft := &entity.ScheduleDraft{
		ID:          uuid.New(),
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		BlockNumber: input.BlockNumber,
		Status:      entity.DraftStatusDraft,
		SourceType:  input.SourceType,
		CreatedByID: input.CreatedByID,
		Notes:       input.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := drafts.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	return draft, nil
}

// AddDraftAssignment stages one change. A second add for the same (person,
// date, time-of-day) updates the existing row instead of duplicating, and
// the per-type change counters follow.
func (s *Service) AddDraftAssignment(ctx context.Context, draftID uuid.UUID, input AddAssignmentInput) (*entity.DraftAssignment, error) {
	drafts := s.db.DraftRepository()
	draft, err := drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != entity.DraftStatusDraft {
		return nil, entity.ErrInvalidDraftStatus
	}

	now := s.clk.Now()
	existing, err := drafts.GetAssignmentBySlot(ctx, draftID, input.PersonID, input.Date, input.TimeOfDay)
	if err == nil {
		s.adjustChangeCount(draft, existing.ChangeType, -1)
		existing.ActivityCode = input.ActivityCode
		existing.RotationTemplateID = input.RotationTemplateID
		existing.ChangeType = input.ChangeType
		existing.ExistingAssignmentID = input.ExistingAssignmentID
		existing.UpdatedAt = now
		if err := drafts.UpdateAssignment(ctx, existing); err != nil {
			return nil, err
		}
		s.adjustChangeCount(draft, input.ChangeType, 1)
		if err := drafts.Update(ctx, draft); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	da := &entity.DraftAssignment{
		ID:                   uuid.New(),
		DraftID:              draftID,
		PersonID:             input.PersonID,
		Date:                 input.Date,
		TimeOfDay:            input.TimeOfDay,
		ActivityCode:         input.ActivityCode,
		RotationTemplateID:   input.RotationTemplateID,
		ChangeType:           input.ChangeType,
		ExistingAssignmentID: input.ExistingAssignmentID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := drafts.CreateAssignment(ctx, da); err != nil {
		return nil, err
	}
	s.adjustChangeCount(draft, input.ChangeType, 1)
	if err := drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	return da, nil
}

func (s *Service) adjustChangeCount(draft *entity.ScheduleDraft, changeType entity.ChangeType, delta int) {
	switch changeType {
	case entity.ChangeTypeAdd:
		draft.AddedCount += delta
	case entity.ChangeTypeModify:
		draft.ModifiedCount += delta
	case entity.ChangeTypeDelete:
		draft.DeletedCount += delta
	}
}

// BulkAddSolverOutput stages solver output in input order. Assignments in
// the preserved set are skipped; the rest become modify when a live row
// already occupies the slot, add otherwise.
func (s *Service) BulkAddSolverOutput(ctx context.Context, draftID uuid.UUID, assignments []SolverAssignment, preserved map[string]bool) (added, modified int, err error) {
	live := s.db.AssignmentRepository()
	for _, a := range assignments {
		if preserved[a.Key()] {
			continue
		}

		input := AddAssignmentInput{
			PersonID:           a.PersonID,
			Date:               a.Date,
			TimeOfDay:          entity.TimeOfDay(a.HalfDay),
			ActivityCode:       a.ActivityCode,
			RotationTemplateID: a.RotationTemplateID,
			ChangeType:         entity.ChangeTypeAdd,
		}

		existing, lookupErr := live.GetBySlot(ctx, a.PersonID, a.Date, a.HalfDay)
		if lookupErr == nil {
			input.ChangeType = entity.ChangeTypeModify
			id := existing.ID
			input.ExistingAssignmentID = &id
		} else if !repository.IsNotFound(lookupErr) {
			return added, modified, lookupErr
		}

		if _, err := s.AddDraftAssignment(ctx, draftID, input); err != nil {
			return added, modified, err
		}
		if input.ChangeType == entity.ChangeTypeModify {
			modified++
		} else {
			added++
		}
	}
	return added, modified, nil
}

// AddFlag attaches a reviewable issue to a draft.
func (s *Service) AddFlag(ctx context.Context, draftID uuid.UUID, input FlagInput) (*entity.DraftFlag, error) {
	drafts := s.db.DraftRepository()
	draft, err := drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}

	flag := &entity.DraftFlag{
		ID:        uuid.New(),
		DraftID:   draftID,
		FlagType:  input.FlagType,
		Severity:  input.Severity,
		Message:   input.Message,
		PersonID:  input.PersonID,
		Date:      input.Date,
		CreatedAt: s.clk.Now(),
	}
	if err := drafts.CreateFlag(ctx, flag); err != nil {
		return nil, err
	}
	draft.FlagsTotal++
	if err := drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	return flag, nil
}

// AcknowledgeFlag records the first acknowledgment of a flag; repeat calls
// are no-ops on both the flag and the draft counter.
func (s *Service) AcknowledgeFlag(ctx context.Context, flagID, acknowledgerID uuid.UUID, note string) (*entity.DraftFlag, error) {
	drafts := s.db.DraftRepository()
	flag, err := drafts.GetFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if !flag.Acknowledge(acknowledgerID, note, s.clk.Now()) {
		return flag, nil
	}
	if err := drafts.UpdateFlag(ctx, flag); err != nil {
		return nil, err
	}
	draft, err := drafts.GetByID(ctx, flag.DraftID)
	if err != nil {
		return nil, err
	}
	draft.FlagsAcknowledged++
	if err := drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	return flag, nil
}

// Preview returns the read-only draft summary. It never mutates state.
func (s *Service) Preview(ctx context.Context, draftID uuid.UUID) (*Preview, error) {
	drafts := s.db.DraftRepository()
	draft, err := drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}

	assignments, err := drafts.ListAssignments(ctx, draftID)
	if err != nil {
		return nil, err
	}
	flags, err := drafts.ListFlags(ctx, draftID)
	if err != nil {
		return nil, err
	}

	personNames := make(map[uuid.UUID]string)
	persons := s.db.PersonRepository()

	preview := &Preview{
		DraftID:           draft.ID,
		AddCount:          draft.AddedCount,
		ModifyCount:       draft.ModifiedCount,
		DeleteCount:       draft.DeletedCount,
		FlagsTotal:        draft.FlagsTotal,
		FlagsAcknowledged: draft.FlagsAcknowledged,
		Assignments:       []PreviewAssignment{},
		Flags:             []PreviewFlag{},
	}
	for _, da := range assignments {
		name, cached := personNames[da.PersonID]
		if !cached {
			if person, err := persons.GetByID(ctx, da.PersonID); err == nil {
				name = person.Name
			}
			personNames[da.PersonID] = name
		}
		preview.Assignments = append(preview.Assignments, PreviewAssignment{
			ID:           da.ID,
			PersonID:     da.PersonID,
			PersonName:   name,
			Date:         da.Date.Format("2006-01-02"),
			TimeOfDay:    string(da.TimeOfDay),
			ActivityCode: da.ActivityCode,
			ChangeType:   string(da.ChangeType),
		})
	}
	for _, f := range flags {
		pf := PreviewFlag{
			ID:             f.ID,
			Type:           string(f.FlagType),
			Severity:       string(f.Severity),
			Message:        f.Message,
			Acknowledged:   f.Acknowledged,
			AcknowledgedAt: f.AcknowledgedAt,
			CreatedAt:      f.CreatedAt,
		}
		if f.Date != nil {
			d := f.Date.Format("2006-01-02")
			pf.Date = &d
		}
		preview.Flags = append(preview.Flags, pf)
	}
	return preview, nil
}

// Discard abandons an unpublished draft.
func (s *Service) Discard(ctx context.Context, draftID uuid.UUID) error {
	drafts := s.db.DraftRepository()
	draft, err := drafts.GetByID(ctx, draftID)
	if err != nil {
		return err
	}
	if err := draft.MarkDiscarded(s.clk.Now()); err != nil {
		return err
	}
	if err := drafts.Update(ctx, draft); err != nil {
		return err
	}
	s.audit(ctx, s.db.AuditLogRepository(), draft.CreatedByID, "DISCARD_DRAFT", draft.ID, "")
	return nil
}

func (s *Service) audit(ctx context.Context, logs repository.AuditLogRepository, actorID uuid.UUID, action string, draftID uuid.UUID, details string) {
	err := logs.Create(ctx, &repository.AuditLog{
		ActorID:   actorID,
		Action:    action,
		Resource:  "ScheduleDraft#" + draftID.String(),
		Details:   details,
		Timestamp: s.clk.Now(),
	})
	if err != nil {
		s.log.Warnw("failed to write audit log", "action", action, "draft_id", draftID, "error", err)
	}
}
