package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/rotamed/scheduler/internal/draft"
	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/kv"
	"github.com/rotamed/scheduler/internal/metrics"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/preload"
	"github.com/rotamed/scheduler/internal/repository"
	"github.com/rotamed/scheduler/internal/resolver"
	"github.com/rotamed/scheduler/internal/solver"
)

// Handlers processes the engine's background tasks.
type Handlers struct {
	db       repository.Database
	preloads *preload.Service
	drafts   *draft.Service
	resolver *resolver.Resolver
	kvStore  kv.Store
	metrics  *metrics.Registry
	log      *zap.SugaredLogger
}

// NewHandlers creates the task handler set.
func NewHandlers(db repository.Database, preloads *preload.Service, drafts *draft.Service, res *resolver.Resolver, kvStore kv.Store, m *metrics.Registry, log *zap.SugaredLogger) *Handlers {
	return &Handlers{db: db, preloads: preloads, drafts: drafts, resolver: res, kvStore: kvStore, metrics: m, log: log}
}

// Register wires the handlers onto an asynq mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSolveSchedule, h.HandleSolveSchedule)
	mux.HandleFunc(TypeLoadPreloads, h.HandleLoadPreloads)
	mux.HandleFunc(TypeBatchResolve, h.HandleBatchResolve)
	mux.HandleFunc(notify.TypeDeliverNotification, h.HandleDeliverNotification)
}

// HandleSolveSchedule runs the hybrid solver over the payload's window and
// stages the output into a new draft. The solver itself never writes to the
// live store.
func (h *Handlers) HandleSolveSchedule(ctx context.Context, task *asynq.Task) error {
	var payload SolveSchedulePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid solve payload: %w", err)
	}

	if h.metrics != nil {
		h.metrics.SolverRunStarted()
		defer h.metrics.SolverRunFinished()
	}

	sc, err := h.buildSchedulingContext(ctx, payload.StartDate, payload.EndDate)
	if err != nil {
		return err
	}

	manager := solver.NewManager().
		Register(solver.AvailabilityConstraint{}).
		Register(solver.CapacityConstraint{}).
		Register(solver.WorkloadEquityConstraint{})

	progress := solver.NewKVProgress(h.kvStore, payload.TaskID, h.log)
	hybrid := solver.NewHybridSolver(manager, payload.Workers, payload.TimeoutSeconds, progress, h.log)

	result, err := hybrid.Solve(ctx, sc, nil)
	if err != nil {
		return fmt.Errorf("solve failed: %w", err)
	}
	if h.metrics != nil {
		h.metrics.RecordSolverRun("hybrid", result.RuntimeSeconds)
	}
	if !result.Success {
		h.log.Warnw("solver produced no solution",
			"task_id", payload.TaskID, "status", result.Status, "detail", result.SolverStatus)
		return nil
	}

	newDraft, err := h.drafts.CreateDraft(ctx, draft.CreateDraftInput{
		SourceType:  entity.DraftSourceSolver,
		StartDate:   payload.StartDate,
		EndDate:     payload.EndDate,
		BlockNumber: payload.BlockNumber,
		CreatedByID: payload.CreatorID,
		Notes:       fmt.Sprintf("solver run %s (%s)", payload.TaskID, result.Status),
	})
	if err != nil {
		return err
	}

	staged := make([]draft.SolverAssignment, 0, len(result.Assignments))
	templates := make(map[uuid.UUID]*entity.RotationTemplate)
	for _, t := range sc.Templates {
		templates[t.ID] = t
	}
	for _, a := range result.Assignments {
		template := templates[a.TemplateID]
		if template == nil {
			continue
		}
		code := template.DisplayAbbreviation
		if code == "" {
			code = template.Abbreviation
		}
		id := a.TemplateID
		staged = append(staged, draft.SolverAssignment{
			PersonID:           a.PersonID,
			Date:               a.Slot.Date,
			HalfDay:            a.Slot.HalfDay,
			ActivityCode:       code,
			RotationTemplateID: &id,
		})
	}

	added, modified, err := h.drafts.BulkAddSolverOutput(ctx, newDraft.ID, staged, nil)
	if err != nil {
		return err
	}

	if result.Statistics.CoverageRate < 1.0 {
		if _, err := h.drafts.AddFlag(ctx, newDraft.ID, draft.FlagInput{
			FlagType: entity.FlagTypeCoverageGap,
			Severity: entity.FlagSeverityWarning,
			Message: fmt.Sprintf("solver covered %.0f%% of resident slots",
				result.Statistics.CoverageRate*100),
		}); err != nil {
			return err
		}
	}

	h.log.Infow("solver output staged",
		"task_id", payload.TaskID, "draft_id", newDraft.ID,
		"added", added, "modified", modified, "objective", result.ObjectiveValue)
	return nil
}

// buildSchedulingContext assembles the solver inputs: people, weekday
// slots, templates, and an availability mask derived from locked preload
// rows.
func (h *Handlers) buildSchedulingContext(ctx context.Context, start, end time.Time) (*solver.Context, error) {
	residents, err := h.db.PersonRepository().GetByKind(ctx, entity.PersonKindResident)
	if err != nil {
		return nil, err
	}
	faculty, err := h.db.PersonRepository().GetByKind(ctx, entity.PersonKindFaculty)
	if err != nil {
		return nil, err
	}
	templates, err := h.db.RotationTemplateRepository().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var slots []entity.Slot
	entity.EachDay(start, end, func(d time.Time) {
		if entity.IsWeekend(d) {
			return
		}
		slots = append(slots,
			entity.Slot{Date: d, HalfDay: entity.HalfDayAM},
			entity.Slot{Date: d, HalfDay: entity.HalfDayPM})
	})

	availability := make(map[uuid.UUID]map[string]bool)
	locked, err := h.db.AssignmentRepository().GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for _, a := range locked {
		if a.Source != entity.SourcePreload {
			continue
		}
		if availability[a.PersonID] == nil {
			availability[a.PersonID] = make(map[string]bool)
		}
		availability[a.PersonID][a.Slot().Key()] = false
	}

	return &solver.Context{
		Residents:    residents,
		Faculty:      faculty,
		Slots:        slots,
		Templates:    templates,
		Availability: availability,
	}, nil
}

// HandleLoadPreloads runs the preload loader for one block.
func (h *Handlers) HandleLoadPreloads(ctx context.Context, task *asynq.Task) error {
	var payload LoadPreloadsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid preload payload: %w", err)
	}

	window, err := entity.DefaultBlockWindow(payload.BlockNumber, payload.AcademicYear)
	if err != nil {
		return err
	}
	if payload.BlockStart != nil {
		window.Start = *payload.BlockStart
	}

	result, err := h.preloads.LoadBlockPreloads(ctx, window)
	if err != nil {
		return err
	}
	if h.metrics != nil {
		for pass, count := range result.ByPass {
			h.metrics.RecordPreloadPass(pass, count)
		}
	}
	return nil
}

// HandleBatchResolve runs a batch auto-resolve sweep. An empty id list
// sweeps every open alert.
func (h *Handlers) HandleBatchResolve(ctx context.Context, task *asynq.Task) error {
	var payload BatchResolvePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid batch resolve payload: %w", err)
	}

	ids := payload.AlertIDs
	if len(ids) == 0 {
		open, err := h.db.ConflictAlertRepository().ListOpen(ctx)
		if err != nil {
			return err
		}
		for _, alert := range open {
			ids = append(ids, alert.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	maxRisk := resolver.RiskLevel(payload.MaxRiskLevel)
	if maxRisk == "" {
		maxRisk = resolver.RiskMedium
	}
	report, err := h.resolver.BatchAutoResolve(ctx, ids, payload.AutoApply, maxRisk)
	if err != nil {
		return err
	}
	h.log.Infow("nightly batch resolve",
		"status", report.OverallStatus, "applied", report.Applied, "deferred", report.Deferred)
	return nil
}

// HandleDeliverNotification hands a queued notification to the delivery
// collaborator. Delivery transport is outside the engine; the handler logs
// the hand-off.
func (h *Handlers) HandleDeliverNotification(ctx context.Context, task *asynq.Task) error {
	var payload notify.Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	h.log.Infow("notification handed off",
		"recipient", payload.Recipient, "kind", payload.Kind)
	return nil
}
