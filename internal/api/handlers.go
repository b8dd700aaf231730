package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rotamed/scheduler/internal/draft"
	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/job"
	"github.com/rotamed/scheduler/internal/kv"
	"github.com/rotamed/scheduler/internal/repository"
	"github.com/rotamed/scheduler/internal/resolver"
	"github.com/rotamed/scheduler/internal/solver"
)

// Handlers holds the engine services behind the HTTP surface.
type Handlers struct {
	db        repository.Database
	drafts    *draft.Service
	resolver  *resolver.Resolver
	scheduler *job.Scheduler
	kvStore   kv.Store
}

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}

func parseID(c echo.Context, param string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(param))
}

// HealthCheck reports process and store health.
func (h *Handlers) HealthCheck(c echo.Context) error {
	if err := h.db.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponseWithCode("STORE_UNAVAILABLE", err.Error()))
	}
	return c.JSON(http.StatusOK, SuccessResponse(map[string]string{"status": "ok"}))
}

// CreateDraft creates (or returns the existing) draft for a date range.
func (h *Handlers) CreateDraft(c echo.Context) error {
	var body struct {
		SourceType  string `json:"source_type"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		BlockNumber *int   `json:"block_number"`
		CreatedByID string `json:"created_by_id"`
		Notes       string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}

	start, err := parseDate(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_DATE", "start_date must be YYYY-MM-DD"))
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_DATE", "end_date must be YYYY-MM-DD"))
	}
	creatorID, err := uuid.Parse(body.CreatedByID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "created_by_id must be a uuid"))
	}

	created, err := h.drafts.CreateDraft(c.Request().Context(), draft.CreateDraftInput{
		SourceType:  entity.DraftSourceType(body.SourceType),
		StartDate:   start,
		EndDate:     end,
		BlockNumber: body.BlockNumber,
		CreatedByID: creatorID,
		Notes:       body.Notes,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, SuccessResponse(created))
}

// PreviewDraft returns the read-only draft summary.
func (h *Handlers) PreviewDraft(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "draft id must be a uuid"))
	}
	preview, err := h.drafts.Preview(c.Request().Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse(preview))
}

// PublishDraft publishes a draft to the live store.
func (h *Handlers) PublishDraft(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "draft id must be a uuid"))
	}
	var body struct {
		PublisherID     string `json:"publisher_id"`
		OverrideComment string `json:"override_comment"`
		ValidateACGME   bool   `json:"validate_acgme"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	publisherID, err := uuid.Parse(body.PublisherID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "publisher_id must be a uuid"))
	}

	result, err := h.drafts.Publish(c.Request().Context(), id, publisherID, body.OverrideComment, body.ValidateACGME)
	if err != nil {
		return h.serviceError(c, err)
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	return c.JSON(status, SuccessResponse(result))
}

// RollbackDraft reverses a published draft inside the rollback window.
func (h *Handlers) RollbackDraft(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "draft id must be a uuid"))
	}
	var body struct {
		RolledBackByID string `json:"rolled_back_by_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	actorID, err := uuid.Parse(body.RolledBackByID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "rolled_back_by_id must be a uuid"))
	}

	result, err := h.drafts.Rollback(c.Request().Context(), id, actorID)
	if err != nil {
		return h.serviceError(c, err)
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	return c.JSON(status, SuccessResponse(result))
}

// DiscardDraft abandons an unpublished draft.
func (h *Handlers) DiscardDraft(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "draft id must be a uuid"))
	}
	if err := h.drafts.Discard(c.Request().Context(), id); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse(map[string]string{"status": "discarded"}))
}

// AddFlag attaches a flag to a draft.
func (h *Handlers) AddFlag(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "draft id must be a uuid"))
	}
	var body struct {
		FlagType string `json:"flag_type"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	flag, err := h.drafts.AddFlag(c.Request().Context(), id, draft.FlagInput{
		FlagType: entity.FlagType(body.FlagType),
		Severity: entity.FlagSeverity(body.Severity),
		Message:  body.Message,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, SuccessResponse(flag))
}

// AcknowledgeFlag records a flag acknowledgment; repeats are no-ops.
func (h *Handlers) AcknowledgeFlag(c echo.Context) error {
	flagID, err := parseID(c, "flag_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "flag id must be a uuid"))
	}
	var body struct {
		AcknowledgerID string `json:"acknowledger_id"`
		ResolutionNote string `json:"resolution_note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	ackID, err := uuid.Parse(body.AcknowledgerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "acknowledger_id must be a uuid"))
	}
	flag, err := h.drafts.AcknowledgeFlag(c.Request().Context(), flagID, ackID, body.ResolutionNote)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse(flag))
}

// StartSolverRun enqueues a background solver run and returns its task id.
func (h *Handlers) StartSolverRun(c echo.Context) error {
	var body struct {
		StartDate      string  `json:"start_date"`
		EndDate        string  `json:"end_date"`
		BlockNumber    *int    `json:"block_number"`
		CreatorID      string  `json:"creator_id"`
		TimeoutSeconds float64 `json:"timeout_seconds"`
		Workers        int     `json:"workers"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_DATE", "start_date must be YYYY-MM-DD"))
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_DATE", "end_date must be YYYY-MM-DD"))
	}
	creatorID, err := uuid.Parse(body.CreatorID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "creator_id must be a uuid"))
	}

	taskID, err := h.scheduler.EnqueueSolveSchedule(c.Request().Context(), job.SolveSchedulePayload{
		StartDate:      start,
		EndDate:        end,
		BlockNumber:    body.BlockNumber,
		CreatorID:      creatorID,
		TimeoutSeconds: body.TimeoutSeconds,
		Workers:        body.Workers,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("ENQUEUE_FAILED", err.Error()))
	}
	return c.JSON(http.StatusAccepted, SuccessResponse(map[string]string{"task_id": taskID}))
}

// SolverProgress returns the latest progress snapshot for a solver run.
func (h *Handlers) SolverProgress(c echo.Context) error {
	taskID := c.Param("task_id")
	raw, err := h.kvStore.Get(c.Request().Context(), solver.ProgressKey(taskID))
	if err == kv.ErrNotFound {
		return c.JSON(http.StatusNotFound, ErrorResponseWithCode("NOT_FOUND", "no progress snapshot for task"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("KV_ERROR", err.Error()))
	}
	return c.JSONBlob(http.StatusOK, raw)
}

// LoadPreloads enqueues a background preload run for one block.
func (h *Handlers) LoadPreloads(c echo.Context) error {
	var body job.LoadPreloadsPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	if err := h.scheduler.EnqueueLoadPreloads(c.Request().Context(), body); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("ENQUEUE_FAILED", err.Error()))
	}
	return c.JSON(http.StatusAccepted, SuccessResponse(map[string]string{"status": "enqueued"}))
}

// AnalyzeConflict returns the full analysis of one alert.
func (h *Handlers) AnalyzeConflict(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "conflict id must be a uuid"))
	}
	analysis, err := h.resolver.Analyze(c.Request().Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse(analysis))
}

// ConflictOptions returns the scored resolution options for one alert.
func (h *Handlers) ConflictOptions(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "conflict id must be a uuid"))
	}
	options, err := h.resolver.GenerateOptions(c.Request().Context(), id, resolver.DefaultMaxOptions)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse(options))
}

// AutoResolveConflict applies the safest option or returns a structured
// rejection.
func (h *Handlers) AutoResolveConflict(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "conflict id must be a uuid"))
	}
	var body struct {
		Strategy *string `json:"strategy"`
		UserID   *string `json:"user_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}

	var strategy *resolver.Strategy
	if body.Strategy != nil {
		s := resolver.Strategy(*body.Strategy)
		strategy = &s
	}
	var userID *uuid.UUID
	if body.UserID != nil {
		parsed, err := uuid.Parse(*body.UserID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "user_id must be a uuid"))
		}
		userID = &parsed
	}

	result, err := h.resolver.AutoResolveIfSafe(c.Request().Context(), id, strategy, userID)
	if err != nil {
		return h.serviceError(c, err)
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	return c.JSON(status, SuccessResponse(result))
}

// BatchResolveConflicts runs a synchronous batch auto-resolve.
func (h *Handlers) BatchResolveConflicts(c echo.Context) error {
	var body struct {
		AlertIDs     []string `json:"alert_ids"`
		AutoApply    bool     `json:"auto_apply"`
		MaxRiskLevel string   `json:"max_risk_level"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_BODY", err.Error()))
	}
	ids := make([]uuid.UUID, 0, len(body.AlertIDs))
	for _, raw := range body.AlertIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_ID", "alert_ids must be uuids"))
		}
		ids = append(ids, id)
	}

	maxRisk := resolver.RiskLevel(body.MaxRiskLevel)
	if maxRisk == "" {
		maxRisk = resolver.RiskMedium
	}
	report, err := h.resolver.BatchAutoResolve(c.Request().Context(), ids, body.AutoApply, maxRisk)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse(report))
}

// serviceError maps service failures onto HTTP statuses with coded bodies.
func (h *Handlers) serviceError(c echo.Context, err error) error {
	switch {
	case repository.IsNotFound(err):
		return c.JSON(http.StatusNotFound, ErrorResponseWithCode("NOT_FOUND", err.Error()))
	case err == entity.ErrInvalidDraftStatus:
		return c.JSON(http.StatusConflict, ErrorResponseWithCode(draft.ErrCodeInvalidStatus, err.Error()))
	case err == entity.ErrInvalidDateRange:
		return c.JSON(http.StatusBadRequest, ErrorResponseWithCode("INVALID_DATE_RANGE", err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponseWithCode("INTERNAL_ERROR", err.Error()))
	}
}
