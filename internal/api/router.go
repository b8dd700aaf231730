package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rotamed/scheduler/internal/draft"
	"github.com/rotamed/scheduler/internal/job"
	"github.com/rotamed/scheduler/internal/kv"
	"github.com/rotamed/scheduler/internal/metrics"
	"github.com/rotamed/scheduler/internal/repository"
	"github.com/rotamed/scheduler/internal/resolver"
)

// Router wires the Echo server over the engine services.
type Router struct {
	echo     *echo.Echo
	handlers *Handlers
}

// NewRouter creates the Echo router with all routes registered.
func NewRouter(db repository.Database, drafts *draft.Service, res *resolver.Resolver, scheduler *job.Scheduler, kvStore kv.Store) *Router {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	r := &Router{
		echo: e,
		handlers: &Handlers{
			db:        db,
			drafts:    drafts,
			resolver:  res,
			scheduler: scheduler,
			kvStore:   kvStore,
		},
	}
	r.registerRoutes()
	return r
}

func (r *Router) registerRoutes() {
	h := r.handlers

	r.echo.GET("/api/health", h.HealthCheck)
	r.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	r.echo.POST("/api/drafts", h.CreateDraft)
	r.echo.GET("/api/drafts/:id/preview", h.PreviewDraft)
	r.echo.POST("/api/drafts/:id/publish", h.PublishDraft)
	r.echo.POST("/api/drafts/:id/rollback", h.RollbackDraft)
	r.echo.POST("/api/drafts/:id/discard", h.DiscardDraft)
	r.echo.POST("/api/drafts/:id/flags", h.AddFlag)
	r.echo.POST("/api/drafts/flags/:flag_id/acknowledge", h.AcknowledgeFlag)

	r.echo.POST("/api/solver/runs", h.StartSolverRun)
	r.echo.GET("/api/solver/runs/:task_id/progress", h.SolverProgress)

	r.echo.POST("/api/preloads/load", h.LoadPreloads)

	r.echo.POST("/api/conflicts/:id/analyze", h.AnalyzeConflict)
	r.echo.GET("/api/conflicts/:id/options", h.ConflictOptions)
	r.echo.POST("/api/conflicts/:id/auto-resolve", h.AutoResolveConflict)
	r.echo.POST("/api/conflicts/batch-resolve", h.BatchResolveConflicts)
}

// Echo exposes the underlying Echo instance for serving and shutdown.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}
