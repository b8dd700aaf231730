package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// Database provides access to all repositories.
type Database interface {
	// Transaction management
	BeginTx(ctx context.Context) (Transaction, error)

	// Repository accessors
	PersonRepository() PersonRepository
	ActivityRepository() ActivityRepository
	RotationTemplateRepository() RotationTemplateRepository
	AssignmentRepository() AssignmentRepository
	PreloadRepository() PreloadRepository
	DraftRepository() DraftRepository
	ConflictAlertRepository() ConflictAlertRepository
	SwapRepository() SwapRepository
	AuditLogRepository() AuditLogRepository

	// Connection management
	Close() error
	Health(ctx context.Context) error
}

// Transaction is a unit of work over the same repositories. Savepoints back
// the uniqueness-collision recovery on half-day upserts.
type Transaction interface {
	Commit() error
	Rollback() error
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	PersonRepository() PersonRepository
	ActivityRepository() ActivityRepository
	RotationTemplateRepository() RotationTemplateRepository
	AssignmentRepository() AssignmentRepository
	PreloadRepository() PreloadRepository
	DraftRepository() DraftRepository
	ConflictAlertRepository() ConflictAlertRepository
	SwapRepository() SwapRepository
	AuditLogRepository() AuditLogRepository
}

// PersonRepository defines data access for scheduled people.
type PersonRepository interface {
	Create(ctx context.Context, person *entity.Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Person, error)
	GetAll(ctx context.Context) ([]*entity.Person, error)
	GetByKind(ctx context.Context, kind entity.PersonKind) ([]*entity.Person, error)
	Count(ctx context.Context) (int64, error)
}

// ActivityRepository defines data access for activity codes.
type ActivityRepository interface {
	Create(ctx context.Context, activity *entity.Activity) error
	GetByCode(ctx context.Context, code string) (*entity.Activity, error)
	GetAll(ctx context.Context) ([]*entity.Activity, error)
}

// RotationTemplateRepository defines data access for rotation templates.
type RotationTemplateRepository interface {
	Create(ctx context.Context, template *entity.RotationTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.RotationTemplate, error)
	GetByAbbreviation(ctx context.Context, abbrev string) (*entity.RotationTemplate, error)
	GetAll(ctx context.Context) ([]*entity.RotationTemplate, error)
}

// UpsertOutcome reports what a source-policy upsert did.
type UpsertOutcome string

const (
	UpsertInserted UpsertOutcome = "INSERTED"
	UpsertUpdated  UpsertOutcome = "UPDATED"
	UpsertSkipped  UpsertOutcome = "SKIPPED" // blocked by source precedence
)

// AssignmentRepository defines data access for the live half-day store.
// Every mutating operation enforces (person, date, half_day) uniqueness and
// the source-monotonicity rules of entity.DecideOverwrite.
type AssignmentRepository interface {
	// UpsertWithSourcePolicy writes the assignment, applying source
	// precedence against any existing row at the slot. Concurrent inserts
	// colliding on the uniqueness key are detected, the session rolled back
	// to a savepoint, and the surviving row re-read to decide an upgrade.
	UpsertWithSourcePolicy(ctx context.Context, assignment *entity.HalfDayAssignment) (UpsertOutcome, error)

	GetBySlot(ctx context.Context, personID uuid.UUID, date time.Time, halfDay entity.HalfDay) (*entity.HalfDayAssignment, error)
	GetByPersonAndDateRange(ctx context.Context, personID uuid.UUID, start, end time.Time) ([]*entity.HalfDayAssignment, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*entity.HalfDayAssignment, error)
	Update(ctx context.Context, assignment *entity.HalfDayAssignment) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// DeleteBySlotAndSource deletes the row at the slot only when its source
	// matches; returns false when no such row exists.
	DeleteBySlotAndSource(ctx context.Context, personID uuid.UUID, date time.Time, halfDay entity.HalfDay, source entity.AssignmentSource) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// PreloadRepository defines data access for the declarative preload inputs.
// The engine only reads these during a run; Create methods exist for
// fixtures and importers.
type PreloadRepository interface {
	ListAbsences(ctx context.Context, start, end time.Time) ([]*entity.Absence, error)
	ListInstitutionalEvents(ctx context.Context, start, end time.Time) ([]*entity.InstitutionalEvent, error)
	ListInpatientPreloads(ctx context.Context, start, end time.Time) ([]*entity.InpatientPreload, error)
	ListCallAssignments(ctx context.Context, start, end time.Time) ([]*entity.CallAssignment, error)
	ListResidentCallPreloads(ctx context.Context, start, end time.Time) ([]*entity.ResidentCallPreload, error)
	ListBlockAssignments(ctx context.Context, blockNumber, academicYear int) ([]*entity.BlockAssignment, error)

	CreateAbsence(ctx context.Context, a *entity.Absence) error
	CreateInstitutionalEvent(ctx context.Context, e *entity.InstitutionalEvent) error
	CreateInpatientPreload(ctx context.Context, p *entity.InpatientPreload) error
	CreateCallAssignment(ctx context.Context, c *entity.CallAssignment) error
	CreateResidentCallPreload(ctx context.Context, c *entity.ResidentCallPreload) error
	CreateBlockAssignment(ctx context.Context, b *entity.BlockAssignment) error
}

// DraftRepository defines data access for schedule drafts and their child
// collections.
type DraftRepository interface {
	Create(ctx context.Context, draft *entity.ScheduleDraft) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleDraft, error)
	// GetByIDForUpdate acquires the per-draft row lock held for the whole
	// publish or rollback operation.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.ScheduleDraft, error)
	// GetActiveDraftByRange returns the draft-status draft with the exact
	// (start, end) pair, if one exists.
	GetActiveDraftByRange(ctx context.Context, start, end time.Time) (*entity.ScheduleDraft, error)
	Update(ctx context.Context, draft *entity.ScheduleDraft) error
	List(ctx context.Context, limit int) ([]*entity.ScheduleDraft, error)

	CreateAssignment(ctx context.Context, da *entity.DraftAssignment) error
	UpdateAssignment(ctx context.Context, da *entity.DraftAssignment) error
	// GetAssignmentBySlot enforces (draft, person, date, time_of_day)
	// uniqueness: callers update the returned row instead of duplicating.
	GetAssignmentBySlot(ctx context.Context, draftID, personID uuid.UUID, date time.Time, tod entity.TimeOfDay) (*entity.DraftAssignment, error)
	// ListAssignments returns the draft's assignments in stable insertion
	// order.
	ListAssignments(ctx context.Context, draftID uuid.UUID) ([]*entity.DraftAssignment, error)

	CreateFlag(ctx context.Context, flag *entity.DraftFlag) error
	UpdateFlag(ctx context.Context, flag *entity.DraftFlag) error
	GetFlag(ctx context.Context, id uuid.UUID) (*entity.DraftFlag, error)
	ListFlags(ctx context.Context, draftID uuid.UUID) ([]*entity.DraftFlag, error)
}

// ConflictAlertRepository defines data access for conflict alerts. Alerts
// are created by an external detector; the resolver reads them and writes
// resolution metadata.
type ConflictAlertRepository interface {
	Create(ctx context.Context, alert *entity.ConflictAlert) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ConflictAlert, error)
	Update(ctx context.Context, alert *entity.ConflictAlert) error
	// ListOpenByWeek returns open alerts whose FMIT week starts on the given
	// Monday.
	ListOpenByWeek(ctx context.Context, weekStart time.Time) ([]*entity.ConflictAlert, error)
	ListOpenByPerson(ctx context.Context, personID uuid.UUID) ([]*entity.ConflictAlert, error)
	ListOpen(ctx context.Context) ([]*entity.ConflictAlert, error)
}

// SwapRepository defines data access for swap records.
type SwapRepository interface {
	Create(ctx context.Context, swap *entity.SwapRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.SwapRecord, error)
	Update(ctx context.Context, swap *entity.SwapRecord) error
}

// AuditLogRepository records engine actions for compliance and debugging.
type AuditLogRepository interface {
	Create(ctx context.Context, log *AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]*AuditLog, error)
}

// AuditLog is one recorded engine action.
type AuditLog struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	Action    string // e.g. "PUBLISH_DRAFT", "ROLLBACK_DRAFT", "AUTO_RESOLVE"
	Resource  string // e.g. "ScheduleDraft#<uuid>"
	Details   string // JSON
	Timestamp time.Time
}

// NotFoundError represents a record not found error.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return "not found: " + e.ResourceType + " " + e.ResourceID
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// ConflictError represents a uniqueness-key collision surfaced by the store.
type ConflictError struct {
	ResourceType string
	Key          string
}

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	return "conflict: " + e.ResourceType + " " + e.Key
}

// IsConflict checks if an error is a ConflictError.
func IsConflict(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
