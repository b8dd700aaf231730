// Package memory is an in-memory implementation of repository.Database used
// by unit tests and local development. It enforces the same uniqueness and
// source-precedence rules as the PostgreSQL implementation.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// Database is the in-memory store. A single mutex guards all collections;
// test workloads are small.
type Database struct {
	mu sync.RWMutex

	persons    map[uuid.UUID]*entity.Person
	activities map[string]*entity.Activity
	templates  map[uuid.UUID]*entity.RotationTemplate

	assignments       map[string]*entity.HalfDayAssignment // slot key -> row
	assignmentsByID   map[uuid.UUID]*entity.HalfDayAssignment

	absences      []*entity.Absence
	events        []*entity.InstitutionalEvent
	inpatients    []*entity.InpatientPreload
	calls         []*entity.CallAssignment
	residentCalls []*entity.ResidentCallPreload
	blockAssigns  []*entity.BlockAssignment

	drafts           map[uuid.UUID]*entity.ScheduleDraft
	draftAssignments []*entity.DraftAssignment // stable insertion order
	draftFlags       []*entity.DraftFlag

	alerts map[uuid.UUID]*entity.ConflictAlert
	swaps  map[uuid.UUID]*entity.SwapRecord

	auditLogs []*repository.AuditLog
}

// NewDatabase creates an empty in-memory database.
func NewDatabase() *Database {
	return &Database{
		persons:         make(map[uuid.UUID]*entity.Person),
		activities:      make(map[string]*entity.Activity),
		templates:       make(map[uuid.UUID]*entity.RotationTemplate),
		assignments:     make(map[string]*entity.HalfDayAssignment),
		assignmentsByID: make(map[uuid.UUID]*entity.HalfDayAssignment),
		drafts:          make(map[uuid.UUID]*entity.ScheduleDraft),
		alerts:          make(map[uuid.UUID]*entity.ConflictAlert),
		swaps:           make(map[uuid.UUID]*entity.SwapRecord),
	}
}

// BeginTx returns a transaction view. The in-memory store applies writes
// immediately; Commit and Rollback are accepted for interface compatibility
// but rollback does not undo prior writes.
func (d *Database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	return &transaction{db: d}, nil
}

// Close releases nothing for the in-memory store.
func (d *Database) Close() error { return nil }

// Health always succeeds.
func (d *Database) Health(ctx context.Context) error { return nil }

// PersonRepository returns the person repository.
func (d *Database) PersonRepository() repository.PersonRepository { return &personRepo{db: d} }

// ActivityRepository returns the activity repository.
func (d *Database) ActivityRepository() repository.ActivityRepository { return &activityRepo{db: d} }

// RotationTemplateRepository returns the rotation template repository.
func (d *Database) RotationTemplateRepository() repository.RotationTemplateRepository {
	return &templateRepo{db: d}
}

// AssignmentRepository returns the half-day assignment repository.
func (d *Database) AssignmentRepository() repository.AssignmentRepository {
	return &assignmentRepo{db: d}
}

// PreloadRepository returns the preload input repository.
func (d *Database) PreloadRepository() repository.PreloadRepository { return &preloadRepo{db: d} }

// DraftRepository returns the draft repository.
func (d *Database) DraftRepository() repository.DraftRepository { return &draftRepo{db: d} }

// ConflictAlertRepository returns the conflict alert repository.
func (d *Database) ConflictAlertRepository() repository.ConflictAlertRepository {
	return &alertRepo{db: d}
}

// SwapRepository returns the swap record repository.
func (d *Database) SwapRepository() repository.SwapRepository { return &swapRepo{db: d} }

// AuditLogRepository returns the audit log repository.
func (d *Database) AuditLogRepository() repository.AuditLogRepository { return &auditRepo{db: d} }

// transaction is a pass-through view over the same store.
type transaction struct {
	db *Database
}

func (t *transaction) Commit() error   { return nil }
func (t *transaction) Rollback() error { return nil }

func (t *transaction) Savepoint(ctx context.Context, name string) error           { return nil }
func (t *transaction) RollbackToSavepoint(ctx context.Context, name string) error { return nil }
func (t *transaction) ReleaseSavepoint(ctx context.Context, name string) error    { return nil }

func (t *transaction) PersonRepository() repository.PersonRepository { return t.db.PersonRepository() }
func (t *transaction) ActivityRepository() repository.ActivityRepository {
	return t.db.ActivityRepository()
}
func (t *transaction) RotationTemplateRepository() repository.RotationTemplateRepository {
	return t.db.RotationTemplateRepository()
}
func (t *transaction) AssignmentRepository() repository.AssignmentRepository {
	return t.db.AssignmentRepository()
}
func (t *transaction) PreloadRepository() repository.PreloadRepository {
	return t.db.PreloadRepository()
}
func (t *transaction) DraftRepository() repository.DraftRepository { return t.db.DraftRepository() }
func (t *transaction) ConflictAlertRepository() repository.ConflictAlertRepository {
	return t.db.ConflictAlertRepository()
}
func (t *transaction) SwapRepository() repository.SwapRepository { return t.db.SwapRepository() }
func (t *transaction) AuditLogRepository() repository.AuditLogRepository {
	return t.db.AuditLogRepository()
}
