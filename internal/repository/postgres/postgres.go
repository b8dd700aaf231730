// Package postgres provides the PostgreSQL implementation of
// repository.Database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/rotamed/scheduler/internal/repository"
)

// queryer abstracts *sql.DB and *sql.Tx so repositories work inside and
// outside transactions.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB wraps a SQL database connection for all PostgreSQL operations.
type DB struct {
	*sql.DB
}

// New creates a new PostgreSQL database connection.
func New(connString string) (*DB, error) {
	sqldb, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqldb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{sqldb}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health checks database connectivity.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// BeginTx starts a read-committed transaction; source monotonicity plus the
// uniqueness key make read committed sufficient for writers.
func (db *DB) BeginTx(ctx context.Context) (repository.Transaction, error) {
	tx, err := db.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &transaction{tx: tx}, nil
}

// PersonRepository returns the person repository.
func (db *DB) PersonRepository() repository.PersonRepository {
	return &PersonRepository{q: db.DB}
}

// ActivityRepository returns the activity repository.
func (db *DB) ActivityRepository() repository.ActivityRepository {
	return &ActivityRepository{q: db.DB}
}

// RotationTemplateRepository returns the rotation template repository.
func (db *DB) RotationTemplateRepository() repository.RotationTemplateRepository {
	return &RotationTemplateRepository{q: db.DB}
}

// AssignmentRepository returns the half-day assignment repository.
func (db *DB) AssignmentRepository() repository.AssignmentRepository {
	return &AssignmentRepository{q: db.DB}
}

// PreloadRepository returns the preload input repository.
func (db *DB) PreloadRepository() repository.PreloadRepository {
	return &PreloadRepository{q: db.DB}
}

// DraftRepository returns the draft repository.
func (db *DB) DraftRepository() repository.DraftRepository {
	return &DraftRepository{q: db.DB}
}

// ConflictAlertRepository returns the conflict alert repository.
func (db *DB) ConflictAlertRepository() repository.ConflictAlertRepository {
	return &ConflictAlertRepository{q: db.DB}
}

// SwapRepository returns the swap record repository.
func (db *DB) SwapRepository() repository.SwapRepository {
	return &SwapRepository{q: db.DB}
}

// AuditLogRepository returns the audit log repository.
func (db *DB) AuditLogRepository() repository.AuditLogRepository {
	return &AuditLogRepository{q: db.DB}
}

// transaction wraps *sql.Tx with savepoint support.
type transaction struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *transaction) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *transaction) Rollback() error { return t.tx.Rollback() }

// Savepoint establishes a named savepoint. Names come from engine code, not
// user input, so identifier interpolation is safe.
func (t *transaction) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

// RollbackToSavepoint rewinds the transaction to a named savepoint.
func (t *transaction) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

// ReleaseSavepoint discards a named savepoint.
func (t *transaction) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+pq.QuoteIdentifier(name))
	return err
}

func (t *transaction) PersonRepository() repository.PersonRepository {
	return &PersonRepository{q: t.tx}
}

func (t *transaction) ActivityRepository() repository.ActivityRepository {
	return &ActivityRepository{q: t.tx}
}

func (t *transaction) RotationTemplateRepository() repository.RotationTemplateRepository {
	return &RotationTemplateRepository{q: t.tx}
}

func (t *transaction) AssignmentRepository() repository.AssignmentRepository {
	return &AssignmentRepository{q: t.tx, sp: t}
}

func (t *transaction) PreloadRepository() repository.PreloadRepository {
	return &PreloadRepository{q: t.tx}
}

func (t *transaction) DraftRepository() repository.DraftRepository {
	return &DraftRepository{q: t.tx, inTx: true}
}

func (t *transaction) ConflictAlertRepository() repository.ConflictAlertRepository {
	return &ConflictAlertRepository{q: t.tx}
}

func (t *transaction) SwapRepository() repository.SwapRepository {
	return &SwapRepository{q: t.tx}
}

func (t *transaction) AuditLogRepository() repository.AuditLogRepository {
	return &AuditLogRepository{q: t.tx}
}

// savepointer is implemented by transactions; repositories that recover
// from uniqueness collisions use it to keep the session usable.
type savepointer interface {
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
}

// isUniqueViolation reports whether err is a PostgreSQL unique-key
// violation (class 23505).
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
