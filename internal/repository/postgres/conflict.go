package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// ConflictAlertRepository implements repository.ConflictAlertRepository for
// PostgreSQL.
type ConflictAlertRepository struct {
	q queryer
}

const alertColumns = `id, person_id, fmit_week_start, conflict_type, severity, status, description,
	leave_id, swap_id, resolved_at, resolved_by_id, resolution_notes, created_at, updated_at`

// Create creates a new conflict alert.
func (r *ConflictAlertRepository) Create(ctx context.Context, a *entity.ConflictAlert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO conflict_alerts (id, person_id, fmit_week_start, conflict_type, severity, status,
		                             description, leave_id, swap_id, resolution_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.PersonID,
		a.FMITWeekStart,
		string(a.ConflictType),
		string(a.Severity),
		string(a.Status),
		a.Description,
		a.LeaveID,
		a.SwapID,
		a.ResolutionNotes,
	)
	if err != nil {
		return fmt.Errorf("failed to create conflict alert: %w", err)
	}
	return nil
}

// GetByID retrieves a conflict alert by ID.
func (r *ConflictAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ConflictAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM conflict_alerts WHERE id = $1`

	a, err := scanAlert(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "ConflictAlert", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict alert: %w", err)
	}
	return a, nil
}

// Update updates a conflict alert's mutable columns.
func (r *ConflictAlertRepository) Update(ctx context.Context, a *entity.ConflictAlert) error {
	query := `
		UPDATE conflict_alerts
		SET status = $2, swap_id = $3, resolved_at = $4, resolved_by_id = $5, resolution_notes = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		a.ID,
		string(a.Status),
		a.SwapID,
		a.ResolvedAt,
		a.ResolvedByID,
		a.ResolutionNotes,
	)
	if err != nil {
		return fmt.Errorf("failed to update conflict alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "ConflictAlert", ResourceID: a.ID.String()}
	}
	return nil
}

// ListOpenByWeek returns open alerts whose FMIT week starts on the given
// Monday.
func (r *ConflictAlertRepository) ListOpenByWeek(ctx context.Context, weekStart time.Time) ([]*entity.ConflictAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM conflict_alerts
		WHERE fmit_week_start = $1 AND status IN ('NEW', 'ACKNOWLEDGED')
		ORDER BY created_at ASC, id ASC`
	return r.queryAlerts(ctx, query, weekStart)
}

// ListOpenByPerson returns open alerts for one person.
func (r *ConflictAlertRepository) ListOpenByPerson(ctx context.Context, personID uuid.UUID) ([]*entity.ConflictAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM conflict_alerts
		WHERE person_id = $1 AND status IN ('NEW', 'ACKNOWLEDGED')
		ORDER BY created_at ASC, id ASC`
	return r.queryAlerts(ctx, query, personID)
}

// ListOpen returns all open alerts.
func (r *ConflictAlertRepository) ListOpen(ctx context.Context) ([]*entity.ConflictAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM conflict_alerts
		WHERE status IN ('NEW', 'ACKNOWLEDGED')
		ORDER BY created_at ASC, id ASC`
	return r.queryAlerts(ctx, query)
}

func (r *ConflictAlertRepository) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*entity.ConflictAlert, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflict alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*entity.ConflictAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflict alerts: %w", err)
	}
	return alerts, nil
}

func scanAlert(row rowScanner) (*entity.ConflictAlert, error) {
	a := &entity.ConflictAlert{}
	err := row.Scan(
		&a.ID,
		&a.PersonID,
		&a.FMITWeekStart,
		(*string)(&a.ConflictType),
		(*string)(&a.Severity),
		(*string)(&a.Status),
		&a.Description,
		&a.LeaveID,
		&a.SwapID,
		&a.ResolvedAt,
		&a.ResolvedByID,
		&a.ResolutionNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SwapRepository implements repository.SwapRepository for PostgreSQL.
type SwapRepository struct {
	q queryer
}

// Create creates a new swap record.
func (r *SwapRepository) Create(ctx context.Context, s *entity.SwapRecord) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	query := `
		INSERT INTO swap_records (id, source_person_id, source_week_start, target_person_id,
		                          target_week_start, swap_type, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		s.ID,
		s.SourcePersonID,
		s.SourceWeekStart,
		s.TargetPersonID,
		s.TargetWeekStart,
		string(s.SwapType),
		string(s.Status),
		s.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to create swap record: %w", err)
	}
	return nil
}

// GetByID retrieves a swap record by ID.
func (r *SwapRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.SwapRecord, error) {
	query := `
		SELECT id, source_person_id, source_week_start, target_person_id, target_week_start,
		       swap_type, status, reason, created_at, updated_at
		FROM swap_records
		WHERE id = $1
	`

	s := &entity.SwapRecord{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.SourcePersonID,
		&s.SourceWeekStart,
		&s.TargetPersonID,
		&s.TargetWeekStart,
		(*string)(&s.SwapType),
		(*string)(&s.Status),
		&s.Reason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "SwapRecord", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap record: %w", err)
	}
	return s, nil
}

// Update updates a swap record's status and reason.
func (r *SwapRepository) Update(ctx context.Context, s *entity.SwapRecord) error {
	query := `
		UPDATE swap_records
		SET status = $2, reason = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, s.ID, string(s.Status), s.Reason)
	if err != nil {
		return fmt.Errorf("failed to update swap record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "SwapRecord", ResourceID: s.ID.String()}
	}
	return nil
}

// AuditLogRepository implements repository.AuditLogRepository for PostgreSQL.
type AuditLogRepository struct {
	q queryer
}

// Create appends an audit log entry.
func (r *AuditLogRepository) Create(ctx context.Context, log *repository.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, action, resource, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query, log.ID, log.ActorID, log.Action, log.Resource, log.Details, log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent audit log entries.
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*repository.AuditLog, error) {
	query := `
		SELECT id, actor_id, action, resource, details, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*repository.AuditLog
	for rows.Next() {
		l := &repository.AuditLog{}
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.Resource, &l.Details, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return logs, nil
}
