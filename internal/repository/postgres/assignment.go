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

// AssignmentRepository implements repository.AssignmentRepository for
// PostgreSQL. The unique constraint on (person_id, date, half_day) backs
// the store's uniqueness invariant; source precedence is applied here so no
// caller can downgrade a row.
type AssignmentRepository struct {
	q  queryer
	sp savepointer // non-nil inside a transaction
}

const assignmentColumns = `id, person_id, date, half_day, activity_id, activity_code, activity_category,
	rotation_template_id, source, is_override, counts_toward_capacity, created_at, updated_at`

// UpsertWithSourcePolicy writes the assignment, applying source precedence
// against any existing row at the slot. A concurrent insert colliding on the
// uniqueness key is caught, the session rewound to a savepoint, and the
// surviving row re-read to decide an upgrade.
func (r *AssignmentRepository) UpsertWithSourcePolicy(ctx context.Context, a *entity.HalfDayAssignment) (repository.UpsertOutcome, error) {
	existing, err := r.GetBySlot(ctx, a.PersonID, a.Date, a.HalfDay)
	if err != nil && !repository.IsNotFound(err) {
		return "", err
	}

	if existing == nil {
		if r.sp != nil {
			if err := r.sp.Savepoint(ctx, "hda_upsert"); err != nil {
				return "", fmt.Errorf("failed to create savepoint: %w", err)
			}
		}
		insertErr := r.insert(ctx, a)
		if insertErr == nil {
			if r.sp != nil {
				if err := r.sp.ReleaseSavepoint(ctx, "hda_upsert"); err != nil {
					return "", fmt.Errorf("failed to release savepoint: %w", err)
				}
			}
			return repository.UpsertInserted, nil
		}
		if !isUniqueViolation(insertErr) {
			return "", insertErr
		}
		// Lost a race on the slot key. Rewind and fall through to the
		// overwrite decision against the row that won.
		if r.sp != nil {
			if err := r.sp.RollbackToSavepoint(ctx, "hda_upsert"); err != nil {
				return "", fmt.Errorf("failed to rollback to savepoint: %w", err)
			}
		}
		existing, err = r.GetBySlot(ctx, a.PersonID, a.Date, a.HalfDay)
		if err != nil {
			return "", fmt.Errorf("failed to re-read after collision: %w", err)
		}
	}

	decision := entity.DecideOverwrite(existing.Source, a.Source, existing.IsTimeOff(), a.IsTimeOff())
	if !decision.Allowed {
		a.ID = existing.ID
		return repository.UpsertSkipped, nil
	}

	query := `
		UPDATE half_day_assignments
		SET activity_id = $2, activity_code = $3, activity_category = $4, rotation_template_id = $5,
		    source = $6, is_override = is_override OR $7, counts_toward_capacity = $8, updated_at = NOW()
		WHERE id = $1
	`
	_, err = r.q.ExecContext(ctx, query,
		existing.ID,
		a.ActivityID,
		a.ActivityCode,
		string(a.ActivityCategory),
		a.RotationTemplateID,
		string(a.Source),
		decision.IsOverride,
		a.CountsTowardCapacity,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upgrade assignment: %w", err)
	}
	a.ID = existing.ID
	return repository.UpsertUpdated, nil
}

func (r *AssignmentRepository) insert(ctx context.Context, a *entity.HalfDayAssignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO half_day_assignments (id, person_id, date, half_day, activity_id, activity_code,
		                                  activity_category, rotation_template_id, source, is_override,
		                                  counts_toward_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.PersonID,
		a.Date,
		string(a.HalfDay),
		a.ActivityID,
		a.ActivityCode,
		string(a.ActivityCategory),
		a.RotationTemplateID,
		string(a.Source),
		a.IsOverride,
		a.CountsTowardCapacity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetBySlot retrieves the assignment at a (person, date, half_day) slot.
func (r *AssignmentRepository) GetBySlot(ctx context.Context, personID uuid.UUID, date time.Time, halfDay entity.HalfDay) (*entity.HalfDayAssignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM half_day_assignments
		WHERE person_id = $1 AND date = $2 AND half_day = $3`

	a, err := scanAssignment(r.q.QueryRowContext(ctx, query, personID, date, string(halfDay)))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{
			ResourceType: "HalfDayAssignment",
			ResourceID:   fmt.Sprintf("%s/%s/%s", personID, date.Format("2006-01-02"), halfDay),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// GetByPersonAndDateRange retrieves a person's assignments in a date range,
// ordered by (date, half_day).
func (r *AssignmentRepository) GetByPersonAndDateRange(ctx context.Context, personID uuid.UUID, start, end time.Time) ([]*entity.HalfDayAssignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM half_day_assignments
		WHERE person_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, half_day ASC`
	return r.queryAssignments(ctx, query, personID, start, end)
}

// GetByDateRange retrieves all assignments in a date range, ordered by
// (person, date, half_day).
func (r *AssignmentRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*entity.HalfDayAssignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM half_day_assignments
		WHERE date >= $1 AND date <= $2
		ORDER BY person_id ASC, date ASC, half_day ASC`
	return r.queryAssignments(ctx, query, start, end)
}

// Update updates an assignment by ID.
func (r *AssignmentRepository) Update(ctx context.Context, a *entity.HalfDayAssignment) error {
	query := `
		UPDATE half_day_assignments
		SET activity_id = $2, activity_code = $3, activity_category = $4, rotation_template_id = $5,
		    source = $6, is_override = $7, counts_toward_capacity = $8, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.ActivityID,
		a.ActivityCode,
		string(a.ActivityCategory),
		a.RotationTemplateID,
		string(a.Source),
		a.IsOverride,
		a.CountsTowardCapacity,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "HalfDayAssignment", ResourceID: a.ID.String()}
	}
	return nil
}

// DeleteByID removes the assignment with the given ID.
func (r *AssignmentRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM half_day_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "HalfDayAssignment", ResourceID: id.String()}
	}
	return nil
}

// DeleteBySlotAndSource deletes the row at the slot only when its source
// matches; returns false when no such row exists.
func (r *AssignmentRepository) DeleteBySlotAndSource(ctx context.Context, personID uuid.UUID, date time.Time, halfDay entity.HalfDay, source entity.AssignmentSource) (bool, error) {
	query := `
		DELETE FROM half_day_assignments
		WHERE person_id = $1 AND date = $2 AND half_day = $3 AND source = $4
	`
	result, err := r.q.ExecContext(ctx, query, personID, date, string(halfDay), string(source))
	if err != nil {
		return false, fmt.Errorf("failed to delete assignment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Count returns the count of live assignments.
func (r *AssignmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM half_day_assignments`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

func (r *AssignmentRepository) queryAssignments(ctx context.Context, query string, args ...interface{}) ([]*entity.HalfDayAssignment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.HalfDayAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}

func scanAssignment(row rowScanner) (*entity.HalfDayAssignment, error) {
	a := &entity.HalfDayAssignment{}
	err := row.Scan(
		&a.ID,
		&a.PersonID,
		&a.Date,
		(*string)(&a.HalfDay),
		&a.ActivityID,
		&a.ActivityCode,
		(*string)(&a.ActivityCategory),
		&a.RotationTemplateID,
		(*string)(&a.Source),
		&a.IsOverride,
		&a.CountsTowardCapacity,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
