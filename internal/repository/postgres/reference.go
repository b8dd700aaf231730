package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// ActivityRepository implements repository.ActivityRepository for PostgreSQL.
type ActivityRepository struct {
	q queryer
}

const activityColumns = `id, code, name, category, counts_toward_clinical_hours, counts_toward_capacity, created_at, updated_at`

// Create creates a new activity.
func (r *ActivityRepository) Create(ctx context.Context, a *entity.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO activities (id, code, name, category, counts_toward_clinical_hours, counts_toward_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.Code,
		a.Name,
		string(a.Category),
		a.CountsTowardClinicalHours,
		a.CountsTowardCapacity,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// GetByCode retrieves an activity by its code.
func (r *ActivityRepository) GetByCode(ctx context.Context, code string) (*entity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE code = $1`

	a := &entity.Activity{}
	err := r.q.QueryRowContext(ctx, query, code).Scan(
		&a.ID,
		&a.Code,
		&a.Name,
		(*string)(&a.Category),
		&a.CountsTowardClinicalHours,
		&a.CountsTowardCapacity,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Activity", ResourceID: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// GetAll retrieves every activity, ordered by code.
func (r *ActivityRepository) GetAll(ctx context.Context) ([]*entity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities ORDER BY code ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []*entity.Activity
	for rows.Next() {
		a := &entity.Activity{}
		err := rows.Scan(
			&a.ID,
			&a.Code,
			&a.Name,
			(*string)(&a.Category),
			&a.CountsTowardClinicalHours,
			&a.CountsTowardCapacity,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return activities, nil
}

// RotationTemplateRepository implements repository.RotationTemplateRepository
// for PostgreSQL. Weekly patterns are stored as a JSONB document; they are
// always read and written with their template.
type RotationTemplateRepository struct {
	q queryer
}

const templateColumns = `id, name, abbreviation, display_abbreviation, class, requires_procedure_credential,
	max_concurrent, secondary_template_id, includes_weekend_work, weekly_patterns, created_at, updated_at`

// Create creates a new rotation template.
func (r *RotationTemplateRepository) Create(ctx context.Context, t *entity.RotationTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	patterns, err := json.Marshal(t.WeeklyPatterns)
	if err != nil {
		return fmt.Errorf("failed to marshal weekly patterns: %w", err)
	}

	query := `
		INSERT INTO rotation_templates (id, name, abbreviation, display_abbreviation, class,
		                                requires_procedure_credential, max_concurrent, secondary_template_id,
		                                includes_weekend_work, weekly_patterns, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`

	_, err = r.q.ExecContext(ctx, query,
		t.ID,
		t.Name,
		t.Abbreviation,
		t.DisplayAbbreviation,
		string(t.Class),
		t.RequiresProcedureCredential,
		t.MaxConcurrent,
		t.SecondaryTemplateID,
		t.IncludesWeekendWork,
		patterns,
	)
	if err != nil {
		return fmt.Errorf("failed to create rotation template: %w", err)
	}
	return nil
}

// GetByID retrieves a rotation template by ID.
func (r *RotationTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.RotationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM rotation_templates WHERE id = $1`

	t, err := scanTemplate(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "RotationTemplate", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation template: %w", err)
	}
	return t, nil
}

// GetByAbbreviation retrieves a rotation template by its abbreviation.
func (r *RotationTemplateRepository) GetByAbbreviation(ctx context.Context, abbrev string) (*entity.RotationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM rotation_templates WHERE abbreviation = $1`

	t, err := scanTemplate(r.q.QueryRowContext(ctx, query, abbrev))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "RotationTemplate", ResourceID: abbrev}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation template: %w", err)
	}
	return t, nil
}

// GetAll retrieves every rotation template, ordered by abbreviation.
func (r *RotationTemplateRepository) GetAll(ctx context.Context) ([]*entity.RotationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM rotation_templates ORDER BY abbreviation ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation templates: %w", err)
	}
	defer rows.Close()

	var templates []*entity.RotationTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rotation template: %w", err)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rotation templates: %w", err)
	}
	return templates, nil
}

func scanTemplate(row rowScanner) (*entity.RotationTemplate, error) {
	t := &entity.RotationTemplate{}
	var patterns []byte
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Abbreviation,
		&t.DisplayAbbreviation,
		(*string)(&t.Class),
		&t.RequiresProcedureCredential,
		&t.MaxConcurrent,
		&t.SecondaryTemplateID,
		&t.IncludesWeekendWork,
		&patterns,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(patterns) > 0 {
		if err := json.Unmarshal(patterns, &t.WeeklyPatterns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weekly patterns: %w", err)
		}
	}
	return t, nil
}
