package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// PreloadRepository implements repository.PreloadRepository for PostgreSQL.
// These tables are declarative inputs owned by importers; the engine only
// reads them during a run.
type PreloadRepository struct {
	q queryer
}

// ListAbsences returns absences overlapping [start, end], ordered by person
// then start date.
func (r *PreloadRepository) ListAbsences(ctx context.Context, start, end time.Time) ([]*entity.Absence, error) {
	query := `
		SELECT id, person_id, start_date, end_date, absence_type, approved, should_block_assignment
		FROM absences
		WHERE end_date >= $1 AND start_date <= $2
		ORDER BY person_id ASC, start_date ASC
	`

	rows, err := r.q.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var absences []*entity.Absence
	for rows.Next() {
		a := &entity.Absence{}
		err := rows.Scan(&a.ID, &a.PersonID, &a.StartDate, &a.EndDate, (*string)(&a.AbsenceType), &a.Approved, &a.ShouldBlockAssignment)
		if err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		absences = append(absences, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating absences: %w", err)
	}
	return absences, nil
}

// ListInstitutionalEvents returns active events overlapping [start, end].
func (r *PreloadRepository) ListInstitutionalEvents(ctx context.Context, start, end time.Time) ([]*entity.InstitutionalEvent, error) {
	query := `
		SELECT id, name, start_date, end_date, scope, half_day, applies_to_inpatient, activity_code, active
		FROM institutional_events
		WHERE active AND end_date >= $1 AND start_date <= $2
		ORDER BY start_date ASC
	`

	rows, err := r.q.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query institutional events: %w", err)
	}
	defer rows.Close()

	var events []*entity.InstitutionalEvent
	for rows.Next() {
		e := &entity.InstitutionalEvent{}
		var halfDay *string
		err := rows.Scan(&e.ID, &e.Name, &e.StartDate, &e.EndDate, (*string)(&e.Scope), &halfDay, &e.AppliesToInpatient, &e.ActivityCode, &e.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan institutional event: %w", err)
		}
		if halfDay != nil {
			hd := entity.HalfDay(*halfDay)
			e.HalfDay = &hd
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating institutional events: %w", err)
	}
	return events, nil
}

// ListInpatientPreloads returns inpatient stints overlapping [start, end].
func (r *PreloadRepository) ListInpatientPreloads(ctx context.Context, start, end time.Time) ([]*entity.InpatientPreload, error) {
	query := `
		SELECT id, person_id, start_date, end_date, rotation_type, includes_post_call
		FROM inpatient_preloads
		WHERE end_date >= $1 AND start_date <= $2
		ORDER BY person_id ASC, start_date ASC
	`

	rows, err := r.q.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query inpatient preloads: %w", err)
	}
	defer rows.Close()

	var preloads []*entity.InpatientPreload
	for rows.Next() {
		p := &entity.InpatientPreload{}
		err := rows.Scan(&p.ID, &p.PersonID, &p.StartDate, &p.EndDate, &p.RotationType, &p.IncludesPostCall)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inpatient preload: %w", err)
		}
		preloads = append(preloads, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inpatient preloads: %w", err)
	}
	return preloads, nil
}

// ListCallAssignments returns faculty call nights inside [start, end].
func (r *PreloadRepository) ListCallAssignments(ctx context.Context, start, end time.Time) ([]*entity.CallAssignment, error) {
	query := `
		SELECT id, person_id, date
		FROM call_assignments
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, person_id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query call assignments: %w", err)
	}
	defer rows.Close()

	var calls []*entity.CallAssignment
	for rows.Next() {
		c := &entity.CallAssignment{}
		if err := rows.Scan(&c.ID, &c.PersonID, &c.Date); err != nil {
			return nil, fmt.Errorf("failed to scan call assignment: %w", err)
		}
		calls = append(calls, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call assignments: %w", err)
	}
	return calls, nil
}

// ListResidentCallPreloads returns resident call nights inside [start, end].
func (r *PreloadRepository) ListResidentCallPreloads(ctx context.Context, start, end time.Time) ([]*entity.ResidentCallPreload, error) {
	query := `
		SELECT id, person_id, date
		FROM resident_call_preloads
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, person_id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query resident call preloads: %w", err)
	}
	defer rows.Close()

	var calls []*entity.ResidentCallPreload
	for rows.Next() {
		c := &entity.ResidentCallPreload{}
		if err := rows.Scan(&c.ID, &c.PersonID, &c.Date); err != nil {
			return nil, fmt.Errorf("failed to scan resident call preload: %w", err)
		}
		calls = append(calls, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resident call preloads: %w", err)
	}
	return calls, nil
}

// ListBlockAssignments returns block assignments for one macro-block.
func (r *PreloadRepository) ListBlockAssignments(ctx context.Context, blockNumber, academicYear int) ([]*entity.BlockAssignment, error) {
	query := `
		SELECT id, person_id, block_number, academic_year, primary_template_id, secondary_template_id
		FROM block_assignments
		WHERE block_number = $1 AND academic_year = $2
		ORDER BY person_id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, blockNumber, academicYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query block assignments: %w", err)
	}
	defer rows.Close()

	var assigns []*entity.BlockAssignment
	for rows.Next() {
		b := &entity.BlockAssignment{}
		err := rows.Scan(&b.ID, &b.PersonID, &b.BlockNumber, &b.AcademicYear, &b.PrimaryTemplateID, &b.SecondaryTemplateID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block assignment: %w", err)
		}
		assigns = append(assigns, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block assignments: %w", err)
	}
	return assigns, nil
}

// CreateAbsence stores an absence record.
func (r *PreloadRepository) CreateAbsence(ctx context.Context, a *entity.Absence) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO absences (id, person_id, start_date, end_date, absence_type, approved, should_block_assignment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query, a.ID, a.PersonID, a.StartDate, a.EndDate, string(a.AbsenceType), a.Approved, a.ShouldBlockAssignment)
	if err != nil {
		return fmt.Errorf("failed to create absence: %w", err)
	}
	return nil
}

// CreateInstitutionalEvent stores an institutional event.
func (r *PreloadRepository) CreateInstitutionalEvent(ctx context.Context, e *entity.InstitutionalEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var halfDay *string
	if e.HalfDay != nil {
		s := string(*e.HalfDay)
		halfDay = &s
	}
	query := `
		INSERT INTO institutional_events (id, name, start_date, end_date, scope, half_day, applies_to_inpatient, activity_code, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query, e.ID, e.Name, e.StartDate, e.EndDate, string(e.Scope), halfDay, e.AppliesToInpatient, e.ActivityCode, e.Active)
	if err != nil {
		return fmt.Errorf("failed to create institutional event: %w", err)
	}
	return nil
}

// CreateInpatientPreload stores an inpatient stint.
func (r *PreloadRepository) CreateInpatientPreload(ctx context.Context, p *entity.InpatientPreload) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO inpatient_preloads (id, person_id, start_date, end_date, rotation_type, includes_post_call)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query, p.ID, p.PersonID, p.StartDate, p.EndDate, p.RotationType, p.IncludesPostCall)
	if err != nil {
		return fmt.Errorf("failed to create inpatient preload: %w", err)
	}
	return nil
}

// CreateCallAssignment stores a faculty call night.
func (r *PreloadRepository) CreateCallAssignment(ctx context.Context, c *entity.CallAssignment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.q.ExecContext(ctx, `INSERT INTO call_assignments (id, person_id, date) VALUES ($1, $2, $3)`, c.ID, c.PersonID, c.Date)
	if err != nil {
		return fmt.Errorf("failed to create call assignment: %w", err)
	}
	return nil
}

// CreateResidentCallPreload stores a resident call night.
func (r *PreloadRepository) CreateResidentCallPreload(ctx context.Context, c *entity.ResidentCallPreload) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.q.ExecContext(ctx, `INSERT INTO resident_call_preloads (id, person_id, date) VALUES ($1, $2, $3)`, c.ID, c.PersonID, c.Date)
	if err != nil {
		return fmt.Errorf("failed to create resident call preload: %w", err)
	}
	return nil
}

// CreateBlockAssignment stores a block assignment.
func (r *PreloadRepository) CreateBlockAssignment(ctx context.Context, b *entity.BlockAssignment) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	query := `
		INSERT INTO block_assignments (id, person_id, block_number, academic_year, primary_template_id, secondary_template_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query, b.ID, b.PersonID, b.BlockNumber, b.AcademicYear, b.PrimaryTemplateID, b.SecondaryTemplateID)
	if err != nil {
		return fmt.Errorf("failed to create block assignment: %w", err)
	}
	return nil
}
