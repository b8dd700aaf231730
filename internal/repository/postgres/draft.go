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

// DraftRepository implements repository.DraftRepository for PostgreSQL.
// Publish and rollback hold a SELECT ... FOR UPDATE row lock on the draft
// for the whole operation, serializing concurrent publishers.
type DraftRepository struct {
	q    queryer
	inTx bool
}

const draftColumns = `id, start_date, end_date, block_number, status, source_type, created_by_id, notes,
	added_count, modified_count, deleted_count, flags_total, flags_acknowledged,
	created_at, updated_at, published_at, published_by_id,
	rollback_available, rollback_expires_at, rolled_back_at, rolled_back_by_id`

// Create creates a new draft.
func (r *DraftRepository) Create(ctx context.Context, d *entity.ScheduleDraft) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	query := `
		INSERT INTO schedule_drafts (id, start_date, end_date, block_number, status, source_type,
		                             created_by_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.StartDate,
		d.EndDate,
		d.BlockNumber,
		string(d.Status),
		string(d.SourceType),
		d.CreatedByID,
		d.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

// GetByID retrieves a draft by ID.
func (r *DraftRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM schedule_drafts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a draft by ID holding a row lock for the rest
// of the transaction. Outside a transaction this degrades to a plain read.
func (r *DraftRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.ScheduleDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM schedule_drafts WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}
	return r.getOne(ctx, query, id)
}

// GetActiveDraftByRange returns the DRAFT-status draft with the exact
// (start, end) pair, if one exists.
func (r *DraftRepository) GetActiveDraftByRange(ctx context.Context, start, end time.Time) (*entity.ScheduleDraft, error) {
	query := `SELECT ` + draftColumns + `
		FROM schedule_drafts
		WHERE status = $1 AND start_date = $2 AND end_date = $3
		ORDER BY created_at DESC
		LIMIT 1`
	d, err := r.getOne(ctx, query, string(entity.DraftStatusDraft), start, end)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &repository.NotFoundError{
				ResourceType: "ScheduleDraft",
				ResourceID:   start.Format("2006-01-02") + ".." + end.Format("2006-01-02"),
			}
		}
		return nil, err
	}
	return d, nil
}

// Update updates a draft's mutable columns.
func (r *DraftRepository) Update(ctx context.Context, d *entity.ScheduleDraft) error {
	query := `
		UPDATE schedule_drafts
		SET status = $2, notes = $3, added_count = $4, modified_count = $5, deleted_count = $6,
		    flags_total = $7, flags_acknowledged = $8, updated_at = NOW(),
		    published_at = $9, published_by_id = $10, rollback_available = $11,
		    rollback_expires_at = $12, rolled_back_at = $13, rolled_back_by_id = $14
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		d.ID,
		string(d.Status),
		d.Notes,
		d.AddedCount,
		d.ModifiedCount,
		d.DeletedCount,
		d.FlagsTotal,
		d.FlagsAcknowledged,
		d.PublishedAt,
		d.PublishedByID,
		d.RollbackAvailable,
		d.RollbackExpiresAt,
		d.RolledBackAt,
		d.RolledBackByID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "ScheduleDraft", ResourceID: d.ID.String()}
	}
	return nil
}

// List returns the most recently created drafts.
func (r *DraftRepository) List(ctx context.Context, limit int) ([]*entity.ScheduleDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM schedule_drafts ORDER BY created_at DESC LIMIT $1`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*entity.ScheduleDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}
	return drafts, nil
}

func (r *DraftRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.ScheduleDraft, error) {
	d, err := scanDraft(r.q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "ScheduleDraft", ResourceID: fmt.Sprint(args[0])}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

func scanDraft(row rowScanner) (*entity.ScheduleDraft, error) {
	d := &entity.ScheduleDraft{}
	err := row.Scan(
		&d.ID,
		&d.StartDate,
		&d.EndDate,
		&d.BlockNumber,
		(*string)(&d.Status),
		(*string)(&d.SourceType),
		&d.CreatedByID,
		&d.Notes,
		&d.AddedCount,
		&d.ModifiedCount,
		&d.DeletedCount,
		&d.FlagsTotal,
		&d.FlagsAcknowledged,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PublishedAt,
		&d.PublishedByID,
		&d.RollbackAvailable,
		&d.RollbackExpiresAt,
		&d.RolledBackAt,
		&d.RolledBackByID,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

const draftAssignmentColumns = `id, draft_id, person_id, date, time_of_day, activity_code,
	rotation_template_id, change_type, existing_assignment_id, created_assignment_id, created_at, updated_at`

// CreateAssignment appends a draft assignment. The unique constraint on
// (draft_id, person_id, date, time_of_day) surfaces duplicates as
// ConflictError.
func (r *DraftRepository) CreateAssignment(ctx context.Context, da *entity.DraftAssignment) error {
	if da.ID == uuid.Nil {
		da.ID = uuid.New()
	}

	query := `
		INSERT INTO draft_assignments (id, draft_id, person_id, date, time_of_day, activity_code,
		                               rotation_template_id, change_type, existing_assignment_id,
		                               created_assignment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		da.ID,
		da.DraftID,
		da.PersonID,
		da.Date,
		string(da.TimeOfDay),
		da.ActivityCode,
		da.RotationTemplateID,
		string(da.ChangeType),
		da.ExistingAssignmentID,
		da.CreatedAssignmentID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &repository.ConflictError{
				ResourceType: "DraftAssignment",
				Key:          fmt.Sprintf("%s/%s/%s", da.PersonID, da.Date.Format("2006-01-02"), da.TimeOfDay),
			}
		}
		return fmt.Errorf("failed to create draft assignment: %w", err)
	}
	return nil
}

// UpdateAssignment updates a draft assignment by ID.
func (r *DraftRepository) UpdateAssignment(ctx context.Context, da *entity.DraftAssignment) error {
	query := `
		UPDATE draft_assignments
		SET activity_code = $2, rotation_template_id = $3, change_type = $4,
		    existing_assignment_id = $5, created_assignment_id = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		da.ID,
		da.ActivityCode,
		da.RotationTemplateID,
		string(da.ChangeType),
		da.ExistingAssignmentID,
		da.CreatedAssignmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft assignment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "DraftAssignment", ResourceID: da.ID.String()}
	}
	return nil
}

// GetAssignmentBySlot finds the draft assignment at a (person, date,
// time_of_day) slot within a draft.
func (r *DraftRepository) GetAssignmentBySlot(ctx context.Context, draftID, personID uuid.UUID, date time.Time, tod entity.TimeOfDay) (*entity.DraftAssignment, error) {
	query := `SELECT ` + draftAssignmentColumns + `
		FROM draft_assignments
		WHERE draft_id = $1 AND person_id = $2 AND date = $3 AND time_of_day = $4`

	da, err := scanDraftAssignment(r.q.QueryRowContext(ctx, query, draftID, personID, date, string(tod)))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{
			ResourceType: "DraftAssignment",
			ResourceID:   fmt.Sprintf("%s/%s/%s", personID, date.Format("2006-01-02"), tod),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft assignment: %w", err)
	}
	return da, nil
}

// ListAssignments returns the draft's assignments in stable insertion order.
func (r *DraftRepository) ListAssignments(ctx context.Context, draftID uuid.UUID) ([]*entity.DraftAssignment, error) {
	query := `SELECT ` + draftAssignmentColumns + `
		FROM draft_assignments
		WHERE draft_id = $1
		ORDER BY seq ASC`

	rows, err := r.q.QueryContext(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.DraftAssignment
	for rows.Next() {
		da, err := scanDraftAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft assignment: %w", err)
		}
		assignments = append(assignments, da)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draft assignments: %w", err)
	}
	return assignments, nil
}

func scanDraftAssignment(row rowScanner) (*entity.DraftAssignment, error) {
	da := &entity.DraftAssignment{}
	err := row.Scan(
		&da.ID,
		&da.DraftID,
		&da.PersonID,
		&da.Date,
		(*string)(&da.TimeOfDay),
		&da.ActivityCode,
		&da.RotationTemplateID,
		(*string)(&da.ChangeType),
		&da.ExistingAssignmentID,
		&da.CreatedAssignmentID,
		&da.CreatedAt,
		&da.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return da, nil
}

const draftFlagColumns = `id, draft_id, flag_type, severity, message, person_id, date,
	acknowledged, acknowledged_at, acknowledged_by_id, resolution_note, created_at`

// CreateFlag appends a draft flag.
func (r *DraftRepository) CreateFlag(ctx context.Context, f *entity.DraftFlag) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	query := `
		INSERT INTO draft_flags (id, draft_id, flag_type, severity, message, person_id, date,
		                         acknowledged, acknowledged_at, acknowledged_by_id, resolution_note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`

	_, err := r.q.ExecContext(ctx, query,
		f.ID,
		f.DraftID,
		string(f.FlagType),
		string(f.Severity),
		f.Message,
		f.PersonID,
		f.Date,
		f.Acknowledged,
		f.AcknowledgedAt,
		f.AcknowledgedByID,
		f.ResolutionNote,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft flag: %w", err)
	}
	return nil
}

// UpdateFlag updates a draft flag by ID.
func (r *DraftRepository) UpdateFlag(ctx context.Context, f *entity.DraftFlag) error {
	query := `
		UPDATE draft_flags
		SET acknowledged = $2, acknowledged_at = $3, acknowledged_by_id = $4, resolution_note = $5
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, f.ID, f.Acknowledged, f.AcknowledgedAt, f.AcknowledgedByID, f.ResolutionNote)
	if err != nil {
		return fmt.Errorf("failed to update draft flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "DraftFlag", ResourceID: f.ID.String()}
	}
	return nil
}

// GetFlag retrieves a flag by ID.
func (r *DraftRepository) GetFlag(ctx context.Context, id uuid.UUID) (*entity.DraftFlag, error) {
	query := `SELECT ` + draftFlagColumns + ` FROM draft_flags WHERE id = $1`

	f, err := scanDraftFlag(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "DraftFlag", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft flag: %w", err)
	}
	return f, nil
}

// ListFlags returns all flags for a draft in creation order.
func (r *DraftRepository) ListFlags(ctx context.Context, draftID uuid.UUID) ([]*entity.DraftFlag, error) {
	query := `SELECT ` + draftFlagColumns + ` FROM draft_flags WHERE draft_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.q.QueryContext(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft flags: %w", err)
	}
	defer rows.Close()

	var flags []*entity.DraftFlag
	for rows.Next() {
		f, err := scanDraftFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft flag: %w", err)
		}
		flags = append(flags, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draft flags: %w", err)
	}
	return flags, nil
}

func scanDraftFlag(row rowScanner) (*entity.DraftFlag, error) {
	f := &entity.DraftFlag{}
	err := row.Scan(
		&f.ID,
		&f.DraftID,
		(*string)(&f.FlagType),
		(*string)(&f.Severity),
		&f.Message,
		&f.PersonID,
		&f.Date,
		&f.Acknowledged,
		&f.AcknowledgedAt,
		&f.AcknowledgedByID,
		&f.ResolutionNote,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}
