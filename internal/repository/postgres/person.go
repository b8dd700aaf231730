package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// PersonRepository implements repository.PersonRepository for PostgreSQL.
type PersonRepository struct {
	q queryer
}

const personColumns = `id, name, email, kind, pgy_level, specialty_tags, has_procedure_credential,
	admin_type, certifications, active, created_at, updated_at, deleted_at`

// Create creates a new person.
func (r *PersonRepository) Create(ctx context.Context, p *entity.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	certs, err := json.Marshal(p.Certifications)
	if err != nil {
		return fmt.Errorf("failed to marshal certifications: %w", err)
	}

	query := `
		INSERT INTO persons (id, name, email, kind, pgy_level, specialty_tags, has_procedure_credential,
		                     admin_type, certifications, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`

	_, err = r.q.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Email,
		string(p.Kind),
		p.PGYLevel,
		pq.Array(p.SpecialtyTags),
		p.HasProcedureCredential,
		p.AdminType,
		certs,
		p.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

// GetByID retrieves a person by ID.
func (r *PersonRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1 AND deleted_at IS NULL`

	p, err := scanPerson(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Person", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// GetAll retrieves every active person, ordered by name.
func (r *PersonRepository) GetAll(ctx context.Context) ([]*entity.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE deleted_at IS NULL ORDER BY name ASC`
	return r.queryPersons(ctx, query)
}

// GetByKind retrieves people of one kind, ordered by name.
func (r *PersonRepository) GetByKind(ctx context.Context, kind entity.PersonKind) ([]*entity.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE kind = $1 AND deleted_at IS NULL ORDER BY name ASC`
	return r.queryPersons(ctx, query, string(kind))
}

// Count returns the count of active people.
func (r *PersonRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count persons: %w", err)
	}
	return count, nil
}

func (r *PersonRepository) queryPersons(ctx context.Context, query string, args ...interface{}) ([]*entity.Person, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	var persons []*entity.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating persons: %w", err)
	}
	return persons, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row rowScanner) (*entity.Person, error) {
	p := &entity.Person{}
	var certs []byte
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		(*string)(&p.Kind),
		&p.PGYLevel,
		pq.Array(&p.SpecialtyTags),
		&p.HasProcedureCredential,
		&p.AdminType,
		&certs,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(certs) > 0 {
		if err := json.Unmarshal(certs, &p.Certifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal certifications: %w", err)
		}
	}
	return p, nil
}
