package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// personRepo implements repository.PersonRepository in memory.
type personRepo struct {
	db *Database
}

// Create stores a new person.
func (r *personRepo) Create(ctx context.Context, p *entity.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := *p
	r.db.persons[p.ID] = &row
	return nil
}

// GetByID retrieves a person by ID.
func (r *personRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Person, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.persons[id]
	if !ok || p.IsDeleted() {
		return nil, &repository.NotFoundError{ResourceType: "Person", ResourceID: id.String()}
	}
	row := *p
	return &row, nil
}

// GetAll retrieves every active person, ordered by name.
func (r *personRepo) GetAll(ctx context.Context) ([]*entity.Person, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.Person
	for _, p := range r.db.persons {
		if !p.IsDeleted() {
			row := *p
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetByKind retrieves people of one kind, ordered by name.
func (r *personRepo) GetByKind(ctx context.Context, kind entity.PersonKind) ([]*entity.Person, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*entity.Person
	for _, p := range all {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out, nil
}

// Count returns the number of active people.
func (r *personRepo) Count(ctx context.Context) (int64, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

// activityRepo implements repository.ActivityRepository in memory.
type activityRepo struct {
	db *Database
}

// Create stores a new activity.
func (r *activityRepo) Create(ctx context.Context, a *entity.Activity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := *a
	r.db.activities[a.Code] = &row
	return nil
}

// GetByCode retrieves an activity by its code.
func (r *activityRepo) GetByCode(ctx context.Context, code string) (*entity.Activity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.activities[code]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Activity", ResourceID: code}
	}
	row := *a
	return &row, nil
}

// GetAll retrieves every activity, ordered by code.
func (r *activityRepo) GetAll(ctx context.Context) ([]*entity.Activity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.Activity
	for _, a := range r.db.activities {
		row := *a
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// templateRepo implements repository.RotationTemplateRepository in memory.
type templateRepo struct {
	db *Database
}

// Create stores a new rotation template.
func (r *templateRepo) Create(ctx context.Context, t *entity.RotationTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	row := *t
	r.db.templates[t.ID] = &row
	return nil
}

// GetByID retrieves a rotation template by ID.
func (r *templateRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.RotationTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.templates[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "RotationTemplate", ResourceID: id.String()}
	}
	row := *t
	return &row, nil
}

// GetByAbbreviation retrieves a rotation template by its abbreviation.
func (r *templateRepo) GetByAbbreviation(ctx context.Context, abbrev string) (*entity.RotationTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, t := range r.db.templates {
		if t.Abbreviation == abbrev {
			row := *t
			return &row, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "RotationTemplate", ResourceID: abbrev}
}

// GetAll retrieves every rotation template, ordered by abbreviation.
func (r *templateRepo) GetAll(ctx context.Context) ([]*entity.RotationTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.RotationTemplate
	for _, t := range r.db.templates {
		row := *t
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	return out, nil
}
