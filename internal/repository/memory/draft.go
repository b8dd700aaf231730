package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// draftRepo implements repository.DraftRepository in memory.
type draftRepo struct {
	db *Database
}

// Create stores a new draft.
func (r *draftRepo) Create(ctx context.Context, d *entity.ScheduleDraft) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := *d
	r.db.drafts[d.ID] = &row
	return nil
}

// GetByID retrieves a draft by ID.
func (r *draftRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleDraft, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.drafts[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "ScheduleDraft", ResourceID: id.String()}
	}
	row := *d
	return &row, nil
}

// GetByIDForUpdate retrieves a draft by ID. The in-memory store serializes
// writers through its mutex, so no additional lock is taken.
func (r *draftRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.ScheduleDraft, error) {
	return r.GetByID(ctx, id)
}

// GetActiveDraftByRange returns the DRAFT-status draft with the exact
// (start, end) pair, if one exists.
func (r *draftRepo) GetActiveDraftByRange(ctx context.Context, start, end time.Time) (*entity.ScheduleDraft, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, d := range r.db.drafts {
		if d.Status == entity.DraftStatusDraft && entity.DateEqual(d.StartDate, start) && entity.DateEqual(d.EndDate, end) {
			row := *d
			return &row, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "ScheduleDraft", ResourceID: start.Format("2006-01-02") + ".." + end.Format("2006-01-02")}
}

// Update replaces the stored draft row.
func (r *draftRepo) Update(ctx context.Context, d *entity.ScheduleDraft) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.drafts[d.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "ScheduleDraft", ResourceID: d.ID.String()}
	}
	row := *d
	r.db.drafts[d.ID] = &row
	return nil
}

// List returns the most recently created drafts.
func (r *draftRepo) List(ctx context.Context, limit int) ([]*entity.ScheduleDraft, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.ScheduleDraft
	for _, d := range r.db.drafts {
		row := *d
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateAssignment appends a draft assignment, preserving insertion order.
func (r *draftRepo) CreateAssignment(ctx context.Context, da *entity.DraftAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if da.ID == uuid.Nil {
		da.ID = uuid.New()
	}
	for _, existing := range r.db.draftAssignments {
		if existing.DraftID == da.DraftID && existing.PersonID == da.PersonID &&
			entity.DateEqual(existing.Date, da.Date) && existing.TimeOfDay == da.TimeOfDay {
			return &repository.ConflictError{ResourceType: "DraftAssignment", Key: da.PersonID.String() + "/" + da.Date.Format("2006-01-02")}
		}
	}
	row := *da
	r.db.draftAssignments = append(r.db.draftAssignments, &row)
	return nil
}

// UpdateAssignment replaces the stored draft assignment row.
func (r *draftRepo) UpdateAssignment(ctx context.Context, da *entity.DraftAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, existing := range r.db.draftAssignments {
		if existing.ID == da.ID {
			row := *da
			row.UpdatedAt = time.Now().UTC()
			r.db.draftAssignments[i] = &row
			return nil
		}
	}
	return &repository.NotFoundError{ResourceType: "DraftAssignment", ResourceID: da.ID.String()}
}

// GetAssignmentBySlot finds the draft assignment at a (person, date,
// time_of_day) slot within a draft.
func (r *draftRepo) GetAssignmentBySlot(ctx context.Context, draftID, personID uuid.UUID, date time.Time, tod entity.TimeOfDay) (*entity.DraftAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, da := range r.db.draftAssignments {
		if da.DraftID == draftID && da.PersonID == personID && entity.DateEqual(da.Date, date) && da.TimeOfDay == tod {
			row := *da
			return &row, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "DraftAssignment", ResourceID: personID.String() + "/" + date.Format("2006-01-02")}
}

// ListAssignments returns the draft's assignments in stable insertion order.
func (r *draftRepo) ListAssignments(ctx context.Context, draftID uuid.UUID) ([]*entity.DraftAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.DraftAssignment
	for _, da := range r.db.draftAssignments {
		if da.DraftID == draftID {
			row := *da
			out = append(out, &row)
		}
	}
	return out, nil
}

// CreateFlag appends a draft flag.
func (r *draftRepo) CreateFlag(ctx context.Context, f *entity.DraftFlag) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	row := *f
	r.db.draftFlags = append(r.db.draftFlags, &row)
	return nil
}

// UpdateFlag replaces the stored flag row.
func (r *draftRepo) UpdateFlag(ctx context.Context, f *entity.DraftFlag) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, existing := range r.db.draftFlags {
		if existing.ID == f.ID {
			row := *f
			r.db.draftFlags[i] = &row
			return nil
		}
	}
	return &repository.NotFoundError{ResourceType: "DraftFlag", ResourceID: f.ID.String()}
}

// GetFlag retrieves a flag by ID.
func (r *draftRepo) GetFlag(ctx context.Context, id uuid.UUID) (*entity.DraftFlag, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, f := range r.db.draftFlags {
		if f.ID == id {
			row := *f
			return &row, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "DraftFlag", ResourceID: id.String()}
}

// ListFlags returns all flags for a draft in insertion order.
func (r *draftRepo) ListFlags(ctx context.Context, draftID uuid.UUID) ([]*entity.DraftFlag, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.DraftFlag
	for _, f := range r.db.draftFlags {
		if f.DraftID == draftID {
			row := *f
			out = append(out, &row)
		}
	}
	return out, nil
}
