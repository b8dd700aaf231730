package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// preloadRepo implements repository.PreloadRepository in memory.
type preloadRepo struct {
	db *Database
}

// ListAbsences returns absences overlapping [start, end], ordered by person
// then start date.
func (r *preloadRepo) ListAbsences(ctx context.Context, start, end time.Time) ([]*entity.Absence, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.Absence
	for _, a := range r.db.absences {
		if a.Overlaps(start, end) {
			row := *a
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonID != out[j].PersonID {
			return out[i].PersonID.String() < out[j].PersonID.String()
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// ListInstitutionalEvents returns active events overlapping [start, end].
func (r *preloadRepo) ListInstitutionalEvents(ctx context.Context, start, end time.Time) ([]*entity.InstitutionalEvent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.InstitutionalEvent
	for _, e := range r.db.events {
		if e.Active && !e.EndDate.Before(start) && !e.StartDate.After(end) {
			row := *e
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// ListInpatientPreloads returns inpatient stints overlapping [start, end].
func (r *preloadRepo) ListInpatientPreloads(ctx context.Context, start, end time.Time) ([]*entity.InpatientPreload, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.InpatientPreload
	for _, p := range r.db.inpatients {
		if p.Overlaps(start, end) {
			row := *p
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonID != out[j].PersonID {
			return out[i].PersonID.String() < out[j].PersonID.String()
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// ListCallAssignments returns faculty call nights inside [start, end].
func (r *preloadRepo) ListCallAssignments(ctx context.Context, start, end time.Time) ([]*entity.CallAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.CallAssignment
	for _, c := range r.db.calls {
		if !c.Date.Before(start) && !c.Date.After(end) {
			row := *c
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListResidentCallPreloads returns resident call nights inside [start, end].
func (r *preloadRepo) ListResidentCallPreloads(ctx context.Context, start, end time.Time) ([]*entity.ResidentCallPreload, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.ResidentCallPreload
	for _, c := range r.db.residentCalls {
		if !c.Date.Before(start) && !c.Date.After(end) {
			row := *c
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListBlockAssignments returns block assignments for one macro-block.
func (r *preloadRepo) ListBlockAssignments(ctx context.Context, blockNumber, academicYear int) ([]*entity.BlockAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.BlockAssignment
	for _, b := range r.db.blockAssigns {
		if b.BlockNumber == blockNumber && b.AcademicYear == academicYear {
			row := *b
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PersonID.String() < out[j].PersonID.String()
	})
	return out, nil
}

// CreateAbsence stores an absence record.
func (r *preloadRepo) CreateAbsence(ctx context.Context, a *entity.Absence) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := *a
	r.db.absences = append(r.db.absences, &row)
	return nil
}

// CreateInstitutionalEvent stores an institutional event.
func (r *preloadRepo) CreateInstitutionalEvent(ctx context.Context, e *entity.InstitutionalEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	row := *e
	r.db.events = append(r.db.events, &row)
	return nil
}

// CreateInpatientPreload stores an inpatient stint.
func (r *preloadRepo) CreateInpatientPreload(ctx context.Context, p *entity.InpatientPreload) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := *p
	r.db.inpatients = append(r.db.inpatients, &row)
	return nil
}

// CreateCallAssignment stores a faculty call night.
func (r *preloadRepo) CreateCallAssignment(ctx context.Context, c *entity.CallAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := *c
	r.db.calls = append(r.db.calls, &row)
	return nil
}

// CreateResidentCallPreload stores a resident call night.
func (r *preloadRepo) CreateResidentCallPreload(ctx context.Context, c *entity.ResidentCallPreload) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := *c
	r.db.residentCalls = append(r.db.residentCalls, &row)
	return nil
}

// CreateBlockAssignment stores a block assignment.
func (r *preloadRepo) CreateBlockAssignment(ctx context.Context, b *entity.BlockAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	row := *b
	r.db.blockAssigns = append(r.db.blockAssigns, &row)
	return nil
}
