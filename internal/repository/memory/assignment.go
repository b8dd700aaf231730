package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

func slotKey(personID uuid.UUID, date time.Time, halfDay entity.HalfDay) string {
	return personID.String() + "/" + date.Format("2006-01-02") + "/" + string(halfDay)
}

// assignmentRepo implements repository.AssignmentRepository in memory.
type assignmentRepo struct {
	db *Database
}

// UpsertWithSourcePolicy writes the assignment, applying source precedence
// against any existing row at the (person, date, half_day) slot.
func (r *assignmentRepo) UpsertWithSourcePolicy(ctx context.Context, a *entity.HalfDayAssignment) (repository.UpsertOutcome, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := slotKey(a.PersonID, a.Date, a.HalfDay)
	existing, ok := r.db.assignments[key]
	if !ok {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		row := *a
		r.db.assignments[key] = &row
		r.db.assignmentsByID[row.ID] = &row
		return repository.UpsertInserted, nil
	}

	decision := entity.DecideOverwrite(existing.Source, a.Source, existing.IsTimeOff(), a.IsTimeOff())
	if !decision.Allowed {
		return repository.UpsertSkipped, nil
	}

	existing.ActivityID = a.ActivityID
	existing.ActivityCode = a.ActivityCode
	existing.ActivityCategory = a.ActivityCategory
	existing.RotationTemplateID = a.RotationTemplateID
	existing.Source = a.Source
	existing.CountsTowardCapacity = a.CountsTowardCapacity
	if decision.IsOverride {
		existing.IsOverride = true
	}
	existing.UpdatedAt = time.Now().UTC()
	a.ID = existing.ID
	return repository.UpsertUpdated, nil
}

// GetBySlot retrieves the assignment at a slot.
func (r *assignmentRepo) GetBySlot(ctx context.Context, personID uuid.UUID, date time.Time, halfDay entity.HalfDay) (*entity.HalfDayAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.assignments[slotKey(personID, date, halfDay)]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "HalfDayAssignment", ResourceID: slotKey(personID, date, halfDay)}
	}
	row := *a
	return &row, nil
}

// GetByPersonAndDateRange retrieves a person's assignments in a date range,
// ordered by (date, half_day).
func (r *assignmentRepo) GetByPersonAndDateRange(ctx context.Context, personID uuid.UUID, start, end time.Time) ([]*entity.HalfDayAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*entity.HalfDayAssignment
	for _, a := range r.db.assignments {
		if a.PersonID == personID && !a.Date.Before(start) && !a.Date.After(end) {
			row := *a
			out = append(out, &row)
		}
	}
	sortAssignments(out)
	return out, nil
}

// GetByDateRange retrieves all assignments in a date range, ordered by
// (person, date, half_day).
func (r *assignmentRepo) GetByDateRange(ctx context.Context, start, end time.Time) ([]*entity.HalfDayAssignment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*entity.HalfDayAssignment
	for _, a := range r.db.assignments {
		if !a.Date.Before(start) && !a.Date.After(end) {
			row := *a
			out = append(out, &row)
		}
	}
	sortAssignments(out)
	return out, nil
}

// Update replaces the stored row for the assignment's ID.
func (r *assignmentRepo) Update(ctx context.Context, a *entity.HalfDayAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.assignmentsByID[a.ID]
	if !ok {
		return &repository.NotFoundError{ResourceType: "HalfDayAssignment", ResourceID: a.ID.String()}
	}
	oldKey := slotKey(existing.PersonID, existing.Date, existing.HalfDay)
	newKey := slotKey(a.PersonID, a.Date, a.HalfDay)
	if oldKey != newKey {
		if _, taken := r.db.assignments[newKey]; taken {
			return &repository.ConflictError{ResourceType: "HalfDayAssignment", Key: newKey}
		}
		delete(r.db.assignments, oldKey)
	}
	row := *a
	row.UpdatedAt = time.Now().UTC()
	r.db.assignments[newKey] = &row
	r.db.assignmentsByID[row.ID] = &row
	return nil
}

// DeleteByID removes the assignment with the given ID.
func (r *assignmentRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.assignmentsByID[id]
	if !ok {
		return &repository.NotFoundError{ResourceType: "HalfDayAssignment", ResourceID: id.String()}
	}
	delete(r.db.assignments, slotKey(a.PersonID, a.Date, a.HalfDay))
	delete(r.db.assignmentsByID, id)
	return nil
}

// DeleteBySlotAndSource removes the row at the slot only when its source
// matches.
func (r *assignmentRepo) DeleteBySlotAndSource(ctx context.Context, personID uuid.UUID, date time.Time, halfDay entity.HalfDay, source entity.AssignmentSource) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := slotKey(personID, date, halfDay)
	a, ok := r.db.assignments[key]
	if !ok || a.Source != source {
		return false, nil
	}
	delete(r.db.assignments, key)
	delete(r.db.assignmentsByID, a.ID)
	return true, nil
}

// Count returns the number of live assignments.
func (r *assignmentRepo) Count(ctx context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.assignments)), nil
}

func sortAssignments(rows []*entity.HalfDayAssignment) {
	sort.Slice(rows, func(i, j int) bool {
		pi, pj := rows[i].PersonID.String(), rows[j].PersonID.String()
		if pi != pj {
			return pi < pj
		}
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].HalfDay < rows[j].HalfDay
	})
}
