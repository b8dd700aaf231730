package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// alertRepo implements repository.ConflictAlertRepository in memory.
type alertRepo struct {
	db *Database
}

// Create stores a new conflict alert.
func (r *alertRepo) Create(ctx context.Context, a *entity.ConflictAlert) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := *a
	r.db.alerts[a.ID] = &row
	return nil
}

// GetByID retrieves a conflict alert by ID.
func (r *alertRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ConflictAlert, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.alerts[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "ConflictAlert", ResourceID: id.String()}
	}
	row := *a
	return &row, nil
}

// Update replaces the stored alert row.
func (r *alertRepo) Update(ctx context.Context, a *entity.ConflictAlert) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.alerts[a.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "ConflictAlert", ResourceID: a.ID.String()}
	}
	row := *a
	r.db.alerts[a.ID] = &row
	return nil
}

// ListOpenByWeek returns open alerts whose FMIT week starts on the given
// Monday.
func (r *alertRepo) ListOpenByWeek(ctx context.Context, weekStart time.Time) ([]*entity.ConflictAlert, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.ConflictAlert
	for _, a := range r.db.alerts {
		if a.IsOpen() && entity.DateEqual(a.FMITWeekStart, weekStart) {
			row := *a
			out = append(out, &row)
		}
	}
	sortAlerts(out)
	return out, nil
}

// ListOpenByPerson returns open alerts for one person.
func (r *alertRepo) ListOpenByPerson(ctx context.Context, personID uuid.UUID) ([]*entity.ConflictAlert, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.ConflictAlert
	for _, a := range r.db.alerts {
		if a.IsOpen() && a.PersonID == personID {
			row := *a
			out = append(out, &row)
		}
	}
	sortAlerts(out)
	return out, nil
}

// ListOpen returns all open alerts.
func (r *alertRepo) ListOpen(ctx context.Context) ([]*entity.ConflictAlert, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*entity.ConflictAlert
	for _, a := range r.db.alerts {
		if a.IsOpen() {
			row := *a
			out = append(out, &row)
		}
	}
	sortAlerts(out)
	return out, nil
}

func sortAlerts(out []*entity.ConflictAlert) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}

// swapRepo implements repository.SwapRepository in memory.
type swapRepo struct {
	db *Database
}

// Create stores a new swap record.
func (r *swapRepo) Create(ctx context.Context, s *entity.SwapRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := *s
	r.db.swaps[s.ID] = &row
	return nil
}

// GetByID retrieves a swap record by ID.
func (r *swapRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.SwapRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.swaps[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "SwapRecord", ResourceID: id.String()}
	}
	row := *s
	return &row, nil
}

// Update replaces the stored swap row.
func (r *swapRepo) Update(ctx context.Context, s *entity.SwapRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.swaps[s.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "SwapRecord", ResourceID: s.ID.String()}
	}
	row := *s
	r.db.swaps[s.ID] = &row
	return nil
}

// auditRepo implements repository.AuditLogRepository in memory.
type auditRepo struct {
	db *Database
}

// Create appends an audit log entry.
func (r *auditRepo) Create(ctx context.Context, log *repository.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	row := *log
	r.db.auditLogs = append(r.db.auditLogs, &row)
	return nil
}

// ListRecent returns the most recent audit log entries.
func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]*repository.AuditLog, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	n := len(r.db.auditLogs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*repository.AuditLog, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		row := *r.db.auditLogs[i]
		out = append(out, &row)
	}
	return out, nil
}
