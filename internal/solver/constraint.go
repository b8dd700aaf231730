package solver

import (
	"fmt"

	"github.com/rotamed/scheduler/internal/entity"
)

// Category splits constraints into hard (must hold) and soft (penalized).
type Category string

const (
	CategoryHard Category = "HARD"
	CategorySoft Category = "SOFT"
)

// Constraint is one registered rule with a dual application: the CP model
// consumes domain prunings and capacities, the LP problem consumes linear
// rows. Both views describe the same rule so template-agnostic and
// template-specific constraints compose on either backend.
type Constraint interface {
	Key() string
	Category() Category
	Weight() float64
	ApplyToCP(m *CPModel, sc *Context) error
	ApplyToLP(p *LPProblem, sc *Context) error
}

// Manager holds the ordered constraint registry.
type Manager struct {
	constraints []Constraint
}

// NewManager creates an empty constraint manager. The at-most-one structure
// lives in the variable space; every other constraint is registered by the
// caller.
func NewManager() *Manager {
	return &Manager{}
}

// Register appends a constraint; application order follows registration
// order.
func (m *Manager) Register(c Constraint) *Manager {
	m.constraints = append(m.constraints, c)
	return m
}

// Constraints returns the registry in order.
func (m *Manager) Constraints() []Constraint {
	return m.constraints
}

// ApplyAllCP applies the registry to a CP model.
func (m *Manager) ApplyAllCP(model *CPModel, sc *Context) error {
	for _, c := range m.constraints {
		if err := c.ApplyToCP(model, sc); err != nil {
			return fmt.Errorf("constraint %s (cp): %w", c.Key(), err)
		}
	}
	return nil
}

// ApplyAllLP applies the registry to an LP problem.
func (m *Manager) ApplyAllLP(problem *LPProblem, sc *Context) error {
	for _, c := range m.constraints {
		if err := c.ApplyToLP(problem, sc); err != nil {
			return fmt.Errorf("constraint %s (lp): %w", c.Key(), err)
		}
	}
	return nil
}

// CPModel is the constraint-programming view of the variable space: domain
// prunings, per-slot capacities and reified equity.
type CPModel struct {
	Vars *Variables
}

// LPProblem is the linear view: the same variable space plus explicit
// linear rows Σ terms ≤ bound, with single-term zero-bound rows encoding
// availability masks and X ≤ Σx ≤ n·X indicator links handled implicitly by
// the at-most-one structure.
type LPProblem struct {
	Vars *Variables
	Rows []LinearRow
}

// LinearRow is one constraint row: sum of the listed binaries ≤ Bound.
type LinearRow struct {
	Label string
	Terms []VarRef
	Bound int
}

// AddRow appends a linear constraint row.
func (p *LPProblem) AddRow(label string, terms []VarRef, bound int) {
	p.Rows = append(p.Rows, LinearRow{Label: label, Terms: terms, Bound: bound})
}

// AvailabilityConstraint masks variables to zero on slots where the person
// is unavailable.
type AvailabilityConstraint struct{}

func (AvailabilityConstraint) Key() string        { return "availability" }
func (AvailabilityConstraint) Category() Category { return CategoryHard }
func (AvailabilityConstraint) Weight() float64    { return 0 }

// ApplyToCP prunes unavailable (person, slot) pairs from the domain.
func (AvailabilityConstraint) ApplyToCP(m *CPModel, sc *Context) error {
	forEachUnavailable(sc, func(resident bool, person, slot int) {
		m.Vars.ForbidPersonSlot(resident, person, slot)
	})
	return nil
}

// ApplyToLP emits a zero-bound row per unavailable (person, slot, template).
func (p AvailabilityConstraint) ApplyToLP(problem *LPProblem, sc *Context) error {
	forEachUnavailable(sc, func(resident bool, person, slot int) {
		for t := range sc.Templates {
			ref := VarRef{Resident: resident, Person: person, Slot: slot, Template: t}
			problem.AddRow("availability", []VarRef{ref}, 0)
		}
		problem.Vars.ForbidPersonSlot(resident, person, slot)
	})
	return nil
}

func forEachUnavailable(sc *Context, fn func(resident bool, person, slot int)) {
	for r, person := range sc.Residents {
		for b, slot := range sc.Slots {
			if !sc.Available(person.ID, slot) {
				fn(true, r, b)
			}
		}
	}
	for f, person := range sc.Faculty {
		for b, slot := range sc.Slots {
			if !sc.Available(person.ID, slot) {
				fn(false, f, b)
			}
		}
	}
}

// CapacityConstraint bounds how many people a template holds per slot,
// from the template's max-concurrent attribute.
type CapacityConstraint struct{}

func (CapacityConstraint) Key() string        { return "capacity" }
func (CapacityConstraint) Category() Category { return CategoryHard }
func (CapacityConstraint) Weight() float64    { return 0 }

// ApplyToCP records capacity bounds on the model.
func (CapacityConstraint) ApplyToCP(m *CPModel, sc *Context) error {
	for t, template := range sc.Templates {
		if template.MaxConcurrent == nil {
			continue
		}
		for b := range sc.Slots {
			m.Vars.SetCapacity(t, b, *template.MaxConcurrent)
		}
	}
	return nil
}

// ApplyToLP emits one row per bounded (template, slot).
func (CapacityConstraint) ApplyToLP(problem *LPProblem, sc *Context) error {
	for t, template := range sc.Templates {
		if template.MaxConcurrent == nil {
			continue
		}
		for b := range sc.Slots {
			var terms []VarRef
			for r := range sc.Residents {
				terms = append(terms, VarRef{Resident: true, Person: r, Slot: b, Template: t})
			}
			for f := range sc.Faculty {
				terms = append(terms, VarRef{Person: f, Slot: b, Template: t})
			}
			problem.AddRow("capacity", terms, *template.MaxConcurrent)
			problem.Vars.SetCapacity(t, b, *template.MaxConcurrent)
		}
	}
	return nil
}

// RotationEligibilityConstraint restricts one template to residents at or
// above a minimum PGY level.
type RotationEligibilityConstraint struct {
	TemplateAbbrev string
	MinPGY         int
}

func (c RotationEligibilityConstraint) Key() string {
	return "eligibility:" + c.TemplateAbbrev
}
func (RotationEligibilityConstraint) Category() Category { return CategoryHard }
func (RotationEligibilityConstraint) Weight() float64    { return 0 }

// ApplyToCP prunes under-level residents from the template's domain.
func (c RotationEligibilityConstraint) ApplyToCP(m *CPModel, sc *Context) error {
	c.forEachIneligible(sc, func(ref VarRef) { m.Vars.Forbid(ref) })
	return nil
}

// ApplyToLP emits zero-bound rows for under-level residents.
func (c RotationEligibilityConstraint) ApplyToLP(problem *LPProblem, sc *Context) error {
	c.forEachIneligible(sc, func(ref VarRef) {
		problem.AddRow(c.Key(), []VarRef{ref}, 0)
		problem.Vars.Forbid(ref)
	})
	return nil
}

func (c RotationEligibilityConstraint) forEachIneligible(sc *Context, fn func(VarRef)) {
	tmplIdx := -1
	for t, template := range sc.Templates {
		if template.Abbreviation == c.TemplateAbbrev {
			tmplIdx = t
			break
		}
	}
	if tmplIdx < 0 {
		return
	}
	for r, resident := range sc.Residents {
		if resident.PGY() >= c.MinPGY {
			continue
		}
		for b := range sc.Slots {
			fn(VarRef{Resident: true, Person: r, Slot: b, Template: tmplIdx})
		}
	}
}

// WorkloadEquityConstraint registers the max-assigns auxiliary variable:
// bounded above by per-person assignment counts and subtracted from the
// objective with a penalty weight.
type WorkloadEquityConstraint struct{}

func (WorkloadEquityConstraint) Key() string        { return "workload_equity" }
func (WorkloadEquityConstraint) Category() Category { return CategorySoft }
func (WorkloadEquityConstraint) Weight() float64    { return equityPenaltyWeight }

// ApplyToCP registers the equity penalty on the model.
func (c WorkloadEquityConstraint) ApplyToCP(m *CPModel, sc *Context) error {
	m.Vars.RegisterEquityPenalty(c.Weight())
	return nil
}

// ApplyToLP registers the equity penalty on the problem.
func (c WorkloadEquityConstraint) ApplyToLP(problem *LPProblem, sc *Context) error {
	problem.Vars.RegisterEquityPenalty(c.Weight())
	return nil
}

// preservedConflictError reports contradictory preserved assignments.
type preservedConflictError struct {
	slot entity.Slot
}

func (e *preservedConflictError) Error() string {
	return fmt.Sprintf("preserved assignments conflict at slot %s", e.slot.Key())
}
