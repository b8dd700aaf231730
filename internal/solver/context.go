package solver

import (
	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// Context is the scheduling context for one solve: ordered people split by
// kind, ordered weekday slots, ordered templates and availability. The
// assignments that must survive unchanged are passed to Solve separately.
type Context struct {
	Residents []*entity.Person
	Faculty   []*entity.Person
	Slots     []entity.Slot // weekday slots only; weekends excluded
	Templates []*entity.RotationTemplate

	// Availability maps person -> slot key -> available. A missing person
	// or slot entry means available; only an explicit false masks.
	Availability map[uuid.UUID]map[string]bool
}

// Available reports whether a person can be scheduled on a slot.
func (c *Context) Available(personID uuid.UUID, slot entity.Slot) bool {
	if c.Availability == nil {
		return true
	}
	slots, ok := c.Availability[personID]
	if !ok {
		return true
	}
	available, ok := slots[slot.Key()]
	return !ok || available
}

// Variables is the decision-variable space: a binary x[r,b,t] for each
// eligible (resident, slot, template) and y[f,b,t] for each (faculty, slot,
// template). The derived per-slot indicators X[r,b] and Y[f,b] are implied
// by the at-most-one structural constraint, so template-agnostic constraints
// can ignore templates.
type Variables struct {
	ctx *Context

	// residentVars and facultyVars list the variable triples per kind in
	// construction order.
	residentVars []VarRef
	facultyVars  []VarRef

	// forbidden marks variables pruned from the domain by constraints.
	forbidden map[VarRef]bool

	// capacity bounds per (template index, slot index); -1 = unbounded.
	capacity map[[2]int]int

	// equityWeight > 0 when a workload-equity penalty is registered.
	equityWeight float64

	// fixed variables that must be 1 (preserved assignments).
	fixed []VarRef
}

// VarRef identifies one binary decision variable.
type VarRef struct {
	Resident bool
	Person   int // index into Residents or Faculty
	Slot     int // index into Slots
	Template int // index into Templates
}

// BuildVariables constructs the variable space for a context, excluding
// resident-template pairs where the template requires a procedural
// credential the resident lacks.
func BuildVariables(ctx *Context) *Variables {
	v := &Variables{
		ctx:       ctx,
		forbidden: make(map[VarRef]bool),
		capacity:  make(map[[2]int]int),
	}
	for r, resident := range ctx.Residents {
		for b := range ctx.Slots {
			for t, template := range ctx.Templates {
				if template.RequiresProcedureCredential && !resident.HasProcedureCredential {
					continue
				}
				v.residentVars = append(v.residentVars, VarRef{Resident: true, Person: r, Slot: b, Template: t})
			}
		}
	}
	for f := range ctx.Faculty {
		for b := range ctx.Slots {
			for t := range ctx.Templates {
				v.facultyVars = append(v.facultyVars, VarRef{Person: f, Slot: b, Template: t})
			}
		}
	}
	for t, template := range ctx.Templates {
		max := -1
		if template.MaxConcurrent != nil {
			max = *template.MaxConcurrent
		}
		for b := range ctx.Slots {
			v.capacity[[2]int{t, b}] = max
		}
	}
	return v
}

// Forbid prunes a variable from the domain.
func (v *Variables) Forbid(ref VarRef) {
	v.forbidden[ref] = true
}

// ForbidPersonSlot prunes every template variable for a (person, slot).
func (v *Variables) ForbidPersonSlot(resident bool, person, slot int) {
	for t := range v.ctx.Templates {
		v.forbidden[VarRef{Resident: resident, Person: person, Slot: slot, Template: t}] = true
	}
}

// SetCapacity bounds how many people a template can hold on a slot.
func (v *Variables) SetCapacity(template, slot, max int) {
	v.capacity[[2]int{template, slot}] = max
}

// RegisterEquityPenalty adds the max-assigns auxiliary to the objective.
func (v *Variables) RegisterEquityPenalty(weight float64) {
	v.equityWeight = weight
}

// Fix pins a variable to 1; used for preserved assignments present in the
// domain.
func (v *Variables) Fix(ref VarRef) {
	v.fixed = append(v.fixed, ref)
}

// PersonID resolves a variable's person.
func (v *Variables) PersonID(ref VarRef) uuid.UUID {
	if ref.Resident {
		return v.ctx.Residents[ref.Person].ID
	}
	return v.ctx.Faculty[ref.Person].ID
}

// lookupVar finds the variable for a preserved assignment, if it is in the
// domain.
func (v *Variables) lookupVar(a Assignment) (VarRef, bool) {
	slotIdx := -1
	for b, slot := range v.ctx.Slots {
		if entity.DateEqual(slot.Date, a.Slot.Date) && slot.HalfDay == a.Slot.HalfDay {
			slotIdx = b
			break
		}
	}
	tmplIdx := -1
	for t, template := range v.ctx.Templates {
		if template.ID == a.TemplateID {
			tmplIdx = t
			break
		}
	}
	if slotIdx < 0 || tmplIdx < 0 {
		return VarRef{}, false
	}
	for r, resident := range v.ctx.Residents {
		if resident.ID == a.PersonID {
			ref := VarRef{Resident: true, Person: r, Slot: slotIdx, Template: tmplIdx}
			if v.ctx.Templates[tmplIdx].RequiresProcedureCredential && !resident.HasProcedureCredential {
				return VarRef{}, false
			}
			return ref, true
		}
	}
	for f, faculty := range v.ctx.Faculty {
		if faculty.ID == a.PersonID {
			return VarRef{Person: f, Slot: slotIdx, Template: tmplIdx}, true
		}
	}
	return VarRef{}, false
}
