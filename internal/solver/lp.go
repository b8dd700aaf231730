package solver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LPSolver solves the identical model built with linear rows, on a
// single-threaded depth-first branch-and-bound backend. It is the fallback
// when the CP solver times out or proves nothing.
type LPSolver struct {
	Manager        *Manager
	TimeoutSeconds float64

	log *zap.SugaredLogger
}

// NewLPSolver creates an LP solver over the given constraint registry.
func NewLPSolver(manager *Manager, timeoutSeconds float64, log *zap.SugaredLogger) *LPSolver {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 15
	}
	return &LPSolver{Manager: manager, TimeoutSeconds: timeoutSeconds, log: log}
}

// Solve builds the linear problem, applies the registry and runs
// branch-and-bound over the cells.
func (s *LPSolver) Solve(ctx context.Context, sc *Context, preserved []Assignment) (*Result, error) {
	start := time.Now()

	if len(sc.Slots) == 0 || (len(sc.Residents) == 0 && len(sc.Faculty) == 0) {
		return &Result{Status: StatusEmpty, SolverStatus: "lp: no variables"}, nil
	}

	vars := BuildVariables(sc)
	problem := &LPProblem{Vars: vars}
	if err := s.Manager.ApplyAllLP(problem, sc); err != nil {
		return &Result{Status: StatusError, SolverStatus: "lp: " + err.Error()}, err
	}
	for _, p := range preserved {
		if ref, ok := vars.lookupVar(p); ok {
			vars.Fix(ref)
		}
	}

	space := buildSearchSpace(vars)
	if space.infeasible {
		return &Result{
			Status:         StatusInfeasible,
			SolverStatus:   "lp: preserved assignments conflict with the domain",
			RuntimeSeconds: time.Since(start).Seconds(),
			Statistics:     space.statistics(0, 0),
		}, nil
	}

	deadline := start.Add(time.Duration(s.TimeoutSeconds * float64(time.Second)))
	search := &bbSearch{
		space:    space,
		rows:     problem.Rows,
		deadline: deadline,
		ctx:      ctx,
	}
	best, proven := search.run()
	runtime := time.Since(start).Seconds()

	if best == nil {
		return &Result{
			Status:         StatusInfeasible,
			SolverStatus:   "lp: no feasible solution within budget",
			RuntimeSeconds: runtime,
			Statistics:     space.statistics(0, 0),
		}, nil
	}

	objective, residents, faculty := space.evaluate(best)
	status := StatusFeasible
	if proven || objective >= space.upperBound() {
		status = StatusOptimal
	}

	stats := space.statistics(residents, faculty)
	stats.Branches = search.branches
	stats.Conflicts = search.conflicts

	s.log.Infow("lp solve complete",
		"status", status, "objective", objective, "branches", search.branches,
		"runtime_seconds", runtime)

	return &Result{
		Success:        true,
		Assignments:    space.assignments(best),
		Status:         status,
		ObjectiveValue: objective,
		RuntimeSeconds: runtime,
		SolverStatus:   "lp: " + string(status),
		Statistics:     stats,
	}, nil
}

// bbSearch is a depth-first branch-and-bound over cells: try each eligible
// template, then the empty choice, pruning branches whose optimistic bound
// cannot beat the incumbent.
type bbSearch struct {
	space    *searchSpace
	rows     []LinearRow
	deadline time.Time
	ctx      context.Context

	rowUsage  []int
	rowsByVar map[VarRef][]int

	tracker   *capacityTracker
	current   *solution
	best      *solution
	bestScore float64
	timedOut  bool

	branches  int64
	conflicts int64
}

func (s *bbSearch) run() (*solution, bool) {
	s.rowUsage = make([]int, len(s.rows))
	s.rowsByVar = make(map[VarRef][]int)
	for i, row := range s.rows {
		for _, term := range row.Terms {
			s.rowsByVar[term] = append(s.rowsByVar[term], i)
		}
	}

	s.tracker = newCapacityTracker(s.space.vars)
	s.current = &solution{choice: make([]int, len(s.space.cells))}
	for i := range s.current.choice {
		s.current.choice[i] = -1
	}
	if !s.space.applyFixed(s.current, s.tracker) {
		return nil, false
	}
	for _, c := range s.space.cells {
		if c.fixed >= 0 && !s.takeRows(VarRef{Resident: c.resident, Person: c.person, Slot: c.slot, Template: c.fixed}) {
			return nil, false
		}
	}

	s.descend(0)
	return s.best, !s.timedOut
}

func (s *bbSearch) descend(cellIdx int) {
	if s.timedOut {
		return
	}
	if s.branches%1024 == 0 {
		if time.Now().After(s.deadline) || s.ctx.Err() != nil {
			s.timedOut = true
			return
		}
	}

	if cellIdx == len(s.space.cells) {
		objective, _, _ := s.space.evaluate(s.current)
		if s.best == nil || objective > s.bestScore {
			copied := &solution{choice: append([]int(nil), s.current.choice...)}
			s.best = copied
			s.bestScore = objective
		}
		return
	}

	// Optimistic bound: everything remaining gets assigned.
	if s.best != nil {
		partial, _, _ := s.space.evaluate(s.current)
		remaining := 0.0
		for i := cellIdx; i < len(s.space.cells); i++ {
			if s.current.choice[i] >= 0 || len(s.space.cells[i].templates) == 0 {
				continue
			}
			if s.space.cells[i].resident {
				remaining += coverageWeight
			} else {
				remaining += facultyWeight
			}
		}
		if partial+remaining <= s.bestScore {
			return
		}
	}

	c := s.space.cells[cellIdx]
	if c.fixed >= 0 {
		s.descend(cellIdx + 1)
		return
	}

	for _, tmpl := range c.templates {
		ref := VarRef{Resident: c.resident, Person: c.person, Slot: c.slot, Template: tmpl}
		s.branches++
		if !s.tracker.take(tmpl, c.slot) {
			s.conflicts++
			continue
		}
		if !s.takeRows(ref) {
			s.tracker.release(tmpl, c.slot)
			s.conflicts++
			continue
		}
		s.current.choice[cellIdx] = tmpl
		s.descend(cellIdx + 1)
		s.current.choice[cellIdx] = -1
		s.releaseRows(ref)
		s.tracker.release(tmpl, c.slot)
		if s.timedOut {
			return
		}
	}

	// Empty choice branch.
	s.branches++
	s.descend(cellIdx + 1)
}

func (s *bbSearch) takeRows(ref VarRef) bool {
	rows := s.rowsByVar[ref]
	for i, rowIdx := range rows {
		if s.rowUsage[rowIdx]+1 > s.rows[rowIdx].Bound {
			for _, undo := range rows[:i] {
				s.rowUsage[undo]--
			}
			return false
		}
		s.rowUsage[rowIdx]++
	}
	return true
}

func (s *bbSearch) releaseRows(ref VarRef) {
	for _, rowIdx := range s.rowsByVar[ref] {
		s.rowUsage[rowIdx]--
	}
}
