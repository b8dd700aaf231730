package solver

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CPSolver runs a parallel randomized search over the constraint model: N
// workers repeatedly build fresh randomized constructions and the best one
// is kept, until the wall-clock budget expires or the coverage upper bound
// is reached. A construction is not locally improved once built. Each
// improving solution triggers the progress callback.
type CPSolver struct {
	Manager        *Manager
	Workers        int
	TimeoutSeconds float64
	Progress       ProgressFunc
	Seed           *int64

	log *zap.SugaredLogger
}

// DefaultWorkers is the parallel search width when none is configured.
const DefaultWorkers = 4

// NewCPSolver creates a CP solver over the given constraint registry.
func NewCPSolver(manager *Manager, workers int, timeoutSeconds float64, log *zap.SugaredLogger) *CPSolver {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &CPSolver{Manager: manager, Workers: workers, TimeoutSeconds: timeoutSeconds, log: log}
}

// Solve builds the model, applies the registry and searches in parallel.
func (s *CPSolver) Solve(ctx context.Context, sc *Context, preserved []Assignment) (*Result, error) {
	start := time.Now()

	if len(sc.Slots) == 0 || (len(sc.Residents) == 0 && len(sc.Faculty) == 0) {
		return &Result{Status: StatusEmpty, SolverStatus: "cp: no variables"}, nil
	}

	vars := BuildVariables(sc)
	model := &CPModel{Vars: vars}
	if err := s.Manager.ApplyAllCP(model, sc); err != nil {
		return &Result{Status: StatusError, SolverStatus: "cp: " + err.Error()}, err
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
			SolverStatus:   "cp: preserved assignments conflict with the domain",
			RuntimeSeconds: time.Since(start).Seconds(),
			Statistics:     space.statistics(0, 0),
		}, nil
	}

	seed := time.Now().UnixNano()
	if s.Seed != nil {
		seed = *s.Seed
	}

	deadline := start.Add(time.Duration(s.TimeoutSeconds * float64(time.Second)))
	bound := space.upperBound()

	var (
		mu             sync.Mutex
		best           *solution
		bestObjective  float64
		solutionsFound int
		done           = make(chan struct{})
		closeOnce      sync.Once
	)

	report := func(objective float64) {
		if s.Progress == nil {
			return
		}
		elapsed := time.Since(start).Seconds()
		snapshot := ProgressSnapshot{
			SolutionsFound:   solutionsFound,
			CurrentObjective: objective,
			BestBound:        bound,
			ProgressPct:      progressPct(objective, bound),
			ElapsedSeconds:   elapsed,
			Status:           "solving",
			Timestamp:        time.Now().Unix(),
		}
		if bound > 0 {
			gap := (bound - objective) / bound * 100
			snapshot.OptimalityGapPct = &gap
		}
		s.Progress(snapshot)
	}

	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func(workerSeed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(workerSeed))
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				default:
				}
				if time.Now().After(deadline) {
					return
				}

				candidate, ok := s.construct(space, rng)
				if !ok {
					return
				}
				objective, _, _ := space.evaluate(candidate)

				mu.Lock()
				if best == nil || objective > bestObjective {
					best = candidate
					bestObjective = objective
					solutionsFound++
					report(objective)
					if bestObjective >= bound {
						closeOnce.Do(func() { close(done) })
					}
				}
				mu.Unlock()
			}
		}(seed + int64(w))
	}
	wg.Wait()

	runtime := time.Since(start).Seconds()

	if best == nil {
		return &Result{
			Status:         StatusInfeasible,
			SolverStatus:   "cp: no feasible solution within budget",
			RuntimeSeconds: runtime,
			Statistics:     space.statistics(0, 0),
			RandomSeed:     &seed,
		}, nil
	}

	objective, residents, faculty := space.evaluate(best)
	status := StatusFeasible
	if objective >= bound {
		status = StatusOptimal
	}

	if s.Progress != nil {
		final := ProgressSnapshot{
			SolutionsFound:   solutionsFound,
			CurrentObjective: objective,
			BestBound:        bound,
			ProgressPct:      100,
			ElapsedSeconds:   runtime,
			Status:           "completed",
			SolverStatus:     string(status),
			Timestamp:        time.Now().Unix(),
		}
		s.Progress(final)
	}

	s.log.Infow("cp solve complete",
		"status", status, "objective", objective, "solutions", solutionsFound,
		"runtime_seconds", runtime, "workers", s.Workers)

	return &Result{
		Success:        true,
		Assignments:    space.assignments(best),
		Status:         status,
		ObjectiveValue: objective,
		RuntimeSeconds: runtime,
		SolverStatus:   "cp: " + string(status),
		Statistics:     space.statistics(residents, faculty),
		RandomSeed:     &seed,
	}, nil
}

// construct builds one randomized solution: preserved cells first, then the
// remaining cells in shuffled order, each taking a random template with
// open capacity. Equity falls out of the shuffle spreading capacity misses.
func (s *CPSolver) construct(space *searchSpace, rng *rand.Rand) (*solution, bool) {
	sol := &solution{choice: make([]int, len(space.cells))}
	for i := range sol.choice {
		sol.choice[i] = -1
	}
	tracker := newCapacityTracker(space.vars)
	if !space.applyFixed(sol, tracker) {
		return nil, false
	}

	order := rng.Perm(len(space.cells))
	for _, i := range order {
		c := space.cells[i]
		if c.fixed >= 0 || len(c.templates) == 0 {
			continue
		}
		offset := rng.Intn(len(c.templates))
		for j := range c.templates {
			tmpl := c.templates[(offset+j)%len(c.templates)]
			if tracker.take(tmpl, c.slot) {
				sol.choice[i] = tmpl
				break
			}
		}
	}
	return sol, true
}

func progressPct(objective, bound float64) float64 {
	if bound <= 0 {
		return 100
	}
	pct := objective / bound * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
