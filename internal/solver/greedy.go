package solver

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// GreedySolver is the tie-breaking, explanation-producing heuristic: hardest
// slots first, the least-loaded eligible resident per slot, first template
// with open capacity. Callers invoke it directly when explanations are
// required.
type GreedySolver struct{}

// NewGreedySolver creates the greedy heuristic.
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{}
}

// Solve assigns residents slot by slot and records a decision explanation
// per assignment.
func (s *GreedySolver) Solve(ctx context.Context, sc *Context, preserved []Assignment) (*Result, error) {
	start := time.Now()

	if len(sc.Slots) == 0 || len(sc.Residents) == 0 {
		return &Result{Status: StatusEmpty, SolverStatus: "greedy: no variables"}, nil
	}

	assignCounts := make(map[uuid.UUID]int)
	taken := make(map[string]uuid.UUID) // slot key -> person already placed there
	capacityUsed := make(map[string]map[uuid.UUID]int)

	var assignments []Assignment
	for _, p := range preserved {
		assignments = append(assignments, p)
		assignCounts[p.PersonID]++
		taken[p.Slot.Key()+"/"+p.PersonID.String()] = p.PersonID
		if capacityUsed[p.Slot.Key()] == nil {
			capacityUsed[p.Slot.Key()] = make(map[uuid.UUID]int)
		}
		capacityUsed[p.Slot.Key()][p.TemplateID]++
	}

	// Hardest slots first: ascending count of eligible residents.
	type slotDifficulty struct {
		index    int
		eligible int
	}
	difficulties := make([]slotDifficulty, 0, len(sc.Slots))
	for b, slot := range sc.Slots {
		eligible := 0
		for _, resident := range sc.Residents {
			if sc.Available(resident.ID, slot) {
				eligible++
			}
		}
		difficulties = append(difficulties, slotDifficulty{index: b, eligible: eligible})
	}
	sort.SliceStable(difficulties, func(i, j int) bool {
		return difficulties[i].eligible < difficulties[j].eligible
	})

	var explanations []DecisionExplanation
	for _, d := range difficulties {
		slot := sc.Slots[d.index]

		// Candidate set: eligible residents not already placed on the slot,
		// scored by current load (fewer assignments = better). Ties break by
		// insertion order via stable sort.
		type candidate struct {
			resident *entity.Person
			score    float64
		}
		var candidates []candidate
		for _, resident := range sc.Residents {
			if !sc.Available(resident.ID, slot) {
				continue
			}
			if _, placed := taken[slot.Key()+"/"+resident.ID.String()]; placed {
				continue
			}
			candidates = append(candidates, candidate{
				resident: resident,
				score:    -float64(assignCounts[resident.ID]),
			})
		}
		if len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})
		chosen := candidates[0]

		template := s.firstOpenTemplate(sc, slot, chosen.resident, capacityUsed)
		if template == nil {
			continue
		}

		assignments = append(assignments, Assignment{
			PersonID:   chosen.resident.ID,
			Slot:       slot,
			TemplateID: template.ID,
		})
		assignCounts[chosen.resident.ID]++
		taken[slot.Key()+"/"+chosen.resident.ID.String()] = chosen.resident.ID
		if capacityUsed[slot.Key()] == nil {
			capacityUsed[slot.Key()] = make(map[uuid.UUID]int)
		}
		capacityUsed[slot.Key()][template.ID]++

		scores := make([]CandidateScore, 0, len(candidates))
		for _, c := range candidates {
			scores = append(scores, CandidateScore{PersonID: c.resident.ID, Score: c.score})
		}
		runnerUp := chosen.score - 2 // sole candidate: decisive margin
		if len(candidates) > 1 {
			runnerUp = candidates[1].score
		}
		explanations = append(explanations, DecisionExplanation{
			Slot:       slot,
			PersonID:   chosen.resident.ID,
			TemplateID: template.ID,
			Candidates: scores,
			Confidence: confidenceFromMargin(chosen.score, runnerUp),
		})
	}

	residentCount := 0
	for _, a := range assignments {
		for _, r := range sc.Residents {
			if r.ID == a.PersonID {
				residentCount++
				break
			}
		}
	}

	space := buildSearchSpace(BuildVariables(sc))
	stats := space.statistics(residentCount, len(assignments)-residentCount)

	return &Result{
		Success:        true,
		Assignments:    assignments,
		Status:         StatusFeasible,
		ObjectiveValue: coverageWeight * float64(residentCount),
		RuntimeSeconds: time.Since(start).Seconds(),
		SolverStatus:   "greedy: feasible",
		Statistics:     stats,
		Explanations:   explanations,
	}, nil
}

// firstOpenTemplate returns the first template whose capacity is not yet
// saturated at the slot and that does not require a credential the resident
// lacks.
func (s *GreedySolver) firstOpenTemplate(sc *Context, slot entity.Slot, resident *entity.Person, capacityUsed map[string]map[uuid.UUID]int) *entity.RotationTemplate {
	for _, template := range sc.Templates {
		if template.RequiresProcedureCredential && !resident.HasProcedureCredential {
			continue
		}
		if template.MaxConcurrent != nil {
			if capacityUsed[slot.Key()][template.ID] >= *template.MaxConcurrent {
				continue
			}
		}
		return template
	}
	return nil
}

// confidenceFromMargin grades a decision by the score gap between the
// chosen candidate and the runner-up.
func confidenceFromMargin(chosen, runnerUp float64) Confidence {
	margin := chosen - runnerUp
	switch {
	case margin >= 2:
		return ConfidenceHigh
	case margin >= 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
