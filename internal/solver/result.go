// Package solver builds and solves the half-day assignment model: a
// constraint registry applied to two alternative search backends plus a
// greedy explanation-producing heuristic. Solvers never write to the store;
// they return in-memory tuples for the draft engine to stage.
package solver

import (
	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// Status classifies a solver outcome.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusEmpty      Status = "empty"
	StatusError      Status = "error"
)

// Assignment is one solved (person, slot, template) triple.
type Assignment struct {
	PersonID   uuid.UUID
	Slot       entity.Slot
	TemplateID uuid.UUID
}

// Statistics summarizes the solved model.
type Statistics struct {
	Blocks              int     `json:"blocks"`
	Residents           int     `json:"residents"`
	Faculty             int     `json:"faculty"`
	Templates           int     `json:"templates"`
	ResidentAssignments int     `json:"resident_assignments"`
	FacultyAssignments  int     `json:"faculty_assignments"`
	CoverageRate        float64 `json:"coverage_rate"`
	Branches            int64   `json:"branches,omitempty"`
	Conflicts           int64   `json:"conflicts,omitempty"`
}

// Result is the common solve contract. Success means a feasible or optimal
// solution was found.
type Result struct {
	Success        bool
	Assignments    []Assignment
	Status         Status
	ObjectiveValue float64
	RuntimeSeconds float64
	SolverStatus   string
	Statistics     Statistics
	Explanations   []DecisionExplanation
	RandomSeed     *int64
}

// Confidence grades how clear-cut a greedy decision was.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CandidateScore is one candidate considered for a greedy decision.
type CandidateScore struct {
	PersonID uuid.UUID
	Score    float64
}

// DecisionExplanation records why the greedy heuristic picked a person for
// a slot: the candidate set considered, each candidate's score, and a
// confidence tag derived from the margin between the chosen and the runner-
// up.
type DecisionExplanation struct {
	Slot       entity.Slot
	PersonID   uuid.UUID
	TemplateID uuid.UUID
	Candidates []CandidateScore
	Confidence Confidence
}

// Objective scalars. Coverage dominates equity; the values are fixed at
// this layer, not runtime-tunable.
const (
	coverageWeight      = 1000.0
	facultyWeight       = 1.0
	equityPenaltyWeight = 10.0
)
