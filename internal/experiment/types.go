// Copyright 2025 James Ross

// Package experiment holds the shared record types that flow between the
// planner, engine, memory and pareto packages: ObjectiveSpec, ConstraintSpec,
// ExperimentSpec, RunResult, and DesignSpace.
package experiment

// GoalDirection is the optimization sense of an ObjectiveSpec.
type GoalDirection string

const (
	Minimize GoalDirection = "minimize"
	Maximize GoalDirection = "maximize"
)

// ConstraintKind selects how a ConstraintSpec is evaluated against an output.
type ConstraintKind string

const (
	ConstraintRange ConstraintKind = "range"
	ConstraintLTE   ConstraintKind = "lte"
	ConstraintGTE   ConstraintKind = "gte"
	ConstraintEQ    ConstraintKind = "eq"
)

// RunStatus is the outcome of evaluating one ExperimentSpec.
type RunStatus string

const (
	RunOK         RunStatus = "ok"
	RunFailed     RunStatus = "failed"
	RunInfeasible RunStatus = "infeasible"
)

// ObjectiveSpec names one signal to optimize and the weight it carries in
// scalarization.
type ObjectiveSpec struct {
	Name      string        `json:"name"`
	Direction GoalDirection `json:"direction"`
	Weight    float64       `json:"weight"`
}

// ConstraintSpec restricts one output field. Exactly the fields required by
// Kind are expected to be populated: range wants Low and/or High, the
// comparison kinds want Value.
type ConstraintSpec struct {
	Name  string         `json:"name"`
	Kind  ConstraintKind `json:"kind"`
	Field string         `json:"field"`
	Low   *float64       `json:"low,omitempty"`
	High  *float64       `json:"high,omitempty"`
	Value *float64       `json:"value,omitempty"`
}

// ExperimentSpec is a proposed point in parameter space, fully immutable
// once a planner returns it.
type ExperimentSpec struct {
	ExperimentID string            `json:"experiment_id"`
	Domain       string            `json:"domain"`
	Parameters   map[string]float64 `json:"parameters"`
	Objectives   []ObjectiveSpec   `json:"objectives"`
	Constraints  []ConstraintSpec  `json:"constraints"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// RunResult is the append-only record of one evaluated ExperimentSpec.
type RunResult struct {
	ExperimentID string             `json:"experiment_id"`
	Status       RunStatus          `json:"status"`
	Parameters   map[string]float64 `json:"parameters"`
	Outputs      map[string]float64 `json:"outputs"`
	Score        *float64           `json:"score,omitempty"`
	Notes        []string           `json:"notes,omitempty"`
}

// DesignSpace is an axis-aligned hyper-rectangle of allowed parameter
// values, keyed by parameter name.
type DesignSpace struct {
	Bounds map[string][2]float64 `json:"bounds"`
}

// F64 returns a pointer to v, for populating the optional *float64 fields.
func F64(v float64) *float64 { return &v }
