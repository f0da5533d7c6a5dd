package domain

import (
	"context"
	"time"
)

// ConstraintOp is the relation of a linear row.
type ConstraintOp string

const (
	OpGreaterEqual ConstraintOp = ">="
	OpLessEqual    ConstraintOp = "<="
	OpEqual        ConstraintOp = "="
)

// LinearConstraint is one row: Σ Coeffs[j]·x[j] Op RHS. Coeffs is dense
// over the program's variables.
type LinearConstraint struct {
	Name      string       `json:"name"`
	Coeffs    []float64    `json:"coeffs"`
	Op        ConstraintOp `json:"op"`
	RHS       float64      `json:"rhs"`
	RuleIndex int          `json:"ruleIndex"` // index into ConstraintSpec.Rules, -1 for builder rows
}

// LinearProgram is a minimization over non-negative continuous variables.
// Maximization objectives are negated by the builder.
type LinearProgram struct {
	Variables   []string           `json:"variables"`
	Objective   []float64          `json:"objective"`
	Constraints []LinearConstraint `json:"constraints"`
	// Fixed marks variables pinned to zero (excluded products).
	Fixed []bool `json:"fixed,omitempty"`
}

// IsFixed reports whether variable j is pinned to zero.
func (p *LinearProgram) IsFixed(j int) bool {
	return j < len(p.Fixed) && p.Fixed[j]
}

// SolverOptions tune one solve.
type SolverOptions struct {
	Tolerance float64
	Timeout   time.Duration
}

// DefaultSolverOptions are the settings a failed solve is retried with.
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		Tolerance: 1e-10,
		Timeout:   30 * time.Second,
	}
}

// Solution is the raw solver output.
type Solution struct {
	Status    SolverStatus
	X         []float64
	Objective float64
}

// PreparedProgram is a program loaded into a backend, ready to solve once.
type PreparedProgram interface {
	Solve(ctx context.Context) (*Solution, error)
}

// LPSolver is the narrow backend interface: build, then solve. Backends
// report infeasible and unbounded programs through Solution.Status and
// return an error only for technical failures.
type LPSolver interface {
	Name() string
	Build(program *LinearProgram, opts SolverOptions) (PreparedProgram, error)
}
