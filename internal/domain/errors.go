package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataQuality marks a per-record problem; the record is dropped and the run continues
	ErrDataQuality = errors.New("data quality")

	// ErrConfiguration is returned when the rule set is contradictory or unsatisfiable by construction
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInfeasible is returned when no basket satisfies every rule
	ErrInfeasible = errors.New("no basket satisfies all constraints")

	// ErrUnbounded is returned when the objective has no finite optimum
	ErrUnbounded = errors.New("objective is unbounded")

	// ErrSolver is returned on numerical failure or timeout inside the solver
	ErrSolver = errors.New("solver failure")

	// ErrConsistency is returned when the validator disagrees with the solver
	ErrConsistency = errors.New("solution failed independent validation")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrEmptyCatalog is returned when no product survives normalization
	ErrEmptyCatalog = errors.New("no usable products in catalog")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrRunNotFound is returned when a stored run does not exist
	ErrRunNotFound = errors.New("run not found")

	// ErrCatalogSourceFailure is returned when the catalog source cannot be read
	ErrCatalogSourceFailure = errors.New("catalog source failed")
)

// DataQualityError describes a dropped record or field.
type DataQualityError struct {
	ProductID string
	Field     string
	Reason    DropReason
	Detail    string
}

func (e *DataQualityError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: product %q field %q: %s", ErrDataQuality, e.ProductID, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: product %q: %s (%s)", ErrDataQuality, e.ProductID, e.Reason, e.Detail)
}

func (e *DataQualityError) Unwrap() error { return ErrDataQuality }

// ConfigurationError lists every configuration problem found before solving.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, strings.Join(e.Problems, "; "))
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// InfeasibleError carries the rules implicated in the infeasibility, when the
// optimizer could isolate them.
type InfeasibleError struct {
	Implicated []string
}

func (e *InfeasibleError) Error() string {
	if len(e.Implicated) == 0 {
		return ErrInfeasible.Error()
	}
	return fmt.Sprintf("%s: conflicting rules %s", ErrInfeasible, strings.Join(e.Implicated, ", "))
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// UnboundedError always points at a missing upper bound in the rule set.
type UnboundedError struct {
	Hint string
}

func (e *UnboundedError) Error() string {
	return fmt.Sprintf("%s: missing upper bound (%s)", ErrUnbounded, e.Hint)
}

func (e *UnboundedError) Unwrap() error { return ErrUnbounded }

// SolverError wraps the backend failure of the last attempt.
type SolverError struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", ErrSolver, e.Backend, e.Attempts, e.Err)
}

func (e *SolverError) Unwrap() []error { return []error{ErrSolver, e.Err} }

// Violation is one bound the validator found broken.
type Violation struct {
	Rule     string  `json:"rule"`
	Actual   float64 `json:"actual"`
	Bound    float64 `json:"bound"`
	Expected string  `json:"expected"`
}

// ConsistencyError is an internal defect: the solver's answer does not hold
// up when recomputed independently.
type ConsistencyError struct {
	Violations []Violation
}

func (e *ConsistencyError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: got %g, want %s %g", v.Rule, v.Actual, v.Expected, v.Bound))
	}
	return fmt.Sprintf("%s: %s", ErrConsistency, strings.Join(parts, "; "))
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }
