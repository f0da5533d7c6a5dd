// Package lp adapts gonum's simplex implementation to the domain LPSolver
// interface.
package lp

import (
	"context"
	"errors"
	"fmt"
	"log"

	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"
	"gonum.org/v1/gonum/mat"

	"github.com/macrolens/grocer/internal/domain"
)

// BackendName identifies this backend in reports and errors.
const BackendName = "gonum-simplex"

// Config holds configuration for the simplex backend
type Config struct {
	EnableDebugLogging bool
}

// SimplexSolver solves linear programs with gonum's dense simplex.
type SimplexSolver struct {
	enableDebugLogging bool
}

// NewSimplexSolver creates a simplex backend
func NewSimplexSolver(config Config) *SimplexSolver {
	return &SimplexSolver{enableDebugLogging: config.EnableDebugLogging}
}

// Name returns the backend name
func (s *SimplexSolver) Name() string {
	return BackendName
}

// Build converts the program to standard form. The returned program can be
// solved once.
func (s *SimplexSolver) Build(program *domain.LinearProgram, opts domain.SolverOptions) (domain.PreparedProgram, error) {
	if program == nil {
		return nil, errors.New("nil program")
	}
	n := len(program.Variables)
	if len(program.Objective) != n {
		return nil, fmt.Errorf("objective has %d coefficients for %d variables", len(program.Objective), n)
	}
	for i, c := range program.Constraints {
		if len(c.Coeffs) != n {
			return nil, fmt.Errorf("row %d (%s) has %d coefficients for %d variables", i, c.Name, len(c.Coeffs), n)
		}
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = domain.DefaultSolverOptions().Tolerance
	}

	sf := toStandardForm(program)
	if s.enableDebugLogging {
		log.Printf("[LP] standard form: %d rows x %d columns (%d of %d variables kept)",
			sf.rows, sf.cols, len(sf.kept), n)
	}
	return &prepared{form: sf, tol: opts.Tolerance, n: n, objective: program.Objective}, nil
}

// standardForm is min cᵀx s.t. Ax = b, x ≥ 0, b ≥ 0, with one slack column
// per inequality row and only the variables that can move.
type standardForm struct {
	c          []float64
	a          []float64 // row-major rows×cols
	b          []float64
	rows, cols int
	kept       []int // standard-form column → program variable
	// status decided during conversion, before any simplex run
	presolved domain.SolverStatus
}

func toStandardForm(program *domain.LinearProgram) *standardForm {
	n := len(program.Variables)
	sf := &standardForm{}

	// A free variable that appears in no row is either pinned at zero or
	// drives the objective to -inf.
	for j := 0; j < n; j++ {
		if program.IsFixed(j) {
			continue
		}
		inRow := false
		for _, row := range program.Constraints {
			if row.Coeffs[j] != 0 {
				inRow = true
				break
			}
		}
		if !inRow {
			if program.Objective[j] < 0 {
				sf.presolved = domain.StatusUnbounded
			}
			continue
		}
		sf.kept = append(sf.kept, j)
	}

	type stdRow struct {
		coeffs []float64
		slack  float64
		rhs    float64
	}
	var rows []stdRow
	for _, row := range program.Constraints {
		coeffs := make([]float64, len(sf.kept))
		empty := true
		for k, j := range sf.kept {
			coeffs[k] = row.Coeffs[j]
			if coeffs[k] != 0 {
				empty = false
			}
		}
		var slack float64
		switch row.Op {
		case domain.OpGreaterEqual:
			slack = -1
		case domain.OpLessEqual:
			slack = 1
		}
		if empty {
			// 0 op rhs is decided here: true rows vanish, false rows
			// make the program infeasible.
			if !holds(row.Op, row.RHS) {
				sf.presolved = domain.StatusInfeasible
			}
			continue
		}
		rhs := row.RHS
		if rhs < 0 {
			for k := range coeffs {
				coeffs[k] = -coeffs[k]
			}
			slack, rhs = -slack, -rhs
		}
		rows = append(rows, stdRow{coeffs: coeffs, slack: slack, rhs: rhs})
	}

	slacks := 0
	for _, r := range rows {
		if r.slack != 0 {
			slacks++
		}
	}
	sf.rows = len(rows)
	sf.cols = len(sf.kept) + slacks
	sf.c = make([]float64, sf.cols)
	for k, j := range sf.kept {
		sf.c[k] = program.Objective[j]
	}
	sf.a = make([]float64, sf.rows*sf.cols)
	sf.b = make([]float64, sf.rows)
	next := len(sf.kept)
	for i, r := range rows {
		copy(sf.a[i*sf.cols:], r.coeffs)
		if r.slack != 0 {
			sf.a[i*sf.cols+next] = r.slack
			next++
		}
		sf.b[i] = r.rhs
	}
	return sf
}

func holds(op domain.ConstraintOp, rhs float64) bool {
	switch op {
	case domain.OpGreaterEqual:
		return 0 >= rhs
	case domain.OpLessEqual:
		return 0 <= rhs
	default:
		return rhs == 0
	}
}

type prepared struct {
	form      *standardForm
	tol       float64
	n         int
	objective []float64
}

type simplexResult struct {
	x   []float64
	err error
}

// Solve runs the simplex. The run is abandoned when ctx is done.
func (p *prepared) Solve(ctx context.Context) (*domain.Solution, error) {
	sf := p.form
	switch sf.presolved {
	case domain.StatusInfeasible:
		return &domain.Solution{Status: domain.StatusInfeasible}, nil
	case domain.StatusUnbounded:
		if sf.rows == 0 {
			return &domain.Solution{Status: domain.StatusUnbounded}, nil
		}
		// Still need to know the rows are satisfiable at all.
		res := p.run(ctx)
		if res.err != nil && errors.Is(res.err, gonumlp.ErrInfeasible) {
			return &domain.Solution{Status: domain.StatusInfeasible}, nil
		}
		if res.err != nil && !errors.Is(res.err, gonumlp.ErrUnbounded) {
			return nil, res.err
		}
		return &domain.Solution{Status: domain.StatusUnbounded}, nil
	}

	if sf.rows == 0 {
		// No rows left: every kept variable has a non-negative cost and
		// sits at zero.
		return p.solution(make([]float64, sf.cols)), nil
	}

	res := p.run(ctx)
	switch {
	case res.err == nil:
		return p.solution(res.x), nil
	case errors.Is(res.err, gonumlp.ErrInfeasible):
		return &domain.Solution{Status: domain.StatusInfeasible}, nil
	case errors.Is(res.err, gonumlp.ErrUnbounded):
		return &domain.Solution{Status: domain.StatusUnbounded}, nil
	default:
		return nil, res.err
	}
}

func (p *prepared) run(ctx context.Context) simplexResult {
	sf := p.form
	if err := ctx.Err(); err != nil {
		return simplexResult{err: fmt.Errorf("solve not started: %w", err)}
	}

	done := make(chan simplexResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- simplexResult{err: fmt.Errorf("simplex panicked: %v", r)}
			}
		}()
		a := mat.NewDense(sf.rows, sf.cols, append([]float64(nil), sf.a...))
		_, x, err := gonumlp.Simplex(sf.c, a, sf.b, p.tol, nil)
		done <- simplexResult{x: x, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return simplexResult{err: fmt.Errorf("solve timed out: %w", ctx.Err())}
	}
}

// solution maps standard-form values back onto the program's variables and
// recomputes the objective from the original coefficients.
func (p *prepared) solution(x []float64) *domain.Solution {
	out := make([]float64, p.n)
	for k, j := range p.form.kept {
		v := x[k]
		if v < 0 {
			v = 0
		}
		out[j] = v
	}
	var obj float64
	for j, v := range out {
		obj += p.objective[j] * v
	}
	return &domain.Solution{Status: domain.StatusOptimal, X: out, Objective: obj}
}
