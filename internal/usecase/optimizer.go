package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/macrolens/grocer/internal/domain"
)

// zeroQuantity is the level below which a solved quantity is treated as not bought.
const zeroQuantity = 1e-12

// OptimizerConfig holds configuration for the basket optimizer
type OptimizerConfig struct {
	Solver             domain.LPSolver
	Options            domain.SolverOptions
	MaxDiagnosisRules  int // rule sets larger than this skip infeasibility diagnosis
	EnableDebugLogging bool
}

// Optimizer solves a Model and reads the solution back into a Basket.
type Optimizer struct {
	solver             domain.LPSolver
	options            domain.SolverOptions
	maxDiagnosisRules  int
	enableDebugLogging bool
}

// SolveOutcome is what the optimizer reports next to the basket or error.
type SolveOutcome struct {
	Status     domain.SolverStatus
	Attempts   int
	Implicated []string
}

// NewOptimizer creates an optimizer
func NewOptimizer(config OptimizerConfig) *Optimizer {
	opts := config.Options
	defaults := domain.DefaultSolverOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if config.MaxDiagnosisRules <= 0 {
		config.MaxDiagnosisRules = 64
	}
	return &Optimizer{
		solver:             config.Solver,
		options:            opts,
		maxDiagnosisRules:  config.MaxDiagnosisRules,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Optimize solves the model. It returns the basket on an optimal solve and a
// typed error otherwise: InfeasibleError, UnboundedError or SolverError.
func (o *Optimizer) Optimize(ctx context.Context, model *Model) (*domain.Basket, SolveOutcome, error) {
	if o.solver == nil {
		return nil, SolveOutcome{Status: domain.StatusError}, &domain.SolverError{Backend: "none", Err: errors.New("no LP backend configured")}
	}

	sol, attempts, err := o.solveWithRetry(ctx, model.Program)
	outcome := SolveOutcome{Attempts: attempts}
	if err != nil {
		outcome.Status = domain.StatusError
		return nil, outcome, err
	}
	outcome.Status = sol.Status

	switch sol.Status {
	case domain.StatusOptimal:
		basket := o.assemble(model, sol)
		if o.enableDebugLogging {
			log.Printf("[OPTIMIZE] optimal: %d items, cost=%.4f, attempts=%d", len(basket.Items), basket.TotalCost, attempts)
		}
		return basket, outcome, nil

	case domain.StatusInfeasible:
		outcome.Implicated = o.diagnose(ctx, model)
		log.Printf("[OPTIMIZE] infeasible, implicated rules: %v", outcome.Implicated)
		return nil, outcome, &domain.InfeasibleError{Implicated: outcome.Implicated}

	case domain.StatusUnbounded:
		return nil, outcome, &domain.UnboundedError{Hint: unboundedHint(model.Spec)}
	}

	outcome.Status = domain.StatusError
	return nil, outcome, &domain.SolverError{Backend: o.solver.Name(), Attempts: attempts, Err: fmt.Errorf("unexpected status %q", sol.Status)}
}

// solveWithRetry makes one attempt with the configured options and, on a
// technical failure, one more with the defaults.
func (o *Optimizer) solveWithRetry(ctx context.Context, program *domain.LinearProgram) (*domain.Solution, int, error) {
	sol, err := o.solveOnce(ctx, program, o.options)
	if err == nil {
		return sol, 1, nil
	}
	if ctx.Err() != nil {
		return nil, 1, &domain.SolverError{Backend: o.solver.Name(), Attempts: 1, Err: err}
	}

	log.Printf("[OPTIMIZE] solve failed, retrying with default options: %v", err)
	sol, err = o.solveOnce(ctx, program, domain.DefaultSolverOptions())
	if err != nil {
		return nil, 2, &domain.SolverError{Backend: o.solver.Name(), Attempts: 2, Err: err}
	}
	return sol, 2, nil
}

func (o *Optimizer) solveOnce(ctx context.Context, program *domain.LinearProgram, opts domain.SolverOptions) (*domain.Solution, error) {
	prepared, err := o.solver.Build(program, opts)
	if err != nil {
		return nil, err
	}

	solveCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	sol, err := prepared.Solve(solveCtx)
	if err != nil {
		return nil, err
	}
	if sol.Status == domain.StatusOptimal && len(sol.X) != len(program.Variables) {
		return nil, fmt.Errorf("solution has %d values for %d variables", len(sol.X), len(program.Variables))
	}
	return sol, nil
}

// diagnose runs a deletion filter over the rules: a rule is dropped for good
// when the program stays infeasible without it. What remains is an
// irreducible infeasible subset.
func (o *Optimizer) diagnose(ctx context.Context, model *Model) []string {
	seen := make(map[int]bool)
	var rules []int
	for _, c := range model.Program.Constraints {
		if c.RuleIndex >= 0 && !seen[c.RuleIndex] {
			seen[c.RuleIndex] = true
			rules = append(rules, c.RuleIndex)
		}
	}
	sort.Ints(rules)
	if len(rules) > o.maxDiagnosisRules {
		log.Printf("[OPTIMIZE] %d rules exceed the diagnosis limit of %d, skipping", len(rules), o.maxDiagnosisRules)
		return nil
	}

	removed := make(map[int]bool)
	for _, candidate := range rules {
		removed[candidate] = true
		feasible, err := o.feasible(ctx, model.Program, removed)
		if err != nil {
			log.Printf("[OPTIMIZE] diagnosis aborted: %v", err)
			return nil
		}
		if feasible {
			delete(removed, candidate)
		}
	}

	var implicated []string
	for _, idx := range rules {
		if !removed[idx] {
			implicated = append(implicated, model.Spec.Rules[idx].Label())
		}
	}
	return implicated
}

// feasible solves the program without the removed rules and with a zero
// objective.
func (o *Optimizer) feasible(ctx context.Context, program *domain.LinearProgram, removed map[int]bool) (bool, error) {
	sub := &domain.LinearProgram{
		Variables: program.Variables,
		Objective: make([]float64, len(program.Variables)),
		Fixed:     program.Fixed,
	}
	for _, c := range program.Constraints {
		if !removed[c.RuleIndex] {
			sub.Constraints = append(sub.Constraints, c)
		}
	}
	sol, _, err := o.solveWithRetry(ctx, sub)
	if err != nil {
		return false, err
	}
	return sol.Status != domain.StatusInfeasible, nil
}

// assemble turns solver output into a basket. Only positive quantities
// become items; nutrient totals cover nutrients stated by any bought product.
func (o *Optimizer) assemble(model *Model, sol *domain.Solution) *domain.Basket {
	basket := &domain.Basket{
		ReferenceUnit: model.Reference,
		Nutrients:     make(domain.NutrientProfile),
	}

	for j, q := range sol.X {
		if q <= zeroQuantity || model.Program.IsFixed(j) {
			continue
		}
		p := &model.Products[j]
		cost := q * p.PricePerUnit
		basket.Items = append(basket.Items, domain.BasketItem{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Quantity:  q,
			Grams:     q * model.Reference.Grams,
			Cost:      cost,
		})
		basket.TotalCost += cost
		for n, v := range p.Nutrients {
			basket.Nutrients[n] += v * q
		}
	}

	basket.Objective = sol.Objective
	if model.Spec.Objective.EffectiveSense() == domain.MaximizeNutrient {
		basket.Objective = -sol.Objective
	}
	if math.Abs(basket.Objective) < zeroQuantity {
		basket.Objective = 0
	}
	return basket
}

func unboundedHint(spec domain.ConstraintSpec) string {
	if spec.Objective.EffectiveSense() == domain.MaximizeNutrient {
		return fmt.Sprintf("add a max %s rule, a budget cap or product caps", spec.Objective.Nutrient)
	}
	return "a product has a negative price and no quantity cap"
}
