package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/grocer/internal/domain"
	"github.com/macrolens/grocer/internal/infrastructure/lp"
)

// MockSolver is a hand-written domain.LPSolver that replays scripted results
type MockSolver struct {
	results []mockSolve
	calls   int
	options []domain.SolverOptions
}

type mockSolve struct {
	solution *domain.Solution
	err      error
	block    bool // wait for the context instead of returning
}

func (m *MockSolver) Name() string { return "mock" }

func (m *MockSolver) Build(program *domain.LinearProgram, opts domain.SolverOptions) (domain.PreparedProgram, error) {
	m.options = append(m.options, opts)
	i := m.calls
	m.calls++
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return &mockPrepared{result: m.results[i]}, nil
}

type mockPrepared struct {
	result mockSolve
}

func (p *mockPrepared) Solve(ctx context.Context) (*domain.Solution, error) {
	if p.result.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.result.solution, p.result.err
}

func buildModel(t *testing.T, spec *domain.ConstraintSpec) *Model {
	t.Helper()
	model, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)
	require.NoError(t, err)
	return model
}

func scenarioSpec() *domain.ConstraintSpec {
	return &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 300),
		nutrientRule(domain.NutrientProtein, domain.DirectionMin, 40),
	}}
}

// scenarioModel drops the spinach so only A and B compete
func scenarioModel(t *testing.T, spec *domain.ConstraintSpec) *Model {
	t.Helper()
	catalog := testCatalog()
	catalog.Products = catalog.Products[:2]
	model, err := NewModelBuilder(ModelBuilderConfig{}).Build(catalog, spec)
	require.NoError(t, err)
	return model
}

func newSimplexOptimizer() *Optimizer {
	return NewOptimizer(OptimizerConfig{Solver: lp.NewSimplexSolver(lp.Config{})})
}

func TestOptimizer_Scenario(t *testing.T) {
	model := scenarioModel(t, scenarioSpec())

	basket, outcome, err := newSimplexOptimizer().Optimize(context.Background(), model)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	// the optimum is an edge: any vertex on it costs 4
	assert.InDelta(t, 4.0, basket.TotalCost, 1e-6)
	assert.InDelta(t, 4.0, basket.Objective, 1e-6)
	assert.GreaterOrEqual(t, basket.Nutrients[domain.NutrientEnergy], 300-1e-6)
	assert.GreaterOrEqual(t, basket.Nutrients[domain.NutrientProtein], 40-1e-6)
	for _, it := range basket.Items {
		assert.Greater(t, it.Quantity, 0.0)
		assert.InDelta(t, it.Quantity*100, it.Grams, 1e-9)
	}

	require.NoError(t, NewValidator(ValidatorConfig{}).Validate(model, basket))
}

func TestOptimizer_InfeasibleIsolatesConflict(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMax, 500),
		{Kind: domain.RuleBudget, Direction: domain.DirectionMax, Threshold: 1000},
		nutrientRule(domain.NutrientProtein, domain.DirectionMin, 300),
	}}
	model := scenarioModel(t, spec)

	basket, outcome, err := newSimplexOptimizer().Optimize(context.Background(), model)

	assert.Nil(t, basket)
	var infeasible *domain.InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.ErrorIs(t, err, domain.ErrInfeasible)
	assert.Equal(t, domain.StatusInfeasible, outcome.Status)
	// the generous budget is not part of the conflict
	assert.Equal(t, []string{"max_energy", "min_protein"}, infeasible.Implicated)
	assert.Equal(t, infeasible.Implicated, outcome.Implicated)
}

func TestOptimizer_DiagnosisLimit(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMax, 500),
		nutrientRule(domain.NutrientProtein, domain.DirectionMin, 300),
	}}
	opt := NewOptimizer(OptimizerConfig{Solver: lp.NewSimplexSolver(lp.Config{}), MaxDiagnosisRules: 1})

	_, outcome, err := opt.Optimize(context.Background(), scenarioModel(t, spec))

	assert.ErrorIs(t, err, domain.ErrInfeasible)
	assert.Empty(t, outcome.Implicated)
}

func TestOptimizer_UnboundedMaximize(t *testing.T) {
	spec := &domain.ConstraintSpec{
		Objective: domain.Objective{Sense: domain.MaximizeNutrient, Nutrient: domain.NutrientProtein},
		Rules:     []domain.Rule{nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 2000)},
	}

	_, outcome, err := newSimplexOptimizer().Optimize(context.Background(), scenarioModel(t, spec))

	var unbounded *domain.UnboundedError
	require.ErrorAs(t, err, &unbounded)
	assert.Contains(t, unbounded.Hint, "max protein")
	assert.Contains(t, err.Error(), "missing upper bound")
	assert.Equal(t, domain.StatusUnbounded, outcome.Status)
}

func TestOptimizer_MaximizeUnderBudget(t *testing.T) {
	spec := &domain.ConstraintSpec{
		Objective: domain.Objective{Sense: domain.MaximizeNutrient, Nutrient: domain.NutrientProtein},
		Rules:     []domain.Rule{{Kind: domain.RuleBudget, Direction: domain.DirectionMax, Threshold: 10}},
	}
	model := scenarioModel(t, spec)

	basket, _, err := newSimplexOptimizer().Optimize(context.Background(), model)

	require.NoError(t, err)
	// protein per unit of cost is 10 for both products
	assert.InDelta(t, 100.0, basket.Objective, 1e-6)
	assert.InDelta(t, 100.0, basket.Nutrients[domain.NutrientProtein], 1e-6)
	assert.LessOrEqual(t, basket.TotalCost, 10+1e-6)
}

func TestOptimizer_ExcludedProductsStayOut(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 100),
		nutrientRule(domain.NutrientSalt, domain.DirectionMax, 5),
	}}
	model := buildModel(t, spec)

	basket, _, err := newSimplexOptimizer().Optimize(context.Background(), model)

	require.NoError(t, err)
	_, hasSpinach := basket.Quantities()["C"]
	assert.False(t, hasSpinach, "a product without salt data cannot enter a salt-capped basket")
	assert.InDelta(t, 1.0, basket.TotalCost, 1e-6)
}

func TestOptimizer_RetriesOnceWithDefaults(t *testing.T) {
	solver := &MockSolver{results: []mockSolve{
		{err: errors.New("numerical trouble")},
		{solution: &domain.Solution{Status: domain.StatusOptimal, X: []float64{3, 1}, Objective: 5}},
	}}
	opt := NewOptimizer(OptimizerConfig{Solver: solver, Options: domain.SolverOptions{Tolerance: 1e-4, Timeout: time.Second}})

	basket, outcome, err := opt.Optimize(context.Background(), scenarioModel(t, scenarioSpec()))

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Attempts)
	require.Len(t, solver.options, 2)
	assert.Equal(t, 1e-4, solver.options[0].Tolerance)
	assert.Equal(t, domain.DefaultSolverOptions(), solver.options[1])
	assert.InDelta(t, 5.0, basket.TotalCost, 1e-9)
}

func TestOptimizer_SolverErrorAfterRetry(t *testing.T) {
	solver := &MockSolver{results: []mockSolve{{err: errors.New("numerical trouble")}}}
	opt := NewOptimizer(OptimizerConfig{Solver: solver})

	_, outcome, err := opt.Optimize(context.Background(), scenarioModel(t, scenarioSpec()))

	var solverErr *domain.SolverError
	require.ErrorAs(t, err, &solverErr)
	assert.ErrorIs(t, err, domain.ErrSolver)
	assert.Equal(t, 2, solverErr.Attempts)
	assert.Equal(t, "mock", solverErr.Backend)
	assert.Equal(t, domain.StatusError, outcome.Status)
	assert.Equal(t, 2, solver.calls)
}

func TestOptimizer_TimeoutIsSolverError(t *testing.T) {
	solver := &MockSolver{results: []mockSolve{{block: true}}}
	opt := NewOptimizer(OptimizerConfig{Solver: solver, Options: domain.SolverOptions{Timeout: 10 * time.Millisecond}})

	// the retry uses the default timeout, so bound the whole call
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := opt.Optimize(ctx, scenarioModel(t, scenarioSpec()))

	assert.ErrorIs(t, err, domain.ErrSolver)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptimizer_CancelledContextIsNotRetried(t *testing.T) {
	solver := &MockSolver{results: []mockSolve{{block: true}}}
	opt := NewOptimizer(OptimizerConfig{Solver: solver})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, outcome, err := opt.Optimize(ctx, scenarioModel(t, scenarioSpec()))

	assert.ErrorIs(t, err, domain.ErrSolver)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 1, solver.calls)
}

func TestOptimizer_WrongSolutionLength(t *testing.T) {
	solver := &MockSolver{results: []mockSolve{{solution: &domain.Solution{Status: domain.StatusOptimal, X: []float64{1}}}}}
	opt := NewOptimizer(OptimizerConfig{Solver: solver})

	_, _, err := opt.Optimize(context.Background(), scenarioModel(t, scenarioSpec()))

	assert.ErrorIs(t, err, domain.ErrSolver)
}

func TestOptimizer_NoSolver(t *testing.T) {
	_, _, err := NewOptimizer(OptimizerConfig{}).Optimize(context.Background(), scenarioModel(t, scenarioSpec()))
	assert.ErrorIs(t, err, domain.ErrSolver)
}
