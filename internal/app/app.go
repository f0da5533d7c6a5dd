// Package app assembles the planner and its infrastructure from
// configuration. The HTTP server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/macrolens/grocer/config"
	"github.com/macrolens/grocer/internal/domain"
	"github.com/macrolens/grocer/internal/infrastructure/cache"
	"github.com/macrolens/grocer/internal/infrastructure/catalog"
	"github.com/macrolens/grocer/internal/infrastructure/lp"
	"github.com/macrolens/grocer/internal/infrastructure/rules"
	"github.com/macrolens/grocer/internal/infrastructure/store"
	"github.com/macrolens/grocer/internal/usecase"
)

// App is a wired planner plus the resources it owns.
type App struct {
	Planner *usecase.PlannerService
	Rules   domain.RulesProvider
	Source  domain.CatalogSource

	watcher *rules.Watcher
	closers []func() error
}

// New wires every component named by cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	debug := cfg.Server.Debug

	cacheRepo, err := a.openCache(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}

	runs, err := a.openStore(cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.loadRules(cfg.Rules); err != nil {
		a.Close()
		return nil, err
	}

	a.Source = newSource(cfg.Catalog, debug)

	solver := lp.NewSimplexSolver(lp.Config{EnableDebugLogging: debug})
	opts := domain.DefaultSolverOptions()
	if cfg.Solver.Tolerance > 0 {
		opts.Tolerance = cfg.Solver.Tolerance
	}
	if cfg.Solver.Timeout > 0 {
		opts.Timeout = cfg.Solver.Timeout
	}

	deps := usecase.PlannerDeps{
		Normalizer: usecase.NewNormalizer(usecase.NormalizerConfig{
			ReferenceUnit:       domain.ReferenceUnit{Grams: cfg.Normalizer.ReferenceGrams},
			Workers:             cfg.Normalizer.Workers,
			EnableFuzzyMatching: cfg.Normalizer.FuzzyMatching,
			EnableDebugLogging:  debug,
		}),
		Builder: usecase.NewModelBuilder(usecase.ModelBuilderConfig{EnableDebugLogging: debug}),
		Optimizer: usecase.NewOptimizer(usecase.OptimizerConfig{
			Solver:             solver,
			Options:            opts,
			MaxDiagnosisRules:  cfg.Solver.MaxDiagnosisRules,
			EnableDebugLogging: debug,
		}),
		Validator: usecase.NewValidator(usecase.ValidatorConfig{
			Tolerance:          cfg.Solver.ValidationTolerance,
			EnableDebugLogging: debug,
		}),
		Cache:  cacheRepo,
		Source: a.Source,
		Rules:  a.Rules,
	}
	// a nil *SQLiteStore must not become a non-nil interface
	if runs != nil {
		deps.Runs = runs
	}

	a.Planner = usecase.NewPlannerService(deps, usecase.PlannerConfig{
		CacheTTL:           cfg.Cache.TTL,
		PersistRuns:        runs != nil,
		EnableDebugLogging: debug,
	})

	log.Printf("[APP] solver=%s tolerance=%g timeout=%s cache=%s store=%v catalog=%s",
		solver.Name(), opts.Tolerance, opts.Timeout, cfg.Cache.Type, runs != nil, cfg.Catalog.Source)
	return a, nil
}

// WatchRules reloads the rule file until ctx is done. It returns at once when
// hot reload is disabled.
func (a *App) WatchRules(ctx context.Context) error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Run(ctx)
}

// Close releases the cache and store.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) openCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, error) {
	switch cfg.Type {
	case "memory":
		c := cache.NewMemoryCache(0)
		a.closers = append(a.closers, c.Close)
		return c, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return nil, nil
	}
}

func (a *App) openStore(cfg config.StoreConfig) (*store.SQLiteStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

func (a *App) loadRules(cfg config.RulesConfig) error {
	switch {
	case cfg.Path == "":
		a.Rules = rules.NewStaticProvider(domain.RuleSet{})
	case cfg.Watch:
		w, err := rules.NewWatcher(cfg.Path)
		if err != nil {
			return err
		}
		a.watcher = w
		a.Rules = w
	default:
		set, err := rules.Load(cfg.Path)
		if err != nil {
			return err
		}
		a.Rules = rules.NewStaticProvider(set)
	}
	return nil
}

func newSource(cfg config.CatalogConfig, debug bool) domain.CatalogSource {
	switch cfg.Source {
	case "file":
		return catalog.NewFileSource(cfg.Path)
	case "http":
		return catalog.NewHTTPSource(catalog.HTTPSourceConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Format:            cfg.Format,
			PageSize:          cfg.PageSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			MaxRetries:        cfg.MaxRetries,
			Timeout:           cfg.Timeout,
			Debug:             debug,
		})
	default:
		return nil
	}
}
