package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/macrolens/grocer/internal/domain"
)

// PlannerConfig holds configuration for the planner service
type PlannerConfig struct {
	CacheTTL           time.Duration
	PersistRuns        bool
	EnableDebugLogging bool
}

// PlannerDeps are the collaborators of the planner. Cache, Runs, Source and
// Rules are optional.
type PlannerDeps struct {
	Normalizer *Normalizer
	Builder    *ModelBuilder
	Optimizer  *Optimizer
	Validator  *Validator
	Cache      domain.CacheRepository
	Runs       domain.RunRepository
	Source     domain.CatalogSource
	Rules      domain.RulesProvider
}

// PlanRequest is one optimization request. An empty Products list reads the
// configured catalog source; a nil Spec uses the current rule set.
type PlanRequest struct {
	Products []domain.RawProduct   `json:"products,omitempty"`
	Spec     *domain.ConstraintSpec `json:"spec,omitempty"`
}

// PlannerService runs the pipeline: normalize, build, optimize, validate.
type PlannerService struct {
	normalizer         *Normalizer
	builder            *ModelBuilder
	optimizer          *Optimizer
	validator          *Validator
	cache              domain.CacheRepository
	runs               domain.RunRepository
	source             domain.CatalogSource
	rules              domain.RulesProvider
	cacheTTL           time.Duration
	persistRuns        bool
	enableDebugLogging bool
	now                func() time.Time
}

// NewPlannerService creates a new planner service with dependencies
func NewPlannerService(deps PlannerDeps, config PlannerConfig) *PlannerService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	if deps.Normalizer == nil {
		deps.Normalizer = NewNormalizer(NormalizerConfig{})
	}
	if deps.Builder == nil {
		deps.Builder = NewModelBuilder(ModelBuilderConfig{})
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator(ValidatorConfig{})
	}

	return &PlannerService{
		normalizer:         deps.Normalizer,
		builder:            deps.Builder,
		optimizer:          deps.Optimizer,
		validator:          deps.Validator,
		cache:              deps.Cache,
		runs:               deps.Runs,
		source:             deps.Source,
		rules:              deps.Rules,
		cacheTTL:           cacheTTL,
		persistRuns:        config.PersistRuns && deps.Runs != nil,
		enableDebugLogging: config.EnableDebugLogging,
		now:                time.Now,
	}
}

// Plan runs the whole pipeline. The returned result always carries the
// report, also when err is non-nil.
func (s *PlannerService) Plan(ctx context.Context, req *PlanRequest) (*domain.PlanResult, error) {
	if req == nil {
		req = &PlanRequest{}
	}
	started := s.now()
	result := &domain.PlanResult{Report: domain.Report{RunID: uuid.NewString(), StartedAt: started}}

	basket, err := s.plan(ctx, req, &result.Report)
	result.Basket = basket
	result.Report.Duration = s.now().Sub(started)
	if err != nil {
		result.Report.Error = err.Error()
		if result.Report.SolverStatus == "" {
			result.Report.SolverStatus = domain.StatusError
		}
	}

	s.persist(ctx, req, result)
	return result, err
}

func (s *PlannerService) plan(ctx context.Context, req *PlanRequest, report *domain.Report) (*domain.Basket, error) {
	ruleSet := s.currentRules()
	spec := req.Spec
	if spec == nil {
		if len(ruleSet.Spec.Rules) == 0 && ruleSet.Spec.Objective.EffectiveSense() == domain.MinimizeCost {
			return nil, fmt.Errorf("%w: no constraint spec in request and none configured", domain.ErrInvalidRequest)
		}
		spec = &ruleSet.Spec
	}
	spec = spec.Clone()
	spec.Canonicalize()

	catalog, err := s.normalize(ctx, req.Products, ruleSet.Taxonomy, report)
	if err != nil {
		return nil, err
	}

	model, err := s.builder.Build(catalog, spec)
	if err != nil {
		return nil, err
	}
	report.Excluded = model.Excluded
	report.Variables = len(model.Program.Variables)
	report.Constraints = len(model.Program.Constraints)

	if s.optimizer == nil {
		return nil, &domain.SolverError{Backend: "none", Err: errors.New("no optimizer configured")}
	}
	basket, outcome, err := s.optimizer.Optimize(ctx, model)
	report.SolverStatus = outcome.Status
	report.SolverAttempts = outcome.Attempts
	report.ImplicatedRules = outcome.Implicated
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(model, basket); err != nil {
		return nil, err
	}
	return basket, nil
}

// Normalize runs only the first stage and returns the canonical catalog.
func (s *PlannerService) Normalize(ctx context.Context, products []domain.RawProduct) (*domain.Catalog, error) {
	report := &domain.Report{}
	return s.normalize(ctx, products, s.currentRules().Taxonomy, report)
}

// Rules returns the active rule set.
func (s *PlannerService) Rules() domain.RuleSet {
	return s.currentRules()
}

// GetRun returns a persisted run.
func (s *PlannerService) GetRun(ctx context.Context, id string) (*domain.StoredRun, error) {
	if s.runs == nil {
		return nil, domain.ErrRunNotFound
	}
	return s.runs.Get(ctx, id)
}

// ListRuns returns the most recent persisted runs.
func (s *PlannerService) ListRuns(ctx context.Context, limit int) ([]domain.StoredRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.List(ctx, limit)
}

func (s *PlannerService) currentRules() domain.RuleSet {
	if s.rules == nil {
		return domain.RuleSet{Taxonomy: domain.DefaultTaxonomy}
	}
	return s.rules.Current()
}

// normalize materializes the catalog and normalizes it, going through the
// cache when one is configured.
func (s *PlannerService) normalize(ctx context.Context, products []domain.RawProduct, taxonomy domain.Taxonomy, report *domain.Report) (*domain.Catalog, error) {
	if len(products) == 0 {
		if s.source == nil {
			return nil, fmt.Errorf("%w: no products in request and no catalog source configured", domain.ErrInvalidRequest)
		}
		fetched, err := s.source.Products(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrCatalogSourceFailure, s.source.Name(), err)
		}
		products = fetched
		report.CatalogSource = s.source.Name()
	} else {
		report.CatalogSource = "request"
	}

	normalizer := s.normalizer.WithTaxonomy(taxonomy)

	cacheKey := ""
	if s.cache != nil {
		key, err := s.generateCacheKey(normalizer, products, taxonomy)
		if err == nil {
			cacheKey = key
			if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
				report.CacheHit = true
				report.Normalization = cached.Stats
				if s.enableDebugLogging {
					log.Printf("[PLANNER] normalized catalog served from cache (%s)", cacheKey)
				}
				return cached, nil
			}
		}
	}

	catalog, err := normalizer.Normalize(ctx, products)
	if err != nil {
		return nil, err
	}
	report.Normalization = catalog.Stats

	if cacheKey != "" {
		if err := s.setInCache(ctx, cacheKey, catalog); err != nil {
			log.Printf("[PLANNER] failed to cache normalized catalog: %v", err)
		}
	}
	return catalog, nil
}

// generateCacheKey fingerprints everything the normalized catalog depends on.
// Format: "catalog:{vocabulary}:{sha256}"
func (s *PlannerService) generateCacheKey(n *Normalizer, products []domain.RawProduct, taxonomy domain.Taxonomy) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(n.ReferenceUnit()); err != nil {
		return "", err
	}
	if err := enc.Encode(taxonomy); err != nil {
		return "", err
	}
	if err := enc.Encode(products); err != nil {
		return "", err
	}
	return fmt.Sprintf("catalog:%s:%s", n.VocabularyVersion(), hex.EncodeToString(h.Sum(nil))), nil
}

func (s *PlannerService) getFromCache(ctx context.Context, key string) (*domain.Catalog, error) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &catalog, nil
}

func (s *PlannerService) setInCache(ctx context.Context, key string, catalog *domain.Catalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}

func (s *PlannerService) persist(ctx context.Context, req *PlanRequest, result *domain.PlanResult) {
	if !s.persistRuns {
		return
	}
	status := string(result.Report.SolverStatus)
	if result.Basket != nil {
		status = "accepted"
	}
	specName := ""
	if req.Spec != nil {
		specName = req.Spec.Name
	} else {
		specName = s.currentRules().Spec.Name
	}
	run := &domain.StoredRun{
		ID:        result.Report.RunID,
		CreatedAt: result.Report.StartedAt,
		SpecName:  specName,
		Status:    status,
		Result:    *result,
	}
	if err := s.runs.Save(ctx, run); err != nil {
		log.Printf("[PLANNER] failed to persist run %s: %v", run.ID, err)
	}
}
