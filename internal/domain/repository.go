package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations. Values are
// opaque encoded payloads; a missing or expired key returns ErrCacheMiss.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogSource hands the core a fully materialized catalog. Implementations
// own authentication, pagination and retries; the core never sees them.
type CatalogSource interface {
	Name() string
	Products(ctx context.Context) ([]RawProduct, error)
}

// RulesProvider returns the current constraint spec and taxonomy snapshot.
type RulesProvider interface {
	Current() RuleSet
}

// RuleSet is the configuration snapshot a run reads once.
type RuleSet struct {
	Spec     ConstraintSpec `json:"spec" yaml:"spec" toml:"spec"`
	Taxonomy Taxonomy       `json:"taxonomy" yaml:"taxonomy" toml:"taxonomy"`
	Source   string         `json:"source,omitempty" yaml:"-" toml:"-"`
}

// StoredRun is a persisted plan outcome.
type StoredRun struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	SpecName  string     `json:"specName"`
	Status    string     `json:"status"`
	Result    PlanResult `json:"result"`
}

// RunRepository persists plan outcomes for later retrieval by ID.
type RunRepository interface {
	Save(ctx context.Context, run *StoredRun) error
	Get(ctx context.Context, id string) (*StoredRun, error)
	List(ctx context.Context, limit int) ([]StoredRun, error)
}
