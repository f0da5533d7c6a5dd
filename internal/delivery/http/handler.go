package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/macrolens/grocer/internal/domain"
	"github.com/macrolens/grocer/internal/usecase"
)

// Version is reported by the health endpoint and the CLI.
const Version = "1.0.0"

// Planner is the use case surface the handlers need
type Planner interface {
	Plan(ctx context.Context, req *usecase.PlanRequest) (*domain.PlanResult, error)
	Normalize(ctx context.Context, products []domain.RawProduct) (*domain.Catalog, error)
	Rules() domain.RuleSet
	GetRun(ctx context.Context, id string) (*domain.StoredRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.StoredRun, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	planner Planner
}

// NewHandler creates a new HTTP handler
func NewHandler(planner Planner) *Handler {
	return &Handler{planner: planner}
}

// normalizeRequest is the body of POST /catalog/normalize
type normalizeRequest struct {
	Products []domain.RawProduct `json:"products"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "grocer",
		"version": Version,
	})
}

// OptimizeBasket runs the full pipeline for the posted catalog and spec
func (h *Handler) OptimizeBasket(c *gin.Context) {
	if h.planner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "planner not configured"})
		return
	}

	var req usecase.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.planner.Plan(c.Request.Context(), &req)
	if err != nil {
		status := statusForError(err)
		log.Printf("[HTTP] optimize failed (%d): %v", status, err)
		body := gin.H{"error": err.Error()}
		if result != nil {
			body["report"] = result.Report
		}
		var infeasible *domain.InfeasibleError
		if errors.As(err, &infeasible) {
			body["implicatedRules"] = infeasible.Implicated
		}
		var consistency *domain.ConsistencyError
		if errors.As(err, &consistency) {
			body["violations"] = consistency.Violations
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, result)
}

// NormalizeCatalog returns the canonical catalog for the posted records
func (h *Handler) NormalizeCatalog(c *gin.Context) {
	if h.planner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "planner not configured"})
		return
	}

	var req normalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	catalog, err := h.planner.Normalize(c.Request.Context(), req.Products)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// GetRun returns one persisted run
func (h *Handler) GetRun(c *gin.Context) {
	if h.planner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "planner not configured"})
		return
	}

	run, err := h.planner.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns returns recent runs, newest first
func (h *Handler) ListRuns(c *gin.Context) {
	if h.planner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "planner not configured"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	runs, err := h.planner.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []domain.StoredRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRules returns the active rule set
func (h *Handler) GetRules(c *gin.Context) {
	if h.planner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "planner not configured"})
		return
	}
	c.JSON(http.StatusOK, h.planner.Rules())
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrDataQuality),
		errors.Is(err, domain.ErrEmptyCatalog):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInfeasible), errors.Is(err, domain.ErrUnbounded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSolver):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrCatalogSourceFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
