package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/macrolens/grocer/internal/domain"
)

// Payload formats the HTTP source understands.
const (
	FormatRaw = "raw" // pages of domain.RawProduct
	FormatOFF = "off" // pages of Open Food Facts style records
)

// HTTPSourceConfig holds configuration for the HTTP catalog source
type HTTPSourceConfig struct {
	BaseURL           string
	APIKey            string
	Format            string
	PageSize          int
	MaxPages          int
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	Timeout           time.Duration
	Debug             bool
}

// HTTPSource pages through a remote catalog API
type HTTPSource struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	format      string
	pageSize    int
	maxPages    int
	maxRetries  int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	debug       bool
}

// page is one response of the catalog API. Next is the next page number,
// zero on the last page.
type page struct {
	Products json.RawMessage `json:"products"`
	Next     int             `json:"next"`
}

// NewHTTPSource creates a new catalog API client
func NewHTTPSource(config HTTPSourceConfig) *HTTPSource {
	if config.Format == "" {
		config.Format = FormatRaw
	}
	if config.PageSize <= 0 {
		config.PageSize = 200
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 500
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPSource{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		format:      config.Format,
		pageSize:    config.PageSize,
		maxPages:    config.MaxPages,
		maxRetries:  config.MaxRetries,
		rateLimiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		backoff:     exponentialBackoff,
		debug:       config.Debug,
	}
}

// SetDebug enables or disables verbose request logging
func (c *HTTPSource) SetDebug(debug bool) {
	c.debug = debug
}

// Name returns the source name
func (c *HTTPSource) Name() string {
	return "http:" + c.baseURL
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// Products fetches every page and returns the whole catalog
func (c *HTTPSource) Products(ctx context.Context) ([]domain.RawProduct, error) {
	var all []domain.RawProduct
	next := 1
	for pages := 0; next > 0; pages++ {
		if pages >= c.maxPages {
			return nil, fmt.Errorf("%w: more than %d pages", domain.ErrCatalogSourceFailure, c.maxPages)
		}
		p, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		products, err := c.decodeProducts(p.Products)
		if err != nil {
			return nil, err
		}
		all = append(all, products...)
		if p.Next != 0 && p.Next <= next {
			return nil, fmt.Errorf("%w: page %d points back to page %d", domain.ErrCatalogSourceFailure, next, p.Next)
		}
		next = p.Next
	}

	log.Printf("[CATALOG] fetched %d products from %s", len(all), c.baseURL)
	return all, nil
}

func (c *HTTPSource) decodeProducts(data json.RawMessage) ([]domain.RawProduct, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	switch c.format {
	case FormatOFF:
		var records []OFFProduct
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		out := make([]domain.RawProduct, 0, len(records))
		for i := range records {
			out = append(out, MapOFFProduct(&records[i]))
		}
		return out, nil
	default:
		var out []domain.RawProduct
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return out, nil
	}
}

// doRequest executes an HTTP GET request with proper headers
func (c *HTTPSource) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Grocer/1.0")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogSourceFailure, err)
	}
	return resp, nil
}

// fetchPage retries transient failures (network errors, 429 and 5xx) with
// exponential backoff. Other 4xx responses fail immediately.
func (c *HTTPSource) fetchPage(ctx context.Context, pageNumber int) (*page, error) {
	params := url.Values{}
	params.Add("page", strconv.Itoa(pageNumber))
	params.Add("pageSize", strconv.Itoa(c.pageSize))
	reqURL := fmt.Sprintf("%s/v1/products?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		if c.debug {
			log.Printf("[CATALOG] GET %s (attempt %d)", reqURL, attempt)
		}
		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			log.Printf("[CATALOG] request error (attempt %d): %v", attempt, err)
			lastErr = err
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Printf("[CATALOG] API error (attempt %d) - status: %d", attempt, resp.StatusCode)
			lastErr = fmt.Errorf("%w: status %d", domain.ErrCatalogSourceFailure, resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, lastErr
			}
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		if readErr != nil {
			lastErr = fmt.Errorf("%w: reading body: %v", domain.ErrCatalogSourceFailure, readErr)
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &p, nil
	}

	log.Printf("[CATALOG] all retries failed for page %d", pageNumber)
	return nil, lastErr
}

func (c *HTTPSource) wait(ctx context.Context, attempt int) error {
	if attempt >= c.maxRetries {
		return nil
	}
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Join(domain.ErrCatalogSourceFailure, ctx.Err())
	case <-timer.C:
		return nil
	}
}
