package publicdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/metrics"
)

// DefaultBaseURL is the cosmetics ingredient service of the public data portal
const DefaultBaseURL = "https://apis.data.go.kr/1471000/CsmtcsIngdCpntInfoService01"

const (
	searchPath     = "/getCsmtcsIngdCpntList"
	pageSize       = "10"
	maxAttempts    = 3
	baseBackoff    = 500 * time.Millisecond
	maxBodyBytes   = 1 << 20
	userAgent      = "Clony/1.0"
	defaultTimeout = 5 * time.Second
)

// Config holds the client settings
type Config struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client looks up ingredient names in the public data portal
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	backoff     func(attempt int) time.Duration
	logger      *zap.Logger
}

// NewClient creates a new public data API client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	// The portal's development keys allow roughly 10 requests per second
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		backoff:     exponentialBackoff,
		logger:      logger.Named("publicdata"),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "publicdata-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A name the portal does not know is a healthy answer
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrIngredientNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c
}

// Lookup resolves name to the first matching ingredient record.
// Returns ErrIngredientNotFound when the portal has no match and wraps
// ErrLookupFailure or ErrRateLimited for everything else.
func (c *Client) Lookup(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrIngredientNotFound
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, name)
	})
	metrics.LookupDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrLookupFailure, err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*domain.CanonicalRecord), nil
}

// search performs the request with retries on transport errors and 5xx
func (c *Client) search(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
	params := url.Values{}
	params.Add("serviceKey", c.apiKey)
	params.Add("pageNo", "1")
	params.Add("numOfRows", pageSize)
	params.Add("type", "json")
	params.Add("ingdName", name)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, searchPath, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrLookupFailure, ctx.Err())
			}
			c.logger.Debug("request failed",
				zap.Int("attempt", attempt),
				zap.String("name", name),
				zap.Error(err))
			lastErr = err
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case status == http.StatusNotFound:
			return nil, domain.ErrIngredientNotFound
		case status == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: status %d", domain.ErrRateLimited, status)
		case status >= http.StatusInternalServerError:
			c.logger.Debug("server error",
				zap.Int("attempt", attempt),
				zap.Int("status", status))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrLookupFailure, status)
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		case status != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d", domain.ErrLookupFailure, status)
		}

		record, err := parseRecord(body)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("ingredient found",
			zap.String("name", name),
			zap.String("canonical", record.IngdName))
		return record, nil
	}

	c.logger.Debug("all attempts failed", zap.String("name", name), zap.Error(lastErr))
	return nil, lastErr
}

// doRequest executes an HTTP GET request and returns the body and status
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to create request: %v", domain.ErrLookupFailure, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, application/xml;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrLookupFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read body: %v", domain.ErrLookupFailure, err)
	}
	return body, resp.StatusCode, nil
}

// wait sleeps before the next attempt unless it was the last one or ctx ends
func (c *Client) wait(ctx context.Context, attempt int) error {
	if attempt == maxAttempts {
		return nil
	}
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrLookupFailure, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return baseBackoff * time.Duration(1<<(attempt-1))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, domain.ErrIngredientNotFound):
		return "not_found"
	}
	return "error"
}
