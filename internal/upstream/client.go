// Package upstream is the HTTP client for the expense server that owns the records.
//
// Requests go through go-retryablehttp for transient failures and a gobreaker
// circuit breaker so a dead upstream fails fast instead of stacking retries.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/wire"
)

// Upstream endpoints.
const (
	EndpointExpenses    = "/api/expenses"
	EndpointSettlements = "/api/settlements"
	EndpointBalances    = "/api/balances"
	EndpointSuggestions = "/api/settlement-suggestions"
)

// ErrUnavailable wraps every failure caused by the upstream being unreachable or failing.
var ErrUnavailable = errors.New("upstream unavailable")

// StatusError is returned when the upstream replies with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Config controls the transport and breaker.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// BreakerFailures is how many consecutive failures open the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before a trial request.
	BreakerTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local upstream.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:5000",
		Timeout:         5 * time.Second,
		RetryMax:        2,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client reads records and server-side results from the upstream API.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a client. A nil logger uses slog.Default; nil metrics disables counting.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "upstream")

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger
	// Hand back the last response so non-2xx statuses become StatusError.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultConfig().BreakerFailures
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    rc,
		logger:  logger,
		metrics: m,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: isSuccessful,
	})
	return c
}

// isSuccessful keeps client-side problems from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

// BreakerState reports "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ListExpenses fetches every expense. Records without an id get a generated one
// so they can still be referenced in rejection reports.
func (c *Client) ListExpenses(ctx context.Context) ([]models.Expense, error) {
	var resp wire.ExpensesResponse
	if err := c.get(ctx, EndpointExpenses, &resp); err != nil {
		return nil, err
	}
	expenses := resp.Models()
	for i := range expenses {
		if expenses[i].ID == "" {
			expenses[i].ID = uuid.NewString()
		}
	}
	return expenses, nil
}

// ListSettlements fetches every recorded payment.
func (c *Client) ListSettlements(ctx context.Context) ([]models.Settlement, error) {
	var list wire.SettlementList
	if err := c.get(ctx, EndpointSettlements, &list); err != nil {
		return nil, err
	}
	settlements := list.Models()
	for i := range settlements {
		if settlements[i].ID == "" {
			settlements[i].ID = uuid.NewString()
		}
	}
	return settlements, nil
}

// GetBalances fetches the balances the upstream computed itself.
func (c *Client) GetBalances(ctx context.Context) (calculator.Balances, error) {
	var resp wire.BalancesResponse
	if err := c.get(ctx, EndpointBalances, &resp); err != nil {
		return nil, err
	}
	balances, err := resp.Calculator()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", EndpointBalances, err)
	}
	return balances, nil
}

// GetSuggestions fetches the upstream's own settlement suggestions.
func (c *Client) GetSuggestions(ctx context.Context) ([]calculator.Suggestion, error) {
	var resp wire.SuggestionsResponse
	if err := c.get(ctx, EndpointSuggestions, &resp); err != nil {
		return nil, err
	}
	suggestions, err := resp.Calculator()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", EndpointSuggestions, err)
	}
	return suggestions, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.fetch(ctx, endpoint, out)
	})

	switch {
	case err == nil:
		c.metrics.ObserveUpstream(endpoint, metrics.OutcomeOK)
		c.logger.Debug("Upstream request successful", "endpoint", endpoint, "duration_ms", time.Since(start).Milliseconds())
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.ObserveUpstream(endpoint, metrics.OutcomeBreakerOpen)
		c.logger.Warn("Upstream request rejected by circuit breaker", "endpoint", endpoint)
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
	default:
		c.metrics.ObserveUpstream(endpoint, metrics.OutcomeError)
		c.logger.Error("Upstream request failed", "endpoint", endpoint, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (c *Client) fetch(ctx context.Context, endpoint string, out interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
