// Package client provides an HTTP client for the STATSports third-party API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/statsports/internal/config"
	"github.com/raphaelgruber/statsports/internal/models"
)

// API paths.
const (
	PathFullSessions  = "/thirdPartyData/getFullSessionsByDateRange"
	PathPlayerDetails = "/thirdPartyData/getPlayerDetails"
)

// apiTimeLayout is the timestamp format the API expects for range bounds.
const apiTimeLayout = "2006-01-02T15:04:05.000Z"

// ErrHTTPStatus is matched by every *StatusError.
var ErrHTTPStatus = errors.New("unexpected http status")

// StatusError is returned for non-2xx responses that were not retried, or
// whose retries were exhausted.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Is makes errors.Is(err, ErrHTTPStatus) true for status errors.
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// Client talks to the STATSports API. It is safe for sequential use; the
// extraction engine never issues concurrent requests.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	apiVersion string
	authMode   string
	maxRetries int
	backoff    float64
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client from validated configuration. Every attempt of a
// request is bounded by cfg.RequestTimeout unless the caller's context
// carries another limit set with WithAttemptTimeout.
func New(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		apiVersion: cfg.APIVersion,
		authMode:   cfg.AuthMode,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
		sleep:      sleepContext,
	}
}

type attemptTimeoutKey struct{}

// WithAttemptTimeout returns a context under which each attempt of a request,
// retries included, gets at most d instead of the configured request timeout.
func WithAttemptTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, attemptTimeoutKey{}, d)
}

// AttemptTimeout returns the per-attempt limit set on ctx, if any.
func AttemptTimeout(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(attemptTimeoutKey{}).(time.Duration)
	return d, ok && d > 0
}

// FetchSessions returns every session between start and end inclusive.
// An empty slice is a successful "no data" answer; any failure is an error.
func (c *Client) FetchSessions(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	payload := map[string]any{
		"sessionStartDate": start.UTC().Format(apiTimeLayout),
		"sessionEndDate":   end.UTC().Format(apiTimeLayout),
	}
	var sessions []models.Session
	if err := c.post(ctx, PathFullSessions, payload, &sessions); err != nil {
		return nil, fmt.Errorf("fetch sessions %s..%s: %w", payload["sessionStartDate"], payload["sessionEndDate"], err)
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return sessions, nil
}

// FetchPlayerDetails returns player metadata for a session date key such as
// "2024-03-01T00:00:00Z".
func (c *Client) FetchPlayerDetails(ctx context.Context, sessionDate string) ([]models.Player, error) {
	var players []models.Player
	if err := c.post(ctx, PathPlayerDetails, map[string]any{"sessionDate": sessionDate}, &players); err != nil {
		return nil, fmt.Errorf("fetch player details %s: %w", sessionDate, err)
	}
	if players == nil {
		players = []models.Player{}
	}
	return players, nil
}

// post sends a JSON POST, retrying timeouts, connection failures and
// 429/5xx responses with exponential backoff (backoff^attempt seconds).
// Each attempt runs under its own timeout; ctx bounds the whole call.
func (c *Client) post(ctx context.Context, path string, payload map[string]any, result any) error {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	if c.authMode == config.AuthModeBody {
		body["thirdPartyApiId"] = c.apiKey
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	timeout := c.timeout
	if d, ok := AttemptTimeout(ctx); ok {
		timeout = d
	}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		respBody, err := c.do(attemptCtx, url, reqBody)
		cancel()
		if err == nil {
			if len(bytes.TrimSpace(respBody)) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
			return nil
		}

		if attempt > c.maxRetries || !retryable(ctx, err) {
			return err
		}

		wait := time.Duration(math.Pow(c.backoff, float64(attempt)) * float64(time.Second))
		c.logger.Debug("retrying request", "path", path, "attempt", attempt, "wait", wait, "error", err)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, url string, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-version", c.apiVersion)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.authMode == config.AuthModeHeaders {
		req.Header.Set("X-API-KEY", c.apiKey)
		if c.apiSecret != "" {
			req.Header.Set("X-API-SECRET", c.apiSecret)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(body), 512)}
	}
	return body, nil
}

// retryable reports whether err is transient. Errors caused by the caller's
// own deadline or cancellation are not retried; an attempt that ran out of
// its own time is.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
