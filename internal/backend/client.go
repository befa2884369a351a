// Package backend is a JSON HTTP client for the system of record that the
// ingestion domains write to.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/bft-labs/streamworker/pkg/log"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// RetryMax is how many times a request is retried on transport errors
	// and retryable statuses (429, 502, 503, 504).
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	Logger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// ErrBaseURL is returned when the configured base URL is empty.
var ErrBaseURL = errors.New("backend: base url is required")

// Client calls the backend API.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.CheckRetry = dontRetryInternalError(retryablehttp.ErrorPropagatedRetryPolicy)
	// return the last response so its status and body reach the caller
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger: logger}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// dontRetryInternalError prevents retries on 500 responses, which the
// backend returns for deterministic failures.
func dontRetryInternalError(policy retryablehttp.CheckRetry) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		// do not retry on context.Canceled or context.DeadlineExceeded
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if resp != nil && resp.StatusCode == http.StatusInternalServerError {
			return false, err
		}
		return policy(ctx, resp, err)
	}
}

// do sends in as JSON and decodes the response into out. Either may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// After exhausted retries both resp and err are set; the status wins.
	resp, err := c.http.Do(req)
	if resp == nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend call",
		log.String("method", method),
		log.String("path", path),
		log.Int("status", resp.StatusCode),
		log.String("request_id", requestID),
	)

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// leveledLogger adapts log.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger log.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.logger.Error(msg, fields(kv)...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.logger.Debug(msg, fields(kv)...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug(msg, fields(kv)...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn(msg, fields(kv)...) }

func fields(kv []interface{}) []log.Field {
	out := make([]log.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, log.Any(key, kv[i+1]))
	}
	return out
}
