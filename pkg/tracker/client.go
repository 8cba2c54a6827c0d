package tracker

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
	"net/url"
	"strings"
	"time"

	"branchclock-hq/branchclock/pkg/telemetry/metrics"
	"branchclock-hq/branchclock/pkg/telemetry/tracing"
)

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	// Name labels logs, metrics and errors ("jira", "productive").
	Name string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout bounds each attempt. Zero means no client timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries for 5xx responses to idempotent
	// requests. Writes are sent once.
	MaxRetries int

	// Headers are sent on every request (credentials, org id).
	Headers map[string]string

	// ContentType for request bodies. Default: application/json.
	ContentType string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// Backoff returns the delay before retry attempt n (n >= 1). The
	// default doubles from one second.
	Backoff func(attempt int) time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Request describes one API call.
type Request struct {
	Method string

	// Path is appended to BaseURL, e.g. "/issue/PROJ-1".
	Path string

	// Route is the templated path used for span names, e.g. "/issue/{key}".
	// Defaults to Path.
	Route string

	Query url.Values

	// Body is JSON encoded when non-nil.
	Body any
}

// Client is a JSON HTTP client with retry, tracing and error mapping.
type Client struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: opts.Timeout,
		}
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/json"
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
		}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		opts:   opts,
		client: client,
		logger: logger.With("component", "tracker", "tracker", opts.Name),
	}
}

// Name returns the tracker label.
func (c *Client) Name() string {
	return c.opts.Name
}

// Do performs req and decodes a 2xx response body into out (when non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	route := req.Route
	if route == "" {
		route = req.Path
	}

	ctx, span := c.opts.Tracer.Start(ctx, c.opts.Name+" "+req.Method+" "+route)
	defer span.End()

	start := time.Now()
	status, retries, err := c.do(ctx, req, out)

	tracing.SetHTTPAttributes(span, c.opts.Name, req.Method, route, status, retries)
	tracing.SetStatus(span, err)
	c.opts.Metrics.RecordTrackerRequest(c.opts.Name, Outcome(err), time.Since(start))

	return err
}

func (c *Client) do(ctx context.Context, req Request, out any) (status, retries int, err error) {
	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	target := c.opts.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	maxRetries := c.opts.MaxRetries
	if !idempotent(req.Method) {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.opts.Backoff(attempt)
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return status, attempt - 1, &NetworkError{Tracker: c.opts.Name, Timeout: true, Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
		if err != nil {
			return 0, attempt, fmt.Errorf("failed to create request: %w", err)
		}
		for key, value := range c.opts.Headers {
			httpReq.Header.Set(key, value)
		}
		httpReq.Header.Set("Accept", acceptFor(c.opts.ContentType))
		if body != nil {
			httpReq.Header.Set("Content-Type", c.opts.ContentType)
		}

		c.logger.Debug("sending request", "method", req.Method, "path", req.Path)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return 0, attempt, &NetworkError{Tracker: c.opts.Name, Timeout: isTimeout(ctx, err), Cause: err}
		}
		status = resp.StatusCode

		if status >= 200 && status < 300 {
			err := decodeBody(resp, out, c.opts.Name)
			return status, attempt, err
		}

		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		message := summarize(errorBody)

		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return status, attempt, &AuthError{Tracker: c.opts.Name, StatusCode: status, Message: message}

		case status == http.StatusNotFound:
			return status, attempt, &NotFoundError{Tracker: c.opts.Name, Resource: req.Path}

		case status == http.StatusTooManyRequests:
			return status, attempt, &RateLimitError{
				Tracker:    c.opts.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    message,
			}

		case status < 500:
			return status, attempt, &APIError{Tracker: c.opts.Name, StatusCode: status, Message: message}

		default:
			lastErr = &APIError{Tracker: c.opts.Name, StatusCode: status, Message: message}
			c.logger.Warn("request returned server error",
				"status", status,
				"attempt", attempt+1,
			)
		}
	}

	return status, maxRetries, lastErr
}

// idempotent reports whether a request may be repeated after a 5xx. A
// server error on a write can arrive after the write was applied.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func decodeBody(resp *http.Response, out any, tracker string) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Tracker: tracker, Cause: fmt.Errorf("failed to read response: %w", err)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Tracker: tracker, RawResponse: summarize(data), Cause: err}
	}
	return nil
}

func acceptFor(contentType string) string {
	if contentType == "application/json" {
		return contentType
	}
	return contentType + ", application/json"
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func summarize(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
