package tracker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
	"branchclock-hq/branchclock/pkg/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(Options{
		Name:       "jira",
		BaseURL:    url,
		MaxRetries: retries,
		Headers:    map[string]string{"Authorization": "Basic abc"},
		Backoff:    func(int) time.Duration { return time.Millisecond },
	})
}

func TestClient_DoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic abc" {
			t.Errorf("missing auth header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.URL.Path != "/issue/PROJ-1/worklog" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"10001"}`))
	}))
	defer server.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := newTestClient(server.URL+"/", 0).Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/issue/PROJ-1/worklog",
		Body:   map[string]int{"timeSpentSeconds": 60},
	}, &out)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if out.ID != "10001" {
		t.Errorf("id = %q", out.ID)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		check   func(error) bool
		outcome string
	}{
		{"unauthorized", http.StatusUnauthorized, IsAuthError, "auth"},
		{"forbidden", http.StatusForbidden, IsAuthError, "auth"},
		{"not found", http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }, "not_found"},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool {
			var e *RateLimitError
			return errors.As(err, &e) && e.RetryAfter == 30*time.Second
		}, "rate_limited"},
		{"bad request", http.StatusBadRequest, func(err error) bool {
			var e *APIError
			return errors.As(err, &e) && e.StatusCode == 400
		}, "client_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Retry-After", "30")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errorMessages":["nope"]}`))
			}))
			defer server.Close()

			err := newTestClient(server.URL, 3).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			if Outcome(err) != tt.outcome {
				t.Errorf("Outcome() = %q, want %q", Outcome(err), tt.outcome)
			}
			if calls.Load() != 1 {
				t.Errorf("4xx should not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := newTestClient(server.URL, 2).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_WritesNotRetried(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			req := Request{Method: method, Path: "/issue/PROJ-1/worklog", Body: map[string]int{"timeSpentSeconds": 60}}
			err := newTestClient(server.URL, 3).Do(context.Background(), req, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
				t.Fatalf("err = %v, want 503 APIError", err)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want exactly 1", calls.Load())
			}
		})
	}
}

func TestClient_ServerErrorExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := newTestClient(server.URL, 0).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
	if Outcome(err) != "server_error" {
		t.Fatalf("Outcome() = %q (%v)", Outcome(err), err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 with zero retries", calls.Load())
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestClient(url, 2).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := newTestClient(server.URL, 0).Do(ctx, Request{Method: http.MethodGet, Path: "/"}, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) || !netErr.Timeout {
		t.Fatalf("expected timeout NetworkError, got %v", err)
	}
}

func TestClient_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := newTestClient(server.URL, 0).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, &out)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestClient_MetricsAndSpans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "t"}, registry)
	exporter := tracetest.NewInMemoryExporter()

	c := NewClient(Options{
		Name:    "productive",
		BaseURL: server.URL,
		Metrics: collector,
		Tracer:  tracing.NewWithExporter(exporter, "test", 1),
	})
	_ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/people/1", Route: "/people/{id}"}, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "productive GET /people/{id}" {
		t.Fatalf("unexpected spans %v", spans)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "t_tracker_requests_total" {
			for _, m := range f.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "outcome" && l.GetValue() == "auth" {
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("auth outcome not recorded")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if parseRetryAfter("") != 0 {
		t.Error("empty header should be zero")
	}
	if parseRetryAfter("5") != 5*time.Second {
		t.Error("seconds not parsed")
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d := parseRetryAfter(future); d <= 0 || d > time.Minute {
		t.Errorf("date not parsed: %v", d)
	}
}
