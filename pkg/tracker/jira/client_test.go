package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/tracker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, version string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.JiraConfig{
		BaseURL:    server.URL,
		Email:      "dev@acme.io",
		APIToken:   "secret",
		APIVersion: version,
	}, tracker.Options{})
}

func TestGetIssue(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/PROJ-42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("dev@acme.io:secret"))
		if r.Header.Get("Authorization") != want {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"id":"1","key":"PROJ-42","fields":{"summary":"Add login","status":{"name":"In Progress"},"project":{"key":"PROJ"}}}`))
	}, "3")

	issue, err := c.GetIssue(context.Background(), "PROJ-42")
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Fields.Summary != "Add login" || issue.Fields.Status.Name != "In Progress" || issue.Fields.Project.Key != "PROJ" {
		t.Errorf("unexpected issue %+v", issue)
	}
}

func TestGetIssue_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, "3")

	_, err := c.GetIssue(context.Background(), "NOPE-1")
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddWorklog_V3UsesDocument(t *testing.T) {
	started := time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("PST", -8*3600))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/3/issue/PROJ-42/worklog" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["timeSpentSeconds"] != float64(2700) {
			t.Errorf("timeSpentSeconds = %v", body["timeSpentSeconds"])
		}
		if body["started"] != "2026-03-02T09:30:00.000-0800" {
			t.Errorf("started = %v", body["started"])
		}
		comment, ok := body["comment"].(map[string]any)
		if !ok || comment["type"] != "doc" {
			t.Errorf("comment should be a document, got %v", body["comment"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"900","issueId":"1","timeSpentSeconds":2700}`))
	}, "3")

	wl, err := c.AddWorklog(context.Background(), "PROJ-42", 45*time.Minute, "login form\nvalidation", started)
	if err != nil {
		t.Fatalf("AddWorklog() error = %v", err)
	}
	if wl.ID != "900" {
		t.Errorf("worklog id = %q", wl.ID)
	}
}

func TestAddWorklog_V2UsesPlainComment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/OPS-7/worklog" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["comment"] != "quick note" {
			t.Errorf("comment = %v", body["comment"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}, "2")

	if _, err := c.AddWorklog(context.Background(), "OPS-7", time.Minute, "quick note", time.Now()); err != nil {
		t.Fatal(err)
	}
}

func TestMyself_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, "3")

	_, err := c.Myself(context.Background())
	if !tracker.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("first\n\n  \nsecond\r")
	if len(doc.Content) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(doc.Content))
	}
	if doc.Content[1].Content[0].Text != "second" {
		t.Errorf("second paragraph = %q", doc.Content[1].Content[0].Text)
	}
}

func TestRestRoot(t *testing.T) {
	tests := map[string]string{
		"https://acme.atlassian.net":             "https://acme.atlassian.net/rest/api/3",
		"https://acme.atlassian.net/":            "https://acme.atlassian.net/rest/api/3",
		"https://acme.atlassian.net/rest/api/2/": "https://acme.atlassian.net/rest/api/2",
		"https://jira.local/ctx/rest/api/3":      "https://jira.local/ctx/rest/api/3",
	}
	for in, want := range tests {
		if got := restRoot(in, "3"); got != want {
			t.Errorf("restRoot(%q) = %q, want %q", in, got, want)
		}
	}
}
