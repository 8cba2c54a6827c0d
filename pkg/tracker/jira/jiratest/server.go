// Package jiratest provides an in-memory Jira REST API for tests.
package jiratest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Issue is a ticket known to the fake.
type Issue struct {
	Key     string
	Project string
	Summary string
	Status  string
}

// Worklog is a worklog received by the fake.
type Worklog struct {
	IssueKey         string
	TimeSpentSeconds int
	Started          string
	// Comment is the raw JSON comment value (ADF document or string).
	Comment json.RawMessage
}

// Server is a fake Jira site serving /rest/api/3.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Email string
	Token string

	Issues map[string]Issue

	// WorklogStatus, when non-zero, is returned for worklog requests.
	WorklogStatus int
	// IssueStatus, when non-zero, is returned for issue requests.
	IssueStatus int

	worklogs []Worklog
	requests []string
}

// NewServer starts a fake accepting the given basic-auth credentials.
func NewServer(email, token string) *Server {
	s := &Server{Email: email, Token: token, Issues: map[string]Issue{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddIssue registers an issue.
func (s *Server) AddIssue(issue Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Issues[issue.Key] = issue
}

// SetWorklogStatus makes worklog requests fail with status.
func (s *Server) SetWorklogStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WorklogStatus = status
}

// Worklogs returns a copy of the received worklogs.
func (s *Server) Worklogs() []Worklog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Worklog(nil), s.worklogs...)
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(s.Email+":"+s.Token))
	if r.Header.Get("Authorization") != want {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/rest/api/3")
	switch {
	case r.Method == http.MethodGet && path == "/myself":
		writeJSON(w, http.StatusOK, map[string]any{
			"accountId":    "acc-1",
			"emailAddress": s.Email,
			"displayName":  "Test User",
			"active":       true,
		})

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/issue/") && strings.HasSuffix(path, "/worklog"):
		key := strings.TrimSuffix(strings.TrimPrefix(path, "/issue/"), "/worklog")
		if s.WorklogStatus != 0 {
			w.WriteHeader(s.WorklogStatus)
			return
		}
		if _, ok := s.Issues[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			TimeSpentSeconds int             `json:"timeSpentSeconds"`
			Started          string          `json:"started"`
			Comment          json.RawMessage `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.worklogs = append(s.worklogs, Worklog{
			IssueKey:         key,
			TimeSpentSeconds: body.TimeSpentSeconds,
			Started:          body.Started,
			Comment:          body.Comment,
		})
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":               strconv.Itoa(10000 + len(s.worklogs)),
			"timeSpentSeconds": body.TimeSpentSeconds,
		})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/issue/"):
		if s.IssueStatus != 0 {
			w.WriteHeader(s.IssueStatus)
			return
		}
		key := strings.TrimPrefix(path, "/issue/")
		issue, ok := s.Issues[key]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"errorMessages": []string{"Issue does not exist or you do not have permission to see it."},
			})
			return
		}
		fields := map[string]any{
			"summary": issue.Summary,
			"status":  map[string]any{"name": issue.Status},
		}
		if issue.Project != "" {
			fields["project"] = map[string]any{"key": issue.Project}
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "1", "key": issue.Key, "fields": fields})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
