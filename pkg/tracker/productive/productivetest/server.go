// Package productivetest provides an in-memory Productive API for tests.
package productivetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"branchclock-hq/branchclock/pkg/tracker/productive"
)

// CreatedEntry is a time entry received by the fake, as decoded from the
// request body.
type CreatedEntry struct {
	Date        string
	Minutes     int
	Note        string
	JiraIssueID string
	PersonID    string
	ServiceID   string
	ProjectID   string
}

// Server is a fake Productive API. Fields may be set before the first
// request and read after Close.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Token string
	OrgID string

	People   []productive.Person
	Projects []productive.Project
	// Services keyed by project id. The "" key is returned for unfiltered requests.
	Services    map[string][]productive.Service
	TimeEntries []productive.TimeEntry

	// FailStatus, when non-zero, is returned for every request to FailPath.
	FailPath   string
	FailStatus int

	Created  []CreatedEntry
	Requests []string
}

// NewServer starts a fake authenticated with token and organization org.
func NewServer(token, org string) *Server {
	s := &Server{Token: token, OrgID: org, Services: map[string][]productive.Service{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// CreatedEntries returns a copy of the received time entries.
func (s *Server) CreatedEntries() []CreatedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CreatedEntry(nil), s.Created...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("X-Auth-Token") != s.Token || r.Header.Get("X-Organization-Id") != s.OrgID {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.FailStatus != 0 && r.URL.Path == s.FailPath {
		w.WriteHeader(s.FailStatus)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/people":
		var data []any
		for _, p := range s.People {
			status := 1
			if !p.Active {
				status = 2
			}
			data = append(data, resource("people", p.ID, map[string]any{
				"first_name": p.FirstName,
				"last_name":  p.LastName,
				"email":      p.Email,
				"status":     status,
			}, nil))
		}
		writeList(w, data)

	case r.Method == http.MethodGet && r.URL.Path == "/projects":
		var data []any
		for _, p := range s.Projects {
			data = append(data, resource("projects", p.ID, map[string]any{
				"name":           p.Name,
				"project_number": p.ProjectNumber,
			}, nil))
		}
		writeList(w, data)

	case r.Method == http.MethodGet && r.URL.Path == "/services":
		var data []any
		for _, svc := range s.Services[r.URL.Query().Get("filter[project_id]")] {
			data = append(data, resource("services", svc.ID, map[string]any{"name": svc.Name}, nil))
		}
		writeList(w, data)

	case r.Method == http.MethodGet && r.URL.Path == "/time_entries":
		project := r.URL.Query().Get("filter[project_id]")
		person := r.URL.Query().Get("filter[person_id]")
		var data []any
		for _, te := range s.TimeEntries {
			if te.ProjectID != project || (person != "" && te.PersonID != person) {
				continue
			}
			data = append(data, resource("time_entries", te.ID, map[string]any{
				"date": te.Date,
				"time": te.Minutes,
				"note": te.Note,
			}, map[string]any{
				"person":  rel("people", te.PersonID),
				"service": rel("services", te.ServiceID),
				"project": rel("projects", te.ProjectID),
			}))
		}
		writeList(w, data)

	case r.Method == http.MethodPost && r.URL.Path == "/time_entries":
		var doc struct {
			Data struct {
				Attributes struct {
					Date        string `json:"date"`
					Time        int    `json:"time"`
					Note        string `json:"note"`
					JiraIssueID string `json:"jira_issue_id"`
				} `json:"attributes"`
				Relationships map[string]struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				} `json:"relationships"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a := doc.Data.Attributes
		rels := doc.Data.Relationships
		s.Created = append(s.Created, CreatedEntry{
			Date:        a.Date,
			Minutes:     a.Time,
			Note:        a.Note,
			JiraIssueID: a.JiraIssueID,
			PersonID:    rels["person"].Data.ID,
			ServiceID:   rels["service"].Data.ID,
			ProjectID:   rels["project"].Data.ID,
		})
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": resource("time_entries", "te-"+itoa(len(s.Created)), map[string]any{"time": a.Time}, nil),
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func resource(typ, id string, attrs map[string]any, rels map[string]any) map[string]any {
	r := map[string]any{"id": id, "type": typ, "attributes": attrs}
	if rels != nil {
		r["relationships"] = rels
	}
	return r
}

func rel(typ, id string) map[string]any {
	if id == "" {
		return map[string]any{"data": nil}
	}
	return map[string]any{"data": map[string]any{"type": typ, "id": id}}
}

func writeList(w http.ResponseWriter, data []any) {
	if data == nil {
		data = []any{}
	}
	w.Header().Set("Content-Type", "application/vnd.api+json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": data,
		"meta": map[string]any{"total_pages": 1},
	})
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
