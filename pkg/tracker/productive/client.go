// Package productive is a minimal Productive.io JSON:API client covering
// people, projects, services and time entries.
package productive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/tracker"
)

const (
	mediaType = "application/vnd.api+json"
	pageSize  = 200
	maxPages  = 10
)

// Person is a member of the organization.
type Person struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Active    bool
}

// Project is a Productive project.
type Project struct {
	ID            string
	Name          string
	ProjectNumber string
}

// Service is a billable work category.
type Service struct {
	ID   string
	Name string
}

// TimeEntry is a logged block of time.
type TimeEntry struct {
	ID        string
	Date      string
	Minutes   int
	Note      string
	PersonID  string
	ServiceID string
	ProjectID string
}

// NewTimeEntry is the payload for CreateTimeEntry.
type NewTimeEntry struct {
	// Date is the local calendar day, YYYY-MM-DD.
	Date      string
	Minutes   int
	Note      string
	PersonID  string
	ProjectID string
	ServiceID string

	// JiraIssueID cross-references the primary ticket.
	JiraIssueID string
}

// Client talks to one Productive organization.
type Client struct {
	http  *tracker.Client
	orgID string
}

// New creates a client from configuration.
func New(cfg config.ProductiveConfig, opts tracker.Options) *Client {
	opts.Name = "productive"
	opts.BaseURL = cfg.BaseURL
	opts.ContentType = mediaType
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	opts.Headers["X-Auth-Token"] = cfg.APIToken
	opts.Headers["X-Organization-Id"] = cfg.OrganizationID

	return &Client{http: tracker.NewClient(opts), orgID: cfg.OrganizationID}
}

// People lists people in the organization.
func (c *Client) People(ctx context.Context) ([]Person, error) {
	resources, err := c.list(ctx, "/people", nil)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	people := make([]Person, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			FirstName  string  `json:"first_name"`
			LastName   string  `json:"last_name"`
			Email      string  `json:"email"`
			Status     *int    `json:"status"`
			ArchivedAt *string `json:"archived_at"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, &tracker.ParseError{Tracker: "productive", Cause: err}
		}
		people = append(people, Person{
			ID:        r.ID,
			FirstName: attrs.FirstName,
			LastName:  attrs.LastName,
			Email:     attrs.Email,
			Active:    attrs.ArchivedAt == nil && (attrs.Status == nil || *attrs.Status == 1),
		})
	}
	return people, nil
}

// Projects lists active projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	resources, err := c.list(ctx, "/projects", url.Values{"filter[status]": {"1"}})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]Project, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Name          string `json:"name"`
			ProjectNumber any    `json:"project_number"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, &tracker.ParseError{Tracker: "productive", Cause: err}
		}
		projects = append(projects, Project{
			ID:            r.ID,
			Name:          attrs.Name,
			ProjectNumber: stringify(attrs.ProjectNumber),
		})
	}
	return projects, nil
}

// Services lists services. A non-empty projectID restricts them to that project.
func (c *Client) Services(ctx context.Context, projectID string) ([]Service, error) {
	query := url.Values{}
	if projectID != "" {
		query.Set("filter[project_id]", projectID)
	}
	resources, err := c.list(ctx, "/services", query)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	services := make([]Service, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, &tracker.ParseError{Tracker: "productive", Cause: err}
		}
		services = append(services, Service{ID: r.ID, Name: attrs.Name})
	}
	return services, nil
}

// TimeEntries lists time entries on projectID, optionally for one person.
func (c *Client) TimeEntries(ctx context.Context, projectID, personID string) ([]TimeEntry, error) {
	query := url.Values{"filter[project_id]": {projectID}}
	if personID != "" {
		query.Set("filter[person_id]", personID)
	}
	resources, err := c.list(ctx, "/time_entries", query)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}

	entries := make([]TimeEntry, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Date string `json:"date"`
			Time int    `json:"time"`
			Note string `json:"note"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, &tracker.ParseError{Tracker: "productive", Cause: err}
		}
		entries = append(entries, TimeEntry{
			ID:        r.ID,
			Date:      attrs.Date,
			Minutes:   attrs.Time,
			Note:      attrs.Note,
			PersonID:  r.relationID("person"),
			ServiceID: r.relationID("service"),
			ProjectID: r.relationID("project"),
		})
	}
	return entries, nil
}

// CreateTimeEntry posts a time entry and returns its id.
func (c *Client) CreateTimeEntry(ctx context.Context, entry NewTimeEntry) (string, error) {
	attrs := map[string]any{
		"date": entry.Date,
		"time": entry.Minutes,
		"note": entry.Note,
	}
	if entry.JiraIssueID != "" {
		attrs["jira_issue_id"] = entry.JiraIssueID
	}

	relationships := map[string]relationship{
		"person":       {Data: &resourceID{Type: "people", ID: entry.PersonID}},
		"service":      {Data: &resourceID{Type: "services", ID: entry.ServiceID}},
		"organization": {Data: &resourceID{Type: "organizations", ID: c.orgID}},
	}
	if entry.ProjectID != "" {
		relationships["project"] = relationship{Data: &resourceID{Type: "projects", ID: entry.ProjectID}}
	}

	body := map[string]any{
		"data": map[string]any{
			"type":          "time_entries",
			"attributes":    attrs,
			"relationships": relationships,
		},
	}

	var created struct {
		Data resource `json:"data"`
	}
	err := c.http.Do(ctx, tracker.Request{Method: http.MethodPost, Path: "/time_entries", Body: body}, &created)
	if err != nil {
		return "", fmt.Errorf("create time entry: %w", err)
	}
	return created.Data.ID, nil
}

type resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type relationship struct {
	Data *resourceID `json:"data"`
}

type resourceID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r resource) relationID(name string) string {
	if rel, ok := r.Relationships[name]; ok && rel.Data != nil {
		return rel.Data.ID
	}
	return ""
}

type listDocument struct {
	Data []resource `json:"data"`
	Meta struct {
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

// list follows page[number] until meta.total_pages or maxPages.
func (c *Client) list(ctx context.Context, path string, query url.Values) ([]resource, error) {
	var all []resource
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page[size]", strconv.Itoa(pageSize))
		q.Set("page[number]", strconv.Itoa(page))

		var doc listDocument
		if err := c.http.Do(ctx, tracker.Request{Method: http.MethodGet, Path: path, Query: q}, &doc); err != nil {
			return nil, err
		}
		all = append(all, doc.Data...)
		if doc.Meta.TotalPages <= page || len(doc.Data) == 0 {
			break
		}
	}
	return all, nil
}

func stringify(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(n)
	}
}
