// Package jira is a minimal Jira Cloud REST client: issue lookup, worklog
// creation and credential verification.
package jira

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/tracker"
)

// StartedLayout is the timestamp format Jira accepts for worklog "started".
const StartedLayout = "2006-01-02T15:04:05.000-0700"

// Issue is the subset of issue fields branchclock reads.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Project struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"project"`
	} `json:"fields"`
}

// Worklog is the created worklog returned by Jira.
type Worklog struct {
	ID               string `json:"id"`
	IssueID          string `json:"issueId"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// User is the authenticated account.
type User struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
	Active       bool   `json:"active"`
}

// Client talks to one Jira site.
type Client struct {
	http       *tracker.Client
	apiVersion string
	email      string
}

// New creates a client. base is the configured REST root, e.g.
// https://acme.atlassian.net/rest/api/3. A bare site URL gets the REST path
// for the configured API version appended.
func New(cfg config.JiraConfig, opts tracker.Options) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = config.DefaultJiraAPIVersion
	}

	opts.Name = "jira"
	opts.BaseURL = restRoot(cfg.BaseURL, version)
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	opts.Headers["Authorization"] = "Basic " + basicAuth(cfg.Email, cfg.APIToken)

	return &Client{
		http:       tracker.NewClient(opts),
		apiVersion: version,
		email:      cfg.Email,
	}
}

// Email returns the configured account email.
func (c *Client) Email() string {
	return c.email
}

// GetIssue fetches an issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	err := c.http.Do(ctx, tracker.Request{
		Method: http.MethodGet,
		Path:   "/issue/" + url.PathEscape(key),
		Route:  "/issue/{key}",
		Query:  url.Values{"fields": {"summary,status,project"}},
	}, &issue)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}
	return &issue, nil
}

// AddWorklog records timeSpent against key. The comment is sent as an
// Atlassian document for API v3 and as plain text for v2.
func (c *Client) AddWorklog(ctx context.Context, key string, timeSpent time.Duration, comment string, started time.Time) (*Worklog, error) {
	body := map[string]any{
		"timeSpentSeconds": int(timeSpent / time.Second),
		"started":          started.Format(StartedLayout),
	}
	if comment != "" {
		if c.apiVersion == "2" {
			body["comment"] = comment
		} else {
			body["comment"] = NewDocument(comment)
		}
	}

	var wl Worklog
	err := c.http.Do(ctx, tracker.Request{
		Method: http.MethodPost,
		Path:   "/issue/" + url.PathEscape(key) + "/worklog",
		Route:  "/issue/{key}/worklog",
		Body:   body,
	}, &wl)
	if err != nil {
		return nil, fmt.Errorf("add worklog to %s: %w", key, err)
	}
	return &wl, nil
}

// Myself returns the authenticated user. It doubles as the credentials check.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var user User
	if err := c.http.Do(ctx, tracker.Request{Method: http.MethodGet, Path: "/myself"}, &user); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &user, nil
}

func basicAuth(email, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + token))
}

func restRoot(base, version string) string {
	base = strings.TrimRight(base, "/")
	if strings.Contains(base, "/rest/api/") {
		return base
	}
	return base + "/rest/api/" + version
}
