package productive_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/tracker/productive"
	"branchclock-hq/branchclock/pkg/tracker/productive/productivetest"
)

func newClient(t *testing.T) (*productive.Client, *productivetest.Server) {
	t.Helper()
	fake := productivetest.NewServer("tok", "42")
	t.Cleanup(fake.Close)

	c := productive.New(config.ProductiveConfig{
		BaseURL:        fake.URL,
		APIToken:       "tok",
		OrganizationID: "42",
	}, tracker.Options{})
	return c, fake
}

func TestPeopleProjectsServices(t *testing.T) {
	c, fake := newClient(t)
	fake.People = []productive.Person{
		{ID: "1", FirstName: "Ada", Email: "ada@acme.io", Active: true},
		{ID: "2", FirstName: "Bob", Email: "bob@acme.io", Active: false},
	}
	fake.Projects = []productive.Project{{ID: "100", Name: "Platform", ProjectNumber: "7"}}
	fake.Services["100"] = []productive.Service{{ID: "s1", Name: "Development"}}

	people, err := c.People(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(people) != 2 || !people[0].Active || people[1].Active {
		t.Errorf("unexpected people %+v", people)
	}

	projects, err := c.Projects(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].ProjectNumber != "7" {
		t.Errorf("unexpected projects %+v", projects)
	}

	services, err := c.Services(context.Background(), "100")
	if err != nil {
		t.Fatal(err)
	}
	if len(services) != 1 || services[0].Name != "Development" {
		t.Errorf("unexpected services %+v", services)
	}
}

func TestTimeEntries(t *testing.T) {
	c, fake := newClient(t)
	fake.TimeEntries = []productive.TimeEntry{
		{ID: "t1", ProjectID: "100", PersonID: "1", ServiceID: "s1", Minutes: 30},
		{ID: "t2", ProjectID: "100", PersonID: "2", ServiceID: "s2", Minutes: 15},
		{ID: "t3", ProjectID: "200", PersonID: "1", ServiceID: "s3", Minutes: 60},
	}

	mine, err := c.TimeEntries(context.Background(), "100", "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ServiceID != "s1" || mine[0].Minutes != 30 {
		t.Errorf("unexpected entries %+v", mine)
	}

	all, err := c.TimeEntries(context.Background(), "100", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 project entries, got %d", len(all))
	}
}

func TestCreateTimeEntry(t *testing.T) {
	c, fake := newClient(t)

	id, err := c.CreateTimeEntry(context.Background(), productive.NewTimeEntry{
		Date:        "2026-03-02",
		Minutes:     45,
		Note:        "login form",
		PersonID:    "1",
		ProjectID:   "100",
		ServiceID:   "s1",
		JiraIssueID: "PROJ-42",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("expected created id")
	}

	created := fake.CreatedEntries()
	if len(created) != 1 {
		t.Fatalf("created = %d", len(created))
	}
	got := created[0]
	if got.Date != "2026-03-02" || got.Minutes != 45 || got.ServiceID != "s1" || got.JiraIssueID != "PROJ-42" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestAuthFailure(t *testing.T) {
	fake := productivetest.NewServer("other", "42")
	defer fake.Close()

	c := productive.New(config.ProductiveConfig{BaseURL: fake.URL, APIToken: "tok", OrganizationID: "42"}, tracker.Options{})
	_, err := c.People(context.Background())
	if !tracker.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	c, fake := newClient(t)
	fake.FailPath = "/projects"
	fake.FailStatus = http.StatusInternalServerError

	_, err := c.Projects(context.Background())
	var apiErr *tracker.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
}
