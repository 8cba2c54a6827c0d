package worklog

import (
	"context"
	"maps"
	"slices"
	"strings"
	"unicode"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/tracker/productive"
)

// discovery carries one secondary logging attempt. Listings are fetched at
// most once per attempt.
type discovery struct {
	api   Secondary
	cfg   config.ProductiveConfig
	entry Entry
	email string

	personID  string
	projectID string

	people   []productive.Person
	projects []productive.Project
	services map[string][]productive.Service
	history  map[string][]productive.TimeEntry
}

func newDiscovery(api Secondary, cfg config.ProductiveConfig, entry Entry, email string) *discovery {
	return &discovery{
		api:      api,
		cfg:      cfg,
		entry:    entry,
		email:    email,
		services: make(map[string][]productive.Service),
		history:  make(map[string][]productive.TimeEntry),
	}
}

func (d *discovery) listPeople(ctx context.Context) ([]productive.Person, error) {
	if d.people == nil {
		people, err := d.api.People(ctx)
		if err != nil {
			return nil, err
		}
		d.people = people
	}
	return d.people, nil
}

func (d *discovery) listProjects(ctx context.Context) ([]productive.Project, error) {
	if d.projects == nil {
		projects, err := d.api.Projects(ctx)
		if err != nil {
			return nil, err
		}
		d.projects = projects
	}
	return d.projects, nil
}

func (d *discovery) listServices(ctx context.Context, projectID string) ([]productive.Service, error) {
	if s, ok := d.services[projectID]; ok {
		return s, nil
	}
	services, err := d.api.Services(ctx, projectID)
	if err != nil {
		return nil, err
	}
	d.services[projectID] = services
	return services, nil
}

func (d *discovery) listEntries(ctx context.Context, personID string) ([]productive.TimeEntry, error) {
	if e, ok := d.history[personID]; ok {
		return e, nil
	}
	entries, err := d.api.TimeEntries(ctx, d.projectID, personID)
	if err != nil {
		return nil, err
	}
	d.history[personID] = entries
	return entries, nil
}

// strategy is one step of a discovery chain. ok is false when the strategy
// does not apply; err is a failed lookup, after which the chain moves on.
type strategy struct {
	name string
	run  func(ctx context.Context, d *discovery) (id string, conf Confidence, ok bool, err error)
}

var personChain = []strategy{
	{name: "configured", run: func(_ context.Context, d *discovery) (string, Confidence, bool, error) {
		return d.cfg.PersonID, ConfidenceHigh, d.cfg.PersonID != "", nil
	}},
	{name: "jira-email", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		if d.email == "" {
			return "", "", false, nil
		}
		people, err := d.listPeople(ctx)
		if err != nil {
			return "", "", false, err
		}
		for _, p := range people {
			if strings.EqualFold(p.Email, d.email) {
				return p.ID, ConfidenceHigh, true, nil
			}
		}
		return "", "", false, nil
	}},
	{name: "first-active", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		people, err := d.listPeople(ctx)
		if err != nil {
			return "", "", false, err
		}
		for _, p := range people {
			if p.Active {
				return p.ID, ConfidenceLow, true, nil
			}
		}
		return "", "", false, nil
	}},
}

var projectChain = []strategy{
	{name: "mapping", run: func(_ context.Context, d *discovery) (string, Confidence, bool, error) {
		id, ok := lookupMapping(d.cfg.ProjectMapping, d.entry.ProjectKey)
		return id, ConfidenceHigh, ok, nil
	}},
	{name: "exact", run: matchProject(ConfidenceHigh, func(key string, p productive.Project) int {
		if strings.EqualFold(p.Name, key) || (p.ProjectNumber != "" && strings.EqualFold(p.ProjectNumber, key)) {
			return 1
		}
		return 0
	})},
	{name: "substring", run: matchProject(ConfidenceMedium, func(key string, p productive.Project) int {
		name := strings.ToLower(p.Name)
		k := strings.ToLower(key)
		if name != "" && (strings.Contains(name, k) || strings.Contains(k, name)) {
			return 1
		}
		return 0
	})},
	{name: "token-overlap", run: matchProject(ConfidenceMedium, func(key string, p productive.Project) int {
		return tokenOverlap(tokens(key), tokens(p.Name))
	})},
	{name: "default", run: func(_ context.Context, d *discovery) (string, Confidence, bool, error) {
		return d.cfg.DefaultProjectID, ConfidenceMedium, d.cfg.DefaultProjectID != "", nil
	}},
	{name: "first-project", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		projects, err := d.listProjects(ctx)
		if err != nil || len(projects) == 0 {
			return "", "", false, err
		}
		return projects[0].ID, ConfidenceLow, true, nil
	}},
}

// serviceChain runs in order; strategies after the second are fallbacks
// gated by service_fallback_enabled.
var serviceChain = []strategy{
	{name: "default", run: func(_ context.Context, d *discovery) (string, Confidence, bool, error) {
		return d.cfg.DefaultServiceID, ConfidenceHigh, d.cfg.DefaultServiceID != "", nil
	}},
	{name: "user-history", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		entries, err := d.listEntries(ctx, d.personID)
		if err != nil {
			return "", "", false, err
		}
		id, ok := mostFrequentService(entries)
		return id, ConfidenceHigh, ok, nil
	}},
	{name: "project-history", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		entries, err := d.listEntries(ctx, "")
		if err != nil {
			return "", "", false, err
		}
		id, ok := mostFrequentService(entries)
		return id, ConfidenceMedium, ok, nil
	}},
	{name: "first-project-service", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		services, err := d.listServices(ctx, d.projectID)
		if err != nil || len(services) == 0 {
			return "", "", false, err
		}
		return services[0].ID, ConfidenceLow, true, nil
	}},
	{name: "any-service", run: func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		services, err := d.listServices(ctx, "")
		if err != nil || len(services) == 0 {
			return "", "", false, err
		}
		return services[0].ID, ConfidenceLow, true, nil
	}},
}

const serviceFallbackStart = 2

func (l *Logger) servicesChain() []strategy {
	if f := l.cfg.ServiceFallbackEnabled; f == nil || *f {
		return serviceChain
	}
	return serviceChain[:serviceFallbackStart]
}

// runChain returns the first strategy result. When none applies the error is
// a *DiscoveryError carrying the last lookup failure.
func (l *Logger) runChain(ctx context.Context, step string, chain []strategy, d *discovery) (string, Confidence, error) {
	var lastErr error
	for _, s := range chain {
		id, conf, ok, err := s.run(ctx, d)
		if err != nil {
			l.logger.Warn("discovery strategy failed", "step", step, "strategy", s.name, "error", err)
			lastErr = err
			continue
		}
		if ok && id != "" {
			l.logger.Debug("discovered productive id", "step", step, "strategy", s.name, "id", id, "confidence", conf)
			return id, conf, nil
		}
	}
	return "", "", &DiscoveryError{Step: step, Err: lastErr}
}

func matchProject(conf Confidence, score func(key string, p productive.Project) int) func(context.Context, *discovery) (string, Confidence, bool, error) {
	return func(ctx context.Context, d *discovery) (string, Confidence, bool, error) {
		if d.entry.ProjectKey == "" {
			return "", "", false, nil
		}
		projects, err := d.listProjects(ctx)
		if err != nil {
			return "", "", false, err
		}
		best, bestScore := "", 0
		for _, p := range projects {
			if s := score(d.entry.ProjectKey, p); s > bestScore {
				best, bestScore = p.ID, s
			}
		}
		return best, conf, best != "", nil
	}
}

// lookupMapping prefers an exact key, then the first case-insensitive
// match in sorted key order.
func lookupMapping(mapping map[string]string, key string) (string, bool) {
	if id, ok := mapping[key]; ok && id != "" {
		return id, true
	}
	for _, k := range slices.Sorted(maps.Keys(mapping)) {
		if id := mapping[k]; strings.EqualFold(k, key) && id != "" {
			return id, true
		}
	}
	return "", false
}

// tokens splits s into lower-case runs of letters or digits.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenOverlap counts key tokens of two or more characters that prefix some
// name token.
func tokenOverlap(key, name []string) int {
	n := 0
	for _, k := range key {
		if len(k) < 2 {
			continue
		}
		for _, t := range name {
			if strings.HasPrefix(t, k) || (len(t) >= 2 && strings.HasPrefix(k, t)) {
				n++
				break
			}
		}
	}
	return n
}

// mostFrequentService returns the service used most often. Ties go to the
// service seen first.
func mostFrequentService(entries []productive.TimeEntry) (string, bool) {
	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		if e.ServiceID == "" {
			continue
		}
		if counts[e.ServiceID] == 0 {
			order = append(order, e.ServiceID)
		}
		counts[e.ServiceID]++
	}
	best, bestCount := "", 0
	for _, id := range order {
		if counts[id] > bestCount {
			best, bestCount = id, counts[id]
		}
	}
	return best, best != ""
}
