// Package ticket maps branch names to tracker tickets.
package ticket

import (
	"regexp"
	"strings"
)

// keyExpr is the ticket key grammar. Project keys are upper-case letters
// and digits in any order.
const keyExpr = `([A-Z0-9]+-[0-9]+)`

// boundary ends the issue number: anything but a digit, or the end.
const boundary = `(?:[^0-9]|$)`

// branchPrefixes are the conventional branch kinds, tried before the
// generic forms.
var branchPrefixes = []string{
	"feature", "bugfix", "hotfix", "release", "branch",
	"feat", "fix", "chore", "task", "story", "bug",
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

// patterns is ordered; the first match wins.
var patterns = []pattern{
	{
		name: "prefixed",
		re:   regexp.MustCompile(`^(?i:` + strings.Join(branchPrefixes, "|") + `)/` + keyExpr + boundary),
	},
	{
		name: "any-prefix",
		re:   regexp.MustCompile(`/` + keyExpr + boundary),
	},
	{
		name: "bare",
		re:   regexp.MustCompile(`(?:^|[^A-Za-z0-9])` + keyExpr + boundary),
	},
}

// ExtractTicketKey returns the ticket key embedded in branch.
func ExtractTicketKey(branch string) (string, bool) {
	key, _, ok := extract(branch)
	return key, ok
}

func extract(branch string) (key, via string, ok bool) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return "", "", false
	}
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(branch); m != nil {
			return m[1], p.name, true
		}
	}
	return "", "", false
}

// ProjectKeyOf returns the project part of a ticket key ("PROJ" for "PROJ-42").
func ProjectKeyOf(key string) string {
	if i := strings.LastIndex(key, "-"); i > 0 {
		return key[:i]
	}
	return key
}
