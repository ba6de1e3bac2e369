// Package matcher provides the pattern matchers used to expand module
// coordinates and to select conflict and exclusion rules.
//
// A matcher is addressed by id. Four are built in:
//
//   - exact: string equality; "*" alone matches anything
//   - glob: shell-style globs (gobwas/glob)
//   - regexp: Go regular expressions, anchored
//   - semver: revision constraints ("^1.2", ">=1.0 <2.0"); other fields exact
package matcher

import (
	"maps"
	"slices"
	"sync"

	"github.com/albertocavalcante/go-depot/module"
)

// Built-in matcher ids.
const (
	Exact  = "exact"
	Glob   = "glob"
	Regexp = "regexp"
	Semver = "semver"
)

// Any is the expression every matcher treats as "match anything".
const Any = "*"

// Matcher decides whether candidate strings match a pattern expression.
type Matcher interface {
	// Name returns the id the matcher is registered under.
	Name() string

	// IsLiteral reports whether expr contains no pattern syntax, i.e. it can
	// only ever match itself.
	IsLiteral(expr string) bool

	// Matches reports whether candidate matches the pattern expression.
	Matches(pattern, candidate string) bool
}

// IsLiteral reports whether every segment of rev is literal under m.
func IsLiteral(m Matcher, rev module.RevisionID) bool {
	return m.IsLiteral(rev.Organization) && m.IsLiteral(rev.Name) && m.IsLiteral(rev.Revision)
}

// MatchesModule reports whether candidate's organization and name match
// the patterns of pattern.
func MatchesModule(m Matcher, pattern, candidate module.ID) bool {
	return m.Matches(pattern.Organization, candidate.Organization) && m.Matches(pattern.Name, candidate.Name)
}

// MatchesRevision reports whether every segment of candidate matches pattern.
func MatchesRevision(m Matcher, pattern, candidate module.RevisionID) bool {
	return MatchesModule(m, pattern.ID, candidate.ID) && m.Matches(pattern.Revision, candidate.Revision)
}

// Registry holds matchers by id. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	matchers map[string]Matcher
}

// NewRegistry returns a registry holding the built-in matchers.
func NewRegistry() *Registry {
	r := &Registry{matchers: make(map[string]Matcher)}
	r.Register(ExactMatcher{})
	r.Register(NewGlobMatcher())
	r.Register(NewRegexpMatcher())
	r.Register(NewSemverMatcher())
	return r
}

// Register adds or replaces m under m.Name().
func (r *Registry) Register(m Matcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers[m.Name()] = m
}

// Get returns the matcher registered under id.
func (r *Registry) Get(id string) (Matcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matchers[id]
	return m, ok
}

// Names returns the registered ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.matchers))
}
