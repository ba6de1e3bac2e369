package matcher

import (
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// SemverMatcher treats patterns as semantic version constraints. Candidates
// or patterns that are not semver fall back to exact comparison, which keeps
// the matcher usable for organization and module names.
type SemverMatcher struct {
	cache sync.Map // map[string]*semver.Constraints
}

// NewSemverMatcher returns a semver matcher with an empty constraint cache.
func NewSemverMatcher() *SemverMatcher {
	return &SemverMatcher{}
}

func (*SemverMatcher) Name() string { return Semver }

// IsLiteral reports whether expr is a plain version (or plain name) rather
// than a constraint expression.
func (*SemverMatcher) IsLiteral(expr string) bool {
	if expr == Any {
		return false
	}
	if strings.ContainsAny(expr, "<>=~^*|, ") {
		return false
	}
	if _, err := semver.NewVersion(expr); err == nil {
		return true
	}
	// "1.x" style wildcards are constraints; anything else is a name.
	for _, seg := range strings.Split(expr, ".") {
		if seg == "x" || seg == "X" {
			return false
		}
	}
	return true
}

func (m *SemverMatcher) Matches(pattern, candidate string) bool {
	if pattern == Any {
		return true
	}
	if m.IsLiteral(pattern) {
		return pattern == candidate
	}
	v, err := semver.NewVersion(candidate)
	if err != nil {
		return false
	}
	c, err := m.constraint(pattern)
	if err != nil {
		return false
	}
	return c.Check(v)
}

func (m *SemverMatcher) constraint(pattern string) (*semver.Constraints, error) {
	if cached, ok := m.cache.Load(pattern); ok {
		return cached.(*semver.Constraints), nil
	}
	c, err := semver.NewConstraint(pattern)
	if err != nil {
		return nil, err
	}
	m.cache.Store(pattern, c)
	return c, nil
}
