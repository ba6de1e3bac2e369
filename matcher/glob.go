package matcher

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// GlobMatcher matches shell-style patterns. Compiled patterns are cached.
type GlobMatcher struct {
	cache sync.Map // map[string]glob.Glob
}

// NewGlobMatcher returns a glob matcher with an empty pattern cache.
func NewGlobMatcher() *GlobMatcher {
	return &GlobMatcher{}
}

func (*GlobMatcher) Name() string { return Glob }

func (*GlobMatcher) IsLiteral(expr string) bool {
	return !strings.ContainsAny(expr, `*?[]{}\`)
}

// Matches reports whether candidate matches pattern. Invalid patterns match
// nothing.
func (m *GlobMatcher) Matches(pattern, candidate string) bool {
	if pattern == Any {
		return true
	}
	g, err := m.compile(pattern)
	if err != nil {
		return false
	}
	return g.Match(candidate)
}

func (m *GlobMatcher) compile(pattern string) (glob.Glob, error) {
	if cached, ok := m.cache.Load(pattern); ok {
		return cached.(glob.Glob), nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.cache.Store(pattern, g)
	return g, nil
}
