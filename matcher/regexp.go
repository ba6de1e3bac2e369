package matcher

import (
	"regexp"
	"sync"
)

// RegexpMatcher matches anchored Go regular expressions.
type RegexpMatcher struct {
	cache sync.Map // map[string]*regexp.Regexp
}

// NewRegexpMatcher returns a regexp matcher with an empty pattern cache.
func NewRegexpMatcher() *RegexpMatcher {
	return &RegexpMatcher{}
}

func (*RegexpMatcher) Name() string { return Regexp }

func (*RegexpMatcher) IsLiteral(expr string) bool {
	return regexp.QuoteMeta(expr) == expr
}

// Matches reports whether the whole candidate matches pattern. Invalid
// expressions match nothing.
func (m *RegexpMatcher) Matches(pattern, candidate string) bool {
	if pattern == Any {
		return true
	}
	re, ok := m.cache.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return false
		}
		re, _ = m.cache.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(candidate)
}
