package matcher

// ExactMatcher matches by string equality.
type ExactMatcher struct{}

func (ExactMatcher) Name() string { return Exact }

func (ExactMatcher) IsLiteral(expr string) bool { return expr != Any }

func (ExactMatcher) Matches(pattern, candidate string) bool {
	return pattern == Any || pattern == candidate
}
