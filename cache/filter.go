package cache

import (
	"slices"

	"github.com/albertocavalcante/go-depot/module"
)

// ArtifactFilter selects the artifacts materialized for resolved nodes.
type ArtifactFilter func(module.Artifact) bool

// AcceptAll accepts every artifact.
func AcceptAll(module.Artifact) bool { return true }

// Types accepts artifacts whose type is one of types. "*" accepts all.
func Types(types ...string) ArtifactFilter {
	if len(types) == 0 || slices.Contains(types, module.AllConfs) {
		return AcceptAll
	}
	return func(a module.Artifact) bool {
		return slices.Contains(types, a.Type)
	}
}

// ParseTypes builds a filter from a comma separated type list. An empty
// list accepts everything.
func ParseTypes(s string) ArtifactFilter {
	return Types(module.SplitConfs(s)...)
}

// Artifacts returns the artifacts of node, across its activated
// configurations, that filter accepts. Failed nodes have none.
func Artifacts(node module.ResolvedNode, filter ArtifactFilter) []module.Artifact {
	md, ok := node.Descriptor()
	if !ok {
		return nil
	}
	if filter == nil {
		filter = AcceptAll
	}
	confs := node.Confs
	if len(confs) == 0 {
		confs = []string{module.AllConfs}
	}
	var out []module.Artifact
	for _, a := range md.ArtifactsFor(confs...) {
		if filter(a) {
			out = append(out, a)
		}
	}
	return out
}
