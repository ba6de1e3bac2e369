package graph

import (
	"strings"

	"github.com/albertocavalcante/go-depot/module"
)

// Graph is a resolved module dependency graph. It supports traversal in
// both directions and explains conflict evictions.
type Graph struct {
	// Root is the module the resolution started from.
	Root module.RevisionID

	// Modules holds every node, keyed by revision.
	Modules map[module.RevisionID]*Node
}

// Node is one module revision in the graph.
type Node struct {
	Key module.RevisionID

	// Dependencies are the revisions this module's dependencies resolved
	// to, in declaration order.
	Dependencies []module.RevisionID

	// Dependents are the modules that depend directly on this one.
	Dependents []module.RevisionID

	// RequestedRevisions maps each dependent to the revision it asked for,
	// which differs from Key.Revision for dynamic requests.
	RequestedRevisions map[module.RevisionID]string

	IsRoot    bool
	Failed    bool
	Evicted   bool
	EvictedBy *module.RevisionID
}

// SelectionStrategy tells how the revision of a module was decided.
type SelectionStrategy string

const (
	// StrategyRoot is the resolved module itself.
	StrategyRoot SelectionStrategy = "root"

	// StrategySingle means only one revision of the module was reached.
	StrategySingle SelectionStrategy = "single"

	// StrategyConflict means conflict management evicted other revisions.
	StrategyConflict SelectionStrategy = "conflict"

	// StrategyCoexist means several revisions were reached and all kept.
	StrategyCoexist SelectionStrategy = "coexist"
)

// Candidate is one revision of a module reached during resolution.
type Candidate struct {
	Revision    string
	RequestedBy []module.RevisionID
	Selected    bool
	Failed      bool
	EvictedBy   *module.RevisionID
}

// SelectionInfo explains which revisions of a module survived.
type SelectionInfo struct {
	Strategy   SelectionStrategy
	Candidates []Candidate
}

// Explanation describes why a module is in the graph at its revisions.
type Explanation struct {
	Module    module.ID
	Selection SelectionInfo

	// DependencyChains are the paths from the root to each candidate.
	DependencyChains []DependencyChain
}

// DependencyChain is a path of dependencies from the root to a module.
type DependencyChain struct {
	Path []module.RevisionID

	// RequestedRevision is what the last module's dependent asked for.
	RequestedRevision string
}

// String returns the chain as "a -> b -> c".
func (c DependencyChain) String() string {
	parts := make([]string, len(c.Path))
	for i, k := range c.Path {
		parts[i] = k.String()
	}
	s := strings.Join(parts, " -> ")
	if c.RequestedRevision != "" && len(c.Path) > 0 && c.RequestedRevision != c.Path[len(c.Path)-1].Revision {
		s += " (requested " + c.RequestedRevision + ")"
	}
	return s
}

// Stats summarizes a graph.
type Stats struct {
	TotalModules           int
	DirectDependencies     int
	TransitiveDependencies int
	MaxDepth               int
	Evicted                int
	Failed                 int
}
