// Package resolve computes the transitive dependency closure of a module
// descriptor.
//
// Engine is the contract the orchestration layer depends on. Resolver is the
// default implementation: it walks dependency edges breadth first,
// following configuration mappings, fetching descriptors in parallel and
// applying exclusion rules, then runs conflict management over the modules
// reached in more than one revision.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
)

// Conflict manager names accepted in conflict rules.
const (
	// ManagerNone keeps every revision reached.
	ManagerNone = "none"
	// ManagerAll is an alias of ManagerNone.
	ManagerAll = "all"
	// ManagerLatestRevision keeps the highest revision and evicts the others.
	ManagerLatestRevision = "latest-revision"
	// ManagerStrict fails the resolution when two revisions of a module meet.
	ManagerStrict = "strict"
)

// Sentinel errors for resolution.
var (
	// ErrNoRepository indicates neither a dictator nor a default repository
	// was available.
	ErrNoRepository = errors.New("no repository to resolve from")

	// ErrUnknownConflictManager indicates a conflict rule names an
	// unsupported manager.
	ErrUnknownConflictManager = errors.New("unknown conflict manager")
)

// Engine resolves a root descriptor into its dependency graph.
type Engine interface {
	Resolve(ctx context.Context, root *module.Descriptor, opts Options) (*Result, error)
}

// Options are the per-call resolution parameters.
type Options struct {
	// Confs are the root configurations to resolve. Empty means "*".
	Confs []string

	// Transitive follows dependencies beyond the root's direct ones.
	Transitive bool

	// Dictator, when set, is the only repository consulted for this call,
	// bypassing the engine's configured repository.
	Dictator repository.Repository

	// LogDroppedExcludes reports exclusion rules that could not be applied
	// at Info level and in the result diagnostics instead of at Debug level.
	LogDroppedExcludes bool

	// Validate checks each fetched descriptor; invalid ones become failed
	// nodes.
	Validate bool
}

// Result is a resolved dependency graph.
type Result struct {
	// Nodes holds every revision reached, resolved or failed, ordered by
	// organization, name and revision. The root is not included.
	Nodes []module.ResolvedNode

	// Diagnostics are human readable notes about the resolution.
	Diagnostics []string
}

// FailedNodes returns the nodes that could not be resolved.
func (r *Result) FailedNodes() []module.ResolvedNode {
	var out []module.ResolvedNode
	for _, n := range r.Nodes {
		if n.IsFailed() {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node for rev.
func (r *Result) Node(rev module.RevisionID) (module.ResolvedNode, bool) {
	for _, n := range r.Nodes {
		if n.Revision == rev {
			return n, true
		}
	}
	return module.ResolvedNode{}, false
}

// ConflictError is returned by the strict conflict manager.
type ConflictError struct {
	Module    module.ID
	Revisions []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: revisions %s", e.Module, strings.Join(e.Revisions, ", "))
}
