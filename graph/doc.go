// Package graph provides dependency graph representation and query
// capabilities over a resolution report.
//
// A report lists the modules a resolution reached; the graph adds the
// edges between them, reconstructed from the resolved descriptors, so
// callers can:
//
//   - Print the dependency tree of the resolved module
//   - Explain why a module is at a particular revision, or was evicted
//   - Find dependency paths between modules
//   - Query direct and transitive dependents
//
// # Building a Graph
//
//	r, _ := sess.EnsureResolved(ctx, opts)
//	g := graph.Build(r)
//
// # Querying the Graph
//
//	deps := g.DirectDeps(rev)
//	explanation, _ := g.Explain(module.NewID("acme", "core"))
//	path := g.Path(g.Root, rev)
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON() // nested tree
//	dot := g.ToDOT()            // Graphviz
//	text := g.ToText()          // summary and tree
package graph
