package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/albertocavalcante/go-depot/module"
)

// ErrModuleNotFound is returned when a queried module is not in the graph.
var ErrModuleNotFound = errors.New("module not found in graph")

// Get returns the node for a revision, or nil if not found.
func (g *Graph) Get(key module.RevisionID) *Node {
	return g.Modules[key]
}

// Revisions returns every revision of id in the graph, sorted.
func (g *Graph) Revisions(id module.ID) []module.RevisionID {
	var out []module.RevisionID
	for key := range g.Modules {
		if key.ID == id {
			out = append(out, key)
		}
	}
	slices.SortFunc(out, compareKeys)
	return out
}

// Selected returns the revision of id that conflict management kept, if
// any revision of id was reached without being evicted.
func (g *Graph) Selected(id module.ID) (module.RevisionID, bool) {
	for _, key := range g.Revisions(id) {
		if n := g.Modules[key]; !n.Evicted {
			return key, true
		}
	}
	return module.RevisionID{}, false
}

// DirectDeps returns the direct dependencies of a module.
func (g *Graph) DirectDeps(key module.RevisionID) []module.RevisionID {
	if node := g.Modules[key]; node != nil {
		return node.Dependencies
	}
	return nil
}

// DirectDependents returns modules that directly depend on the given module.
func (g *Graph) DirectDependents(key module.RevisionID) []module.RevisionID {
	if node := g.Modules[key]; node != nil {
		return node.Dependents
	}
	return nil
}

// TransitiveDeps returns all transitive dependencies of a module in
// breadth-first order.
func (g *Graph) TransitiveDeps(key module.RevisionID) []module.RevisionID {
	return g.walk(key, func(n *Node) []module.RevisionID { return n.Dependencies })
}

// TransitiveDependents returns all modules that transitively depend on the
// given module, closest dependents first.
func (g *Graph) TransitiveDependents(key module.RevisionID) []module.RevisionID {
	return g.walk(key, func(n *Node) []module.RevisionID { return n.Dependents })
}

func (g *Graph) walk(key module.RevisionID, next func(*Node) []module.RevisionID) []module.RevisionID {
	result := make([]module.RevisionID, 0)
	visited := map[module.RevisionID]bool{key: true}
	queue := []module.RevisionID{key}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current]
		if node == nil {
			continue
		}
		for _, k := range next(node) {
			if !visited[k] {
				visited[k] = true
				result = append(result, k)
				queue = append(queue, k)
			}
		}
	}
	return result
}

// Path finds the shortest dependency path from one module to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to module.RevisionID) []module.RevisionID {
	if from == to {
		return []module.RevisionID{from}
	}

	type queueItem struct {
		key  module.RevisionID
		path []module.RevisionID
	}

	visited := map[module.RevisionID]bool{from: true}
	queue := []queueItem{{key: from, path: []module.RevisionID{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current.key]
		if node == nil {
			continue
		}
		for _, dep := range node.Dependencies {
			path := append(slices.Clip(current.path), dep)
			if dep == to {
				return path
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, queueItem{key: dep, path: path})
			}
		}
	}
	return nil
}

// AllPaths finds all acyclic dependency paths from one module to another.
// This can be expensive for large graphs with many paths.
func (g *Graph) AllPaths(from, to module.RevisionID) [][]module.RevisionID {
	var result [][]module.RevisionID
	g.findAllPaths(from, to, []module.RevisionID{from}, make(map[module.RevisionID]bool), &result)
	return result
}

func (g *Graph) findAllPaths(current, target module.RevisionID, path []module.RevisionID, visited map[module.RevisionID]bool, result *[][]module.RevisionID) {
	if current == target {
		*result = append(*result, slices.Clone(path))
		return
	}

	visited[current] = true
	defer func() { visited[current] = false }()

	node := g.Modules[current]
	if node == nil {
		return
	}
	for _, dep := range node.Dependencies {
		if !visited[dep] {
			g.findAllPaths(dep, target, append(path, dep), visited, result)
		}
	}
}

// Explain describes which revisions of id were reached, who asked for
// them, and which survived conflict management.
func (g *Graph) Explain(id module.ID) (*Explanation, error) {
	revisions := g.Revisions(id)
	if len(revisions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	explanation := &Explanation{Module: id, Selection: g.selection(revisions)}
	for _, key := range revisions {
		node := g.Modules[key]
		for _, path := range g.AllPaths(g.Root, key) {
			chain := DependencyChain{Path: path}
			if len(path) >= 2 {
				chain.RequestedRevision = node.RequestedRevisions[path[len(path)-2]]
			}
			explanation.DependencyChains = append(explanation.DependencyChains, chain)
		}
	}
	return explanation, nil
}

func (g *Graph) selection(revisions []module.RevisionID) SelectionInfo {
	info := SelectionInfo{Strategy: StrategySingle}
	evicted := 0
	for _, key := range revisions {
		node := g.Modules[key]
		if node.IsRoot {
			info.Strategy = StrategyRoot
		}
		if node.Evicted {
			evicted++
		}
		info.Candidates = append(info.Candidates, Candidate{
			Revision:    key.Revision,
			RequestedBy: node.Dependents,
			Selected:    !node.Evicted && !node.Failed,
			Failed:      node.Failed,
			EvictedBy:   node.EvictedBy,
		})
	}
	switch {
	case info.Strategy == StrategyRoot:
	case evicted > 0:
		info.Strategy = StrategyConflict
	case len(revisions) > 1:
		info.Strategy = StrategyCoexist
	}
	return info
}

// WhyIncluded returns the dependency chains from the root to every
// revision of id.
func (g *Graph) WhyIncluded(id module.ID) ([]DependencyChain, error) {
	explanation, err := g.Explain(id)
	if err != nil {
		return nil, err
	}
	return explanation.DependencyChains, nil
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{TotalModules: len(g.Modules)}
	if root := g.Modules[g.Root]; root != nil {
		stats.DirectDependencies = len(root.Dependencies)
	}
	stats.TransitiveDependencies = max(stats.TotalModules-stats.DirectDependencies-1, 0)
	for _, node := range g.Modules {
		if node.Evicted {
			stats.Evicted++
		}
		if node.Failed {
			stats.Failed++
		}
	}
	stats.MaxDepth = g.calculateMaxDepth()
	return stats
}

func (g *Graph) calculateMaxDepth() int {
	depths := make(map[module.RevisionID]int)
	onPath := make(map[module.RevisionID]bool)
	var maxDepth int

	var dfs func(key module.RevisionID, depth int)
	dfs = func(key module.RevisionID, depth int) {
		// An edge back onto the current path closes a cycle.
		if onPath[key] {
			return
		}
		if existing, ok := depths[key]; ok && existing >= depth {
			return
		}
		depths[key] = depth
		maxDepth = max(maxDepth, depth)

		node := g.Modules[key]
		if node == nil {
			return
		}
		onPath[key] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, key)
	}

	dfs(g.Root, 0)
	return maxDepth
}

// Leaves returns all modules without dependencies, sorted.
func (g *Graph) Leaves() []module.RevisionID {
	var leaves []module.RevisionID
	for key, node := range g.Modules {
		if len(node.Dependencies) == 0 {
			leaves = append(leaves, key)
		}
	}
	slices.SortFunc(leaves, compareKeys)
	return leaves
}

// HasCycles returns true if the graph contains cycles.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// FindCycles returns the cycles reachable from the root. Each cycle starts
// and ends with the same module.
func (g *Graph) FindCycles() [][]module.RevisionID {
	var cycles [][]module.RevisionID
	visited := make(map[module.RevisionID]bool)
	onPath := make(map[module.RevisionID]int)
	var path []module.RevisionID

	var visit func(key module.RevisionID)
	visit = func(key module.RevisionID) {
		visited[key] = true
		onPath[key] = len(path)
		path = append(path, key)

		if node := g.Modules[key]; node != nil {
			for _, dep := range node.Dependencies {
				if start, ok := onPath[dep]; ok {
					cycle := append(slices.Clone(path[start:]), dep)
					cycles = append(cycles, cycle)
					continue
				}
				if !visited[dep] {
					visit(dep)
				}
			}
		}

		path = path[:len(path)-1]
		delete(onPath, key)
	}

	visit(g.Root)
	return cycles
}
