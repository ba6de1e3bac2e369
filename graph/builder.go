package graph

import (
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
)

// Build reconstructs the dependency graph of r. Each dependency declared
// by a resolved descriptor is linked to the node of the exact revision it
// names when the resolution reached it, or otherwise to the selected
// revision of the same module, which covers dynamic requests.
func Build(r *report.Report) *Graph {
	g := &Graph{
		Root:    r.Root.Revision,
		Modules: make(map[module.RevisionID]*Node, len(r.Nodes)+1),
	}
	g.Modules[g.Root] = newNode(g.Root)
	g.Modules[g.Root].IsRoot = true

	descriptors := []*module.Descriptor{r.Root}
	selected := make(map[module.ID]module.RevisionID)
	for _, n := range r.Nodes {
		if n.Revision == g.Root {
			continue
		}
		node := newNode(n.Revision)
		node.Failed = n.IsFailed()
		node.Evicted = n.Evicted
		node.EvictedBy = n.EvictedBy
		g.Modules[n.Revision] = node
		if md, ok := n.Descriptor(); ok {
			descriptors = append(descriptors, md)
		}
		if _, ok := selected[n.Revision.ID]; !ok || !n.Evicted {
			selected[n.Revision.ID] = n.Revision
		}
	}

	for _, md := range descriptors {
		key := md.Revision
		node := g.Modules[key]
		for _, dep := range md.Dependencies {
			target, ok := g.Modules[dep.Revision]
			if !ok {
				rev, found := selected[dep.Revision.ID]
				if !found {
					continue
				}
				target = g.Modules[rev]
			}
			if target.Key == key {
				continue
			}
			node.Dependencies = appendUnique(node.Dependencies, target.Key)
			target.Dependents = appendUnique(target.Dependents, key)
			target.RequestedRevisions[key] = dep.Revision.Revision
		}
	}
	for _, node := range g.Modules {
		slices.SortFunc(node.Dependents, compareKeys)
	}
	return g
}

func compareKeys(a, b module.RevisionID) int {
	return strings.Compare(a.String(), b.String())
}

func newNode(key module.RevisionID) *Node {
	return &Node{Key: key, RequestedRevisions: make(map[module.RevisionID]string)}
}

func appendUnique(keys []module.RevisionID, k module.RevisionID) []module.RevisionID {
	for _, existing := range keys {
		if existing == k {
			return keys
		}
	}
	return append(keys, k)
}
