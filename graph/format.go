package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depot/module"
)

const separatorWidth = 60

// TreeNode is the JSON shape of a module in the dependency tree.
type TreeNode struct {
	Module       string     `json:"module"`
	Status       string     `json:"status,omitempty"`
	EvictedBy    string     `json:"evictedBy,omitempty"`
	Dependencies []TreeNode `json:"dependencies,omitempty"`

	// Unexpanded marks a module already expanded elsewhere in the tree.
	Unexpanded bool `json:"unexpanded,omitempty"`

	// Cycle marks an edge back to a module on the current path.
	Cycle bool `json:"cycle,omitempty"`
}

// ToJSON outputs the graph as a nested dependency tree rooted at the
// resolved module. Each module is expanded once.
func (g *Graph) ToJSON() ([]byte, error) {
	visited := map[module.RevisionID]bool{g.Root: true}
	onPath := map[module.RevisionID]bool{g.Root: true}
	tree := g.treeNode(g.Root, visited, onPath)
	return json.MarshalIndent(tree, "", "  ")
}

func (g *Graph) treeNode(key module.RevisionID, visited, onPath map[module.RevisionID]bool) TreeNode {
	node := g.Modules[key]
	t := TreeNode{Module: key.String(), Status: status(node)}
	if node == nil {
		return t
	}
	if node.EvictedBy != nil {
		t.EvictedBy = node.EvictedBy.String()
	}
	for _, dep := range node.Dependencies {
		switch {
		case onPath[dep]:
			t.Dependencies = append(t.Dependencies, TreeNode{Module: dep.String(), Cycle: true})
		case visited[dep]:
			t.Dependencies = append(t.Dependencies, TreeNode{Module: dep.String(), Unexpanded: true})
		default:
			visited[dep] = true
			onPath[dep] = true
			t.Dependencies = append(t.Dependencies, g.treeNode(dep, visited, onPath))
			delete(onPath, dep)
		}
	}
	return t
}

func status(n *Node) string {
	switch {
	case n == nil:
		return ""
	case n.IsRoot:
		return "root"
	case n.Failed:
		return "failed"
	case n.Evicted:
		return "evicted"
	default:
		return "resolved"
	}
}

// ToDOT outputs the graph in Graphviz DOT format.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	keys := g.sortedKeys()
	for _, key := range keys {
		node := g.Modules[key]
		attrs := fmt.Sprintf(`label="%s\n%s"`, key.ModuleID(), key.Revision) //nolint:gocritic // DOT format requires this quote style
		switch {
		case node.IsRoot:
			attrs += ", style=bold"
		case node.Failed:
			attrs += ", color=red"
		case node.Evicted:
			attrs += ", style=dashed"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", key.String(), attrs)
	}

	buf.WriteString("\n")

	for _, key := range keys {
		for _, dep := range g.Modules[key].Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", key.String(), dep.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func (g *Graph) sortedKeys() []module.RevisionID {
	return slices.SortedFunc(maps.Keys(g.Modules), compareKeys)
}

// ToText outputs a summary of the graph followed by its dependency tree.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dependency Graph (root: %s)\n", g.Root)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	fmt.Fprintf(&buf, "Total modules: %d\n", stats.TotalModules)
	fmt.Fprintf(&buf, "Direct dependencies: %d\n", stats.DirectDependencies)
	fmt.Fprintf(&buf, "Transitive dependencies: %d\n", stats.TransitiveDependencies)
	fmt.Fprintf(&buf, "Max depth: %d\n", stats.MaxDepth)
	if stats.Evicted > 0 {
		fmt.Fprintf(&buf, "Evicted: %d\n", stats.Evicted)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(&buf, "Failed: %d\n", stats.Failed)
	}
	buf.WriteString("\nDependency Tree:\n")
	g.printTree(&buf, g.Root, "", true, make(map[module.RevisionID]bool))

	return buf.String()
}

func (g *Graph) printTree(buf *bytes.Buffer, key module.RevisionID, prefix string, isLast bool, onPath map[module.RevisionID]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if prefix == "" && key == g.Root {
		buf.WriteString(key.String())
	} else {
		buf.WriteString(prefix + connector + key.String())
	}

	node := g.Modules[key]
	if node != nil {
		switch {
		case node.Failed:
			buf.WriteString(" (failed)")
		case node.EvictedBy != nil:
			fmt.Fprintf(buf, " (evicted by %s)", node.EvictedBy.Revision)
		case node.Evicted:
			buf.WriteString(" (evicted)")
		}
	}

	if onPath[key] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")

	if node == nil {
		return
	}
	onPath[key] = true
	defer delete(onPath, key)

	childPrefix := prefix
	if key != g.Root {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	for i, dep := range node.Dependencies {
		g.printTree(buf, dep, childPrefix, i == len(node.Dependencies)-1, onPath)
	}
}

// ToExplainText outputs a human-readable explanation for a module.
func (g *Graph) ToExplainText(id module.ID) (string, error) {
	explanation, err := g.Explain(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Explanation for: %s\n", explanation.Module)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	buf.WriteString("Revision Selection:\n")
	fmt.Fprintf(&buf, "  Strategy: %s\n", explanation.Selection.Strategy)
	buf.WriteString("\n  Candidates considered:\n")
	for _, c := range explanation.Selection.Candidates {
		mark := "  "
		if c.Selected {
			mark = "✓ "
		}
		requesters := make([]string, len(c.RequestedBy))
		for i, r := range c.RequestedBy {
			requesters[i] = r.String()
		}
		fmt.Fprintf(&buf, "    %s%s - requested by: %s\n", mark, c.Revision, strings.Join(requesters, ", "))
		switch {
		case c.Failed:
			buf.WriteString("      Reason not selected: resolution failed\n")
		case c.EvictedBy != nil:
			fmt.Fprintf(&buf, "      Reason not selected: evicted by %s\n", c.EvictedBy)
		}
	}

	if len(explanation.DependencyChains) > 0 {
		buf.WriteString("\nDependency Chains (paths from root):\n")
		for i, chain := range explanation.DependencyChains {
			fmt.Fprintf(&buf, "  %d. %s\n", i+1, chain)
		}
	}

	return buf.String(), nil
}
