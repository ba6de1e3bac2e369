package graph

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
)

var (
	app     = module.NewRevisionID("acme", "app", "1.0")
	lib     = module.NewRevisionID("acme", "lib", "1.0")
	net     = module.NewRevisionID("acme", "net", "2.0")
	core10  = module.NewRevisionID("acme", "core", "1.0")
	core12  = module.NewRevisionID("acme", "core", "1.2")
	coreDyn = module.NewRevisionID("acme", "core", "latest.integration")
)

func descriptor(rev module.RevisionID, deps ...module.RevisionID) *module.Descriptor {
	md := module.NewDescriptor(rev, module.StatusRelease, time.Time{})
	_ = md.AddConfiguration(module.Configuration{Name: module.DefaultConf})
	for _, d := range deps {
		dep := module.NewDependency(d, true)
		dep.AddConfMapping(module.DefaultConf, module.DefaultConf)
		md.AddDependency(dep)
	}
	return md
}

// createTestReport resolves:
//
//	acme#app;1.0
//	├── acme#lib;1.0
//	│   └── acme#core;1.0 (evicted by 1.2)
//	└── acme#net;2.0
//	    └── acme#core;1.2 (requested latest.integration)
func createTestReport(extra ...module.ResolvedNode) *report.Report {
	evicted := module.NewResolvedNode(descriptor(core10), []string{module.DefaultConf})
	evicted.Evicted = true
	evictedBy := core12
	evicted.EvictedBy = &evictedBy

	nodes := []module.ResolvedNode{
		module.NewResolvedNode(descriptor(lib, core10), []string{module.DefaultConf}),
		module.NewResolvedNode(descriptor(net, coreDyn), []string{module.DefaultConf}),
		evicted,
		module.NewResolvedNode(descriptor(core12), []string{module.DefaultConf}),
	}
	nodes = append(nodes, extra...)

	root := descriptor(app, lib, net)
	for _, n := range extra {
		root.AddDependency(module.NewDependency(n.Revision, true))
	}
	return report.New(root, []string{module.DefaultConf}, nodes, nil)
}

func TestBuild(t *testing.T) {
	g := Build(createTestReport())

	assert.Equal(t, app, g.Root)
	assert.Len(t, g.Modules, 5)
	require.NotNil(t, g.Get(app))
	assert.True(t, g.Get(app).IsRoot)
	assert.Equal(t, []module.RevisionID{lib, net}, g.DirectDeps(app))

	assert.Equal(t, []module.RevisionID{core10}, g.DirectDeps(lib), "exact revision links to the node reached")
	assert.Equal(t, []module.RevisionID{core12}, g.DirectDeps(net), "dynamic revision links to the selected node")
	assert.Equal(t, "latest.integration", g.Get(core12).RequestedRevisions[net])

	assert.True(t, g.Get(core10).Evicted)
	require.NotNil(t, g.Get(core10).EvictedBy)
	assert.Equal(t, core12, *g.Get(core10).EvictedBy)
	assert.Nil(t, g.Get(module.NewRevisionID("acme", "x", "1")))
}

func TestBuild_SkipsUnreachedDependencies(t *testing.T) {
	root := descriptor(app, lib)
	r := report.New(root, []string{module.DefaultConf}, nil, nil)

	g := Build(r)
	assert.Len(t, g.Modules, 1)
	assert.Empty(t, g.DirectDeps(app))
}

func TestGraph_Revisions(t *testing.T) {
	g := Build(createTestReport())

	core := module.NewID("acme", "core")
	assert.Equal(t, []module.RevisionID{core10, core12}, g.Revisions(core))

	selected, ok := g.Selected(core)
	require.True(t, ok)
	assert.Equal(t, core12, selected)

	_, ok = g.Selected(module.NewID("acme", "missing"))
	assert.False(t, ok)
}

func TestGraph_Dependents(t *testing.T) {
	g := Build(createTestReport())

	assert.Equal(t, []module.RevisionID{net}, g.DirectDependents(core12))
	assert.Equal(t, []module.RevisionID{net, app}, g.TransitiveDependents(core12))
	assert.ElementsMatch(t, []module.RevisionID{lib, net, core10, core12}, g.TransitiveDeps(app))
	assert.Empty(t, g.TransitiveDeps(core12))
}

func TestGraph_Path(t *testing.T) {
	g := Build(createTestReport())

	assert.Equal(t, []module.RevisionID{app, net, core12}, g.Path(app, core12))
	assert.Equal(t, []module.RevisionID{app}, g.Path(app, app))
	assert.Nil(t, g.Path(core12, app))
}

func TestGraph_AllPaths(t *testing.T) {
	g := Build(createTestReport())

	paths := g.AllPaths(app, core10)
	assert.Equal(t, [][]module.RevisionID{{app, lib, core10}}, paths)
	assert.Empty(t, g.AllPaths(lib, net))
}

func TestGraph_Stats(t *testing.T) {
	failed := module.NewFailedNode(module.NewRevisionID("acme", "gone", "1.0"), errors.New("not found"), nil)
	g := Build(createTestReport(failed))

	stats := g.Stats()
	assert.Equal(t, Stats{
		TotalModules:           6,
		DirectDependencies:     3,
		TransitiveDependencies: 2,
		MaxDepth:               2,
		Evicted:                1,
		Failed:                 1,
	}, stats)
}

func TestGraph_Leaves(t *testing.T) {
	g := Build(createTestReport())
	assert.Equal(t, []module.RevisionID{core10, core12}, g.Leaves())
}

func TestGraph_Cycles(t *testing.T) {
	g := Build(createTestReport())
	assert.False(t, g.HasCycles())
	assert.Empty(t, g.FindCycles())

	back := module.NewResolvedNode(descriptor(module.NewRevisionID("acme", "loop", "1.0"), app), nil)
	g = Build(createTestReport(back))

	assert.True(t, g.HasCycles())
	assert.Equal(t, [][]module.RevisionID{{app, back.Revision, app}}, g.FindCycles())
	assert.Equal(t, 2, g.Stats().MaxDepth)
}

func TestGraph_Explain(t *testing.T) {
	g := Build(createTestReport())

	explanation, err := g.Explain(module.NewID("acme", "core"))
	require.NoError(t, err)

	assert.Equal(t, StrategyConflict, explanation.Selection.Strategy)
	require.Len(t, explanation.Selection.Candidates, 2)

	evicted := explanation.Selection.Candidates[0]
	assert.Equal(t, "1.0", evicted.Revision)
	assert.False(t, evicted.Selected)
	assert.Equal(t, []module.RevisionID{lib}, evicted.RequestedBy)
	require.NotNil(t, evicted.EvictedBy)
	assert.Equal(t, core12, *evicted.EvictedBy)

	selected := explanation.Selection.Candidates[1]
	assert.Equal(t, "1.2", selected.Revision)
	assert.True(t, selected.Selected)

	require.Len(t, explanation.DependencyChains, 2)
	assert.Equal(t, "acme#app;1.0 -> acme#lib;1.0 -> acme#core;1.0", explanation.DependencyChains[0].String())
	assert.Equal(t, "acme#app;1.0 -> acme#net;2.0 -> acme#core;1.2 (requested latest.integration)",
		explanation.DependencyChains[1].String())

	_, err = g.Explain(module.NewID("acme", "nonexistent"))
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestGraph_ExplainStrategies(t *testing.T) {
	g := Build(createTestReport())

	tests := []struct {
		id   module.ID
		want SelectionStrategy
	}{
		{app.ID, StrategyRoot},
		{lib.ID, StrategySingle},
		{core10.ID, StrategyConflict},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			explanation, err := g.Explain(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, explanation.Selection.Strategy)
		})
	}
}

func TestGraph_WhyIncluded(t *testing.T) {
	g := Build(createTestReport())

	chains, err := g.WhyIncluded(net.ID)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, []module.RevisionID{app, net}, chains[0].Path)

	_, err = g.WhyIncluded(module.NewID("acme", "nonexistent"))
	assert.Error(t, err)
}

func TestGraph_ToJSON(t *testing.T) {
	g := Build(createTestReport())

	data, err := g.ToJSON()
	require.NoError(t, err)

	var tree TreeNode
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, "acme#app;1.0", tree.Module)
	assert.Equal(t, "root", tree.Status)
	require.Len(t, tree.Dependencies, 2)

	libTree := tree.Dependencies[0]
	require.Len(t, libTree.Dependencies, 1)
	assert.Equal(t, "evicted", libTree.Dependencies[0].Status)
	assert.Equal(t, "acme#core;1.2", libTree.Dependencies[0].EvictedBy)
}

func TestGraph_ToJSONMarksCycles(t *testing.T) {
	back := module.NewResolvedNode(descriptor(module.NewRevisionID("acme", "loop", "1.0"), app), nil)
	g := Build(createTestReport(back))

	data, err := g.ToJSON()
	require.NoError(t, err)

	var tree TreeNode
	require.NoError(t, json.Unmarshal(data, &tree))
	loop := tree.Dependencies[2]
	require.Len(t, loop.Dependencies, 1)
	assert.True(t, loop.Dependencies[0].Cycle)
}

func TestGraph_ToDOT(t *testing.T) {
	g := Build(createTestReport())

	dot := g.ToDOT()
	assert.Contains(t, dot, "digraph dependencies")
	assert.Contains(t, dot, "rankdir=LR")
	assert.Contains(t, dot, `"acme#app;1.0" [label="acme#app\n1.0", style=bold];`)
	assert.Contains(t, dot, `"acme#core;1.0" [label="acme#core\n1.0", style=dashed];`)
	assert.Contains(t, dot, `"acme#net;2.0" -> "acme#core;1.2";`)
	assert.Equal(t, dot, g.ToDOT(), "output is deterministic")
}

func TestGraph_ToText(t *testing.T) {
	g := Build(createTestReport())

	text := g.ToText()
	assert.Contains(t, text, "Dependency Graph (root: acme#app;1.0)")
	assert.Contains(t, text, "Total modules: 5")
	assert.Contains(t, text, "Evicted: 1")
	assert.Contains(t, text, `Dependency Tree:
acme#app;1.0
├── acme#lib;1.0
│   └── acme#core;1.0 (evicted by 1.2)
└── acme#net;2.0
    └── acme#core;1.2
`)
}

func TestGraph_ToExplainText(t *testing.T) {
	g := Build(createTestReport())

	text, err := g.ToExplainText(module.NewID("acme", "core"))
	require.NoError(t, err)
	assert.Contains(t, text, "Explanation for: acme#core")
	assert.Contains(t, text, "Strategy: conflict")
	assert.Contains(t, text, "✓ 1.2 - requested by: acme#net;2.0")
	assert.Contains(t, text, "Reason not selected: evicted by acme#core;1.2")
	assert.Contains(t, text, "1. acme#app;1.0 -> acme#lib;1.0 -> acme#core;1.0")

	_, err = g.ToExplainText(module.NewID("acme", "nonexistent"))
	assert.ErrorIs(t, err, ErrModuleNotFound)
}
