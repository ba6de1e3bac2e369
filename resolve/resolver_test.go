package resolve

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mod renders a descriptor for org#name;rev followed by body statements.
func mod(coord string, body ...string) string {
	rev, err := module.ParseRevisionID(coord)
	if err != nil {
		panic(err)
	}
	head := fmt.Sprintf("module(organisation = %q, name = %q, revision = %q, status = \"release\")\n", rev.Organization, rev.Name, rev.Revision)
	return head + strings.Join(body, "\n") + "\n"
}

func parse(t *testing.T, content string) *module.Descriptor {
	t.Helper()
	md, err := descriptor.Parse("module.star", []byte(content))
	require.NoError(t, err)
	return md
}

func repoOf(t *testing.T, name string, contents ...string) *repository.Memory {
	t.Helper()
	repo := repository.NewMemory(name)
	for _, c := range contents {
		repo.Add(parse(t, c), nil)
	}
	return repo
}

func revisions(nodes []module.ResolvedNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Revision.String())
	}
	return out
}

func TestResolve_Transitive(t *testing.T) {
	repo := repoOf(t, "central",
		mod("acme#lib;1.0",
			`configuration(name = "default")`,
			`configuration(name = "test")`,
			`dependency(name = "util", rev = "2.0", conf = "default->default")`,
			`dependency(org = "junit", name = "junit", rev = "4.13", conf = "test->default")`,
		),
		mod("acme#util;2.0", `configuration(name = "default")`),
		mod("junit#junit;4.13"),
	)
	root := parse(t, mod("acme#app;1.0",
		`configuration(name = "compile")`,
		`dependency(name = "lib", rev = "1.0", conf = "compile->default")`,
	))

	res, err := NewResolver(repo).Resolve(context.Background(), root, Options{Confs: []string{"compile"}, Transitive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme#lib;1.0", "acme#util;2.0"}, revisions(res.Nodes))
	assert.Empty(t, res.FailedNodes())

	lib, ok := res.Node(module.NewRevisionID("acme", "lib", "1.0"))
	require.True(t, ok)
	assert.Equal(t, []string{"default"}, lib.Confs)
}

func TestResolve_Intransitive(t *testing.T) {
	repo := repoOf(t, "central",
		mod("acme#lib;1.0", `dependency(name = "util", rev = "2.0")`),
		mod("acme#util;2.0", `dependency(name = "base", rev = "1.0")`),
		mod("acme#base;1.0"),
	)
	root := parse(t, mod("acme#app;1.0", `dependency(name = "lib", rev = "1.0")`))

	res, err := NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme#lib;1.0"}, revisions(res.Nodes))

	// An intransitive edge stops the walk below its target only.
	root = parse(t, mod("acme#app;1.0", `dependency(name = "lib", rev = "1.0")`))
	repo = repoOf(t, "central",
		mod("acme#lib;1.0", `dependency(name = "util", rev = "2.0", transitive = False)`),
		mod("acme#util;2.0", `dependency(name = "base", rev = "1.0")`),
		mod("acme#base;1.0"),
	)
	res, err = NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme#lib;1.0", "acme#util;2.0"}, revisions(res.Nodes))
}

func TestResolve_MissingDependencyIsFailedNode(t *testing.T) {
	repo := repoOf(t, "central", mod("acme#lib;1.0", `dependency(name = "gone", rev = "1.0")`))
	root := parse(t, mod("acme#app;1.0", `dependency(name = "lib", rev = "1.0")`))

	res, err := NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)

	failed := res.FailedNodes()
	require.Len(t, failed, 1)
	assert.Equal(t, "acme#gone;1.0", failed[0].Revision.String())
	assert.True(t, repository.IsNotFound(failed[0].Err()))
	_, ok := failed[0].Descriptor()
	assert.False(t, ok)
}

func TestResolve_Cycle(t *testing.T) {
	repo := repoOf(t, "central",
		mod("acme#a;1.0", `dependency(name = "b", rev = "1.0")`),
		mod("acme#b;1.0", `dependency(name = "a", rev = "1.0")`),
	)
	root := parse(t, mod("acme#app;1.0", `dependency(name = "a", rev = "1.0")`))

	res, err := NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme#a;1.0", "acme#b;1.0"}, revisions(res.Nodes))
}

func conflictRepo(t *testing.T) *repository.Memory {
	return repoOf(t, "central",
		mod("acme#a;1.0", `dependency(name = "c", rev = "1.0")`),
		mod("acme#b;1.0", `dependency(name = "c", rev = "2.0")`),
		mod("acme#c;1.0"),
		mod("acme#c;2.0"),
	)
}

func TestResolve_ConflictManagers(t *testing.T) {
	deps := []string{
		`dependency(name = "a", rev = "1.0")`,
		`dependency(name = "b", rev = "1.0")`,
	}

	t.Run("latest revision", func(t *testing.T) {
		root := parse(t, mod("acme#app;1.0", deps...))
		res, err := NewResolver(conflictRepo(t)).Resolve(context.Background(), root, Options{Transitive: true})
		require.NoError(t, err)

		old, ok := res.Node(module.NewRevisionID("acme", "c", "1.0"))
		require.True(t, ok)
		assert.True(t, old.Evicted)
		require.NotNil(t, old.EvictedBy)
		assert.Equal(t, "2.0", old.EvictedBy.Revision)

		latest, ok := res.Node(module.NewRevisionID("acme", "c", "2.0"))
		require.True(t, ok)
		assert.False(t, latest.Evicted)
	})

	t.Run("none keeps every revision", func(t *testing.T) {
		body := append([]string{`conflict(org = "*", module = "*", matcher = "exact", manager = "none")`}, deps...)
		root := parse(t, mod("acme#app;1.0", body...))
		res, err := NewResolver(conflictRepo(t)).Resolve(context.Background(), root, Options{Transitive: true})
		require.NoError(t, err)
		for _, n := range res.Nodes {
			assert.False(t, n.Evicted, n.Revision.String())
		}
		assert.Len(t, res.Nodes, 4)
	})

	t.Run("strict fails", func(t *testing.T) {
		body := append([]string{`conflict(module = "c", manager = "strict")`}, deps...)
		root := parse(t, mod("acme#app;1.0", body...))
		_, err := NewResolver(conflictRepo(t)).Resolve(context.Background(), root, Options{Transitive: true})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"1.0", "2.0"}, conflict.Revisions)
	})

	t.Run("unknown manager", func(t *testing.T) {
		body := append([]string{`conflict(manager = "coin-flip")`}, deps...)
		root := parse(t, mod("acme#app;1.0", body...))
		_, err := NewResolver(conflictRepo(t)).Resolve(context.Background(), root, Options{Transitive: true})
		require.ErrorIs(t, err, ErrUnknownConflictManager)
	})
}

func TestResolve_Excludes(t *testing.T) {
	repo := repoOf(t, "central",
		mod("acme#lib;1.0",
			`dependency(name = "util", rev = "1.0")`,
			`dependency(org = "logging", name = "log", rev = "1.0")`,
		),
		mod("acme#util;1.0"),
		mod("logging#log;1.0"),
	)
	root := parse(t, mod("acme#app;1.0",
		`dependency(name = "lib", rev = "1.0")`,
		`exclude(dependency = "acme#lib", org = "logging")`,
		`exclude(dependency = "acme#lib", module = "util", type = "source")`,
	))

	res, err := NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme#lib;1.0", "acme#util;1.0"}, revisions(res.Nodes))
	assert.Empty(t, res.Diagnostics)

	res, err = NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true, LogDroppedExcludes: true})
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "dropped exclude rule")
	assert.Contains(t, res.Diagnostics[0], "#util#")
}

func TestResolve_Dictator(t *testing.T) {
	fallback := repoOf(t, "fallback")
	central := repoOf(t, "central", mod("acme#lib;1.0"))
	root := parse(t, mod("acme#app;1.0", `dependency(name = "lib", rev = "1.0")`))

	r := NewResolver(fallback)
	res, err := r.Resolve(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, res.FailedNodes(), 1)

	res, err = r.Resolve(context.Background(), root, Options{Dictator: central})
	require.NoError(t, err)
	assert.Empty(t, res.FailedNodes())

	_, err = NewResolver(nil).Resolve(context.Background(), root, Options{})
	require.ErrorIs(t, err, ErrNoRepository)
}

func TestResolve_Validate(t *testing.T) {
	repo := repoOf(t, "central",
		mod("acme#lib;1.0",
			`configuration(name = "default")`,
			`dependency(name = "util", rev = "1.0", conf = "compile->default")`,
		),
		mod("acme#util;1.0"),
	)
	root := parse(t, mod("acme#app;1.0", `dependency(name = "lib", rev = "1.0")`))

	res, err := NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true})
	require.NoError(t, err)
	assert.Empty(t, res.FailedNodes())

	res, err = NewResolver(repo).Resolve(context.Background(), root, Options{Transitive: true, Validate: true})
	require.NoError(t, err)
	failed := res.FailedNodes()
	require.Len(t, failed, 1)
	var verr *descriptor.ValidationErrors
	assert.ErrorAs(t, failed[0].Err(), &verr)
}

func TestResolve_DynamicRevisions(t *testing.T) {
	repo := repoOf(t, "central",
		mod("acme#lib;1.2"),
		mod("acme#lib;1.10"),
		mod("acme#lib;2.0"),
		strings.Replace(mod("acme#lib;3.0"), `"release"`, `"integration"`, 1),
	)

	tests := []struct {
		rev  string
		want string
	}{
		{rev: "1.+", want: "acme#lib;1.10"},
		{rev: "latest.release", want: "acme#lib;2.0"},
		{rev: "latest.integration", want: "acme#lib;3.0"},
	}
	for _, tt := range tests {
		t.Run(tt.rev, func(t *testing.T) {
			root := parse(t, mod("acme#app;1.0", fmt.Sprintf(`dependency(name = "lib", rev = %q)`, tt.rev)))
			res, err := NewResolver(repo).Resolve(context.Background(), root, Options{})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, revisions(res.Nodes))
		})
	}
}

func TestResolve_RootErrors(t *testing.T) {
	repo := repoOf(t, "central")
	root := parse(t, mod("acme#app;1.0"))

	_, err := NewResolver(repo).Resolve(context.Background(), root, Options{Confs: []string{"missing"}})
	require.ErrorIs(t, err, module.ErrUnknownConfiguration)

	_, err = NewResolver(repo).Resolve(context.Background(), nil, Options{})
	require.Error(t, err)
}

func TestResolve_Canceled(t *testing.T) {
	repo := repoOf(t, "central", mod("acme#lib;1.0"))
	root := parse(t, mod("acme#app;1.0", `dependency(name = "lib", rev = "1.0")`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewResolver(repo).Resolve(ctx, root, Options{})
	require.ErrorIs(t, err, context.Canceled)
}
