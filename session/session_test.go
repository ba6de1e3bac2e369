package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptorOf(t *testing.T, coord string, confs ...string) *module.Descriptor {
	t.Helper()
	rev, err := module.ParseRevisionID(coord)
	require.NoError(t, err)
	md := module.NewDescriptor(rev, module.StatusRelease, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	for _, c := range confs {
		require.NoError(t, md.AddConfiguration(module.Configuration{Name: c}))
	}
	return md
}

// resolved returns a report for md covering confs.
func resolved(md *module.Descriptor, confs ...string) *report.Report {
	return report.New(md, confs, nil, nil)
}

type fakeResolver struct {
	requests []ResolveRequest
	report   func(ResolveRequest) *report.Report
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, req ResolveRequest) (*report.Report, error) {
	f.requests = append(f.requests, req)
	var r *report.Report
	if f.report != nil {
		r = f.report(req)
	}
	return r, f.err
}

func TestRegistry_Keys(t *testing.T) {
	r := NewRegistry()
	r.Put(ModuleKey(KindConfs, "acme", "app"), []string{"compile"})
	r.Put(GlobalKey(KindConfs), []string{"test"})

	v, ok := r.Get(ModuleKey(KindConfs, "acme", "app"))
	require.True(t, ok)
	assert.Equal(t, []string{"compile"}, v)

	_, ok = r.Get(ModuleKey(KindReport, "acme", "app"))
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())

	assert.Equal(t, "confs[acme#app]", ModuleKey(KindConfs, "acme", "app").String())
	assert.Equal(t, "report", GlobalKey(KindReport).String())
}

func TestSession_LookupFallback(t *testing.T) {
	s := New(nil)
	app := descriptorOf(t, "acme#app;1.0", "compile")
	s.SetResolved(resolved(app, "compile"), true)

	md, ok := s.ResolvedDescriptor("acme", "app", true)
	require.True(t, ok)
	assert.Same(t, app, md)

	// Unknown module: strict misses, non-strict falls back to the global entry.
	_, ok = s.ResolvedDescriptor("acme", "other", true)
	assert.False(t, ok)
	md, ok = s.ResolvedDescriptor("acme", "other", false)
	require.True(t, ok)
	assert.Same(t, app, md)

	// Without both coordinates only the global entry is consulted.
	md, ok = s.ResolvedDescriptor("", "app", false)
	require.True(t, ok)
	assert.Same(t, app, md)
	_, ok = s.ResolvedDescriptor("", "", true)
	assert.False(t, ok)
}

func TestSession_Entry(t *testing.T) {
	s := New(nil)
	_, ok := s.Entry("", "", false)
	assert.False(t, ok)

	app := descriptorOf(t, "acme#app;1.0", "compile", "test")
	r := resolved(app, "compile")
	s.SetResolved(r, true)

	entry, ok := s.Entry("acme", "app", true)
	require.True(t, ok)
	assert.Same(t, r, entry.Report)
	assert.Same(t, app, entry.Descriptor)
	assert.Equal(t, []string{"compile"}, entry.Confs)

	_, ok = s.Entry("acme", "other", true)
	assert.False(t, ok)
}

func TestSession_SetResolvedWithoutKeep(t *testing.T) {
	s := New(nil)
	first := descriptorOf(t, "acme#first;1.0", "default")
	second := descriptorOf(t, "acme#second;1.0", "default")

	s.SetResolved(resolved(first, "default"), true)
	s.SetResolved(resolved(second, "default"), false)

	r, ok := s.ResolvedReport("", "", false)
	require.True(t, ok)
	assert.Same(t, first, r.Root, "global entry must be left untouched")

	r, ok = s.ResolvedReport("acme", "second", true)
	require.True(t, ok)
	assert.Same(t, second, r.Root)
}

func TestSession_ConfsToResolve(t *testing.T) {
	t.Run("nothing resolved", func(t *testing.T) {
		s := New(nil)
		assert.Equal(t, []string{"*"}, s.ConfsToResolve("acme", "app", "", false))
		assert.Equal(t, []string{"compile", "test"}, s.ConfsToResolve("acme", "app", "compile, test", false))
	})

	s := New(nil)
	app := descriptorOf(t, "acme#app;1.0", "compile", "test", "doc")
	s.SetResolved(resolved(app, "compile", "test"), true)

	tests := []struct {
		name      string
		requested string
		want      []string
	}{
		{"empty request", "", []string{}},
		{"all", "*", []string{"doc"}},
		{"partially resolved", "compile,doc", []string{"doc"}},
		{"already resolved", "compile", []string{}},
		{"unordered", "test, doc, compile", []string{"doc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ConfsToResolve("acme", "app", tt.requested, false))
		})
	}
}

func TestSession_EnsureResolved(t *testing.T) {
	app := descriptorOf(t, "acme#app;1.0", "compile", "test")
	fake := &fakeResolver{report: func(req ResolveRequest) *report.Report {
		return resolved(app, req.Confs...)
	}}
	s := New(fake)
	ctx := context.Background()

	r, err := s.EnsureResolved(ctx, EnsureOptions{Organization: "acme", Module: "app", Conf: "compile", Transitive: true, Validate: true})
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, []string{"compile"}, fake.requests[0].Confs)
	assert.True(t, fake.requests[0].Transitive)
	assert.True(t, fake.requests[0].Validate)

	// The same request is a no-op now.
	r, err = s.EnsureResolved(ctx, EnsureOptions{Organization: "acme", Module: "app", Conf: "compile"})
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Len(t, fake.requests, 1)

	// Only the missing configuration is resolved.
	_, err = s.EnsureResolved(ctx, EnsureOptions{Organization: "acme", Module: "app", Conf: "*"})
	require.NoError(t, err)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, []string{"test"}, fake.requests[1].Confs)

	// Kept globally.
	_, ok := s.ResolvedReport("", "", false)
	assert.True(t, ok)
}

func TestSession_EnsureResolvedFailure(t *testing.T) {
	app := descriptorOf(t, "acme#app;1.0", "default")
	boom := errors.New("boom")

	t.Run("halt", func(t *testing.T) {
		s := New(&fakeResolver{err: boom})
		_, err := s.EnsureResolved(context.Background(), EnsureOptions{HaltOnFailure: true})
		require.ErrorIs(t, err, boom)
		assert.True(t, s.ShouldResolve("", ""))
	})

	t.Run("continue", func(t *testing.T) {
		s := New(&fakeResolver{err: boom, report: func(ResolveRequest) *report.Report { return resolved(app, "default") }})
		r, err := s.EnsureResolved(context.Background(), EnsureOptions{})
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.False(t, s.ShouldResolve("", ""))
		assert.Contains(t, r.Diagnostics, "resolve *: boom")
	})

	t.Run("continue without report", func(t *testing.T) {
		s := New(&fakeResolver{err: boom})
		r, err := s.EnsureResolved(context.Background(), EnsureOptions{Organization: "acme", Module: "app", Conf: "compile"})
		require.ErrorIs(t, err, boom)
		assert.Nil(t, r)
		assert.Zero(t, s.Registry().Len())
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := New(nil).EnsureResolved(context.Background(), EnsureOptions{})
		assert.ErrorIs(t, err, ErrNoResolver)
	})
}

func TestSession_ShouldResolve(t *testing.T) {
	s := New(nil)
	// Both coordinates given: never, even with nothing recorded.
	assert.False(t, s.ShouldResolve("acme", "app"))
	assert.True(t, s.ShouldResolve("", ""))
	assert.True(t, s.ShouldResolve("acme", ""))

	s.SetResolved(resolved(descriptorOf(t, "acme#app;1.0", "default"), "default"), true)
	assert.False(t, s.ShouldResolve("", ""))
	assert.False(t, s.ShouldResolve("", "app"))
}

func TestSession_FixDeps(t *testing.T) {
	dir := t.TempDir()
	s := New(nil)

	err := s.FixDeps("", "", "")
	require.ErrorIs(t, err, settings.ErrMissingParameter)
	assert.Contains(t, err.Error(), "tofile")

	assert.ErrorIs(t, s.FixDeps("", "", filepath.Join(dir, "fixed.star")), ErrNotResolved)

	root := descriptorOf(t, "acme#app;1.0", "default")
	lib := descriptorOf(t, "acme#lib;2.1", "default")
	dep := module.NewDependency(module.NewRevisionID("acme", "lib", "latest.release"), true)
	dep.AddConfMapping("default", "default")
	root.AddDependency(dep)
	r := report.New(root, []string{"default"}, []module.ResolvedNode{module.NewResolvedNode(lib, []string{"default"})}, nil)
	s.SetResolved(r, true)

	require.Error(t, s.FixDeps("", "", dir), "directory destination")

	dest := filepath.Join(dir, "fixed.star")
	require.NoError(t, s.FixDeps("acme", "app", dest))
	fixed, err := descriptor.ParseFile(dest)
	require.NoError(t, err)
	require.Len(t, fixed.Dependencies, 1)
	assert.Equal(t, "2.1", fixed.Dependencies[0].Revision.Revision)
	assert.False(t, fixed.Dependencies[0].Transitive)
}

func TestParsePublicationDate(t *testing.T) {
	def := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParsePublicationDate("", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	before := time.Now()
	got, err = ParsePublicationDate("NOW", def)
	require.NoError(t, err)
	assert.False(t, got.Before(before))

	got, err = ParsePublicationDate("20240506070809", def)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local), got)

	_, err = ParsePublicationDate("2024-05-06", def)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "20060102150405"))
}

func TestDescriptorResolver_ModuleMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), descriptor.FileName)
	require.NoError(t, os.WriteFile(path, []byte(`module(organisation = "acme", name = "app", revision = "1.0")`+"\n"), 0o644))

	d := &DescriptorResolver{Path: path}
	_, err := d.Resolve(context.Background(), ResolveRequest{Organization: "acme", Module: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme#app")
}
