package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
)

const settingsYAML = `cache: cache
default_repository: central
repositories:
  central: { type: file, path: central }
  local:   { type: file, path: local }
report:
  outputters: [json, yaml]
`

// workspace lays out a settings file and a central repository holding
// acme#lib;1.0 and acme#lib;1.1.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, d := range []string{"central", "local"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "depot.yaml"), []byte(settingsYAML), 0o644))

	central := repository.NewFilesystem("central", filepath.Join(dir, "central"))
	ctx := context.Background()
	for _, r := range []string{"1.0", "1.1"} {
		md := module.NewDescriptor(module.NewRevisionID("acme", "lib", r), module.StatusRelease, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, md.AddConfiguration(module.Configuration{Name: module.DefaultConf}))
		a := module.Artifact{Name: "lib", Type: "jar", Ext: "jar"}
		md.Artifacts = []module.Artifact{a}
		require.NoError(t, central.PutArtifact(ctx, md.Revision, a, strings.NewReader("lib "+r), false))
		require.NoError(t, central.PutDescriptor(ctx, md, descriptor.Format(md), false))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInstallCommand(t *testing.T) {
	dir := workspace(t)
	settingsFile := filepath.Join(dir, "depot.yaml")

	out, err := run(t, "install", "--settings", settingsFile, "--from", "central", "--to", "local", "acme#lib;*")
	require.NoError(t, err)
	assert.Contains(t, out, "acme#lib;1.0")
	assert.Contains(t, out, "acme#lib;1.1")
	assert.Contains(t, out, "installed")

	local := repository.NewFilesystem("local", filepath.Join(dir, "local"))
	md, err := local.Descriptor(context.Background(), module.NewRevisionID("acme", "lib", "1.1"))
	require.NoError(t, err)
	assert.Equal(t, module.StatusRelease, md.Status)
	assert.FileExists(t, filepath.Join(dir, "cache", "reports", "depot-depot-install.yaml"))

	// Installing again without --overwrite reports per-module conflicts.
	out, err = run(t, "install", "--settings", settingsFile, "--from", "central", "--to", "local", "acme#lib;1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 modules")
	assert.Contains(t, out, "already exists")
}

func TestInstallCommand_Errors(t *testing.T) {
	dir := workspace(t)
	settingsFile := filepath.Join(dir, "depot.yaml")

	_, err := run(t, "install", "--settings", settingsFile, "--to", "local", "acme#lib;1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"from"`)

	_, err = run(t, "install", "--settings", settingsFile, "--from", "nope", "--to", "local", "acme#lib;1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available repositories are: central, local")

	_, err = run(t, "install", "--settings", settingsFile, "--from", "central", "--to", "local", "not-a-coordinate")
	require.Error(t, err)
}

func TestResolveAndFixDeps(t *testing.T) {
	dir := workspace(t)
	settingsFile := filepath.Join(dir, "depot.yaml")
	file := filepath.Join(dir, descriptor.FileName)
	require.NoError(t, os.WriteFile(file, []byte(`module(organisation = "acme", name = "app", revision = "2.0")
dependency(org = "acme", name = "lib", rev = "latest.release", conf = "default->default")
`), 0o644))

	out, err := run(t, "resolve", "--settings", settingsFile, "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "acme#app;2.0")
	assert.Contains(t, out, "acme#lib;1.1")
	assert.FileExists(t, filepath.Join(dir, "cache", "reports", "acme-app.json"))

	dest := filepath.Join(dir, "fixed.star")
	out, err = run(t, "fixdeps", "--settings", settingsFile, "--file", file, "--tofile", dest)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	fixed, err := descriptor.ParseFile(dest)
	require.NoError(t, err)
	require.Len(t, fixed.Dependencies, 1)
	assert.Equal(t, "acme#lib;1.1", fixed.Dependencies[0].Revision.String())

	_, err = run(t, "fixdeps", "--settings", settingsFile, "--file", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tofile")
}

func TestGraphCommand(t *testing.T) {
	dir := workspace(t)
	settingsFile := filepath.Join(dir, "depot.yaml")
	file := filepath.Join(dir, descriptor.FileName)
	require.NoError(t, os.WriteFile(file, []byte(`module(organisation = "acme", name = "app", revision = "2.0")
dependency(org = "acme", name = "lib", rev = "latest.release", conf = "default->default")
`), 0o644))

	out, err := run(t, "graph", "--settings", settingsFile, "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Dependency Graph (root: acme#app;2.0)")
	assert.Contains(t, out, "└── acme#lib;1.1")

	out, err = run(t, "graph", "--settings", settingsFile, "--file", file, "--output", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, `"acme#app;2.0" -> "acme#lib;1.1";`)

	out, err = run(t, "graph", "--settings", settingsFile, "--file", file, "--explain", "acme#lib")
	require.NoError(t, err)
	assert.Contains(t, out, "Explanation for: acme#lib")
	assert.Contains(t, out, "(requested latest.release)")

	_, err = run(t, "graph", "--settings", settingsFile, "--file", file, "--output", "svg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	_, err = run(t, "graph", "--settings", settingsFile, "--file", file, "--explain", "lib")
	require.Error(t, err)
}

func TestListCommand(t *testing.T) {
	dir := workspace(t)
	settingsFile := filepath.Join(dir, "depot.yaml")

	out, err := run(t, "list", "--settings", settingsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "acme#lib")
	assert.Contains(t, out, "1.0, 1.1")

	out, err = run(t, "list", "--settings", settingsFile, "acme#x*")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "list", "--settings", settingsFile, "--repository", "local")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "list", "--settings", settingsFile, "lib")
	require.Error(t, err)
}
