package descriptor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/albertocavalcante/go-depot/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libDescriptor = `
module(organisation = "acme", name = "lib", revision = "1.0", status = "release", publication = "20260101120000")

configuration(name = "compile")
configuration(name = "runtime", extends = ["compile"])
configuration(name = "test", private = True, extends = ["runtime"])

artifact(name = "lib", type = "jar", ext = "jar")
artifact(name = "lib-sources", type = "source", confs = ["runtime"])

dependency(org = "acme", name = "util", rev = "2.0", conf = "compile->default")
dependency(name = "testkit", rev = "0.3", conf = "test->default,sources", transitive = False)
dependency(org = "other", name = "log", rev = "1.+", conf = "runtime")

exclude(dependency = "acme#util", org = "acme", module = "legacy")
conflict(org = "other", manager = "latest-revision")

print("ignored")
`

func TestParse(t *testing.T) {
	md, err := Parse(FileName, []byte(libDescriptor))
	require.NoError(t, err)

	assert.Equal(t, module.NewRevisionID("acme", "lib", "1.0"), md.Revision)
	assert.Equal(t, module.StatusRelease, md.Status)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), md.PublicationDate)
	assert.Equal(t, []string{"compile", "runtime", "test"}, md.ConfigurationNames())
	assert.True(t, md.Configuration("test").Private)

	require.Len(t, md.Artifacts, 2)
	assert.Equal(t, "source", md.Artifacts[1].Ext, "ext defaults to type")

	require.Len(t, md.Dependencies, 3)
	util := md.Dependencies[0]
	assert.True(t, util.Transitive)
	assert.Equal(t, []string{"default"}, util.TargetConfs("compile"))
	require.Len(t, util.Excludes, 1)
	assert.Equal(t, "legacy", util.Excludes[0].Module)
	assert.True(t, util.Excludes[0].ExcludesModule())

	testkit := md.Dependencies[1]
	assert.Equal(t, "acme", testkit.Revision.Organization, "org defaults to the module's")
	assert.False(t, testkit.Transitive)
	assert.Equal(t, []string{"default", "sources"}, testkit.TargetConfs("test"))

	assert.Equal(t, []string{"runtime"}, md.Dependencies[2].TargetConfs("runtime"))

	require.Len(t, md.ConflictRules, 1)
	assert.Equal(t, module.ConflictRule{OrganizationPattern: "other", NamePattern: "*", Matcher: "exact", Manager: "latest-revision"}, md.ConflictRules[0])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no module", content: `configuration(name = "default")`},
		{name: "empty", content: ``},
		{name: "module twice", content: "module(organisation = \"a\", name = \"b\", revision = \"1\")\nmodule(organisation = \"a\", name = \"b\", revision = \"1\")"},
		{name: "missing org", content: `module(name = "b", revision = "1")`},
		{name: "bad publication", content: `module(organisation = "a", name = "b", revision = "1", publication = "yesterday")`},
		{name: "duplicate configuration", content: "module(organisation = \"a\", name = \"b\", revision = \"1\")\nconfiguration(name = \"x\")\nconfiguration(name = \"x\")"},
		{name: "dependency without rev", content: "module(organisation = \"a\", name = \"b\", revision = \"1\")\ndependency(name = \"c\")"},
		{name: "exclude unknown dependency", content: "module(organisation = \"a\", name = \"b\", revision = \"1\")\nexclude(dependency = \"a#c\", module = \"d\")"},
		{name: "syntax error", content: `module(`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(FileName, []byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestParseDefaultsConfiguration(t *testing.T) {
	md, err := Parse(FileName, []byte(`module(organisation = "a", name = "b", revision = "1")`))
	require.NoError(t, err)
	assert.Equal(t, []string{module.DefaultConf}, md.ConfigurationNames())
	assert.Equal(t, module.StatusIntegration, md.Status)
}

func TestParseConfMapping(t *testing.T) {
	tests := []struct {
		mapping string
		want    map[string][]string
		wantErr bool
	}{
		{mapping: "default->*", want: map[string][]string{"default": {"*"}}},
		{mapping: "compile", want: map[string][]string{"compile": {"compile"}}},
		{mapping: "compile,runtime->default", want: map[string][]string{"compile": {"default"}, "runtime": {"default"}}},
		{mapping: "compile->default; test->default,sources", want: map[string][]string{"compile": {"default"}, "test": {"default", "sources"}}},
		{mapping: "->default", wantErr: true},
		{mapping: "compile->", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.mapping, func(t *testing.T) {
			dep := module.NewDependency(module.NewRevisionID("a", "b", "1"), true)
			err := ParseConfMapping(&dep, tt.mapping)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dep.ConfMappings)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	md, err := Parse(FileName, []byte(libDescriptor))
	require.NoError(t, err)

	again, err := Parse(FileName, Format(md))
	require.NoError(t, err)
	assert.Equal(t, md, again)
}

func TestWriteFileAndParseFile(t *testing.T) {
	md := module.NewDescriptor(module.NewRevisionID("acme", "lib", "1.0"), module.StatusRelease, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	require.NoError(t, md.AddConfiguration(module.Configuration{Name: module.DefaultConf}))
	dep := module.NewDependency(module.NewRevisionID("acme", "util", "2.0"), false)
	dep.AddConfMapping(module.DefaultConf, module.AllConfs)
	md.AddDependency(dep)

	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, WriteFile(path, md))

	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, md, got)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.star"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	md, err := Parse(FileName, []byte(libDescriptor))
	require.NoError(t, err)
	require.NoError(t, Validate(md))

	md.Configurations = append(md.Configurations, module.Configuration{Name: "docs", Extends: []string{"missing"}})
	md.Dependencies[0].ConfMappings["nope"] = []string{"default"}

	err = Validate(md)
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
	assert.Contains(t, err.Error(), "acme#lib;1.0")
}
