package module

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRevisionID(t *testing.T) {
	rev, err := ParseRevisionID("acme#lib;1.0")
	require.NoError(t, err)
	assert.Equal(t, NewRevisionID("acme", "lib", "1.0"), rev)
	assert.Equal(t, "acme#lib;1.0", rev.String())

	for _, bad := range []string{"", "acme", "acme#lib", "#lib;1.0", "acme#;1.0", "acme#lib;"} {
		_, err := ParseRevisionID(bad)
		assert.Error(t, err, bad)
	}
}

func TestDescriptorConfigurations(t *testing.T) {
	md := NewDescriptor(NewRevisionID("acme", "lib", "1.0"), StatusRelease, time.Now())
	require.NoError(t, md.AddConfiguration(Configuration{Name: "compile"}))
	require.NoError(t, md.AddConfiguration(Configuration{Name: "runtime", Extends: []string{"compile"}}))
	require.NoError(t, md.AddConfiguration(Configuration{Name: "test", Private: true, Extends: []string{"runtime"}}))

	err := md.AddConfiguration(Configuration{Name: "compile"})
	require.ErrorIs(t, err, ErrDuplicateConfiguration)

	assert.Equal(t, []string{"compile", "runtime", "test"}, md.ConfigurationNames())
	assert.Equal(t, []string{"compile", "runtime"}, md.PublicConfigurationNames())
	assert.Equal(t, []string{"test", "runtime", "compile"}, md.ExpandConfs([]string{"test"}))
	assert.Equal(t, []string{"compile", "runtime"}, md.ExpandConfs([]string{"*"}))
	assert.Empty(t, md.ExpandConfs([]string{"missing"}))
}

func TestDependencyTargetConfs(t *testing.T) {
	dep := NewDependency(NewRevisionID("acme", "util", "2.0"), true)
	dep.AddConfMapping("compile", "default")
	dep.AddConfMapping("*", "master")
	dep.AddConfMapping("compile", "default")

	assert.Equal(t, []string{"default", "master"}, dep.TargetConfs("compile"))
	assert.Equal(t, []string{"master"}, dep.TargetConfs("test"))
	assert.Equal(t, []string{"*", "compile"}, dep.SourceConfs())
}

func TestArtifactsFor(t *testing.T) {
	md := NewDescriptor(NewRevisionID("acme", "lib", "1.0"), StatusRelease, time.Now())
	md.Artifacts = []Artifact{
		{Name: "lib", Type: "jar", Ext: "jar"},
		{Name: "lib-sources", Type: "source", Ext: "jar", Confs: []string{"sources"}},
	}

	assert.Len(t, md.ArtifactsFor("default"), 1)
	assert.Len(t, md.ArtifactsFor("sources"), 2)
	assert.Equal(t, "lib-1.0.jar", md.Artifacts[0].FileName("1.0"))
}
