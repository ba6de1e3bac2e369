package cache

import (
	"strings"

	"github.com/albertocavalcante/go-depot/module"
)

// Pattern tokens substituted by Substitute.
const (
	TokenOrganization = "[organisation]"
	TokenModule       = "[module]"
	TokenRevision     = "[revision]"
	TokenArtifact     = "[artifact]"
	TokenType         = "[type]"
	TokenExt          = "[ext]"
)

// Default cache layout, relative to the cache root.
const (
	DefaultDescriptorPattern = "[organisation]/[module]/[revision]/module.star"
	DefaultArtifactPattern   = "[organisation]/[module]/[revision]/[type]s/[artifact]-[revision].[ext]"
)

// Substitute replaces the tokens of pattern with the values of rev and a.
// A zero artifact substitutes the module name for [artifact] and leaves type
// and extension empty. An empty extension drops the "." that precedes it.
func Substitute(pattern string, rev module.RevisionID, a module.Artifact) string {
	name := a.Name
	if name == "" {
		name = rev.Name
	}
	if a.Ext == "" {
		pattern = strings.ReplaceAll(pattern, "."+TokenExt, "")
	}
	return strings.NewReplacer(
		TokenOrganization, rev.Organization,
		TokenModule, rev.Name,
		TokenRevision, rev.Revision,
		TokenArtifact, name,
		TokenType, a.Type,
		TokenExt, a.Ext,
	).Replace(pattern)
}
