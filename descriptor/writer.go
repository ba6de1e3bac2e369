package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depot/internal/buildutil"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/bazelbuild/buildtools/build"
)

// descriptorPermissions is the file mode for written descriptors.
const descriptorPermissions = 0o644

// Format renders md in descriptor syntax. Output is deterministic: mappings
// are sorted by source configuration.
func Format(md *module.Descriptor) []byte {
	f := &build.File{Type: build.TypeDefault}

	var published string
	if !md.PublicationDate.IsZero() {
		published = md.PublicationDate.UTC().Format(PublicationLayout)
	}
	f.Stmt = append(f.Stmt, buildutil.Call("module",
		buildutil.StringArg("organisation", md.Revision.Organization),
		buildutil.StringArg("name", md.Revision.Name),
		buildutil.StringArg("revision", md.Revision.Revision),
		buildutil.StringArg("status", md.Status),
		buildutil.StringArg("publication", published),
	))

	for _, c := range md.Configurations {
		f.Stmt = append(f.Stmt, buildutil.Call("configuration",
			buildutil.StringArg("name", c.Name),
			buildutil.StringArg("description", c.Description),
			buildutil.BoolArg("private", c.Private, false),
			buildutil.StringListArg("extends", c.Extends),
		))
	}

	for _, a := range md.Artifacts {
		f.Stmt = append(f.Stmt, buildutil.Call("artifact",
			buildutil.StringArg("name", a.Name),
			buildutil.StringArg("type", a.Type),
			buildutil.StringArg("ext", a.Ext),
			buildutil.StringListArg("confs", a.Confs),
		))
	}

	var excludes []build.Expr
	for _, d := range md.Dependencies {
		f.Stmt = append(f.Stmt, buildutil.Call("dependency",
			buildutil.StringArg("org", d.Revision.Organization),
			buildutil.StringArg("name", d.Revision.Name),
			buildutil.StringArg("rev", d.Revision.Revision),
			buildutil.StringArg("conf", FormatConfMapping(d)),
			buildutil.BoolArg("transitive", d.Transitive, true),
			buildutil.BoolArg("force", d.Force, false),
			buildutil.BoolArg("changing", d.Changing, false),
		))
		for _, e := range d.Excludes {
			excludes = append(excludes, buildutil.Call("exclude",
				buildutil.StringArg("dependency", d.Revision.ModuleID().String()),
				buildutil.StringArg("org", e.Organization),
				buildutil.StringArg("module", e.Module),
				buildutil.StringArg("artifact", e.Artifact),
				buildutil.StringArg("type", e.Type),
				buildutil.StringArg("ext", e.Ext),
				buildutil.StringArg("matcher", e.Matcher),
				buildutil.StringListArg("confs", e.Confs),
			))
		}
	}
	f.Stmt = append(f.Stmt, excludes...)

	for _, r := range md.ConflictRules {
		f.Stmt = append(f.Stmt, buildutil.Call("conflict",
			buildutil.StringArg("org", r.OrganizationPattern),
			buildutil.StringArg("module", r.NamePattern),
			buildutil.StringArg("matcher", r.Matcher),
			buildutil.StringArg("manager", r.Manager),
		))
	}

	return build.Format(f)
}

// FormatConfMapping renders a dependency's configuration mappings in the
// form accepted by ParseConfMapping.
func FormatConfMapping(d module.Dependency) string {
	parts := make([]string, 0, len(d.ConfMappings))
	for _, src := range d.SourceConfs() {
		targets := slices.Clone(d.ConfMappings[src])
		parts = append(parts, src+"->"+strings.Join(targets, ","))
	}
	return strings.Join(parts, "; ")
}

// WriteFile writes md to path, creating parent directories.
func WriteFile(path string, md *module.Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create descriptor directory: %w", err)
	}
	if err := os.WriteFile(path, Format(md), descriptorPermissions); err != nil {
		return fmt.Errorf("write descriptor %s: %w", path, err)
	}
	return nil
}
