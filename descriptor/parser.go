package descriptor

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/albertocavalcante/go-depot/internal/buildutil"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/bazelbuild/buildtools/build"
)

// FileName is the conventional descriptor file name inside a repository.
const FileName = "module.star"

// PublicationLayout is the timestamp layout of the publication attribute.
const PublicationLayout = "20060102150405"

// ErrMissingModule is returned when a descriptor has no module() call.
var ErrMissingModule = errors.New("descriptor has no module() declaration")

// ParseFile reads and parses a descriptor file from disk.
func ParseFile(filename string) (*module.Descriptor, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(filename, data)
}

// Parse parses descriptor content. filename is only used in error messages.
func Parse(filename string, data []byte) (*module.Descriptor, error) {
	f, err := build.ParseModule(filename, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	md, err := extractDescriptor(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return md, nil
}

func extractDescriptor(f *build.File) (*module.Descriptor, error) {
	var md *module.Descriptor
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			continue
		}
		name := buildutil.FuncName(call)
		if name != "module" && md == nil {
			if isKnownCall(name) {
				return nil, fmt.Errorf("%s() before module()", name)
			}
			continue
		}

		switch name {
		case "module":
			if md != nil {
				return nil, errors.New("module() declared twice")
			}
			var err error
			md, err = extractModule(call)
			if err != nil {
				return nil, err
			}

		case "configuration":
			c := module.Configuration{
				Name:        buildutil.String(call, "name"),
				Description: buildutil.String(call, "description"),
				Private:     buildutil.Bool(call, "private", false),
				Extends:     buildutil.StringList(call, "extends"),
			}
			if c.Name == "" {
				return nil, errors.New("configuration() requires a name")
			}
			if err := md.AddConfiguration(c); err != nil {
				return nil, err
			}

		case "artifact":
			a := module.Artifact{
				Name:  buildutil.String(call, "name"),
				Type:  buildutil.String(call, "type"),
				Ext:   buildutil.String(call, "ext"),
				Confs: buildutil.StringList(call, "confs"),
			}
			if a.Name == "" {
				a.Name = md.Revision.Name
			}
			if a.Type == "" {
				a.Type = "jar"
			}
			if a.Ext == "" && !buildutil.Has(call, "ext") {
				a.Ext = a.Type
			}
			md.Artifacts = append(md.Artifacts, a)

		case "dependency":
			dep, err := extractDependency(md, call)
			if err != nil {
				return nil, err
			}
			md.AddDependency(dep)

		case "exclude":
			if err := attachExclude(md, call); err != nil {
				return nil, err
			}

		case "conflict":
			md.AddConflictRule(module.ConflictRule{
				OrganizationPattern: orDefault(buildutil.String(call, "org"), "*"),
				NamePattern:         orDefault(buildutil.String(call, "module"), "*"),
				Matcher:             orDefault(buildutil.String(call, "matcher"), "exact"),
				Manager:             buildutil.String(call, "manager"),
			})
		}
	}
	if md == nil {
		return nil, ErrMissingModule
	}
	if len(md.Configurations) == 0 {
		// A module without declared configurations exposes everything in default.
		_ = md.AddConfiguration(module.Configuration{Name: module.DefaultConf})
	}
	return md, nil
}

func isKnownCall(name string) bool {
	switch name {
	case "configuration", "artifact", "dependency", "exclude", "conflict":
		return true
	}
	return false
}

func extractModule(call *build.CallExpr) (*module.Descriptor, error) {
	rev := module.NewRevisionID(
		buildutil.String(call, "organisation"),
		buildutil.String(call, "name"),
		buildutil.String(call, "revision"),
	)
	if rev.Organization == "" || rev.Name == "" {
		return nil, errors.New("module() requires organisation and name")
	}
	var published time.Time
	if raw := buildutil.String(call, "publication"); raw != "" {
		t, err := time.Parse(PublicationLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("module() publication %q: expected format %s", raw, PublicationLayout)
		}
		published = t
	}
	return module.NewDescriptor(rev, orDefault(buildutil.String(call, "status"), module.StatusIntegration), published), nil
}

func extractDependency(md *module.Descriptor, call *build.CallExpr) (module.Dependency, error) {
	rev := module.NewRevisionID(
		orDefault(buildutil.String(call, "org"), md.Revision.Organization),
		buildutil.String(call, "name"),
		buildutil.String(call, "rev"),
	)
	if rev.Name == "" || rev.Revision == "" {
		return module.Dependency{}, errors.New("dependency() requires name and rev")
	}
	dep := module.NewDependency(rev, buildutil.Bool(call, "transitive", true))
	dep.Force = buildutil.Bool(call, "force", false)
	dep.Changing = buildutil.Bool(call, "changing", false)

	mapping := buildutil.String(call, "conf")
	if mapping == "" {
		mapping = "*->*"
	}
	if err := ParseConfMapping(&dep, mapping); err != nil {
		return module.Dependency{}, fmt.Errorf("dependency %s: %w", rev, err)
	}
	return dep, nil
}

func attachExclude(md *module.Descriptor, call *build.CallExpr) error {
	rule := module.ExcludeRule{
		Organization: buildutil.String(call, "org"),
		Module:       buildutil.String(call, "module"),
		Artifact:     buildutil.String(call, "artifact"),
		Type:         buildutil.String(call, "type"),
		Ext:          buildutil.String(call, "ext"),
		Matcher:      orDefault(buildutil.String(call, "matcher"), "exact"),
		Confs:        buildutil.StringList(call, "confs"),
	}
	target := buildutil.String(call, "dependency")
	if target == "" {
		return errors.New("exclude() requires a dependency")
	}
	for i := range md.Dependencies {
		if md.Dependencies[i].Revision.ModuleID().String() == target {
			md.Dependencies[i].Excludes = append(md.Dependencies[i].Excludes, rule)
			return nil
		}
	}
	return fmt.Errorf("exclude() references unknown dependency %q", target)
}

// ParseConfMapping parses a configuration mapping such as
// "compile->default; test->default,sources" into dep. A source without
// "->" maps to the configuration of the same name.
func ParseConfMapping(dep *module.Dependency, mapping string) error {
	for _, part := range strings.Split(mapping, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, dst, found := strings.Cut(part, "->")
		sources := module.SplitConfs(strings.TrimSpace(src))
		if len(sources) == 0 {
			return fmt.Errorf("invalid configuration mapping %q", part)
		}
		for _, s := range sources {
			if s == "" {
				return fmt.Errorf("invalid configuration mapping %q", part)
			}
			if !found {
				dep.AddConfMapping(s, s)
				continue
			}
			targets := module.SplitConfs(strings.TrimSpace(dst))
			if len(targets) == 0 {
				return fmt.Errorf("invalid configuration mapping %q: missing target", part)
			}
			dep.AddConfMapping(s, targets...)
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
