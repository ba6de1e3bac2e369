// Package module defines the data model shared by every layer of depot:
// module identifiers, configurations, dependency edges and descriptors.
//
// Identifiers are plain comparable structs so they can be used directly as
// map keys. A revision string may be a literal ("1.0") or a pattern token
// understood by a matcher ("1.*", "[1.0,2.0)"); the model does not interpret
// it.
package module

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Sentinel errors for descriptor construction.
var (
	// ErrDuplicateConfiguration indicates a configuration name was declared twice.
	ErrDuplicateConfiguration = errors.New("duplicate configuration")

	// ErrUnknownConfiguration indicates a reference to an undeclared configuration.
	ErrUnknownConfiguration = errors.New("unknown configuration")
)

// Well-known configuration and status names.
const (
	DefaultConf       = "default"
	AllConfs          = "*"
	StatusRelease     = "release"
	StatusMilestone   = "milestone"
	StatusIntegration = "integration"
)

// ID identifies a module independently of its revision.
type ID struct {
	Organization string `json:"organization" yaml:"organization"`
	Name         string `json:"name" yaml:"name"`
}

// NewID returns the module ID for org and name.
func NewID(org, name string) ID {
	return ID{Organization: org, Name: name}
}

// String returns "org#name".
func (id ID) String() string {
	return id.Organization + "#" + id.Name
}

// RevisionID identifies one revision of a module.
type RevisionID struct {
	ID       `yaml:",inline"`
	Revision string `json:"revision" yaml:"revision"`
}

// NewRevisionID returns the coordinate org#name;rev.
func NewRevisionID(org, name, rev string) RevisionID {
	return RevisionID{ID: NewID(org, name), Revision: rev}
}

// ModuleID returns the revision-less identifier.
func (r RevisionID) ModuleID() ID {
	return r.ID
}

// String returns "org#name;rev".
func (r RevisionID) String() string {
	return r.ID.String() + ";" + r.Revision
}

// ParseRevisionID parses the "org#name;rev" form produced by String.
func ParseRevisionID(s string) (RevisionID, error) {
	org, rest, ok := strings.Cut(s, "#")
	if !ok || org == "" {
		return RevisionID{}, fmt.Errorf("invalid module revision %q: expected org#name;rev", s)
	}
	name, rev, ok := strings.Cut(rest, ";")
	if !ok || name == "" || rev == "" {
		return RevisionID{}, fmt.Errorf("invalid module revision %q: expected org#name;rev", s)
	}
	return NewRevisionID(org, name, rev), nil
}

// Configuration is a named dependency scope declared by a module.
type Configuration struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Private     bool     `json:"private,omitempty" yaml:"private,omitempty"`
	Extends     []string `json:"extends,omitempty" yaml:"extends,omitempty"`
}

// ExcludeRule excludes matching modules or artifacts from a dependency's
// transitive closure.
type ExcludeRule struct {
	Organization string   `json:"organization,omitempty" yaml:"organization,omitempty"`
	Module       string   `json:"module,omitempty" yaml:"module,omitempty"`
	Artifact     string   `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Type         string   `json:"type,omitempty" yaml:"type,omitempty"`
	Ext          string   `json:"ext,omitempty" yaml:"ext,omitempty"`
	Matcher      string   `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Confs        []string `json:"confs,omitempty" yaml:"confs,omitempty"`
}

// ExcludesModule reports whether the rule drops an entire module rather than
// individual artifacts of it.
func (e ExcludeRule) ExcludesModule() bool {
	return e.Artifact == "" && e.Type == "" && e.Ext == ""
}

// Dependency declares that a module requires another module revision.
type Dependency struct {
	Revision RevisionID `json:"revision" yaml:"revision"`

	// ConfMappings maps a source configuration to the target configurations
	// it pulls in. "*" on either side means all.
	ConfMappings map[string][]string `json:"conf_mappings" yaml:"conf_mappings"`

	Transitive bool          `json:"transitive" yaml:"transitive"`
	Force      bool          `json:"force,omitempty" yaml:"force,omitempty"`
	Changing   bool          `json:"changing,omitempty" yaml:"changing,omitempty"`
	Excludes   []ExcludeRule `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// NewDependency returns a transitive or intransitive dependency on rev with
// no configuration mappings.
func NewDependency(rev RevisionID, transitive bool) Dependency {
	return Dependency{
		Revision:     rev,
		ConfMappings: make(map[string][]string),
		Transitive:   transitive,
	}
}

// AddConfMapping maps the source configuration to the given target configurations.
func (d *Dependency) AddConfMapping(source string, targets ...string) {
	if d.ConfMappings == nil {
		d.ConfMappings = make(map[string][]string)
	}
	for _, t := range targets {
		if !slices.Contains(d.ConfMappings[source], t) {
			d.ConfMappings[source] = append(d.ConfMappings[source], t)
		}
	}
}

// SourceConfs returns the mapped source configurations, sorted.
func (d Dependency) SourceConfs() []string {
	confs := make([]string, 0, len(d.ConfMappings))
	for c := range d.ConfMappings {
		confs = append(confs, c)
	}
	slices.Sort(confs)
	return confs
}

// TargetConfs returns the target configurations pulled in when the
// dependent module is resolved in source. Mappings declared for "*" apply to
// every source configuration.
func (d Dependency) TargetConfs(source string) []string {
	var out []string
	for _, key := range []string{source, AllConfs} {
		for _, t := range d.ConfMappings[key] {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// Artifact is a file published by a module.
type Artifact struct {
	Name  string   `json:"name" yaml:"name"`
	Type  string   `json:"type" yaml:"type"`
	Ext   string   `json:"ext" yaml:"ext"`
	Confs []string `json:"confs,omitempty" yaml:"confs,omitempty"`
}

// FileName returns "name-rev.ext".
func (a Artifact) FileName(rev string) string {
	if a.Ext == "" {
		return a.Name + "-" + rev
	}
	return a.Name + "-" + rev + "." + a.Ext
}

// InConf reports whether the artifact is published in conf. Artifacts
// without explicit confs belong to every configuration.
func (a Artifact) InConf(conf string) bool {
	return len(a.Confs) == 0 || conf == AllConfs || slices.Contains(a.Confs, conf) || slices.Contains(a.Confs, AllConfs)
}

// ConflictRule overrides conflict management for modules matching the
// organization and name patterns under the given matcher.
type ConflictRule struct {
	OrganizationPattern string `json:"organization_pattern" yaml:"organization_pattern"`
	NamePattern         string `json:"name_pattern" yaml:"name_pattern"`
	Matcher             string `json:"matcher" yaml:"matcher"`
	Manager             string `json:"manager" yaml:"manager"`
}

// Descriptor describes one module revision: identity, configurations,
// dependencies, published artifacts and conflict management overrides.
type Descriptor struct {
	Revision        RevisionID      `json:"revision" yaml:"revision"`
	Status          string          `json:"status" yaml:"status"`
	PublicationDate time.Time       `json:"publication_date" yaml:"publication_date"`
	Configurations  []Configuration `json:"configurations" yaml:"configurations"`
	Dependencies    []Dependency    `json:"dependencies" yaml:"dependencies"`
	Artifacts       []Artifact      `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	ConflictRules   []ConflictRule  `json:"conflict_rules,omitempty" yaml:"conflict_rules,omitempty"`
}

// NewDescriptor returns an empty descriptor for rev.
func NewDescriptor(rev RevisionID, status string, published time.Time) *Descriptor {
	return &Descriptor{
		Revision:        rev,
		Status:          status,
		PublicationDate: published,
	}
}

// AddConfiguration declares a configuration. Names are unique per descriptor.
func (d *Descriptor) AddConfiguration(c Configuration) error {
	if d.Configuration(c.Name) != nil {
		return fmt.Errorf("%w %q in %s", ErrDuplicateConfiguration, c.Name, d.Revision)
	}
	d.Configurations = append(d.Configurations, c)
	return nil
}

// Configuration returns the named configuration, or nil.
func (d *Descriptor) Configuration(name string) *Configuration {
	for i := range d.Configurations {
		if d.Configurations[i].Name == name {
			return &d.Configurations[i]
		}
	}
	return nil
}

// ConfigurationNames returns the declared configuration names in declaration order.
func (d *Descriptor) ConfigurationNames() []string {
	names := make([]string, len(d.Configurations))
	for i, c := range d.Configurations {
		names[i] = c.Name
	}
	return names
}

// PublicConfigurationNames returns the names of non-private configurations.
func (d *Descriptor) PublicConfigurationNames() []string {
	var names []string
	for _, c := range d.Configurations {
		if !c.Private {
			names = append(names, c.Name)
		}
	}
	return names
}

// AddDependency appends a dependency edge.
func (d *Descriptor) AddDependency(dep Dependency) {
	d.Dependencies = append(d.Dependencies, dep)
}

// AddConflictRule registers a conflict management override.
func (d *Descriptor) AddConflictRule(r ConflictRule) {
	d.ConflictRules = append(d.ConflictRules, r)
}

// ArtifactsFor returns the artifacts published in any of confs.
func (d *Descriptor) ArtifactsFor(confs ...string) []Artifact {
	var out []Artifact
	for _, a := range d.Artifacts {
		for _, c := range confs {
			if a.InConf(c) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// ExpandConfs returns confs plus every configuration they extend,
// transitively. "*" expands to every public configuration.
func (d *Descriptor) ExpandConfs(confs []string) []string {
	var out []string
	var visit func(string)
	visit = func(name string) {
		if slices.Contains(out, name) {
			return
		}
		c := d.Configuration(name)
		if c == nil {
			return
		}
		out = append(out, name)
		for _, parent := range c.Extends {
			visit(parent)
		}
	}
	for _, name := range confs {
		if name == AllConfs {
			for _, n := range d.PublicConfigurationNames() {
				visit(n)
			}
			continue
		}
		visit(name)
	}
	return out
}
