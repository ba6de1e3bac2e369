package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/albertocavalcante/go-depot/cache"
	"gopkg.in/yaml.v3"
)

// reportPermissions is the file mode for written reports.
const reportPermissions = 0o644

// Dir is the directory, relative to the cache root, reports are written to.
const Dir = "reports"

// ErrUnknownOutputter is returned by ByName for unregistered names.
var ErrUnknownOutputter = errors.New("unknown report outputter")

// Outputter persists a report.
type Outputter interface {
	// Name returns the id the outputter is configured under.
	Name() string

	// Output writes r. Paths in the output are relative to cacheRoot.
	Output(r *Report, cacheRoot string) error
}

// Output runs every outputter on r and returns their failures joined.
func Output(r *Report, outputters []Outputter, cacheRoot string) error {
	var errs []error
	for _, o := range outputters {
		if err := o.Output(r, cacheRoot); err != nil {
			errs = append(errs, fmt.Errorf("%s report: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var builtins = map[string]func() Outputter{
	"json": func() Outputter { return JSONOutputter{} },
	"yaml": func() Outputter { return YAMLOutputter{} },
}

// ByName returns the built-in outputter registered under name.
func ByName(name string) (Outputter, error) {
	newOutputter, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w %q: available outputters are %s", ErrUnknownOutputter, name, strings.Join(Names(), ", "))
	}
	return newOutputter(), nil
}

// Names returns the built-in outputter names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(builtins))
}

// FileName returns the base name of the report file for r with the given
// extension: "org-module.ext".
func FileName(r *Report, ext string) string {
	return r.Root.Revision.Organization + "-" + r.Root.Revision.Name + "." + ext
}

// JSONOutputter writes reports as indented JSON under Dir.
type JSONOutputter struct{}

func (JSONOutputter) Name() string { return "json" }

func (JSONOutputter) Output(r *Report, cacheRoot string) error {
	data, err := MarshalJSON(r, cacheRoot)
	if err != nil {
		return err
	}
	return writeReport(filepath.Join(cacheRoot, Dir, FileName(r, "json")), data)
}

// MarshalJSON renders r with a stable field and element order.
func MarshalJSON(r *Report, cacheRoot string) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(newView(r, cacheRoot)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// YAMLOutputter writes reports as YAML under Dir.
type YAMLOutputter struct{}

func (YAMLOutputter) Name() string { return "yaml" }

func (YAMLOutputter) Output(r *Report, cacheRoot string) error {
	data, err := MarshalYAML(r, cacheRoot)
	if err != nil {
		return err
	}
	return writeReport(filepath.Join(cacheRoot, Dir, FileName(r, "yaml")), data)
}

// MarshalYAML renders r as YAML with the same shape as MarshalJSON.
func MarshalYAML(r *Report, cacheRoot string) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(newView(r, cacheRoot)); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeReport(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, reportPermissions); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// view is the serialized shape of a report.
type view struct {
	Module      string         `json:"module" yaml:"module"`
	Confs       []string       `json:"confs" yaml:"confs"`
	ResolvedAt  string         `json:"resolvedAt" yaml:"resolvedAt"`
	Nodes       []nodeView     `json:"nodes" yaml:"nodes"`
	Artifacts   []artifactView `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Published   []publishView  `json:"published,omitempty" yaml:"published,omitempty"`
	Diagnostics []string       `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type nodeView struct {
	Module    string   `json:"module" yaml:"module"`
	Status    string   `json:"status" yaml:"status"`
	Confs     []string `json:"confs,omitempty" yaml:"confs,omitempty"`
	EvictedBy string   `json:"evictedBy,omitempty" yaml:"evictedBy,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
}

type artifactView struct {
	Module string       `json:"module" yaml:"module"`
	Name   string       `json:"name" yaml:"name"`
	Type   string       `json:"type" yaml:"type"`
	Path   string       `json:"path" yaml:"path"`
	Status cache.Status `json:"status" yaml:"status"`
	Size   int64        `json:"size,omitempty" yaml:"size,omitempty"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
}

type publishView struct {
	Module      string `json:"module" yaml:"module"`
	Destination string `json:"destination" yaml:"destination"`
	Artifacts   int    `json:"artifacts" yaml:"artifacts"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Node status values in serialized reports.
const (
	NodeResolved = "resolved"
	NodeFailed   = "failed"
	NodeEvicted  = "evicted"
)

func newView(r *Report, cacheRoot string) view {
	v := view{
		Module:      r.Root.Revision.String(),
		Confs:       slices.Clone(r.Confs),
		ResolvedAt:  r.ResolvedAt.UTC().Format(time.RFC3339),
		Diagnostics: slices.Clone(r.Diagnostics),
		Nodes:       make([]nodeView, 0, len(r.Nodes)),
	}
	for _, n := range r.Nodes {
		nv := nodeView{Module: n.Revision.String(), Status: NodeResolved, Confs: slices.Sorted(slices.Values(n.Confs))}
		switch {
		case n.IsFailed():
			nv.Status = NodeFailed
			if err := n.Err(); err != nil {
				nv.Error = err.Error()
			}
		case n.Evicted:
			nv.Status = NodeEvicted
			if n.EvictedBy != nil {
				nv.EvictedBy = n.EvictedBy.String()
			}
		}
		v.Nodes = append(v.Nodes, nv)
	}
	slices.SortFunc(v.Nodes, func(a, b nodeView) int { return strings.Compare(a.Module, b.Module) })

	for _, d := range r.Artifacts {
		av := artifactView{
			Module: d.Revision.String(),
			Name:   d.Artifact.Name,
			Type:   d.Artifact.Type,
			Path:   relativePath(cacheRoot, d.Path),
			Status: d.Status,
			Size:   d.Size,
		}
		if d.Err != nil {
			av.Error = d.Err.Error()
		}
		v.Artifacts = append(v.Artifacts, av)
	}
	slices.SortFunc(v.Artifacts, func(a, b artifactView) int {
		if c := strings.Compare(a.Module, b.Module); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})

	for _, p := range r.Published {
		pv := publishView{Module: p.Revision.String(), Destination: p.Destination, Artifacts: p.Artifacts}
		if p.Err != nil {
			pv.Error = p.Err.Error()
		}
		v.Published = append(v.Published, pv)
	}
	slices.SortFunc(v.Published, func(a, b publishView) int { return strings.Compare(a.Module, b.Module) })
	return v
}

func relativePath(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}
