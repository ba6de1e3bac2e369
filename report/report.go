// Package report holds the outcome of a resolution: the graph that was
// resolved, what was downloaded and what was published, together with the
// outputters that persist it.
package report

import (
	"slices"
	"time"

	"github.com/albertocavalcante/go-depot/cache"
	"github.com/albertocavalcante/go-depot/module"
)

// PublishResult records the publication of one node.
type PublishResult struct {
	Revision    module.RevisionID
	Destination string
	Artifacts   int
	Err         error
}

// Report is the result of resolving a root module.
type Report struct {
	// Root is the descriptor resolution started from.
	Root *module.Descriptor

	// Confs are the root configurations resolved, with "*" expanded.
	Confs []string

	// Nodes holds every node reached, resolved or failed.
	Nodes []module.ResolvedNode

	// Filter selects the artifacts of resolved nodes.
	Filter cache.ArtifactFilter

	Artifacts   []cache.ArtifactDownload
	Published   []PublishResult
	Diagnostics []string
	ResolvedAt  time.Time
}

// New returns a report for root resolved in confs. "*" in confs expands to
// every configuration root declares. A nil filter accepts all artifacts.
func New(root *module.Descriptor, confs []string, nodes []module.ResolvedNode, filter cache.ArtifactFilter) *Report {
	if filter == nil {
		filter = cache.AcceptAll
	}
	return &Report{
		Root:       root,
		Confs:      module.ParseConfSet(module.MergeConfs(confs)).Resolve(root.ConfigurationNames()).Names(),
		Nodes:      nodes,
		Filter:     filter,
		ResolvedAt: time.Now(),
	}
}

// HasError reports whether any node failed to resolve.
func (r *Report) HasError() bool {
	return slices.ContainsFunc(r.Nodes, module.ResolvedNode.IsFailed)
}

// FailedNodes returns the nodes that failed to resolve.
func (r *Report) FailedNodes() []module.ResolvedNode {
	var out []module.ResolvedNode
	for _, n := range r.Nodes {
		if n.IsFailed() {
			out = append(out, n)
		}
	}
	return out
}

// ResolvedNodes returns the nodes that have a descriptor, evicted or not.
func (r *Report) ResolvedNodes() []module.ResolvedNode {
	var out []module.ResolvedNode
	for _, n := range r.Nodes {
		if !n.IsFailed() {
			out = append(out, n)
		}
	}
	return out
}

// Dependencies returns the resolved, non-evicted nodes that contribute at
// least one artifact accepted by the report filter, or no artifacts at all.
func (r *Report) Dependencies() []module.ResolvedNode {
	var out []module.ResolvedNode
	for _, n := range r.Nodes {
		md, ok := n.Descriptor()
		if !ok || n.Evicted {
			continue
		}
		if len(md.Artifacts) > 0 && len(cache.Artifacts(n, r.Filter)) == 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// PublishFailures returns the publications that failed.
func (r *Report) PublishFailures() []PublishResult {
	var out []PublishResult
	for _, p := range r.Published {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// FixedDescriptor returns a descriptor equivalent to the report's root
// with every dependency pinned to the revision it resolved to. Dependencies
// are intransitive since the closure is listed explicitly. Failed and
// evicted nodes are left out.
func (r *Report) FixedDescriptor() *module.Descriptor {
	root := r.Root
	fixed := module.NewDescriptor(root.Revision, root.Status, root.PublicationDate)
	fixed.Configurations = slices.Clone(root.Configurations)
	fixed.Artifacts = slices.Clone(root.Artifacts)
	fixed.ConflictRules = slices.Clone(root.ConflictRules)

	for _, n := range r.Dependencies() {
		dep := module.NewDependency(n.Revision, false)
		targets := n.Confs
		if len(targets) == 0 {
			targets = []string{module.AllConfs}
		}
		for _, c := range r.Confs {
			dep.AddConfMapping(c, targets...)
		}
		fixed.AddDependency(dep)
	}
	return fixed
}
