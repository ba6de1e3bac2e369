package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-depot/cache"
	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/albertocavalcante/go-depot/resolve"
)

// ErrResolveFailed indicates a resolution completed with failed nodes.
var ErrResolveFailed = errors.New("resolution failed")

// DescriptorResolver resolves the module described by a descriptor file.
// It is the resolution a session launches when an operation needs one that
// has not happened yet.
type DescriptorResolver struct {
	// Path is the descriptor file of the module being built.
	Path string

	// Engine resolves the parsed descriptor.
	Engine resolve.Engine

	// Cache and Source, when both are set, receive the resolved artifacts
	// unless the request asks to use them from their origin.
	Cache  *cache.Cache
	Source repository.Repository

	// Filter selects the artifacts reported and downloaded.
	Filter cache.ArtifactFilter
}

// Resolve implements Resolver.
func (d *DescriptorResolver) Resolve(ctx context.Context, req ResolveRequest) (*report.Report, error) {
	md, err := descriptor.ParseFile(d.Path)
	if err != nil {
		return nil, err
	}
	rev := md.Revision
	if (req.Organization != "" && req.Organization != rev.Organization) || (req.Module != "" && req.Module != rev.Name) {
		return nil, fmt.Errorf("%s describes %s, not %s#%s", d.Path, rev.ModuleID(), req.Organization, req.Module)
	}

	res, err := d.Engine.Resolve(ctx, md, resolve.Options{
		Confs:      req.Confs,
		Transitive: req.Transitive,
		Validate:   req.Validate,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}

	r := report.New(md, req.Confs, res.Nodes, d.Filter)
	r.Diagnostics = res.Diagnostics
	if d.Cache != nil && d.Source != nil && !req.UseOrigin {
		downloads, err := d.Cache.Download(ctx, d.Source, res.Nodes, r.Filter)
		r.Artifacts = downloads
		if err != nil {
			return r, fmt.Errorf("download %s: %w", rev, err)
		}
	}

	if req.HaltOnFailure && r.HasError() {
		failed := r.FailedNodes()
		names := make([]string, len(failed))
		for i, n := range failed {
			names[i] = n.Revision.String()
		}
		return r, fmt.Errorf("%w: unresolved dependencies %s", ErrResolveFailed, strings.Join(names, ", "))
	}
	return r, nil
}
