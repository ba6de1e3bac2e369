// Package depot resolves, installs and publishes module revisions across
// repositories.
//
// # Overview
//
// The module is split into packages along the lifecycle of a resolution:
//
//   - descriptor: parses and writes module descriptors
//   - repository: filesystem, HTTP, chained and in-memory repositories
//   - resolve: walks the dependency graph and manages conflicts
//   - cache: downloads artifacts into the local cache
//   - session: records resolutions and resolves incrementally
//   - install: copies a module and its dependencies between repositories
//   - graph: queries and renders a resolved dependency graph
//
// # Quick Start
//
// The simplest way to resolve a descriptor:
//
//	repo := repository.NewFilesystem("local", "/srv/repo")
//	r, err := depot.ResolveFile(ctx, "module.star", repo, resolve.Options{Transitive: true})
//
// Installing a module from one repository into another goes through the
// settings that name them:
//
//	s, _ := settings.Load("depot.yaml")
//	engine, _ := install.New(s)
//	r, err := engine.Install(ctx, install.Request{Coordinate: coord, From: "central", To: "local"})
//
// # Thread Safety
//
// All exported types are safe for concurrent use unless documented
// otherwise.
package depot

import (
	"context"
	"fmt"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/graph"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/albertocavalcante/go-depot/resolve"
)

// contentName names descriptor content parsed from memory in errors.
const contentName = "<content>"

// Resolve resolves the dependencies of descriptor content against repo.
// No configuration in opts resolves every configuration.
func Resolve(ctx context.Context, content string, repo repository.Repository, opts resolve.Options, resolverOpts ...resolve.Option) (*report.Report, error) {
	md, err := descriptor.Parse(contentName, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("parse module content: %w", err)
	}
	return resolveDescriptor(ctx, md, repo, opts, resolverOpts)
}

// ResolveFile resolves the dependencies of the descriptor at path.
func ResolveFile(ctx context.Context, path string, repo repository.Repository, opts resolve.Options, resolverOpts ...resolve.Option) (*report.Report, error) {
	md, err := descriptor.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse module file: %w", err)
	}
	return resolveDescriptor(ctx, md, repo, opts, resolverOpts)
}

// Graph resolves descriptor content and returns its dependency graph.
func Graph(ctx context.Context, content string, repo repository.Repository, opts resolve.Options, resolverOpts ...resolve.Option) (*graph.Graph, error) {
	r, err := Resolve(ctx, content, repo, opts, resolverOpts...)
	if err != nil {
		return nil, err
	}
	return graph.Build(r), nil
}

func resolveDescriptor(ctx context.Context, md *module.Descriptor, repo repository.Repository, opts resolve.Options, resolverOpts []resolve.Option) (*report.Report, error) {
	res, err := resolve.NewResolver(repo, resolverOpts...).Resolve(ctx, md, opts)
	if err != nil {
		return nil, err
	}
	confs := opts.Confs
	if len(confs) == 0 {
		confs = []string{module.AllConfs}
	}
	r := report.New(md, confs, res.Nodes, nil)
	r.Diagnostics = res.Diagnostics
	return r, nil
}
