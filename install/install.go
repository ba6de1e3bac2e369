// Package install copies modules and their dependencies from one
// repository into another.
//
// An install resolves a synthetic module whose only configuration depends
// on every module matching the requested coordinate, downloads the result
// into the cache, then publishes each resolved module from the cache into
// the destination repository. The source repository is imposed on the
// resolution for that call only; the shared settings are never modified.
package install

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/albertocavalcante/go-depot/cache"
	"github.com/albertocavalcante/go-depot/matcher"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/publish"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/albertocavalcante/go-depot/resolve"
	"github.com/albertocavalcante/go-depot/search"
	"github.com/albertocavalcante/go-depot/settings"
	"golang.org/x/sync/errgroup"
)

// Identity of the synthetic module an install resolves.
const (
	Organization = "depot"
	Name         = "depot-install"
	Revision     = "1.0"
)

// Request describes one install.
type Request struct {
	// Coordinate selects the modules to install. Each part is matched with
	// the request matcher; a literal coordinate names a single revision.
	Coordinate module.RevisionID

	// From and To are repository ids from the settings. To must accept
	// publications.
	From string
	To   string

	Transitive bool
	Validate   bool
	Overwrite  bool

	// Filter selects the artifacts installed. Nil accepts all.
	Filter cache.ArtifactFilter

	// CacheDir overrides the settings cache directory.
	CacheDir string

	// MatcherID overrides the settings default matcher.
	MatcherID string
}

// Engine runs installs against shared settings. Installs on one engine
// run one at a time.
type Engine struct {
	settings    *settings.Settings
	resolver    resolve.Engine
	publisher   *publish.Publisher
	concurrency int
	hook        StateHook
	metrics     *metrics
	logger      *slog.Logger

	mu sync.Mutex
}

// New returns an engine using s.
func New(s *settings.Settings, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, ErrNoSettings
	}
	cfg, err := newEngineConfig(opts...)
	if err != nil {
		return nil, err
	}
	logger := cfg.log()

	e := &Engine{
		settings:    s,
		resolver:    cfg.resolver,
		publisher:   cfg.publisher,
		concurrency: cfg.concurrency,
		hook:        cfg.hook,
		metrics:     newMetrics(),
		logger:      logger,
	}
	if e.resolver == nil {
		e.resolver = resolve.NewResolver(nil,
			resolve.WithMatchers(s.Matchers()),
			resolve.WithLogger(logger),
			resolve.WithConcurrency(cfg.concurrency))
	}
	if e.publisher == nil {
		e.publisher = publish.New(publish.WithLogger(logger))
	}
	if cfg.registerer != nil {
		if err := e.metrics.register(cfg.registerer); err != nil {
			return nil, fmt.Errorf("register install metrics: %w", err)
		}
	}
	return e, nil
}

// Install resolves the modules matching req.Coordinate in req.From and
// publishes every resolved one into req.To.
//
// Unknown repository or matcher ids are reported as *settings.ConfigError
// before anything is read or written. Failures to resolve or publish a
// single module are recorded in the report and do not fail the install.
// The returned error is reserved for failures of the install as a whole;
// the report is returned with it whenever one was built.
func (e *Engine) Install(ctx context.Context, req Request) (*report.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	t := &tracker{hook: e.hook}
	r, err := e.install(ctx, req, t)
	if err != nil {
		t.to(Aborted)
	}
	e.metrics.observe(r, err, time.Since(start).Seconds())
	return r, err
}

func (e *Engine) install(ctx context.Context, req Request, t *tracker) (*report.Report, error) {
	cacheDir := cmp.Or(req.CacheDir, e.settings.CacheDir())
	filter := req.Filter
	if filter == nil {
		filter = cache.AcceptAll
	}

	from, err := e.settings.Repository(req.From)
	if err != nil {
		return nil, fmt.Errorf("install: source: %w", err)
	}
	to, err := e.settings.Publisher(req.To)
	if err != nil {
		return nil, fmt.Errorf("install: destination: %w", err)
	}
	m, err := e.settings.Matcher(cmp.Or(req.MatcherID, e.settings.DefaultMatcherID()))
	if err != nil {
		return nil, fmt.Errorf("install: %w", err)
	}
	c, err := cache.New(cacheDir, cache.WithConcurrency(e.concurrency), cache.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("install: %w", err)
	}
	t.to(RepositoriesResolved)

	root, err := e.installDescriptor(ctx, req, from, m)
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", req.Coordinate, err)
	}
	t.to(GraphBuilt)

	e.logger.Info("installing", "coordinate", req.Coordinate.String(), "from", from.Name(), "to", to.Name(), "dependencies", len(root.Dependencies))
	t.to(Resolving)
	confs := []string{module.DefaultConf}
	res, err := e.resolver.Resolve(ctx, root, resolve.Options{
		Confs:              confs,
		Transitive:         req.Transitive,
		Dictator:           from,
		LogDroppedExcludes: true,
		Validate:           req.Validate,
	})
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", req.Coordinate, err)
	}
	r := report.New(root, confs, res.Nodes, filter)
	r.Diagnostics = res.Diagnostics

	t.to(Downloading)
	downloads, err := c.Download(ctx, from, res.Nodes, filter)
	r.Artifacts = downloads
	if err != nil {
		return r, fmt.Errorf("install %s: %w", req.Coordinate, err)
	}

	t.to(Publishing)
	r.Published = e.publishAll(ctx, r, c, to, req.Overwrite)

	t.to(Reporting)
	if err := report.Output(r, e.settings.Outputters(), c.Root()); err != nil {
		return r, fmt.Errorf("install %s: %w", req.Coordinate, err)
	}
	t.to(Done)
	e.logger.Info("install done", "coordinate", req.Coordinate.String(), "published", len(r.Published)-len(r.PublishFailures()), "failed", len(r.FailedNodes())+len(r.PublishFailures()))
	return r, nil
}

// installDescriptor builds the synthetic module depending on every module
// req.Coordinate designates in from.
func (e *Engine) installDescriptor(ctx context.Context, req Request, from repository.Repository, m matcher.Matcher) (*module.Descriptor, error) {
	md := module.NewDescriptor(module.NewRevisionID(Organization, Name, Revision), e.settings.DefaultStatus(), time.Now())
	if err := md.AddConfiguration(module.Configuration{Name: module.DefaultConf}); err != nil {
		return nil, err
	}
	md.AddConflictRule(module.ConflictRule{
		OrganizationPattern: matcher.Any,
		NamePattern:         matcher.Any,
		Matcher:             matcher.Exact,
		Manager:             resolve.ManagerNone,
	})

	targets := []module.RevisionID{req.Coordinate}
	if !matcher.IsLiteral(m, req.Coordinate) {
		found, err := search.FindMatches(ctx, from, req.Coordinate, m)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			e.logger.Warn("no module matches", "coordinate", req.Coordinate.String(), "matcher", m.Name(), "repository", from.Name())
		}
		targets = found
	}
	for _, rev := range targets {
		dep := module.NewDependency(rev, req.Transitive)
		dep.AddConfMapping(module.DefaultConf, module.AllConfs)
		md.AddDependency(dep)
	}
	return md, nil
}

// publishAll publishes every resolved, non-evicted node from the cache.
// Nodes with failed downloads are not published. Failures are recorded per
// node.
func (e *Engine) publishAll(ctx context.Context, r *report.Report, c *cache.Cache, to repository.Publisher, overwrite bool) []report.PublishResult {
	downloadErrs := make(map[module.RevisionID][]error)
	for _, d := range cache.Failed(r.Artifacts) {
		downloadErrs[d.Revision] = append(downloadErrs[d.Revision], d.Err)
	}

	var nodes []*module.Descriptor
	var results []report.PublishResult
	for _, n := range r.Nodes {
		md, ok := n.Descriptor()
		if !ok || n.Evicted {
			continue
		}
		if errs := downloadErrs[md.Revision]; len(errs) > 0 {
			e.logger.Warn("skipping publish", "module", md.Revision.String(), "failedArtifacts", len(errs))
			results = append(results, report.PublishResult{
				Revision:    md.Revision,
				Destination: to.Name(),
				Err: &NodeError{
					Revision:    md.Revision,
					Destination: to.Name(),
					Err:         fmt.Errorf("%w: %w", ErrIncompleteDownload, errors.Join(errs...)),
				},
			})
			continue
		}
		nodes = append(nodes, md)
	}

	artifactPatterns := []string{filepath.Join(c.Root(), c.ArtifactPattern())}
	opts := publish.Options{
		Overwrite:            overwrite,
		SrcDescriptorPattern: filepath.Join(c.Root(), c.DescriptorPattern()),
	}

	published := make([]report.PublishResult, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, md := range nodes {
		g.Go(func() error {
			pr := report.PublishResult{Revision: md.Revision, Destination: to.Name()}
			res, err := e.publisher.Publish(gctx, md, artifactPatterns, to, opts)
			if err != nil {
				e.logger.Warn("publish failed", "module", md.Revision.String(), "error", err)
				pr.Err = &NodeError{Revision: md.Revision, Destination: to.Name(), Err: err}
			} else {
				pr.Artifacts = len(res.Published)
			}
			published[i] = pr
			return nil
		})
	}
	_ = g.Wait()
	return append(results, published...)
}
