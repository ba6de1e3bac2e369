package resolve

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/matcher"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/albertocavalcante/go-depot/revision"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 5

// Resolver is the default Engine.
//
// Resolution proceeds in waves. Each wave collects the dependency edges of
// the nodes whose configurations grew in the previous wave, fetches the
// descriptors not seen yet (up to the concurrency limit at a time), then
// applies the edges in declaration order so the result is deterministic.
// Conflict management runs once the graph is complete.
type Resolver struct {
	repo            repository.Repository
	matchers        *matcher.Registry
	logger          *slog.Logger
	concurrency     int
	conflictManager string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatchers sets the registry used to evaluate exclusion and conflict
// rules.
func WithMatchers(m *matcher.Registry) Option {
	return func(r *Resolver) {
		if m != nil {
			r.matchers = m
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConcurrency bounds parallel descriptor fetches.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithConflictManager sets the manager used for modules no conflict rule
// matches. The default is latest-revision.
func WithConflictManager(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.conflictManager = name
		}
	}
}

// NewResolver returns a resolver reading from repo unless a call supplies a
// dictator repository. repo may be nil when every call does.
func NewResolver(repo repository.Repository, opts ...Option) *Resolver {
	r := &Resolver{
		repo:            repo,
		matchers:        matcher.NewRegistry(),
		logger:          slog.New(slog.DiscardHandler),
		concurrency:     defaultMaxConcurrency,
		conflictManager: ManagerLatestRevision,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type nodeState struct {
	rev      module.RevisionID
	md       *module.Descriptor
	err      error
	confs    []string
	expanded []string
}

// visit is a node whose dependencies must be followed for confs.
type visit struct {
	md       *module.Descriptor
	confs    []string
	excludes []module.ExcludeRule
}

type edge struct {
	dep      module.Dependency
	targets  []string
	excludes []module.ExcludeRule
	descend  bool
}

// walk holds the state of one Resolve call.
type walk struct {
	*Resolver
	opts  Options
	repo  repository.Repository
	nodes map[module.RevisionID]*nodeState
	// pinned maps dynamic requests to the revision they resolved to.
	pinned map[module.RevisionID]module.RevisionID
	diags  []string
}

// Resolve implements Engine.
func (r *Resolver) Resolve(ctx context.Context, root *module.Descriptor, opts Options) (*Result, error) {
	if root == nil {
		return nil, fmt.Errorf("resolve: root descriptor is nil")
	}
	repo := r.repo
	if opts.Dictator != nil {
		repo = opts.Dictator
	}
	if repo == nil {
		return nil, fmt.Errorf("resolve %s: %w", root.Revision, ErrNoRepository)
	}
	if opts.Validate {
		if err := descriptor.Validate(root); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root.Revision, err)
		}
	}

	confs := opts.Confs
	if len(confs) == 0 {
		confs = []string{module.AllConfs}
	}
	for _, c := range confs {
		if c != module.AllConfs && root.Configuration(c) == nil {
			return nil, fmt.Errorf("resolve %s: %w %q", root.Revision, module.ErrUnknownConfiguration, c)
		}
	}

	w := &walk{
		Resolver: r,
		opts:     opts,
		repo:     repo,
		nodes:    make(map[module.RevisionID]*nodeState),
		pinned:   make(map[module.RevisionID]module.RevisionID),
	}
	r.logger.Debug("resolving", "module", root.Revision.String(), "confs", module.MergeConfs(confs), "repository", repo.Name())

	queue := []visit{{md: root, confs: root.ExpandConfs(confs)}}
	for len(queue) > 0 {
		edges := w.collect(queue)
		if err := w.fetch(ctx, edges); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root.Revision, err)
		}
		queue = w.apply(edges)
	}

	nodes, err := w.manageConflicts(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root.Revision, err)
	}
	return &Result{Nodes: nodes, Diagnostics: w.diags}, nil
}

// collect gathers the edges leaving the visited nodes.
func (w *walk) collect(queue []visit) []edge {
	var edges []edge
	for _, v := range queue {
		for _, dep := range v.md.Dependencies {
			var targets []string
			for _, c := range v.confs {
				for _, t := range dep.TargetConfs(c) {
					if !slices.Contains(targets, t) {
						targets = append(targets, t)
					}
				}
			}
			if len(targets) == 0 {
				continue
			}
			if rule, ok := w.excluded(v, dep.Revision.ID); ok {
				w.logger.Debug("dependency excluded", "module", dep.Revision.String(), "by", ruleString(rule))
				continue
			}
			excludes := slices.Clone(v.excludes)
			for _, rule := range dep.Excludes {
				if w.applicable(dep, rule, v.confs) {
					excludes = append(excludes, rule)
				}
			}
			edges = append(edges, edge{
				dep:      dep,
				targets:  targets,
				excludes: excludes,
				descend:  w.opts.Transitive && dep.Transitive,
			})
		}
	}
	return edges
}

// excluded reports whether a module-level rule inherited by v drops id.
func (w *walk) excluded(v visit, id module.ID) (module.ExcludeRule, bool) {
	for _, rule := range v.excludes {
		m, ok := w.matchers.Get(cmp.Or(rule.Matcher, matcher.Exact))
		if !ok {
			continue
		}
		pattern := module.NewID(cmp.Or(rule.Organization, matcher.Any), cmp.Or(rule.Module, matcher.Any))
		if matcher.MatchesModule(m, pattern, id) {
			return rule, true
		}
	}
	return module.ExcludeRule{}, false
}

// applicable reports whether rule can be applied to the subtree of dep when
// it is reached through confs. Rules that cannot are dropped and reported.
func (w *walk) applicable(dep module.Dependency, rule module.ExcludeRule, confs []string) bool {
	var reason string
	switch {
	case !rule.ExcludesModule():
		reason = "artifact exclusions are not applied during resolution"
	case len(rule.Confs) > 0 && !slices.ContainsFunc(confs, func(c string) bool {
		return c == module.AllConfs || slices.Contains(rule.Confs, c) || slices.Contains(rule.Confs, module.AllConfs)
	}):
		reason = "no active configuration in " + module.MergeConfs(rule.Confs)
	default:
		if _, ok := w.matchers.Get(cmp.Or(rule.Matcher, matcher.Exact)); ok {
			return true
		}
		reason = "unknown matcher " + rule.Matcher
	}
	msg := fmt.Sprintf("dropped exclude rule %s on %s: %s", ruleString(rule), dep.Revision, reason)
	if w.opts.LogDroppedExcludes {
		w.logger.Info(msg)
		w.diags = append(w.diags, msg)
	} else {
		w.logger.Debug(msg)
	}
	return false
}

// fetch resolves dynamic revisions and loads the descriptors of every edge
// target not seen yet. Lookup failures become failed nodes; only
// cancellation is returned.
func (w *walk) fetch(ctx context.Context, edges []edge) error {
	var pending []module.RevisionID
	for _, e := range edges {
		req := e.dep.Revision
		if _, seen := w.pinned[req]; seen {
			continue
		}
		if _, seen := w.nodes[req]; seen {
			w.pinned[req] = req
			continue
		}
		if !slices.Contains(pending, req) {
			pending = append(pending, req)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	type fetched struct {
		rev module.RevisionID
		md  *module.Descriptor
		err error
	}
	results := make([]fetched, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, req := range pending {
		g.Go(func() error {
			rev, md, err := w.lookup(gctx, req)
			results[i] = fetched{rev: rev, md: md, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, req := range pending {
		res := results[i]
		w.pinned[req] = res.rev
		if _, seen := w.nodes[res.rev]; seen {
			continue
		}
		node := &nodeState{rev: res.rev, md: res.md, err: res.err}
		if res.err != nil {
			node.md = nil
			w.logger.Warn("unresolved dependency", "module", res.rev.String(), "error", res.err)
		}
		w.nodes[res.rev] = node
	}
	return nil
}

// lookup returns the descriptor for req, resolving dynamic revisions first.
func (w *walk) lookup(ctx context.Context, req module.RevisionID) (module.RevisionID, *module.Descriptor, error) {
	rev := req
	if isDynamic(req.Revision) {
		pinned, md, err := w.latest(ctx, req)
		if err != nil {
			return req, nil, err
		}
		if md != nil {
			return pinned, md, w.check(md)
		}
		rev = pinned
	}
	md, err := w.repo.Descriptor(ctx, rev)
	if err != nil {
		return rev, nil, err
	}
	return rev, md, w.check(md)
}

func (w *walk) check(md *module.Descriptor) error {
	if !w.opts.Validate {
		return nil
	}
	return descriptor.Validate(md)
}

// Dynamic revision forms.
const (
	latestPrefix = "latest."
	prefixSuffix = "+"
)

// Statuses ordered from least to most mature.
var statusRank = map[string]int{
	module.StatusIntegration: 0,
	module.StatusMilestone:   1,
	module.StatusRelease:     2,
}

func isDynamic(rev string) bool {
	return strings.HasPrefix(rev, latestPrefix) || strings.HasSuffix(rev, prefixSuffix)
}

// latest picks the highest revision satisfying a dynamic request. For
// latest.<status> requests the descriptor is needed to check the status
// and is returned as well.
func (w *walk) latest(ctx context.Context, req module.RevisionID) (module.RevisionID, *module.Descriptor, error) {
	revs, err := w.repo.ListRevisions(ctx, req.ID)
	if err != nil {
		return req, nil, err
	}
	revision.Sort(revs)
	slices.Reverse(revs)

	if status, ok := strings.CutPrefix(req.Revision, latestPrefix); ok {
		minRank := statusRank[status]
		for _, r := range revs {
			rev := module.RevisionID{ID: req.ID, Revision: r}
			md, err := w.repo.Descriptor(ctx, rev)
			if err != nil {
				if repository.IsNotFound(err) {
					continue
				}
				return req, nil, err
			}
			if statusRank[md.Status] >= minRank {
				return rev, md, nil
			}
		}
		return req, nil, fmt.Errorf("no revision of %s with status %s or better: %w", req.ID, status, repository.ErrNotFound)
	}

	prefix := strings.TrimSuffix(req.Revision, prefixSuffix)
	for _, r := range revs {
		if strings.HasPrefix(r, prefix) {
			return module.RevisionID{ID: req.ID, Revision: r}, nil, nil
		}
	}
	return req, nil, fmt.Errorf("no revision of %s matching %s: %w", req.ID, req.Revision, repository.ErrNotFound)
}

// apply records the edges on their target nodes and returns the nodes
// whose expanded configurations grew.
func (w *walk) apply(edges []edge) []visit {
	var next []visit
	for _, e := range edges {
		node := w.nodes[w.pinned[e.dep.Revision]]
		if node.md == nil {
			node.confs = appendMissing(node.confs, e.targets...)
			continue
		}

		confs := node.md.ExpandConfs(e.targets)
		for _, t := range e.targets {
			if t != module.AllConfs && node.md.Configuration(t) == nil {
				w.diags = append(w.diags, fmt.Sprintf("%s: %v %q requested by a dependency", node.rev, module.ErrUnknownConfiguration, t))
			}
		}
		node.confs = appendMissing(node.confs, confs...)
		if !e.descend {
			continue
		}
		var grown []string
		for _, c := range confs {
			if !slices.Contains(node.expanded, c) {
				grown = append(grown, c)
			}
		}
		if len(grown) == 0 {
			continue
		}
		node.expanded = append(node.expanded, grown...)
		next = append(next, visit{md: node.md, confs: grown, excludes: e.excludes})
	}
	return next
}

func appendMissing(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// manageConflicts groups nodes by module and applies the conflict manager
// selected for each module by the root's conflict rules.
func (w *walk) manageConflicts(root *module.Descriptor) ([]module.ResolvedNode, error) {
	byModule := make(map[module.ID][]*nodeState)
	for _, n := range w.nodes {
		byModule[n.rev.ID] = append(byModule[n.rev.ID], n)
	}

	nodes := make([]module.ResolvedNode, 0, len(w.nodes))
	for id, group := range byModule {
		manager, err := w.managerFor(root, id)
		if err != nil {
			return nil, err
		}
		var winner *module.RevisionID
		if len(group) > 1 {
			switch manager {
			case ManagerNone, ManagerAll:
			case ManagerLatestRevision:
				winner = latestResolved(group)
			case ManagerStrict:
				revs := make([]string, len(group))
				for i, n := range group {
					revs[i] = n.rev.Revision
				}
				revision.Sort(revs)
				return nil, &ConflictError{Module: id, Revisions: revs}
			}
		}
		for _, n := range group {
			node := toNode(n)
			if winner != nil && n.rev != *winner {
				node.Evicted = true
				node.EvictedBy = winner
				w.logger.Debug("evicted", "module", n.rev.String(), "by", winner.String())
			}
			nodes = append(nodes, node)
		}
	}

	slices.SortFunc(nodes, func(a, b module.ResolvedNode) int {
		return cmp.Or(
			strings.Compare(a.Revision.Organization, b.Revision.Organization),
			strings.Compare(a.Revision.Name, b.Revision.Name),
			revision.Compare(a.Revision.Revision, b.Revision.Revision),
		)
	})
	return nodes, nil
}

// managerFor returns the manager of the first root conflict rule matching
// id, or the resolver default.
func (w *walk) managerFor(root *module.Descriptor, id module.ID) (string, error) {
	manager := w.conflictManager
	for _, rule := range root.ConflictRules {
		m, ok := w.matchers.Get(cmp.Or(rule.Matcher, matcher.Exact))
		if !ok {
			return "", fmt.Errorf("conflict rule for %s#%s: unknown matcher %q", rule.OrganizationPattern, rule.NamePattern, rule.Matcher)
		}
		if matcher.MatchesModule(m, module.NewID(rule.OrganizationPattern, rule.NamePattern), id) {
			manager = cmp.Or(rule.Manager, w.conflictManager)
			break
		}
	}
	switch manager {
	case ManagerNone, ManagerAll, ManagerLatestRevision, ManagerStrict:
		return manager, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownConflictManager, manager)
}

// latestResolved returns the highest resolved revision in group, or nil
// when none resolved.
func latestResolved(group []*nodeState) *module.RevisionID {
	var best *module.RevisionID
	for _, n := range group {
		if n.md == nil {
			continue
		}
		if best == nil || revision.Compare(n.rev.Revision, best.Revision) > 0 {
			rev := n.rev
			best = &rev
		}
	}
	return best
}

func toNode(n *nodeState) module.ResolvedNode {
	if n.err != nil || n.md == nil {
		return module.NewFailedNode(n.rev, n.err, slices.Clone(n.confs))
	}
	return module.NewResolvedNode(n.md, slices.Clone(n.confs))
}

func ruleString(rule module.ExcludeRule) string {
	parts := []string{
		cmp.Or(rule.Organization, matcher.Any),
		cmp.Or(rule.Module, matcher.Any),
	}
	if !rule.ExcludesModule() {
		parts = append(parts, cmp.Or(rule.Artifact, matcher.Any), cmp.Or(rule.Type, matcher.Any), cmp.Or(rule.Ext, matcher.Any))
	}
	return strings.Join(parts, "#")
}

var _ Engine = (*Resolver)(nil)
