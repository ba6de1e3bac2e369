// Package session tracks what has been resolved during a build session so
// later operations can skip work already done.
//
// A Session records every resolution in a Registry, under a key scoped to
// the resolved module and, when the resolution is kept, under a global key.
// ConfsToResolve compares a request against those records and
// EnsureResolved triggers a resolution for exactly the configurations that
// are still missing.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/settings"
)

// Sentinel errors for session operations.
var (
	// ErrNotResolved indicates an operation needs a resolution that has not
	// happened in this session.
	ErrNotResolved = errors.New("no resolved module in session")

	// ErrNoResolver indicates a resolution was needed but the session has
	// no resolver.
	ErrNoResolver = errors.New("session has no resolver")
)

// ResolveRequest is what a session asks its Resolver for.
type ResolveRequest struct {
	Organization  string
	Module        string
	Confs         []string
	Transitive    bool
	HaltOnFailure bool
	UseOrigin     bool
	Validate      bool
}

// Resolver performs the resolutions a session triggers. On failure it may
// return a report together with the error.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*report.Report, error)
}

// Entry is the record of one resolution.
type Entry struct {
	Report     *report.Report
	Descriptor *module.Descriptor
	Confs      []string
}

// Session is the resolution bookkeeping of one build session.
type Session struct {
	registry *Registry
	resolver Resolver
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry shares an existing registry instead of creating one.
func WithRegistry(r *Registry) Option {
	return func(s *Session) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a session that uses resolver for the resolutions
// EnsureResolved triggers. resolver may be nil for sessions that only
// record resolutions made elsewhere.
func New(resolver Resolver, opts ...Option) *Session {
	s := &Session{
		registry: NewRegistry(),
		resolver: resolver,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the session registry.
func (s *Session) Registry() *Registry { return s.registry }

// SetResolved records r under its module's key and, when keep is set,
// under the global key as well.
func (s *Session) SetResolved(r *report.Report, keep bool) {
	md := r.Root
	confs := append([]string(nil), r.Confs...)
	org, name := md.Revision.Organization, md.Revision.Name
	if keep {
		s.registry.Put(GlobalKey(KindReport), r)
		s.registry.Put(GlobalKey(KindDescriptor), md)
		s.registry.Put(GlobalKey(KindConfs), confs)
	}
	s.registry.Put(ModuleKey(KindReport, org, name), r)
	s.registry.Put(ModuleKey(KindDescriptor, org, name), md)
	s.registry.Put(ModuleKey(KindConfs, org, name), confs)
}

// ResolvedReport returns the recorded report for org#module, falling back
// to the global one unless strict.
func (s *Session) ResolvedReport(org, module string, strict bool) (*report.Report, bool) {
	return lookup[*report.Report](s.registry, KindReport, org, module, strict)
}

// ResolvedDescriptor returns the recorded descriptor for org#module,
// falling back to the global one unless strict.
func (s *Session) ResolvedDescriptor(org, mod string, strict bool) (*module.Descriptor, bool) {
	return lookup[*module.Descriptor](s.registry, KindDescriptor, org, mod, strict)
}

// ResolvedConfigurations returns the recorded configuration names for
// org#module, falling back to the global ones unless strict.
func (s *Session) ResolvedConfigurations(org, module string, strict bool) ([]string, bool) {
	return lookup[[]string](s.registry, KindConfs, org, module, strict)
}

// Entry returns the full record for org#module with the same fallback
// rule. It is found when a descriptor is recorded.
func (s *Session) Entry(org, mod string, strict bool) (Entry, bool) {
	md, ok := s.ResolvedDescriptor(org, mod, strict)
	if !ok {
		return Entry{}, false
	}
	r, _ := s.ResolvedReport(org, mod, strict)
	confs, _ := s.ResolvedConfigurations(org, mod, strict)
	return Entry{Report: r, Descriptor: md, Confs: confs}, true
}

// ConfsToResolve returns the configurations of org#module that requested
// asks for and no recorded resolution covers. requested is a comma
// separated list, "*" for every declared configuration, or empty.
//
// With nothing recorded, an empty request yields ["*"] and any other
// request is returned split and trimmed. With a record, an empty request
// yields nothing; otherwise the result is the requested names minus the
// resolved ones, sorted.
func (s *Session) ConfsToResolve(org, mod, requested string, strict bool) []string {
	md, ok := s.ResolvedDescriptor(org, mod, strict)
	if !ok {
		s.logger.Debug("module not yet resolved, all confs still need to be resolved")
		if requested == "" {
			return []string{module.AllConfs}
		}
		return module.SplitConfs(requested)
	}
	if requested == "" {
		s.logger.Debug("module already resolved, no configuration to resolve")
		return []string{}
	}

	resolvedNames, _ := s.ResolvedConfigurations(org, mod, strict)
	asked := module.ParseConfSet(requested).Resolve(md.ConfigurationNames())
	missing := asked.Difference(module.Confs(resolvedNames...))
	s.logger.Debug("calculated configurations to resolve",
		"resolved", module.MergeConfs(resolvedNames),
		"asked", asked.String(),
		"missing", module.MergeConfs(missing))
	return missing
}

// EnsureOptions are the parameters of EnsureResolved.
type EnsureOptions struct {
	HaltOnFailure bool
	UseOrigin     bool
	Transitive    bool
	Validate      bool
	Organization  string
	Module        string

	// Conf is the requested configuration list; empty means whatever has
	// not been resolved yet.
	Conf string
}

// EnsureResolved resolves the configurations of the target module that the
// session has not resolved yet, and records the result globally. It returns
// nil when there was nothing to resolve.
//
// When the resolver fails and HaltOnFailure is set, or no report came
// back, the error is returned and nothing is recorded. Otherwise the
// failure is added to the report diagnostics and the report is recorded.
func (s *Session) EnsureResolved(ctx context.Context, opts EnsureOptions) (*report.Report, error) {
	confs := s.ConfsToResolve(opts.Organization, opts.Module, opts.Conf, false)
	if len(confs) == 0 {
		return nil, nil
	}
	if s.resolver == nil {
		return nil, ErrNoResolver
	}

	s.logger.Info("no resolved descriptor found: launching default resolve", "confs", module.MergeConfs(confs))
	r, err := s.resolver.Resolve(ctx, ResolveRequest{
		Organization:  opts.Organization,
		Module:        opts.Module,
		Confs:         confs,
		Transitive:    opts.Transitive,
		HaltOnFailure: opts.HaltOnFailure,
		UseOrigin:     opts.UseOrigin,
		Validate:      opts.Validate,
	})
	if err != nil {
		err = fmt.Errorf("resolve %s: %w", module.MergeConfs(confs), err)
		if opts.HaltOnFailure || r == nil {
			return r, err
		}
		// Without a halt the failure travels in the recorded report.
		s.logger.Warn("resolution failed", "confs", module.MergeConfs(confs), "error", err)
		r.Diagnostics = append(r.Diagnostics, err.Error())
	}
	s.SetResolved(r, true)
	return r, nil
}

// ShouldResolve reports whether a resolution is needed before an operation
// on org#module. It is always false when both org and module are given;
// otherwise it is true while nothing has been recorded globally.
func (s *Session) ShouldResolve(org, mod string) bool {
	if org != "" && mod != "" {
		return false
	}
	_, ok := s.ResolvedDescriptor(org, mod, false)
	return !ok
}

// FixDeps writes to dest a descriptor equivalent to the resolved module
// with every dependency pinned to the revision it resolved to.
func (s *Session) FixDeps(org, mod, dest string) error {
	if dest == "" {
		return settings.MissingParameter("tofile")
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return fmt.Errorf("the destination file %s already exists and is a directory", dest)
	}
	r, ok := s.ResolvedReport(org, mod, false)
	if !ok {
		return ErrNotResolved
	}
	if err := descriptor.WriteFile(dest, r.FixedDescriptor()); err != nil {
		return fmt.Errorf("fix dependencies of %s: %w", r.Root.Revision, err)
	}
	return nil
}

// ParsePublicationDate parses a publication date. An empty value yields
// def, "now" (any case) the current time; anything else must use the
// 20060102150405 layout and is read in local time.
func ParsePublicationDate(value string, def time.Time) (time.Time, error) {
	if value == "" {
		return def, nil
	}
	if strings.EqualFold(value, "now") {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation(descriptor.PublicationLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("publication date provided in bad format: should be %s and not %s", descriptor.PublicationLayout, value)
	}
	return t, nil
}
