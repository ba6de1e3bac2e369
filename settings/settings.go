// Package settings holds the session-wide configuration shared by every
// depot operation: the configured repositories, matchers, cache location,
// default status and report outputters.
//
// Settings are assembled with functional options or loaded from a file
// with Load. Lookups are safe for concurrent use.
package settings

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/albertocavalcante/go-depot/matcher"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/repository"
)

// Defaults applied when a value is not configured.
const (
	DefaultStatus  = module.StatusIntegration
	DefaultMatcher = matcher.Exact
)

// Settings is the configuration of a depot session.
type Settings struct {
	mu                sync.RWMutex
	cacheDir          string
	defaultStatus     string
	defaultMatcher    string
	defaultRepository string
	repositories      map[string]repository.Repository
	matchers          *matcher.Registry
	outputters        []report.Outputter
}

// Option configures Settings.
type Option func(*Settings) error

// WithCacheDir sets the default cache directory.
func WithCacheDir(dir string) Option {
	return func(s *Settings) error {
		s.cacheDir = dir
		return nil
	}
}

// WithDefaultStatus sets the status given to modules built by depot itself.
func WithDefaultStatus(status string) Option {
	return func(s *Settings) error {
		s.defaultStatus = status
		return nil
	}
}

// WithDefaultMatcher sets the matcher used when a caller names none.
func WithDefaultMatcher(id string) Option {
	return func(s *Settings) error {
		s.defaultMatcher = id
		return nil
	}
}

// WithRepository registers repositories under their names.
func WithRepository(repos ...repository.Repository) Option {
	return func(s *Settings) error {
		for _, r := range repos {
			if _, exists := s.repositories[r.Name()]; exists {
				return fmt.Errorf("%w: repository %q configured twice", ErrInvalidSettings, r.Name())
			}
			s.repositories[r.Name()] = r
		}
		return nil
	}
}

// WithDefaultRepository names the repository resolutions read from when no
// other is imposed.
func WithDefaultRepository(id string) Option {
	return func(s *Settings) error {
		s.defaultRepository = id
		return nil
	}
}

// WithMatcher registers an additional matcher.
func WithMatcher(m matcher.Matcher) Option {
	return func(s *Settings) error {
		s.matchers.Register(m)
		return nil
	}
}

// WithOutputters sets the report outputters.
func WithOutputters(outputters ...report.Outputter) Option {
	return func(s *Settings) error {
		s.outputters = append(s.outputters, outputters...)
		return nil
	}
}

// New returns settings built from opts and validated.
func New(opts ...Option) (*Settings, error) {
	s := &Settings{
		defaultStatus:  DefaultStatus,
		defaultMatcher: DefaultMatcher,
		repositories:   make(map[string]repository.Repository),
		matchers:       matcher.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	var errs []error
	if s.defaultStatus == "" {
		errs = append(errs, errors.New("default status must not be empty"))
	}
	if _, ok := s.matchers.Get(s.defaultMatcher); !ok {
		errs = append(errs, fmt.Errorf("default matcher: %w", s.matcherError(s.defaultMatcher)))
	}
	if s.defaultRepository != "" {
		if _, ok := s.repositories[s.defaultRepository]; !ok {
			errs = append(errs, fmt.Errorf("default repository: %w", s.repositoryError(s.defaultRepository)))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// CacheDir returns the configured cache directory, or ~/.depot/cache.
func (s *Settings) CacheDir() string {
	if s.cacheDir != "" {
		return s.cacheDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "depot", "cache")
	}
	return filepath.Join(home, ".depot", "cache")
}

// DefaultStatus returns the status given to modules built by depot.
func (s *Settings) DefaultStatus() string { return s.defaultStatus }

// DefaultMatcherID returns the id of the matcher used when none is named.
func (s *Settings) DefaultMatcherID() string { return s.defaultMatcher }

// Outputters returns the configured report outputters.
func (s *Settings) Outputters() []report.Outputter {
	return slices.Clone(s.outputters)
}

// AddRepository registers or replaces a repository.
func (s *Settings) AddRepository(r repository.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repositories[r.Name()] = r
}

// Repository returns the repository configured under id.
func (s *Settings) Repository(id string) (repository.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repositories[id]
	if !ok {
		return nil, s.repositoryError(id)
	}
	return r, nil
}

// Publisher returns the repository configured under id if it accepts
// publications.
func (s *Settings) Publisher(id string) (repository.Publisher, error) {
	r, err := s.Repository(id)
	if err != nil {
		return nil, err
	}
	p, ok := r.(repository.Publisher)
	if !ok {
		return nil, &ConfigError{Kind: "repositories", Name: id, Err: repository.ErrReadOnly}
	}
	return p, nil
}

// DefaultRepository returns the repository resolutions use by default. With
// no explicit default, a single configured repository is the default.
func (s *Settings) DefaultRepository() (repository.Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.defaultRepository != "" {
		r, ok := s.repositories[s.defaultRepository]
		return r, ok
	}
	if len(s.repositories) == 1 {
		for _, r := range s.repositories {
			return r, true
		}
	}
	return nil, false
}

// RepositoryIDs returns the configured repository ids, sorted.
func (s *Settings) RepositoryIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.repositories))
}

// Matcher returns the matcher registered under id.
func (s *Settings) Matcher(id string) (matcher.Matcher, error) {
	m, ok := s.matchers.Get(id)
	if !ok {
		return nil, s.matcherError(id)
	}
	return m, nil
}

// Matchers returns the matcher registry.
func (s *Settings) Matchers() *matcher.Registry { return s.matchers }

// repositoryError must be called with s.mu held or before s is shared.
func (s *Settings) repositoryError(id string) error {
	known := slices.Sorted(maps.Keys(s.repositories))
	if known == nil {
		known = []string{}
	}
	return &ConfigError{Kind: "repositories", Name: id, Known: known, Err: ErrUnknownRepository}
}

func (s *Settings) matcherError(id string) error {
	return &ConfigError{Kind: "matchers", Name: id, Known: s.matchers.Names(), Err: ErrUnknownMatcher}
}
