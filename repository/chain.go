package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-depot/module"
)

// Chain looks modules up in an ordered list of repositories. The first
// repository where a module is found is used for all revisions of that
// module for the lifetime of the chain.
//
// Lookups fall back to the next repository on any error, not only on
// not-found, so one unreachable remote does not hide modules available
// elsewhere.
type Chain struct {
	name  string
	repos []Repository

	// owner tracks which repository provides each module.
	owner   map[module.ID]int
	ownerMu sync.RWMutex
}

// NewChain returns a chain over repos, tried in order.
func NewChain(name string, repos ...Repository) (*Chain, error) {
	if len(repos) == 0 {
		return nil, errors.New("chain requires at least one repository")
	}
	return &Chain{name: name, repos: repos, owner: make(map[module.ID]int)}, nil
}

// Name returns the repository id.
func (c *Chain) Name() string { return c.name }

// Repositories returns the chained repositories in lookup order.
func (c *Chain) Repositories() []Repository { return slices.Clone(c.repos) }

// ListOrganizations returns the union of every repository's organizations.
func (c *Chain) ListOrganizations(ctx context.Context) ([]string, error) {
	return c.union(func(r Repository) ([]string, error) { return r.ListOrganizations(ctx) })
}

// ListModules returns the union of every repository's modules in org.
func (c *Chain) ListModules(ctx context.Context, org string) ([]string, error) {
	return c.union(func(r Repository) ([]string, error) { return r.ListModules(ctx, org) })
}

// ListRevisions lists revisions from the repository owning id, or the
// union across repositories when ownership is not yet known.
func (c *Chain) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	if idx, ok := c.ownerOf(id); ok {
		return c.repos[idx].ListRevisions(ctx, id)
	}
	return c.union(func(r Repository) ([]string, error) { return r.ListRevisions(ctx, id) })
}

func (c *Chain) union(list func(Repository) ([]string, error)) ([]string, error) {
	var out []string
	var errs []error
	for _, r := range c.repos {
		names, err := list(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, n := range names {
			if !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	if out == nil && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	slices.Sort(out)
	return out, nil
}

// Descriptor returns rev's descriptor from the owning repository, probing
// repositories in order the first time a module is requested.
func (c *Chain) Descriptor(ctx context.Context, rev module.RevisionID) (*module.Descriptor, error) {
	if idx, ok := c.ownerOf(rev.ID); ok {
		return c.repos[idx].Descriptor(ctx, rev)
	}

	var failures []string
	allNotFound := true
	for i, r := range c.repos {
		md, err := r.Descriptor(ctx, rev)
		if err == nil {
			c.ownerMu.Lock()
			if _, exists := c.owner[rev.ID]; !exists {
				c.owner[rev.ID] = i
			}
			c.ownerMu.Unlock()
			return md, nil
		}
		if !IsNotFound(err) {
			allNotFound = false
		}
		failures = append(failures, fmt.Sprintf("%s: %v", r.Name(), err))
	}

	cause := ErrNotFound
	if !allNotFound {
		cause = fmt.Errorf("%w in any repository:\n  %s", ErrNotFound, strings.Join(failures, "\n  "))
	}
	return nil, &Error{Op: "resolve descriptor", Repository: c.name, Target: rev.String(), Err: cause}
}

// Artifact opens an artifact from the repository owning rev's module.
func (c *Chain) Artifact(ctx context.Context, rev module.RevisionID, a module.Artifact) (io.ReadCloser, error) {
	idx, ok := c.ownerOf(rev.ID)
	if !ok {
		if _, err := c.Descriptor(ctx, rev); err != nil {
			return nil, err
		}
		idx, _ = c.ownerOf(rev.ID)
	}
	return c.repos[idx].Artifact(ctx, rev, a)
}

// RepositoryFor returns the name of the repository that provides id, or ""
// when the module has not been looked up yet.
func (c *Chain) RepositoryFor(id module.ID) string {
	if idx, ok := c.ownerOf(id); ok {
		return c.repos[idx].Name()
	}
	return ""
}

func (c *Chain) ownerOf(id module.ID) (int, bool) {
	c.ownerMu.RLock()
	defer c.ownerMu.RUnlock()
	idx, ok := c.owner[id]
	return idx, ok
}

var _ Repository = (*Chain)(nil)
