// Package search expands coordinate patterns into the concrete module
// revisions a repository holds.
package search

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depot/matcher"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/albertocavalcante/go-depot/revision"
)

// FindMatches returns every revision in repo whose organization, name and
// revision match pattern under m. Segments m considers literal are used
// as-is instead of being listed. The result holds no duplicates and is
// ordered by organization, name, then revision.
func FindMatches(ctx context.Context, repo repository.Repository, pattern module.RevisionID, m matcher.Matcher) ([]module.RevisionID, error) {
	orgs, err := expand(m, pattern.Organization, func() ([]string, error) {
		return repo.ListOrganizations(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search %s in %s: list organizations: %w", pattern, repo.Name(), err)
	}

	seen := make(map[module.RevisionID]struct{})
	var out []module.RevisionID
	for _, org := range orgs {
		names, err := expand(m, pattern.Name, func() ([]string, error) {
			return repo.ListModules(ctx, org)
		})
		if err != nil {
			return nil, fmt.Errorf("search %s in %s: list modules of %s: %w", pattern, repo.Name(), org, err)
		}
		for _, name := range names {
			id := module.NewID(org, name)
			revs, err := repo.ListRevisions(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("search %s in %s: list revisions of %s: %w", pattern, repo.Name(), id, err)
			}
			for _, rev := range revs {
				if !m.Matches(pattern.Revision, rev) {
					continue
				}
				rid := module.RevisionID{ID: id, Revision: rev}
				if _, dup := seen[rid]; dup {
					continue
				}
				seen[rid] = struct{}{}
				out = append(out, rid)
			}
		}
	}

	slices.SortFunc(out, func(a, b module.RevisionID) int {
		if c := strings.Compare(a.Organization, b.Organization); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return revision.Compare(a.Revision, b.Revision)
	})
	return out, nil
}

// ListModules returns the modules of repo matching the organization and
// name patterns of pattern, sorted.
func ListModules(ctx context.Context, repo repository.Repository, pattern module.ID, m matcher.Matcher) ([]module.ID, error) {
	orgs, err := expand(m, pattern.Organization, func() ([]string, error) {
		return repo.ListOrganizations(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list modules %s in %s: %w", pattern, repo.Name(), err)
	}
	var out []module.ID
	for _, org := range orgs {
		names, err := repo.ListModules(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("list modules %s in %s: %w", pattern, repo.Name(), err)
		}
		for _, name := range names {
			if m.Matches(pattern.Name, name) {
				out = append(out, module.NewID(org, name))
			}
		}
	}
	return out, nil
}

// expand returns [expr] when expr is literal under m, otherwise the listed
// values that match it.
func expand(m matcher.Matcher, expr string, list func() ([]string, error)) ([]string, error) {
	if m.IsLiteral(expr) {
		return []string{expr}, nil
	}
	all, err := list()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, v := range all {
		if m.Matches(expr, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}
