package main

import (
	"cmp"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-depot/cache"
	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/albertocavalcante/go-depot/resolve"
	"github.com/albertocavalcante/go-depot/session"
	"github.com/albertocavalcante/go-depot/settings"
)

// resolveFlags are shared by the commands that resolve the module first.
type resolveFlags struct {
	file       string
	repository string
	types      string
	opts       session.EnsureOptions
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", descriptor.FileName, "module descriptor")
	flags.StringVar(&f.repository, "repository", "", "repository id to resolve from (default from settings)")
	flags.StringVar(&f.types, "types", "", "comma separated artifact types to retrieve (default all)")
	flags.StringVar(&f.opts.Conf, "conf", "", "comma separated configurations to resolve (default all)")
	flags.StringVar(&f.opts.Organization, "organisation", "", "organisation of the resolved module")
	flags.StringVar(&f.opts.Module, "module", "", "name of the resolved module")
	flags.BoolVar(&f.opts.Transitive, "transitive", true, "resolve dependencies transitively")
	flags.BoolVar(&f.opts.HaltOnFailure, "haltonfailure", true, "fail when a dependency cannot be resolved")
	flags.BoolVar(&f.opts.UseOrigin, "useorigin", false, "do not copy artifacts into the cache")
	flags.BoolVar(&f.opts.Validate, "validate", true, "validate descriptors")
}

// newSession returns a session resolving f.file against the selected
// repository.
func (a *app) newSession(f *resolveFlags) (*session.Session, error) {
	repo, err := a.resolveRepository(f.repository)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(a.settings.CacheDir(), cache.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	engine := resolve.NewResolver(repo,
		resolve.WithMatchers(a.settings.Matchers()),
		resolve.WithLogger(a.logger))
	return session.New(&session.DescriptorResolver{
		Path:   f.file,
		Engine: engine,
		Cache:  c,
		Source: repo,
		Filter: cache.ParseTypes(f.types),
	}, session.WithLogger(a.logger)), nil
}

func (a *app) resolveRepository(id string) (repository.Repository, error) {
	if id != "" {
		return a.settings.Repository(id)
	}
	repo, ok := a.settings.DefaultRepository()
	if !ok {
		return nil, settings.MissingParameter("repository")
	}
	return repo, nil
}

func newResolveCmd(a *app) *cobra.Command {
	f := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the dependencies of a module descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession(f)
			if err != nil {
				return err
			}
			r, err := s.EnsureResolved(cmd.Context(), f.opts)
			if err != nil {
				return err
			}
			if r == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to resolve")
				return nil
			}
			if err := report.Output(r, a.settings.Outputters(), a.settings.CacheDir()); err != nil {
				return err
			}
			printResolve(cmd.OutOrStdout(), r)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func printResolve(w io.Writer, r *report.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()
	fmt.Fprintf(tw, "%s\t%s\n", r.Root.Revision, cmp.Or(module.MergeConfs(r.Confs), "-"))
	for _, n := range r.Nodes {
		status := "resolved"
		switch {
		case n.IsFailed():
			status = fmt.Sprintf("failed: %v", n.Err())
		case n.Evicted:
			status = "evicted"
			if n.EvictedBy != nil {
				status += " by " + n.EvictedBy.Revision
			}
		}
		fmt.Fprintf(tw, "  %s\t%s\n", n.Revision, status)
	}
}

func newFixDepsCmd(a *app) *cobra.Command {
	f := &resolveFlags{}
	var dest string
	cmd := &cobra.Command{
		Use:   "fixdeps",
		Short: "Write a descriptor with every dependency pinned to its resolved revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession(f)
			if err != nil {
				return err
			}
			if _, err := s.EnsureResolved(cmd.Context(), f.opts); err != nil {
				return err
			}
			if err := s.FixDeps(f.opts.Organization, f.opts.Module, dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dest)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&dest, "tofile", "", "destination descriptor")
	return cmd
}
