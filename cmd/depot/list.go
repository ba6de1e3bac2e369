package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-depot/matcher"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/revision"
	"github.com/albertocavalcante/go-depot/search"
)

func newListCmd(a *app) *cobra.Command {
	var repoID, matcherID string
	cmd := &cobra.Command{
		Use:   "list [org#name]",
		Short: "List the modules of a repository and their revisions",
		Long: `List the modules of a repository matching an org#name pattern,
with their revisions oldest first. Without a pattern every module is listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := module.NewID("*", "*")
			if len(args) == 1 {
				org, name, ok := strings.Cut(args[0], "#")
				if !ok || org == "" || name == "" {
					return fmt.Errorf("invalid module pattern %q: expected org#name", args[0])
				}
				pattern = module.NewID(org, name)
			}
			repo, err := a.resolveRepository(repoID)
			if err != nil {
				return err
			}
			m, err := a.settings.Matcher(matcherID)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ids, err := search.ListModules(ctx, repo, pattern, m)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, id := range ids {
				revs, err := repo.ListRevisions(ctx, id)
				if err != nil {
					return fmt.Errorf("list revisions of %s: %w", id, err)
				}
				revision.Sort(revs)
				fmt.Fprintf(tw, "%s\t%s\n", id, strings.Join(revs, ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&repoID, "repository", "", "repository id to list (default from settings)")
	cmd.Flags().StringVar(&matcherID, "matcher", matcher.Glob, "matcher for the pattern")
	return cmd
}
