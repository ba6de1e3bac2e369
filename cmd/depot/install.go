package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-depot/cache"
	"github.com/albertocavalcante/go-depot/install"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/settings"
)

func newInstallCmd(a *app) *cobra.Command {
	var (
		req   install.Request
		types string
	)
	cmd := &cobra.Command{
		Use:   "install <org#name;rev>",
		Short: "Install modules from one repository into another",
		Long: `Install copies every module matching the coordinate, and with
--transitive its dependencies, from the --from repository into the --to
repository. The coordinate parts are matched with --matcher; with the
exact matcher "*" matches anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := module.ParseRevisionID(args[0])
			if err != nil {
				return err
			}
			if req.From == "" {
				return settings.MissingParameter("from")
			}
			if req.To == "" {
				return settings.MissingParameter("to")
			}
			req.Coordinate = coord
			req.Filter = cache.ParseTypes(types)

			e, err := install.New(a.settings, install.WithLogger(a.logger))
			if err != nil {
				return err
			}
			r, err := e.Install(cmd.Context(), req)
			if err != nil {
				return err
			}
			printInstall(cmd.OutOrStdout(), r)
			if n := len(r.PublishFailures()); n > 0 {
				return fmt.Errorf("%d of %d modules could not be installed", n, len(r.Published))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.From, "from", "", "source repository id")
	flags.StringVar(&req.To, "to", "", "destination repository id")
	flags.BoolVar(&req.Transitive, "transitive", false, "install dependencies too")
	flags.BoolVar(&req.Validate, "validate", true, "validate descriptors while resolving")
	flags.BoolVar(&req.Overwrite, "overwrite", false, "replace modules already in the destination")
	flags.StringVar(&req.MatcherID, "matcher", "", "matcher for the coordinate (default from settings)")
	flags.StringVar(&req.CacheDir, "cache", "", "cache directory (default from settings)")
	flags.StringVar(&types, "types", "", "comma separated artifact types to install (default all)")
	return cmd
}

func printInstall(w io.Writer, r *report.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()
	fmt.Fprintln(tw, "MODULE\tARTIFACTS\tSTATUS")
	for _, n := range r.FailedNodes() {
		fmt.Fprintf(tw, "%s\t-\tunresolved: %v\n", n.Revision, n.Err())
	}
	for _, p := range r.Published {
		status := "installed"
		if p.Err != nil {
			status = p.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Revision, p.Artifacts, status)
	}
}
