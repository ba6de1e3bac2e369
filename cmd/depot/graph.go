package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-depot/graph"
	"github.com/albertocavalcante/go-depot/module"
)

// Graph output formats.
const (
	formatText = "text"
	formatDOT  = "dot"
	formatJSON = "json"
)

func newGraphCmd(a *app) *cobra.Command {
	f := &resolveFlags{}
	var format, explain string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the resolved dependency graph of a module descriptor",
		Long: `Resolve the module descriptor and print its dependency graph.

With --explain, print which revisions of the named module were reached,
who requested them and which one conflict management kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var id module.ID
			if explain != "" {
				org, name, ok := strings.Cut(explain, "#")
				if !ok || org == "" || name == "" {
					return fmt.Errorf("invalid module %q: expected org#name", explain)
				}
				id = module.NewID(org, name)
			}

			s, err := a.newSession(f)
			if err != nil {
				return err
			}
			if _, err := s.EnsureResolved(cmd.Context(), f.opts); err != nil {
				return err
			}
			entry, ok := s.Entry(f.opts.Organization, f.opts.Module, false)
			if !ok || entry.Report == nil {
				return fmt.Errorf("no resolution recorded for %s", f.file)
			}
			g := graph.Build(entry.Report)

			out := cmd.OutOrStdout()
			if explain != "" {
				text, err := g.ToExplainText(id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, text)
				return err
			}

			switch format {
			case formatText:
				_, err = fmt.Fprint(out, g.ToText())
			case formatDOT:
				_, err = fmt.Fprint(out, g.ToDOT())
			case formatJSON:
				var data []byte
				if data, err = g.ToJSON(); err == nil {
					_, err = fmt.Fprintln(out, string(data))
				}
			default:
				err = fmt.Errorf("unknown format %q: expected %s, %s or %s", format, formatText, formatDOT, formatJSON)
			}
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "output format: text, dot or json")
	cmd.Flags().StringVar(&explain, "explain", "", "explain the revisions of org#name")
	return cmd
}
