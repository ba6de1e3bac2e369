package main

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-depot/settings"
)

// app holds the state shared by every command.
type app struct {
	settingsFile string
	verbose      bool

	settings *settings.Settings
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "depot",
		Short: "Resolve and install module dependencies across repositories",
		Long: `depot resolves module descriptors against configured repositories,
keeps what has been resolved for the rest of the session and installs
modules, with their dependencies, from one repository into another.

Repositories, the cache directory and report outputters are read from a
settings file (YAML, TOML or JSON) given with --settings. Every setting
can be overridden with a DEPOT_ prefixed environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
			return a.loadSettings()
		},
	}

	root.PersistentFlags().StringVarP(&a.settingsFile, "settings", "s", "", "settings file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInstallCmd(a))
	root.AddCommand(newResolveCmd(a))
	root.AddCommand(newFixDepsCmd(a))
	root.AddCommand(newGraphCmd(a))
	root.AddCommand(newListCmd(a))
	return root
}

// newLogger returns a slog logger writing through charmbracelet/log.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "depot",
		Level:  level,
	})
	return slog.New(handler)
}

func (a *app) loadSettings() error {
	if a.settingsFile == "" {
		s, err := settings.New()
		if err != nil {
			return err
		}
		a.settings = s
		return nil
	}
	s, err := settings.Load(a.settingsFile)
	if err != nil {
		return err
	}
	a.settings = s
	return nil
}
