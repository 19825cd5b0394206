package main

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	cfgFile string
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "depgraph",
		Short: "Resolve component dependency graphs",
		Long: `depgraph resolves the dependency graph of a component described by a
component.star descriptor: one version per module, conflicts resolved,
exclusions applied and virtual platforms aligned.

Examples:
  depgraph resolve                     Resolve ./component.star
  depgraph resolve --format dot        Print the graph for graphviz
  depgraph explain org.example:core    Explain the version of a module
  depgraph lock                        Write depgraph.lock
  depgraph diff old.star new.star      Compare two resolutions`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = newLogger(a.verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./"+ConfigFileName+")")

	cmd.AddCommand(
		newResolveCmd(a),
		newExplainCmd(a),
		newLockCmd(a),
		newDiffCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// newLogger returns a slog logger writing through charmbracelet/log.
func newLogger(verbose bool) *slog.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "depgraph",
		Level:           level,
		ReportTimestamp: verbose,
	})
	return slog.New(handler)
}
