// Command depgraph resolves component dependency graphs.
//
// Usage:
//
//	depgraph resolve [descriptor] [--format text|json|dot|list]
//	depgraph explain <group:name> [descriptor]
//	depgraph lock [descriptor] [--check]
//	depgraph diff <old-descriptor> <new-descriptor>
//	depgraph config show
//
// Repositories and resolution settings are read from depgraph.toml in the
// working directory, DEPGRAPH_* environment variables and flags.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(Version+" ("+Commit+")"),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
