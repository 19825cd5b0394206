package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-depgraph"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/lockfile"
	"github.com/albertocavalcante/go-depgraph/repository"
)

// descriptorArg returns the descriptor path at args[i], or the default.
func descriptorArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return repository.DescriptorFileName
}

// resolveRequest describes one resolution of a command.
type resolveRequest struct {
	descriptor  string
	locked      bool
	metricsFile string
}

// resolve runs a resolution with the effective configuration. A result is
// returned with resolution failures so the partial graph can be printed.
func (a *app) resolve(cmd *cobra.Command, req resolveRequest) (*depgraph.Result, error) {
	cfg, err := loadConfig(a.cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	opts, err := cfg.options(a.logger)
	if err != nil {
		return nil, err
	}

	if req.locked {
		path := lockfile.DefaultPath(req.descriptor)
		if lockfile.Exists(path) {
			lf, err := lockfile.ReadFile(path)
			if err != nil {
				return nil, err
			}
			a.logger.Debug("using lockfile", "path", path, "modules", len(lf.Modules))
			opts = append(opts, depgraph.WithLockedVersions(lf))
		}
	}

	var reg *prometheus.Registry
	if req.metricsFile != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, depgraph.WithMetrics(reg))
	}

	result, err := depgraph.ResolveFile(cmd.Context(), req.descriptor, opts...)
	if reg != nil {
		if werr := prometheus.WriteToTextfile(req.metricsFile, reg); werr != nil {
			a.logger.Warn("failed to write metrics", "path", req.metricsFile, "error", werr)
		}
	}
	return result, err
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		format      string
		locked      bool
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "resolve [descriptor]",
		Short: "Resolve and print the dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.resolve(cmd, resolveRequest{
				descriptor:  descriptorArg(args, 0),
				locked:      locked,
				metricsFile: metricsFile,
			})
			if result == nil {
				return err
			}
			if werr := writeGraph(cmd.OutOrStdout(), result, format); werr != nil {
				return werr
			}
			return err
		},
	}
	addResolveFlags(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, dot or list")
	cmd.Flags().BoolVar(&locked, "locked", false, "pin versions from the lockfile next to the descriptor")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write resolution metrics in Prometheus text format")
	return cmd
}

func writeGraph(w io.Writer, result *depgraph.Result, format string) error {
	g := result.Graph
	switch format {
	case "text":
		_, err := io.WriteString(w, g.ToText())
		return err
	case "json":
		data, err := g.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "dot":
		_, err := io.WriteString(w, g.ToDOT())
		return err
	case "list":
		for _, m := range g.ToModuleList() {
			if _, err := fmt.Fprintf(w, "%s:%s\n", m.Module, m.Version); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func newExplainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <group:name> [descriptor]",
		Short: "Explain why a module is at its selected version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := ident.ParseModule(args[0])
			if err != nil {
				return err
			}
			result, err := a.resolve(cmd, resolveRequest{descriptor: descriptorArg(args, 1)})
			if result == nil {
				return err
			}
			text, xerr := result.Graph.ToExplainText(module)
			if xerr != nil {
				return errors.Join(xerr, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	addResolveFlags(cmd.Flags())
	return cmd
}

func newLockCmd(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "lock [descriptor]",
		Short: "Write the selected versions to depgraph.lock",
		Long: `Resolve the descriptor and record the selected version of every module
in depgraph.lock next to it. With --check, compare against the existing
lockfile instead and fail when it is out of date.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor := descriptorArg(args, 0)
			result, err := a.resolve(cmd, resolveRequest{descriptor: descriptor})
			if err != nil {
				return err
			}
			lf, err := depgraph.Lock(result)
			if err != nil {
				return err
			}

			path := lockfile.DefaultPath(descriptor)
			existing := lockfile.New()
			if lockfile.Exists(path) {
				if existing, err = lockfile.ReadFile(path); err != nil {
					return err
				}
			}
			diff := existing.Diff(lf)

			out := cmd.OutOrStdout()
			if check {
				if !diff.IsEmpty() {
					fmt.Fprint(out, diff.Summary())
					return fmt.Errorf("%s is out of date", path)
				}
				fmt.Fprintf(out, "%s is up to date\n", path)
				return nil
			}

			if err := lf.WriteFile(path); err != nil {
				return err
			}
			if !diff.IsEmpty() {
				fmt.Fprint(out, diff.Summary())
			}
			fmt.Fprintf(out, "wrote %s (%d modules)\n", path, len(lf.Modules))
			return nil
		},
	}
	addResolveFlags(cmd.Flags())
	cmd.Flags().BoolVar(&check, "check", false, "fail if the lockfile is out of date")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old-descriptor> <new-descriptor>",
		Short: "Compare the resolutions of two descriptors",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results [2]*depgraph.Result
			for i, path := range args {
				r, err := a.resolve(cmd, resolveRequest{descriptor: path})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = r
			}
			diff := depgraph.DiffResults(results[0], results[1])
			fmt.Fprint(cmd.OutOrStdout(), strings.TrimSuffix(diff.Summary(), "\n")+"\n")
			return nil
		},
	}
	addResolveFlags(cmd.Flags())
	return cmd
}
