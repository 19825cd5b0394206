package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/albertocavalcante/go-depgraph"
	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/repository"
	"github.com/albertocavalcante/go-depgraph/version"
)

// ConfigFileName is the config file looked up in the working directory
// when --config is not given.
const ConfigFileName = "depgraph.toml"

// Config is the resolution configuration of the CLI. It is read from the
// config file, DEPGRAPH_* environment variables and flags, in increasing
// priority.
type Config struct {
	// Repositories are local directories or http(s) URLs, in priority order.
	Repositories []string `mapstructure:"repositories" toml:"repositories"`

	// Attributes are the consumer attributes used to select variants.
	Attributes map[string]string `mapstructure:"attributes" toml:"attributes,omitempty"`

	// Variant is the variant of the root component to resolve.
	Variant string `mapstructure:"variant" toml:"variant,omitempty"`

	Semver           bool `mapstructure:"semver" toml:"semver"`
	FailOnConflict   bool `mapstructure:"fail_on_conflict" toml:"fail_on_conflict"`
	MaxParallelFetch int  `mapstructure:"max_parallel_fetch" toml:"max_parallel_fetch,omitempty"`

	// Prefer maps a capability to the module that provides it when several
	// modules do.
	Prefer map[string]string `mapstructure:"prefer" toml:"prefer,omitempty"`

	// Substitute maps a module to its replacement, "group:name" or
	// "group:name:version".
	Substitute map[string]string `mapstructure:"substitute" toml:"substitute,omitempty"`

	// Cache keeps fetched descriptors in memory for the duration of the run.
	Cache bool `mapstructure:"cache" toml:"cache"`
}

// DefaultConfig returns the configuration used without config file.
func DefaultConfig() Config {
	return Config{Repositories: []string{"repository"}}
}

// addResolveFlags registers the flags overriding config values.
func addResolveFlags(fs *pflag.FlagSet) {
	fs.StringSliceP("repository", "r", nil, "repository directory or URL (repeatable)")
	fs.StringToString("attribute", nil, "consumer attribute key=value (repeatable)")
	fs.String("variant", "", "variant of the root component")
	fs.Bool("semver", false, "order versions by semantic versioning")
	fs.Bool("fail-on-conflict", false, "fail on any version conflict")
	fs.Int("parallel", 0, "maximum concurrent metadata fetches")
}

// loadConfig merges defaults, the config file, environment and flags.
func loadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("repositories", defaults.Repositories)
	v.SetDefault("semver", defaults.Semver)
	v.SetDefault("fail_on_conflict", defaults.FailOnConflict)
	v.SetDefault("cache", defaults.Cache)

	v.SetEnvPrefix("DEPGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".toml"))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		bindings := map[string]string{
			"repositories":       "repository",
			"attributes":         "attribute",
			"variant":            "variant",
			"semver":             "semver",
			"fail_on_conflict":   "fail-on-conflict",
			"max_parallel_fetch": "parallel",
		}
		for key, name := range bindings {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Repositories) == 0 {
		return nil, errors.New("no repository configured")
	}
	return &cfg, nil
}

// repositories opens the configured repositories.
func (c *Config) repositories(logger *slog.Logger) []repository.Repository {
	compare := version.Compare
	if c.Semver {
		compare = version.SemverCompare
	}
	opts := []repository.Option{repository.WithComparator(compare), repository.WithLogger(logger)}

	repos := make([]repository.Repository, 0, len(c.Repositories))
	for _, loc := range c.Repositories {
		if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
			repos = append(repos, repository.NewRemote(loc, opts...))
			continue
		}
		repos = append(repos, repository.NewLocal(loc, opts...))
	}
	return repos
}

// options converts the configuration to resolution options.
func (c *Config) options(logger *slog.Logger) ([]depgraph.Option, error) {
	opts := []depgraph.Option{
		depgraph.WithRepositories(c.repositories(logger)...),
		depgraph.WithLogger(logger),
		depgraph.WithAttributes(c.Attributes),
		depgraph.WithVariant(c.Variant),
		depgraph.WithMaxParallelFetch(c.MaxParallelFetch),
	}
	if c.Semver {
		opts = append(opts, depgraph.WithSemverOrdering())
	}
	if c.FailOnConflict {
		opts = append(opts, depgraph.WithFailOnVersionConflict())
	}
	if c.Cache {
		opts = append(opts, depgraph.WithCache(repository.NewMemoryCache()))
	}

	var rules []engine.CapabilityResolver
	for _, capability := range sortedKeys(c.Prefer) {
		module := c.Prefer[capability]
		capID, err := ident.ParseModule(capability)
		if err != nil {
			return nil, fmt.Errorf("prefer: %w", err)
		}
		modID, err := ident.ParseModule(module)
		if err != nil {
			return nil, fmt.Errorf("prefer %s: %w", capability, err)
		}
		rules = append(rules, engine.PreferModule{Capability: capID, Module: modID})
	}
	if len(rules) > 0 {
		opts = append(opts, depgraph.WithCapabilityRules(rules...))
	}

	for _, from := range sortedKeys(c.Substitute) {
		to := c.Substitute[from]
		fromID, err := ident.ParseModule(from)
		if err != nil {
			return nil, fmt.Errorf("substitute: %w", err)
		}
		group, rest, _ := strings.Cut(to, ":")
		name, v, _ := strings.Cut(rest, ":")
		toID, err := ident.NewModule(group, name)
		if err != nil {
			return nil, fmt.Errorf("substitute %s: %w", from, err)
		}
		opts = append(opts, depgraph.WithSubstitution(depgraph.SubstituteModule(fromID, toID, v)))
	}
	return opts, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return writeTOML(cmd.OutOrStdout(), cfg)
		},
	}
	addResolveFlags(show.Flags())
	cmd.AddCommand(show)
	return cmd
}

func writeTOML(w io.Writer, cfg *Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(cfg)
}
