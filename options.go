package depgraph

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/lockfile"
	"github.com/albertocavalcante/go-depgraph/repository"
	"github.com/albertocavalcante/go-depgraph/version"
)

// Option configures resolution behavior.
type Option func(*resolverConfig) error

// resolverConfig holds all resolution configuration.
type resolverConfig struct {
	repositories     []repository.Repository
	cache            repository.MetadataCache
	conflictResolver engine.VersionConflictResolver
	failOnConflict   bool
	semver           bool
	capabilityRules  engine.CapabilityRules
	substitutions    []engine.SubstitutionRule
	edgeFilters      []engine.EdgeFilter
	attributes       engine.Attributes
	variant          string
	maxParallelFetch int
	locked           *lockfile.Lockfile
	metrics          *engine.Metrics

	// logger is the structured logger for debug output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithRepositories sets the repositories components are resolved from, in
// priority order. At least one is required.
func WithRepositories(repos ...repository.Repository) Option {
	return func(c *resolverConfig) error {
		for _, r := range repos {
			if r == nil {
				return errors.New("nil repository")
			}
		}
		c.repositories = append(c.repositories, repos...)
		return nil
	}
}

// WithCache caches component metadata fetched from the repositories.
func WithCache(cache repository.MetadataCache) Option {
	return func(c *resolverConfig) error {
		c.cache = cache
		return nil
	}
}

// WithConflictResolver sets how module version conflicts are settled. The
// default selects the highest version.
func WithConflictResolver(r engine.VersionConflictResolver) Option {
	return func(c *resolverConfig) error {
		c.conflictResolver = r
		return nil
	}
}

// WithFailOnVersionConflict reports every module version conflict as a
// failure instead of selecting the highest version.
func WithFailOnVersionConflict() Option {
	return func(c *resolverConfig) error {
		c.failOnConflict = true
		return nil
	}
}

// WithSemverOrdering orders versions with semantic versioning rules, so
// pre-releases rank below their release.
func WithSemverOrdering() Option {
	return func(c *resolverConfig) error {
		c.semver = true
		return nil
	}
}

// WithCapabilityRules adds rules settling capability conflicts. Rules are
// tried in order. Without a matching rule a capability conflict fails.
func WithCapabilityRules(rules ...engine.CapabilityResolver) Option {
	return func(c *resolverConfig) error {
		c.capabilityRules = append(c.capabilityRules, rules...)
		return nil
	}
}

// WithSubstitution adds selector substitution rules, applied in order.
func WithSubstitution(rules ...engine.SubstitutionRule) Option {
	return func(c *resolverConfig) error {
		c.substitutions = append(c.substitutions, rules...)
		return nil
	}
}

// WithEdgeFilter discards every dependency the filter rejects. Several
// filters must all accept a dependency.
func WithEdgeFilter(f engine.EdgeFilter) Option {
	return func(c *resolverConfig) error {
		if f == nil {
			return errors.New("nil edge filter")
		}
		c.edgeFilters = append(c.edgeFilters, f)
		return nil
	}
}

// WithoutDependencyKinds discards dependencies of the given kinds.
func WithoutDependencyKinds(kinds ...engine.DependencyKind) Option {
	return WithEdgeFilter(func(d *engine.DependencyMetadata) bool {
		for _, k := range kinds {
			if d.Kind == k {
				return false
			}
		}
		return true
	})
}

// WithAttributes sets the consumer attributes used to select variants.
func WithAttributes(attrs map[string]string) Option {
	return func(c *resolverConfig) error {
		if c.attributes == nil {
			c.attributes = make(engine.Attributes, len(attrs))
		}
		for k, v := range attrs {
			c.attributes[k] = v
		}
		return nil
	}
}

// WithVariant resolves the named variant of the root component.
func WithVariant(name string) Option {
	return func(c *resolverConfig) error {
		c.variant = name
		return nil
	}
}

// WithMaxParallelFetch bounds the number of concurrent metadata fetches.
func WithMaxParallelFetch(n int) Option {
	return func(c *resolverConfig) error {
		c.maxParallelFetch = n
		return nil
	}
}

// WithLockedVersions pins every module found in the lockfile to its locked
// version. Locked modules that are no longer required are not added.
func WithLockedVersions(lf *lockfile.Lockfile) Option {
	return func(c *resolverConfig) error {
		c.locked = lf
		return nil
	}
}

// WithMetrics registers the resolution metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *resolverConfig) error {
		m, err := engine.NewMetrics(reg)
		if err != nil {
			return err
		}
		c.metrics = m
		return nil
	}
}

// WithLogger sets a structured logger for resolution diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "depgraph")
//	Resolve(ctx, root, WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *resolverConfig) error {
		c.logger = l
		return nil
	}
}

// SubstituteModule returns a rule replacing every request for from with a
// request for to at the given version. An empty version keeps the
// requested one.
func SubstituteModule(from, to ident.ModuleIdentifier, v string) engine.SubstitutionRule {
	return func(sel engine.ComponentSelector) (engine.ComponentSelector, bool) {
		if sel.Module != from {
			return sel, false
		}
		out := engine.ComponentSelector{Module: to, Version: sel.Version, Reject: sel.Reject}
		if v != "" {
			out.Version = v
			out.Reject = nil
		}
		return out, true
	}
}

// validate checks the configuration for logical consistency.
func (c *resolverConfig) validate() error {
	if len(c.repositories) == 0 {
		return ErrNoRepository
	}
	if c.failOnConflict && c.conflictResolver != nil {
		return errors.New("WithFailOnVersionConflict and WithConflictResolver are exclusive")
	}
	if c.maxParallelFetch < 0 {
		return errors.New("max parallel fetch must not be negative")
	}
	return nil
}

// log returns the configured logger, or a no-op logger if none was set.
func (c *resolverConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

// newResolverConfig creates a new resolver configuration by applying
// the given options and validating the result.
func newResolverConfig(opts ...Option) (*resolverConfig, error) {
	c := &resolverConfig{}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// repository composes the configured repositories and cache.
func (c *resolverConfig) repository() (repository.Repository, error) {
	var repo repository.Repository
	if len(c.repositories) == 1 {
		repo = c.repositories[0]
	} else {
		chain, err := repository.NewChain(c.repositories...)
		if err != nil {
			return nil, err
		}
		repo = chain
	}
	if c.cache != nil {
		repo = repository.NewCached(repo, c.cache, repository.WithLogger(c.log()))
	}
	return repo, nil
}

// engineConfig converts the options to the engine configuration.
func (c *resolverConfig) engineConfig(repo repository.Repository) engine.Config {
	cfg := engine.Config{
		IDResolver:       repo,
		MetadataResolver: repo,
		ConflictResolver: c.conflictResolver,
		Substitutions:    c.substitutions,
		Attributes:       c.attributes,
		RootVariant:      c.variant,
		MaxParallelFetch: c.maxParallelFetch,
		Logger:           c.log(),
		Metrics:          c.metrics,
	}

	if c.semver {
		cfg.Comparator = version.SemverCompare
		if cfg.ConflictResolver == nil {
			cfg.ConflictResolver = engine.SemverLatestResolver{}
		}
	}
	if c.failOnConflict {
		cfg.ConflictResolver = engine.FailOnConflictResolver{}
	}
	if len(c.capabilityRules) > 0 {
		cfg.CapabilityResolver = c.capabilityRules
	}

	if filters := c.edgeFilters; len(filters) > 0 {
		cfg.EdgeFilter = func(d *engine.DependencyMetadata) bool {
			for _, f := range filters {
				if !f(d) {
					return false
				}
			}
			return true
		}
	}
	return cfg
}
