package depgraph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/lockfile"
	"github.com/albertocavalcante/go-depgraph/repository"
)

// newRepo returns a memory repository holding the given descriptors.
func newRepo(t *testing.T, descriptors ...string) *repository.Memory {
	t.Helper()
	repo := repository.NewMemory("test")
	for _, d := range descriptors {
		_, err := repo.AddDescriptor(d)
		require.NoError(t, err)
	}
	return repo
}

// standardRepo:
//
//	core:1.1 -> log:1.0
//	core:1.2 -> log:1.0
//	log:1.0, log:2.0
var standardDescriptors = []string{
	`component(group = "org", name = "core", version = "1.1")
dependency("org:log:1.0")`,
	`component(group = "org", name = "core", version = "1.2")
dependency("org:log:1.0")`,
	`component(group = "org", name = "log", version = "1.0")`,
	`component(group = "org", name = "log", version = "2.0")`,
}

const appDescriptor = `
component(group = "org", name = "app", version = "1.0")
dependency("org:core:1.1")
dependency("org:log:2.0")
`

func selectedVersion(t *testing.T, r *Result, module string) string {
	t.Helper()
	n := r.Graph.GetByModule(ident.MustParseModule(module))
	if n == nil {
		return ""
	}
	return n.Key.Version
}

func TestResolveDescriptor(t *testing.T) {
	// Given:
	//   app -> core:1.1 -> log:1.0
	//       -> log:2.0
	// Expected: log:2.0 wins the conflict
	repo := newRepo(t, standardDescriptors...)

	result, err := ResolveDescriptor(context.Background(), appDescriptor, WithRepositories(repo))
	require.NoError(t, err)

	assert.Equal(t, "org:app:1.0", result.Graph.Root.String())
	assert.Equal(t, "1.1", selectedVersion(t, result, "org:core"))
	assert.Equal(t, "2.0", selectedVersion(t, result, "org:log"))
	assert.False(t, result.Engine.HasFailures())

	explanation, err := result.Graph.Explain(ident.MustParseModule("org:log"))
	require.NoError(t, err)
	assert.Equal(t, "conflict_resolution", string(explanation.Selection.Strategy))
}

func TestResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), repository.DescriptorFileName)
	require.NoError(t, os.WriteFile(path, []byte(appDescriptor), 0o644))

	result, err := ResolveFile(context.Background(), path, WithRepositories(newRepo(t, standardDescriptors...)))
	require.NoError(t, err)
	assert.Len(t, result.Graph.Modules, 3)

	_, err = ResolveFile(context.Background(), filepath.Join(t.TempDir(), "missing.star"))
	assert.Error(t, err)
}

func TestResolve_InvalidInput(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	root := &engine.ComponentMetadata{ID: ident.MustParseModuleVersion("org:app:1.0")}

	tests := []struct {
		name string
		root *engine.ComponentMetadata
		opts []Option
		want error
	}{
		{"no root", nil, []Option{WithRepositories(repo)}, ErrNoRoot},
		{"no repository", root, nil, ErrNoRepository},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(ctx, tt.root, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Resolve(ctx, root, WithRepositories(repo), WithFailOnVersionConflict(),
		WithConflictResolver(engine.LatestResolver{}))
	assert.Error(t, err)

	_, err = Resolve(ctx, root, WithRepositories(repo), WithMaxParallelFetch(-1))
	assert.Error(t, err)

	_, err = Resolve(ctx, root, WithRepositories(nil))
	assert.Error(t, err)

	_, err = ResolveDescriptor(ctx, `dependency("org:a:1.0")`, WithRepositories(repo))
	assert.Error(t, err)
}

func TestResolve_MissingModule(t *testing.T) {
	// Given: a dependency no repository knows
	// Expected: the partial result and an error matching ErrModuleNotFound
	repo := newRepo(t, standardDescriptors...)
	result, err := ResolveDescriptor(context.Background(), `
component(group = "org", name = "app", version = "1.0")
dependency("org:core:1.1")
dependency("org:missing:1.0")
`, WithRepositories(repo))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModuleNotFound)
	var re *engine.ResolveError
	assert.ErrorAs(t, err, &re)

	require.NotNil(t, result)
	assert.True(t, result.Engine.HasFailures())
	assert.Equal(t, "1.1", selectedVersion(t, result, "org:core"))
	assert.NotEmpty(t, result.Graph.Failures)
}

func TestResolve_FailOnVersionConflict(t *testing.T) {
	repo := newRepo(t, standardDescriptors...)
	result, err := ResolveDescriptor(context.Background(), appDescriptor,
		WithRepositories(repo), WithFailOnVersionConflict())

	var vc *engine.VersionConflictFailure
	require.ErrorAs(t, err, &vc)
	assert.Equal(t, ident.MustParseModule("org:log"), vc.Module)
	assert.ErrorIs(t, err, engine.ErrVersionConflict)
	require.NotNil(t, result)
}

func TestResolve_SemverOrdering(t *testing.T) {
	// Given:
	//   app -> a:1.0 -> lib:1.0.0-dev
	//       -> b:1.0 -> lib:1.0.0-alpha
	// Expected: "dev" ranks lowest by default, but above "alpha" by semver
	repo := newRepo(t,
		`component(group = "org", name = "a", version = "1.0")
dependency("org:lib:1.0.0-dev")`,
		`component(group = "org", name = "b", version = "1.0")
dependency("org:lib:1.0.0-alpha")`,
		`component(group = "org", name = "lib", version = "1.0.0-dev")`,
		`component(group = "org", name = "lib", version = "1.0.0-alpha")`,
	)
	app := `
component(group = "org", name = "app", version = "1.0")
dependency("org:a:1.0")
dependency("org:b:1.0")
`
	result, err := ResolveDescriptor(context.Background(), app, WithRepositories(repo))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-alpha", selectedVersion(t, result, "org:lib"))

	result, err = ResolveDescriptor(context.Background(), app, WithRepositories(repo), WithSemverOrdering())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-dev", selectedVersion(t, result, "org:lib"))
}

func TestResolve_CapabilityRules(t *testing.T) {
	// Given: reload4j declares the capability of log4j, app depends on both
	// Expected: a conflict without rules, reload4j with a PreferModule rule
	repo := newRepo(t,
		`component(group = "org", name = "log4j", version = "1.2")`,
		`component(group = "org", name = "reload4j", version = "1.2", capabilities = ["org:log4j:1.2"])`,
	)
	app := `
component(group = "org", name = "app", version = "1.0")
dependency("org:log4j:1.2")
dependency("org:reload4j:1.2")
`
	_, err := ResolveDescriptor(context.Background(), app, WithRepositories(repo))
	var cf *engine.CapabilityConflictFailure
	require.ErrorAs(t, err, &cf)

	result, err := ResolveDescriptor(context.Background(), app, WithRepositories(repo),
		WithCapabilityRules(engine.PreferModule{
			Capability: ident.Module("org", "log4j"),
			Module:     ident.Module("org", "reload4j"),
		}))
	require.NoError(t, err)
	assert.True(t, result.Graph.ContainsModule(ident.Module("org", "reload4j")))
	assert.False(t, result.Graph.ContainsModule(ident.Module("org", "log4j")))
}

func TestResolve_Substitution(t *testing.T) {
	repo := newRepo(t, standardDescriptors...)
	app := `
component(group = "org", name = "app", version = "1.0")
dependency("org:legacy-log:0.9")
`
	result, err := ResolveDescriptor(context.Background(), app, WithRepositories(repo),
		WithSubstitution(SubstituteModule(ident.Module("org", "legacy-log"), ident.Module("org", "log"), "2.0")))
	require.NoError(t, err)
	assert.Equal(t, "2.0", selectedVersion(t, result, "org:log"))
	assert.False(t, result.Graph.ContainsModule(ident.Module("org", "legacy-log")))
}

func TestSubstituteModule(t *testing.T) {
	rule := SubstituteModule(ident.Module("org", "a"), ident.Module("org", "b"), "")
	sel := engine.ComponentSelector{Module: ident.Module("org", "a"), Version: "1.+", Reject: []string{"1.1"}}

	got, ok := rule(sel)
	require.True(t, ok)
	assert.Equal(t, "org:b:1.+ !{1.1}", got.String())

	_, ok = rule(engine.ComponentSelector{Module: ident.Module("org", "c"), Version: "1.0"})
	assert.False(t, ok)
}

func TestResolve_EdgeFilters(t *testing.T) {
	// Given: a constraint that upgrades log
	// Expected: filtering constraints out keeps log at the hard version
	repo := newRepo(t, standardDescriptors...)
	app := `
component(group = "org", name = "app", version = "1.0")
dependency("org:core:1.1")
dependency("org:log:2.0", constraint = True)
`
	result, err := ResolveDescriptor(context.Background(), app, WithRepositories(repo))
	require.NoError(t, err)
	assert.Equal(t, "2.0", selectedVersion(t, result, "org:log"))

	result, err = ResolveDescriptor(context.Background(), app, WithRepositories(repo),
		WithoutDependencyKinds(engine.KindConstraint))
	require.NoError(t, err)
	assert.Equal(t, "1.0", selectedVersion(t, result, "org:log"))

	result, err = ResolveDescriptor(context.Background(), app, WithRepositories(repo),
		WithEdgeFilter(func(d *engine.DependencyMetadata) bool { return d.Selector.Module.Name != "core" }))
	require.NoError(t, err)
	assert.False(t, result.Graph.ContainsModule(ident.Module("org", "core")))
	// Nothing requires log any more, so the constraint is not added.
	assert.False(t, result.Graph.ContainsModule(ident.Module("org", "log")))

	_, err = Resolve(context.Background(), &engine.ComponentMetadata{}, WithRepositories(repo), WithEdgeFilter(nil))
	assert.Error(t, err)
}

func TestResolve_Variants(t *testing.T) {
	repo := newRepo(t, standardDescriptors...)
	app := `
component(group = "org", name = "app", version = "1.0")
dependency("org:core:1.1")
variant("test", attributes = {"usage": "test"})
dependency("org:log:2.0")
`
	result, err := ResolveDescriptor(context.Background(), app, WithRepositories(repo))
	require.NoError(t, err)
	assert.Equal(t, "1.0", selectedVersion(t, result, "org:log"))

	result, err = ResolveDescriptor(context.Background(), app, WithRepositories(repo),
		WithVariant("test"), WithAttributes(map[string]string{"usage": "test"}))
	require.NoError(t, err)
	assert.Equal(t, "2.0", selectedVersion(t, result, "org:log"))
	assert.False(t, result.Graph.ContainsModule(ident.Module("org", "core")))
}

func TestResolve_ChainAndCache(t *testing.T) {
	// Given: core in one repository, log in another, a shared cache
	// Expected: both found through the chain, fetched metadata cached
	cores := newRepo(t, standardDescriptors[:2]...)
	logs := newRepo(t, standardDescriptors[2:]...)
	cache := repository.NewMemoryCache()

	result, err := ResolveDescriptor(context.Background(), appDescriptor,
		WithRepositories(cores, logs), WithCache(cache), WithMaxParallelFetch(2))
	require.NoError(t, err)
	assert.Equal(t, "2.0", selectedVersion(t, result, "org:log"))
	assert.Positive(t, cache.Len())
}

func TestResolve_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := newRepo(t, standardDescriptors...)

	_, err := ResolveDescriptor(context.Background(), appDescriptor, WithRepositories(repo), WithMetrics(reg))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "depgraph_resolutions_total")
	assert.Contains(t, names, "depgraph_conflicts_total")

	// Collectors can only be registered once per registry.
	_, err = ResolveDescriptor(context.Background(), appDescriptor, WithRepositories(repo), WithMetrics(reg))
	assert.Error(t, err)
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ResolveDescriptor(ctx, appDescriptor, WithRepositories(newRepo(t, standardDescriptors...)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, standardDescriptors...)
	app := `
component(group = "org", name = "app", version = "1.0")
dependency("org:core:1.+")
`
	result, err := ResolveDescriptor(ctx, app, WithRepositories(repo))
	require.NoError(t, err)
	require.Equal(t, "1.2", selectedVersion(t, result, "org:core"))

	lf, err := Lock(result)
	require.NoError(t, err)
	assert.Equal(t, "org:app:1.0", lf.Root)
	assert.Len(t, lf.Modules, 2)
	core, ok := lf.Get(ident.Module("org", "core"))
	require.True(t, ok)
	assert.Equal(t, "1.2", core.Version)
	assert.NotEmpty(t, core.Hash)
	require.NoError(t, VerifyLock(result, lf))

	t.Run("locked versions win over newer ones", func(t *testing.T) {
		// Given: core:1.3 published after locking
		// Expected: the locked 1.2 is kept, and unlocked resolution picks 1.3
		_, err := repo.AddDescriptor(`component(group = "org", name = "core", version = "1.3")`)
		require.NoError(t, err)

		locked, err := ResolveDescriptor(ctx, app, WithRepositories(repo), WithLockedVersions(lf))
		require.NoError(t, err)
		assert.Equal(t, "1.2", selectedVersion(t, locked, "org:core"))

		unlocked, err := ResolveDescriptor(ctx, app, WithRepositories(repo))
		require.NoError(t, err)
		assert.Equal(t, "1.3", selectedVersion(t, unlocked, "org:core"))
	})

	t.Run("locked modules no longer required are not added", func(t *testing.T) {
		extra := lockfile.New()
		extra.Lock(ident.MustParseModuleVersion("org:log:2.0"), nil)
		extra.Lock(ident.MustParseModuleVersion("org:app:0.1"), nil)

		r, err := ResolveDescriptor(ctx, `component(group = "org", name = "app", version = "1.0")`,
			WithRepositories(repo), WithLockedVersions(extra))
		require.NoError(t, err)
		assert.Len(t, r.Graph.Modules, 1)
		assert.Equal(t, "org:app:1.0", r.Graph.Root.String())
	})

	t.Run("tampered hash", func(t *testing.T) {
		tampered := lockfile.New()
		tampered.Modules["org:core"] = lockfile.Entry{Version: "1.2", Hash: lockfile.HashContent([]byte("other"))}
		assert.Error(t, VerifyLock(result, tampered))
	})

	t.Run("failed resolution", func(t *testing.T) {
		failed, err := ResolveDescriptor(ctx, `
component(group = "org", name = "app", version = "1.0")
dependency("org:missing:1.0")
`, WithRepositories(repo))
		require.Error(t, err)
		_, err = Lock(failed)
		assert.Error(t, err)

		_, err = Lock(nil)
		assert.True(t, errors.Is(err, ErrNoRoot))
	})

	t.Run("missing result", func(t *testing.T) {
		// Given: no result, or a result without an engine graph
		// Expected: VerifyLock reports ErrNoRoot instead of panicking
		assert.ErrorIs(t, VerifyLock(nil, lf), ErrNoRoot)
		assert.ErrorIs(t, VerifyLock(&Result{}, lf), ErrNoRoot)
	})
}
