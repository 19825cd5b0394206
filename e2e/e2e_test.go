package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depgraph"
	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/graph"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/lockfile"
	"github.com/albertocavalcante/go-depgraph/repository"
)

// published is the repository shared by all scenarios.
var published = []string{
	`component(group = "org.example", name = "log", version = "1.4")`,
	`component(group = "org.example", name = "log", version = "2.1")`,
	`component(group = "org.example", name = "core", version = "1.0")
dependency("org.example:log:2.1")`,
	`component(group = "org.example", name = "web", version = "3.0")
dependency("org.example:log:1.4")
dependency("org.example:json-core:1.0")`,
	`component(group = "org.example", name = "json-core", version = "1.0", platforms = ["org.example:json-platform"])`,
	`component(group = "org.example", name = "json-core", version = "1.1", platforms = ["org.example:json-platform"])`,
	`component(group = "org.example", name = "json-bind", version = "1.1", platforms = ["org.example:json-platform"])`,
	`component(group = "org.example", name = "slf-simple", version = "1.0", capabilities = ["org.example:slf-binding:1.0"])`,
	`component(group = "org.example", name = "slf-fancy", version = "2.0", capabilities = ["org.example:slf-binding:2.0"])`,
}

// publish writes the components into dir in the repository layout, with a
// versions.json index per module so the tree can be served over HTTP.
func publish(t *testing.T, dir string) {
	t.Helper()
	local := repository.NewLocal(dir)
	index := make(map[ident.ModuleIdentifier][]string)
	for i, d := range published {
		md, err := repository.ParseDescriptor("published", []byte(d))
		require.NoError(t, err, "descriptor %d", i)
		require.NoError(t, local.Publish(md))
		index[md.ID.Module] = append(index[md.ID.Module], md.ID.Version)
	}
	for m, versions := range index {
		data, err := json.Marshal(repository.ModuleIndex{Versions: versions})
		require.NoError(t, err)
		path := filepath.Join(dir, m.Group, m.Name, repository.ModuleIndexFileName)
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
}

// repositories returns the local repository and the same tree behind an
// HTTP server.
func repositories(t *testing.T) map[string]repository.Repository {
	t.Helper()
	dir := t.TempDir()
	publish(t, dir)
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)
	return map[string]repository.Repository{
		"local":  repository.NewLocal(dir),
		"remote": repository.NewRemote(srv.URL),
	}
}

// flatten lists the selected components of a graph, root excluded.
func flatten(g *graph.Graph) []string {
	var out []string
	for _, m := range g.ToModuleList() {
		out = append(out, m.Module+":"+m.Version)
	}
	sort.Strings(out)
	return out
}

func resolveTree(t *testing.T, repo repository.Repository, descriptor string, opts ...depgraph.Option) ([]string, *depgraph.Result) {
	t.Helper()
	opts = append([]depgraph.Option{depgraph.WithRepositories(repo)}, opts...)
	result, err := depgraph.ResolveDescriptor(context.Background(), descriptor, opts...)
	require.NoError(t, err)

	data, err := result.Graph.ToJSON()
	require.NoError(t, err)
	var tree graph.TreeJSON
	require.NoError(t, json.Unmarshal(data, &tree))
	require.Equal(t, result.Graph.Root.String(), tree.Key)
	return flatten(result.Graph), result
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		opts       []depgraph.Option
		expected   []string
	}{
		{
			name: "highest version wins",
			descriptor: `component(group = "org.example", name = "app", version = "1.0")
dependency("org.example:web:3.0")
dependency("org.example:core:1.0")`,
			expected: []string{
				"org.example:core:1.0",
				"org.example:json-core:1.0",
				"org.example:json-platform:1.0",
				"org.example:log:2.1",
				"org.example:web:3.0",
			},
		},
		{
			name: "forced dependency wins",
			descriptor: `component(group = "org.example", name = "app", version = "1.0")
dependency("org.example:core:1.0")
dependency("org.example:log:1.4", force = True)`,
			expected: []string{
				"org.example:core:1.0",
				"org.example:log:1.4",
			},
		},
		{
			name: "exclusion removes the transitive module",
			descriptor: `component(group = "org.example", name = "app", version = "1.0")
dependency("org.example:web:3.0", excludes = ["org.example:log"])`,
			expected: []string{
				"org.example:json-core:1.0",
				"org.example:json-platform:1.0",
				"org.example:web:3.0",
			},
		},
		{
			name: "platform aligns members",
			descriptor: `component(group = "org.example", name = "app", version = "1.0")
dependency("org.example:web:3.0")
dependency("org.example:json-bind:1.1")`,
			expected: []string{
				"org.example:json-bind:1.1",
				"org.example:json-core:1.1",
				"org.example:json-platform:1.1",
				"org.example:log:1.4",
				"org.example:web:3.0",
			},
		},
		{
			name: "capability conflict selects the highest capability version",
			descriptor: `component(group = "org.example", name = "app", version = "1.0")
dependency("org.example:slf-simple:1.0")
dependency("org.example:slf-fancy:2.0")`,
			opts: []depgraph.Option{depgraph.WithCapabilityRules(engine.PreferHighestVersion{
				Capability: ident.Module("org.example", "slf-binding"),
			})},
			expected: []string{
				"org.example:slf-fancy:2.0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(map[string][]string)
			for name, repo := range repositories(t) {
				modules, _ := resolveTree(t, repo, tt.descriptor, tt.opts...)
				results[name] = modules
			}
			assert.Equal(t, tt.expected, results["local"])
			assert.Equal(t, results["local"], results["remote"], "local and remote repositories disagree")
		})
	}
}

func TestLockAcrossRepositories(t *testing.T) {
	// Given: a lockfile written from the local repository
	// Expected: it verifies and pins the same graph against the remote one
	repos := repositories(t)
	descriptor := `component(group = "org.example", name = "app", version = "1.0")
dependency("org.example:web:3.0")
dependency("org.example:core:1.0")`

	_, localResult := resolveTree(t, repos["local"], descriptor)
	lf, err := depgraph.Lock(localResult)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), lockfile.DefaultFileName)
	require.NoError(t, lf.WriteFile(path))
	lf, err = lockfile.ReadFile(path)
	require.NoError(t, err)

	modules, remoteResult := resolveTree(t, repos["remote"], descriptor, depgraph.WithLockedVersions(lf))
	require.NoError(t, depgraph.VerifyLock(remoteResult, lf))
	assert.Contains(t, modules, "org.example:log:2.1")

	diff := depgraph.DiffResults(localResult, remoteResult)
	assert.True(t, diff.IsEmpty(), diff.Summary())
}
