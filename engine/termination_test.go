package engine

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomGraph builds a repository of six modules with versions 1.0 to 3.0
// whose components depend on random modules, cycles and self references
// included. One request in four is the range [1.0,3.0], so compatible
// selections and version conflicts both occur.
func randomGraph(seed uint64) (*fakeRepo, *ComponentMetadata) {
	rng := rand.New(rand.NewPCG(seed, seed*31+7))
	modules := []string{"a", "b", "c", "d", "e", "f"}
	versions := []string{"1.0", "2.0", "3.0"}
	pick := func() DependencyMetadata {
		v := versions[rng.IntN(len(versions))]
		if rng.IntN(4) == 0 {
			v = "[1.0,3.0]"
		}
		return dep("org:" + modules[rng.IntN(len(modules))] + ":" + v)
	}

	repo := newFakeRepo()
	for _, m := range modules {
		for _, v := range versions {
			var deps []DependencyMetadata
			for range rng.IntN(4) {
				deps = append(deps, pick())
			}
			repo.add(component("org:"+m+":"+v, deps...))
		}
	}
	var direct []DependencyMetadata
	for range 1 + rng.IntN(3) {
		direct = append(direct, pick())
	}
	return repo, component("org:root:1.0", direct...)
}

func TestRandomGraphsSettle(t *testing.T) {
	for seed := range uint64(60) {
		repo, root := randomGraph(seed)

		r, _ := resolveWithin(t, 5*time.Second, repo, root)
		require.NotNil(t, r, "seed %d", seed)
		for _, m := range r.Modules() {
			n := 0
			for _, c := range m.AllVersions() {
				if c.State() == Selected {
					n++
				}
			}
			assert.LessOrEqual(t, n, 1, "seed %d module %s", seed, m)
		}
		want := edges(r)

		// The same graph fetched in parallel, with fetch times varying per
		// component, attaches the same edges in the same order.
		repo.cheap = false
		rng := rand.New(rand.NewPCG(seed, 1))
		for id := range repo.components {
			repo.delays[id] = time.Duration(rng.IntN(3)) * time.Millisecond
		}
		r, _ = resolveWithin(t, 5*time.Second, repo, root, func(c *Config) { c.MaxParallelFetch = 4 })
		require.NotNil(t, r, "seed %d", seed)
		assert.Equal(t, want, edges(r), "seed %d", seed)
	}
}
