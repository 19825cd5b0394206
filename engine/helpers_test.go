package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// fakeRepo is an in-memory IDResolver and MetadataResolver.
type fakeRepo struct {
	mu         sync.Mutex
	components map[ident.ModuleVersionIdentifier]*ComponentMetadata
	versions   map[ident.ModuleIdentifier][]string
	fetches    map[ident.ModuleVersionIdentifier]int
	delays     map[ident.ModuleVersionIdentifier]time.Duration
	cheap      bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		components: make(map[ident.ModuleVersionIdentifier]*ComponentMetadata),
		versions:   make(map[ident.ModuleIdentifier][]string),
		fetches:    make(map[ident.ModuleVersionIdentifier]int),
		delays:     make(map[ident.ModuleVersionIdentifier]time.Duration),
		cheap:      true,
	}
}

func (r *fakeRepo) add(md *ComponentMetadata) *ComponentMetadata {
	r.components[md.ID] = md
	r.versions[md.ID.Module] = append(r.versions[md.ID.Module], md.ID.Version)
	return md
}

func (r *fakeRepo) ResolveID(_ context.Context, sel ComponentSelector) (ident.ModuleVersionIdentifier, error) {
	versions, ok := r.versions[sel.Module]
	if !ok {
		return ident.ModuleVersionIdentifier{}, fmt.Errorf("module %s: %w", sel.Module, ErrNotFound)
	}
	vs, err := version.ParseSelector(sel.Version)
	if err != nil {
		return ident.ModuleVersionIdentifier{}, err
	}
	var rejects []version.Selector
	for _, rj := range sel.Reject {
		rejects = append(rejects, version.MustParseSelector(rj))
	}
	best := version.Highest(vs, versions, rejects, nil)
	if best == "" {
		return ident.ModuleVersionIdentifier{}, fmt.Errorf("no version of %s matches %s: %w", sel.Module, sel.Version, ErrNotFound)
	}
	return sel.Module.Version(best), nil
}

func (r *fakeRepo) ResolveMetadata(_ context.Context, id ident.ModuleVersionIdentifier) (*ComponentMetadata, error) {
	if d := r.delays[id]; d > 0 {
		time.Sleep(d)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[id]++
	md, ok := r.components[id]
	if !ok {
		return nil, fmt.Errorf("component %s: %w", id, ErrNotFound)
	}
	return md, nil
}

func (r *fakeRepo) IsFetchingMetadataCheap(ident.ModuleVersionIdentifier) bool { return r.cheap }

func (r *fakeRepo) fetchCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches[ident.MustParseModuleVersion(id)]
}

// component builds metadata with a single default variant.
func component(id string, deps ...DependencyMetadata) *ComponentMetadata {
	return &ComponentMetadata{
		ID:       ident.MustParseModuleVersion(id),
		Variants: []*VariantMetadata{{Name: DefaultVariantName, Dependencies: deps}},
	}
}

// dep parses "group:name:version".
func dep(s string) DependencyMetadata {
	id := ident.MustParseModuleVersion(s)
	return DependencyMetadata{Selector: ComponentSelector{Module: id.Module, Version: id.Version}}
}

func constraint(s string) DependencyMetadata {
	d := dep(s)
	d.Kind = KindConstraint
	return d
}

func forced(s string) DependencyMetadata {
	d := dep(s)
	d.Force = true
	return d
}

func excluding(d DependencyMetadata, rules ...string) DependencyMetadata {
	for _, s := range rules {
		r, _ := ParseExcludeRule(s)
		d.Excludes = append(d.Excludes, r)
	}
	return d
}

func resolve(t *testing.T, repo *fakeRepo, root *ComponentMetadata, mutate ...func(*Config)) (*Result, error) {
	t.Helper()
	cfg := Config{IDResolver: repo, MetadataResolver: repo}
	for _, m := range mutate {
		m(&cfg)
	}
	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	return b.Resolve(context.Background(), root, nil)
}

// resolveWithin resolves like resolve but gives up after d, so a
// resolution that never settles fails the test instead of hanging it.
func resolveWithin(t *testing.T, d time.Duration, repo *fakeRepo, root *ComponentMetadata, mutate ...func(*Config)) (*Result, error) {
	t.Helper()
	cfg := Config{IDResolver: repo, MetadataResolver: repo}
	for _, m := range mutate {
		m(&cfg)
	}
	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	r, err := b.Resolve(ctx, root, nil)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "resolution did not terminate")
	return r, err
}

// selected returns "group:name:version" of the components in the graph,
// root excluded.
func selected(r *Result) []string {
	var out []string
	for _, c := range r.Components() {
		if !c.IsRoot() {
			out = append(out, c.ID().String())
		}
	}
	return out
}

func selectedVersion(r *Result, module string) string {
	m := r.Module(ident.MustParseModule(module))
	if m == nil || m.Selected() == nil {
		return ""
	}
	return m.Selected().Version()
}

// edges renders the outgoing edges of the graph as "from -> to".
func edges(r *Result) []string {
	var out []string
	for _, n := range r.Nodes() {
		for _, e := range n.Outgoing() {
			for _, t := range e.TargetNodes() {
				out = append(out, n.ID().String()+" -> "+t.ID().String())
			}
		}
	}
	return out
}

func countEdges(r *Result, from, to string) int {
	n := 0
	for _, e := range edges(r) {
		if e == from+" -> "+to {
			n++
		}
	}
	return n
}

func hasPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
