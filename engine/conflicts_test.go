package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depgraph/ident"
)

func candidate(id string, caps ...ident.Capability) *ComponentState {
	mvi := ident.MustParseModuleVersion(id)
	return &ComponentState{id: mvi, metadata: &ComponentMetadata{ID: mvi, Capabilities: caps}}
}

func TestVersionConflictResolvers(t *testing.T) {
	cands := ConflictCandidates{
		Module: ident.Module("org", "a"),
		Candidates: []*ComponentState{
			candidate("org:a:1.0.0-rc.1"),
			candidate("org:a:1.10.0"),
			candidate("org:a:1.9.0"),
		},
	}

	got, err := LatestResolver{}.Select(cands)
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", got.Version())

	got, err = SemverLatestResolver{}.Select(cands)
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", got.Version())

	_, err = FailOnConflictResolver{}.Select(cands)
	assert.ErrorIs(t, err, ErrVersionConflict)

	assert.Equal(t, []string{"1.0.0-rc.1", "1.10.0", "1.9.0"}, cands.Versions())
}

func TestCapabilityRules(t *testing.T) {
	key := ident.Module("org", "logging")
	f := candidate("org:f:1.0", ident.Capability{Group: "org", Name: "logging", Version: "3.0"})
	g := candidate("org:g:2.0", ident.Capability{Group: "org", Name: "logging"})
	conflict := CapabilityConflict{Capability: key, Candidates: []*ComponentState{f, g}}

	tests := []struct {
		name  string
		rules CapabilityRules
		want  *ComponentState
	}{
		{"no rules", nil, nil},
		{"prefer module", CapabilityRules{PreferModule{Capability: key, Module: ident.Module("org", "g")}}, g},
		{"rule for another capability", CapabilityRules{PreferModule{Capability: ident.Module("x", "y"), Module: ident.Module("org", "g")}}, nil},
		{"highest declared version", CapabilityRules{PreferHighestVersion{Capability: key}}, f},
		{"first matching rule wins", CapabilityRules{
			PreferModule{Capability: ident.Module("x", "y"), Module: ident.Module("org", "g")},
			PreferHighestVersion{},
		}, f},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rules.Resolve(conflict)
			assert.Equal(t, tt.want != nil, ok)
			assert.Same(t, tt.want, got)
		})
	}
}
