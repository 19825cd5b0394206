package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModule(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ModuleIdentifier
		wantErr bool
	}{
		{"simple", "org.example:core", ModuleIdentifier{"org.example", "core"}, false},
		{"dashes", "com.acme:my-lib_2", ModuleIdentifier{"com.acme", "my-lib_2"}, false},
		{"empty", "", ModuleIdentifier{}, true},
		{"missing name", "org.example", ModuleIdentifier{}, true},
		{"too many parts", "a:b:c", ModuleIdentifier{}, true},
		{"empty group", ":core", ModuleIdentifier{}, true},
		{"spaces", "org example:core", ModuleIdentifier{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModule(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParseModuleVersion(t *testing.T) {
	id, err := ParseModuleVersion("org:a:1.0")
	require.NoError(t, err)
	assert.Equal(t, Module("org", "a").Version("1.0"), id)
	assert.Equal(t, "org:a:1.0", id.String())

	_, err = ParseModuleVersion("org:a:")
	assert.Error(t, err)
	_, err = ParseModuleVersion("org:a")
	assert.Error(t, err)
}

func TestModuleIdentifierIsMapKey(t *testing.T) {
	// Value equality stands in for interning.
	m := map[ModuleIdentifier]int{}
	m[Module("org", "a")]++
	m[MustParseModule("org:a")]++
	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[Module("org", "a")])
}

func TestCapability(t *testing.T) {
	c, err := ParseCapability("org:logging:1.0")
	require.NoError(t, err)
	assert.Equal(t, Module("org", "logging"), c.Key())
	assert.Equal(t, "org:logging:1.0", c.String())

	implicit := ImplicitCapability(MustParseModuleVersion("org:a:2.0"))
	assert.Equal(t, Module("org", "a"), implicit.Key())

	_, err = ParseCapability("nope")
	assert.Error(t, err)
}

func TestMustParseModulePanics(t *testing.T) {
	assert.Panics(t, func() { MustParseModule("INVALID") })
}
