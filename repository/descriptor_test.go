package repository

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

const appDescriptor = `
component(
    group = "org.example",
    name = "app",
    version = "1.0",
    capabilities = ["org.example:logging:1.0"],
    platforms = ["org.example:bom"],
)

dependency("org.example:core:1.+", excludes = ["org.legacy:*"])
dependency(module = "org.example:log", version = "2.0", constraint = True, reject = ["2.0.1"])

variant("runtime", attributes = {"usage": "runtime"})
dependency("org.example:driver:[1.0,2.0)", transitive = False, force = True, reason = "pinned")
dependency("org.example:bom:3.0", platform = True)
dependency("org.example:extra:1.0", optional = True, configuration = "api", attributes = {"os": "linux"})
`

func TestParseDescriptor(t *testing.T) {
	md, err := ParseDescriptor("app.star", []byte(appDescriptor))
	require.NoError(t, err)

	assert.Equal(t, ident.MustParseModuleVersion("org.example:app:1.0"), md.ID)
	assert.Equal(t, []ident.Capability{{Group: "org.example", Name: "logging", Version: "1.0"}}, md.Capabilities)
	assert.Equal(t, []ident.ModuleIdentifier{ident.Module("org.example", "bom")}, md.Platforms)

	require.Len(t, md.Variants, 2)
	def, runtime := md.Variants[0], md.Variants[1]
	assert.Equal(t, engine.DefaultVariantName, def.Name)
	assert.Equal(t, "runtime", runtime.Name)
	assert.Equal(t, engine.Attributes{"usage": "runtime"}, runtime.Attributes)

	require.Len(t, def.Dependencies, 2)
	core := def.Dependencies[0]
	assert.Equal(t, "org.example:core:1.+", core.Selector.String())
	assert.Equal(t, []engine.ExcludeRule{{Group: "org.legacy"}}, core.Excludes)
	assert.Equal(t, engine.KindHard, core.Kind)

	log := def.Dependencies[1]
	assert.Equal(t, engine.KindConstraint, log.Kind)
	assert.Equal(t, []string{"2.0.1"}, log.Selector.Reject)

	require.Len(t, runtime.Dependencies, 3)
	driver := runtime.Dependencies[0]
	assert.Equal(t, "[1.0,2.0)", driver.Selector.Version)
	assert.True(t, driver.Intransitive)
	assert.True(t, driver.Force)
	assert.Equal(t, "pinned", driver.Reason)
	assert.Equal(t, engine.KindPlatform, runtime.Dependencies[1].Kind)

	extra := runtime.Dependencies[2]
	assert.True(t, extra.Optional)
	assert.Equal(t, "api", extra.Configuration)
	assert.Equal(t, engine.Attributes{"os": "linux"}, extra.Attributes)
}

func TestParseDescriptor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"no component", `dependency("org:a:1.0")`, 1},
		{"component twice", "component(group = \"org\", name = \"a\", version = \"1\")\ncomponent(group = \"org\", name = \"b\", version = \"1\")", 2},
		{"missing version", `component(group = "org", name = "a")`, 1},
		{"invalid group", `component(group = "org/x", name = "a", version = "1")`, 1},
		{"dependency without version", "component(group = \"org\", name = \"a\", version = \"1\")\ndependency(\"org:b\")", 2},
		{"invalid exclude", "component(group = \"org\", name = \"a\", version = \"1\")\ndependency(\"org:b:1\", excludes = [\"\"])", 2},
		{"constraint and platform", "component(group = \"org\", name = \"a\", version = \"1\")\ndependency(\"org:b:1\", constraint = True, platform = True)", 2},
		{"duplicate variant", "component(group = \"org\", name = \"a\", version = \"1\")\nvariant(\"x\")\nvariant(\"x\")", 3},
		{"bad capabilities", `component(group = "org", name = "a", version = "1", capabilities = "org:c")`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor("bad.star", []byte(tt.content))
			var de *DescriptorError
			require.True(t, errors.As(err, &de), "expected DescriptorError, got %v", err)
			assert.Equal(t, tt.line, de.Line)
			assert.Equal(t, "bad.star", de.File)
		})
	}

	_, err := ParseDescriptor("syntax.star", []byte(`component(`))
	assert.Error(t, err)
}

func TestFormatDescriptor_RoundTrip(t *testing.T) {
	// Given: a descriptor using every declaration form
	// Expected: formatting and parsing again yields equal metadata
	md, err := ParseDescriptor("app.star", []byte(appDescriptor))
	require.NoError(t, err)

	formatted := FormatDescriptor(md)
	again, err := ParseDescriptor("formatted.star", formatted)
	require.NoError(t, err, "formatted descriptor:\n%s", formatted)
	assert.Equal(t, md, again)
}

func TestParseDescriptorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DescriptorFileName)
	require.NoError(t, os.WriteFile(path, []byte(appDescriptor), 0o644))

	md, err := ParseDescriptorFile(path)
	require.NoError(t, err)
	assert.Equal(t, "org.example:app:1.0", md.ID.String())

	_, err = ParseDescriptorFile(filepath.Join(t.TempDir(), "missing.star"))
	assert.Error(t, err)
}
