package buildutil

import (
	"testing"

	"github.com/bazelbuild/buildtools/build"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCall(t *testing.T, content string) *build.CallExpr {
	t.Helper()
	f, err := build.ParseDefault("test.star", []byte(content))
	require.NoError(t, err)
	require.NotEmpty(t, f.Stmt, "no statements parsed")
	call, ok := f.Stmt[0].(*build.CallExpr)
	require.True(t, ok, "expected CallExpr, got %T", f.Stmt[0])
	return call
}

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		attrName string
		want     string
	}{
		{"named string attribute", `foo(name = "bar")`, "name", "bar"},
		{"missing attribute", `foo(other = "value")`, "name", ""},
		{"non-string attribute", `foo(name = 123)`, "name", ""},
		{"first positional when name empty", `foo("positional")`, "", "positional"},
		{"empty call with empty name", `foo()`, "", ""},
		{"multiple attributes", `foo(a = "first", b = "second", c = "third")`, "b", "second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(parseCall(t, tt.input), tt.attrName))
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"true", `foo(flag = True)`, false, true},
		{"false overrides default", `foo(flag = False)`, true, false},
		{"missing uses default", `foo()`, true, true},
		{"non-bool uses default", `foo(flag = "yes")`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bool(parseCall(t, tt.input), "flag", tt.def))
		})
	}
}

func TestStringList(t *testing.T) {
	got, err := StringList(parseCall(t, `foo(items = ["a", "b"])`), "items")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = StringList(parseCall(t, `foo()`), "items")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = StringList(parseCall(t, `foo(items = "a")`), "items")
	assert.Error(t, err)

	_, err = StringList(parseCall(t, `foo(items = ["a", 1])`), "items")
	assert.Error(t, err)
}

func TestStringDict(t *testing.T) {
	got, err := StringDict(parseCall(t, `foo(attrs = {"usage": "runtime", "os": "linux"})`), "attrs")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"usage": "runtime", "os": "linux"}, got)

	got, err = StringDict(parseCall(t, `foo()`), "attrs")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = StringDict(parseCall(t, `foo(attrs = {"usage": True})`), "attrs")
	assert.Error(t, err)
}

func TestFuncNameAndLine(t *testing.T) {
	call := parseCall(t, "\n\ndependency(module = \"org:a\")")
	assert.Equal(t, "dependency", FuncName(call))
	assert.Equal(t, 3, Line(call))
	assert.True(t, Has(call, "module"))
	assert.False(t, Has(call, "version"))

	assert.Empty(t, FuncName(parseCall(t, `native.foo()`)))
}

func TestCall(t *testing.T) {
	call := Call("dependency",
		StringArg("module", "org:a"),
		StringArg("version", ""),
		BoolArg("transitive", false, true),
		BoolArg("force", false, false),
		ListArg("excludes", []string{"org:b"}),
		DictArg("attributes", map[string]string{"z": "1", "a": "2"}),
	)

	f := &build.File{Type: build.TypeDefault, Stmt: []build.Expr{call}}
	parsed, err := build.ParseDefault("out.star", build.Format(f))
	require.NoError(t, err)
	require.Len(t, parsed.Stmt, 1)

	got := parsed.Stmt[0].(*build.CallExpr)
	assert.Equal(t, "org:a", String(got, "module"))
	assert.False(t, Has(got, "version"))
	assert.False(t, Has(got, "force"))
	assert.False(t, Bool(got, "transitive", true))
	attrs, err := StringDict(got, "attributes")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "z": "1"}, attrs)
}
