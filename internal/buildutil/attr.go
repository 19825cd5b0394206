// Package buildutil provides utilities for extracting attributes from
// buildtools AST nodes.
//
// Component descriptors are Starlark files made of top-level calls such as
// component(...) and dependency(...); the helpers here read the keyword
// arguments of one call.
package buildutil

import (
	"fmt"
	"sort"

	"github.com/bazelbuild/buildtools/build"
)

// attr returns the value assigned to the named keyword argument, or nil.
func attr(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			return assign.RHS
		}
	}
	return nil
}

// Has reports whether the call sets the named keyword argument.
func Has(call *build.CallExpr, name string) bool {
	return attr(call, name) != nil
}

// String extracts a string attribute from a function call by name.
// If name is empty and the call has positional arguments, returns the first
// positional string argument.
// Returns empty string if the attribute is not found or not a string.
func String(call *build.CallExpr, name string) string {
	if name == "" {
		if len(call.List) > 0 {
			if str, ok := call.List[0].(*build.StringExpr); ok {
				return str.Value
			}
		}
		return ""
	}
	if str, ok := attr(call, name).(*build.StringExpr); ok {
		return str.Value
	}
	return ""
}

// Bool extracts a boolean attribute from a function call by name.
// Returns def if the attribute is not found or not True/False.
func Bool(call *build.CallExpr, name string, def bool) bool {
	if id, ok := attr(call, name).(*build.Ident); ok {
		switch id.Name {
		case "True":
			return true
		case "False":
			return false
		}
	}
	return def
}

// StringList extracts a list of strings attribute from a function call by name.
// Returns nil if the attribute is not found, and an error if it is not a
// list of strings.
func StringList(call *build.CallExpr, name string) ([]string, error) {
	expr := attr(call, name)
	if expr == nil {
		return nil, nil
	}
	list, ok := expr.(*build.ListExpr)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list of strings", name)
	}
	result := make([]string, 0, len(list.List))
	for _, elem := range list.List {
		str, ok := elem.(*build.StringExpr)
		if !ok {
			return nil, fmt.Errorf("%s: expected a list of strings", name)
		}
		result = append(result, str.Value)
	}
	return result, nil
}

// StringDict extracts a dict of string keys and string values by name.
// Returns nil if the attribute is not found.
func StringDict(call *build.CallExpr, name string) (map[string]string, error) {
	expr := attr(call, name)
	if expr == nil {
		return nil, nil
	}
	dict, ok := expr.(*build.DictExpr)
	if !ok {
		return nil, fmt.Errorf("%s: expected a dict of strings", name)
	}
	result := make(map[string]string, len(dict.List))
	for _, kv := range dict.List {
		k, kok := kv.Key.(*build.StringExpr)
		v, vok := kv.Value.(*build.StringExpr)
		if !kok || !vok {
			return nil, fmt.Errorf("%s: expected a dict of strings", name)
		}
		result[k.Value] = v.Value
	}
	return result, nil
}

// FuncName returns the function name from a CallExpr.
// Returns empty string if the call is not a simple function call
// (e.g., method calls like foo.bar()).
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}

// Line returns the line the call starts on.
func Line(call *build.CallExpr) int {
	start, _ := call.Span()
	return start.Line
}

// Call builds a call expression with keyword arguments. Arguments whose
// value is nil are skipped.
func Call(name string, args ...Arg) *build.CallExpr {
	call := &build.CallExpr{X: &build.Ident{Name: name}}
	for _, a := range args {
		if a.Value == nil {
			continue
		}
		call.List = append(call.List, &build.AssignExpr{
			LHS: &build.Ident{Name: a.Name},
			Op:  "=",
			RHS: a.Value,
		})
	}
	call.ForceMultiLine = len(call.List) > 2
	return call
}

// Arg is one keyword argument for Call.
type Arg struct {
	Name  string
	Value build.Expr
}

// StringArg returns a string argument, or a skipped one when s is empty.
func StringArg(name, s string) Arg {
	if s == "" {
		return Arg{Name: name}
	}
	return Arg{Name: name, Value: &build.StringExpr{Value: s}}
}

// BoolArg returns a boolean argument, or a skipped one when b equals def.
func BoolArg(name string, b, def bool) Arg {
	if b == def {
		return Arg{Name: name}
	}
	v := "False"
	if b {
		v = "True"
	}
	return Arg{Name: name, Value: &build.Ident{Name: v}}
}

// ListArg returns a list of strings argument, or a skipped one when empty.
func ListArg(name string, items []string) Arg {
	if len(items) == 0 {
		return Arg{Name: name}
	}
	list := &build.ListExpr{}
	for _, s := range items {
		list.List = append(list.List, &build.StringExpr{Value: s})
	}
	return Arg{Name: name, Value: list}
}

// DictArg returns a dict of strings argument with sorted keys, or a skipped
// one when empty.
func DictArg(name string, m map[string]string) Arg {
	if len(m) == 0 {
		return Arg{Name: name}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dict := &build.DictExpr{}
	for _, k := range keys {
		dict.List = append(dict.List, &build.KeyValueExpr{
			Key:   &build.StringExpr{Value: k},
			Value: &build.StringExpr{Value: m[k]},
		})
	}
	return Arg{Name: name, Value: dict}
}
