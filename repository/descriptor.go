package repository

import (
	"fmt"
	"os"
	"strings"

	"github.com/bazelbuild/buildtools/build"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/internal/buildutil"
)

// DescriptorFileName is the name of the descriptor of one component version
// in a local repository.
const DescriptorFileName = "component.star"

// DescriptorError reports an invalid declaration in a descriptor.
type DescriptorError struct {
	File string
	Line int
	Err  error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }

// ParseDescriptorFile reads and parses a descriptor from disk.
func ParseDescriptorFile(path string) (*engine.ComponentMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return ParseDescriptor(path, data)
}

// ParseDescriptor parses a component descriptor:
//
//	component(group = "org.example", name = "app", version = "1.0",
//	          capabilities = ["org.example:logging:1.0"], platforms = ["org.example:bom"])
//	dependency("org.example:core:1.+", excludes = ["org.legacy:*"])
//	variant("runtime", attributes = {"usage": "runtime"})
//	dependency(module = "org.example:log", version = "[1.0,2.0)", constraint = True)
//
// Dependencies belong to the last declared variant, or to the implicit
// default variant when none was declared before them.
func ParseDescriptor(filename string, data []byte) (*engine.ComponentMetadata, error) {
	f, err := build.ParseDefault(filename, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	p := &descriptorParser{file: filename}
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			continue
		}
		var err error
		switch buildutil.FuncName(call) {
		case "component":
			err = p.component(call)
		case "variant":
			err = p.variant(call)
		case "dependency":
			err = p.dependency(call)
		}
		if err != nil {
			return nil, &DescriptorError{File: filename, Line: buildutil.Line(call), Err: err}
		}
	}

	if p.md == nil {
		return nil, &DescriptorError{File: filename, Line: 1, Err: fmt.Errorf("no component() declaration")}
	}
	p.md.Variants = p.variants
	return p.md, nil
}

type descriptorParser struct {
	file     string
	md       *engine.ComponentMetadata
	variants []*engine.VariantMetadata
	current  *engine.VariantMetadata
}

func (p *descriptorParser) component(call *build.CallExpr) error {
	if p.md != nil {
		return fmt.Errorf("component() declared twice")
	}
	m, err := ident.NewModule(buildutil.String(call, "group"), buildutil.String(call, "name"))
	if err != nil {
		return err
	}
	v := buildutil.String(call, "version")
	if v == "" {
		return fmt.Errorf("component %s: version is required", m)
	}
	md := &engine.ComponentMetadata{ID: m.Version(v)}

	caps, err := buildutil.StringList(call, "capabilities")
	if err != nil {
		return err
	}
	for _, s := range caps {
		c, err := ident.ParseCapability(s)
		if err != nil {
			return err
		}
		md.Capabilities = append(md.Capabilities, c)
	}

	platforms, err := buildutil.StringList(call, "platforms")
	if err != nil {
		return err
	}
	for _, s := range platforms {
		pm, err := ident.ParseModule(s)
		if err != nil {
			return fmt.Errorf("platform: %w", err)
		}
		md.Platforms = append(md.Platforms, pm)
	}

	p.md = md
	return nil
}

func (p *descriptorParser) variant(call *build.CallExpr) error {
	name := buildutil.String(call, "name")
	if name == "" {
		name = buildutil.String(call, "")
	}
	if name == "" {
		return fmt.Errorf("variant: name is required")
	}
	for _, v := range p.variants {
		if v.Name == name {
			return fmt.Errorf("variant %q declared twice", name)
		}
	}
	attrs, err := buildutil.StringDict(call, "attributes")
	if err != nil {
		return err
	}
	excludes, err := excludeRules(call)
	if err != nil {
		return err
	}
	p.current = &engine.VariantMetadata{Name: name, Attributes: attrs, Excludes: excludes}
	p.variants = append(p.variants, p.current)
	return nil
}

func (p *descriptorParser) dependency(call *build.CallExpr) error {
	sel, err := dependencySelector(call)
	if err != nil {
		return err
	}
	dep := engine.DependencyMetadata{
		Selector:      sel,
		Intransitive:  !buildutil.Bool(call, "transitive", true),
		Force:         buildutil.Bool(call, "force", false),
		Optional:      buildutil.Bool(call, "optional", false),
		Configuration: buildutil.String(call, "configuration"),
		Reason:        buildutil.String(call, "reason"),
	}

	constraint := buildutil.Bool(call, "constraint", false)
	platform := buildutil.Bool(call, "platform", false)
	switch {
	case constraint && platform:
		return fmt.Errorf("dependency %s: constraint and platform are exclusive", sel.Module)
	case constraint:
		dep.Kind = engine.KindConstraint
	case platform:
		dep.Kind = engine.KindPlatform
	}

	if dep.Attributes, err = buildutil.StringDict(call, "attributes"); err != nil {
		return err
	}
	if dep.Excludes, err = excludeRules(call); err != nil {
		return err
	}

	if p.current == nil {
		p.current = &engine.VariantMetadata{Name: engine.DefaultVariantName}
		p.variants = append(p.variants, p.current)
	}
	p.current.Dependencies = append(p.current.Dependencies, dep)
	return nil
}

// dependencySelector reads either the positional "group:name[:version]"
// coordinates or the module and version keywords.
func dependencySelector(call *build.CallExpr) (engine.ComponentSelector, error) {
	var sel engine.ComponentSelector
	coords := buildutil.String(call, "")
	if coords == "" {
		coords = buildutil.String(call, "module")
	}
	group, rest, _ := strings.Cut(coords, ":")
	name, v, hasVersion := strings.Cut(rest, ":")
	m, err := ident.NewModule(group, name)
	if err != nil {
		return sel, fmt.Errorf("dependency %q: %w", coords, err)
	}
	if !hasVersion {
		v = buildutil.String(call, "version")
	}
	if v == "" {
		return sel, fmt.Errorf("dependency %s: version is required", m)
	}
	reject, err := buildutil.StringList(call, "reject")
	if err != nil {
		return sel, err
	}
	return engine.ComponentSelector{Module: m, Version: v, Reject: reject}, nil
}

func excludeRules(call *build.CallExpr) ([]engine.ExcludeRule, error) {
	raw, err := buildutil.StringList(call, "excludes")
	if err != nil {
		return nil, err
	}
	var rules []engine.ExcludeRule
	for _, s := range raw {
		r, ok := engine.ParseExcludeRule(s)
		if !ok {
			return nil, fmt.Errorf("invalid exclude %q", s)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// FormatDescriptor renders metadata as a descriptor that ParseDescriptor
// reads back to equal metadata.
func FormatDescriptor(md *engine.ComponentMetadata) []byte {
	f := &build.File{Type: build.TypeDefault}

	caps := make([]string, len(md.Capabilities))
	for i, c := range md.Capabilities {
		caps[i] = c.String()
	}
	platforms := make([]string, len(md.Platforms))
	for i, pm := range md.Platforms {
		platforms[i] = pm.String()
	}
	f.Stmt = append(f.Stmt, buildutil.Call("component",
		buildutil.StringArg("group", md.ID.Module.Group),
		buildutil.StringArg("name", md.ID.Module.Name),
		buildutil.StringArg("version", md.ID.Version),
		buildutil.ListArg("capabilities", caps),
		buildutil.ListArg("platforms", platforms),
	))

	for i, v := range md.Variants {
		// A leading default variant without attributes is implicit.
		implicit := i == 0 && v.Name == engine.DefaultVariantName && len(v.Attributes) == 0 && len(v.Excludes) == 0
		if !implicit {
			f.Stmt = append(f.Stmt, buildutil.Call("variant",
				buildutil.StringArg("name", v.Name),
				buildutil.DictArg("attributes", v.Attributes),
				buildutil.ListArg("excludes", ruleStrings(v.Excludes)),
			))
		}
		for _, d := range v.Dependencies {
			f.Stmt = append(f.Stmt, formatDependency(d))
		}
	}
	return build.Format(f)
}

func formatDependency(d engine.DependencyMetadata) *build.CallExpr {
	return buildutil.Call("dependency",
		buildutil.StringArg("module", d.Selector.Module.String()),
		buildutil.StringArg("version", d.Selector.Version),
		buildutil.BoolArg("constraint", d.Kind == engine.KindConstraint, false),
		buildutil.BoolArg("platform", d.Kind == engine.KindPlatform, false),
		buildutil.BoolArg("transitive", !d.Intransitive, true),
		buildutil.BoolArg("force", d.Force, false),
		buildutil.BoolArg("optional", d.Optional, false),
		buildutil.StringArg("configuration", d.Configuration),
		buildutil.DictArg("attributes", d.Attributes),
		buildutil.ListArg("excludes", ruleStrings(d.Excludes)),
		buildutil.ListArg("reject", d.Selector.Reject),
		buildutil.StringArg("reason", d.Reason),
	)
}

func ruleStrings(rules []engine.ExcludeRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}
