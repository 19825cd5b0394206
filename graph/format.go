package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
)

const separatorWidth = 60 // Width of separator lines in text output

// TreeJSON is the JSON form of the graph: a tree rooted at the root
// component in which every component is expanded once.
type TreeJSON struct {
	Key          string           `json:"key"`
	Module       string           `json:"module"`
	Version      string           `json:"version"`
	Dependencies []DependencyJSON `json:"dependencies,omitempty"`
	Failures     []string         `json:"failures,omitempty"`
}

// DependencyJSON is one dependency in TreeJSON.
type DependencyJSON struct {
	Key          string           `json:"key"`
	Requested    string           `json:"requested,omitempty"`
	Reasons      []string         `json:"reasons,omitempty"`
	Dependencies []DependencyJSON `json:"dependencies,omitempty"`
	Cycles       []DependencyJSON `json:"cycles,omitempty"`
	Unexpanded   bool             `json:"unexpanded,omitempty"`
}

// ToJSON outputs the graph as an indented JSON tree.
func (g *Graph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g.toTree(), "", "  ")
}

func (g *Graph) toTree() *TreeJSON {
	rootNode := g.Modules[g.Root]
	if rootNode == nil {
		return &TreeJSON{}
	}

	cycleKeys := make(map[Key]bool)
	for _, cycle := range g.FindCycles() {
		for _, key := range cycle {
			cycleKeys[key] = true
		}
	}

	visited := map[Key]bool{g.Root: true}
	return &TreeJSON{
		Key:          g.Root.String(),
		Module:       g.Root.Module.String(),
		Version:      g.Root.Version,
		Dependencies: g.buildTreeDeps(rootNode, visited, cycleKeys),
		Failures:     g.Failures,
	}
}

func (g *Graph) buildTreeDeps(node *Node, visited, cycleKeys map[Key]bool) []DependencyJSON {
	deps := make([]DependencyJSON, 0, len(node.Dependencies))

	for _, depKey := range node.Dependencies {
		dep := DependencyJSON{Key: depKey.String()}
		depNode := g.Modules[depKey]
		if depNode != nil {
			dep.Requested = depNode.RequestedVersions[node.Key]
		}

		if visited[depKey] {
			dep.Unexpanded = true
			deps = append(deps, dep)
			continue
		}
		visited[depKey] = true

		if depNode != nil && depNode.Selection != nil {
			dep.Reasons = depNode.Selection.Reasons
		}
		if cycleKeys[depKey] {
			dep.Cycles = []DependencyJSON{{Key: depKey.String()}}
		} else if depNode != nil {
			dep.Dependencies = g.buildTreeDeps(depNode, visited, cycleKeys)
		}

		deps = append(deps, dep)
	}

	return deps
}

// ToDOT outputs the graph in Graphviz DOT format.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	for _, key := range g.order {
		node := g.Modules[key]
		label := fmt.Sprintf("%s\\n%s", key.Module, key.Version)
		attrs := fmt.Sprintf(`label="%s"`, label) //nolint:gocritic // DOT format requires this quote style
		if node.IsRoot {
			attrs += ", style=bold"
		}
		if node.VirtualPlatform {
			attrs += ", style=dashed"
		}
		if len(node.Failures) > 0 {
			attrs += ", color=red"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", key.String(), attrs)
	}

	buf.WriteString("\n")

	for _, key := range g.order {
		for _, dep := range g.Modules[key].Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", key.String(), dep.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable text representation of the graph.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dependency Graph (root: %s)\n", g.Root)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	fmt.Fprintf(&buf, "Total modules: %d\n", stats.TotalModules)
	fmt.Fprintf(&buf, "Direct dependencies: %d\n", stats.DirectDependencies)
	fmt.Fprintf(&buf, "Transitive dependencies: %d\n", stats.TransitiveDependencies)
	fmt.Fprintf(&buf, "Max depth: %d\n", stats.MaxDepth)
	if stats.VirtualPlatforms > 0 {
		fmt.Fprintf(&buf, "Virtual platforms: %d\n", stats.VirtualPlatforms)
	}
	buf.WriteString("\n")

	buf.WriteString("Dependency Tree:\n")
	g.printTree(&buf, g.Root, "", true, make(map[Key]bool))

	if len(g.Failures) > 0 {
		buf.WriteString("\nFailures:\n")
		for _, f := range g.Failures {
			fmt.Fprintf(&buf, "  - %s\n", strings.ReplaceAll(f, "\n", "\n    "))
		}
	}

	return buf.String()
}

func (g *Graph) printTree(buf *bytes.Buffer, key Key, prefix string, isLast bool, visited map[Key]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if prefix == "" && key == g.Root {
		buf.WriteString(key.String())
	} else {
		buf.WriteString(prefix + connector + key.String())
	}

	node := g.Modules[key]
	if node != nil && node.VirtualPlatform {
		buf.WriteString(" (platform)")
	}

	if visited[key] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")

	visited[key] = true
	defer func() { visited[key] = false }()

	if node == nil {
		return
	}

	for i, dep := range node.Dependencies {
		childPrefix := prefix
		if key != g.Root || prefix != "" {
			if isLast {
				childPrefix += "    "
			} else {
				childPrefix += "│   "
			}
		}
		g.printTree(buf, dep, childPrefix, i == len(node.Dependencies)-1, visited)
	}
}

// ToExplainText outputs a human-readable explanation for a specific module.
func (g *Graph) ToExplainText(module ident.ModuleIdentifier) (string, error) {
	explanation, err := g.Explain(module)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Explanation for: %s\n", explanation.Module)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	if sel := explanation.Selection; sel != nil {
		buf.WriteString("Version Selection:\n")
		fmt.Fprintf(&buf, "  Selected version: %s\n", sel.SelectedVersion)
		fmt.Fprintf(&buf, "  Strategy: %s\n", sel.Strategy)
		fmt.Fprintf(&buf, "  Deciding factor: %s\n", sel.DecidingFactor)

		if len(sel.Reasons) > 0 {
			buf.WriteString("\n  Reasons:\n")
			for _, r := range sel.Reasons {
				fmt.Fprintf(&buf, "    - %s\n", r)
			}
		}

		if len(sel.Candidates) > 0 {
			buf.WriteString("\n  Candidates considered:\n")
			for _, c := range sel.Candidates {
				status := "  "
				if c.Selected {
					status = "✓ "
				}
				requesters := make([]string, len(c.RequestedBy))
				for i, r := range c.RequestedBy {
					requesters[i] = r.String()
				}
				fmt.Fprintf(&buf, "    %s%s - requested by: %s\n",
					status, c.Version, strings.Join(requesters, ", "))
				if !c.Selected && c.RejectionReason != "" {
					fmt.Fprintf(&buf, "      Reason not selected: %s\n", c.RejectionReason)
				}
			}
		}
	}

	if len(explanation.DependencyChains) > 0 {
		buf.WriteString("\nDependency Chains (paths from root):\n")
		for i, chain := range explanation.DependencyChains {
			fmt.Fprintf(&buf, "  %d. %s\n", i+1, chain.String())
		}
	}

	return buf.String(), nil
}

// ToModuleList outputs a flat list of the selected components, root excluded.
func (g *Graph) ToModuleList() []ModuleInfo {
	modules := make([]ModuleInfo, 0, len(g.Modules))

	for key, node := range g.Modules {
		if key == g.Root {
			continue
		}

		requiredBy := make([]string, len(node.Dependents))
		for i, dep := range node.Dependents {
			requiredBy[i] = dep.String()
		}
		sort.Strings(requiredBy)

		modules = append(modules, ModuleInfo{
			Module:          key.Module.String(),
			Version:         key.Version,
			VirtualPlatform: node.VirtualPlatform,
			RequiredBy:      requiredBy,
		})
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Module < modules[j].Module
	})

	return modules
}

// ModuleInfo represents a component in the flat list output.
type ModuleInfo struct {
	Module          string   `json:"module"`
	Version         string   `json:"version"`
	VirtualPlatform bool     `json:"virtual_platform,omitempty"`
	RequiredBy      []string `json:"required_by,omitempty"`
}
