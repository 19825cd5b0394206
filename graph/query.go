package graph

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// Get returns the node for a component id, or nil if not found.
func (g *Graph) Get(key Key) *Node {
	return g.Modules[key]
}

// GetByModule returns the node of a module at whatever version was selected.
// Returns nil if not found.
func (g *Graph) GetByModule(id ident.ModuleIdentifier) *Node {
	for _, key := range g.order {
		if key.Module == id {
			return g.Modules[key]
		}
	}
	return nil
}

// Contains returns true if the graph contains the given component.
func (g *Graph) Contains(key Key) bool {
	_, ok := g.Modules[key]
	return ok
}

// ContainsModule returns true if the graph contains the given module.
func (g *Graph) ContainsModule(id ident.ModuleIdentifier) bool {
	return g.GetByModule(id) != nil
}

// DirectDeps returns the direct dependencies of a component.
func (g *Graph) DirectDeps(key Key) []Key {
	if node := g.Modules[key]; node != nil {
		return node.Dependencies
	}
	return nil
}

// DirectDependents returns components that directly depend on the given one.
func (g *Graph) DirectDependents(key Key) []Key {
	if node := g.Modules[key]; node != nil {
		return node.Dependents
	}
	return nil
}

// TransitiveDeps returns all transitive dependencies of a component.
// The result is in breadth-first order.
func (g *Graph) TransitiveDeps(key Key) []Key {
	return g.walk(key, func(n *Node) []Key { return n.Dependencies })
}

// TransitiveDependents returns all components that transitively depend on the given one.
// The result is in breadth-first order (closest dependents first).
func (g *Graph) TransitiveDependents(key Key) []Key {
	return g.walk(key, func(n *Node) []Key { return n.Dependents })
}

func (g *Graph) walk(key Key, next func(*Node) []Key) []Key {
	result := make([]Key, 0)
	visited := map[Key]bool{key: true}

	queue := []Key{key}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current]
		if node == nil {
			continue
		}
		for _, k := range next(node) {
			if !visited[k] {
				visited[k] = true
				result = append(result, k)
				queue = append(queue, k)
			}
		}
	}
	return result
}

// Path finds the shortest dependency path from one component to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to Key) []Key {
	if from == to {
		return []Key{from}
	}

	type queueItem struct {
		key  Key
		path []Key
	}

	visited := map[Key]bool{from: true}
	queue := []queueItem{{key: from, path: []Key{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current.key]
		if node == nil {
			continue
		}

		for _, dep := range node.Dependencies {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			newPath := make([]Key, len(current.path)+1)
			copy(newPath, current.path)
			newPath[len(current.path)] = dep
			if dep == to {
				return newPath
			}
			queue = append(queue, queueItem{key: dep, path: newPath})
		}
	}

	return nil
}

// AllPaths finds all dependency paths from one component to another.
// This can be expensive for large graphs with many paths.
func (g *Graph) AllPaths(from, to Key) [][]Key {
	var result [][]Key
	g.findAllPaths(from, to, []Key{from}, make(map[Key]bool), &result)
	return result
}

func (g *Graph) findAllPaths(current, target Key, path []Key, visited map[Key]bool, result *[][]Key) {
	if current == target {
		pathCopy := make([]Key, len(path))
		copy(pathCopy, path)
		*result = append(*result, pathCopy)
		return
	}

	visited[current] = true
	defer func() { visited[current] = false }()

	node := g.Modules[current]
	if node == nil {
		return
	}

	for _, dep := range node.Dependencies {
		if !visited[dep] {
			g.findAllPaths(dep, target, append(path, dep), visited, result)
		}
	}
}

// Explain returns a detailed explanation of why a module is at its current version.
func (g *Graph) Explain(module ident.ModuleIdentifier) (*Explanation, error) {
	node := g.GetByModule(module)
	if node == nil {
		return nil, fmt.Errorf("module %q not found in graph", module)
	}

	explanation := &Explanation{
		Module:    node.Key,
		Selection: node.Selection,
	}

	for _, path := range g.AllPaths(g.Root, node.Key) {
		chain := DependencyChain{Path: path}
		if len(path) >= 2 {
			chain.RequestedVersion = node.RequestedVersions[path[len(path)-2]]
		}
		explanation.DependencyChains = append(explanation.DependencyChains, chain)
	}

	explanation.RequestSummary = g.buildRequestSummary(node)

	return explanation, nil
}

func (g *Graph) buildRequestSummary(node *Node) string {
	if node.Selection == nil || len(node.Selection.Candidates) == 0 {
		return fmt.Sprintf("%s is at version %s", node.Key.Module, node.Key.Version)
	}

	var parts []string
	for _, candidate := range node.Selection.Candidates {
		requesters := make([]string, len(candidate.RequestedBy))
		for i, r := range candidate.RequestedBy {
			requesters[i] = r.String()
		}
		part := fmt.Sprintf("  %s requested by: %s", candidate.Version, strings.Join(requesters, ", "))
		if candidate.Selected {
			part += " [SELECTED]"
		}
		parts = append(parts, part)
	}

	return fmt.Sprintf("%s version selection:\n%s\nStrategy: %s (%s)",
		node.Key.Module,
		strings.Join(parts, "\n"),
		node.Selection.Strategy,
		node.Selection.DecidingFactor,
	)
}

// WhyIncluded returns all dependency chains that cause a module to be included.
func (g *Graph) WhyIncluded(module ident.ModuleIdentifier) ([]DependencyChain, error) {
	node := g.GetByModule(module)
	if node == nil {
		return nil, fmt.Errorf("module %q not found in graph", module)
	}

	paths := g.AllPaths(g.Root, node.Key)
	chains := make([]DependencyChain, len(paths))
	for i, path := range paths {
		chains[i] = DependencyChain{Path: path}
	}

	return chains, nil
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{
		TotalModules: len(g.Modules),
	}

	if root := g.Modules[g.Root]; root != nil {
		stats.DirectDependencies = len(root.Dependencies)
	}

	stats.TransitiveDependencies = max(stats.TotalModules-stats.DirectDependencies-1, 0)

	for _, node := range g.Modules {
		if node.VirtualPlatform {
			stats.VirtualPlatforms++
		}
	}

	stats.MaxDepth = g.calculateMaxDepth()

	return stats
}

func (g *Graph) calculateMaxDepth() int {
	depths := make(map[Key]int)
	onPath := make(map[Key]bool)
	var maxDepth int

	var dfs func(key Key, depth int)
	dfs = func(key Key, depth int) {
		// A node already on the current path closes a cycle.
		if onPath[key] {
			return
		}
		if existingDepth, ok := depths[key]; ok && existingDepth >= depth {
			return
		}
		depths[key] = depth
		maxDepth = max(maxDepth, depth)

		node := g.Modules[key]
		if node == nil {
			return
		}

		onPath[key] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, key)
	}

	dfs(g.Root, 0)
	return maxDepth
}

// Leaves returns all components with no dependencies.
func (g *Graph) Leaves() []Key {
	var leaves []Key
	for _, key := range g.order {
		if len(g.Modules[key].Dependencies) == 0 {
			leaves = append(leaves, key)
		}
	}
	return leaves
}

// HasCycles returns true if the graph contains cycles.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// FindCycles returns all cycles in the graph. Each cycle starts at the
// first of its components reached from the root.
func (g *Graph) FindCycles() [][]Key {
	var cycles [][]Key
	visited := make(map[Key]bool)
	recStack := make(map[Key]bool)
	path := make([]Key, 0)

	var findCycles func(key Key)
	findCycles = func(key Key) {
		visited[key] = true
		recStack[key] = true
		path = append(path, key)

		if node := g.Modules[key]; node != nil {
			for _, dep := range node.Dependencies {
				if !visited[dep] {
					findCycles(dep)
					continue
				}
				if !recStack[dep] {
					continue
				}
				for i, k := range path {
					if k == dep {
						cycle := make([]Key, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		path = path[:len(path)-1]
		recStack[key] = false
	}

	if _, ok := g.Modules[g.Root]; ok {
		findCycles(g.Root)
	}
	for _, key := range g.order {
		if !visited[key] {
			findCycles(key)
		}
	}

	return cycles
}
