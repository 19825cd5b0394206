// Package graph provides the resolved dependency graph and query
// capabilities on top of it.
//
// A Builder is an engine.Visitor: pass it to engine.Builder.Resolve and read
// the graph once the resolution returned.
//
//	gb := graph.NewBuilder()
//	result, err := eb.Resolve(ctx, root, gb)
//	gb.Record(result)
//	g := gb.Graph()
//
// # Querying the Graph
//
//	deps := g.DirectDeps(key)
//	explanation, _ := g.Explain(ident.Module("org.example", "core"))
//	path := g.Path(g.Root, key)
//	cycles := g.FindCycles()
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON() // tree, every component expanded once
//	dot := g.ToDOT()           // Graphviz
//	text := g.ToText()         // human-readable tree
package graph
