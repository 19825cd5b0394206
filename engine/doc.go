// Package engine builds a dependency graph from declared requirements and
// resolves it to one consistent selection: one version per module, version
// and capability conflicts settled, exclusions applied and virtual platforms
// aligned.
//
// # Traversal
//
// A resolution starts from the root component and keeps a queue of dirty
// nodes. Visiting a node materializes its outgoing edges; every new edge
// resolves its selector, the target module updates its selection and the
// edge attaches to the nodes of the selected component, which makes them
// dirty in turn. When the queue is empty, one batched conflict is resolved
// and the loop continues until there is neither dirty node nor conflict.
//
// Conflict resolution is deferred: when a second version of a module shows
// up and the selectors cannot agree on one of them, the current selection
// is cleared and the module is queued. Its winner is selected later, every
// other version is evicted for good and all edges that targeted the module
// are restarted against the winner.
//
// # Deferred dependencies
//
// Constraints and optional dependencies do not bring a module into the
// graph. They are parked until a hard dependency on the same module shows
// up, at which point the declaring nodes are visited again.
//
// # Virtual platforms
//
// A component may declare that it belongs to a platform module. If the
// platform has no metadata of its own it becomes virtual: its version is
// the result of conflict resolution over the versions of its participants,
// and it constrains every participant to that version.
//
// # Metadata fetching
//
// The traversal is single threaded. When a batch of new edges targets more
// than one component whose metadata is expensive to fetch, the fetches run
// in parallel and the traversal waits for all of them before attaching the
// edges in declaration order, so results do not depend on fetch timing.
package engine
