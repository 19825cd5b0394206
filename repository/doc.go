// Package repository provides the component sources the engine resolves
// against. Memory holds descriptors in memory, Local reads a directory and
// Remote fetches the same layout over HTTP. Chain and Cached compose them.
//
// Components are described by Starlark descriptors parsed with buildtools:
//
//	component(group = "org.example", name = "app", version = "1.0")
//
//	dependency("org.example:core:1.+")
//	dependency(module = "org.example:log", version = "2.0", constraint = True)
//
//	variant("runtime", attributes = {"usage": "runtime"})
//	dependency("org.example:driver:[1.0,2.0)", excludes = ["org.legacy:*"])
//
// Every repository implements engine.IDResolver and engine.MetadataResolver.
// Errors for unknown modules and versions match both ErrModuleNotFound or
// ErrVersionNotFound and engine.ErrNotFound.
package repository
