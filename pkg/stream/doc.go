// Package stream declares the resource collections an extraction run walks.
//
// A Definition describes one paginated collection: where it lives (a path
// template with {placeholder} tokens), which entity of the API description
// shapes its records, and which parent collection it hangs off. Definitions
// are plain data. Parent/child links are by name and are resolved once into a
// Graph, which stores definitions in an indexed slice and references parents
// by index.
//
// Identifiers flow from parent records to child fetches through Context, an
// immutable ordered set of bindings that accumulates down the tree:
//
//	docs                 ctx = {}
//	└── tables           ctx = {docId}
//	    └── rows         ctx = {docId, tableIdOrName}
//
// NewGraph rejects definitions whose placeholders are not guaranteed by the
// ancestor chain, so a valid Graph can always build every child path.
package stream
