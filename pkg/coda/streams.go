// Package coda declares the Coda resource collections extracted by the tap:
// documents, and per document its pages, formulas, controls, permissions
// and tables, and per table its columns and rows.
package coda

import (
	"github.com/Sternrassler/coda-tap/pkg/schema"
	"github.com/Sternrassler/coda-tap/pkg/stream"
)

// Context keys handed down the forest.
const (
	KeyDocID = "docId"
	KeyTable = "tableIdOrName"
)

// Stream names.
const (
	StreamDocs        = "docs"
	StreamPages       = "pages"
	StreamFormulas    = "formulas"
	StreamControls    = "controls"
	StreamPermissions = "permissions"
	StreamTables      = "tables"
	StreamColumns     = "columns"
	StreamRows        = "rows"
)

// Definitions returns the Coda stream definitions in declaration order.
// Each call returns fresh values.
func Definitions() []stream.Definition {
	return []stream.Definition{
		{
			Name:         StreamDocs,
			PathTemplate: "/docs",
			EntityRef:    "Doc",
			Description:  "Coda documents",
			Contributes:  []stream.ContextField{{Key: KeyDocID, Field: "id"}},
		},
		{
			Name:         StreamPages,
			PathTemplate: "/docs/{docId}/pages",
			EntityRef:    "Page",
			Parent:       StreamDocs,
			Description:  "Pages of a document",
		},
		{
			Name:         StreamFormulas,
			PathTemplate: "/docs/{docId}/formulas",
			EntityRef:    "Formula",
			Parent:       StreamDocs,
			Description:  "Named formulas of a document",
			Polymorphic:  []string{"value"},
		},
		{
			Name:         StreamControls,
			PathTemplate: "/docs/{docId}/controls",
			EntityRef:    "ControlReference",
			Parent:       StreamDocs,
			Description:  "Controls of a document",
		},
		{
			Name:         StreamPermissions,
			PathTemplate: "/docs/{docId}/acl/permissions",
			EntityRef:    "Permission",
			Parent:       StreamDocs,
			Description:  "Sharing permissions of a document",
			// principal is a oneOf of user, group, domain and anyone shapes.
			SchemaPatches: []schema.Patch{
				schema.SetType{Property: "principal", Type: "object"},
			},
		},
		{
			Name:         StreamTables,
			PathTemplate: "/docs/{docId}/tables",
			EntityRef:    "Table",
			Parent:       StreamDocs,
			Description:  "Tables and views of a document",
			Contributes:  []stream.ContextField{{Key: KeyTable, Field: "id"}},
		},
		{
			Name:         StreamColumns,
			PathTemplate: "/docs/{docId}/tables/{tableIdOrName}/columns",
			EntityRef:    "Column",
			Parent:       StreamTables,
			Description:  "Columns of a table",
			SchemaPatches: []schema.Patch{
				schema.SetType{Property: "format", Type: "object"},
			},
		},
		{
			Name:         StreamRows,
			PathTemplate: "/docs/{docId}/tables/{tableIdOrName}/rows",
			EntityRef:    "Row",
			Parent:       StreamTables,
			Description:  "Rows of a table",
			// Cell values are keyed by column ID, which the description cannot list.
			SchemaPatches: []schema.Patch{
				schema.DropKeyword{Property: "values", Keyword: "additionalProperties"},
			},
		},
	}
}

// Graph validates Definitions into a stream graph.
func Graph() (*stream.Graph, error) {
	return stream.NewGraph(Definitions()...)
}

// StreamNames lists the stream names in declaration order.
func StreamNames() []string {
	defs := Definitions()
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}
