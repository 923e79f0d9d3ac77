package sink

import (
	"encoding/json"
	"fmt"
	"io"
)

// CatalogEntry describes one stream in a discovered catalog.
type CatalogEntry struct {
	TapStreamID   string         `json:"tap_stream_id"`
	Stream        string         `json:"stream"`
	Schema        map[string]any `json:"schema"`
	KeyProperties []string       `json:"key_properties"`
}

// CatalogDocument is the output of discovery.
type CatalogDocument struct {
	Streams []CatalogEntry `json:"streams"`
}

// BuildCatalog assembles a catalog from everything a Recorder was given.
func BuildCatalog(r *Recorder) CatalogDocument {
	doc := CatalogDocument{Streams: []CatalogEntry{}}
	for _, name := range r.Streams() {
		schema, keys, _ := r.Schema(name)
		if keys == nil {
			keys = []string{}
		}
		doc.Streams = append(doc.Streams, CatalogEntry{
			TapStreamID:   name,
			Stream:        name,
			Schema:        schema,
			KeyProperties: keys,
		})
	}
	return doc
}

// WriteJSON writes the catalog as indented JSON.
func (c CatalogDocument) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
