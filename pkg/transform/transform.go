// Package transform normalizes raw API records before they are emitted.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/coda-tap/pkg/schema"
	"github.com/Sternrassler/coda-tap/pkg/stream"
)

// Error reports a record that could not be transformed. It is recoverable:
// the record is dropped and the stream continues.
type Error struct {
	Stream string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("transform %s record: %v", e.Stream, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Apply produces the emitted form of record for def, fetched under ctx.
// The input map is not modified. keep=false means the record is dropped
// without error.
//
// Steps, in order:
//  1. every Context binding is written into the record under its key
//  2. each Polymorphic field is split into typed siblings
//  3. the definition's RecordTransform hook, if any
func Apply(def *stream.Definition, record map[string]any, ctx stream.Context) (out map[string]any, keep bool, err error) {
	if record == nil {
		return nil, false, &Error{Stream: def.Name, Err: errors.New("nil record")}
	}

	out = make(map[string]any, len(record)+ctx.Len()+2*len(def.Polymorphic))
	for k, v := range record {
		out[k] = v
	}

	ctx.Each(func(k, v string) {
		out[k] = v
	})

	for _, field := range def.Polymorphic {
		Flatten(out, field)
	}

	if def.RecordTransform != nil {
		out, keep, err = def.RecordTransform(out, ctx)
		if err != nil {
			return nil, false, &Error{Stream: def.Name, Err: err}
		}
		return out, keep && out != nil, nil
	}

	return out, true, nil
}

// Flatten replaces record[field] with the sibling named after the value's
// runtime type. Booleans are checked before numbers. A missing or null
// value, or an array or object, leaves every variant absent and the record
// is kept.
func Flatten(record map[string]any, field string) {
	v, ok := record[field]
	if !ok {
		return
	}
	delete(record, field)

	if variant := Variant(v); variant != "" {
		record[schema.VariantField(field, variant)] = v
	}
}

// Variant classifies a decoded JSON scalar. It returns "" for nil and for
// arrays or objects, which have no typed sibling.
func Variant(v any) string {
	switch v.(type) {
	case bool:
		return schema.VariantBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return schema.VariantNumber
	case string:
		return schema.VariantString
	default:
		return ""
	}
}
