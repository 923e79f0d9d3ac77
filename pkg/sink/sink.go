// Package sink defines where resolved schemas and transformed records go,
// and provides the Singer stream writer, a SQLite store and an in-memory
// recorder.
package sink

import (
	"errors"
	"fmt"
)

// Catalog receives one resolved schema per emitted stream before any of the
// stream's records.
type Catalog interface {
	PublishSchema(stream string, schema map[string]any, keyProperties []string) error
}

// RecordSink receives transformed records. Implementations must be safe for
// concurrent use.
type RecordSink interface {
	WriteRecord(stream string, record map[string]any) error
}

// Sink is both a Catalog and a RecordSink.
type Sink interface {
	Catalog
	RecordSink
}

// ErrUnknownStream is returned when a record arrives for a stream whose
// schema was never published.
var ErrUnknownStream = errors.New("record for unpublished stream")

// Tee fans every call out to each sink in order and stops at the first error.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) PublishSchema(stream string, schema map[string]any, keyProperties []string) error {
	for i, s := range t {
		if err := s.PublishSchema(stream, schema, keyProperties); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

func (t tee) WriteRecord(stream string, record map[string]any) error {
	for i, s := range t {
		if err := s.WriteRecord(stream, record); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
