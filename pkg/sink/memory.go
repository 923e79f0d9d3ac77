package sink

import (
	"fmt"
	"sync"
)

// Recorder keeps everything it receives in memory. It is used by tests and
// by the discover command, which only needs the schemas.
type Recorder struct {
	mu      sync.Mutex
	order   []string
	schemas map[string]map[string]any
	keys    map[string][]string
	records map[string][]map[string]any
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		schemas: make(map[string]map[string]any),
		keys:    make(map[string][]string),
		records: make(map[string][]map[string]any),
	}
}

// PublishSchema implements Catalog.
func (r *Recorder) PublishSchema(stream string, schema map[string]any, keyProperties []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schemas[stream]; !ok {
		r.order = append(r.order, stream)
	}
	r.schemas[stream] = schema
	r.keys[stream] = keyProperties
	return nil
}

// WriteRecord implements RecordSink.
func (r *Recorder) WriteRecord(stream string, record map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schemas[stream]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}
	r.records[stream] = append(r.records[stream], record)
	return nil
}

// Streams returns published stream names in publish order.
func (r *Recorder) Streams() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Schema returns the published schema for stream.
func (r *Recorder) Schema(stream string) (map[string]any, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[stream]
	return s, r.keys[stream], ok
}

// Records returns a copy of the records written for stream.
func (r *Recorder) Records(stream string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.records[stream]...)
}
