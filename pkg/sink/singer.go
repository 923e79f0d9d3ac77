package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Singer message types.
const (
	MessageSchema = "SCHEMA"
	MessageRecord = "RECORD"
)

type schemaMessage struct {
	Type          string         `json:"type"`
	Stream        string         `json:"stream"`
	Schema        map[string]any `json:"schema"`
	KeyProperties []string       `json:"key_properties"`
}

type recordMessage struct {
	Type          string         `json:"type"`
	Stream        string         `json:"stream"`
	Record        map[string]any `json:"record"`
	TimeExtracted string         `json:"time_extracted"`
}

// SingerWriter writes SCHEMA and RECORD messages as newline-delimited JSON.
type SingerWriter struct {
	mu        sync.Mutex
	enc       *json.Encoder
	published map[string]bool
	now       func() time.Time
}

// NewSingerWriter returns a writer emitting to w, usually os.Stdout.
func NewSingerWriter(w io.Writer) *SingerWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &SingerWriter{
		enc:       enc,
		published: make(map[string]bool),
		now:       time.Now,
	}
}

// PublishSchema writes a SCHEMA message.
func (s *SingerWriter) PublishSchema(stream string, schema map[string]any, keyProperties []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keyProperties == nil {
		keyProperties = []string{}
	}
	if err := s.enc.Encode(schemaMessage{
		Type:          MessageSchema,
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	}); err != nil {
		return fmt.Errorf("write schema message for %s: %w", stream, err)
	}
	s.published[stream] = true
	return nil
}

// WriteRecord writes a RECORD message. The stream's schema must have been
// published first.
func (s *SingerWriter) WriteRecord(stream string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.published[stream] {
		return fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}
	if err := s.enc.Encode(recordMessage{
		Type:          MessageRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: s.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("write record message for %s: %w", stream, err)
	}
	return nil
}
