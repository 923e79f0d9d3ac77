package sink

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrInvalidStreamName is returned for stream names that cannot be used as
// table names.
var ErrInvalidStreamName = errors.New("invalid stream name")

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tap_runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tap_streams (
	run_id TEXT NOT NULL,
	stream TEXT NOT NULL,
	schema JSON NOT NULL,
	key_properties JSON NOT NULL,
	PRIMARY KEY (run_id, stream)
);
`

// SQLite stores every stream in its own table keyed by run and primary key.
// Records are kept as JSON documents.
type SQLite struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
	keys  map[string][]string
	now   func() time.Time
}

// OpenSQLite opens or creates the database at path and registers a new run.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc connections do not share in-memory state and writes are serialized anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLite{
		db:    db,
		runID: uuid.NewString(),
		keys:  make(map[string][]string),
		now:   time.Now,
	}
	if _, err := db.Exec(`INSERT INTO tap_runs (run_id, started_at) VALUES (?, ?)`,
		s.runID, s.now().UTC().Format(time.RFC3339)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return s, nil
}

// RunID identifies the rows written by this sink.
func (s *SQLite) RunID() string {
	return s.runID
}

// DB exposes the underlying handle for inspection.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// PublishSchema records the schema and creates the stream's table.
func (s *SQLite) PublishSchema(stream string, schema map[string]any, keyProperties []string) error {
	if !tableNameRe.MatchString(stream) {
		return fmt.Errorf("%w: %q", ErrInvalidStreamName, stream)
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema for %s: %w", stream, err)
	}
	if keyProperties == nil {
		keyProperties = []string{}
	}
	keysJSON, err := json.Marshal(keyProperties)
	if err != nil {
		return fmt.Errorf("encode key properties for %s: %w", stream, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		run_id TEXT NOT NULL,
		record_key TEXT NOT NULL,
		extracted_at TEXT NOT NULL,
		record JSON NOT NULL,
		PRIMARY KEY (run_id, record_key)
	)`, stream)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create table %s: %w", stream, err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO tap_streams (run_id, stream, schema, key_properties) VALUES (?, ?, ?, ?)`,
		s.runID, stream, string(schemaJSON), string(keysJSON),
	); err != nil {
		return fmt.Errorf("store schema for %s: %w", stream, err)
	}

	s.keys[stream] = keyProperties
	return nil
}

// WriteRecord upserts record by its key properties. A record seen twice in
// one run keeps its last version.
func (s *SQLite) WriteRecord(stream string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.keys[stream]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}

	key, err := recordKey(keys, record)
	if err != nil {
		return fmt.Errorf("%s: %w", stream, err)
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", stream, err)
	}

	q := fmt.Sprintf(`INSERT OR REPLACE INTO %q (run_id, record_key, extracted_at, record) VALUES (?, ?, ?, ?)`, stream)
	if _, err := s.db.Exec(q, s.runID, key, s.now().UTC().Format(time.RFC3339), string(body)); err != nil {
		return fmt.Errorf("insert %s record: %w", stream, err)
	}
	return nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// recordKey renders the key property values as a JSON array. Without key
// properties every record gets a fresh key.
func recordKey(keys []string, record map[string]any) (string, error) {
	if len(keys) == 0 {
		return uuid.NewString(), nil
	}
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = record[k]
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "", fmt.Errorf("encode record key: %w", err)
	}
	return string(b), nil
}
