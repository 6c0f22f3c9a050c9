// Package tablestore is the persistence layer for normalized records.
// Providers declare table schemas; the session ensures the backing storage
// exists at start, and Store composition steps insert one row per yielded
// response. The production implementation persists through NATS JetStream
// key-value buckets (one bucket per table); an in-memory implementation
// backs tests.
package tablestore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Row is one persisted record.
type Row struct {
	Key        string         `json:"key"`
	Fields     map[string]any `json:"fields"`
	InsertedAt time.Time      `json:"inserted_at"`
}

// Store is the generic insert/select surface the framework needs from its
// persistence backend. Tables are addressed by their qualified
// "provider.table" name.
type Store interface {
	// EnsureTable makes the backing storage for a schema exist. Idempotent.
	EnsureTable(ctx context.Context, schema Schema) error
	// Insert writes one row. An empty row key is assigned a fresh UUID.
	// Inserting into an undeclared table is ErrTableNotFound.
	Insert(ctx context.Context, table string, row Row) error
	// Rows returns every row in a table.
	Rows(ctx context.Context, table string) ([]Row, error)
	// Tables lists the qualified names of every ensured table.
	Tables() []string
	// Close releases the store. When commit is true, pending writes are
	// flushed first; when false they are discarded where the backend
	// allows it.
	Close(ctx context.Context, commit bool) error
}

// newRowKey mints a key for rows inserted without one.
func newRowKey() string {
	return uuid.NewString()
}

// timeNow is a hook for tests that need deterministic insert times.
var timeNow = func() time.Time { return time.Now().UTC() }
