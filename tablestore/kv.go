package tablestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/metric"
	"github.com/ryan-d-young/money/natsclient"
	"github.com/ryan-d-young/money/pkg/retry"
)

// KV persists tables as NATS JetStream key-value buckets, one bucket per
// table, one key per row. Writes are synchronous; Close with commit simply
// verifies the connection drained cleanly.
type KV struct {
	client  *natsclient.Client
	logger  *slog.Logger
	metrics *metric.Metrics
	retry   retry.Config

	mu      sync.RWMutex
	buckets map[string]jetstream.KeyValue
	schemas map[string]Schema
}

// KVOption customizes a KV store.
type KVOption func(*KV)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) KVOption {
	return func(s *KV) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires insert outcomes into the framework metrics.
func WithMetrics(registry *metric.MetricsRegistry) KVOption {
	return func(s *KV) {
		if registry != nil {
			s.metrics = registry.CoreMetrics()
		}
	}
}

// WithPutRetry sets the retry policy for KV writes.
func WithPutRetry(cfg retry.Config) KVOption {
	return func(s *KV) { s.retry = cfg }
}

// NewKV creates a KV table store over an established NATS client.
func NewKV(client *natsclient.Client, opts ...KVOption) (*KV, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "tablestore", "NewKV",
			"nats client cannot be nil")
	}
	s := &KV{
		client:  client,
		logger:  slog.Default(),
		retry:   retry.DefaultConfig(),
		buckets: make(map[string]jetstream.KeyValue),
		schemas: make(map[string]Schema),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureTable creates the bucket backing a schema if needed and registers
// the schema for row validation.
func (s *KV) EnsureTable(ctx context.Context, schema Schema) error {
	bucket, err := s.client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      schema.Bucket(),
		Description: fmt.Sprintf("rows for table %s", schema.Qualified()),
	})
	if err != nil {
		return errors.WrapTransient(err, "tablestore", "EnsureTable",
			fmt.Sprintf("create bucket for %s", schema.Qualified()))
	}

	s.mu.Lock()
	s.buckets[schema.Qualified()] = bucket
	s.schemas[schema.Qualified()] = schema
	s.mu.Unlock()

	s.logger.Debug("table ensured", "table", schema.Qualified(), "bucket", schema.Bucket())
	return nil
}

func (s *KV) lookup(table string) (jetstream.KeyValue, Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.buckets[table]
	if !ok {
		return nil, Schema{}, errors.WrapInvalid(errors.ErrTableNotFound, "tablestore", "lookup",
			fmt.Sprintf("table %s not ensured", table))
	}
	return bucket, s.schemas[table], nil
}

// Insert writes one row, validating against the schema's model when
// declared and retrying transient KV failures.
func (s *KV) Insert(ctx context.Context, table string, row Row) error {
	bucket, schema, err := s.lookup(table)
	if err != nil {
		s.recordInsert(table, "error")
		return err
	}
	if err := schema.validateRow(row.Fields); err != nil {
		s.recordInsert(table, "invalid")
		return err
	}

	if row.Key == "" {
		row.Key = newRowKey()
	}
	if row.InsertedAt.IsZero() {
		row.InsertedAt = timeNow()
	}

	data, err := json.Marshal(row)
	if err != nil {
		s.recordInsert(table, "error")
		return errors.WrapFatal(err, "tablestore", "Insert", "marshal row")
	}

	err = retry.Do(ctx, s.retry, func() error {
		if _, putErr := bucket.Put(ctx, row.Key, data); putErr != nil {
			return putErr
		}
		return nil
	})
	if err != nil {
		s.recordInsert(table, "error")
		return errors.WrapTransient(err, "tablestore", "Insert",
			fmt.Sprintf("put row %s into %s", row.Key, table))
	}

	s.recordInsert(table, "ok")
	return nil
}

// Rows returns every row in a table.
func (s *KV) Rows(ctx context.Context, table string) ([]Row, error) {
	bucket, _, err := s.lookup(table)
	if err != nil {
		return nil, err
	}

	keys, err := bucket.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return []Row{}, nil
		}
		return nil, errors.WrapTransient(err, "tablestore", "Rows",
			fmt.Sprintf("list keys in %s", table))
	}

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		entry, err := bucket.Get(ctx, key)
		if err != nil {
			return nil, errors.WrapTransient(err, "tablestore", "Rows",
				fmt.Sprintf("get row %s from %s", key, table))
		}
		var row Row
		if err := json.Unmarshal(entry.Value(), &row); err != nil {
			return nil, errors.WrapFatal(err, "tablestore", "Rows",
				fmt.Sprintf("unmarshal row %s from %s", key, table))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Tables lists every ensured table.
func (s *KV) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	return names
}

// Close releases the store's bucket handles. Writes are synchronous, so
// there is nothing to flush; commit=false cannot un-write them either.
func (s *KV) Close(_ context.Context, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !commit {
		s.logger.Warn("KV store closed without commit; synchronous writes already persisted")
	}
	s.buckets = make(map[string]jetstream.KeyValue)
	s.schemas = make(map[string]Schema)
	return nil
}

func (s *KV) recordInsert(table, status string) {
	if s.metrics != nil {
		s.metrics.RecordStoreInsert(table, status)
	}
}
