package tablestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ryan-d-young/money/errors"
)

// Memory is an in-memory Store used by tests and by sessions running
// without a NATS backend. Inserts buffer per table and move to the
// committed set on Commit or on Close(commit=true); Close(commit=false)
// discards whatever is still pending.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	closed bool
}

type memTable struct {
	schema    Schema
	committed []Row
	pending   []Row
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

// EnsureTable registers a table. Idempotent; re-declaring keeps existing
// rows.
func (s *Memory) EnsureTable(_ context.Context, schema Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.WrapInvalid(errors.ErrStorageUnavailable, "tablestore", "EnsureTable",
			"store is closed")
	}
	if _, ok := s.tables[schema.Qualified()]; !ok {
		s.tables[schema.Qualified()] = &memTable{schema: schema}
	}
	return nil
}

// Insert buffers one row into a table's pending set.
func (s *Memory) Insert(_ context.Context, table string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.WrapInvalid(errors.ErrStorageUnavailable, "tablestore", "Insert",
			"store is closed")
	}
	t, ok := s.tables[table]
	if !ok {
		return errors.WrapInvalid(errors.ErrTableNotFound, "tablestore", "Insert",
			fmt.Sprintf("table %s not ensured", table))
	}
	if err := t.schema.validateRow(row.Fields); err != nil {
		return err
	}

	if row.Key == "" {
		row.Key = newRowKey()
	}
	if row.InsertedAt.IsZero() {
		row.InsertedAt = timeNow()
	}
	t.pending = append(t.pending, row)
	return nil
}

// Commit moves every pending row into the committed set.
func (s *Memory) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tables {
		t.committed = append(t.committed, t.pending...)
		t.pending = nil
	}
}

// Rows returns the committed and pending rows of a table, committed first.
func (s *Memory) Rows(_ context.Context, table string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrTableNotFound, "tablestore", "Rows",
			fmt.Sprintf("table %s not ensured", table))
	}
	rows := make([]Row, 0, len(t.committed)+len(t.pending))
	rows = append(rows, t.committed...)
	rows = append(rows, t.pending...)
	return rows, nil
}

// CommittedRows returns only the committed rows of a table.
func (s *Memory) CommittedRows(table string) []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	return append([]Row(nil), t.committed...)
}

// Tables lists every ensured table.
func (s *Memory) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}

// Close shuts the store down, committing or discarding pending rows.
func (s *Memory) Close(_ context.Context, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	for _, t := range s.tables {
		if commit {
			t.committed = append(t.committed, t.pending...)
		}
		t.pending = nil
	}
	s.closed = true
	return nil
}
