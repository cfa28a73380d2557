package store

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory. It backs local development and
// tests; the pipeline semantics are identical to the durable backends.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]Table
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]Table)}
}

func (s *MemoryStore) Read(ctx context.Context, table string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok || t.Empty() {
		return Table{}, nil
	}
	return cloneTable(t), nil
}

func (s *MemoryStore) Write(ctx context.Context, table string, data Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[table] = cloneTable(data)
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, table string, data Table) error {
	if len(data.Rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tables[table]
	if !ok || !sameHeader(existing.Header, data.Header) {
		s.tables[table] = cloneTable(data)
		return nil
	}

	existing.Rows = append(existing.Rows, cloneTable(data).Rows...)
	s.tables[table] = existing
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, table string, data Table, keyColumns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tables[table]
	if !ok || existing.Empty() {
		s.tables[table] = cloneTable(data)
		return nil
	}

	s.tables[table] = mergeUpsert(existing, cloneTable(data), keyColumns)
	return nil
}

func cloneTable(t Table) Table {
	out := Table{Header: append([]string(nil), t.Header...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}
