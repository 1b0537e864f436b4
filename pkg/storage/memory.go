package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/shipcost/shipcost/pkg/dataset"
)

// MemoryDocumentStore is a DocumentStore kept in process memory. It backs
// tests and local dry runs.
type MemoryDocumentStore struct {
	mu     sync.Mutex
	tables map[string]*dataset.Table
	// FetchErr, when set, is returned by every FetchTable call.
	FetchErr error
}

// NewMemoryDocumentStore creates an empty store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{tables: make(map[string]*dataset.Table)}
}

func memKey(database, collection string) string {
	return database + "." + collection
}

func (m *MemoryDocumentStore) FetchTable(ctx context.Context, database, collection string) (*dataset.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	t, ok := m.tables[memKey(database, collection)]
	if !ok || t.Len() == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrEmptyCollection, database, collection)
	}
	rows := make([][]string, t.Len())
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	return dataset.NewTable(append([]string(nil), t.Columns...), rows)
}

// InsertTable appends rows. Later inserts must use the same columns.
func (m *MemoryDocumentStore) InsertTable(ctx context.Context, table *dataset.Table, database, collection string) error {
	if table.Len() == 0 {
		return dataset.ErrEmptyTable
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(database, collection)
	existing, ok := m.tables[key]
	if !ok {
		rows := make([][]string, 0, table.Len())
		for _, r := range table.Rows {
			rows = append(rows, append([]string(nil), r...))
		}
		t, err := dataset.NewTable(append([]string(nil), table.Columns...), rows)
		if err != nil {
			return err
		}
		m.tables[key] = t
		return nil
	}

	aligned, err := table.Select(existing.Columns...)
	if err != nil {
		return fmt.Errorf("columns do not match %s: %w", key, err)
	}
	existing.Rows = append(existing.Rows, aligned.Rows...)
	return nil
}
