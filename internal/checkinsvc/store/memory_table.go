package store

import (
	"context"
	"sync"
)

// MemoryTable keeps rows in process memory. It backs STORE_BACKEND=memory
// and the tests of everything above the store.
type MemoryTable struct {
	mu      sync.Mutex
	exists  bool
	rows    [][]string
	appends int
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{}
}

func (m *MemoryTable) EnsureWorksheet(ctx context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exists {
		return nil
	}
	m.exists = true
	m.rows = append(m.rows, append([]string(nil), header...))
	return nil
}

func (m *MemoryTable) SetHeader(ctx context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exists = true
	h := append([]string(nil), header...)
	if len(m.rows) == 0 {
		m.rows = append(m.rows, h)
		return nil
	}
	m.rows[0] = h
	return nil
}

func (m *MemoryTable) AppendRow(ctx context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exists = true
	m.rows = append(m.rows, append([]string(nil), row...))
	m.appends++
	return nil
}

func (m *MemoryTable) GetAllValues(ctx context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return copyRows(m.rows), nil
}

// Appends counts AppendRow calls; header writes are not included.
func (m *MemoryTable) Appends() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.appends
}
