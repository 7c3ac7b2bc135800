package remote

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process, honoring the conflict keys.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string]Row
	calls  int
	// FailOn, when set, is consulted before every upsert.
	FailOn func(spec TableSpec, call int) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]Row)}
}

func (m *MemoryStore) Upsert(ctx context.Context, spec TableSpec, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.FailOn != nil {
		if err := m.FailOn(spec, m.calls); err != nil {
			return err
		}
	}

	t, ok := m.tables[spec.Name]
	if !ok {
		t = make(map[string]Row)
		m.tables[spec.Name] = t
	}
	for _, r := range rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		t[spec.ConflictKey(r)] = cp
	}
	return nil
}

// Count is the number of distinct rows in table.
func (m *MemoryStore) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Rows returns a copy of table's rows in no particular order.
func (m *MemoryStore) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, r)
	}
	return out
}

// Calls is the number of Upsert invocations so far.
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
