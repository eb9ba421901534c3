// Package memory is an in-process sheets mirror used when Google Sheets is not configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"landledger/internal/core"
	ports "landledger/internal/sheets"
)

type Mirror struct {
	mu    sync.Mutex
	order []string
	rows  map[string][]any
	err   error
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: map[string][]any{}}
}

// FailWith makes every following call return err until it is called with nil.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Upsert stores the row for a, keeping the position of an existing row.
func (m *Mirror) Upsert(_ context.Context, a core.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[a.ID]; !ok {
		m.order = append(m.order, a.ID)
	}
	m.rows[a.ID] = ports.Row(a)
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[id]; !ok {
		return nil
	}
	delete(m.rows, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return nil
}

// Rows returns the header followed by the mirrored rows in insertion order.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, 0, len(m.order)+1)
	out = append(out, ports.Header())
	for _, id := range m.order {
		out = append(out, slices.Clone(m.rows[id]))
	}
	return out
}

// Row returns the mirrored row for id.
func (m *Mirror) Row(id string) ([]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	return slices.Clone(r), ok
}
