package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxMemoryAuditRecords bounds the in-memory operations log.
const maxMemoryAuditRecords = 500

// Memory is an in-memory Repository used by tests and the offline CLI.
// Values are deep-copied on the way in and out so callers can never alias
// the stored table.
type Memory struct {
	mu    sync.RWMutex
	slots map[string][][]string
	audit []OperationRecord
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][][]string)}
}

// Load returns a copy of the table stored under slot.
func (m *Memory) Load(_ context.Context, slot string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, ok := m.slots[slot]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return copyTable(table), nil
}

// Save stores a copy of the table under slot.
func (m *Memory) Save(_ context.Context, slot string, table [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[slot] = copyTable(table)
	return nil
}

// Delete removes a slot.
func (m *Memory) Delete(_ context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, slot)
	return nil
}

// LogOperation appends one record, dropping the oldest past the cap.
func (m *Memory) LogOperation(_ context.Context, rec OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, rec)
	if len(m.audit) > maxMemoryAuditRecords {
		m.audit = m.audit[len(m.audit)-maxMemoryAuditRecords:]
	}
	return nil
}

// RecentOperations returns the newest records, newest first.
func (m *Memory) RecentOperations(_ context.Context, limit int) ([]OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.audit) {
		limit = len(m.audit)
	}
	out := make([]OperationRecord, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audit[i])
	}
	return out, nil
}

func copyTable(table [][]string) [][]string {
	out := make([][]string, len(table))
	for i, row := range table {
		out[i] = append([]string(nil), row...)
	}
	return out
}
