package ledger

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// MemoryLedger keeps records in process memory. It is not durable: everything
// is lost when the process exits. Intended for tests and dry runs.
type MemoryLedger struct {
	mu  sync.RWMutex
	idx *index
	ids *idGenerator
}

// NewMemoryLedger creates an empty ledger. A nil clock means time.Now.
func NewMemoryLedger(now func() time.Time) *MemoryLedger {
	return &MemoryLedger{idx: newIndex(), ids: newIDGenerator(now)}
}

// Append implements ports.AuditLedger.
func (m *MemoryLedger) Append(_ context.Context, record domain.OperationRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, at := m.ids.next()
	m.idx.add(stamp(record, id, at))
	return id, nil
}

// Get implements ports.AuditLedger.
func (m *MemoryLedger) Get(_ context.Context, operationID string) (domain.OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.get(operationID)
}

// ListRecent implements ports.AuditLedger.
func (m *MemoryLedger) ListRecent(_ context.Context, n int) ([]domain.OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.recent(n), nil
}

// MarkRolledBack implements ports.AuditLedger.
func (m *MemoryLedger) MarkRolledBack(_ context.Context, operationID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx.markRolledBack(operationID, at)
}

// Export implements ports.AuditLedger.
func (m *MemoryLedger) Export(_ context.Context, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.export(w)
}

// Count returns the number of stored records.
func (m *MemoryLedger) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.len(), nil
}

// Close implements ports.AuditLedger.
func (m *MemoryLedger) Close() error { return nil }

var _ ports.AuditLedger = (*MemoryLedger)(nil)
