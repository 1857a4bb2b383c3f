package audit

import (
	"context"
	"sync"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

type MemoryLog struct {
	mu      sync.RWMutex
	records []model.InteractionRecord
	closed  bool
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Append(ctx context.Context, rec model.InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.New(errs.KindStoreUnavailable, "audit.MemoryLog.Append", "log is closed")
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryLog) Recent(ctx context.Context, limit int) ([]model.InteractionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = limitOrDefault(limit)
	out := make([]model.InteractionRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// All returns every record in append order.
func (m *MemoryLog) All() []model.InteractionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.InteractionRecord(nil), m.records...)
}

func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
