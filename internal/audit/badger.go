package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
)

const (
	prefixInteraction = "ix:"
	sequenceKey       = "seq:interactions"
)

// BadgerLog stores records under "ix:<seq>" so that key order is append order.
type BadgerLog struct {
	// mu is held for reading across Recent so Close waits for open iterators.
	mu  sync.RWMutex
	db  *badger.DB
	seq *badger.Sequence
}

func OpenBadger(path string) (*BadgerLog, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening interaction sequence: %w", err)
	}
	return &BadgerLog{db: db, seq: seq}, nil
}

func interactionKey(n uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixInteraction, n))
}

func (b *BadgerLog) Append(ctx context.Context, rec model.InteractionRecord) error {
	const op = "audit.BadgerLog.Append"
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode interaction record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return unavailable(op, badger.ErrDBClosed)
	}
	n, err := b.seq.Next()
	if err != nil {
		return unavailable(op, err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(interactionKey(n), value)
	}); err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (b *BadgerLog) Recent(ctx context.Context, limit int) ([]model.InteractionRecord, error) {
	const op = "audit.BadgerLog.Recent"
	limit = limitOrDefault(limit)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, unavailable(op, badger.ErrDBClosed)
	}

	out := make([]model.InteractionRecord, 0, limit)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixInteraction)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key not above the seek key.
		seek := append([]byte(prefixInteraction), 0xFF)
		for it.Seek(seek); it.Valid() && len(out) < limit; it.Next() {
			var rec model.InteractionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func (b *BadgerLog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	if err := b.seq.Release(); err != nil {
		b.db.Close()
		b.db = nil
		return err
	}
	err := b.db.Close()
	b.db = nil
	return err
}
