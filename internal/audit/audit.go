// Package audit is the append-only interaction log.
package audit

import (
	"context"
	"fmt"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

const DefaultRecentLimit = 20

// Log appends interaction records and reads back the most recent ones.
type Log interface {
	Append(ctx context.Context, rec model.InteractionRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]model.InteractionRecord, error)
	Close() error
}

// Open builds the log for a backend name: "jsonl", "badger" or "memory".
func Open(backend, path string) (Log, error) {
	switch backend {
	case "jsonl":
		return OpenJSONL(path)
	case "badger":
		return OpenBadger(path)
	case "memory", "":
		return NewMemoryLog(), nil
	default:
		return nil, fmt.Errorf("unknown audit backend: %s", backend)
	}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

func unavailable(op string, err error) error {
	return errs.Wrap(errs.KindStoreUnavailable, op, err, "audit log unavailable")
}
