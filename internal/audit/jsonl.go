package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
)

const maxLineBytes = 16 << 20

// JSONLLog writes one JSON record per line to a file opened for append.
type JSONLLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	// maxLine bounds a single record when reading; longer lines are skipped.
	maxLine int
}

func OpenJSONL(path string) (*JSONLLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log '%s': %w", path, err)
	}
	return &JSONLLog{path: path, file: f, maxLine: maxLineBytes}, nil
}

func (l *JSONLLog) Append(ctx context.Context, rec model.InteractionRecord) error {
	const op = "audit.JSONLLog.Append"
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode interaction record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return unavailable(op, os.ErrClosed)
	}
	if _, err := l.file.Write(line); err != nil {
		return unavailable(op, err)
	}
	if err := l.file.Sync(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Recent scans the file and keeps the last limit records. Lines that do not
// decode or exceed the line limit are skipped.
func (l *JSONLLog) Recent(ctx context.Context, limit int) ([]model.InteractionRecord, error) {
	const op = "audit.JSONLLog.Recent"
	limit = limitOrDefault(limit)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.InteractionRecord{}, nil
	}
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer f.Close()

	ring := make([]model.InteractionRecord, 0, limit)
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := readLine(r, l.maxLine)
		if len(line) > 0 {
			var rec model.InteractionRecord
			if json.Unmarshal(line, &rec) == nil {
				if len(ring) == limit {
					ring = append(ring[:0], ring[1:]...)
				}
				ring = append(ring, rec)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, unavailable(op, err)
		}
	}

	out := make([]model.InteractionRecord, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		out = append(out, ring[i])
	}
	return out, nil
}

// readLine returns the next line without its newline. A line longer than
// limit is consumed and returned as nil.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return nil, err
		}
		return bytes.TrimRight(line, "\r\n"), err
	}
}

func (l *JSONLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
