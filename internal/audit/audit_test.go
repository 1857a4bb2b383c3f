package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

func rec(i int) model.InteractionRecord {
	return model.InteractionRecord{
		ID:        fmt.Sprintf("ix-%02d", i),
		Timestamp: time.Date(2026, 1, 1, 9, i, 0, 0, time.UTC),
		Input:     model.Input{Channel: model.ChannelReminder, Text: "milk", SourceID: fmt.Sprintf("r-%d", i)},
		Stages:    []model.Stage{model.StageReceived, model.StageLogged},
	}
}

func forEachLog(t *testing.T, fn func(t *testing.T, open func() Log)) {
	t.Run("memory", func(t *testing.T) {
		l := NewMemoryLog()
		fn(t, func() Log { return l })
	})
	t.Run("jsonl", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "interactions.jsonl")
		fn(t, func() Log {
			l, err := OpenJSONL(path)
			require.NoError(t, err)
			t.Cleanup(func() { l.Close() })
			return l
		})
	})
	t.Run("badger", func(t *testing.T) {
		dir := t.TempDir()
		fn(t, func() Log {
			l, err := OpenBadger(dir)
			require.NoError(t, err)
			t.Cleanup(func() { l.Close() })
			return l
		})
	})
}

func TestAppendAndRecent(t *testing.T) {
	forEachLog(t, func(t *testing.T, open func() Log) {
		ctx := context.Background()
		l := open()
		for i := 1; i <= 5; i++ {
			require.NoError(t, l.Append(ctx, rec(i)))
		}

		recent, err := l.Recent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "ix-05", recent[0].ID)
		assert.Equal(t, "ix-03", recent[2].ID)
		assert.Equal(t, []model.Stage{model.StageReceived, model.StageLogged}, recent[0].Stages)

		all, err := l.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestLogSurvivesReopen(t *testing.T) {
	for _, backend := range []string{"jsonl", "badger"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "audit")
			l, err := Open(backend, path)
			require.NoError(t, err)
			require.NoError(t, l.Append(ctx, rec(1)))
			require.NoError(t, l.Close())

			l, err = Open(backend, path)
			require.NoError(t, err)
			defer l.Close()
			require.NoError(t, l.Append(ctx, rec(2)))

			recent, err := l.Recent(ctx, 10)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "ix-02", recent[0].ID)
			assert.Equal(t, "ix-01", recent[1].ID)
		})
	}
}

func TestJSONLSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.jsonl")
	l, err := OpenJSONL(path)
	require.NoError(t, err)
	defer l.Close()
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, rec(1)))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, l.Append(ctx, rec(2)))

	recent, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestJSONLSkipsOverlongLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.jsonl")
	l, err := OpenJSONL(path)
	require.NoError(t, err)
	defer l.Close()
	l.maxLine = 1024
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, rec(1)))
	big := rec(2)
	big.RawModelOutput = strings.Repeat("x", 200*1024)
	require.NoError(t, l.Append(ctx, big))
	require.NoError(t, l.Append(ctx, rec(3)))

	recent, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ix-03", recent[0].ID)
	assert.Equal(t, "ix-01", recent[1].ID)
}

func TestBadgerCloseWaitsForReaders(t *testing.T) {
	l, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	for i := 1; i <= 50; i++ {
		require.NoError(t, l.Append(ctx, rec(i)))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				recent, err := l.Recent(ctx, 50)
				if err != nil {
					assert.True(t, errors.Is(err, errs.ErrStoreUnavailable), "got %v", err)
					return
				}
				assert.Len(t, recent, 50)
			}
		}()
	}
	require.NoError(t, l.Close())
	wg.Wait()

	_, err = l.Recent(ctx, 1)
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
}

func TestAppendAfterCloseIsUnavailable(t *testing.T) {
	l, err := OpenJSONL(filepath.Join(t.TempDir(), "i.jsonl"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	err = l.Append(context.Background(), rec(1))
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))

	_, err = Open("kafka", "")
	assert.Error(t, err)
}
