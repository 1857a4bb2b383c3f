// Package poller periodically reads the sources and feeds new or changed
// items through the pipeline.
package poller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gtalwar12/second-brain-poc/internal/core"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

type Processor interface {
	Process(ctx context.Context, in model.Input) (*core.Result, error)
}

// Stream is one source polled sequentially.
type Stream struct {
	Channel model.Channel
	Reader  source.Reader
	// Filter reports whether an item should be processed; nil accepts all.
	Filter func(source.Item) bool
	// TextOf builds the captured text; nil uses Item.Text.
	TextOf func(source.Item) string
}

// ReminderStream skips completed reminders.
func ReminderStream(r source.Reader) Stream {
	return Stream{
		Channel: model.ChannelReminder,
		Reader:  r,
		Filter:  func(it source.Item) bool { return !it.Completed },
	}
}

// NoteStream skips the checklist note itself and notes that carry none of
// the hints. Note text is the title and body on separate lines.
func NoteStream(r source.Reader, checklistTitle string, hints []string) Stream {
	lowered := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			lowered = append(lowered, h)
		}
	}
	textOf := func(it source.Item) string {
		return strings.TrimSpace(it.Title + "\n" + it.Body)
	}
	return Stream{
		Channel: model.ChannelNote,
		Reader:  r,
		TextOf:  textOf,
		Filter: func(it source.Item) bool {
			if strings.EqualFold(strings.TrimSpace(it.Title), checklistTitle) {
				return false
			}
			if len(lowered) == 0 {
				return true
			}
			content := strings.ToLower(textOf(it))
			for _, h := range lowered {
				if strings.Contains(content, h) {
					return true
				}
			}
			return false
		},
	}
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Report counts what one cycle did.
type Report struct {
	Seen      int `json:"seen"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	GaveUp    int `json:"gave_up"`
}

func (r *Report) add(o Report) {
	r.Seen += o.Seen
	r.Processed += o.Processed
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.GaveUp += o.GaveUp
}

type entry struct {
	hash     string
	attempts int
	done     bool
}

type Scheduler struct {
	streams []Stream
	proc    Processor
	cfg     Config
	logger  *zap.Logger
	wake    chan struct{}

	mu      sync.Mutex
	state   map[string]*entry
	handled map[model.Channel]int
}

func New(proc Processor, streams []Stream, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		streams: streams,
		proc:    proc,
		cfg:     cfg,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		state:   make(map[string]*entry),
		handled: make(map[model.Channel]int),
	}
}

// Wake returns the channel that triggers an early cycle.
func (s *Scheduler) Wake() chan<- struct{} {
	return s.wake
}

// Run polls once immediately, then on every tick or wake-up, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("poll cycle incomplete", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// RunOnce polls every stream in parallel. Items within a stream are handled
// one at a time, and a failing stream does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	reports := make([]Report, len(s.streams))
	var g errgroup.Group
	for i := range s.streams {
		g.Go(func() error {
			rep, err := s.pollStream(ctx, s.streams[i])
			reports[i] = rep
			return err
		})
	}
	err := g.Wait()

	var total Report
	for _, r := range reports {
		total.add(r)
	}
	if total.Seen > 0 {
		s.logger.Debug("poll cycle finished",
			zap.Int("seen", total.Seen),
			zap.Int("processed", total.Processed),
			zap.Int("failed", total.Failed),
			zap.Int("skipped", total.Skipped))
	}
	return total, err
}

func (s *Scheduler) pollStream(ctx context.Context, st Stream) (Report, error) {
	var rep Report
	items, err := st.Reader.ListPending(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to list %s items: %w", st.Channel, err)
	}
	s.prune(st.Channel, items)

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Seen++
		if st.Filter != nil && !st.Filter(it) {
			rep.Skipped++
			continue
		}
		text := it.Text()
		if st.TextOf != nil {
			text = st.TextOf(it)
		}

		key := stateKey(st.Channel, it.ID)
		hash := contentHash(text)
		if !s.begin(key, hash) {
			rep.Skipped++
			continue
		}

		res, _ := s.proc.Process(ctx, model.Input{
			Channel:   st.Channel,
			Text:      text,
			SourceID:  it.ID,
			Timestamp: it.Modified,
		})
		switch gaveUp := s.finish(st.Channel, key, res); {
		case res == nil || !res.Failed():
			rep.Processed++
		case gaveUp:
			rep.Failed++
			rep.GaveUp++
			s.logger.Error("giving up on item",
				zap.String("channel", string(st.Channel)),
				zap.String("source_id", it.ID),
				zap.Int("max_attempts", s.cfg.MaxAttempts),
				zap.Error(res.Err))
		default:
			rep.Failed++
		}
	}
	return rep, nil
}

// begin reports whether the item needs processing. A changed hash resets
// the attempt counter.
func (s *Scheduler) begin(key, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state[key]
	if !ok || e.hash != hash {
		s.state[key] = &entry{hash: hash}
		return true
	}
	return !e.done
}

// finish records the outcome and reports whether the item was given up on.
func (s *Scheduler) finish(channel model.Channel, key string, res *core.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.state[key]
	if res == nil || !res.Failed() || !res.Retryable() {
		e.done = true
		s.handled[channel]++
		return false
	}
	e.attempts++
	if e.attempts >= s.cfg.MaxAttempts {
		e.done = true
		s.handled[channel]++
		return true
	}
	return false
}

// prune forgets items that are no longer listed so their state does not grow
// without bound.
func (s *Scheduler) prune(channel model.Channel, items []source.Item) {
	listed := make(map[string]bool, len(items))
	for _, it := range items {
		listed[stateKey(channel, it.ID)] = true
	}
	prefix := string(channel) + "\x00"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.state {
		if strings.HasPrefix(key, prefix) && !listed[key] {
			delete(s.state, key)
		}
	}
}

// Handled returns how many items per channel reached a final outcome.
func (s *Scheduler) Handled() map[model.Channel]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.Channel]int, len(s.handled))
	for ch, n := range s.handled {
		out[ch] = n
	}
	return out
}

func stateKey(channel model.Channel, id string) string {
	return string(channel) + "\x00" + id
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
