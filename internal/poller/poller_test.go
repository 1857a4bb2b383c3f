package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/source"
	"github.com/gtalwar12/second-brain-poc/internal/source/memory"
)

// MockProcessor records inputs and fails source ids listed in Errs.
type MockProcessor struct {
	mu     sync.Mutex
	Inputs []model.Input
	Errs   map[string]error
}

func (m *MockProcessor) Process(ctx context.Context, in model.Input) (*core.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inputs = append(m.Inputs, in)
	err := m.Errs[in.SourceID]
	return &core.Result{Err: err}, err
}

func (m *MockProcessor) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		out = append(out, in.Text)
	}
	return out
}

func TestRunOnceSkipsHandledItems(t *testing.T) {
	reminders := memory.New(model.ChannelReminder)
	reminders.Put(source.Item{ID: "r-1", Title: "Groceries", Body: "2 boxes of pasta"})
	reminders.Put(source.Item{ID: "r-2", Title: "eggs", Completed: true})
	proc := &MockProcessor{}
	s := New(proc, []Stream{ReminderStream(reminders)}, Config{}, nil)
	ctx := context.Background()

	rep, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Seen: 2, Processed: 1, Skipped: 1}, rep)
	assert.Equal(t, []string{"Groceries. 2 boxes of pasta"}, proc.texts())
	assert.Equal(t, model.ChannelReminder, proc.Inputs[0].Channel)
	assert.Equal(t, "r-1", proc.Inputs[0].SourceID)

	rep, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Processed)
	assert.Len(t, proc.Inputs, 1)

	reminders.Put(source.Item{ID: "r-1", Title: "Groceries", Body: "2 boxes of pasta and rice"})
	rep, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Processed, "changed content is processed again")
	assert.Equal(t, map[model.Channel]int{model.ChannelReminder: 2}, s.Handled())
}

func TestNoteStreamFilters(t *testing.T) {
	notes := memory.New(model.ChannelNote)
	notes.Put(source.Item{ID: "n-1", Title: "Groceries", Body: "- Pasta"})
	notes.Put(source.Item{ID: "n-2", Title: "Pesto", Body: "Ingredients: basil, pine nuts"})
	notes.Put(source.Item{ID: "n-3", Title: "Meeting", Body: "call Sam at noon"})
	notes.Put(source.Item{ID: "n-4", Title: "Tacos", Body: "• tortillas\n• beef"})
	proc := &MockProcessor{}
	s := New(proc, []Stream{NoteStream(notes, "Groceries", []string{"Ingredient", "•", "-", "*"})}, Config{}, nil)

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Seen: 4, Processed: 2, Skipped: 2}, rep)
	assert.Equal(t, []string{"Pesto\nIngredients: basil, pine nuts", "Tacos\n• tortillas\n• beef"}, proc.texts())
}

func TestRetryableFailuresAreRetriedThenGivenUp(t *testing.T) {
	reminders := memory.New(model.ChannelReminder)
	reminders.Put(source.Item{ID: "r-1", Title: "milk"})
	reminders.Put(source.Item{ID: "r-2", Title: "bread"})
	proc := &MockProcessor{Errs: map[string]error{
		"r-1": errs.New(errs.KindInferenceUnavailable, "test", "backend down"),
		"r-2": errs.New(errs.KindInvalidInput, "test", "bad"),
	}}
	s := New(proc, []Stream{ReminderStream(reminders)}, Config{MaxAttempts: 2}, nil)
	ctx := context.Background()

	rep, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Seen: 2, Failed: 2}, rep)

	rep, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Seen: 2, Failed: 1, GaveUp: 1, Skipped: 1}, rep, "invalid input is not retried")

	rep, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Seen: 2, Skipped: 2}, rep)
	assert.Len(t, proc.Inputs, 3)
}

func TestStreamsRunIndependently(t *testing.T) {
	broken := memory.New(model.ChannelNote)
	broken.FailList = errors.New("Notes is not running")
	reminders := memory.New(model.ChannelReminder)
	reminders.Put(source.Item{ID: "r-1", Title: "milk"})
	proc := &MockProcessor{}
	s := New(proc, []Stream{NoteStream(broken, "Groceries", nil), ReminderStream(reminders)}, Config{}, nil)

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "note")
	assert.Equal(t, []string{"milk"}, proc.texts())
}

func TestPruneForgetsDeletedItems(t *testing.T) {
	reminders := memory.New(model.ChannelReminder)
	reminders.Put(source.Item{ID: "r-1", Title: "milk"})
	proc := &MockProcessor{}
	s := New(proc, []Stream{ReminderStream(reminders)}, Config{}, nil)
	ctx := context.Background()

	_, err := s.RunOnce(ctx)
	require.NoError(t, err)
	require.NoError(t, reminders.Delete(ctx, "r-1"))
	_, err = s.RunOnce(ctx)
	require.NoError(t, err)

	s.mu.Lock()
	assert.Empty(t, s.state)
	s.mu.Unlock()
}

func TestRunWakesEarly(t *testing.T) {
	reminders := memory.New(model.ChannelReminder)
	proc := &MockProcessor{}
	s := New(proc, []Stream{ReminderStream(reminders)}, Config{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	reminders.Put(source.Item{ID: "r-1", Title: "milk"})
	require.Eventually(t, func() bool {
		select {
		case s.Wake() <- struct{}{}:
		default:
		}
		return len(proc.texts()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
