package applescript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

type runCall struct {
	Script string
	Args   []string
}

// MockRunner records scripts and returns canned output.
type MockRunner struct {
	Output string
	Err    error
	Calls  []runCall
}

func (m *MockRunner) Run(ctx context.Context, script string, args ...string) (string, error) {
	m.Calls = append(m.Calls, runCall{Script: script, Args: args})
	return m.Output, m.Err
}

func record(fields ...string) string {
	return strings.Join(fields, fieldSep) + recordSep
}

func TestRemindersListPending(t *testing.T) {
	runner := &MockRunner{Output: record("x-apple-reminder://1", "Groceries", "2 boxes of pasta, rice, and tomatoes", "false", "Inbox") +
		record("x-apple-reminder://2", "milk", "missing value", "true", "Inbox") + "\n"}
	r := NewReminders(runner, "Inbox")

	items, err := r.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, source.Item{
		ID:        "x-apple-reminder://1",
		Channel:   model.ChannelReminder,
		Title:     "Groceries",
		Body:      "2 boxes of pasta, rice, and tomatoes",
		Container: "Inbox",
	}, items[0])
	assert.Equal(t, "", items[1].Body)
	assert.True(t, items[1].Completed)
	assert.Equal(t, []string{"Inbox"}, runner.Calls[0].Args)
}

func TestRemindersEmptyAndMalformed(t *testing.T) {
	items, err := NewReminders(&MockRunner{Output: ""}, "").ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = NewReminders(&MockRunner{Output: record("id", "name")}, "").ListPending(context.Background())
	assert.True(t, errors.Is(err, errs.ErrExternalEffectFailure))
}

func TestRemindersDelete(t *testing.T) {
	runner := &MockRunner{Output: "deleted"}
	r := NewReminders(runner, "")
	require.NoError(t, r.Delete(context.Background(), "x-apple-reminder://1"))
	assert.Equal(t, []string{"x-apple-reminder://1"}, runner.Calls[0].Args)

	runner.Output = "missing"
	assert.True(t, errors.Is(r.Delete(context.Background(), "gone"), source.ErrNotFound))

	runner.Err = errors.New("execution error")
	assert.True(t, errors.Is(r.Delete(context.Background(), "x"), errs.ErrExternalEffectFailure))
}

func TestNotesListAndWrite(t *testing.T) {
	runner := &MockRunner{Output: record("n-1", "Pesto", "Ingredients:\n- basil\n- pine nuts", "Recipes")}
	n := NewNotes(runner, "")

	items, err := n.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ChannelNote, items[0].Channel)
	assert.Equal(t, "Pesto. Ingredients:\n- basil\n- pine nuts", items[0].Text())

	body := `<div><h1>Groceries</h1>` + "\n" + `<h2>"Produce"</h2></div>`
	require.NoError(t, n.CreateOrReplaceDocument(context.Background(), "To Buy", "Groceries", body))
	last := runner.Calls[len(runner.Calls)-1]
	assert.Equal(t, []string{"To Buy", "Groceries", body}, last.Args, "values travel as argv, never spliced into the script")
	assert.NotContains(t, last.Script, "Groceries")
}
