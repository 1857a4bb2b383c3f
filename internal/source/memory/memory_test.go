package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

func TestSourceRoundTrip(t *testing.T) {
	s := New(model.ChannelReminder)
	ctx := context.Background()

	s.Put(source.Item{ID: "b", Title: "milk"})
	s.Put(source.Item{ID: "a", Title: "bread", Body: "sourdough"})
	s.Put(source.Item{ID: "b", Title: "oat milk"})

	items, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "oat milk", items[0].Title)
	assert.Equal(t, model.ChannelReminder, items[0].Channel)
	assert.Equal(t, "bread. sourdough", items[1].Text())

	require.NoError(t, s.Delete(ctx, "b"))
	assert.True(t, errors.Is(s.Delete(ctx, "b"), source.ErrNotFound))
	assert.Equal(t, []string{"b"}, s.Deleted())
	assert.Equal(t, []string{"a"}, s.IDs())

	s.FailWrite = errors.New("disk full")
	err = s.CreateOrReplaceDocument(ctx, "To Buy", "Groceries", "x")
	assert.True(t, errors.Is(err, errs.ErrExternalEffectFailure))
}
