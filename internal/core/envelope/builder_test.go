package envelope

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

var fixedNow = time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

func newBuilder(t *testing.T, cfg Config) *Builder {
	b, err := NewBuilder(cfg, func() time.Time { return fixedNow })
	require.NoError(t, err)
	return b
}

func TestBuildDefaults(t *testing.T) {
	b := newBuilder(t, Config{})
	snapshot := model.GraphContext{Nodes: []model.ContextNode{{ID: "n1", Type: "item", Label: "Milk"}}}

	env, err := b.Build(model.Input{Channel: model.ChannelReminder, Text: "  milk and eggs ", SourceID: "r-1"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, DefaultUserID, env.UserID)
	assert.Equal(t, DefaultTimezone, env.Timezone)
	assert.Equal(t, model.ModeCapture, env.ModeHint)
	assert.Equal(t, "milk and eggs", env.UserText)
	assert.Equal(t, "r-1", env.SourceID)
	assert.True(t, env.Timestamp.Equal(fixedNow))
	assert.Equal(t, DefaultTimezone, env.Timestamp.Location().String())
	assert.Equal(t, snapshot, env.KGContext)
}

func TestBuildModeByChannel(t *testing.T) {
	b := newBuilder(t, Config{})
	for _, ch := range model.Channels {
		env, err := b.Build(model.Input{Channel: ch, Text: "x", SourceID: "s"}, model.GraphContext{})
		require.NoError(t, err)
		if ch == model.ChannelChat {
			assert.Equal(t, model.ModeQuery, env.ModeHint)
		} else {
			assert.Equal(t, model.ModeCapture, env.ModeHint, ch)
		}
		assert.NotNil(t, env.KGContext.Nodes)
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	b := newBuilder(t, Config{})
	cases := []model.Input{
		{Channel: "email", Text: "x", SourceID: "s"},
		{Channel: model.ChannelNote, Text: "   ", SourceID: "s"},
		{Channel: model.ChannelNote, Text: "x", SourceID: ""},
	}
	for _, in := range cases {
		_, err := b.Build(in, model.GraphContext{})
		assert.True(t, errors.Is(err, errs.ErrInvalidInput), "%+v", in)
	}
}

func TestBuildTruncatesLongText(t *testing.T) {
	b := newBuilder(t, Config{MaxTextRunes: 5})
	env, err := b.Build(model.Input{Channel: model.ChannelURLText, Text: strings.Repeat("é", 10), SourceID: "u"}, model.GraphContext{})
	require.NoError(t, err)
	assert.Equal(t, "ééééé", env.UserText)
}

func TestBuildKeepsInputTimestamp(t *testing.T) {
	b := newBuilder(t, Config{Timezone: "UTC", UserID: "me"})
	ts := time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)
	env, err := b.Build(model.Input{Channel: model.ChannelNote, Text: "x", SourceID: "n", Timestamp: ts}, model.GraphContext{})
	require.NoError(t, err)
	assert.Equal(t, "me", env.UserID)
	assert.True(t, env.Timestamp.Equal(ts))
}

func TestNewBuilderRejectsUnknownZone(t *testing.T) {
	_, err := NewBuilder(Config{Timezone: "Mars/Olympus"}, nil)
	assert.Error(t, err)
}
