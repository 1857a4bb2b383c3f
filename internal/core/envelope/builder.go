// Package envelope builds the normalized request sent to inference.
package envelope

import (
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

const (
	DefaultUserID   = "local-user"
	DefaultTimezone = "America/Los_Angeles"
)

type Config struct {
	UserID   string
	Timezone string
	// MaxTextRunes truncates long inputs such as scraped pages. Zero disables.
	MaxTextRunes int
}

type Builder struct {
	cfg Config
	loc *time.Location
	now func() time.Time
}

// NewBuilder fails when the timezone is not a known IANA zone.
func NewBuilder(cfg Config, now func() time.Time) (*Builder, error) {
	if cfg.UserID == "" {
		cfg.UserID = DefaultUserID
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "envelope.NewBuilder", err, "unknown timezone %q", cfg.Timezone)
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{cfg: cfg, loc: loc, now: now}, nil
}

// Build validates the input and pairs it with the graph snapshot. The
// timestamp defaults to the current time and is expressed in the user's zone.
func (b *Builder) Build(in model.Input, snapshot model.GraphContext) (model.Envelope, error) {
	const op = "envelope.Build"
	if !in.Channel.Valid() {
		return model.Envelope{}, errs.New(errs.KindInvalidInput, op, "unknown channel %q", in.Channel)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return model.Envelope{}, errs.New(errs.KindInvalidInput, op, "text is empty")
	}
	sourceID := strings.TrimSpace(in.SourceID)
	if sourceID == "" {
		return model.Envelope{}, errs.New(errs.KindInvalidInput, op, "source id is empty")
	}

	if b.cfg.MaxTextRunes > 0 && utf8.RuneCountInString(text) > b.cfg.MaxTextRunes {
		text = string([]rune(text)[:b.cfg.MaxTextRunes])
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = b.now()
	}
	if snapshot.Nodes == nil {
		snapshot.Nodes = []model.ContextNode{}
	}

	return model.Envelope{
		UserID:    b.cfg.UserID,
		Timestamp: ts.In(b.loc),
		Timezone:  b.cfg.Timezone,
		Channel:   in.Channel,
		ModeHint:  model.ModeFor(in.Channel),
		UserText:  text,
		SourceID:  sourceID,
		KGContext: snapshot,
	}, nil
}
