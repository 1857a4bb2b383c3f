// Package source defines the capabilities the pipeline needs from the places
// items are captured in and the checklist document is written to.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

// ErrNotFound is returned by Delete when the item no longer exists.
var ErrNotFound = errs.ErrNotFound

// Item is one captured entry waiting in a source.
type Item struct {
	ID        string        `json:"id"`
	Channel   model.Channel `json:"channel"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Container string        `json:"container,omitempty"`
	Completed bool          `json:"completed"`
	Modified  time.Time     `json:"modified,omitempty"`
}

// Text joins title and body the way captured text is fed to the pipeline.
func (i Item) Text() string {
	title := strings.TrimSpace(i.Title)
	body := strings.TrimSpace(i.Body)
	switch {
	case body == "":
		return title
	case title == "":
		return body
	default:
		return title + ". " + body
	}
}

type Reader interface {
	ListPending(ctx context.Context) ([]Item, error)
}

// Deleter removes a processed item from its source.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// DocumentWriter fully replaces a named document inside a container,
// creating the container and the document when missing.
type DocumentWriter interface {
	CreateOrReplaceDocument(ctx context.Context, container, title, body string) error
}

// NotFound builds the error returned for a missing item.
func NotFound(op, id string) error {
	return errs.New(errs.KindNotFound, op, "item '%s' not found", id)
}

// Failure wraps a failed side effect as EXTERNAL_EFFECT_FAILURE.
func Failure(op string, err error, format string, args ...any) error {
	return errs.Wrap(errs.KindExternalEffectFailure, op, err, format, args...)
}
