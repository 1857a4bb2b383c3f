// Package filesystem keeps captured items as text files in an inbox directory
// and writes checklist documents as HTML files.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

const itemExt = ".txt"

// Inbox lists the *.txt files of one directory as items of one channel. The
// first non-empty line is the title, the rest is the body. A file whose name
// ends in ".done.txt" is a completed item.
type Inbox struct {
	dir     string
	channel model.Channel
}

func NewInbox(dir string, channel model.Channel) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create inbox '%s': %w", dir, err)
	}
	return &Inbox{dir: dir, channel: channel}, nil
}

func (in *Inbox) Dir() string { return in.dir }

func (in *Inbox) ListPending(ctx context.Context) ([]source.Item, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, source.Failure("filesystem.ListPending", err, "failed to read inbox '%s'", in.dir)
	}

	items := make([]source.Item, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, itemExt) || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(in.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, source.Failure("filesystem.ListPending", err, "failed to read '%s'", name)
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		title, body := splitItem(string(data))
		items = append(items, source.Item{
			ID:        name,
			Channel:   in.channel,
			Title:     title,
			Body:      body,
			Container: filepath.Base(in.dir),
			Completed: strings.HasSuffix(name, ".done"+itemExt),
			Modified:  info.ModTime().UTC(),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Modified.Equal(items[j].Modified) {
			return items[i].Modified.Before(items[j].Modified)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (in *Inbox) Delete(ctx context.Context, id string) error {
	if id != filepath.Base(id) || !strings.HasSuffix(id, itemExt) {
		return source.NotFound("filesystem.Delete", id)
	}
	err := os.Remove(filepath.Join(in.dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return source.NotFound("filesystem.Delete", id)
	}
	if err != nil {
		return source.Failure("filesystem.Delete", err, "failed to delete '%s'", id)
	}
	return nil
}

func splitItem(content string) (title, body string) {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	title, body, _ = strings.Cut(content, "\n")
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

// Documents writes each document to <root>/<container>/<title>.html.
type Documents struct {
	root string
}

func NewDocuments(root string) *Documents {
	return &Documents{root: root}
}

// Path returns the file a document is written to.
func (d *Documents) Path(container, title string) string {
	return filepath.Join(d.root, safeName(container), safeName(title)+".html")
}

// CreateOrReplaceDocument writes through a temp file and a rename so readers
// never see a partial body.
func (d *Documents) CreateOrReplaceDocument(ctx context.Context, container, title, body string) error {
	const op = "filesystem.CreateOrReplaceDocument"
	path := d.Path(container, title)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return source.Failure(op, err, "failed to create container '%s'", container)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*")
	if err != nil {
		return source.Failure(op, err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return source.Failure(op, err, "failed to write '%s'", title)
	}
	if err := tmp.Close(); err != nil {
		return source.Failure(op, err, "failed to write '%s'", title)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return source.Failure(op, err, "failed to replace '%s'", title)
	}
	return nil
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
