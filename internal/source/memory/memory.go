// Package memory is an in-process source used by tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

// Document is a stored checklist body.
type Document struct {
	Container string
	Title     string
	Body      string
	Writes    int
}

// Source keeps items and documents in maps. Fail* hooks inject errors.
type Source struct {
	mu        sync.Mutex
	channel   model.Channel
	items     map[string]source.Item
	order     []string
	documents map[string]*Document
	deleted   []string

	FailList   error
	FailDelete error
	FailWrite  error
}

func New(channel model.Channel) *Source {
	return &Source{
		channel:   channel,
		items:     make(map[string]source.Item),
		documents: make(map[string]*Document),
	}
}

// Put adds or replaces an item, keeping insertion order for listing.
func (s *Source) Put(item source.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Channel == "" {
		item.Channel = s.channel
	}
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

func (s *Source) ListPending(ctx context.Context) ([]source.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != nil {
		return nil, s.FailList
	}
	out := make([]source.Item, 0, len(s.items))
	for _, id := range s.order {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Source) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return source.Failure("memory.Delete", s.FailDelete, "failed to delete '%s'", id)
	}
	if _, ok := s.items[id]; !ok {
		return source.NotFound("memory.Delete", id)
	}
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *Source) CreateOrReplaceDocument(ctx context.Context, container, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrite != nil {
		return source.Failure("memory.CreateOrReplaceDocument", s.FailWrite, "failed to write '%s'", title)
	}
	key := container + "/" + title
	doc, ok := s.documents[key]
	if !ok {
		doc = &Document{Container: container, Title: title}
		s.documents[key] = doc
	}
	doc.Body = body
	doc.Writes++
	return nil
}

// Document returns a copy of the stored document.
func (s *Source) Document(container, title string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[container+"/"+title]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// Deleted lists deleted ids in deletion order.
func (s *Source) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.deleted...)
	return out
}

// IDs lists the ids still present, sorted.
func (s *Source) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
