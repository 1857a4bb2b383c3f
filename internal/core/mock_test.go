package core

import (
	"context"
	"errors"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/store"
)

type MockLLM struct {
	Response      string
	ResponseQueue []string
	Err           error
	Prompts       []string
}

func (m *MockLLM) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}

// MockAudit fails every Append with Err when set.
type MockAudit struct {
	Records []model.InteractionRecord
	Err     error
}

func (m *MockAudit) Append(ctx context.Context, rec model.InteractionRecord) error {
	if m.Err != nil {
		return m.Err
	}
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockAudit) Recent(ctx context.Context, limit int) ([]model.InteractionRecord, error) {
	return m.Records, nil
}

func (m *MockAudit) Close() error { return nil }

// FlakyStore wraps a GraphStore and fails QueryContext with Err when set.
type FlakyStore struct {
	store.GraphStore
	Err error
}

func (f *FlakyStore) QueryContext(ctx context.Context, types []string, limit int) ([]model.Node, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.GraphStore.QueryContext(ctx, types, limit)
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
