package store

import (
	"context"
	"sort"
	"sync"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

// MemoryStore is an in-process GraphStore. Contents are lost on Close.
type MemoryStore struct {
	mu      sync.RWMutex
	opts    Options
	nodes   map[string]*model.Node
	byKey   map[string]string
	touched map[string]uint64
	seq     uint64
	edges   map[string]*model.Edge
	edgeIDs map[string]string
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:    opts.withDefaults(),
		nodes:   make(map[string]*model.Node),
		byKey:   make(map[string]string),
		touched: make(map[string]uint64),
		edges:   make(map[string]*model.Edge),
		edgeIDs: make(map[string]string),
	}
}

func (m *MemoryStore) checkOpen(op string) error {
	if m.closed {
		return errs.New(errs.KindStoreUnavailable, op, "store is closed")
	}
	return nil
}

func (m *MemoryStore) touch(n *model.Node) {
	m.seq++
	m.touched[n.ID] = m.seq
	n.UpdatedAt = m.opts.Now()
}

func (m *MemoryStore) UpsertNode(ctx context.Context, nodeType, label string, props map[string]interface{}) (string, bool, error) {
	const op = "store.UpsertNode"
	key := m.opts.Labeler.Key(label)
	if err := validateUpsert(op, nodeType, key); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(op); err != nil {
		return "", false, err
	}

	if id, ok := m.byKey[nodeKey(nodeType, key)]; ok {
		n := m.nodes[id]
		n.Properties = model.MergeProperties(n.Properties, props)
		m.touch(n)
		return id, false, nil
	}

	now := m.opts.Now()
	n := &model.Node{
		ID:           m.opts.NewID(),
		Type:         nodeType,
		Label:        m.opts.Labeler.Display(label),
		CanonicalKey: key,
		Properties:   model.MergeProperties(nil, props),
		CreatedAt:    now,
	}
	m.nodes[n.ID] = n
	m.byKey[nodeKey(nodeType, key)] = n.ID
	m.touch(n)
	return n.ID, true, nil
}

func (m *MemoryStore) UpdateNode(ctx context.Context, id string, label *string, props map[string]interface{}, merge bool) (*model.Node, error) {
	const op = "store.UpdateNode"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(op); err != nil {
		return nil, err
	}

	n, ok := m.nodes[id]
	if !ok {
		return nil, notFound(op, "node", id)
	}

	if label != nil {
		key := m.opts.Labeler.Key(*label)
		if key == "" {
			return nil, errs.New(errs.KindInvalidInput, op, "label is empty after canonicalization")
		}
		if owner, taken := m.byKey[nodeKey(n.Type, key)]; taken && owner != id {
			return nil, errs.New(errs.KindConflict, op, "label %q already belongs to node %s", *label, owner)
		}
		delete(m.byKey, nodeKey(n.Type, n.CanonicalKey))
		n.Label = m.opts.Labeler.Display(*label)
		n.CanonicalKey = key
		m.byKey[nodeKey(n.Type, key)] = id
	}

	if merge {
		n.Properties = model.MergeProperties(n.Properties, props)
	} else {
		n.Properties = model.MergeProperties(nil, props)
	}
	m.touch(n)

	out := copyNode(n)
	return &out, nil
}

func (m *MemoryStore) GetNode(ctx context.Context, id string) (*model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("store.GetNode"); err != nil {
		return nil, err
	}
	n, ok := m.nodes[id]
	if !ok {
		return nil, notFound("store.GetNode", "node", id)
	}
	out := copyNode(n)
	return &out, nil
}

func (m *MemoryStore) FindNode(ctx context.Context, nodeType, label string) (*model.Node, error) {
	key := m.opts.Labeler.Key(label)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("store.FindNode"); err != nil {
		return nil, err
	}
	id, ok := m.byKey[nodeKey(nodeType, key)]
	if !ok {
		return nil, notFound("store.FindNode", nodeType, label)
	}
	out := copyNode(m.nodes[id])
	return &out, nil
}

func (m *MemoryStore) CreateEdge(ctx context.Context, edgeType, fromID, toID string, props map[string]interface{}) (string, bool, error) {
	const op = "store.CreateEdge"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(op); err != nil {
		return "", false, err
	}

	for _, endpoint := range []string{fromID, toID} {
		if _, ok := m.nodes[endpoint]; !ok {
			return "", false, errs.New(errs.KindDanglingReference, op, "node %q does not exist", endpoint)
		}
	}
	if id, ok := m.edgeIDs[edgeKey(edgeType, fromID, toID)]; ok {
		return id, false, nil
	}

	now := m.opts.Now()
	e := &model.Edge{
		ID:         m.opts.NewID(),
		Type:       edgeType,
		FromID:     fromID,
		ToID:       toID,
		Properties: model.MergeProperties(nil, props),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.edges[e.ID] = e
	m.edgeIDs[edgeKey(edgeType, fromID, toID)] = e.ID
	return e.ID, true, nil
}

func (m *MemoryStore) EdgesFrom(ctx context.Context, fromID string) ([]model.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("store.EdgesFrom"); err != nil {
		return nil, err
	}
	var out []model.Edge
	for _, e := range m.edges {
		if e.FromID == fromID {
			c := *e
			c.Properties = model.CloneProperties(e.Properties)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) QueryContext(ctx context.Context, types []string, limit int) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("store.QueryContext"); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []model.Node
	for _, n := range m.nodes {
		if len(want) == 0 || want[n.Type] {
			out = append(out, copyNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.touched[out[i].ID] > m.touched[out[j].ID] })
	if l := limitOrDefault(limit); len(out) > l {
		out = out[:l]
	}
	return out, nil
}

func (m *MemoryStore) NodesByType(ctx context.Context, nodeType string) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("store.NodesByType"); err != nil {
		return nil, err
	}
	var out []model.Node
	for _, n := range m.nodes {
		if n.Type == nodeType {
			out = append(out, copyNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.touched[out[i].ID] < m.touched[out[j].ID] })
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyNode(n *model.Node) model.Node {
	c := *n
	c.Properties = model.CloneProperties(n.Properties)
	if c.Properties == nil {
		c.Properties = map[string]interface{}{}
	}
	return c
}
