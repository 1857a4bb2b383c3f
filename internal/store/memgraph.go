package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/driver"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

// MemgraphStore keeps the graph in Memgraph over Bolt.
type MemgraphStore struct {
	mu        sync.Mutex
	driver    driver.GraphDriver
	opts      Options
	lastTouch int64
}

func NewMemgraphStore(d driver.GraphDriver, opts Options) *MemgraphStore {
	return &MemgraphStore{driver: d, opts: opts.withDefaults()}
}

// nextTouch is strictly increasing within the process.
func (s *MemgraphStore) nextTouch(now time.Time) int64 {
	t := now.UnixNano()
	if t <= s.lastTouch {
		t = s.lastTouch + 1
	}
	s.lastTouch = t
	return t
}

func (s *MemgraphStore) UpsertNode(ctx context.Context, nodeType, label string, props map[string]interface{}) (string, bool, error) {
	const op = "store.UpsertNode"
	key := s.opts.Labeler.Key(label)
	if err := validateUpsert(op, nodeType, key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.queryNode(ctx, driver.FindNodeByKeyQuery, map[string]interface{}{
		"type":          nodeType,
		"canonical_key": key,
	})
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		merged := model.MergeProperties(existing.Properties, props)
		if err := s.writeNode(ctx, driver.UpdateNodeQuery, existing.ID, nodeType, existing.Label, key, merged); err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}

	id := s.opts.NewID()
	if err := s.writeNode(ctx, driver.CreateNodeQuery, id, nodeType, s.opts.Labeler.Display(label), key, model.MergeProperties(nil, props)); err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *MemgraphStore) writeNode(ctx context.Context, query, id, nodeType, label, key string, props map[string]interface{}) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return errs.Wrap(errs.KindInvalidInput, "store.writeNode", err, "properties are not serializable")
	}
	now := s.opts.Now()
	res, err := s.driver.ExecuteQuery(ctx, query, map[string]interface{}{
		"id":            id,
		"type":          nodeType,
		"label":         label,
		"canonical_key": key,
		"properties":    string(raw),
		"now":           now.Format(time.RFC3339Nano),
		"touch":         s.nextTouch(now),
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return notFound("store.writeNode", "node", id)
	}
	return nil
}

func (s *MemgraphStore) UpdateNode(ctx context.Context, id string, label *string, props map[string]interface{}, merge bool) (*model.Node, error) {
	const op = "store.UpdateNode"
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.queryNode(ctx, driver.GetNodeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, notFound(op, "node", id)
	}

	if label != nil {
		key := s.opts.Labeler.Key(*label)
		if key == "" {
			return nil, errs.New(errs.KindInvalidInput, op, "label is empty after canonicalization")
		}
		owner, err := s.queryNode(ctx, driver.FindNodeByKeyQuery, map[string]interface{}{
			"type":          n.Type,
			"canonical_key": key,
		})
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID != id {
			return nil, errs.New(errs.KindConflict, op, "label %q already belongs to node %s", *label, owner.ID)
		}
		n.Label = s.opts.Labeler.Display(*label)
		n.CanonicalKey = key
	}

	if merge {
		n.Properties = model.MergeProperties(n.Properties, props)
	} else {
		n.Properties = model.MergeProperties(nil, props)
	}
	if err := s.writeNode(ctx, driver.UpdateNodeQuery, n.ID, n.Type, n.Label, n.CanonicalKey, n.Properties); err != nil {
		return nil, err
	}
	n.UpdatedAt = s.opts.Now()
	return n, nil
}

func (s *MemgraphStore) GetNode(ctx context.Context, id string) (*model.Node, error) {
	n, err := s.queryNode(ctx, driver.GetNodeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, notFound("store.GetNode", "node", id)
	}
	return n, nil
}

func (s *MemgraphStore) FindNode(ctx context.Context, nodeType, label string) (*model.Node, error) {
	n, err := s.queryNode(ctx, driver.FindNodeByKeyQuery, map[string]interface{}{
		"type":          nodeType,
		"canonical_key": s.opts.Labeler.Key(label),
	})
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, notFound("store.FindNode", nodeType, label)
	}
	return n, nil
}

func (s *MemgraphStore) CreateEdge(ctx context.Context, edgeType, fromID, toID string, props map[string]interface{}) (string, bool, error) {
	const op = "store.CreateEdge"
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, endpoint := range []string{fromID, toID} {
		n, err := s.queryNode(ctx, driver.GetNodeQuery, map[string]interface{}{"id": endpoint})
		if err != nil {
			return "", false, err
		}
		if n == nil {
			return "", false, errs.New(errs.KindDanglingReference, op, "node %q does not exist", endpoint)
		}
	}

	pair := map[string]interface{}{"type": edgeType, "from_id": fromID, "to_id": toID}
	res, err := s.driver.ExecuteQuery(ctx, driver.FindEdgeQuery, pair)
	if err != nil {
		return "", false, err
	}
	if len(res.Records) > 0 {
		return recordString(res.Records[0], "id"), false, nil
	}

	raw, err := json.Marshal(model.MergeProperties(nil, props))
	if err != nil {
		return "", false, errs.Wrap(errs.KindInvalidInput, op, err, "properties are not serializable")
	}
	id := s.opts.NewID()
	pair["id"] = id
	pair["properties"] = string(raw)
	pair["now"] = s.opts.Now().Format(time.RFC3339Nano)
	res, err = s.driver.ExecuteQuery(ctx, driver.CreateEdgeQuery, pair)
	if err != nil {
		return "", false, err
	}
	if len(res.Records) == 0 {
		return "", false, errs.New(errs.KindDanglingReference, op, "endpoints vanished during edge creation")
	}
	return id, true, nil
}

func (s *MemgraphStore) EdgesFrom(ctx context.Context, fromID string) ([]model.Edge, error) {
	res, err := s.driver.ExecuteQuery(ctx, driver.EdgesFromQuery, map[string]interface{}{"from_id": fromID})
	if err != nil {
		return nil, err
	}
	edges := make([]model.Edge, 0, len(res.Records))
	for _, rec := range res.Records {
		e := model.Edge{
			ID:        recordString(rec, "id"),
			Type:      recordString(rec, "type"),
			FromID:    recordString(rec, "from_id"),
			ToID:      recordString(rec, "to_id"),
			CreatedAt: recordTime(rec, "created_at"),
			UpdatedAt: recordTime(rec, "updated_at"),
		}
		props, err := decodeProperties(recordString(rec, "properties"))
		if err != nil {
			return nil, err
		}
		e.Properties = props
		edges = append(edges, e)
	}
	return edges, nil
}

func (s *MemgraphStore) QueryContext(ctx context.Context, types []string, limit int) ([]model.Node, error) {
	if types == nil {
		types = []string{}
	}
	return s.queryNodes(ctx, driver.ContextQuery, map[string]interface{}{
		"types": types,
		"limit": int64(limitOrDefault(limit)),
	})
}

func (s *MemgraphStore) NodesByType(ctx context.Context, nodeType string) ([]model.Node, error) {
	return s.queryNodes(ctx, driver.NodesByTypeQuery, map[string]interface{}{"type": nodeType})
}

func (s *MemgraphStore) Close() error {
	return s.driver.Close(context.Background())
}

// queryNode returns nil without error when no record matches.
func (s *MemgraphStore) queryNode(ctx context.Context, query string, params map[string]interface{}) (*model.Node, error) {
	nodes, err := s.queryNodes(ctx, query, params)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return &nodes[0], nil
}

func (s *MemgraphStore) queryNodes(ctx context.Context, query string, params map[string]interface{}) ([]model.Node, error) {
	res, err := s.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	nodes := make([]model.Node, 0, len(res.Records))
	for _, rec := range res.Records {
		props, err := decodeProperties(recordString(rec, "properties"))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, model.Node{
			ID:           recordString(rec, "id"),
			Type:         recordString(rec, "type"),
			Label:        recordString(rec, "label"),
			CanonicalKey: recordString(rec, "canonical_key"),
			Properties:   props,
			CreatedAt:    recordTime(rec, "created_at"),
			UpdatedAt:    recordTime(rec, "updated_at"),
		})
	}
	return nodes, nil
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func recordTime(rec *neo4j.Record, key string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, recordString(rec, key))
	return t
}

func decodeProperties(raw string) (map[string]interface{}, error) {
	props := map[string]interface{}{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("failed to decode stored properties: %w", err)
	}
	return props, nil
}
