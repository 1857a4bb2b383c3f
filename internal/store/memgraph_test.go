package store

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/driver"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

// MockDriver replays queued results in order and records every query.
type MockDriver struct {
	Executed []executedQuery
	Results  []neo4j.EagerResult
	Err      error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.Results) == 0 {
		return neo4j.EagerResult{}, nil
	}
	res := m.Results[0]
	m.Results = m.Results[1:]
	return res, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }
func (m *MockDriver) Close(ctx context.Context) error        { return nil }

func nodeRecord(id, nodeType, label, key, props string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"id", "type", "label", "canonical_key", "properties", "created_at", "updated_at"},
		Values: []any{id, nodeType, label, key, props, "2026-01-02T03:04:05Z", "2026-01-02T03:04:05Z"},
	}
}

func idRecord(id string) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"id"}, Values: []any{id}}
}

func result(records ...*neo4j.Record) neo4j.EagerResult {
	return neo4j.EagerResult{Records: records}
}

func TestMemgraphUpsertCreatesNode(t *testing.T) {
	d := &MockDriver{Results: []neo4j.EagerResult{result(), result(idRecord("id-001"))}}
	s := NewMemgraphStore(d, testOptions())

	id, created, err := s.UpsertNode(context.Background(), model.NodeTypeItem, "2 boxes of pasta", map[string]interface{}{"category": "Pantry & Dry Goods"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "id-001", id)

	require.Len(t, d.Executed, 2)
	assert.Equal(t, driver.FindNodeByKeyQuery, d.Executed[0].Query)
	assert.Equal(t, "pasta", d.Executed[0].Params["canonical_key"])
	assert.Equal(t, driver.CreateNodeQuery, d.Executed[1].Query)
	assert.Equal(t, "Pasta", d.Executed[1].Params["label"])
	assert.JSONEq(t, `{"category":"Pantry & Dry Goods"}`, d.Executed[1].Params["properties"].(string))
}

func TestMemgraphUpsertMergesExisting(t *testing.T) {
	d := &MockDriver{Results: []neo4j.EagerResult{
		result(nodeRecord("n1", "item", "Tomatoes", "tomato", `{"category":"Produce"}`)),
		result(idRecord("n1")),
	}}
	s := NewMemgraphStore(d, testOptions())

	id, created, err := s.UpsertNode(context.Background(), model.NodeTypeItem, "tomato", map[string]interface{}{"note": "ripe"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "n1", id)

	require.Len(t, d.Executed, 2)
	assert.Equal(t, driver.UpdateNodeQuery, d.Executed[1].Query)
	assert.Equal(t, "Tomatoes", d.Executed[1].Params["label"])
	assert.JSONEq(t, `{"category":"Produce","note":"ripe"}`, d.Executed[1].Params["properties"].(string))
}

func TestMemgraphCreateEdgeDangling(t *testing.T) {
	d := &MockDriver{Results: []neo4j.EagerResult{
		result(nodeRecord("r1", "recipe", "Soup", "soup", `{}`)),
		result(),
	}}
	s := NewMemgraphStore(d, testOptions())

	_, _, err := s.CreateEdge(context.Background(), model.EdgeTypeHasIngredient, "r1", "ghost", nil)
	assert.True(t, errors.Is(err, errs.ErrDanglingReference))
	assert.Len(t, d.Executed, 2)
}

func TestMemgraphCreateEdgeExisting(t *testing.T) {
	d := &MockDriver{Results: []neo4j.EagerResult{
		result(nodeRecord("r1", "recipe", "Soup", "soup", `{}`)),
		result(nodeRecord("i1", "item", "Carrots", "carrot", `{}`)),
		result(idRecord("e1")),
	}}
	s := NewMemgraphStore(d, testOptions())

	id, created, err := s.CreateEdge(context.Background(), model.EdgeTypeHasIngredient, "r1", "i1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "e1", id)
	assert.Equal(t, driver.FindEdgeQuery, d.Executed[2].Query)
}

func TestMemgraphQueryContextDecodesNodes(t *testing.T) {
	d := &MockDriver{Results: []neo4j.EagerResult{
		result(
			nodeRecord("n2", "item", "Rice", "rice", `{"category":"Pantry & Dry Goods"}`),
			nodeRecord("n1", "item", "Milk", "milk", `{"purchased":true}`),
		),
	}}
	s := NewMemgraphStore(d, testOptions())

	nodes, err := s.QueryContext(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Rice", nodes[0].Label)
	assert.True(t, nodes[1].Purchased())
	assert.Equal(t, int64(DefaultContextLimit), d.Executed[0].Params["limit"])
	assert.Equal(t, []string{}, d.Executed[0].Params["types"])
}

func TestMemgraphPropagatesUnavailable(t *testing.T) {
	d := &MockDriver{Err: errs.New(errs.KindStoreUnavailable, "driver.ExecuteQuery", "connection refused")}
	s := NewMemgraphStore(d, testOptions())

	_, err := s.GetNode(context.Background(), "n1")
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
}
