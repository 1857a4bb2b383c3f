package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/core/canon"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

func testOptions() Options {
	n := 0
	return Options{
		Labeler: canon.Default(),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
	}
}

// forEachBackend runs fn against every embedded backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s GraphStore)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore(testOptions())
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "graph.db"), testOptions())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func TestUpsertConvergesOnCanonicalLabel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		ctx := context.Background()

		id1, created, err := s.UpsertNode(ctx, model.NodeTypeItem, "Tomatoes", map[string]interface{}{"category": "Produce"})
		require.NoError(t, err)
		assert.True(t, created)

		id2, created, err := s.UpsertNode(ctx, model.NodeTypeItem, "2 tomatoes", map[string]interface{}{"note": "ripe"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, id1, id2)

		n, err := s.GetNode(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, "Tomatoes", n.Label, "first display label is kept")
		assert.Equal(t, "tomato", n.CanonicalKey)
		assert.Equal(t, "Produce", n.Properties["category"])
		assert.Equal(t, "ripe", n.Properties["note"])

		items, err := s.NodesByType(ctx, model.NodeTypeItem)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}

func TestUpsertSeparatesTypes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		ctx := context.Background()
		a, _, err := s.UpsertNode(ctx, model.NodeTypeItem, "lasagna", nil)
		require.NoError(t, err)
		b, _, err := s.UpsertNode(ctx, model.NodeTypeRecipe, "Lasagna", nil)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestUpsertRejectsEmptyInput(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		ctx := context.Background()
		_, _, err := s.UpsertNode(ctx, "", "milk", nil)
		assert.True(t, errors.Is(err, errs.ErrInvalidInput))

		_, _, err = s.UpsertNode(ctx, model.NodeTypeItem, "  ", nil)
		assert.True(t, errors.Is(err, errs.ErrInvalidInput))
	})
}

func TestUpdateNode(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		ctx := context.Background()
		milk, _, err := s.UpsertNode(ctx, model.NodeTypeItem, "milk", map[string]interface{}{"category": "Dairy & Eggs", "brand": "x"})
		require.NoError(t, err)
		eggs, _, err := s.UpsertNode(ctx, model.NodeTypeItem, "eggs", nil)
		require.NoError(t, err)

		n, err := s.UpdateNode(ctx, milk, nil, map[string]interface{}{"purchased": true}, true)
		require.NoError(t, err)
		assert.Equal(t, true, n.Properties["purchased"])
		assert.Equal(t, "x", n.Properties["brand"])

		n, err = s.UpdateNode(ctx, milk, nil, map[string]interface{}{"category": "Dairy & Eggs"}, false)
		require.NoError(t, err)
		assert.NotContains(t, n.Properties, "brand")

		label := "Oat milk"
		n, err = s.UpdateNode(ctx, milk, &label, nil, true)
		require.NoError(t, err)
		assert.Equal(t, "oat milk", n.CanonicalKey)
		found, err := s.FindNode(ctx, model.NodeTypeItem, "oat milks")
		require.NoError(t, err)
		assert.Equal(t, milk, found.ID)

		clash := "Egg"
		_, err = s.UpdateNode(ctx, milk, &clash, nil, true)
		assert.True(t, errors.Is(err, errs.ErrConflict))
		n, err = s.GetNode(ctx, eggs)
		require.NoError(t, err)
		assert.Equal(t, "egg", n.CanonicalKey)

		_, err = s.UpdateNode(ctx, "missing", nil, nil, true)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
	})
}

func TestCreateEdge(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		ctx := context.Background()
		recipe, _, err := s.UpsertNode(ctx, model.NodeTypeRecipe, "Lasagna", nil)
		require.NoError(t, err)
		pasta, _, err := s.UpsertNode(ctx, model.NodeTypeItem, "pasta", nil)
		require.NoError(t, err)

		e1, created, err := s.CreateEdge(ctx, model.EdgeTypeHasIngredient, recipe, pasta, nil)
		require.NoError(t, err)
		assert.True(t, created)

		e2, created, err := s.CreateEdge(ctx, model.EdgeTypeHasIngredient, recipe, pasta, map[string]interface{}{"qty": "1 box"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, e1, e2)

		_, _, err = s.CreateEdge(ctx, model.EdgeTypeHasIngredient, recipe, "ghost", nil)
		assert.True(t, errors.Is(err, errs.ErrDanglingReference))

		edges, err := s.EdgesFrom(ctx, recipe)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, pasta, edges[0].ToID)
	})
}

func TestQueryContextOrdersByRecency(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		ctx := context.Background()
		for _, l := range []string{"milk", "bread", "rice"} {
			_, _, err := s.UpsertNode(ctx, model.NodeTypeItem, l, nil)
			require.NoError(t, err)
		}
		_, _, err := s.UpsertNode(ctx, model.NodeTypeRecipe, "Soup", nil)
		require.NoError(t, err)
		// touching milk again moves it to the front
		_, _, err = s.UpsertNode(ctx, model.NodeTypeItem, "Milk", nil)
		require.NoError(t, err)

		nodes, err := s.QueryContext(ctx, []string{model.NodeTypeItem}, 2)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, "milk", nodes[0].CanonicalKey)
		assert.Equal(t, "rice", nodes[1].CanonicalKey)

		all, err := s.QueryContext(ctx, nil, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s GraphStore) {
		require.NoError(t, s.Close())
		_, _, err := s.UpsertNode(context.Background(), model.NodeTypeItem, "milk", nil)
		assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
		assert.True(t, errs.Retryable(err))
	})
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "graph.db")

	s, err := OpenSQLite(ctx, path, testOptions())
	require.NoError(t, err)
	id, _, err := s.UpsertNode(ctx, model.NodeTypeItem, "Coffee", map[string]interface{}{"category": "Beverages"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, testOptions())
	require.NoError(t, err)
	defer s.Close()
	n, err := s.FindNode(ctx, model.NodeTypeItem, "coffee")
	require.NoError(t, err)
	assert.Equal(t, id, n.ID)
	assert.Equal(t, "Beverages", n.Properties["category"])
}
