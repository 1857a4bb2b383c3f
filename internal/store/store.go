// Package store provides the graph store used by the merge engine.
//
// A GraphStore keeps nodes unique per (type, canonical label): UpsertNode
// finds an existing node through the configured Labeler before inserting.
// Edges are unique per (type, from, to). Nodes and edges are never deleted.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

// DefaultContextLimit bounds QueryContext when the caller passes no limit.
const DefaultContextLimit = 50

// GraphStore defines the storage contract. Implementations must be safe for
// concurrent use.
type GraphStore interface {
	// UpsertNode returns the id of the node matching (nodeType, label), merging
	// props into it (new keys win), or inserts a new node.
	UpsertNode(ctx context.Context, nodeType, label string, props map[string]interface{}) (id string, created bool, err error)

	// UpdateNode changes properties (merged or replaced) and optionally relabels a node.
	UpdateNode(ctx context.Context, id string, label *string, props map[string]interface{}, merge bool) (*model.Node, error)

	// GetNode returns errs.ErrNotFound when the id is unknown.
	GetNode(ctx context.Context, id string) (*model.Node, error)

	// FindNode looks a node up by type and canonical label.
	FindNode(ctx context.Context, nodeType, label string) (*model.Node, error)

	// CreateEdge fails with errs.ErrDanglingReference when an endpoint is missing
	// and returns the existing id when the same typed ordered pair is linked.
	CreateEdge(ctx context.Context, edgeType, fromID, toID string, props map[string]interface{}) (id string, created bool, err error)

	EdgesFrom(ctx context.Context, fromID string) ([]model.Edge, error)

	// QueryContext returns the most recently touched nodes of the given types
	// (all types when empty), newest first.
	QueryContext(ctx context.Context, types []string, limit int) ([]model.Node, error)

	NodesByType(ctx context.Context, nodeType string) ([]model.Node, error)

	Close() error
}

// Labeler canonicalizes labels. canon.Canonicalizer implements it.
type Labeler interface {
	Key(label string) string
	Display(label string) string
}

// Options are shared by every backend.
type Options struct {
	Labeler Labeler
	Now     func() time.Time
	NewID   func() string
}

func (o Options) withDefaults() Options {
	if o.Labeler == nil {
		o.Labeler = plainLabeler{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// plainLabeler only lowercases; used when no canonicalizer is configured.
type plainLabeler struct{}

func (plainLabeler) Key(label string) string     { return strings.ToLower(strings.TrimSpace(label)) }
func (plainLabeler) Display(label string) string { return strings.TrimSpace(label) }

func nodeKey(nodeType, canonicalKey string) string {
	return nodeType + "\x00" + canonicalKey
}

func edgeKey(edgeType, fromID, toID string) string {
	return edgeType + "\x00" + fromID + "\x00" + toID
}

func validateUpsert(op, nodeType, key string) error {
	if strings.TrimSpace(nodeType) == "" {
		return errs.New(errs.KindInvalidInput, op, "node type is required")
	}
	if key == "" {
		return errs.New(errs.KindInvalidInput, op, "label is empty after canonicalization")
	}
	return nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultContextLimit
	}
	return limit
}

func notFound(op, what, id string) error {
	return errs.New(errs.KindNotFound, op, "%s %q not found", what, id)
}
