package model

import "time"

const (
	NodeTypeItem   = "item"
	NodeTypeRecipe = "recipe"
)

// Well-known node property keys.
const (
	PropCategory  = "category"
	PropPurchased = "purchased"
)

type Node struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Label        string                 `json:"label"`
	CanonicalKey string                 `json:"canonical_key"`
	Properties   map[string]interface{} `json:"properties"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Category returns the category property, or "" when unset.
func (n Node) Category() string {
	c, _ := n.Properties[PropCategory].(string)
	return c
}

// Purchased reports whether the item was checked off.
func (n Node) Purchased() bool {
	p, _ := n.Properties[PropPurchased].(bool)
	return p
}

// ContextNode is the trimmed view of a node sent to the model as kg_context.
type ContextNode struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Label      string                 `json:"label"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type GraphContext struct {
	Nodes []ContextNode `json:"nodes"`
}

// NewGraphContext trims nodes to their context view.
func NewGraphContext(nodes []Node) GraphContext {
	ctx := GraphContext{Nodes: make([]ContextNode, 0, len(nodes))}
	for _, n := range nodes {
		ctx.Nodes = append(ctx.Nodes, ContextNode{
			ID:         n.ID,
			Type:       n.Type,
			Label:      n.Label,
			Properties: CloneProperties(n.Properties),
		})
	}
	return ctx
}

// CloneProperties returns a shallow copy; nil stays nil.
func CloneProperties(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return nil
	}
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// MergeProperties copies src over dst (new keys win) and returns dst.
func MergeProperties(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
