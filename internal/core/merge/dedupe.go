package merge

import (
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
)

// nodeGroup is every create_node op of a batch that resolves to the same
// (type, canonical key). The group is applied as a single upsert.
type nodeGroup struct {
	nodeType   string
	key        string
	label      string
	indices    []int
	aliases    []string
	properties map[string]interface{}
}

// groupCreates collapses duplicate create_node ops in array order. The first
// op supplies the label; properties merge with later ops winning.
func (e *Engine) groupCreates(ops []model.GraphUpdateOp) []*nodeGroup {
	var groups []*nodeGroup
	byKey := make(map[string]*nodeGroup)

	for i, op := range ops {
		if op.OpType != model.OpCreateNode {
			continue
		}
		key := e.canon.Key(op.Payload.Label)
		k := op.Payload.Type + "\x00" + key
		g, ok := byKey[k]
		if !ok {
			g = &nodeGroup{
				nodeType: op.Payload.Type,
				key:      key,
				label:    op.Payload.Label,
			}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.indices = append(g.indices, i)
		g.aliases = append(g.aliases, op.Payload.ID)
		g.properties = model.MergeProperties(g.properties, op.Payload.Properties)
	}
	return groups
}
