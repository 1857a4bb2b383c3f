package gateway

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// closed forbids properties beyond the listed ones.
func closed(s *jsonschema.Schema) *jsonschema.Schema {
	s.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	return s
}

func enum(values ...string) *jsonschema.Schema {
	e := make([]any, len(values))
	for i, v := range values {
		e[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: e}
}

func optionalString(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"string", "null"}, Description: desc}
}

// OutputSchema describes the only model output the gateway accepts.
func OutputSchema() *jsonschema.Schema {
	layout := closed(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"sections": {
				Type: "array",
				Items: closed(&jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"name": {Type: "string", Description: "Grocery category"},
						"items": {
							Type: "array",
							Items: closed(&jsonschema.Schema{
								Type: "object",
								Properties: map[string]*jsonschema.Schema{
									"text": {Type: "string", Description: "Canonical item name"},
								},
								Required: []string{"text"},
							}),
						},
					},
					Required: []string{"name", "items"},
				}),
			},
		},
		Required: []string{"sections"},
	})

	updateChecklist := closed(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action_type": enum("update_checklist"),
			"arguments": closed(&jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"target_container": optionalString("Folder holding the checklist"),
					"target_title":     optionalString("Checklist document title"),
					"layout":           layout,
				},
				Required: []string{"layout"},
			}),
		},
		Required: []string{"action_type", "arguments"},
	})

	deleteSource := closed(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action_type": enum("delete_source_item"),
			"arguments": closed(&jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"source_id": optionalString("Id of the item that was processed"),
				},
			}),
		},
		Required: []string{"action_type", "arguments"},
	})

	graphUpdate := closed(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"op_type": enum("create_node", "update_node", "create_edge"),
			"payload": closed(&jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"id":         optionalString("Batch-local alias or existing node id"),
					"type":       optionalString("item, recipe or has_ingredient"),
					"label":      optionalString("Human readable label"),
					"properties": {Types: []string{"object", "null"}},
					"from_id":    optionalString("Edge source"),
					"to_id":      optionalString("Edge target"),
					"merge":      {Types: []string{"boolean", "null"}},
				},
			}),
		},
		Required: []string{"op_type", "payload"},
	})

	return closed(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"interaction_intent": enum("store_only", "answer_only", "store_and_answer"),
			"answer":             {Type: "string"},
			"graph_updates":      {Type: "array", Items: graphUpdate},
			"actions":            {Type: "array", Items: &jsonschema.Schema{OneOf: []*jsonschema.Schema{updateChecklist, deleteSource}}},
		},
		Required: []string{"interaction_intent", "answer", "graph_updates", "actions"},
	})
}
