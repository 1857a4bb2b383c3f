package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Intent string

const (
	IntentStoreOnly      Intent = "store_only"
	IntentAnswerOnly     Intent = "answer_only"
	IntentStoreAndAnswer Intent = "store_and_answer"
)

// ValidatedOutput is model output that passed every schema check.
type ValidatedOutput struct {
	InteractionIntent Intent          `json:"interaction_intent" validate:"required,oneof=store_only answer_only store_and_answer"`
	Answer            string          `json:"answer"`
	GraphUpdates      []GraphUpdateOp `json:"graph_updates" validate:"dive"`
	Actions           []ActionIntent  `json:"actions" validate:"dive"`
}

type OpType string

const (
	OpCreateNode OpType = "create_node"
	OpUpdateNode OpType = "update_node"
	OpCreateEdge OpType = "create_edge"
)

// GraphUpdateOp is a proposed mutation. It never touches the store directly.
type GraphUpdateOp struct {
	OpType  OpType    `json:"op_type" validate:"required,oneof=create_node update_node create_edge"`
	Payload OpPayload `json:"payload"`
}

type OpPayload struct {
	ID         string                 `json:"id,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Label      string                 `json:"label,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	FromID     string                 `json:"from_id,omitempty"`
	ToID       string                 `json:"to_id,omitempty"`
	Merge      *bool                  `json:"merge,omitempty"`
}

func (op GraphUpdateOp) IsNodeOp() bool {
	return op.OpType == OpCreateNode || op.OpType == OpUpdateNode
}

// MergeProperties reports whether an update merges into existing properties
// rather than replacing them. Merging is the default.
func (p OpPayload) MergeProperties() bool {
	return p.Merge == nil || *p.Merge
}

// Check returns the structural problems of a single op, or nil.
func (op GraphUpdateOp) Check() []string {
	var problems []string
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	p := op.Payload
	switch op.OpType {
	case OpCreateNode:
		if blank(p.Type) {
			problems = append(problems, "create_node requires payload.type")
		}
		if blank(p.Label) {
			problems = append(problems, "create_node requires payload.label")
		}
	case OpUpdateNode:
		if blank(p.ID) {
			problems = append(problems, "update_node requires payload.id")
		}
	case OpCreateEdge:
		if blank(p.Type) {
			problems = append(problems, "create_edge requires payload.type")
		}
		if blank(p.FromID) || blank(p.ToID) {
			problems = append(problems, "create_edge requires payload.from_id and payload.to_id")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown op_type %q", op.OpType))
	}
	return problems
}

type ActionType string

const (
	ActionUpdateChecklist  ActionType = "update_checklist"
	ActionDeleteSourceItem ActionType = "delete_source_item"
)

// ActionIntent is a tagged variant: exactly one of Checklist or DeleteSource
// is set for the known action types. Arguments of unknown types are kept raw.
type ActionIntent struct {
	Type         ActionType
	Checklist    *UpdateChecklistArgs
	DeleteSource *DeleteSourceArgs
	RawArguments json.RawMessage
}

type UpdateChecklistArgs struct {
	TargetContainer string `json:"target_container"`
	TargetTitle     string `json:"target_title"`
	Layout          Layout `json:"layout"`
}

type DeleteSourceArgs struct {
	SourceID string `json:"source_id"`
}

// Layout is an ordered list of named sections of item labels.
type Layout struct {
	Sections []Section `json:"sections"`
}

type Section struct {
	Name  string       `json:"name"`
	Items []LayoutItem `json:"items"`
}

type LayoutItem struct {
	Text string `json:"text"`
}

// ItemCount is the number of items across all sections.
func (l Layout) ItemCount() int {
	n := 0
	for _, s := range l.Sections {
		n += len(s.Items)
	}
	return n
}

type actionWire struct {
	ActionType ActionType      `json:"action_type"`
	Arguments  json.RawMessage `json:"arguments"`
}

func (a ActionIntent) MarshalJSON() ([]byte, error) {
	var args interface{}
	switch {
	case a.Checklist != nil:
		args = a.Checklist
	case a.DeleteSource != nil:
		args = a.DeleteSource
	case len(a.RawArguments) > 0:
		args = a.RawArguments
	default:
		args = struct{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionWire{ActionType: a.Type, Arguments: raw})
}

func (a *ActionIntent) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := decodeStrict(data, &w); err != nil {
		return fmt.Errorf("action: %w", err)
	}
	*a = ActionIntent{Type: w.ActionType, RawArguments: w.Arguments}
	switch w.ActionType {
	case ActionUpdateChecklist:
		var args UpdateChecklistArgs
		if err := decodeStrict(w.Arguments, &args); err != nil {
			return fmt.Errorf("update_checklist arguments: %w", err)
		}
		a.Checklist = &args
	case ActionDeleteSourceItem:
		var args DeleteSourceArgs
		if err := decodeStrict(w.Arguments, &args); err != nil {
			return fmt.Errorf("delete_source_item arguments: %w", err)
		}
		a.DeleteSource = &args
	}
	return nil
}

func decodeStrict(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
