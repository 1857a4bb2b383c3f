package model

import "time"

// Stage is a step of the per-interaction state machine.
type Stage string

const (
	StageReceived        Stage = "received"
	StageEnvelopeBuilt   Stage = "envelope_built"
	StageInferred        Stage = "inferred"
	StageGraphMerged     Stage = "graph_merged"
	StageActionsExecuted Stage = "actions_executed"
	StageLogged          Stage = "logged"
	StageFailed          Stage = "failed"
)

type OpStatus string

const (
	OpStatusCreated  OpStatus = "created"
	OpStatusUpdated  OpStatus = "updated"
	OpStatusMerged   OpStatus = "merged"
	OpStatusExisting OpStatus = "existing"
	OpStatusSkipped  OpStatus = "skipped"
)

// OpResult reports what happened to one GraphUpdateOp of a batch.
type OpResult struct {
	Index     int      `json:"index"`
	OpType    OpType   `json:"op_type"`
	Alias     string   `json:"alias,omitempty"`
	ID        string   `json:"id,omitempty"`
	Type      string   `json:"type,omitempty"`
	Label     string   `json:"label,omitempty"`
	Status    OpStatus `json:"status"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

type ActionStatus string

const (
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
	ActionRejected  ActionStatus = "rejected"
)

type ActionResult struct {
	Index      int          `json:"index"`
	ActionType ActionType   `json:"action_type"`
	Status     ActionStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	Detail     string       `json:"detail,omitempty"`
	Error      string       `json:"error,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
}

// InteractionRecord is one append-only audit log entry.
type InteractionRecord struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	Input          Input            `json:"input"`
	Envelope       *Envelope        `json:"envelope,omitempty"`
	RawModelOutput string           `json:"raw_model_output,omitempty"`
	Output         *ValidatedOutput `json:"model_output,omitempty"`
	AppliedOps     []OpResult       `json:"applied_ops"`
	ActionResults  []ActionResult   `json:"action_results"`
	Stages         []Stage          `json:"stages"`
	FailedStage    Stage            `json:"failed_stage,omitempty"`
	Errors         []string         `json:"errors"`
}
