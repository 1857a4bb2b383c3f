package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/audit"
	"github.com/gtalwar12/second-brain-poc/internal/core/actions"
	"github.com/gtalwar12/second-brain-poc/internal/core/envelope"
	"github.com/gtalwar12/second-brain-poc/internal/core/gateway"
	"github.com/gtalwar12/second-brain-poc/internal/core/merge"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/metrics"
	"github.com/gtalwar12/second-brain-poc/internal/store"
)

// Brain runs one interaction at a time through envelope, inference, merge,
// actions and the audit log.
type Brain struct {
	Store     store.GraphStore
	Envelopes *envelope.Builder
	Gateway   *gateway.Gateway
	Merger    *merge.Engine
	Actions   *actions.Executor
	Audit     audit.Log

	contextTypes []string
	contextLimit int
	logger       *zap.Logger
	metrics      *metrics.Collector
	now          func() time.Time
	newID        func() string

	mu    sync.Mutex
	stats map[model.Channel]*ChannelStats
}

type Options struct {
	// ContextTypes restricts the graph snapshot sent to the model; empty means all.
	ContextTypes []string
	ContextLimit int
	Logger       *zap.Logger
	Metrics      *metrics.Collector
	Now          func() time.Time
	NewID        func() string
}

type ChannelStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

func NewBrain(s store.GraphStore, envelopes *envelope.Builder, gw *gateway.Gateway, merger *merge.Engine,
	executor *actions.Executor, log audit.Log, opts Options) *Brain {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = store.DefaultContextLimit
	}
	return &Brain{
		Store:        s,
		Envelopes:    envelopes,
		Gateway:      gw,
		Merger:       merger,
		Actions:      executor,
		Audit:        log,
		contextTypes: opts.ContextTypes,
		contextLimit: opts.ContextLimit,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		now:          opts.Now,
		newID:        opts.NewID,
		stats:        make(map[model.Channel]*ChannelStats),
	}
}

// Result is the outcome of one interaction. Err is nil only when every stage
// completed and every action succeeded.
type Result struct {
	Record model.InteractionRecord
	Err    error
}

func (r *Result) Failed() bool { return r.Err != nil }

// Retryable reports whether the source item should stay for the next poll.
func (r *Result) Retryable() bool { return r.Err != nil && errs.Retryable(r.Err) }

// Answer is the model's reply for answer intents, or "".
func (r *Result) Answer() string {
	if r.Record.Output == nil {
		return ""
	}
	return r.Record.Output.Answer
}

// Process runs in through every stage. The interaction is always written to
// the audit log, whether or not it failed. The returned error equals
// Result.Err unless the audit write itself failed.
func (b *Brain) Process(ctx context.Context, in model.Input) (*Result, error) {
	rec := model.InteractionRecord{
		ID:            b.newID(),
		Timestamp:     b.now(),
		Input:         in,
		AppliedOps:    []model.OpResult{},
		ActionResults: []model.ActionResult{},
		Stages:        []model.Stage{model.StageReceived},
		Errors:        []string{},
	}
	res := &Result{}
	logger := b.logger.With(
		zap.String("interaction_id", rec.ID),
		zap.String("channel", string(in.Channel)),
		zap.String("source_id", in.SourceID))

	b.run(ctx, &rec, res, logger)

	rec.Stages = append(rec.Stages, model.StageLogged)
	res.Record = rec
	b.record(in.Channel, res)

	if err := b.Audit.Append(ctx, rec); err != nil {
		logger.Error("failed to write interaction record", zap.Error(err))
		if res.Err == nil {
			res.Err = err
		}
		return res, err
	}

	if res.Err != nil {
		logger.Warn("interaction failed",
			zap.String("stage", string(rec.FailedStage)),
			zap.String("kind", string(errs.KindOf(res.Err))),
			zap.Bool("retryable", res.Retryable()),
			zap.Error(res.Err))
	} else {
		logger.Info("interaction processed",
			zap.Int("graph_ops", len(rec.AppliedOps)),
			zap.Int("actions", len(rec.ActionResults)))
	}
	return res, res.Err
}

func (b *Brain) run(ctx context.Context, rec *model.InteractionRecord, res *Result, logger *zap.Logger) {
	fail := func(stage model.Stage, err error) {
		rec.FailedStage = stage
		rec.Stages = append(rec.Stages, model.StageFailed)
		rec.Errors = append(rec.Errors, err.Error())
		res.Err = err
	}

	snapshot, err := b.Store.QueryContext(ctx, b.contextTypes, b.contextLimit)
	if err != nil {
		fail(model.StageEnvelopeBuilt, fmt.Errorf("failed to read graph context: %w", err))
		return
	}
	env, err := b.Envelopes.Build(rec.Input, model.NewGraphContext(snapshot))
	if err != nil {
		fail(model.StageEnvelopeBuilt, err)
		return
	}
	rec.Envelope = &env
	rec.Stages = append(rec.Stages, model.StageEnvelopeBuilt)

	inferred, err := b.Gateway.Call(ctx, env)
	rec.RawModelOutput = inferred.Raw
	if err != nil {
		fail(model.StageInferred, err)
		return
	}
	rec.Output = inferred.Output
	rec.Stages = append(rec.Stages, model.StageInferred)
	logger.Debug("model output accepted",
		zap.Int("attempts", inferred.Attempts),
		zap.String("intent", string(inferred.Output.InteractionIntent)))

	batch, err := b.Merger.Apply(ctx, inferred.Output.GraphUpdates)
	if batch.Ops != nil {
		rec.AppliedOps = batch.Ops
	}
	for _, op := range rec.AppliedOps {
		b.metrics.RecordGraphOp(string(op.OpType), string(op.Status))
		if op.Error != "" {
			rec.Errors = append(rec.Errors, fmt.Sprintf("graph_updates[%d]: %s", op.Index, op.Error))
		}
	}
	if err != nil {
		fail(model.StageGraphMerged, err)
		return
	}
	rec.Stages = append(rec.Stages, model.StageGraphMerged)

	rec.ActionResults = b.Actions.Execute(ctx, actions.ExecContext{
		Channel:  env.Channel,
		SourceID: env.SourceID,
	}, inferred.Output.Actions)

	var failed []string
	for _, ar := range rec.ActionResults {
		if ar.Error != "" {
			rec.Errors = append(rec.Errors, fmt.Sprintf("actions[%d]: %s", ar.Index, ar.Error))
		}
		if ar.Status == model.ActionFailed {
			failed = append(failed, string(ar.ActionType))
		}
	}
	if len(failed) > 0 {
		err := errs.New(errs.KindExternalEffectFailure, "core.Process", "%d action(s) failed", len(failed)).
			WithDetails(failed...)
		rec.FailedStage = model.StageActionsExecuted
		rec.Stages = append(rec.Stages, model.StageFailed)
		res.Err = err
		return
	}
	rec.Stages = append(rec.Stages, model.StageActionsExecuted)
}

func (b *Brain) record(channel model.Channel, res *Result) {
	b.mu.Lock()
	s, ok := b.stats[channel]
	if !ok {
		s = &ChannelStats{}
		b.stats[channel] = s
	}
	if res.Err != nil {
		s.Failed++
	} else {
		s.Processed++
	}
	b.mu.Unlock()

	kind := string(errs.KindOf(res.Err))
	if res.Err != nil && kind == "" {
		kind = "INTERNAL"
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			kind = "CANCELED"
		}
	}
	b.metrics.RecordInteraction(string(channel), res.Err != nil, string(res.Record.FailedStage), kind)
}

// Stats returns a copy of the per-channel counters.
func (b *Brain) Stats() map[model.Channel]ChannelStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[model.Channel]ChannelStats, len(b.stats))
	for ch, s := range b.stats {
		out[ch] = *s
	}
	return out
}
