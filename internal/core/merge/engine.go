// Package merge applies validated graph update batches to the store.
//
// The engine is the only writer of the graph. Batches are validated as a
// whole, then applied op by op: one failing op is skipped and reported while
// the rest of the batch proceeds. Only an unreachable store aborts a batch.
package merge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/core/category"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/store"
)

type Engine struct {
	mu         sync.Mutex
	store      store.GraphStore
	canon      store.Labeler
	categories *category.Assigner
	logger     *zap.Logger
}

func NewEngine(s store.GraphStore, labeler store.Labeler, categories *category.Assigner, logger *zap.Logger) *Engine {
	if categories == nil {
		categories = category.NewAssigner(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, canon: labeler, categories: categories, logger: logger}
}

// BatchResult lists one OpResult per input op, in input order.
type BatchResult struct {
	Ops []model.OpResult `json:"ops"`
}

// Skipped returns the results that were not applied.
func (r BatchResult) Skipped() []model.OpResult {
	var out []model.OpResult
	for _, op := range r.Ops {
		if op.Status == model.OpStatusSkipped {
			out = append(out, op)
		}
	}
	return out
}

// Validate checks the whole batch structurally without touching the store.
func Validate(ops []model.GraphUpdateOp) error {
	var problems []string
	for i, op := range ops {
		for _, p := range op.Check() {
			problems = append(problems, fmt.Sprintf("graph_updates[%d]: %s", i, p))
		}
	}
	if len(problems) > 0 {
		return errs.New(errs.KindInvalidInput, "merge.Validate", "batch rejected").WithDetails(problems...)
	}
	return nil
}

// Apply validates and applies ops. Node ops run first in array order, then
// edge ops. A STORE_UNAVAILABLE error aborts the batch and is returned with
// the results gathered so far; other per-op failures only skip that op.
func (e *Engine) Apply(ctx context.Context, ops []model.GraphUpdateOp) (BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := Validate(ops); err != nil {
		return BatchResult{}, err
	}

	results := make([]model.OpResult, len(ops))
	for i, op := range ops {
		results[i] = model.OpResult{Index: i, OpType: op.OpType, Alias: op.Payload.ID, Status: model.OpStatusSkipped}
	}

	// Caller-supplied ids are aliases local to the batch.
	aliases := make(map[string]string)
	leaders := make(map[int]*nodeGroup)
	followers := make(map[int]int)
	for _, g := range e.groupCreates(ops) {
		leaders[g.indices[0]] = g
		for _, idx := range g.indices[1:] {
			followers[idx] = g.indices[0]
		}
	}

	for i, op := range ops {
		if !op.IsNodeOp() {
			continue
		}
		var err error
		switch {
		case op.OpType == model.OpUpdateNode:
			err = e.applyUpdate(ctx, op, aliases, &results[i])
		case leaders[i] != nil:
			err = e.applyCreate(ctx, leaders[i], aliases, results)
		default:
			leader := results[followers[i]]
			if leader.ID != "" {
				results[i].ID, results[i].Type, results[i].Label = leader.ID, leader.Type, leader.Label
				results[i].Status = model.OpStatusMerged
			} else {
				results[i].Error, results[i].ErrorKind = leader.Error, leader.ErrorKind
			}
		}
		if abort := e.handle(i, err, results); abort != nil {
			return BatchResult{Ops: results}, abort
		}
	}

	for i, op := range ops {
		if op.OpType != model.OpCreateEdge {
			continue
		}
		err := e.applyEdge(ctx, op, aliases, &results[i])
		if abort := e.handle(i, err, results); abort != nil {
			return BatchResult{Ops: results}, abort
		}
	}

	e.logger.Debug("batch merged", zap.Int("ops", len(ops)), zap.Int("skipped", len(BatchResult{Ops: results}.Skipped())))
	return BatchResult{Ops: results}, nil
}

// handle records a per-op error and returns non-nil only when the batch must stop.
func (e *Engine) handle(i int, err error, results []model.OpResult) error {
	if err == nil {
		return nil
	}
	results[i].Status = model.OpStatusSkipped
	results[i].Error = err.Error()
	results[i].ErrorKind = string(errs.KindOf(err))
	if errs.KindOf(err) == errs.KindStoreUnavailable {
		e.logger.Error("store unavailable, aborting batch", zap.Int("op", i), zap.Error(err))
		return err
	}
	e.logger.Warn("graph op skipped", zap.Int("op", i), zap.String("op_type", string(results[i].OpType)), zap.Error(err))
	return nil
}

func (e *Engine) applyCreate(ctx context.Context, g *nodeGroup, aliases map[string]string, results []model.OpResult) error {
	props := model.CloneProperties(g.properties)
	if g.nodeType == model.NodeTypeItem {
		current := ""
		if n, err := e.store.FindNode(ctx, g.nodeType, g.label); err == nil {
			current = n.Category()
		} else if errs.KindOf(err) != errs.KindNotFound {
			return err
		}
		hint, _ := props[model.PropCategory].(string)
		props = model.MergeProperties(props, map[string]interface{}{
			model.PropCategory: e.categories.Assign(g.key, hint, current),
		})
	}

	id, created, err := e.store.UpsertNode(ctx, g.nodeType, g.label, props)
	if err != nil {
		return err
	}
	n, err := e.store.GetNode(ctx, id)
	if err != nil {
		return err
	}

	for j, idx := range g.indices {
		if alias := g.aliases[j]; alias != "" {
			aliases[alias] = id
		}
		r := &results[idx]
		r.ID, r.Type, r.Label = id, n.Type, n.Label
		r.Status = model.OpStatusMerged
		if j == 0 && created {
			r.Status = model.OpStatusCreated
		}
	}
	return nil
}

func (e *Engine) applyUpdate(ctx context.Context, op model.GraphUpdateOp, aliases map[string]string, r *model.OpResult) error {
	id, err := e.resolve(ctx, op.Payload.ID, aliases)
	if err != nil {
		return err
	}
	n, err := e.store.GetNode(ctx, id)
	if err != nil {
		return err
	}

	props := model.CloneProperties(op.Payload.Properties)
	if hint, ok := props[model.PropCategory].(string); ok && n.Type == model.NodeTypeItem {
		props[model.PropCategory] = e.categories.Assign(n.CanonicalKey, hint, n.Category())
	}
	var label *string
	if strings.TrimSpace(op.Payload.Label) != "" {
		label = &op.Payload.Label
	}

	updated, err := e.store.UpdateNode(ctx, id, label, props, op.Payload.MergeProperties())
	if err != nil {
		return err
	}
	r.ID, r.Type, r.Label = updated.ID, updated.Type, updated.Label
	r.Status = model.OpStatusUpdated
	return nil
}

func (e *Engine) applyEdge(ctx context.Context, op model.GraphUpdateOp, aliases map[string]string, r *model.OpResult) error {
	from, err := e.resolve(ctx, op.Payload.FromID, aliases)
	if err != nil {
		return err
	}
	to, err := e.resolve(ctx, op.Payload.ToID, aliases)
	if err != nil {
		return err
	}

	id, created, err := e.store.CreateEdge(ctx, op.Payload.Type, from, to, op.Payload.Properties)
	if err != nil {
		return err
	}
	r.ID, r.Type = id, op.Payload.Type
	r.Status = model.OpStatusExisting
	if created {
		r.Status = model.OpStatusCreated
	}
	return nil
}

// resolve maps a reference through the batch alias table, then the store.
func (e *Engine) resolve(ctx context.Context, ref string, aliases map[string]string) (string, error) {
	if id, ok := aliases[ref]; ok {
		return id, nil
	}
	n, err := e.store.GetNode(ctx, ref)
	if err == nil {
		return n.ID, nil
	}
	if errs.KindOf(err) == errs.KindNotFound {
		return "", errs.Wrap(errs.KindDanglingReference, "merge.resolve", err, "reference %q matches no node", ref)
	}
	return "", err
}
