// Package actions performs the external side effects the model asked for.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/core/checklist"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/metrics"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

// ItemLister is the slice of the graph store the checklist projection reads.
type ItemLister interface {
	NodesByType(ctx context.Context, nodeType string) ([]model.Node, error)
}

// ExecContext identifies the interaction the actions belong to.
type ExecContext struct {
	Channel  model.Channel
	SourceID string
}

type Config struct {
	Attempts  int
	BaseDelay time.Duration
	// Container and Title are used when the model leaves the target empty.
	Container string
	Title     string
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.Container == "" {
		c.Container = "To Buy"
	}
	if c.Title == "" {
		c.Title = "Groceries"
	}
	return c
}

type Executor struct {
	items     ItemLister
	projector *checklist.Projector
	documents source.DocumentWriter
	deleters  map[model.Channel]source.Deleter
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Collector
	sleep     func(ctx context.Context, d time.Duration) error

	// checklistMu serializes reading, projecting and writing the checklist.
	checklistMu sync.Mutex
}

// NewExecutor wires the executor. deleters maps each channel to the source its
// items are deleted from; channels without an entry have nothing to delete.
func NewExecutor(items ItemLister, projector *checklist.Projector, documents source.DocumentWriter,
	deleters map[model.Channel]source.Deleter, cfg Config, logger *zap.Logger, m *metrics.Collector) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deleters == nil {
		deleters = map[model.Channel]source.Deleter{}
	}
	return &Executor{
		items:     items,
		projector: projector,
		documents: documents,
		deleters:  deleters,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		metrics:   m,
		sleep:     sleepCtx,
	}
}

// Execute runs every intent independently and returns one result per intent.
// It never fails as a whole.
func (e *Executor) Execute(ctx context.Context, ec ExecContext, intents []model.ActionIntent) []model.ActionResult {
	results := make([]model.ActionResult, 0, len(intents))
	for i, intent := range intents {
		res := e.run(ctx, ec, intent)
		res.Index = i
		res.ActionType = intent.Type
		e.metrics.RecordAction(string(intent.Type), string(res.Status))

		fields := []zap.Field{
			zap.String("action_type", string(intent.Type)),
			zap.String("status", string(res.Status)),
			zap.Int("attempts", res.Attempts),
			zap.String("channel", string(ec.Channel)),
			zap.String("source_id", ec.SourceID),
		}
		if res.Status == model.ActionSucceeded {
			e.logger.Info("action executed", append(fields, zap.String("detail", res.Detail))...)
		} else {
			e.logger.Warn("action not executed", append(fields, zap.String("error", res.Error))...)
		}
		results = append(results, res)
	}
	return results
}

func (e *Executor) run(ctx context.Context, ec ExecContext, intent model.ActionIntent) model.ActionResult {
	switch {
	case intent.Type == model.ActionUpdateChecklist && intent.Checklist != nil:
		return e.retry(ctx, func() (string, error) { return e.updateChecklist(ctx, *intent.Checklist) })
	case intent.Type == model.ActionDeleteSourceItem && intent.DeleteSource != nil:
		if err := e.guardDelete(ec, *intent.DeleteSource); err != nil {
			return rejected(err)
		}
		return e.retry(ctx, func() (string, error) { return e.deleteSource(ctx, ec, *intent.DeleteSource) })
	default:
		return rejected(errs.New(errs.KindUnknownAction, "actions.Execute", "unknown action type '%s'", intent.Type))
	}
}

func (e *Executor) updateChecklist(ctx context.Context, args model.UpdateChecklistArgs) (string, error) {
	container, title := args.TargetContainer, args.TargetTitle
	if container == "" {
		container = e.cfg.Container
	}
	if title == "" {
		title = e.cfg.Title
	}

	e.checklistMu.Lock()
	defer e.checklistMu.Unlock()

	items, err := e.items.NodesByType(ctx, model.NodeTypeItem)
	if err != nil {
		return "", err
	}
	layout := e.projector.Project(args.Layout, items)
	body := checklist.Render(title, layout)
	if err := e.documents.CreateOrReplaceDocument(ctx, container, title, body); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %d item(s) in %d section(s) to %s/%s",
		layout.ItemCount(), len(layout.Sections), container, title), nil
}

// guardDelete only allows deleting the item the interaction came from.
func (e *Executor) guardDelete(ec ExecContext, args model.DeleteSourceArgs) error {
	if args.SourceID != ec.SourceID {
		return errs.New(errs.KindInvalidInput, "actions.delete_source_item",
			"source id '%s' does not match the originating item '%s'", args.SourceID, ec.SourceID)
	}
	return nil
}

func (e *Executor) deleteSource(ctx context.Context, ec ExecContext, args model.DeleteSourceArgs) (string, error) {
	deleter, ok := e.deleters[ec.Channel]
	if !ok {
		return fmt.Sprintf("channel %s has no deletable source", ec.Channel), nil
	}
	if err := deleter.Delete(ctx, args.SourceID); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return fmt.Sprintf("%s already removed", args.SourceID), nil
		}
		return "", err
	}
	return fmt.Sprintf("deleted %s", args.SourceID), nil
}

// retry repeats fn while it fails with EXTERNAL_EFFECT_FAILURE.
func (e *Executor) retry(ctx context.Context, fn func() (string, error)) model.ActionResult {
	var (
		res model.ActionResult
		err error
	)
	delay := e.cfg.BaseDelay
	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		res.Attempts = attempt
		var detail string
		detail, err = fn()
		if err == nil {
			res.Status = model.ActionSucceeded
			res.Detail = detail
			return res
		}
		if !errors.Is(err, errs.ErrExternalEffectFailure) || attempt == e.cfg.Attempts {
			break
		}
		e.logger.Warn("action attempt failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if serr := e.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
		delay *= 2
	}
	res.Status = model.ActionFailed
	res.Error = err.Error()
	res.ErrorKind = string(errs.KindOf(err))
	return res
}

func rejected(err error) model.ActionResult {
	return model.ActionResult{
		Status:    model.ActionRejected,
		Error:     err.Error(),
		ErrorKind: string(errs.KindOf(err)),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
