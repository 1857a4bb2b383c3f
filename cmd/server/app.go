package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/audit"
	"github.com/gtalwar12/second-brain-poc/internal/config"
	"github.com/gtalwar12/second-brain-poc/internal/core"
	"github.com/gtalwar12/second-brain-poc/internal/core/actions"
	"github.com/gtalwar12/second-brain-poc/internal/core/canon"
	"github.com/gtalwar12/second-brain-poc/internal/core/category"
	"github.com/gtalwar12/second-brain-poc/internal/core/checklist"
	"github.com/gtalwar12/second-brain-poc/internal/core/envelope"
	"github.com/gtalwar12/second-brain-poc/internal/core/gateway"
	"github.com/gtalwar12/second-brain-poc/internal/core/merge"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/driver"
	"github.com/gtalwar12/second-brain-poc/internal/fetch"
	"github.com/gtalwar12/second-brain-poc/internal/llm"
	"github.com/gtalwar12/second-brain-poc/internal/logging"
	"github.com/gtalwar12/second-brain-poc/internal/metrics"
	"github.com/gtalwar12/second-brain-poc/internal/poller"
	"github.com/gtalwar12/second-brain-poc/internal/source"
	"github.com/gtalwar12/second-brain-poc/internal/source/applescript"
	"github.com/gtalwar12/second-brain-poc/internal/source/filesystem"
	"github.com/gtalwar12/second-brain-poc/internal/source/memory"
	"github.com/gtalwar12/second-brain-poc/internal/store"
)

// app holds every wired component. Close releases them in reverse order.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Collector
	store     store.GraphStore
	audit     audit.Log
	projector *checklist.Projector
	documents source.DocumentWriter
	brain     *core.Brain
	poller    *poller.Scheduler
	fetcher   *fetch.Fetcher
	// watchDirs are inbox directories whose changes wake the poller.
	watchDirs []string
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close component", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func bootstrap(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewCollector("brain")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	canonicalizer, err := canon.New(cfg.Canon.Rules())
	if err != nil {
		return nil, fmt.Errorf("invalid canon rules: %w", err)
	}
	categories := category.NewAssigner(cfg.Categories)

	if a.store, err = openStore(ctx, cfg, canonicalizer, logger); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	if a.audit, err = audit.Open(cfg.Audit.Backend, cfg.Audit.Path); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.audit.Close)

	client, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if c, ok := client.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	gw, err := gateway.New(client, gateway.Config{
		SystemPrompt:    cfg.Inference.SystemPrompt,
		Timeout:         cfg.Inference.Timeout.Duration,
		Attempts:        cfg.Inference.Attempts,
		BaseDelay:       cfg.Inference.BaseDelay.Duration,
		MaxDelay:        cfg.Inference.MaxDelay.Duration,
		BreakerFailures: cfg.Inference.BreakerFailures,
		BreakerCooldown: cfg.Inference.BreakerCooldown.Duration,
	}, logger.Named("gateway"), a.metrics)
	if err != nil {
		return nil, err
	}

	envelopes, err := envelope.NewBuilder(envelope.Config{
		UserID:       cfg.User.ID,
		Timezone:     cfg.User.Timezone,
		MaxTextRunes: cfg.User.MaxTextRunes,
	}, nil)
	if err != nil {
		return nil, err
	}

	streams, deleters, documents, err := a.openSources(ctx)
	if err != nil {
		return nil, err
	}
	a.documents = documents
	a.projector = checklist.NewProjector(canonicalizer, categories)

	executor := actions.NewExecutor(a.store, a.projector, documents, deleters, actions.Config{
		Attempts:  cfg.Actions.Attempts,
		BaseDelay: cfg.Actions.BaseDelay.Duration,
		Container: cfg.Checklist.Container,
		Title:     cfg.Checklist.Title,
	}, logger.Named("actions"), a.metrics)

	a.brain = core.NewBrain(a.store, envelopes, gw, merge.NewEngine(a.store, canonicalizer, categories, logger.Named("merge")),
		executor, a.audit, core.Options{
			ContextTypes: cfg.Inference.ContextTypes,
			ContextLimit: cfg.Inference.ContextLimit,
			Logger:       logger.Named("brain"),
			Metrics:      a.metrics,
		})
	a.poller = poller.New(a.brain, streams, poller.Config{
		Interval:    cfg.Poller.Interval.Duration,
		MaxAttempts: cfg.Poller.MaxAttempts,
	}, logger.Named("poller"))
	a.fetcher = fetch.New(cfg.Fetch.Timeout.Duration, cfg.Fetch.MaxBytes)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, labeler store.Labeler, logger *zap.Logger) (store.GraphStore, error) {
	opts := store.Options{Labeler: labeler}
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(opts), nil
	case "sqlite":
		return store.OpenSQLite(ctx, cfg.Store.SQLitePath, opts)
	case "memgraph":
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger.Named("memgraph"))
		if err != nil {
			return nil, err
		}
		if err := d.BuildIndices(ctx); err != nil {
			d.Close(ctx)
			return nil, err
		}
		return store.NewMemgraphStore(d, opts), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func (a *app) openSources(ctx context.Context) ([]poller.Stream, map[model.Channel]source.Deleter, source.DocumentWriter, error) {
	cfg := a.cfg
	switch cfg.Sources.Kind {
	case "applescript":
		runner := applescript.OSAScript{Timeout: cfg.Sources.ScriptTimeout.Duration}
		reminders := applescript.NewReminders(runner, cfg.Sources.RemindersList)
		notes := applescript.NewNotes(runner, cfg.Sources.NotesFolder)
		streams := []poller.Stream{
			poller.ReminderStream(reminders),
			poller.NoteStream(notes, cfg.Checklist.Title, cfg.Poller.RecipeHints),
		}
		return streams, map[model.Channel]source.Deleter{model.ChannelReminder: reminders}, notes, nil

	case "filesystem":
		reminders, err := filesystem.NewInbox(filepath.Join(cfg.Sources.InboxDir, "reminders"), model.ChannelReminder)
		if err != nil {
			return nil, nil, nil, err
		}
		notes, err := filesystem.NewInbox(filepath.Join(cfg.Sources.InboxDir, "notes"), model.ChannelNote)
		if err != nil {
			return nil, nil, nil, err
		}
		a.watchDirs = []string{reminders.Dir(), notes.Dir()}
		streams := []poller.Stream{
			poller.ReminderStream(reminders),
			poller.NoteStream(notes, cfg.Checklist.Title, cfg.Poller.RecipeHints),
		}
		docs := filesystem.NewDocuments(filepath.Join(cfg.Sources.InboxDir, "documents"))
		return streams, map[model.Channel]source.Deleter{model.ChannelReminder: reminders}, docs, nil

	case "none":
		return nil, nil, memory.New(model.ChannelNote), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown sources kind: %s", cfg.Sources.Kind)
	}
}
