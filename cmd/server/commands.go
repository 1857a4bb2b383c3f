package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gtalwar12/second-brain-poc/internal/config"
	"github.com/gtalwar12/second-brain-poc/internal/core/checklist"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/server"
	"github.com/gtalwar12/second-brain-poc/internal/source/filesystem"
)

func load(g *Globals) (*app, context.Context, context.CancelFunc, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return a, ctx, cancel, nil
}

type ServeCmd struct {
	NoPoll bool `help:"Serve the HTTP endpoint without polling sources"`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, ctx, cancel, err := load(g)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := server.NewServer(a.brain, a.fetcher, a.audit, a.poller, a.metrics, a.logger.Named("http"))
	httpServer := &http.Server{
		Addr:              "127.0.0.1:" + a.cfg.Server.Port,
		Handler:           srv.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return httpServer.Shutdown(shutdownCtx)
	})
	if !c.NoPoll {
		group.Go(func() error {
			a.logger.Info("polling sources",
				zap.String("kind", a.cfg.Sources.Kind),
				zap.Duration("interval", a.cfg.Poller.Interval.Duration))
			return ignoreCanceled(a.poller.Run(gctx))
		})
		if len(a.watchDirs) > 0 {
			group.Go(func() error {
				return ignoreCanceled(filesystem.Watch(gctx, a.watchDirs, 0, a.poller.Wake(), a.logger.Named("watch")))
			})
		}
	}

	color.Green("🧠 Second brain running on http://%s", httpServer.Addr)
	fmt.Println("   POST /capture/url with {\"url\": \"...\"}")
	fmt.Println("   GET  /health, /interactions, /metrics")
	return group.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type PollOnceCmd struct{}

func (c *PollOnceCmd) Run(g *Globals) error {
	a, ctx, cancel, err := load(g)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	rep, err := a.poller.RunOnce(ctx)
	fmt.Printf("seen %d, processed %d, skipped %d, failed %d\n", rep.Seen, rep.Processed, rep.Skipped, rep.Failed)
	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		color.Yellow("⚠ %d item(s) failed and will be retried", rep.Failed)
	} else {
		color.Green("✓ Poll complete")
	}
	return nil
}

type CaptureCmd struct {
	Channel  string   `short:"C" default:"reminder" enum:"reminder,note,url_text,chat" help:"Channel the text arrived on"`
	SourceID string   `name:"source-id" help:"Source item id (defaults to a generated one)"`
	URL      string   `help:"Fetch this URL and capture its text"`
	Text     []string `arg:"" optional:"" help:"Text to capture"`
}

func (c *CaptureCmd) Run(g *Globals) error {
	a, ctx, cancel, err := load(g)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	in := model.Input{Channel: model.Channel(c.Channel), Text: strings.Join(c.Text, " "), SourceID: c.SourceID}
	if c.URL != "" {
		text, err := a.fetcher.Text(ctx, c.URL)
		if err != nil {
			return err
		}
		in = model.Input{Channel: model.ChannelURLText, Text: text, SourceID: c.URL}
	}
	if in.SourceID == "" {
		in.SourceID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
	}

	res, err := a.brain.Process(ctx, in)
	stages := make([]string, 0, len(res.Record.Stages))
	for _, s := range res.Record.Stages {
		stages = append(stages, string(s))
	}
	fmt.Printf("interaction %s: %s\n", res.Record.ID, strings.Join(stages, " → "))
	for _, op := range res.Record.AppliedOps {
		fmt.Printf("  %-11s %-8s %s\n", op.OpType, op.Status, op.Label)
	}
	for _, ar := range res.Record.ActionResults {
		line := fmt.Sprintf("  %-18s %-9s %s%s", ar.ActionType, ar.Status, ar.Detail, ar.Error)
		if ar.Status == model.ActionSucceeded {
			color.Green("%s", line)
		} else {
			color.Yellow("%s", line)
		}
	}
	if answer := res.Answer(); answer != "" {
		color.Cyan("%s", answer)
	}
	return err
}

type ChecklistCmd struct {
	Write bool `help:"Also write the checklist document to its container"`
}

func (c *ChecklistCmd) Run(g *Globals) error {
	a, ctx, cancel, err := load(g)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	items, err := a.store.NodesByType(ctx, model.NodeTypeItem)
	if err != nil {
		return err
	}
	layout := a.projector.Project(model.Layout{}, items)

	bold := color.New(color.Bold)
	bold.Println(a.cfg.Checklist.Title)
	for _, sec := range layout.Sections {
		color.Cyan("\n%s", sec.Name)
		for _, it := range sec.Items {
			fmt.Printf("  ☐ %s\n", it.Text)
		}
	}
	if layout.ItemCount() == 0 {
		fmt.Println("(nothing to buy)")
	}

	if c.Write {
		body := checklist.Render(a.cfg.Checklist.Title, layout)
		if err := a.documents.CreateOrReplaceDocument(ctx, a.cfg.Checklist.Container, a.cfg.Checklist.Title, body); err != nil {
			return err
		}
		color.Green("\n✓ Updated %s/%s", a.cfg.Checklist.Container, a.cfg.Checklist.Title)
	}
	return nil
}
