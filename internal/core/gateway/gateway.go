// Package gateway calls the model backend and accepts only output that
// validates against the fixed output schema.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/llm"
	"github.com/gtalwar12/second-brain-poc/internal/metrics"
)

type Config struct {
	// SystemPrompt replaces the built-in prompt. The output schema is always embedded.
	SystemPrompt    string
	Timeout         time.Duration
	Attempts        int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = 10 * c.BaseDelay
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = time.Minute
	}
	return c
}

// Result carries the raw text alongside the validated output so that
// rejected responses can still be audited.
type Result struct {
	Output   *model.ValidatedOutput
	Raw      string
	Attempts int
}

type Gateway struct {
	llm       llm.LLMClient
	cfg       Config
	system    string
	validator *Validator
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
	metrics   *metrics.Collector
	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client llm.LLMClient, cfg Config, logger *zap.Logger, m *metrics.Collector) (*Gateway, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}

	system := DefaultSystemPrompt()
	if cfg.SystemPrompt != "" {
		system = WithSchema(cfg.SystemPrompt)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Gateway{
		llm:       client,
		cfg:       cfg,
		system:    system,
		validator: v,
		breaker:   breaker,
		logger:    logger,
		metrics:   m,
		sleep:     sleepCtx,
	}, nil
}

// SystemPrompt returns the prompt sent with every call.
func (g *Gateway) SystemPrompt() string {
	return g.system
}

// Call serializes the envelope, invokes the backend with bounded retries and
// validates the response. Transport failures, timeouts and an open breaker
// yield INFERENCE_UNAVAILABLE; an invalid response yields SCHEMA_VIOLATION
// and is not retried here.
func (g *Gateway) Call(ctx context.Context, env model.Envelope) (Result, error) {
	const op = "gateway.Call"
	start := time.Now()
	defer func() { g.metrics.RecordInference(time.Since(start)) }()

	payload, err := json.Marshal(env)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInvalidInput, op, err, "envelope is not serializable")
	}

	var (
		raw     string
		lastErr error
		res     Result
	)
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		res.Attempts = attempt
		raw, lastErr = g.attempt(ctx, string(payload))
		if lastErr == nil {
			g.metrics.RecordInferenceAttempt("ok")
			break
		}
		g.metrics.RecordInferenceAttempt("error")

		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
			break
		}
		if attempt == g.cfg.Attempts {
			break
		}

		backoff := g.backoff(attempt)
		g.logger.Warn("inference attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.String("source_id", env.SourceID),
			zap.Error(lastErr))
		if err := g.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}
	if lastErr != nil {
		return res, errs.Wrap(errs.KindInferenceUnavailable, op, lastErr, "model backend unavailable after %d attempt(s)", res.Attempts)
	}

	res.Raw = raw
	out, err := g.validator.Validate(raw)
	if err != nil {
		return res, err
	}
	res.Output = out
	return res, nil
}

func (g *Gateway) attempt(ctx context.Context, payload string) (string, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		return g.llm.Generate(attemptCtx, g.system, payload)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// backoff doubles from BaseDelay and is capped at MaxDelay.
func (g *Gateway) backoff(attempt int) time.Duration {
	d := g.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= g.cfg.MaxDelay {
			return g.cfg.MaxDelay
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
