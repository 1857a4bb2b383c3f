package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gtalwar12/second-brain-poc/internal/audit"
	"github.com/gtalwar12/second-brain-poc/internal/core"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/metrics"
)

type Pipeline interface {
	Process(ctx context.Context, in model.Input) (*core.Result, error)
	Stats() map[model.Channel]core.ChannelStats
}

type Fetcher interface {
	Text(ctx context.Context, rawURL string) (string, error)
}

// HandledCounter reports per-channel totals of polled items.
type HandledCounter interface {
	Handled() map[model.Channel]int
}

type Server struct {
	Brain   Pipeline
	Fetcher Fetcher
	Audit   audit.Log
	// Poller is nil when the server runs without polling.
	Poller  HandledCounter
	Metrics *metrics.Collector
	logger  *zap.Logger
}

func NewServer(brain Pipeline, fetcher Fetcher, log audit.Log, poller HandledCounter, m *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Brain: brain, Fetcher: fetcher, Audit: log, Poller: poller, Metrics: m, logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/capture/url", s.CaptureURL)
	r.GET("/health", s.Health)
	r.GET("/interactions", s.Interactions)
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()
		s.Metrics.RecordHTTP(c.Request.Method, route, status, latency)
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency))
	}
}

type CaptureURLRequest struct {
	URL string `json:"url" binding:"required"`
}

type CaptureResponse struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	InteractionID string        `json:"interaction_id,omitempty"`
	Stages        []model.Stage `json:"stages,omitempty"`
	Answer        string        `json:"answer,omitempty"`
	Error         string        `json:"error,omitempty"`
	Kind          string        `json:"kind,omitempty"`
}

// CaptureURL fetches the page and runs its text through the pipeline
// synchronously. The URL is the source id.
func (s *Server) CaptureURL(c *gin.Context) {
	var req CaptureURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, CaptureResponse{Error: "No URL provided", Kind: string(errs.KindInvalidInput)})
		return
	}
	ctx := c.Request.Context()

	text, err := s.Fetcher.Text(ctx, req.URL)
	if err != nil {
		s.logger.Warn("failed to fetch url", zap.String("url", req.URL), zap.Error(err))
		c.JSON(statusFor(err), CaptureResponse{Error: err.Error(), Kind: string(errs.KindOf(err))})
		return
	}

	res, err := s.Brain.Process(ctx, model.Input{Channel: model.ChannelURLText, Text: text, SourceID: req.URL})
	body := CaptureResponse{}
	if res != nil {
		body.InteractionID = res.Record.ID
		body.Stages = res.Record.Stages
		body.Answer = res.Answer()
	}
	if err != nil {
		body.Error = err.Error()
		body.Kind = string(errs.KindOf(err))
		c.JSON(statusFor(err), body)
		return
	}
	body.Success = true
	body.Message = "Processed URL: " + req.URL
	c.JSON(http.StatusOK, body)
}

func (s *Server) Health(c *gin.Context) {
	stats := s.Brain.Stats()
	var handled map[model.Channel]int
	if s.Poller != nil {
		handled = s.Poller.Handled()
	} else {
		handled = make(map[model.Channel]int, len(stats))
		for ch, st := range stats {
			handled[ch] = st.Processed + st.Failed
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "running",
		"reminders_processed": handled[model.ChannelReminder],
		"notes_processed":     handled[model.ChannelNote],
		"channels":            stats,
	})
}

func (s *Server) Interactions(c *gin.Context) {
	limit := audit.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	records, err := s.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read interactions", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": "Failed to read interactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": records})
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindInferenceUnavailable, errs.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindSchemaViolation, errs.KindExternalEffectFailure:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
