package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtalwar12/second-brain-poc/internal/audit"
	"github.com/gtalwar12/second-brain-poc/internal/core"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/errs"
	"github.com/gtalwar12/second-brain-poc/internal/metrics"
)

type MockPipeline struct {
	Inputs []model.Input
	Err    error
}

func (m *MockPipeline) Process(ctx context.Context, in model.Input) (*core.Result, error) {
	m.Inputs = append(m.Inputs, in)
	rec := model.InteractionRecord{ID: "ix-1", Input: in, Stages: []model.Stage{model.StageReceived, model.StageLogged}}
	return &core.Result{Record: rec, Err: m.Err}, m.Err
}

func (m *MockPipeline) Stats() map[model.Channel]core.ChannelStats {
	return map[model.Channel]core.ChannelStats{model.ChannelURLText: {Processed: len(m.Inputs)}}
}

type MockFetcher struct {
	Body  string
	Err   error
}

func (m *MockFetcher) Text(ctx context.Context, rawURL string) (string, error) {
	return m.Body, m.Err
}

type MockCounter map[model.Channel]int

func (m MockCounter) Handled() map[model.Channel]int { return m }

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCaptureURL(t *testing.T) {
	pipeline := &MockPipeline{}
	s := NewServer(pipeline, &MockFetcher{Body: "Pesto\n2 cups basil"}, audit.NewMemoryLog(), nil, nil, nil)
	r := s.SetupRouter()

	w := do(r, http.MethodPost, "/capture/url", `{"url":"https://example.com/pesto"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CaptureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Processed URL: https://example.com/pesto", resp.Message)
	assert.Equal(t, "ix-1", resp.InteractionID)

	require.Len(t, pipeline.Inputs, 1)
	assert.Equal(t, model.Input{Channel: model.ChannelURLText, Text: "Pesto\n2 cups basil", SourceID: "https://example.com/pesto"}, pipeline.Inputs[0])
}

func TestCaptureURLErrors(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		fetchErr error
		procErr  error
		status   int
	}{
		{name: "missing url", body: `{}`, status: http.StatusBadRequest},
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "fetch failed", body: `{"url":"https://x"}`, fetchErr: errs.New(errs.KindExternalEffectFailure, "t", "404"), status: http.StatusBadGateway},
		{name: "model down", body: `{"url":"https://x"}`, procErr: errs.New(errs.KindInferenceUnavailable, "t", "down"), status: http.StatusServiceUnavailable},
		{name: "bad output", body: `{"url":"https://x"}`, procErr: errs.New(errs.KindSchemaViolation, "t", "five keys"), status: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(&MockPipeline{Err: tc.procErr}, &MockFetcher{Body: "text", Err: tc.fetchErr}, audit.NewMemoryLog(), nil, nil, nil)
			w := do(s.SetupRouter(), http.MethodPost, "/capture/url", tc.body)
			assert.Equal(t, tc.status, w.Code)

			var resp CaptureResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHealth(t *testing.T) {
	s := NewServer(&MockPipeline{}, &MockFetcher{}, audit.NewMemoryLog(),
		MockCounter{model.ChannelReminder: 4, model.ChannelNote: 2}, nil, nil)
	w := do(s.SetupRouter(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp["status"])
	assert.Equal(t, float64(4), resp["reminders_processed"])
	assert.Equal(t, float64(2), resp["notes_processed"])
}

func TestInteractions(t *testing.T) {
	log := audit.NewMemoryLog()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, log.Append(context.Background(), model.InteractionRecord{ID: id}))
	}
	s := NewServer(&MockPipeline{}, &MockFetcher{}, log, nil, nil, nil)
	r := s.SetupRouter()

	w := do(r, http.MethodGet, "/interactions?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Interactions []model.InteractionRecord `json:"interactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Interactions, 2)
	assert.Equal(t, "c", resp.Interactions[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/interactions?limit=zero", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewCollector("brain")
	s := NewServer(&MockPipeline{}, &MockFetcher{}, audit.NewMemoryLog(), nil, m, nil)
	r := s.SetupRouter()

	do(r, http.MethodGet, "/health", "")
	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `brain_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
