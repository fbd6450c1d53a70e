package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flying-pisces/mkd-automation-sub002/internal/bus"
	"github.com/flying-pisces/mkd-automation-sub002/internal/diag"
	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/recording"
	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/monitoring"
	"github.com/flying-pisces/mkd-automation-sub002/internal/service"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"github.com/flying-pisces/mkd-automation-sub002/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Prometheus collectors register globally, so every test shares one
// metrics instance.
var (
	metricsOnce   sync.Once
	sharedMetrics *monitoring.Metrics
)

func testMetrics() *monitoring.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = monitoring.NewMetrics()
	})
	return sharedMetrics
}

// stubCaller answers native host commands without a host process
type stubCaller struct {
	mu       sync.Mutex
	handlers map[string]func(map[string]interface{}) (map[string]interface{}, error)
	sessions int
}

func newStubCaller() *stubCaller {
	return &stubCaller{
		handlers: make(map[string]func(map[string]interface{}) (map[string]interface{}, error)),
	}
}

func (s *stubCaller) Call(_ context.Context, command string, params map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handler, ok := s.handlers[command]; ok {
		return handler(params)
	}
	if command == host.StartCommand {
		s.sessions++
		return map[string]interface{}{"sessionId": fmt.Sprintf("host-%d", s.sessions)}, nil
	}
	return map[string]interface{}{}, nil
}

func (s *stubCaller) fail(command string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = func(map[string]interface{}) (map[string]interface{}, error) {
		return nil, err
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(types.EventType, map[string]interface{}) {}

// echoProvider is a minimal registry entry for execution tests
type echoProvider struct{}

func (p *echoProvider) Definition() types.Service {
	return types.Service{
		ID:           "echo",
		Name:         "Echo",
		Description:  "Echoes parameters back",
		Category:     types.CategorySystem,
		Capabilities: []string{"echo"},
		Tools: []types.Tool{
			{ID: "echo.say", Name: "Say", Description: "Echo the text parameter", Returns: "echoed text"},
		},
	}
}

func (p *echoProvider) Execute(_ context.Context, toolID string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	switch toolID {
	case "echo.say":
		return &types.Result{Success: true, Data: map[string]interface{}{"echo": params["text"]}}, nil
	case "echo.fail":
		msg := "told to fail"
		return &types.Result{Success: false, Error: &msg}, nil
	}
	msg := fmt.Sprintf("unknown tool: %s", toolID)
	return &types.Result{Success: false, Error: &msg}, fmt.Errorf("unknown tool: %s", toolID)
}

type fixture struct {
	router   *gin.Engine
	handlers *Handlers
	caller   *stubCaller
	recorder *recording.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Host.Command = "mkd-host-not-installed"

	caller := newStubCaller()
	recorder, err := recording.NewManager(cfg.Recording, nil, caller, nopPublisher{}, logging.NewNop())
	require.NoError(t, err)

	registry := service.NewRegistry()
	require.NoError(t, registry.Register(&echoProvider{}))

	client := host.NewClient(cfg.Host, logging.NewNop())
	doctor := diag.New(cfg, client, logging.NewNop())

	events := bus.New(logging.NewNop())
	hub := ws.NewHub(registry, events, testMetrics(), logging.NewNop())
	go hub.Run()
	t.Cleanup(func() {
		hub.Close()
		events.Close()
	})

	h := NewHandlers(registry, recorder, client, doctor, hub, testMetrics(), logging.NewNop(), "test")

	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	router.GET("/diagnostics", h.Diagnostics)
	router.POST("/host/reconnect", h.ReconnectHost)
	router.GET("/services", h.ListServices)
	router.POST("/services/discover", h.DiscoverServices)
	router.POST("/services/execute", h.ExecuteService)
	router.POST("/recordings/start", h.StartRecording)
	router.POST("/recordings/stop", h.StopRecording)
	router.POST("/recordings/pause", h.PauseRecording)
	router.POST("/recordings/resume", h.ResumeRecording)
	router.GET("/recordings", h.ListRecordings)
	router.GET("/recordings/:id", h.GetRecording)
	router.DELETE("/recordings/:id", h.DeleteRecording)
	router.GET("/recordings/:id/export", h.ExportRecording)
	router.POST("/recordings/import", h.ImportRecording)
	router.GET("/logs/level", h.GetLogLevel)
	router.PUT("/logs/level", h.SetLogLevel)
	router.POST("/logs/stream", h.StreamLogs)

	return &fixture{router: router, handlers: h, caller: caller, recorder: recorder}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRootBanner(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "MKD Connector", body["service"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthDegradedWithoutHost(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "degraded", body["status"])

	hostInfo, ok := body["host"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, hostInfo["connected"])
}

func TestStatusReportsHostAndRecording(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "host")
	assert.Contains(t, body, "recording")
	assert.Contains(t, body, "uptimeSeconds")
}

func TestDiagnosticsReturnsReport(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/diagnostics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body, "healthy")
	checks, ok := body["checks"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, checks)
}

func TestReconnectHostSpawnFailure(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/host/reconnect", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body, "error")
}

func TestListServices(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/services", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	services, ok := body["services"].([]interface{})
	require.True(t, ok)
	assert.Len(t, services, 1)
}

func TestListServicesByCategory(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/services?category=system", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["services"], 1)

	w = f.do(t, http.MethodGet, "/services?category=recording", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Empty(t, body["services"])
}

func TestListServicesRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/services?category=bogus", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown category")
}

func TestDiscoverServices(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/discover", gin.H{"query": "echo"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "echo", body["query"])
	services, ok := body["services"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, services)
}

func TestDiscoverServicesRequiresQuery(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/discover", gin.H{"limit": 3})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteService(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/execute", gin.H{
		"tool_id": "echo.say",
		"params":  gin.H{"text": "hello"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", data["echo"])
}

func TestExecuteServiceFailureResult(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/execute", gin.H{"tool_id": "echo.fail"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "told to fail", body["error"])
}

func TestExecuteServiceUnknownService(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/execute", gin.H{"tool_id": "nosuch.tool"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "service not found")
}

func TestExecuteServiceRequiresToolID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/execute", gin.H{"params": gin.H{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteServiceRejectsOversizedParams(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/services/execute", gin.H{
		"tool_id": "echo.say",
		"params":  gin.H{"blob": strings.Repeat("x", 256*1024)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "params size")
}

func TestSplitToolID(t *testing.T) {
	svc, tool := splitToolID("recording.start")
	assert.Equal(t, "recording", svc)
	assert.Equal(t, "start", tool)

	svc, tool = splitToolID("malformed")
	assert.Equal(t, "invalid", svc)
	assert.Equal(t, "malformed", tool)
}
