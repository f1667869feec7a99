package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fretlab/guitar-mastery/internal/config"
	"github.com/fretlab/guitar-mastery/internal/orchestrator"
	"github.com/fretlab/guitar-mastery/internal/routing"
	"github.com/fretlab/guitar-mastery/internal/types"
)

type stubAgent struct {
	name  string
	role  string
	reply string
}

func (a *stubAgent) Name() string        { return a.name }
func (a *stubAgent) Role() string        { return a.role }
func (a *stubAgent) Provider() string    { return "anthropic" }
func (a *stubAgent) ToolNames() []string { return []string{"search_knowledge_base"} }

func (a *stubAgent) Think(ctx context.Context, message string, snapshot types.ContextSnapshot, history []types.Message) (*types.AgentResponse, error) {
	return &types.AgentResponse{
		Content:    a.reply,
		AgentName:  a.name,
		Confidence: 0.9,
	}, nil
}

func newTestServer(t *testing.T, withCoordinator bool) *Server {
	t.Helper()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	stubs := []*stubAgent{
		{name: "luthier_historian", role: "Guitar History Expert", reply: "Leo Fender built it."},
		{name: "jazz_teacher", role: "Jazz Guitar Teacher", reply: "Start with the Dorian mode."},
		{name: "sql_expert", role: "Data Analyst", reply: "Here are the rows."},
		{name: "dev_pm", role: "Project Manager", reply: "All systems nominal."},
	}

	capabilities := make(map[string]orchestrator.Capability, len(stubs))
	catalog := make([]CatalogAgent, 0, len(stubs))
	for _, a := range stubs {
		capabilities[a.name] = a
		catalog = append(catalog, a)
	}

	classifier := routing.NewClassifier(cfg.Classifier)

	var coordinator *orchestrator.Coordinator
	if withCoordinator {
		coordinator = orchestrator.NewCoordinator(capabilities, classifier, orchestrator.Config{
			MaxAgentsPerRequest: cfg.Orchestrator.MaxAgentsPerRequest,
			Timeout:             cfg.Orchestrator.AgentTimeout,
		}, logger)
	}

	srv := New(cfg, coordinator, orchestrator.NewSessionStore(), classifier, catalog, nil, logger)
	t.Cleanup(func() { srv.stack.Stop() })
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, true)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/api/v1/chat", ChatRequest{
		Message: "Tell me about the history of the Telecaster",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "luthier_historian", body["primary_agent"])
	assert.Equal(t, "Leo Fender built it.", body["content"])
	assert.NotEmpty(t, body["session_id"])
}

func TestChatEndpoint_SessionContinuity(t *testing.T) {
	srv := newTestServer(t, true)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/api/v1/chat", ChatRequest{Message: "Teach me jazz chords"})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	rec = postJSON(t, handler, "/api/v1/chat", ChatRequest{
		Message:   "What scale goes with them?",
		SessionID: sessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessionID, decodeBody(t, rec)["session_id"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions/"+sessionID, nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	session := decodeBody(t, getRec)["session"].(map[string]any)
	assert.Equal(t, float64(4), session["message_count"])
}

func TestChatEndpoint_PreferredAgent(t *testing.T) {
	srv := newTestServer(t, true)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/api/v1/chat", ChatRequest{
		Message:        "Tell me about jazz scales",
		PreferredAgent: "dev_pm",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev_pm", decodeBody(t, rec)["primary_agent"])
}

func TestChatEndpoint_RejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t, true)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/api/v1/chat", ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpoint_RoutingOnlyMode(t *testing.T) {
	srv := newTestServer(t, false)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/api/v1/chat", ChatRequest{
		Message: "Who invented the archtop guitar?",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "orchestrator", body["primary_agent"])
	assert.Contains(t, body["content"].(string), "luthier_historian")
}

func TestListAgents(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/agents", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(4), body["count"])

	agents := body["agents"].([]any)
	first := agents[0].(map[string]any)
	assert.NotEmpty(t, first["name"])
	assert.NotEmpty(t, first["role"])
	assert.NotEmpty(t, first["tools"])
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions/nope", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassifyEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	rec := postJSON(t, srv.Routes(), "/api/v1/chat/classify", ClassifyRequest{
		Message: "Show me all chords in the database",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sql_expert", body["agent_name"])
	assert.NotEmpty(t, body["reasoning"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestAdminHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(4), body["agents"])
	assert.Equal(t, false, body["routing_only"])
}

func TestAdminConfigEndpoint_OmitsSecrets(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/config", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "api_key")
	assert.NotContains(t, rec.Body.String(), "jwt_secret")

	body := decodeBody(t, rec)
	security := body["security"].(map[string]any)
	assert.Equal(t, false, security["auth_enabled"])
}

func TestIssueToken_NotConfigured(t *testing.T) {
	srv := newTestServer(t, true)

	rec := postJSON(t, srv.Routes(), "/api/v1/admin/token", TokenRequest{UserID: "student-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
