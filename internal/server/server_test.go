package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"yuanfang/internal/analytics"
	"yuanfang/internal/compose"
	"yuanfang/internal/config"
	"yuanfang/internal/dispatch"
	"yuanfang/internal/intent"
	"yuanfang/internal/memory"
	"yuanfang/internal/session"
	"yuanfang/internal/store"
	"yuanfang/internal/toolregistry"
	"yuanfang/internal/tools/builtin"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	st := store.NewMemoryStore()
	engine := analytics.NewEngine(st, cfg.Analytics, nil)

	reg, err := toolregistry.NewRegistry(
		builtin.NewEmotionTool(),
		builtin.NewTaskTool(st),
		builtin.NewKnowledgeTool(st),
		builtin.NewTeamAnalyticsTool(engine, cfg.Analytics),
	)
	require.NoError(t, err)

	router := intent.NewRouter(reg, nil, 0.25, nil)
	dispatcher, err := dispatch.NewDispatcher(reg, config.DispatchConfig{
		ToolTimeout:   2 * time.Second,
		MaxConcurrent: 4,
		CacheSize:     32,
	}, nil)
	require.NoError(t, err)

	controller := session.NewController(
		session.NewRegistry(),
		router,
		dispatcher,
		compose.NewComposer(nil, nil),
		memory.NewManager(cfg.Memory, memory.NewFakeDurableStore(), nil),
		st,
		nil,
		nil,
	)
	return New(cfg.Server, controller, nil, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var view sessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotEmpty(t, view.ID)
	require.Equal(t, "idle", view.Status)

	w = doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s.Handler(), http.MethodDelete, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions", nil)
	var view sessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

	w = doJSON(t, s.Handler(), http.MethodPost, "/api/chat", chatRequest{
		SessionID: view.ID,
		Text:      `create a task "wire the beta endpoint"`,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var outcome session.TurnOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	require.NotEmpty(t, outcome.Reply)
	require.NotEmpty(t, outcome.TurnID)
}

func TestChatValidation(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/chat", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s.Handler(), http.MethodPost, "/api/chat", chatRequest{SessionID: "sess_missing", Text: "hi"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmotionTrailEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions", nil)
	var view sessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

	w = doJSON(t, s.Handler(), http.MethodPost, "/api/chat", chatRequest{
		SessionID: view.ID,
		Text:      "I'm so stressed about my tasks",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/"+view.ID+"/emotions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "stressed")
}

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsInbound{Text: `create a task "socket smoke test"`}))

	var out wsOutbound
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, "reply", out.Type)
	require.NotNil(t, out.Outcome)
	require.NotEmpty(t, out.Outcome.Reply)

	// The connection stays bound to the same implicit session.
	require.NoError(t, conn.WriteJSON(wsInbound{Text: "what tasks do we have"}))
	var second wsOutbound
	require.NoError(t, conn.ReadJSON(&second))
	require.Equal(t, "reply", second.Type)
	require.Equal(t, out.Outcome.SessionID, second.Outcome.SessionID)
}

func TestServerShutdown(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
