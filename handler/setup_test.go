package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/config"
	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/responder"
	"github.com/KodaTao/ai-chat/service"
)

type testEnv struct {
	router *gin.Engine
	hub    *Hub
	cfg    *config.Config
}

func setupTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Upload.Dir = filepath.Join(dir, "uploads")
	cfg.Assistant.DelayMS = 0
	cfg.WebSocket = config.WebSocketConfig{PingInterval: 2, PongTimeout: 5}
	if mutate != nil {
		mutate(cfg)
	}

	db, err := model.InitDB(cfg.Database, "error")
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { model.Close(db) })

	logger := zap.NewNop()
	hub := NewHub(cfg.WebSocket, logger)
	t.Cleanup(hub.Close)

	svc := Services{
		Conversations: service.NewConversationService(db),
		Messages:      service.NewMessageService(db, responder.NewMock(0, cfg.Assistant.DefaultLocale, 1)),
		Files:         service.NewFileService(db, cfg.Upload),
	}
	return &testEnv{
		router: NewRouter(cfg, svc, hub, logger),
		hub:    hub,
		cfg:    cfg,
	}
}

func (e *testEnv) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// decode 检查状态码并解析 data 字段
func decode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, out interface{}) envelope {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v, body: %s", err, w.Body.String())
	}
	wantSuccess := wantStatus < http.StatusBadRequest
	if env.Success != wantSuccess {
		t.Fatalf("expected success=%v, got body %s", wantSuccess, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
	}
	return env
}

func (e *testEnv) createConversation(t *testing.T, title string) model.Conversation {
	t.Helper()
	var conv model.Conversation
	decode(t, e.do(http.MethodPost, "/api/conversations", gin.H{"title": title}), http.StatusCreated, &conv)
	return conv
}
