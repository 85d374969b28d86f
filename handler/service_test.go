package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/queue"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/service"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/worker"
)

func newServiceTestEnv(t *testing.T) (*gin.Engine, *queue.Queue, *worker.Pool, *service.CaseStore) {
	t.Helper()

	store, err := service.NewCaseStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Worker: config.WorkerConfig{PoolSize: 3, PollIntervalMS: 10, SessionRetries: 2, GraceTimeoutSeconds: 5},
		Auth:   config.AuthConfig{JWTSecret: "test-secret"},
		Documents: config.DocumentsConfig{
			OrderChunkSize:        10,
			DownloadDir:           "downloads",
			FinalJudgmentKeywords: []string{"FINAL JUDGMENT"},
			ComplaintKeywords:     []string{"COMPLAINT"},
		},
		Extractor: config.ExtractorConfig{Model: "gpt-4o-mini", APIToken: "extractor-token"},
		Unicourt:  config.UnicourtConfig{OrderAppearTimeoutSeconds: 120, APIToken: "agent-token"},
	}
	q := queue.New()
	pool := worker.NewPool(cfg, q, queue.NewActiveSet(), nil, nil, store)
	h := NewServiceHandler(cfg, q, pool)

	router := gin.New()
	router.GET("/api/service/status", h.Status)
	router.GET("/api/service/config", h.GetConfig)
	router.POST("/api/service/restart", h.Restart)
	return router, q, pool, store
}

func TestServiceStatus(t *testing.T) {
	router, q, _, store := newServiceTestEnv(t)

	store.Create(context.Background(), &model.Case{CaseNumber: "A", CaseNameForSearch: "x", Status: model.StatusQueued})
	q.Enqueue(queue.Entry{CaseNumber: "A"})

	req := httptest.NewRequest("GET", "/api/service/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		QueueDepth   int   `json:"queue_depth"`
		ActiveTasks  int64 `json:"active_tasks"`
		WorkerPool   int   `json:"worker_pool"`
		ShuttingDown bool  `json:"shutting_down"`
		Idle         bool  `json:"idle"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.QueueDepth != 1 {
		t.Errorf("Expected queue depth 1, got %d", resp.QueueDepth)
	}
	if resp.WorkerPool != 3 {
		t.Errorf("Expected worker pool 3, got %d", resp.WorkerPool)
	}
	if resp.Idle {
		t.Error("Expected not idle with queued work")
	}
}

func TestServiceGetConfig(t *testing.T) {
	router, _, _, _ := newServiceTestEnv(t)

	req := httptest.NewRequest("GET", "/api/service/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp ConfigResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.WorkerPoolSize != 3 {
		t.Errorf("Expected worker pool 3, got %d", resp.WorkerPoolSize)
	}
	if resp.OrderChunkSize != 10 {
		t.Errorf("Expected order chunk 10, got %d", resp.OrderChunkSize)
	}
	if resp.ExtractorModel != "gpt-4o-mini" {
		t.Errorf("Expected extractor model, got %q", resp.ExtractorModel)
	}
	if resp.OrderAppearTimeoutSeconds != 120 {
		t.Errorf("Expected order appear timeout 120, got %d", resp.OrderAppearTimeoutSeconds)
	}

	// No secret or token leaks through the read-only view
	body := w.Body.String()
	for _, secret := range []string{"test-secret", "extractor-token", "agent-token"} {
		if strings.Contains(body, secret) {
			t.Errorf("Config response leaked %q", secret)
		}
	}
}

func TestServiceRestart(t *testing.T) {
	router, q, _, store := newServiceTestEnv(t)

	// Idle: accepted
	req := httptest.NewRequest("POST", "/api/service/restart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected 202 while idle, got %d", w.Code)
	}

	// Queued work: rejected
	store.Create(context.Background(), &model.Case{CaseNumber: "A", CaseNameForSearch: "x", Status: model.StatusQueued})
	q.Enqueue(queue.Entry{CaseNumber: "A"})

	req = httptest.NewRequest("POST", "/api/service/restart", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 with queued work, got %d", w.Code)
	}
}
