package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkflow-backend/internal/config"
	"inkflow-backend/internal/generation"
	"inkflow-backend/internal/handler"
	"inkflow-backend/internal/notify"
	"inkflow-backend/internal/storage"
	"inkflow-backend/internal/transport"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Backend: config.BackendConfig{
			CompletionURL: "http://127.0.0.1:1/v1/completions",
			Timeout:       time.Second,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Generation: config.GenerationConfig{
			DefaultStreamCount: 2,
			MaxStreamCount:     8,
			MaxTokens:          64,
			ContinueMaxTokens:  128,
			FlushThreshold:     100,
			ThrottleInterval:   50 * time.Millisecond,
			CloseLinger:        50 * time.Millisecond,
		},
	}

	store := storage.NewMemoryStore()
	if err := store.Init(); err != nil {
		t.Fatalf("store init: %v", err)
	}
	client := transport.NewClient(cfg.Backend.CompletionURL, cfg.Backend.Timeout)
	coord := generation.NewCoordinator(cfg, client, store, notify.NewBus())

	return setupRouter(cfg, handler.NewGenerationHandler(coord))
}

func TestHealthRoute(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestStatusRouteReportsIdle(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/generation/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["state"] != "idle" {
		t.Fatalf("expected idle state, got %v", body["state"])
	}
}

func TestStartRejectsMissingPrompt(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generation/start", nil)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty body, got %d", w.Code)
	}
}

func TestCancelWithoutActiveRun(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generation/cancel", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if cancelled, _ := body["cancelled"].(bool); cancelled {
		t.Fatal("cancel with no active run must report false")
	}
}
