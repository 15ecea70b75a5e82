package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/kaowu/internal/config"
	"github.com/paiban/kaowu/internal/metrics"
	"github.com/paiban/kaowu/internal/runner"
	"github.com/paiban/kaowu/internal/security"
)

func testServer(t *testing.T, limit int) (http.Handler, *runner.Manager) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Name: "kaowu"},
		API: config.APIConfig{
			Prefix:       "/api/v1",
			MaxBodyBytes: 1 << 20,
			CORS:         config.CORSConfig{Enabled: true, Origins: []string{"*"}},
		},
		Solver: config.SolverConfig{
			DefaultAlgorithm: "sa",
			MaxRuntime:       time.Minute,
			MaxConcurrent:    2,
			LogBuffer:        10,
			RetainFinished:   time.Hour,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	keys, err := security.NewAPIKeyManagerFromSpecs([]string{"admin:admin-key", "viewer:viewer-key:read"})
	if err != nil {
		t.Fatalf("Failed to parse keys: %v", err)
	}
	var limiter *security.RateLimiter
	if limit > 0 {
		limiter = security.NewRateLimiter(limit, time.Minute)
		t.Cleanup(limiter.Close)
	}

	m := metrics.New()
	manager := runner.NewManager(cfg.Solver, runner.WithRecorder(m))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})
	return newHandler(cfg, m, manager, nil, keys, limiter), manager
}

func serve(h http.Handler, method, path, key string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestHealthEndpoint 健康检查无需密钥
func TestHealthEndpoint(t *testing.T) {
	h, _ := testServer(t, 0)

	rec := serve(h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp["status"] != "ok" || resp["service"] != "kaowu" {
		t.Errorf("Unexpected health response: %v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

// TestVersionEndpoint 版本信息
func TestVersionEndpoint(t *testing.T) {
	h, _ := testServer(t, 0)

	rec := serve(h, http.MethodGet, "/version", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["version"] != Version {
		t.Errorf("Expected version %s, got %s", Version, resp["version"])
	}
}

// TestAPIIndex 索引列出可用算法
func TestAPIIndex(t *testing.T) {
	h, _ := testServer(t, 0)

	if rec := serve(h, http.MethodGet, "/api/v1/", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", rec.Code)
	}

	rec := serve(h, http.MethodGet, "/api/v1/", "viewer-key", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Algorithms []string          `json:"algorithms"`
		Endpoints  map[string]string `json:"endpoints"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Algorithms) != 2 {
		t.Errorf("Expected 2 algorithms, got %v", resp.Algorithms)
	}
	if resp.Endpoints["start_run"] != "POST /api/v1/runs" {
		t.Errorf("Unexpected endpoint: %s", resp.Endpoints["start_run"])
	}
}

// TestRunLifecycle 经完整中间件链启动并查询任务
func TestRunLifecycle(t *testing.T) {
	h, manager := testServer(t, 0)

	body, _ := json.Marshal(map[string]interface{}{
		"algorithm": "sa",
		"courses": []map[string]interface{}{
			{"course_id": "C1", "name": "高等数学", "location": "A", "student_count": 20, "duration": 120},
			{"course_id": "C2", "name": "大学英语", "location": "A", "student_count": 25, "duration": 120},
		},
		"rooms": []map[string]interface{}{
			{"room_id": "R1", "capacity": 30, "location": "A"},
		},
		"config": map[string]interface{}{
			"start_date":     "2025-12-01",
			"end_date":       "2025-12-03",
			"seed":           3,
			"max_iterations": 20,
		},
	})

	if rec := serve(h, http.MethodPost, "/api/v1/runs", "viewer-key", body); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for read-only key, got %d", rec.Code)
	}

	rec := serve(h, http.MethodPost, "/api/v1/runs", "admin-key", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &started)
	id, err := uuid.Parse(started.ID)
	if err != nil {
		t.Fatalf("Invalid run id %q: %v", started.ID, err)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/runs/"+started.ID {
		t.Errorf("Unexpected Location: %s", loc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := manager.Wait(ctx, id); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	rec = serve(h, http.MethodGet, "/api/v1/runs/"+started.ID, "viewer-key", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var snapshot struct {
		Status string `json:"status"`
	}
	json.Unmarshal(rec.Body.Bytes(), &snapshot)
	if snapshot.Status != "completed" {
		t.Errorf("Expected completed, got %s", snapshot.Status)
	}

	rec = serve(h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kaowu_http_requests_total") {
		t.Error("Expected http request metric")
	}
}

// TestRateLimit 超出限额返回 429
func TestRateLimit(t *testing.T) {
	h, _ := testServer(t, 2)

	for i := 0; i < 2; i++ {
		if rec := serve(h, http.MethodGet, "/api/v1/constraints/library", "viewer-key", nil); rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := serve(h, http.MethodGet, "/api/v1/constraints/library", "viewer-key", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
}
