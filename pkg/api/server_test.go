package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"SignalRadar/pkg/aggregator"
	"SignalRadar/pkg/pipeline"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	pipe := pipeline.New(pipeline.Config{}, nil, nil, aggregator.New(aggregator.Config{}))
	s := NewServer("0")
	s.SetupRoutes(NewHandlers(pipe, nil))
	return s
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	if w := serve(s, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Fatalf("健康检查应返回200, 实际 %d", w.Code)
	}
}

func TestSignalsBadLimit(t *testing.T) {
	s := newTestServer()
	if w := serve(s, http.MethodGet, "/api/v1/signals?limit=abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("非法limit应返回400, 实际 %d", w.Code)
	}
}

func TestLastScanBeforeAnyScan(t *testing.T) {
	s := newTestServer()
	if w := serve(s, http.MethodGet, "/api/v1/scan/last"); w.Code != http.StatusNotFound {
		t.Fatalf("未扫描过应返回404, 实际 %d", w.Code)
	}
}

func TestTriggerScanThenLast(t *testing.T) {
	s := newTestServer()
	if w := serve(s, http.MethodPost, "/api/v1/scan"); w.Code != http.StatusOK {
		t.Fatalf("触发扫描应返回200, 实际 %d", w.Code)
	}
	if w := serve(s, http.MethodGet, "/api/v1/scan/last"); w.Code != http.StatusOK {
		t.Fatalf("扫描后查询最近结果应返回200, 实际 %d", w.Code)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	s := newTestServer()
	paths := []string{
		"/api/v1/history/signals",
		"/api/v1/history/signals/600519",
		"/api/v1/history/scans",
	}
	for _, path := range paths {
		if w := serve(s, http.MethodGet, path); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("未启用持久化时 %s 应返回503, 实际 %d", path, w.Code)
		}
	}
}
