// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/auditflow/internal/audit"
)

type fakePipeline struct {
	stores map[string]bool
	stats  audit.ManagerStats
}

func (f *fakePipeline) HealthCheck(context.Context) map[string]bool { return f.stores }
func (f *fakePipeline) Stats() audit.ManagerStats                   { return f.stats }

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pipeline   *fakePipeline
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all stores healthy",
			pipeline:   &fakePipeline{stores: map[string]bool{"file": true, "db": true}},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "one store down",
			pipeline:   &fakePipeline{stores: map[string]bool{"file": true, "db": false}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
		{
			name:       "no stores",
			pipeline:   &fakePipeline{stores: map[string]bool{}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
		{
			name: "manager destroyed",
			pipeline: &fakePipeline{
				stores: map[string]bool{"file": true},
				stats:  audit.ManagerStats{Destroyed: true},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(tt.pipeline).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Health() code = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decodeResponse(t, rec).Status; got != tt.wantStatus {
				t.Errorf("Health() status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestHealth_Payload(t *testing.T) {
	p := &fakePipeline{
		stores: map[string]bool{"file": true},
		stats:  audit.ManagerStats{Processed: 42, Stores: 1},
	}
	rec := httptest.NewRecorder()
	NewHandler(p).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Data HealthStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Data.Stores["file"] {
		t.Errorf("stores[file] = false, want true")
	}
	if body.Data.Stats.Processed != 42 {
		t.Errorf("stats.processed = %d, want 42", body.Data.Stats.Processed)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	probe := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	reg.MustRegister(probe)
	probe.Inc()

	router := NewRouter(&fakePipeline{stores: map[string]bool{"file": true}}, RouterConfig{Gatherer: reg})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"healthz", http.MethodGet, "/healthz", http.StatusOK, `"status":"healthy"`},
		{"livez", http.MethodGet, "/livez", http.StatusOK, `"status":"alive"`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "router_test_total 1"},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound, `"code":"NOT_FOUND"`},
		{"wrong method", http.MethodPost, "/healthz", http.StatusMethodNotAllowed, `"code":"METHOD_NOT_ALLOWED"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("%s %s code = %d, want %d", tt.method, tt.path, rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("%s %s body = %q, want substring %q", tt.method, tt.path, rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Errorf("%s %s missing X-Request-ID", tt.method, tt.path)
			}
		})
	}
}

func TestRouter_WithManager(t *testing.T) {
	m, err := audit.NewManager(audit.WithStores(audit.NewMemoryStore("memory", 0)))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Destroy(context.Background())

	rec := httptest.NewRecorder()
	NewRouter(m, RouterConfig{Gatherer: prometheus.NewRegistry()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestRouter_HealthRateLimit(t *testing.T) {
	router := NewRouter(&fakePipeline{stores: map[string]bool{"file": true}}, RouterConfig{
		Gatherer:        prometheus.NewRegistry(),
		HealthRateLimit: 1,
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("/healthz codes = %v, want [200 429]", codes)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/livez code = %d, want %d (not rate limited)", rec.Code, http.StatusOK)
	}
}
