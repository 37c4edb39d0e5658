package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-cart/pkg/errors"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-PackFinderz-Env") != "test" {
		t.Fatalf("expected env header")
	}
}

func TestHealthReadyAllDependenciesUp(t *testing.T) {
	deps := map[string]Pinger{"redis": stubPinger{}, "db": stubPinger{}, "skipped": nil}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != "ready" || len(envelope.Data.Checks) != 2 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	deps := map[string]Pinger{"redis": stubPinger{err: errors.New("dial tcp: refused")}, "db": stubPinger{}}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Failed []string `json:"failed"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeDependency) {
		t.Fatalf("unexpected code %s", payload.Error.Code)
	}
	if len(payload.Error.Details.Failed) != 1 || payload.Error.Details.Failed[0] != "redis" {
		t.Fatalf("unexpected failed list %v", payload.Error.Details.Failed)
	}
}
