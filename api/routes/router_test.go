package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-cart/api/controllers"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/provider"
	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	"github.com/angelmondragon/packfinderz-cart/pkg/metrics"
	"github.com/angelmondragon/packfinderz-cart/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"https://shop.example.com"}},
		Cart: config.CartConfig{
			Currency:         "USD",
			StorageKey:       "cart",
			ValidateOnChange: true,
			Backend:          config.BackendMemory,
			WriteTimeout:     time.Second,
			IdempotencyTTL:   time.Hour,
		},
		Cookie: config.CookieConfig{Path: "/", MaxAge: time.Hour, HTTPOnly: true},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *memoryIdempotency) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	carts, err := provider.New(cfg, provider.Deps{Metrics: metrics.NewCartMetrics(reg)})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	idem := &memoryIdempotency{data: map[string]string{}}
	pingers := map[string]controllers.Pinger{"db": stubPinger{}}
	return NewRouter(cfg, nil, carts, idem, pingers, reg), idem
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestRouterHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
		if resp.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestRouterCartFlowWithIdempotentAdd(t *testing.T) {
	router, idem := newTestRouter(t)

	first := serve(router, httptest.NewRequest(http.MethodGet, "/cart", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", first.Code)
	}
	var cartCookie *http.Cookie
	for _, c := range first.Result().Cookies() {
		if c.Name == provider.CartIDCookie {
			cartCookie = c
		}
	}
	if cartCookie == nil {
		t.Fatalf("expected %s cookie to be issued", provider.CartIDCookie)
	}

	add := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"A","name":"Shirt","price":10}`))
		req.Header.Set("Idempotency-Key", "retry-1")
		req.AddCookie(cartCookie)
		return serve(router, req)
	}
	if resp := add(); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := add(); resp.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", resp.Code)
	}
	if len(idem.data) != 1 {
		t.Fatalf("expected one idempotency record, got %d", len(idem.data))
	}

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(cartCookie)
	resp := serve(router, req)
	var envelope struct {
		Data struct {
			Items []struct {
				Quantity int `json:"quantity"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].Quantity != 1 {
		t.Fatalf("retried add must not double the line, got %+v", envelope.Data.Items)
	}
}

func TestRouterExposesMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	serve(router, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"A","name":"Shirt","price":10}`)))

	resp := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "cart_mutations_total") {
		t.Fatalf("expected cart mutation counter in metrics output")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/cart/items", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	resp := serve(router, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if resp.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be allowed")
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
