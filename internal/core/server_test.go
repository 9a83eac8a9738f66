package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"microgrid/internal/config"
	"microgrid/internal/ratelimit"
	"microgrid/internal/types"
)

const testOperatorKey = "op-secret-key"

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestServer builds a mounted server with one public and one operator
// route under /v1.
func newTestServer(t *testing.T, perMinute int) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testOperatorKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash operator key: %v", err)
	}
	cfg := &config.Config{Server: config.ServerConfig{
		OperatorKeyHash:    types.SecretString(hash),
		RateLimitPerMin:    perMinute,
		RequestTimeout:     time.Second,
		CorsAllowedOrigins: []string{"https://ops.campus.example"},
	}}
	srv, err := NewServer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.RateLimitStore = ratelimit.NewMemoryStore(nil)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
			actor, _ := types.GetActor(r.Context())
			JSON(w, r, http.StatusOK, APIResponse{Data: actor.Type})
		})
		r.With(srv.RequireOperator).Post("/private", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})
	srv.MountRoutes()
	return srv
}

func do(srv *Server, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestNewServer_RejectsBadHash(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{OperatorKeyHash: "not-a-hash"}}
	if _, err := NewServer(cfg, discardLogger()); err == nil {
		t.Fatal("expected error for malformed operator hash")
	}
	if _, err := NewServer(nil, discardLogger()); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestAuth_AnonymousAndOperator(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := do(srv, http.MethodGet, "/v1/public", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous GET: status %d", rec.Code)
	}
	var body struct{ Data string }
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Data != string(types.ActorTypeAnonymous) {
		t.Errorf("actor = %q, want anonymous", body.Data)
	}

	if rec := do(srv, http.MethodPost, "/v1/private", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous POST: status %d, want 401", rec.Code)
	} else if code := errorCode(t, rec); code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("code = %s", code)
	}

	if rec := do(srv, http.MethodPost, "/v1/private", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status %d, want 401", rec.Code)
	} else if code := errorCode(t, rec); code != string(types.ErrCodeAuthTokenInvalid) {
		t.Errorf("code = %s", code)
	}

	if rec := do(srv, http.MethodPost, "/v1/private", testOperatorKey); rec.Code != http.StatusNoContent {
		t.Errorf("operator POST: status %d, want 204", rec.Code)
	}
}

func TestAuth_OperatorDisabledWithoutHash(t *testing.T) {
	srv, err := NewServer(&config.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if srv.Operator.Enabled() {
		t.Fatal("operator auth should be disabled")
	}
	if srv.Operator.Verify("") || srv.Operator.Verify("anything") {
		t.Fatal("disabled operator auth must reject every key")
	}
}

func TestRateLimit_PerActor(t *testing.T) {
	srv := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		if rec := do(srv, http.MethodGet, "/v1/public", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	rec := do(srv, http.MethodGet, "/v1/public", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeRateLimit) {
		t.Errorf("code = %s", code)
	}

	// The operator has its own bucket.
	if rec := do(srv, http.MethodPost, "/v1/private", testOperatorKey); rec.Code != http.StatusNoContent {
		t.Errorf("operator request: status %d", rec.Code)
	}
}

type failingStore struct{}

func (failingStore) IncrementAndCheck(context.Context, string, int, time.Duration) (RateLimitResult, error) {
	return RateLimitResult{}, errors.New("redis: connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	srv := newTestServer(t, 1)
	srv.RateLimitStore = failingStore{}

	for i := 0; i < 3; i++ {
		if rec := do(srv, http.MethodGet, "/v1/public", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rec.Code)
		}
	}
}

func TestMiddleware_HeadersAndRecovery(t *testing.T) {
	srv := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/public", nil)
	req.Header.Set("X-Request-Id", "req-7")
	req.Header.Set("Origin", "https://ops.campus.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-7" {
		t.Errorf("X-Request-Id = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.campus.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	rec = do(srv, http.MethodGet, "/v1/panic", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic route: status %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %s", code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, 0)

	if rec := do(srv, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("no probes: status %d", rec.Code)
	}

	srv.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "database", Fn: func(context.Context) error { return nil }},
		ProbeFunc{ProbeName: "redis", Fn: func(context.Context) error { return errors.New("down") }},
	}
	rec := do(srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing probe: status %d, want 503", rec.Code)
	}
	var body healthResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Components["database"].Status != "healthy" || body.Components["redis"].Message != "down" {
		t.Errorf("unexpected components: %+v", body.Components)
	}
}

func TestShutdown_RunsAllClosers(t *testing.T) {
	srv := newTestServer(t, 0)
	var ran []string
	srv.Closers = []func(context.Context) error{
		func(context.Context) error { ran = append(ran, "a"); return errors.New("a failed") },
		func(context.Context) error { ran = append(ran, "b"); return nil },
	}

	err := srv.Shutdown(context.Background())
	if err == nil || err.Error() != "a failed" {
		t.Errorf("err = %v, want a failed", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v", ran)
	}
}
