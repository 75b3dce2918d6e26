package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiter(t *testing.T, generalBurst, validateBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    generalBurst,
		ValidateRate:    rate.Limit(1.0 / 60.0),
		ValidateBurst:   validateBurst,
		CleanupInterval: time.Minute,
	}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(rl.Stop)
	return rl
}

func doRequest(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := testRateLimiter(t, 3, 1)
	handler := NewUserIDMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for i := 0; i < 3; i++ {
		if rec := doRequest(handler, "user-1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := doRequest(handler, "user-1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーがない")
	}
}

func TestGeneralMiddleware_IsolatesClients(t *testing.T) {
	rl := testRateLimiter(t, 1, 1)
	handler := NewUserIDMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	if rec := doRequest(handler, "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("user-1 first request: status = %d", rec.Code)
	}
	if rec := doRequest(handler, "user-1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("user-1 second request: status = %d, want 429", rec.Code)
	}
	// 別ユーザーには影響しない
	if rec := doRequest(handler, "user-2"); rec.Code != http.StatusOK {
		t.Errorf("user-2 first request: status = %d", rec.Code)
	}
}

func TestValidateMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := testRateLimiter(t, 10, 1)
	general := NewUserIDMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	validate := NewUserIDMiddleware()(rl.ValidateMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	if rec := doRequest(validate, "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("validate first request: status = %d", rec.Code)
	}
	if rec := doRequest(validate, "user-1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("validate second request: status = %d, want 429", rec.Code)
	}
	// 検証の上限に達してもAPI全般は通る
	if rec := doRequest(general, "user-1"); rec.Code != http.StatusOK {
		t.Errorf("general request: status = %d", rec.Code)
	}
}

func TestClientKey_FallsBackToRemoteIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	if got := clientKey(req); got != "203.0.113.7" {
		t.Errorf("clientKey() = %q, want %q", got, "203.0.113.7")
	}
}

func TestNewRateLimiterConfig_Defaults(t *testing.T) {
	cfg := NewRateLimiterConfig(0)
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	cfg = NewRateLimiterConfig(60)
	if cfg.GeneralRate != rate.Limit(1.0) {
		t.Errorf("GeneralRate = %v, want 1.0", cfg.GeneralRate)
	}
}
