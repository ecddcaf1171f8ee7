package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestRateLimiter はテスト終了時に停止するRateLimiterを生成する。
func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func requestAs(callerID, method string) *http.Request {
	req := httptest.NewRequest(method, "/users", nil)
	if callerID != "" {
		req = req.WithContext(ContextWithCallerID(req.Context(), callerID))
	}
	return req
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:   10,
		GeneralBurst:  5,
		MutationRate:  1,
		MutationBurst: 1,
	})
	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("idp_a", http.MethodGet))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:   1,
		GeneralBurst:  2,
		MutationRate:  1,
		MutationBurst: 1,
	})
	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs("idp_a", http.MethodGet))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("idp_a", http.MethodGet))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want %q", got, "1")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode 429 body: %v", err)
	}
	if body.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body.Code)
	}
}

// Retry-Afterは1トークンの補充時間（切り上げ秒）であることを検証する。
func TestRateLimitMiddleware_RetryAfterReflectsRate(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 30) // mutation: 0.5 req/sec
	cfg.MutationBurst = 1
	rl := newTestRateLimiter(t, cfg)
	handler := rl.MutationMiddleware()(okHandler)

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("idp_a", http.MethodPost))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("idp_a", http.MethodPost))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want %q", got, "2")
	}
}

func TestRateLimitMiddleware_IsolatesCallers(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:   1,
		GeneralBurst:  1,
		MutationRate:  1,
		MutationBurst: 1,
	})
	handler := rl.GeneralMiddleware()(okHandler)

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("idp_a", http.MethodGet))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("idp_b", http.MethodGet))
	if w.Code != http.StatusOK {
		t.Errorf("another caller should not be limited: status = %d", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_NoCallerID_Returns401(t *testing.T) {
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig())
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("", http.MethodGet))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// 書き込み操作の制限はAPI全般の制限と独立していることを検証する。
func TestMutationRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:   1,
		GeneralBurst:  1,
		MutationRate:  1,
		MutationBurst: 1,
	})
	general := rl.GeneralMiddleware()(okHandler)
	mutation := rl.MutationMiddleware()(okHandler)

	general.ServeHTTP(httptest.NewRecorder(), requestAs("idp_a", http.MethodGet))

	w := httptest.NewRecorder()
	mutation.ServeHTTP(w, requestAs("idp_a", http.MethodPost))
	if w.Code != http.StatusOK {
		t.Errorf("mutation should still be allowed: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	mutation.ServeHTTP(w, requestAs("idp_a", http.MethodPost))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second mutation: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if rl.MutationLimiterCount() != 1 {
		t.Errorf("MutationLimiterCount = %d, want 1", rl.MutationLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:     10,
		GeneralBurst:    10,
		MutationRate:    10,
		MutationBurst:   10,
		CleanupInterval: time.Hour,
	})

	rl.general.get("idp_old")
	rl.mutation.get("idp_old")
	rl.general.get("idp_new")

	rl.general.mu.Lock()
	rl.general.limiters["idp_old"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.general.mu.Unlock()
	rl.mutation.mu.Lock()
	rl.mutation.limiters["idp_old"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.mutation.mu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.MutationLimiterCount() != 0 {
		t.Errorf("MutationLimiterCount = %d, want 0", rl.MutationLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.MutationRate != 0.5 {
		t.Errorf("MutationRate = %v, want 0.5", cfg.MutationRate)
	}
	if cfg.MutationBurst != 30 {
		t.Errorf("MutationBurst = %d, want 30", cfg.MutationBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}
