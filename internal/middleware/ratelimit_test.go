package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestEngine(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(rl.Handler())
	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return engine
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	engine := newTestEngine(rl)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimiterBlocksOverBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	engine := newTestEngine(rl)

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("final status = %d, want 429", lastCode)
	}
}

func TestRateLimiterTracksKeysIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	first := rl.getLimiter("1.1.1.1:1234")
	second := rl.getLimiter("2.2.2.2:5678")

	if !first.Allow() {
		t.Error("first key should have its own untouched bucket")
	}
	if !second.Allow() {
		t.Error("second key should have its own untouched bucket")
	}
	if first.Allow() {
		t.Error("first key's single-token bucket should now be empty")
	}
}

func TestCleanupResetsOversizedMap(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	for i := 0; i < 10001; i++ {
		rl.getLimiter(string(rune(i)))
	}
	rl.Cleanup()

	rl.mu.Lock()
	size := len(rl.limiters)
	rl.mu.Unlock()

	if size != 0 {
		t.Errorf("limiters map size = %d after Cleanup(), want 0", size)
	}
}
