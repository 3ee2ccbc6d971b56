package middlewares

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedEngine(rl *RateLimiter, key KeySelector) *gin.Engine {
	r := newEngine(rl.Middleware(key))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

// Burst 2: two requests pass, the third is rejected with 429 and Retry-After.
func TestRateLimiter_BurstThen429(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 0.01, Burst: 2, IdleTTL: time.Minute})
	t.Cleanup(rl.Stop)
	r := limitedEngine(rl, ByClientIP("ip:"))

	for i := 0; i < 2; i++ {
		w := doReq(r, http.MethodGet, "/ping", nil, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := doReq(r, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, errorDetail{Message: "Too many requests", Type: TypeRateLimit}, decodeError(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 0.01, Burst: 1, IdleTTL: time.Minute})
	t.Cleanup(rl.Stop)
	r := limitedEngine(rl, func(c *gin.Context) string { return c.GetHeader("X-User") })

	assert.Equal(t, http.StatusOK, doReq(r, http.MethodGet, "/ping", nil, map[string]string{"X-User": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, doReq(r, http.MethodGet, "/ping", nil, map[string]string{"X-User": "a"}).Code)
	assert.Equal(t, http.StatusOK, doReq(r, http.MethodGet, "/ping", nil, map[string]string{"X-User": "b"}).Code)
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 1, IdleTTL: 20 * time.Millisecond})
	t.Cleanup(rl.Stop)

	rl.getLimiter("a")
	rl.getLimiter("b")
	require.Equal(t, 2, rl.size())

	assert.Eventually(t, func() bool { return rl.size() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWindowLimit(t *testing.T) {
	conf := WindowLimit(100, 15*time.Minute, time.Hour)
	assert.Equal(t, 100, conf.Burst)
	assert.InDelta(t, 100.0/900.0, conf.RPS, 1e-9)
}
