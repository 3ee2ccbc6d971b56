package middlewares

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsphere/utils"
)

type cacheFixture struct {
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	r     *gin.Engine
	calls map[string]int
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()
	f := &cacheFixture{mr: miniredis.RunT(t), calls: map[string]int{}}
	f.rdb = redis.NewClient(&redis.Options{Addr: f.mr.Addr()})

	cache := ResponseCache(f.rdb, 30*time.Second)
	f.r = newEngine()
	api := f.r.Group("/api")
	api.GET("/events", cache, func(c *gin.Context) {
		f.calls["list"]++
		c.JSON(http.StatusOK, gin.H{"page": c.Query("page")})
	})
	api.GET("/events/stats", cache, func(c *gin.Context) {
		f.calls["stats"]++
		c.JSON(http.StatusOK, gin.H{"totalEvents": 1})
	})
	api.GET("/events/:id", cache, func(c *gin.Context) {
		f.calls["item"]++
		if c.Param("id") == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	return f
}

func TestResponseCache_MissThenHit(t *testing.T) {
	f := newCacheFixture(t)

	w1 := doReq(f.r, http.MethodGet, "/api/events?page=1", nil, nil)
	assert.Equal(t, "MISS", w1.Header().Get(CacheHeader))

	w2 := doReq(f.r, http.MethodGet, "/api/events?page=1", nil, nil)
	assert.Equal(t, "HIT", w2.Header().Get(CacheHeader))
	assert.Equal(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", w2.Header().Get("Content-Type"))
	assert.Equal(t, 1, f.calls["list"])

	// another query string is another entry
	w3 := doReq(f.r, http.MethodGet, "/api/events?page=2", nil, nil)
	assert.Equal(t, "MISS", w3.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"page":"2"}`, w3.Body.String())
}

func TestResponseCache_KeysMatchInvalidator(t *testing.T) {
	f := newCacheFixture(t)

	doReq(f.r, http.MethodGet, "/api/events", nil, nil)
	doReq(f.r, http.MethodGet, "/api/events/stats", nil, nil)
	doReq(f.r, http.MethodGet, "/api/events/abc", nil, nil)
	require.True(t, f.mr.Exists(utils.EventsItemPrefix+"abc"))
	require.True(t, f.mr.Exists(utils.EventsStatsKey))
	require.Len(t, f.mr.Keys(), 3)

	utils.NewCacheInvalidator(f.rdb).PurgeEvent(context.Background(), "abc")
	assert.Empty(t, f.mr.Keys())

	w := doReq(f.r, http.MethodGet, "/api/events/abc", nil, nil)
	assert.Equal(t, "MISS", w.Header().Get(CacheHeader))
	assert.Equal(t, 2, f.calls["item"])
}

func TestResponseCache_SkipsErrors(t *testing.T) {
	f := newCacheFixture(t)

	for i := 0; i < 2; i++ {
		w := doReq(f.r, http.MethodGet, "/api/events/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	assert.Equal(t, 2, f.calls["item"])
	assert.Empty(t, f.mr.Keys())
}

func TestResponseCache_NilClient(t *testing.T) {
	calls := 0
	r := newEngine()
	r.GET("/api/events", ResponseCache(nil, time.Minute), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "ok")
	})
	doReq(r, http.MethodGet, "/api/events", nil, nil)
	w := doReq(r, http.MethodGet, "/api/events", nil, nil)
	assert.Equal(t, 2, calls)
	assert.Empty(t, w.Header().Get(CacheHeader))
}
