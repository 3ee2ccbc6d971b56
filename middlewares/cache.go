package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventsphere/utils"
)

const CacheHeader = "X-Cache"

type cachedBody struct {
	Status      int
	ContentType string
	Body        []byte
}

// sha1Hex keeps query-dependent keys short.
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom names the cache entry of a GET request and its kind. Event keys live in the
// namespaces utils.CacheInvalidator purges. Other methods are never cached.
func CacheKeyFrom(c *gin.Context) (string, string) {
	method := c.Request.Method
	path := c.FullPath()
	rawq := c.Request.URL.RawQuery

	if method != "GET" || path == "" {
		return "", ""
	}

	switch {
	case strings.HasSuffix(path, "/events/stats"):
		return utils.EventsStatsKey, "stats"
	case strings.HasSuffix(path, "/events/:id"):
		return utils.EventsItemPrefix + c.Param("id"), "item"
	case strings.HasSuffix(path, "/events"):
		return utils.EventsListPrefix + sha1Hex(rawq), "list"
	default:
		return "cache:generic:" + sha1Hex(method+"|"+path+"|"+rawq), "generic"
	}
}

// ResponseCache serves successful GET responses from Redis for ttl. Mount it per route
// after Authenticate so a hit never skips the auth check. A nil client disables it.
func ResponseCache(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, _ := CacheKeyFrom(c)
		if rdb == nil || key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		b, err := rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil && len(b) > 0:
			var hit cachedBody
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&hit); err == nil {
				c.Header(CacheHeader, "HIT")
				c.Data(hit.Status, hit.ContentType, hit.Body)
				c.Abort()
				return
			}
		case err != nil && !errors.Is(err, redis.Nil):
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
		}

		// headers go out with the first body write, so mark the miss up front
		c.Header(CacheHeader, "MISS")
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = bw

		c.Next()

		status := bw.Status()
		if status < 200 || status >= 300 || len(c.Errors) > 0 {
			return
		}
		item := cachedBody{
			Status:      status,
			ContentType: bw.Header().Get("Content-Type"),
			Body:        bw.buf.Bytes(),
		}
		var o bytes.Buffer
		if err := gob.NewEncoder(&o).Encode(item); err == nil {
			if err := rdb.Set(ctx, key, o.Bytes(), ttl).Err(); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
			}
		}
	}
}

// bufferedWriter keeps a copy of the body while it is written to the client.
type bufferedWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
