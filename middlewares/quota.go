package middlewares

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type QuotaRule struct {
	Limit  int                       // requests allowed per window
	Window time.Duration             // e.g. 24h
	KeyFn  func(*gin.Context) string // empty key skips the quota
}

// QuotaByIdentity keys the quota on the authenticated user.
func QuotaByIdentity(prefix string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		id, ok := CurrentIdentity(c)
		if !ok || id.UserID == "" {
			return ""
		}
		return prefix + id.UserID
	}
}

// Quota counts requests per key in Redis over a fixed window. A nil client or a zero
// limit disables it, and Redis errors let the request through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || rule.Limit <= 0 {
			c.Next()
			return
		}
		key := rule.KeyFn(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("quota check skipped")
			c.Next()
			return
		}
		// first hit opens the window
		if n == 1 {
			_ = rdb.Expire(ctx, key, rule.Window).Err()
		}
		if int(n) > rule.Limit {
			if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			}
			abortWithError(c, NewRateLimitError("Usage quota exceeded. Please try again later."))
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
		c.Next()
	}
}
