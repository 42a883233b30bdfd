package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/pkg/redis"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// RateLimit applies a Redis sliding window per caller and route.
// The caller is the authenticated userKey, else the client IP.
// A nil rdb or a Redis error lets the request through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		caller := c.ClientIP()
		if p, s := c.GetString(CtxProvider), c.GetString(CtxSubject); p != "" && s != "" {
			caller = p + ":" + s
		}
		key := fmt.Sprintf("%s:%s", caller, c.FullPath())

		allowed, remaining, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			response.TooManyRequests(c, 10004, "too many requests, please slow down")
			c.Abort()
			return
		}

		c.Next()
	}
}
