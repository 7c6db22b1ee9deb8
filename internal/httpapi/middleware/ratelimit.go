package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/httpapi/response"
	"github.com/magland/runpack/internal/ratelimit"
)

// KeyFunc derives the per-request rate-limit identity: client IP for
// submit/status endpoints, runner id for runner endpoints.
type KeyFunc func(c *gin.Context) string

func ByClientIP(c *gin.Context) string { return c.ClientIP() }

func ByRunnerID(c *gin.Context) string { return RunnerID(c) }

// RateLimit enforces limit requests per window for the identity keyFunc
// extracts, scoped by tag so distinct endpoint classes never share a
// bucket.
func RateLimit(limiter *ratelimit.Limiter, tag string, limit ratelimit.Limit, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := tag + ":" + keyFunc(c)
		allowed, resetAt := limiter.Allow(key, limit)
		if !allowed {
			response.RateLimited(c, resetAt.Unix())
			return
		}
		c.Next()
	}
}

// SubmitLimit, StatusLimit, RunnerLimit are the fixed per-role windows
// (10/60s submit, 60/60s status, 120/60s runner).
var (
	SubmitLimit = ratelimit.Limit{Count: 10, Window: 60 * time.Second}
	StatusLimit = ratelimit.Limit{Count: 60, Window: 60 * time.Second}
	RunnerLimit = ratelimit.Limit{Count: 120, Window: 60 * time.Second}
)
