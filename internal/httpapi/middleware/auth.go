// Package middleware holds the coordinator's gin.HandlerFunc chain: auth,
// CORS, request tracing, and rate limiting. Auth checks static bearer
// secrets rather than a signed, issued token (see DESIGN.md).
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/logger"
)

// Role is one of the coordinator's three independent credential roles.
type Role string

const (
	RoleSubmit Role = "submit"
	RoleRunner Role = "runner"
	RoleAdmin  Role = "admin"
)

// Credentials holds the three static shared secrets read from the
// environment (internal/config). The admin role additionally accepts the
// runner secret as a convenience.
type Credentials struct {
	Submit string
	Runner string
	Admin  string
}

type AuthMiddleware struct {
	creds Credentials
	log   *logger.Logger
}

func NewAuthMiddleware(creds Credentials, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{creds: creds, log: log.With("component", "AuthMiddleware")}
}

// Require returns a handler that accepts only the given role's secret
// (plus, for the admin role, the runner secret; see accepts).
func (m *AuthMiddleware) Require(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || !m.accepts(role, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid credentials"})
			return
		}
		c.Next()
	}
}

// RequireRunnerID enforces the X-Runner-ID header and stashes it on the
// context for RunnerID to read. It applies only to per-job runner
// endpoints (available/claim/heartbeat/complete/error) and to verify, which
// exists specifically to confirm a runner id. Register does not carry this
// header: a runner has no id yet at registration time, and Register reads
// its id from the request body instead.
func RequireRunnerID() gin.HandlerFunc {
	return func(c *gin.Context) {
		runnerID := strings.TrimSpace(c.GetHeader("X-Runner-ID"))
		if runnerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Runner-ID header"})
			return
		}
		c.Set("runner_id", runnerID)
		c.Next()
	}
}

// accepts checks the role's own secret, with the admin role additionally
// accepting the runner secret as a convenience for ops tooling that
// already holds a runner credential.
func (m *AuthMiddleware) accepts(role Role, token string) bool {
	switch role {
	case RoleSubmit:
		return secureCompare(token, m.creds.Submit) && m.creds.Submit != ""
	case RoleRunner:
		return secureCompare(token, m.creds.Runner) && m.creds.Runner != ""
	case RoleAdmin:
		return (secureCompare(token, m.creds.Admin) && m.creds.Admin != "") ||
			(secureCompare(token, m.creds.Runner) && m.creds.Runner != "")
	default:
		return false
	}
}

func secureCompare(a, b string) bool {
	if b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// RunnerID reads the runner id RequireRunnerID attached to the context.
func RunnerID(c *gin.Context) string {
	v, _ := c.Get("runner_id")
	id, _ := v.(string)
	return id
}
