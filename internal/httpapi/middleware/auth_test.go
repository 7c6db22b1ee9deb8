package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/logger"
)

func newAuthTestRouter(t *testing.T, role Role, requireRunnerID bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	auth := NewAuthMiddleware(Credentials{Submit: "submit-secret", Runner: "runner-secret", Admin: "admin-secret"}, log)

	handlers := []gin.HandlerFunc{auth.Require(role)}
	if requireRunnerID {
		handlers = append(handlers, RequireRunnerID())
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	r := gin.New()
	r.GET("/protected", handlers...)
	return r
}

func doAuthRequest(r *gin.Engine, token, runnerID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if runnerID != "" {
		req.Header.Set("X-Runner-ID", runnerID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuth_SubmitRoleAcceptsOnlySubmitSecret(t *testing.T) {
	r := newAuthTestRouter(t, RoleSubmit, false)

	if rec := doAuthRequest(r, "submit-secret", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "runner-secret", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for runner secret on submit role, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "admin-secret", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for admin secret on submit role, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no token, got %d", rec.Code)
	}
}

func TestAuth_RunnerRoleRequiresRunnerIDHeader(t *testing.T) {
	r := newAuthTestRouter(t, RoleRunner, true)

	if rec := doAuthRequest(r, "runner-secret", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 missing X-Runner-ID, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "runner-secret", "runner-42"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "submit-secret", "runner-42"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for submit secret on runner role, got %d", rec.Code)
	}
}

func TestAuth_AdminRoleAcceptsAdminOrRunnerSecret(t *testing.T) {
	r := newAuthTestRouter(t, RoleAdmin, false)

	if rec := doAuthRequest(r, "admin-secret", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin secret, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "runner-secret", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for runner secret as convenience, got %d", rec.Code)
	}
	if rec := doAuthRequest(r, "submit-secret", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for submit secret on admin role, got %d", rec.Code)
	}
}
