package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/magland/runpack/internal/httpapi/middleware"
	"github.com/magland/runpack/internal/lifecycle"
	"github.com/magland/runpack/internal/logger"
	"github.com/magland/runpack/internal/ratelimit"
	"github.com/magland/runpack/internal/store"
	"github.com/magland/runpack/internal/validate"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	st := store.New(db)
	prober := validate.NewProber(2*time.Second, 4, log)
	engine := lifecycle.New(st, prober, nil, log)

	r := NewRouter(Config{
		Engine: engine,
		DB:     db,
		Credentials: middleware.Credentials{
			Submit: "submit-secret",
			Runner: "runner-secret",
			Admin:  "admin-secret",
		},
		Limiter:     ratelimit.New(),
		Log:         log,
		ServiceName: "runpack-test",
		TracingOn:   false,
	})
	return r, db
}

func doJSON(r *gin.Engine, method, path, bearer string, headers map[string]string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthLiveAndReady(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodGet, "/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}

	rec = doJSON(r, http.MethodGet, "/health/ready", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/ready, got %d", rec.Code)
	}
}

func TestJobsSubmitCreatesThenDedups(t *testing.T) {
	r, _ := newTestRouter(t)

	body := map[string]any{"job_type": "compute_figure", "input_params": map[string]any{"a": 1}}

	rec := doJSON(r, http.MethodPost, "/api/jobs/submit", "submit-secret", nil, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first submit, got %d: %s", rec.Code, rec.Body.String())
	}
	var first struct {
		Exists bool `json:"exists"`
		Job    struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !first.Exists || first.Job.ID == "" {
		t.Fatalf("expected created job with id, got %+v", first)
	}

	rec = doJSON(r, http.MethodPost, "/api/jobs/submit", "submit-secret", nil, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on dedup resubmit, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJobsSubmitRejectsWithoutCredentials(t *testing.T) {
	r, _ := newTestRouter(t)
	body := map[string]any{"job_type": "compute_figure", "input_params": map[string]any{"a": 1}}

	rec := doJSON(r, http.MethodPost, "/api/jobs/submit", "", nil, body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	rec = doJSON(r, http.MethodPost, "/api/jobs/submit", "runner-secret", nil, body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for runner secret on submit role, got %d", rec.Code)
	}
}

func TestRunnerLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	submitBody := map[string]any{"job_type": "compute_figure", "input_params": map[string]any{"a": 1}}
	rec := doJSON(r, http.MethodPost, "/api/jobs/submit", "submit-secret", nil, submitBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		Job struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	jobID := submitted.Job.ID

	rec = doJSON(r, http.MethodPost, "/api/runner/register", "runner-secret",
		map[string]string{"X-Runner-ID": "runner-1"},
		map[string]any{"id": "runner-1", "name": "worker-1", "capabilities": []string{"compute_figure"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on register, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodGet, "/api/runner/jobs/available?types=compute_figure", "runner-secret",
		map[string]string{"X-Runner-ID": "runner-1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on available, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodPost, "/api/runner/jobs/"+jobID+"/claim", "runner-secret",
		map[string]string{"X-Runner-ID": "runner-1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on claim, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodPost, "/api/runner/jobs/"+jobID+"/claim", "runner-secret",
		map[string]string{"X-Runner-ID": "runner-2"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second claim, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodPost, "/api/runner/jobs/"+jobID+"/heartbeat", "runner-secret",
		map[string]string{"X-Runner-ID": "runner-1"},
		map[string]any{"progress_current": 1, "progress_total": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on heartbeat, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodPost, "/api/runner/jobs/"+jobID+"/complete", "runner-secret",
		map[string]string{"X-Runner-ID": "runner-1"},
		map[string]any{"output_data": map[string]any{"ok": true}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on complete, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodGet, "/api/jobs/"+jobID, "submit-secret", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on status, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminStatsRequiresAdminRole(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodGet, "/api/admin/stats", "submit-secret", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for submit secret on admin route, got %d", rec.Code)
	}

	rec = doJSON(r, http.MethodGet, "/api/admin/stats", "admin-secret", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin secret, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodGet, "/api/admin/stats", "runner-secret", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for runner secret as admin convenience, got %d: %s", rec.Code, rec.Body.String())
	}
}
