package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/httpapi/response"
	"github.com/magland/runpack/internal/lifecycle"
	"github.com/magland/runpack/internal/store"
)

type AdminHandler struct {
	engine *lifecycle.Engine
}

func NewAdminHandler(engine *lifecycle.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// Stats implements GET /api/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	counts, err := h.engine.StatsByStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	runners, err := h.engine.ListRunners(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	activeRunners := 0
	for _, r := range runners {
		if r.Active(timeNow()) {
			activeRunners++
		}
	}
	response.OK(c, gin.H{
		"jobs_by_status": counts,
		"runner_count":   len(runners),
		"active_runners": activeRunners,
	})
}

// ListJobs implements GET /api/admin/jobs?status=&limit=.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	var status *store.JobStatus
	if raw := c.Query("status"); raw != "" {
		s := store.JobStatus(raw)
		status = &s
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := h.engine.ListAll(c.Request.Context(), status, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, summaryView(j))
	}
	response.OK(c, gin.H{"jobs": views})
}

// JobDetail implements GET /api/admin/jobs/:id.
func (h *AdminHandler) JobDetail(c *gin.Context) {
	job, err := h.engine.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"job": detailView(*job)})
}

// DeleteJob implements DELETE /api/admin/jobs/:id.
func (h *AdminHandler) DeleteJob(c *gin.Context) {
	ok, err := h.engine.DeleteJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Fail(c, http.StatusNotFound, "job not found")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

type batchDeleteRequest struct {
	JobIDs []string `json:"job_ids"`
}

// BatchDelete implements POST /api/admin/jobs/batch-delete.
func (h *AdminHandler) BatchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	results, err := h.engine.DeleteJobs(c.Request.Context(), req.JobIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

// ListRunners implements GET /api/admin/runners.
func (h *AdminHandler) ListRunners(c *gin.Context) {
	runners, err := h.engine.ListRunners(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]runnerView, 0, len(runners))
	for _, r := range runners {
		views = append(views, toRunnerView(r))
	}
	response.OK(c, gin.H{"runners": views})
}

// RunnerDetail implements GET /api/admin/runners/:id.
func (h *AdminHandler) RunnerDetail(c *gin.Context) {
	runner, err := h.engine.VerifyRunner(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	jobs, err := h.engine.ListJobsByRunner(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, summaryView(j))
	}
	response.OK(c, gin.H{"runner": toRunnerView(*runner), "jobs": views})
}
