package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/httpapi/middleware"
	"github.com/magland/runpack/internal/httpapi/response"
	"github.com/magland/runpack/internal/lifecycle"
)

type RunnerHandler struct {
	engine *lifecycle.Engine
}

func NewRunnerHandler(engine *lifecycle.Engine) *RunnerHandler {
	return &RunnerHandler{engine: engine}
}

type registerRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Register implements POST /api/runner/register.
func (h *RunnerHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	runner, err := h.engine.RegisterRunner(c.Request.Context(), req.ID, req.Name, req.Capabilities)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"runner_id": runner.ID, "runner": toRunnerView(*runner)})
}

// Verify implements GET /api/runner/verify.
func (h *RunnerHandler) Verify(c *gin.Context) {
	runnerID := middleware.RunnerID(c)
	runner, err := h.engine.VerifyRunner(c.Request.Context(), runnerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.engine.TouchRunner(c.Request.Context(), runnerID)
	response.OK(c, gin.H{"runner": toRunnerView(*runner)})
}

// Available implements GET /api/runner/jobs/available?types[]=...
func (h *RunnerHandler) Available(c *gin.Context) {
	runnerID := middleware.RunnerID(c)
	_ = h.engine.TouchRunner(c.Request.Context(), runnerID)

	types := c.QueryArray("types[]")
	if len(types) == 0 {
		types = c.QueryArray("types")
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.engine.ListAvailable(c.Request.Context(), types, limit)
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

// Claim implements POST /api/runner/jobs/:id/claim.
func (h *RunnerHandler) Claim(c *gin.Context) {
	runnerID := middleware.RunnerID(c)
	job, err := h.engine.Claim(c.Request.Context(), c.Param("id"), runnerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"job": detailView(*job)})
}

type heartbeatRequest struct {
	ProgressCurrent *int    `json:"progress_current"`
	ProgressTotal   *int    `json:"progress_total"`
	ConsoleOutput   *string `json:"console_output"`
}

// Heartbeat implements POST /api/runner/jobs/:id/heartbeat.
func (h *RunnerHandler) Heartbeat(c *gin.Context) {
	runnerID := middleware.RunnerID(c)
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := h.engine.Heartbeat(c.Request.Context(), c.Param("id"), runnerID, req.ProgressCurrent, req.ProgressTotal, req.ConsoleOutput)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"job": detailView(*job)})
}

type completeRequest struct {
	OutputData    json.RawMessage `json:"output_data"`
	ConsoleOutput *string         `json:"console_output"`
}

// Complete implements POST /api/runner/jobs/:id/complete.
func (h *RunnerHandler) Complete(c *gin.Context) {
	runnerID := middleware.RunnerID(c)
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := h.engine.Complete(c.Request.Context(), c.Param("id"), runnerID, req.OutputData, req.ConsoleOutput)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"job": detailView(*job)})
}

type failRequest struct {
	ErrorMessage  string  `json:"error_message"`
	ConsoleOutput *string `json:"console_output"`
}

// Fail implements POST /api/runner/jobs/:id/error.
func (h *RunnerHandler) Fail(c *gin.Context) {
	runnerID := middleware.RunnerID(c)
	var req failRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := h.engine.Fail(c.Request.Context(), c.Param("id"), runnerID, req.ErrorMessage, req.ConsoleOutput)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"job": detailView(*job)})
}
