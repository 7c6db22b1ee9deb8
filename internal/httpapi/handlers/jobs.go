// Package handlers implements the coordinator's gin handlers, one file per
// API surface (jobs, runner, admin, health): thin structs holding only the
// services they dispatch to, JSON in, response.OK/response.Error out.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magland/runpack/internal/httpapi/response"
	"github.com/magland/runpack/internal/lifecycle"
)

type JobsHandler struct {
	engine *lifecycle.Engine
}

func NewJobsHandler(engine *lifecycle.Engine) *JobsHandler {
	return &JobsHandler{engine: engine}
}

type submitRequest struct {
	JobType     string          `json:"job_type"`
	InputParams json.RawMessage `json:"input_params"`
}

type submitResponse struct {
	Exists bool     `json:"exists"`
	Job    *jobView `json:"job,omitempty"`
	Status string   `json:"status,omitempty"`
}

// Check implements POST /api/jobs/check: the read-only twin of Submit.
func (h *JobsHandler) Check(c *gin.Context) {
	h.dispatch(c, false)
}

// Submit implements POST /api/jobs/submit: create-or-return.
func (h *JobsHandler) Submit(c *gin.Context) {
	h.dispatch(c, true)
}

func (h *JobsHandler) dispatch(c *gin.Context, create bool) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.Submit(c.Request.Context(), req.JobType, req.InputParams, create)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result.Outcome {
	case lifecycle.OutcomeNotFound:
		response.OK(c, submitResponse{Exists: false})
	case lifecycle.OutcomeCreated:
		v := detailView(*result.Job)
		response.Created(c, submitResponse{Exists: true, Job: &v})
	case lifecycle.OutcomeExpired:
		response.OK(c, submitResponse{Exists: true, Status: "expired"})
	default:
		v := detailView(*result.Job)
		response.OK(c, submitResponse{Exists: true, Job: &v})
	}
}

// Status implements GET /api/jobs/:id.
func (h *JobsHandler) Status(c *gin.Context) {
	job, err := h.engine.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"job": detailView(*job)})
}
