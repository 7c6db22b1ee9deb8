// Package httpapi assembles the coordinator's gin.Engine: middleware chain,
// route table, and the handlers/response/middleware subpackages, behind a
// single NewRouter constructor that takes its dependencies in a Config struct.
package httpapi

import (
	"github.com/gin-gonic/gin"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/magland/runpack/internal/httpapi/handlers"
	"github.com/magland/runpack/internal/httpapi/middleware"
	"github.com/magland/runpack/internal/lifecycle"
	"github.com/magland/runpack/internal/logger"
	"github.com/magland/runpack/internal/ratelimit"
)

type Config struct {
	Engine      *lifecycle.Engine
	DB          *gorm.DB
	Credentials middleware.Credentials
	Limiter     *ratelimit.Limiter
	Log         *logger.Logger
	ServiceName string
	TracingOn   bool
}

func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingOn {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	auth := middleware.NewAuthMiddleware(cfg.Credentials, cfg.Log)

	jobsH := handlers.NewJobsHandler(cfg.Engine)
	runnerH := handlers.NewRunnerHandler(cfg.Engine)
	adminH := handlers.NewAdminHandler(cfg.Engine)
	healthH := handlers.NewHealthHandler(cfg.DB, cfg.ServiceName)

	r.GET("/", healthH.Live)
	r.GET("/health", healthH.Live)
	r.GET("/health/live", healthH.Live)
	r.GET("/health/ready", healthH.Ready)

	submitLimit := middleware.RateLimit(cfg.Limiter, "submit", middleware.SubmitLimit, middleware.ByClientIP)
	statusLimit := middleware.RateLimit(cfg.Limiter, "status", middleware.StatusLimit, middleware.ByClientIP)
	runnerLimit := middleware.RateLimit(cfg.Limiter, "runner", middleware.RunnerLimit, middleware.ByRunnerID)

	api := r.Group("/api")
	{
		jobs := api.Group("/jobs")
		jobs.Use(auth.Require(middleware.RoleSubmit))
		{
			jobs.POST("/check", submitLimit, jobsH.Check)
			jobs.POST("/submit", submitLimit, jobsH.Submit)
			jobs.GET("/:id", statusLimit, jobsH.Status)
		}

		runner := api.Group("/runner")
		runner.Use(auth.Require(middleware.RoleRunner))
		{
			runner.POST("/register", runnerH.Register)
			runner.GET("/verify", middleware.RequireRunnerID(), runnerH.Verify)
			runner.GET("/jobs/available", middleware.RequireRunnerID(), runnerLimit, runnerH.Available)
			runner.POST("/jobs/:id/claim", middleware.RequireRunnerID(), runnerLimit, runnerH.Claim)
			runner.POST("/jobs/:id/heartbeat", middleware.RequireRunnerID(), runnerLimit, runnerH.Heartbeat)
			runner.POST("/jobs/:id/complete", middleware.RequireRunnerID(), runnerLimit, runnerH.Complete)
			runner.POST("/jobs/:id/error", middleware.RequireRunnerID(), runnerLimit, runnerH.Fail)
		}

		admin := api.Group("/admin")
		admin.Use(auth.Require(middleware.RoleAdmin))
		{
			admin.GET("/stats", adminH.Stats)
			admin.GET("/jobs", adminH.ListJobs)
			admin.GET("/jobs/:id", adminH.JobDetail)
			admin.DELETE("/jobs/:id", adminH.DeleteJob)
			admin.POST("/jobs/batch-delete", adminH.BatchDelete)
			admin.GET("/runners", adminH.ListRunners)
			admin.GET("/runners/:id", adminH.RunnerDetail)
		}
	}

	return r
}
