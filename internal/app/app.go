// Package app wires every coordinator component together: config, Store,
// Validator, Notifier, Lifecycle Engine, and the HTTP router, behind a
// New()/Start()/Run()/Close() lifecycle.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/magland/runpack/internal/config"
	"github.com/magland/runpack/internal/httpapi"
	"github.com/magland/runpack/internal/lifecycle"
	"github.com/magland/runpack/internal/logger"
	"github.com/magland/runpack/internal/notify"
	"github.com/magland/runpack/internal/observability"
	"github.com/magland/runpack/internal/ratelimit"
	"github.com/magland/runpack/internal/store"
	"github.com/magland/runpack/internal/validate"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    config.Config
	Engine *lifecycle.Engine

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("loading configuration...")
	cfg := config.Load(log)

	pgCfg := store.ConfigFromEnv(log)
	db, err := store.Open(pgCfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	st := store.New(db)
	prober := validate.NewProber(cfg.FreshnessProbeTimeout, cfg.FreshnessMaxConcurrent, log)
	notifyCfg := notify.ConfigFromEnv(log)
	notifier := notify.New(notifyCfg, log)

	engine := lifecycle.New(st, prober, notifier, log)

	otelCfg := observability.Config{ServiceName: cfg.ServiceName, Enabled: cfg.OTelEnabled, SampleRatio: 1.0}
	otelShutdown := observability.Init(context.Background(), log, otelCfg)

	router := httpapi.NewRouter(httpapi.Config{
		Engine:      engine,
		DB:          db,
		Credentials: cfg.Credentials,
		Limiter:     ratelimit.New(),
		Log:         log,
		ServiceName: cfg.ServiceName,
		TracingOn:   cfg.OTelEnabled,
	})

	return &App{
		Log:          log,
		DB:           db,
		Router:       router,
		Cfg:          cfg,
		Engine:       engine,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background stale-heartbeat sweeper.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.Engine.RunSweeper(ctx, a.Cfg.StaleSweepCadence)
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
