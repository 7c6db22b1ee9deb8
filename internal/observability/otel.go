// Package observability wires up request tracing to a stdout exporter only
// — this coordinator has no OTLP collector of its own, so there's no
// OTLP-over-HTTP exporter path to stand up (see DESIGN.md).
package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/magland/runpack/internal/envutil"
	"github.com/magland/runpack/internal/logger"
)

type Config struct {
	ServiceName string
	Enabled     bool
	SampleRatio float64
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "runpack-coordinator", log),
		Enabled:     envutil.Bool("OTEL_ENABLED", false),
		SampleRatio: sampleRatio(envutil.String("OTEL_SAMPLER_RATIO", "1.0", log)),
	}
}

func sampleRatio(raw string) float64 {
	raw = strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1.0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

var (
	once     sync.Once
	shutdown func(context.Context) error = func(context.Context) error { return nil }
)

// Init installs a global TracerProvider exporting spans to stdout. It is a
// no-op if already initialized or if cfg.Enabled is false, returning a
// harmless shutdown func either way so callers never need a conditional.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	once.Do(func() {
		if !cfg.Enabled {
			return
		}
		res, err := resource.New(ctx, resource.WithAttributes())
		if err != nil {
			log.Warn("otel resource init failed, continuing without tracing", "error", err)
			return
		}
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Warn("otel exporter init failed, continuing without tracing", "error", err)
			return
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", cfg.ServiceName)
	})
	return shutdown
}
