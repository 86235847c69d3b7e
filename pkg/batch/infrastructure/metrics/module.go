// Package metrics provides the Prometheus and OpenTelemetry backends of the
// engine's MetricRecorder and Tracer.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"

	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	metrics "github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// BackendParams holds the dependencies of the backend providers.
type BackendParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
}

// NewOTelProvidersForApp builds the OTel providers and shuts them down on stop.
func NewOTelProvidersForApp(p BackendParams) (*OTelProviders, error) {
	providers, err := NewOTelProviders(context.Background(), p.Cfg.Datagen.Observability)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{OnStop: providers.Shutdown})
	return providers, nil
}

// NewMetricRecorderFromConfig selects the recorder named by observability.metrics.
func NewMetricRecorderFromConfig(p BackendParams, otel *OTelProviders) (metrics.MetricRecorder, error) {
	obs := p.Cfg.Datagen.Observability
	switch obs.Metrics {
	case "prometheus":
		r := NewPrometheusRecorder()
		if obs.PrometheusListenAddr != "" {
			serveMetrics(p.Lifecycle, obs.PrometheusListenAddr, r.Handler())
		}
		return r, nil
	case "otel":
		return NewOpenTelemetryRecorder(otel.MeterProvider)
	default:
		return metrics.NewNoOpMetricRecorder(), nil
	}
}

// NewTracerFromConfig selects the tracer named by observability.tracing.
func NewTracerFromConfig(cfg *config.Config, otel *OTelProviders) metrics.Tracer {
	if cfg.Datagen.Observability.Tracing == "otel" {
		return NewOpenTelemetryTracer(otel.TracerProvider)
	}
	return metrics.NewNoOpTracer()
}

func serveMetrics(lc fx.Lifecycle, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Infof("Serving Prometheus metrics on %s/metrics.", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Prometheus metrics endpoint stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}

// Module provides metrics.MetricRecorder and metrics.Tracer according to the
// observability section. It replaces the no-op core/metrics.Module.
var Module = fx.Options(
	fx.Provide(NewOTelProvidersForApp),
	fx.Provide(NewMetricRecorderFromConfig),
	fx.Provide(NewTracerFromConfig),
)
