package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/earshot-labs/earshot/internal/config"
)

// telemetry bundles the global providers and the /metrics handler so the
// runtime can install, serve, and tear them down as one unit.
type telemetry struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	handler http.Handler
}

func setupTelemetry(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tel := &telemetry{}
	if err := tel.initTraces(ctx, cfg.Telemetry, res, logger); err != nil {
		return nil, nil, err
	}
	tel.initMetrics(res, logger)

	otel.SetTracerProvider(tel.traces)
	otel.SetMeterProvider(tel.metrics)

	return tel.shutdown, tel.handler, nil
}

// initTraces exports spans over OTLP gRPC when an endpoint is configured,
// or pretty-printed to stdout otherwise.
func (t *telemetry) initTraces(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, logger *slog.Logger) error {
	var exporter sdktrace.SpanExporter
	var err error

	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return err
	}

	t.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	if endpoint != "" {
		logger.Info("tracing initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))
	} else {
		logger.Info("tracing initialized", slog.String("exporter", "stdout"))
	}
	return nil
}

// initMetrics wires the OTel meter provider to a Prometheus reader. An
// exporter failure degrades to metrics without a scrape endpoint rather
// than failing startup.
func (t *telemetry) initMetrics(res *resource.Resource, logger *slog.Logger) {
	promExporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		t.metrics = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		return
	}
	t.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	t.handler = promhttp.Handler()
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if err := t.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.traces.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
