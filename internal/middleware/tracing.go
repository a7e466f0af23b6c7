package middleware

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/autobid/auction-api/internal/config"
	"github.com/autobid/auction-api/internal/logging"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// InitTracing installs the global tracer provider. The returned function
// flushes and stops it.
func InitTracing(cfg *config.Config, logger *logrus.Logger) (func(context.Context) error, error) {
	obs := cfg.Observability
	if !obs.TracingEnabled {
		logger.Info("Tracing is disabled")
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()

	var (
		exporter sdktrace.SpanExporter
		err      error
		target   string
	)
	if obs.StdoutTracing {
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
		target = "stdout"
	} else {
		target = strings.TrimPrefix(strings.TrimPrefix(obs.OTLPEndpoint, "http://"), "https://")
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(target),
			otlptracehttp.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("auction-api"),
			semconv.ServiceVersionKey.String(logging.Version()),
			attribute.String("environment", cfg.Server.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(obs.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithFields(logrus.Fields{
		"exporter":    target,
		"sample_rate": obs.SampleRate,
	}).Info("OpenTelemetry tracing initialized")

	return tp.Shutdown, nil
}
