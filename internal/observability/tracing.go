package observability

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// TracingEnabled mirrors the teacher's check in observability/tracing.go.
func TracingEnabled() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || os.Getenv("OTEL_ENABLED") == "true"
}

// InitTracer initializes the OpenTelemetry tracer provider for the named
// service and returns a shutdown function, adapted from the teacher's
// InitTracer to take the service name as a parameter instead of hardcoding
// "public-api".
func InitTracer(logger zeroLogger, service string) func() {
	if !TracingEnabled() {
		logger.Info("OpenTelemetry tracing disabled (set OTEL_EXPORTER_OTLP_ENDPOINT to enable)")
		return func() {}
	}

	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		logger.Error("failed to create OTLP exporter, tracing disabled", err)
		return func() {}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
			semconv.ServiceVersion(getVersion()),
			semconv.DeploymentEnvironment(getEnvironment()),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(getSampler()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		shutdownCtx := context.Background()
		_ = tp.Shutdown(shutdownCtx)
	}
}

// zeroLogger is the minimal logging surface InitTracer needs, satisfied by
// zerolog.Logger via the small adapter in logadapter.go.
type zeroLogger interface {
	Info(msg string)
	Error(msg string, err error)
}

func getSampler() sdktrace.Sampler {
	if os.Getenv("GIN_MODE") == "debug" {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))
}

func getVersion() string {
	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		return v
	}
	return "unknown"
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if os.Getenv("GIN_MODE") == "debug" {
		return "development"
	}
	return "production"
}
