package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Armour007/grc-backend/internal/config"
	"github.com/Armour007/grc-backend/pkg/logger"
)

// SetupOTel initializes OpenTelemetry tracing when telemetry is enabled.
// Returns a shutdown func that should be deferred by the caller.
func SetupOTel(cfg config.TelemetryConfig, serviceName string, log *logger.Logger) (func(context.Context) error, bool) {
	noop := func(ctx context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, false
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	exp, err := otlptrace.New(context.Background(), client)
	if err != nil {
		log.Error().Err(err).Msg("otel exporter init failed")
		return noop, false
	}
	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		// a schema URL conflict still yields a usable merged resource
		log.Warn().Err(err).Msg("otel resource merge")
		if res == nil {
			res = sdkresource.Default()
		}
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Info().Str("endpoint", endpoint).Msg("tracing enabled")
	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, true
}
