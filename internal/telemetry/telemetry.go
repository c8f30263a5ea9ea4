// Package telemetry configures OpenTelemetry tracing and metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/tjfontaine/mfea-gateway/internal/config"
)

// Providers groups telemetry provider handles.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Meter returns a named meter from the configured provider.
func (p Providers) Meter(name string) metric.Meter {
	return p.MeterProvider.Meter(name)
}

// Init installs global tracer and meter providers. Tracing writes spans to traceOut
// when enabled; metrics are pushed over OTLP/HTTP when an endpoint is configured.
// Anything disabled gets a no-op provider. The returned func flushes and stops both.
func Init(ctx context.Context, cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (Providers, func(context.Context) error, error) {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "mfea-gateway"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(service)),
	)
	if err != nil {
		return Providers{}, nil, fmt.Errorf("create resource: %w", err)
	}

	providers := Providers{
		TracerProvider: nooptrace.NewTracerProvider(),
		MeterProvider:  noop.NewMeterProvider(),
	}
	var shutdowns []func(context.Context) error

	if cfg.Tracing {
		tp, err := newTracerProvider(traceOut, res)
		if err != nil {
			return Providers{}, nil, fmt.Errorf("create trace exporter: %w", err)
		}
		providers.TracerProvider = tp
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		host, insecure, err := parseEndpoint(endpoint)
		if err != nil {
			return Providers{}, nil, err
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
		if insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return Providers{}, nil, fmt.Errorf("create metric exporter: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
		providers.MeterProvider = mp
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", service),
		slog.Bool("tracing", cfg.Tracing),
		slog.Bool("metrics", cfg.OTLPEndpoint != ""),
	)

	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return providers, shutdown, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = raw
	}
	insecure := parsed.Scheme != "https"
	return host, insecure, nil
}
