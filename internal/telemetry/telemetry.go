package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"academic-service/internal/config"
	"academic-service/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const exportInterval = 10 * time.Second

type Telemetry struct {
	MeterProvider *metric.MeterProvider
	Metrics       *metrics.Metrics
}

// Init builds the meter provider and the service metrics. With telemetry
// disabled the provider has no exporter, so instruments still work but
// nothing leaves the process.
func Init(ctx context.Context, cfg config.TelemetryConfig, serviceName, serviceVersion, env string, logger *slog.Logger) (*Telemetry, error) {
	var readers []metric.Reader
	if cfg.Enabled {
		logger.Info("initializing OTel metrics", "endpoint", cfg.Endpoint)

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		readers = append(readers, metric.NewPeriodicReader(exporter, metric.WithInterval(exportInterval)))
	} else {
		logger.Info("OTel export disabled")
	}

	return newTelemetry(ctx, serviceName, serviceVersion, env, readers...)
}

func newTelemetry(ctx context.Context, serviceName, serviceVersion, env string, readers ...metric.Reader) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []metric.Option{metric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, metric.WithReader(r))
	}
	meterProvider := metric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(serviceName)
	m, err := metrics.New(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if err := registerServiceInfo(meter, serviceName, serviceVersion, env); err != nil {
		return nil, fmt.Errorf("failed to register service info: %w", err)
	}

	return &Telemetry{
		MeterProvider: meterProvider,
		Metrics:       m,
	}, nil
}

// Meter returns the meter the service metrics were registered on.
func (t *Telemetry) Meter(name string) otelmetric.Meter {
	return t.MeterProvider.Meter(name)
}

// service.info is always 1 and carries build metadata as attributes.
func registerServiceInfo(meter otelmetric.Meter, serviceName, version, env string) error {
	info, err := meter.Int64ObservableGauge(
		"service.info",
		otelmetric.WithDescription("Service metadata information"),
		otelmetric.WithUnit("{info}"),
	)
	if err != nil {
		return err
	}

	attrs := otelmetric.WithAttributes(
		attribute.String("service_name", serviceName),
		attribute.String("version", version),
		attribute.String("environment", env),
	)
	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer otelmetric.Observer) error {
			observer.ObserveInt64(info, 1, attrs)
			return nil
		},
		info,
	)
	return err
}

func (t *Telemetry) Shutdown(ctx context.Context, logger *slog.Logger) error {
	logger.Info("shutting down OTel meter provider")
	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
