package otelcol

import (
	"context"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Provide(
		ProvideTrace,
		ProvideMeter,
	),
)

func defaultTraceProviderOption(cfg *config.Config) ([]sdktrace.TracerProviderOption, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", cfg.AppVersion),
			attribute.String("deployment.environment", cfg.AppEnv),
		),
	)
	if err != nil {
		return nil, err
	}

	return []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}, nil
}

// ProvideTrace installs a batching OTLP tracer provider when OTEL.ADDR is set.
// Otherwise the global no-op provider is returned and spans cost nothing.
func ProvideTrace(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	if cfg.Otel.Addr == "" {
		return otel.GetTracerProvider(), nil
	}

	exporter, err := exporters.New(cfg)
	if err != nil {
		zap.L().Error("failed to create trace exporter", zap.Error(err))
		return nil, err
	}

	opts, err := defaultTraceProviderOption(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, sdktrace.WithBatcher(exporter))

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

func ProvideMeter() metric.MeterProvider {
	return otel.GetMeterProvider()
}
