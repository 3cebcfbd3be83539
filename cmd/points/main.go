package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"sundayschool-points/pkg/accesscontrol"
	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/db"
	"sundayschool-points/pkg/featureflags"
	"sundayschool-points/pkg/gen"
	"sundayschool-points/pkg/hashistack/secretmanager"
	"sundayschool-points/pkg/health"
	"sundayschool-points/pkg/logger"
	"sundayschool-points/pkg/otelcol"
	"sundayschool-points/pkg/redis"
	"sundayschool-points/pkg/server"
	"sundayschool-points/services/ledger"
	"sundayschool-points/services/pointsconfig"
	"sundayschool-points/services/summary"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		gen.Module,
		featureflags.Module,
		accesscontrol.Module,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		health.Module,
		pointsconfig.Module,
		pointsconfig.HTTP,
		ledger.Module,
		ledger.HTTP,
		summary.Module,
		summary.HTTP,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
