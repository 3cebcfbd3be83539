package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/db"
	"sundayschool-points/pkg/hashistack/secretmanager"
	"sundayschool-points/pkg/logger"
	"sundayschool-points/services/ledger"
	"sundayschool-points/services/pointsconfig"
)

// Creates the ledger tables and a default points configuration for every
// church id given on the command line. Existing configurations are left as
// they are.
//
//	go run ./cmd/seed/pointsconfig church-1 church-2
func main() {
	churches := os.Args[1:]
	if len(churches) == 0 {
		log.Fatalf("usage: %s <church-id>...", os.Args[0])
	}

	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(
			pointsconfig.NewRepository,
			pointsconfig.NewConditions,
			pointsconfig.NewCache,
			pointsconfig.NewService,
		),
		fx.Invoke(func(conn *gorm.DB, svc *pointsconfig.Service) error {
			return seed(context.Background(), conn, svc, churches)
		}),
		fx.WithLogger(func(*zap.Logger) fxevent.Logger {
			return fxevent.NopLogger
		}),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func seed(ctx context.Context, conn *gorm.DB, svc *pointsconfig.Service, churches []string) error {
	if err := ledger.Migrate(conn); err != nil {
		return err
	}
	if err := pointsconfig.Migrate(conn); err != nil {
		return err
	}

	for _, churchID := range churches {
		_, created, err := svc.Ensure(ctx, churchID)
		if err != nil {
			zap.L().Error("failed to seed points config", zap.String("church_id", churchID), zap.Error(err))
			return err
		}
		zap.L().Info("points config seeded", zap.String("church_id", churchID), zap.Bool("created", created))
	}
	return nil
}
