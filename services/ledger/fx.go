package ledger

import (
	"sundayschool-points/pkg/config"
	"sundayschool-points/services/pointsconfig"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		provideEvaluator,
		NewService,
	),
	fx.Invoke(autoMigrate),
)

var HTTP = fx.Module("ledger.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

func provideEvaluator(engine *pointsconfig.Engine) Evaluator {
	return engine
}

func autoMigrate(cfg *config.Config, db *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	return Migrate(db)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&PointsTransaction{},
		&StudentPointsBalance{},
		&PointsOrderHold{},
	)
}
