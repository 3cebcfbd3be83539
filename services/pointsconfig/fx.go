package pointsconfig

import (
	"sundayschool-points/pkg/config"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("pointsconfig.service",
	fx.Provide(
		NewRepository,
		NewCache,
		NewConditions,
		NewEngine,
		NewService,
	),
	fx.Invoke(autoMigrate),
)

var HTTP = fx.Module("pointsconfig.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

func autoMigrate(cfg *config.Config, db *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	return Migrate(db)
}
