package summary

import "go.uber.org/fx"

var Module = fx.Module("summary.service",
	fx.Provide(NewService),
)

var HTTP = fx.Module("summary.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
