package oracleops

import "go.uber.org/fx"

var Module = fx.Module("oracle.ops",
	fx.Provide(NewService),
)
