package report

import "go.uber.org/fx"

var Module = fx.Module("oracle.report",
	fx.Provide(NewReporter),
)
