package main

import (
	"github.com/polarsource/polar-sub007/internal/alertqueue"
	"github.com/polarsource/polar-sub007/internal/clock"
	"github.com/polarsource/polar-sub007/internal/config"
	"github.com/polarsource/polar-sub007/internal/logger"
	"github.com/polarsource/polar-sub007/internal/oracle"
	"github.com/polarsource/polar-sub007/internal/oracleops"
	"github.com/polarsource/polar-sub007/internal/reconcile"
	"github.com/polarsource/polar-sub007/internal/report"
	"github.com/polarsource/polar-sub007/internal/scheduler"
	"github.com/polarsource/polar-sub007/pkg/db"
	"github.com/polarsource/polar-sub007/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		db.Module,
		telemetry.Module,
		alertqueue.Module,

		// Functional domains
		oracle.Module,
		reconcile.Module,
		report.Module,
		oracleops.Module,
		scheduler.Module,
	)
	app.Run()
}
