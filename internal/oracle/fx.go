package oracle

import (
	"github.com/polarsource/polar-sub007/internal/oracle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("oracle.service",
	fx.Provide(service.NewService),
)
