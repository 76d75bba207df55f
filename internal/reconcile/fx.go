package reconcile

import (
	"github.com/polarsource/polar-sub007/internal/reconcile/repository"
	"github.com/polarsource/polar-sub007/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
