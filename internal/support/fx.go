package support

import (
	"github.com/merceton/merceton/internal/support/repository"
	"github.com/merceton/merceton/internal/support/service"
	"go.uber.org/fx"
)

var Module = fx.Module("support.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
