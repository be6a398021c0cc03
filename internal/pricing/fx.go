package pricing

import (
	"github.com/merceton/merceton/internal/pricing/repository"
	"github.com/merceton/merceton/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewAdminService),
)
