package merchant

import (
	"github.com/merceton/merceton/internal/merchant/repository"
	"github.com/merceton/merceton/internal/merchant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("merchant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
