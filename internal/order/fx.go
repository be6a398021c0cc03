package order

import (
	"github.com/merceton/merceton/internal/order/repository"
	"github.com/merceton/merceton/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
