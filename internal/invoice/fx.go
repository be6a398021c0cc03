package invoice

import (
	"github.com/merceton/merceton/internal/invoice/repository"
	"github.com/merceton/merceton/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
