package catalog

import (
	"github.com/merceton/merceton/internal/catalog/repository"
	"github.com/merceton/merceton/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
