package audit

import (
	"github.com/merceton/merceton/internal/audit/repository"
	"github.com/merceton/merceton/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
