package ledger

import (
	"github.com/merceton/merceton/internal/ledger/repository"
	"github.com/merceton/merceton/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
