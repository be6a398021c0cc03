package billingprofile

import (
	"github.com/merceton/merceton/internal/billingprofile/repository"
	"github.com/merceton/merceton/internal/billingprofile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingprofile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewAccessor),
)
