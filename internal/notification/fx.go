package notification

import (
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	"github.com/merceton/merceton/internal/notification/email"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(email.NewFromConfig),
	fx.Provide(NewNotifier),
	fx.Provide(
		func(n *Notifier) orderdomain.Notifier { return n },
		func(n *Notifier) invoicedomain.FailureNotifier { return n },
	),
)
