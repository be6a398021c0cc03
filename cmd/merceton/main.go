package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/audit"
	"github.com/merceton/merceton/internal/authorization"
	"github.com/merceton/merceton/internal/billing"
	"github.com/merceton/merceton/internal/billingprofile"
	"github.com/merceton/merceton/internal/catalog"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	"github.com/merceton/merceton/internal/invoice"
	"github.com/merceton/merceton/internal/ledger"
	"github.com/merceton/merceton/internal/merchant"
	"github.com/merceton/merceton/internal/migration"
	"github.com/merceton/merceton/internal/notification"
	"github.com/merceton/merceton/internal/observability"
	"github.com/merceton/merceton/internal/order"
	"github.com/merceton/merceton/internal/pricing"
	"github.com/merceton/merceton/internal/scheduler"
	"github.com/merceton/merceton/internal/server"
	"github.com/merceton/merceton/internal/support"
	"github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional Domains
		authorization.Module,
		audit.Module,
		merchant.Module,
		catalog.Module,
		pricing.Module,
		ledger.Module,
		billingprofile.Module,
		order.Module,
		invoice.Module,
		billing.Module,
		support.Module,
		notification.Module,

		migration.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}
