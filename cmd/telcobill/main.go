package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/clock"
	"github.com/smallbiznis/telcobill/internal/config"
	"github.com/smallbiznis/telcobill/internal/customer"
	"github.com/smallbiznis/telcobill/internal/events"
	"github.com/smallbiznis/telcobill/internal/invoice"
	"github.com/smallbiznis/telcobill/internal/migration"
	"github.com/smallbiznis/telcobill/internal/notify"
	"github.com/smallbiznis/telcobill/internal/observability"
	"github.com/smallbiznis/telcobill/internal/payment"
	"github.com/smallbiznis/telcobill/internal/penalty"
	"github.com/smallbiznis/telcobill/internal/plan"
	"github.com/smallbiznis/telcobill/internal/scheduler"
	"github.com/smallbiznis/telcobill/internal/seed"
	"github.com/smallbiznis/telcobill/internal/server"
	"github.com/smallbiznis/telcobill/internal/usage"
	"github.com/smallbiznis/telcobill/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsureDefaultPlans(conn)
		}),
		events.Module,
		customer.Module,
		plan.Module,
		usage.Module,
		invoice.Module,
		payment.Module,
		penalty.Module,
		scheduler.Module,
		notify.Module,
		server.Module,
	)
	app.Run()
}
