package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/config"
	"github.com/smallbiznis/assessly/internal/migration"
	"github.com/smallbiznis/assessly/internal/observability"
	"github.com/smallbiznis/assessly/internal/scheduler"
	"github.com/smallbiznis/assessly/internal/seed"
	"github.com/smallbiznis/assessly/internal/server"
	"github.com/smallbiznis/assessly/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains and transport
		server.Module,
		seed.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
