package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/campushq/paycore/internal/clock"
	"github.com/campushq/paycore/internal/migration"
	"github.com/campushq/paycore/internal/observability"
	"github.com/campushq/paycore/internal/server"
	"github.com/campushq/paycore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
