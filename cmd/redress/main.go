package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/account"
	"github.com/smallbiznis/redress/internal/approval"
	"github.com/smallbiznis/redress/internal/audit"
	"github.com/smallbiznis/redress/internal/auth"
	"github.com/smallbiznis/redress/internal/authorization"
	"github.com/smallbiznis/redress/internal/casefile"
	"github.com/smallbiznis/redress/internal/chat"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/internal/credit"
	"github.com/smallbiznis/redress/internal/dispatch"
	"github.com/smallbiznis/redress/internal/evidence"
	"github.com/smallbiznis/redress/internal/letter"
	"github.com/smallbiznis/redress/internal/llm/gemini"
	"github.com/smallbiznis/redress/internal/migration"
	"github.com/smallbiznis/redress/internal/observability"
	"github.com/smallbiznis/redress/internal/payment"
	"github.com/smallbiznis/redress/internal/pipeline"
	"github.com/smallbiznis/redress/internal/providers"
	"github.com/smallbiznis/redress/internal/ratelimit"
	"github.com/smallbiznis/redress/internal/research"
	"github.com/smallbiznis/redress/internal/scheduler"
	"github.com/smallbiznis/redress/internal/server"
	"github.com/smallbiznis/redress/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,
		providers.Module,
		gemini.Module,

		// Functional Domains
		auth.Module,
		authorization.Module,
		audit.Module,
		account.Module,
		credit.Module,
		casefile.Module,
		evidence.Module,
		research.Module,
		letter.Module,
		dispatch.Module,
		approval.Module,
		pipeline.Module,
		payment.Module,
		chat.Module,
		scheduler.Module,

		server.Module,
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
