package pipeline

import (
	"github.com/smallbiznis/redress/internal/pipeline/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pipeline.service",
	fx.Provide(service.NewRunner),
	fx.Provide(service.NewService),
)
