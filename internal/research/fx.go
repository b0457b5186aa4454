package research

import (
	"github.com/smallbiznis/redress/internal/research/service"
	"github.com/smallbiznis/redress/internal/research/source"
	"go.uber.org/fx"
)

var Module = fx.Module("research.service",
	fx.Provide(source.NewFactory),
	fx.Provide(service.NewService),
)
