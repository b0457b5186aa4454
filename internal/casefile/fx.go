package casefile

import (
	"github.com/smallbiznis/redress/internal/casefile/repository"
	"github.com/smallbiznis/redress/internal/casefile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("casefile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
