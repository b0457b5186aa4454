package evidence

import (
	"github.com/smallbiznis/redress/internal/evidence/repository"
	"github.com/smallbiznis/redress/internal/evidence/service"
	"go.uber.org/fx"
)

var Module = fx.Module("evidence.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
