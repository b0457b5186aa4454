package letter

import (
	"github.com/smallbiznis/redress/internal/letter/repository"
	"github.com/smallbiznis/redress/internal/letter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("letter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
