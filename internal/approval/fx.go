package approval

import (
	"github.com/smallbiznis/redress/internal/approval/repository"
	"github.com/smallbiznis/redress/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
