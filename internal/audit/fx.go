package audit

import (
	"github.com/smallbiznis/redress/internal/audit/repository"
	"github.com/smallbiznis/redress/internal/audit/service"
	"go.uber.org/fx"
)

// Module records case, credit, payment, approval and dispatch activity.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
