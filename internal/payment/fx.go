package payment

import (
	"github.com/smallbiznis/redress/internal/payment/adapters"
	"github.com/smallbiznis/redress/internal/payment/adapters/direct"
	"github.com/smallbiznis/redress/internal/payment/adapters/stripe"
	"github.com/smallbiznis/redress/internal/payment/repository"
	paymentservice "github.com/smallbiznis/redress/internal/payment/service"
	"github.com/smallbiznis/redress/internal/payment/webhook"
	"go.uber.org/fx"
)

// Module turns verified provider webhooks into credit grants.
var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		newRegistry,
		paymentservice.NewService,
		webhook.NewService,
	),
)

// newRegistry lists the providers that may post to /webhooks/payments/:provider.
func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewFactory(),
		direct.NewFactory(),
	)
}
