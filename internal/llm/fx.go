package llm

import (
	"context"

	"github.com/smallbiznis/redress/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Factory builds the configured provider. It is supplied by the gemini package
// so this package stays free of SDK imports.
type Factory func(ctx context.Context, cfg config.LLMConfig) (Provider, func() error, error)

// NewFromConfig returns nil when no API key is configured. Consumers treat a
// nil Provider as template-only mode.
func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, factory Factory) (Provider, error) {
	log = log.Named("llm")
	if !cfg.LLM.Enabled() {
		log.Info("llm not configured, using deterministic drafting")
		return nil, nil
	}
	provider, closeFn, err := factory(context.Background(), cfg.LLM)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return closeFn() },
		})
	}
	log.Info("llm provider ready", zap.String("provider", provider.Name()), zap.String("model", cfg.LLM.Model))
	return provider, nil
}
