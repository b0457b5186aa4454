package gemini

import (
	"context"

	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/internal/llm"
	"go.uber.org/fx"
)

var Module = fx.Module("llm.gemini",
	fx.Provide(func() llm.Factory { return Factory }),
	fx.Provide(llm.NewFromConfig),
)

func Factory(ctx context.Context, cfg config.LLMConfig) (llm.Provider, func() error, error) {
	p, err := New(ctx, Config{APIKey: cfg.APIKey, Model: cfg.Model})
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
