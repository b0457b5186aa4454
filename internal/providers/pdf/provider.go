package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	GenerateLetter(ctx context.Context, doc LetterDocument) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateLetter(ctx context.Context, doc LetterDocument) (io.Reader, error) {
	return nil, nil
}
