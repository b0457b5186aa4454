package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Research runs every source concurrently and merges whatever succeeds.
	// It never fails as a whole; check MergedIntel.AllFailed.
	Research(ctx context.Context, q Query) MergedIntel
}

var ErrResearchUnavailable = errors.New("research_unavailable")
