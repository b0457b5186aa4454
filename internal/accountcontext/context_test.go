package accountcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestAccountIDRoundTrip(t *testing.T) {
	_, ok := AccountIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithAccountID(context.Background(), snowflake.ID(42))
	id, ok := AccountIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)

	_, ok = AccountIDFromContext(WithAccountID(context.Background(), 0))
	assert.False(t, ok)
}
