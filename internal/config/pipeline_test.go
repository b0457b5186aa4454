package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultPipelineConfigIsValid(t *testing.T) {
	assert.NoError(t, validatePipelineConfig(DefaultPipelineConfig()))
}

func TestPipelineConfigHolderFallsBackToDefaults(t *testing.T) {
	holder, err := NewPipelineConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 20*time.Second, cfg.Research.CompanyTimeout)
	assert.True(t, cfg.Async)

	entry, ok := cfg.Lookup("price_bundle_3")
	require.True(t, ok)
	assert.Equal(t, int64(3), entry.Credits)
	assert.Equal(t, "bundle_purchase", entry.Kind)
}

func TestValidatePipelineConfig(t *testing.T) {
	t.Run("rejects unknown catalog kind", func(t *testing.T) {
		cfg := DefaultPipelineConfig()
		cfg.Catalog = []CatalogEntry{{PriceID: "p1", Credits: 1, Kind: "usage"}}
		assert.Error(t, validatePipelineConfig(cfg))
	})

	t.Run("rejects duplicate price ids", func(t *testing.T) {
		cfg := DefaultPipelineConfig()
		cfg.Catalog = []CatalogEntry{
			{PriceID: "p1", Credits: 1, Kind: "purchase"},
			{PriceID: "p1", Credits: 3, Kind: "bundle_purchase"},
		}
		assert.Error(t, validatePipelineConfig(cfg))
	})

	t.Run("rejects zero research timeout", func(t *testing.T) {
		cfg := DefaultPipelineConfig()
		cfg.Research.LegalTimeout = 0
		assert.Error(t, validatePipelineConfig(cfg))
	})
}

func TestRequiresApproval(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.True(t, cfg.RequiresApproval("chargeback"))
	assert.False(t, cfg.RequiresApproval("initial"))
}

func TestNilHolderReturnsDefaults(t *testing.T) {
	var holder *PipelineConfigHolder
	assert.Equal(t, DefaultPipelineConfig().Research, holder.Get().Research)
}
