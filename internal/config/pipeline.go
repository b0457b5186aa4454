package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PipelineConfig carries the tunables that operators change without a redeploy.
type PipelineConfig struct {
	Research  ResearchConfig `mapstructure:"research"`
	Async     bool           `mapstructure:"async"`
	RateLimit CaseRateLimit  `mapstructure:"rateLimit"`
	Catalog   []CatalogEntry `mapstructure:"catalog"`
	Approval  ApprovalPolicy `mapstructure:"approval"`
	Drafting  DraftingConfig `mapstructure:"drafting"`
}

type ResearchConfig struct {
	CompanyTimeout  time.Duration `mapstructure:"companyTimeout"`
	LegalTimeout    time.Duration `mapstructure:"legalTimeout"`
	EvidenceTimeout time.Duration `mapstructure:"evidenceTimeout"`
	MaxEvidence     int           `mapstructure:"maxEvidence"`
}

type CaseRateLimit struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

// CatalogEntry maps a payment price id to the credits it buys.
type CatalogEntry struct {
	PriceID string `mapstructure:"priceId"`
	Credits int64  `mapstructure:"credits"`
	Kind    string `mapstructure:"kind"`
}

type ApprovalPolicy struct {
	RequiredTypes []string `mapstructure:"requiredTypes"`
}

type DraftingConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Research: ResearchConfig{
			CompanyTimeout:  20 * time.Second,
			LegalTimeout:    25 * time.Second,
			EvidenceTimeout: 15 * time.Second,
			MaxEvidence:     10,
		},
		Async: true,
		RateLimit: CaseRateLimit{
			Enabled: false,
			Rate:    0.2,
			Burst:   5,
		},
		Catalog: []CatalogEntry{
			{PriceID: "price_single", Credits: 1, Kind: "purchase"},
			{PriceID: "price_bundle_3", Credits: 3, Kind: "bundle_purchase"},
			{PriceID: "price_bundle_10", Credits: 10, Kind: "bundle_purchase"},
		},
		Approval: ApprovalPolicy{
			RequiredTypes: []string{"letter-before-action", "chargeback"},
		},
		Drafting: DraftingConfig{
			Timeout: 60 * time.Second,
		},
	}
}

// Lookup returns the catalog entry for a price id.
func (c PipelineConfig) Lookup(priceID string) (CatalogEntry, bool) {
	priceID = strings.TrimSpace(priceID)
	for _, entry := range c.Catalog {
		if entry.PriceID == priceID {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// RequiresApproval reports whether dispatching the letter type needs a chat-ops decision.
func (c PipelineConfig) RequiresApproval(letterType string) bool {
	for _, t := range c.Approval.RequiredTypes {
		if strings.EqualFold(strings.TrimSpace(t), letterType) {
			return true
		}
	}
	return false
}

type PipelineConfigHolder struct {
	current atomic.Value // holds PipelineConfig
}

// NewStaticPipelineConfig returns a holder that never reloads.
func NewStaticPipelineConfig(cfg PipelineConfig) *PipelineConfigHolder {
	holder := &PipelineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPipelineConfigHolder(log *zap.Logger) (*PipelineConfigHolder, error) {
	log = log.Named("config.pipeline")
	v := viper.New()

	v.SetConfigName("pipeline")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/redress")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REDRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPipelineConfig()
	v.SetDefault("pipeline.research.companyTimeout", defaults.Research.CompanyTimeout)
	v.SetDefault("pipeline.research.legalTimeout", defaults.Research.LegalTimeout)
	v.SetDefault("pipeline.research.evidenceTimeout", defaults.Research.EvidenceTimeout)
	v.SetDefault("pipeline.research.maxEvidence", defaults.Research.MaxEvidence)
	v.SetDefault("pipeline.async", defaults.Async)
	v.SetDefault("pipeline.rateLimit.enabled", defaults.RateLimit.Enabled)
	v.SetDefault("pipeline.rateLimit.rate", defaults.RateLimit.Rate)
	v.SetDefault("pipeline.rateLimit.burst", defaults.RateLimit.Burst)
	v.SetDefault("pipeline.catalog", defaults.Catalog)
	v.SetDefault("pipeline.approval.requiredTypes", defaults.Approval.RequiredTypes)
	v.SetDefault("pipeline.drafting.timeout", defaults.Drafting.Timeout)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	cfg, err := decodePipelineConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &PipelineConfigHolder{}
	holder.current.Store(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePipelineConfig(v)
			if err != nil {
				log.Warn("pipeline config reload rejected", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("pipeline config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *PipelineConfigHolder) Get() PipelineConfig {
	if h == nil {
		return DefaultPipelineConfig()
	}
	cfg, ok := h.current.Load().(PipelineConfig)
	if !ok {
		return DefaultPipelineConfig()
	}
	return cfg
}

func decodePipelineConfig(v *viper.Viper) (PipelineConfig, error) {
	var cfg PipelineConfig
	if err := v.UnmarshalKey("pipeline", &cfg); err != nil {
		return PipelineConfig{}, err
	}
	if err := validatePipelineConfig(cfg); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

func validatePipelineConfig(cfg PipelineConfig) error {
	if cfg.Research.CompanyTimeout <= 0 || cfg.Research.LegalTimeout <= 0 || cfg.Research.EvidenceTimeout <= 0 {
		return errors.New("pipeline.research timeouts must be positive")
	}
	if cfg.Drafting.Timeout <= 0 {
		return errors.New("pipeline.drafting.timeout must be positive")
	}
	seen := map[string]struct{}{}
	for _, entry := range cfg.Catalog {
		if strings.TrimSpace(entry.PriceID) == "" {
			return errors.New("pipeline.catalog priceId cannot be empty")
		}
		if entry.Credits <= 0 {
			return fmt.Errorf("pipeline.catalog %s credits must be positive", entry.PriceID)
		}
		switch entry.Kind {
		case "purchase", "bundle_purchase":
		default:
			return fmt.Errorf("pipeline.catalog %s has unsupported kind %q", entry.PriceID, entry.Kind)
		}
		if _, dup := seen[entry.PriceID]; dup {
			return fmt.Errorf("pipeline.catalog %s is duplicated", entry.PriceID)
		}
		seen[entry.PriceID] = struct{}{}
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.Rate <= 0 || cfg.RateLimit.Burst <= 0) {
		return errors.New("pipeline.rateLimit rate and burst must be positive")
	}
	return nil
}
