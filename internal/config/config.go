package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go-damage-sync/pkg/validation"

	"github.com/caarlos0/env/v11"
)

// analyzeTimeoutFloor is the lowest timeout the analysis call will run with.
// The backend call is compute-heavy; anything shorter just burns quota.
const analyzeTimeoutFloor = 10 * time.Second

type Config struct {
	// Server
	Host               string        `env:"HOST" envDefault:"0.0.0.0"`
	Port               int           `env:"PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"` // 10MB

	// External services
	AnalysisBaseURL string `env:"ANALYSIS_BASE_URL,required"`
	RecordsBaseURL  string `env:"RECORDS_BASE_URL,required"`

	// Auth
	IdentityBaseURL string `env:"IDENTITY_BASE_URL"`
	UserID          string `env:"USER_ID"`
	UserEmail       string `env:"USER_EMAIL"`
	DevBypass       bool   `env:"DEV_BYPASS" envDefault:"false"`
	TokenCachePath  string `env:"TOKEN_CACHE_PATH" envDefault:".damage-sync/token.json"`

	// Analysis pipeline
	AnalyzeTimeout time.Duration `env:"ANALYZE_TIMEOUT" envDefault:"90s"`

	// Demo fallback content returned when quota is exhausted. Placeholder
	// values only; nothing downstream depends on their specifics.
	DemoDamageType string  `env:"DEMO_DAMAGE_TYPE" envDefault:"Front Bumper Scratch"`
	DemoConfidence float64 `env:"DEMO_CONFIDENCE" envDefault:"0.75"`
	DemoEstimate   string  `env:"DEMO_ESTIMATE" envDefault:"$250 - $400"`

	// Media pipeline
	ThumbMaxWidth      int `env:"THUMB_MAX_WIDTH" envDefault:"400"`
	ThumbMaxHeight     int `env:"THUMB_MAX_HEIGHT" envDefault:"400"`
	ThumbQuality       int `env:"THUMB_QUALITY" envDefault:"80"`
	MigrationBatchSize int `env:"MIGRATION_BATCH_SIZE" envDefault:"25"`

	// Analytics
	TrendMonths int `env:"TREND_MONTHS" envDefault:"6"`

	// Blob storage
	BlobBackend      string `env:"BLOB_BACKEND" envDefault:"azure"`
	LocalBlobRoot    string `env:"LOCAL_BLOB_ROOT" envDefault:".damage-sync/blobs"`
	AzureAccountName string `env:"AZURE_ACCOUNT_NAME"`
	AzureAccountKey  string `env:"AZURE_ACCOUNT_KEY"`
	AzureContainer   string `env:"AZURE_CONTAINER" envDefault:"vehicle-media"`
}

func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), fmt.Sprintf("%d", c.Port))
}

// EffectiveAnalyzeTimeout clamps the configured analysis timeout to the floor.
func (c *Config) EffectiveAnalyzeTimeout() time.Duration {
	if c.AnalyzeTimeout < analyzeTimeoutFloor {
		return analyzeTimeoutFloor
	}
	return c.AnalyzeTimeout
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.AnalyzeTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, analyze=%s)",
			cfg.RequestTimeout, cfg.AnalyzeTimeout)
	}
	if cfg.ThumbMaxWidth <= 0 || cfg.ThumbMaxHeight <= 0 {
		return nil, fmt.Errorf("thumbnail bounds must be > 0 (got %dx%d)",
			cfg.ThumbMaxWidth, cfg.ThumbMaxHeight)
	}
	if cfg.ThumbQuality < 1 || cfg.ThumbQuality > 100 {
		return nil, fmt.Errorf("THUMB_QUALITY must be in [1,100] (got %d)", cfg.ThumbQuality)
	}
	if cfg.MigrationBatchSize <= 0 {
		return nil, fmt.Errorf("MIGRATION_BATCH_SIZE must be > 0 (got %d)", cfg.MigrationBatchSize)
	}
	if cfg.TrendMonths <= 0 {
		return nil, fmt.Errorf("TREND_MONTHS must be > 0 (got %d)", cfg.TrendMonths)
	}

	urls := validation.NewURLValidator()
	if err := urls.ValidateBaseURL(cfg.AnalysisBaseURL); err != nil {
		return nil, fmt.Errorf("ANALYSIS_BASE_URL: %w", err)
	}
	if err := urls.ValidateBaseURL(cfg.RecordsBaseURL); err != nil {
		return nil, fmt.Errorf("RECORDS_BASE_URL: %w", err)
	}
	return cfg, nil
}
