package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Guides    GuidesConfig    `yaml:"guides" mapstructure:"guides"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Augment   AugmentConfig   `yaml:"augment" mapstructure:"augment"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GuidesConfig locates the guide corpus on disk.
type GuidesConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	BackupDir string `yaml:"backup_dir" mapstructure:"backup_dir"`
}

// CatalogConfig holds catalog search service settings.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AugmentConfig configures the augmentation pipeline.
type AugmentConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MaxProductsPerGear  int     `yaml:"max_products_per_gear" mapstructure:"max_products_per_gear"`
	MinContentSize      int     `yaml:"min_content_size" mapstructure:"min_content_size"`
	DelayMs             int     `yaml:"delay_ms" mapstructure:"delay_ms"`
	MaxFiles            int     `yaml:"max_files" mapstructure:"max_files"`
	Mode                string  `yaml:"mode" mapstructure:"mode"` // "extract" or "combined"
	MatchConcurrency    int     `yaml:"match_concurrency" mapstructure:"match_concurrency"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUGMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys default to empty so environment values
	// registered by AutomaticEnv reach Unmarshal.
	v.SetDefault("guides.dir", "content/guides")
	v.SetDefault("guides.backup_dir", "")
	v.SetDefault("catalog.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("catalog.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("augment.similarity_threshold", 0.3)
	v.SetDefault("augment.max_products_per_gear", 3)
	v.SetDefault("augment.min_content_size", 200)
	v.SetDefault("augment.delay_ms", 2000)
	v.SetDefault("augment.max_files", 0)
	v.SetDefault("augment.mode", "extract")
	v.SetDefault("augment.match_concurrency", 5)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "augment_runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that required credentials and settings are present before
// any document is touched. A failure here aborts the whole run.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (AUGMENT_ANTHROPIC_KEY)")
	}
	if c.Catalog.BaseURL == "" {
		return eris.New("config: catalog.base_url is required")
	}
	if c.Guides.Dir == "" {
		return eris.New("config: guides.dir is required")
	}
	if c.Augment.SimilarityThreshold < 0 || c.Augment.SimilarityThreshold > 1 {
		return eris.Errorf("config: augment.similarity_threshold %.2f out of range [0,1]", c.Augment.SimilarityThreshold)
	}
	if c.Augment.MaxProductsPerGear < 0 {
		return eris.New("config: augment.max_products_per_gear must be >= 0")
	}
	switch c.Augment.Mode {
	case "extract", "combined":
	default:
		return eris.Errorf("config: augment.mode %q must be extract or combined", c.Augment.Mode)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
