// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names accepted by state.provider and storage.provider.
const (
	ProviderFile     = "file"
	ProviderGCS      = "gcs"
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Detail     DetailConfig     `mapstructure:"detail"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	State      StateConfig      `mapstructure:"state"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the optional log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

// HTTPConfig configures the upstream HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// StorefrontConfig locates the upstream listing and detail endpoints.
type StorefrontConfig struct {
	ListingURL string        `mapstructure:"listing_url"`
	DetailURL  string        `mapstructure:"detail_url"`
	AppURL     string        `mapstructure:"app_url"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// ScannerConfig governs listing page traversal.
type ScannerConfig struct {
	DriftPages     int     `mapstructure:"drift_pages"`
	MaxPages       int     `mapstructure:"max_pages"`
	PagesPerSecond float64 `mapstructure:"pages_per_second"`
}

// DetailConfig governs per-item detail fetching.
type DetailConfig struct {
	MinDelay         time.Duration `mapstructure:"min_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	ThrottleCooldown time.Duration `mapstructure:"throttle_cooldown"`
}

// PipelineConfig sets orchestrator waits.
type PipelineConfig struct {
	StageDelay    time.Duration `mapstructure:"stage_delay"`
	CycleDelay    time.Duration `mapstructure:"cycle_delay"`
	RecoveryDelay time.Duration `mapstructure:"recovery_delay"`
	TopGenres     int           `mapstructure:"top_genres"`
}

// StateConfig selects where the scan resume state lives.
type StateConfig struct {
	Provider  string `mapstructure:"provider"`
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
}

// BatchConfig locates the collect-to-persist hand-off file.
type BatchConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig selects the canonical and snapshot store backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from .env, disk, and environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MIRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("storefront.listing_url",
		"https://store.steampowered.com/search/?category1=998&filter=comingsoon&ndl=1&count=100")
	v.SetDefault("storefront.detail_url", "https://store.steampowered.com/api/appdetails")
	v.SetDefault("storefront.app_url", "https://store.steampowered.com/app/")
	v.SetDefault("storefront.cache_size", 1024)
	v.SetDefault("storefront.cache_ttl", 30*time.Minute)
	v.SetDefault("scanner.drift_pages", 2)
	v.SetDefault("scanner.max_pages", 300)
	v.SetDefault("scanner.pages_per_second", 1.0)
	v.SetDefault("detail.min_delay", 2*time.Second)
	v.SetDefault("detail.max_delay", 5*time.Second)
	v.SetDefault("detail.throttle_cooldown", 2*time.Minute)
	v.SetDefault("pipeline.stage_delay", 10*time.Minute)
	v.SetDefault("pipeline.cycle_delay", 2*time.Hour)
	v.SetDefault("pipeline.recovery_delay", 5*time.Minute)
	v.SetDefault("pipeline.top_genres", 5)
	v.SetDefault("state.provider", ProviderFile)
	v.SetDefault("state.path", "data-state.json")
	v.SetDefault("state.gcs_object", "scan-state.json")
	v.SetDefault("batch.path", "gameinfo.json")
	v.SetDefault("storage.provider", ProviderMemory)
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Storefront.ListingURL == "" || c.Storefront.DetailURL == "" {
		return fmt.Errorf("storefront.listing_url and storefront.detail_url are required")
	}
	if c.Storefront.CacheSize > 0 && c.Storefront.CacheTTL <= 0 {
		return fmt.Errorf("storefront.cache_ttl must be > 0 when the cache is enabled")
	}
	if c.Scanner.DriftPages < 0 {
		return fmt.Errorf("scanner.drift_pages must be >= 0")
	}
	if c.Scanner.MaxPages < 0 {
		return fmt.Errorf("scanner.max_pages must be >= 0")
	}
	if c.Detail.MinDelay < 0 || c.Detail.MaxDelay < c.Detail.MinDelay {
		return fmt.Errorf("detail delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Detail.ThrottleCooldown <= 0 {
		return fmt.Errorf("detail.throttle_cooldown must be > 0")
	}
	if c.Pipeline.RecoveryDelay <= 0 {
		return fmt.Errorf("pipeline.recovery_delay must be > 0")
	}
	if c.Pipeline.StageDelay < 0 || c.Pipeline.CycleDelay < 0 {
		return fmt.Errorf("pipeline delays must be >= 0")
	}
	if c.Pipeline.TopGenres <= 0 {
		return fmt.Errorf("pipeline.top_genres must be > 0")
	}
	switch c.State.Provider {
	case ProviderFile:
		if c.State.Path == "" {
			return fmt.Errorf("state.path is required for the file provider")
		}
	case ProviderGCS:
		if c.State.GCSBucket == "" || c.State.GCSObject == "" {
			return fmt.Errorf("state.gcs_bucket and state.gcs_object are required for the gcs provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown state.provider %q", c.State.Provider)
	}
	switch c.Storage.Provider {
	case ProviderPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
