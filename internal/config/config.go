// Package config loads service configuration from YAML, .env and the
// environment, in that order of precedence from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/acquisition"
	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/middleware"
	"github.com/ZanzyTHEbar/trendfall/internal/ratelimit"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
	"github.com/ZanzyTHEbar/trendfall/internal/security"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when TRENDFALL_CONFIG is unset; it may be absent
const DefaultPath = "config.yaml"

// Config is the full service configuration
type Config struct {
	Server       ServerConfig                 `yaml:"server"`
	Log          LogConfig                    `yaml:"log"`
	Model        analysis.ModelConfig         `yaml:"model"`
	Statistical  StatisticalConfig            `yaml:"statistical"`
	Simulation   SimulationConfig             `yaml:"simulation"`
	Redis        ratelimit.RedisOptions       `yaml:"redis"`
	FeatureStore FeatureStoreConfig           `yaml:"feature_store"`
	Cache        CacheConfig                  `yaml:"cache"`
	RateLimit    ratelimit.Config             `yaml:"rate_limit"`
	YouTube      YouTubeConfig                `yaml:"youtube"`
	News         NewsConfig                   `yaml:"news"`
	Acquisition  acquisition.Config           `yaml:"acquisition"`
	Narrative    NarrativeConfig              `yaml:"narrative"`
	Breaker      resilience.BreakerConfig     `yaml:"breaker"`
	Retry        resilience.RetryConfig       `yaml:"retry"`
	Database     DatabaseConfig               `yaml:"database"`
	Security     security.Config              `yaml:"security"`
	Compression  middleware.CompressionConfig `yaml:"compression"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// StatisticalConfig controls the statistical scorer trained at startup
type StatisticalConfig struct {
	Enabled  bool                    `yaml:"enabled"`
	Training analysis.TrainingConfig `yaml:"training"`
}

// SimulationConfig controls the seeded no-data path
type SimulationConfig struct {
	// OnNoData simulates when acquisition finds nothing instead of failing
	OnNoData bool `yaml:"on_no_data"`
}

// FeatureStoreConfig selects the feature store backend
type FeatureStoreConfig struct {
	Backend string        `yaml:"backend"` // memory or redis
	TTL     time.Duration `yaml:"ttl"`
}

// CacheConfig configures the acquisition cache
type CacheConfig struct {
	TTL   time.Duration `yaml:"ttl"`
	Sweep time.Duration `yaml:"sweep"`
}

// YouTubeConfig configures the video platform adapter
type YouTubeConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// NewsConfig configures the headline adapter
type NewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	FeedURL string `yaml:"feed_url"`
}

// NarrativeConfig selects the narrative generator
type NarrativeConfig struct {
	Provider string        `yaml:"provider"` // bedrock or template
	Region   string        `yaml:"region"`
	ModelID  string        `yaml:"model_id"`
	Timeout  time.Duration `yaml:"timeout"`
	Template string        `yaml:"template"`
}

// DatabaseConfig locates the audit database; an empty path disables auditing
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log:          LogConfig{Level: "info"},
		Model:        analysis.DefaultModelConfig(),
		Statistical:  StatisticalConfig{Enabled: true, Training: analysis.DefaultTrainingConfig()},
		Simulation:   SimulationConfig{OnNoData: true},
		Redis:        ratelimit.DefaultRedisOptions(),
		FeatureStore: FeatureStoreConfig{Backend: "memory", TTL: 5 * time.Minute},
		Cache:        CacheConfig{TTL: 15 * time.Minute, Sweep: 5 * time.Minute},
		RateLimit:    ratelimit.DefaultConfig(),
		News:         NewsConfig{Enabled: true},
		Acquisition:  acquisition.DefaultConfig(),
		Narrative:    NarrativeConfig{Provider: "template", Region: "us-east-1", Timeout: 10 * time.Second},
		Breaker:      resilience.DefaultBreakerConfig(),
		Retry:        resilience.FastRetryConfig(),
		Database:     DatabaseConfig{Path: "./data/trendfall.db"},
		Security:     security.DefaultConfig(),
		Compression:  middleware.DefaultCompressionConfig(),
	}
}

// Load reads path over the defaults. An empty path resolves to
// TRENDFALL_CONFIG, then DefaultPath; only the default file may be missing.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("TRENDFALL_CONFIG")
	}
	if path == "" {
		path, explicit = DefaultPath, false
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads a .env file if present and then calls Load
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()
	return Load(path)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("FEATURE_STORE_BACKEND"); v != "" {
		c.FeatureStore.Backend = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.YouTube.APIKey = v
	}
	if v := os.Getenv("NEWS_FEED_URL"); v != "" {
		c.News.FeedURL = v
	}
	if v := os.Getenv("NARRATIVE_PROVIDER"); v != "" {
		c.Narrative.Provider = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Narrative.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		c.Narrative.ModelID = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Security.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DEFAULT_DAILY_BUDGET_CPM"); v != "" {
		cpm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEFAULT_DAILY_BUDGET_CPM: %w", err)
		}
		c.Model.DefaultCPM = cpm
	}
	return nil
}

// Validate checks the configuration as a whole
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	switch strings.ToLower(c.FeatureStore.Backend) {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("feature_store.backend redis requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("feature_store.backend %q unknown", c.FeatureStore.Backend))
	}
	switch strings.ToLower(c.Narrative.Provider) {
	case "bedrock", "template":
	default:
		errs = append(errs, fmt.Errorf("narrative.provider %q unknown", c.Narrative.Provider))
	}
	if c.FeatureStore.TTL <= 0 {
		errs = append(errs, errors.New("feature_store.ttl must be positive"))
	}
	return errors.Join(errs...)
}
