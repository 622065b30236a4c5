package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override (e.g. TRIPSNAP_BACKEND_BASE_URL)
const EnvPrefix = "TRIPSNAP"

// Default values applied after the file and environment are read
const (
	DefaultPort           = "8080"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultBackendTimeout = 10 * time.Second
	DefaultSignTTLSeconds = 3600
	DefaultCacheBackend   = "memory"
	DefaultCacheMaxItems  = 10000
	DefaultRedisPrefix    = "tripsnap"
)

// Config is the service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Backend BackendConfig `yaml:"backend"`
	Images  ImagesConfig  `yaml:"images"`
	Cache   CacheConfig   `yaml:"cache"`
	Auth    AuthConfig    `yaml:"auth"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port      string `yaml:"port" envconfig:"PORT"`
	PublicURL string `yaml:"public_url" envconfig:"PUBLIC_URL" validate:"omitempty,url"`
}

// LoggingConfig configures pkg/logging
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"omitempty,oneof=json console"`
}

// BackendConfig points at the remote files API
type BackendConfig struct {
	BaseURL       string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	LegacyBaseURL string        `yaml:"legacy_base_url" envconfig:"LEGACY_BASE_URL" validate:"omitempty,url"`
	Token         string        `yaml:"token" envconfig:"TOKEN"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// ImagesConfig tunes image resolution
type ImagesConfig struct {
	// LegacyEnabled resolves img_<n> identifiers to the static-file endpoint instead of a placeholder
	LegacyEnabled  bool     `yaml:"legacy_enabled" envconfig:"LEGACY_ENABLED"`
	DebugIDs       []string `yaml:"debug_ids" envconfig:"DEBUG_IDS"`
	SignTTLSeconds int      `yaml:"sign_ttl_seconds" envconfig:"SIGN_TTL_SECONDS" validate:"gte=0"`
}

// CacheConfig selects and tunes the resolution cache backend
type CacheConfig struct {
	Backend    string        `yaml:"backend" envconfig:"BACKEND" validate:"omitempty,oneof=memory file lru redis"`
	FilePath   string        `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_if=Backend file"`
	MaxEntries int           `yaml:"max_entries" envconfig:"MAX_ENTRIES" validate:"gte=0"`
	TTL        time.Duration `yaml:"ttl" envconfig:"TTL"` // 0 keeps entries for the process lifetime
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the redis cache backend
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
	Prefix   string `yaml:"prefix" envconfig:"PREFIX"`
}

// AuthConfig configures API authentication
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	APIKeys   []APIKey `yaml:"api_keys" ignored:"true"`
}

// SignTTL returns the signed URL lifetime
func (c *ImagesConfig) SignTTL() time.Duration {
	return time.Duration(c.SignTTLSeconds) * time.Second
}

// Load reads the YAML file at path (skipped when empty), applies TRIPSNAP_* environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills unset fields
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = DefaultBackendTimeout
	}
	if c.Backend.LegacyBaseURL == "" {
		c.Backend.LegacyBaseURL = c.Backend.BaseURL
	}
	if c.Images.SignTTLSeconds == 0 {
		c.Images.SignTTLSeconds = DefaultSignTTLSeconds
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheMaxItems
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = DefaultRedisPrefix
	}
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("invalid configuration: cache.redis.addr is required for the redis backend")
	}
	return nil
}
