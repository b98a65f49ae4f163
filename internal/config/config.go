package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEDBUDDY_STORE_PATH.
const EnvPrefix = "MEDBUDDY"

type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Conflict ConflictConfig `yaml:"conflict" mapstructure:"conflict"`
	Audit    AuditConfig    `yaml:"audit" mapstructure:"audit"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`

	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
	HTTPAddr  string `yaml:"http_addr" mapstructure:"http_addr"`   // default ":8080"
	GRPCAddr  string `yaml:"grpc_addr" mapstructure:"grpc_addr"`   // default ":9090"
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"` // empty = auth disabled
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"` // text or json
}

type StoreConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // file or postgres
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

type ModelConfig struct {
	Provider              string        `yaml:"provider" mapstructure:"provider"` // google, openai or offline
	APIKey                string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL               string        `yaml:"base_url" mapstructure:"base_url"`
	Model                 string        `yaml:"model" mapstructure:"model"`
	Timeout               time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxOutputTokens       int           `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	StrictMaxOutputTokens int           `yaml:"strict_max_output_tokens" mapstructure:"strict_max_output_tokens"`
	RatePerMinute         int           `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

type EngineConfig struct {
	ContextEvents        int  `yaml:"context_events" mapstructure:"context_events"`
	PersistConflictFlags bool `yaml:"persist_conflict_flags" mapstructure:"persist_conflict_flags"`
}

type ConflictConfig struct {
	MinSeparation time.Duration `yaml:"min_separation" mapstructure:"min_separation"`
}

type AuditConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	NATSURL    string `yaml:"nats_url" mapstructure:"nats_url"`
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size"`
}

type SyncConfig struct {
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"` // 0 = disabled
	File       string        `yaml:"file" mapstructure:"file"`
	S3Bucket   string        `yaml:"s3_bucket" mapstructure:"s3_bucket"` // enables S3 when set
	S3Key      string        `yaml:"s3_key" mapstructure:"s3_key"`
	S3Region   string        `yaml:"s3_region" mapstructure:"s3_region"`
	S3Endpoint string        `yaml:"s3_endpoint" mapstructure:"s3_endpoint"` // custom endpoint for MinIO
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "file",
			Path:    filepath.Join(DataDir(), "events.jsonl"),
		},
		Model: ModelConfig{
			Provider:              "google",
			Model:                 "gemini-2.0-flash",
			Timeout:               30 * time.Second,
			MaxOutputTokens:       512,
			StrictMaxOutputTokens: 1024,
			RatePerMinute:         30,
		},
		Engine: EngineConfig{
			ContextEvents:        3,
			PersistConflictFlags: true,
		},
		Conflict: ConflictConfig{MinSeparation: 2 * time.Hour},
		Audit:    AuditConfig{BufferSize: 256},
		Sync: SyncConfig{
			Interval: 3 * time.Minute,
			S3Key:    "medbuddy/backup.jsonl",
			S3Region: "us-east-1",
		},
		HTTPAddr:  ":8080",
		GRPCAddr:  ":9090",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// DataDir is where the default event log lives.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medbuddy")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "medbuddy")
}

// Load reads config.yaml from the working directory or the user config
// directory, applies MEDBUDDY_* environment overrides and validates the
// result. An explicit path replaces the search.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "medbuddy"))
		}
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "medbuddy"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// when no config file mentions the key.
func setDefaults(v *viper.Viper, c *Config) {
	defaults := map[string]any{
		"store.backend":                  c.Store.Backend,
		"store.path":                     c.Store.Path,
		"store.database_url":             c.Store.DatabaseURL,
		"model.provider":                 c.Model.Provider,
		"model.api_key":                  c.Model.APIKey,
		"model.base_url":                 c.Model.BaseURL,
		"model.model":                    c.Model.Model,
		"model.timeout":                  c.Model.Timeout,
		"model.max_output_tokens":        c.Model.MaxOutputTokens,
		"model.strict_max_output_tokens": c.Model.StrictMaxOutputTokens,
		"model.rate_per_minute":          c.Model.RatePerMinute,
		"engine.context_events":          c.Engine.ContextEvents,
		"engine.persist_conflict_flags":  c.Engine.PersistConflictFlags,
		"conflict.min_separation":        c.Conflict.MinSeparation,
		"audit.file":                     c.Audit.File,
		"audit.nats_url":                 c.Audit.NATSURL,
		"audit.buffer_size":              c.Audit.BufferSize,
		"sync.interval":                  c.Sync.Interval,
		"sync.file":                      c.Sync.File,
		"sync.s3_bucket":                 c.Sync.S3Bucket,
		"sync.s3_key":                    c.Sync.S3Key,
		"sync.s3_region":                 c.Sync.S3Region,
		"sync.s3_endpoint":               c.Sync.S3Endpoint,
		"rules_file":                     c.RulesFile,
		"http_addr":                      c.HTTPAddr,
		"grpc_addr":                      c.GRPCAddr,
		"auth_token":                     c.AuthToken,
		"log_level":                      c.LogLevel,
		"log_format":                     c.LogFormat,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the file backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("config: store.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: store.backend %q is invalid (must be file or postgres)", c.Store.Backend)
	}

	switch c.Model.Provider {
	case "google", "gemini", "offline", "":
	case "openai":
		if c.Model.BaseURL == "" || c.Model.Model == "" {
			return fmt.Errorf("config: model provider openai requires model.base_url and model.model")
		}
	default:
		return fmt.Errorf("config: model.provider %q is invalid (must be google, openai or offline)", c.Model.Provider)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format %q is invalid (must be text or json)", c.LogFormat)
	}

	if c.Model.Timeout <= 0 {
		return fmt.Errorf("config: model.timeout must be positive")
	}
	if c.Conflict.MinSeparation <= 0 {
		return fmt.Errorf("config: conflict.min_separation must be positive")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("config: sync.interval must not be negative")
	}
	if c.Engine.ContextEvents < 1 {
		c.Engine.ContextEvents = 3
	}
	if c.Model.MaxOutputTokens < 1 {
		c.Model.MaxOutputTokens = 512
	}
	if c.Model.StrictMaxOutputTokens < c.Model.MaxOutputTokens {
		c.Model.StrictMaxOutputTokens = 2 * c.Model.MaxOutputTokens
	}
	return nil
}
