// Package config loads the server configuration from flags, environment,
// an optional YAML file and a local .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "ADOMIRROR"

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ADO        ADOConfig        `mapstructure:"ado"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Log        LogConfig        `mapstructure:"log"`
	Secret     SecretConfig     `mapstructure:"secret"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// CacheTTL bounds how stale aggregate answers may be. Zero disables.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // postgres, mysql or sqlite
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// ADOConfig configures the Azure DevOps connector.
type ADOConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIVersion     string        `mapstructure:"api_version"`
	DefaultToken   string        `mapstructure:"default_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CloseTimeout   time.Duration `mapstructure:"close_timeout"`
}

// ExtractionConfig tunes the extraction job engine.
type ExtractionConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	BatchPause        time.Duration `mapstructure:"batch_pause"`
	StallWindow       time.Duration `mapstructure:"stall_window"`
	WorkItemBatchSize int           `mapstructure:"workitem_batch_size"`
	CommitTop         int           `mapstructure:"commit_top"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SecretConfig holds the key used to seal stored access tokens.
type SecretConfig struct {
	Key string `mapstructure:"key"`
}

// LoadOptions tells Load where to look besides the environment.
type LoadOptions struct {
	// File is an optional YAML config file. Empty means none.
	File string
	// EnvFile is loaded into the process environment before anything else.
	// Defaults to ".env"; a missing file is not an error.
	EnvFile string
	// Flags, when set, override every other source for the keys in FlagKeys.
	Flags *pflag.FlagSet
}

// FlagKeys maps config keys to the command-line flag names that override them.
var FlagKeys = map[string]string{
	"server.listen":          "listen",
	"database.type":          "db-type",
	"database.dsn":           "db-dsn",
	"database.auto_migrate":  "auto-migrate",
	"extraction.concurrency": "concurrency",
	"log.level":              "log-level",
	"log.file":               "log-file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cache_ttl", 5*time.Second)

	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("ado.base_url", "https://dev.azure.com")
	v.SetDefault("ado.api_version", "7.0")
	v.SetDefault("ado.default_token", "")
	v.SetDefault("ado.request_timeout", 30*time.Second)
	v.SetDefault("ado.close_timeout", 5*time.Second)

	v.SetDefault("extraction.concurrency", 4)
	v.SetDefault("extraction.batch_pause", 500*time.Millisecond)
	v.SetDefault("extraction.stall_window", 5*time.Minute)
	v.SetDefault("extraction.workitem_batch_size", 100)
	v.SetDefault("extraction.commit_top", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)

	v.SetDefault("secret.key", "")
}

// Load builds a Config. It returns the viper instance as well so callers can
// watch the config file for changes.
func Load(opts LoadOptions) (*Config, *viper.Viper, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by earlier deployments.
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL", "DATABASE_DSN")
	_ = v.BindEnv("database.type", EnvPrefix+"_DATABASE_TYPE", "DATABASE_TYPE")
	_ = v.BindEnv("ado.default_token", EnvPrefix+"_ADO_DEFAULT_TOKEN", "ADO_PAT")

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config file %s: %w", opts.File, err)
		}
	}

	if opts.Flags != nil {
		for key, name := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	cfg.ADO.BaseURL = strings.TrimRight(cfg.ADO.BaseURL, "/")
	return &cfg, nil
}

// Validate reports the first configuration error that would make the
// server unusable.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database DSN is required (set --db-dsn, ADOMIRROR_DATABASE_DSN or DATABASE_URL)")
	}
	switch c.Database.Type {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown database type %q (expected postgres, mysql or sqlite)", c.Database.Type)
	}
	if c.Extraction.Concurrency <= 0 {
		return fmt.Errorf("extraction concurrency must be positive, got %d", c.Extraction.Concurrency)
	}
	if c.Extraction.WorkItemBatchSize < 1 || c.Extraction.WorkItemBatchSize > 200 {
		return fmt.Errorf("work item batch size must be within 1..200, got %d", c.Extraction.WorkItemBatchSize)
	}
	if c.Extraction.BatchPause < 0 {
		return fmt.Errorf("batch pause must not be negative, got %s", c.Extraction.BatchPause)
	}
	return nil
}

// Watch re-reads the config file whenever it changes and hands the new
// Config to onChange. It is a no-op when no file was loaded.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(*Config)) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Error("config reload failed", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}
