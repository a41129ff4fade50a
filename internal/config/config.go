// Package config loads lsync settings from a YAML file, LSYNC_* environment
// variables and built-in defaults, in that order of precedence (env wins).
//
// Keys use dots for nesting; the environment form upper-cases the key and
// replaces dots with underscores:
//
//	sync.full_sync_delay  ->  LSYNC_SYNC_FULL_SYNC_DELAY
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ledgerline/ledgersync/internal/blob"
	"github.com/ledgerline/ledgersync/internal/logging"
	"github.com/ledgerline/ledgersync/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LSYNC"

// Config is the effective configuration.
type Config struct {
	OwnerID   string          `mapstructure:"owner_id" yaml:"owner_id"`
	Local     LocalConfig     `mapstructure:"local" yaml:"local"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	IDs       IDsConfig       `mapstructure:"ids" yaml:"ids"`
	Blob      BlobConfig      `mapstructure:"blob" yaml:"blob"`
	Legacy    LegacyConfig    `mapstructure:"legacy" yaml:"legacy"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type LocalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type RemoteConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"`
	DSN           string        `mapstructure:"dsn" yaml:"dsn"`
	AuthToken     string        `mapstructure:"auth_token" yaml:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
}

type SyncConfig struct {
	FullSyncDelay time.Duration `mapstructure:"full_sync_delay" yaml:"full_sync_delay"`
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	Parallelism   int           `mapstructure:"parallelism" yaml:"parallelism"`
	AutoFull      bool          `mapstructure:"auto_full" yaml:"auto_full"`
}

type IDsConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

type BlobConfig struct {
	// Provider is "s3" or "local".
	Provider        string `mapstructure:"provider" yaml:"provider"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	CacheDir        string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

type LegacyConfig struct {
	// Path is a JSONL export of the old schema imported before the first
	// sync.
	Path string `mapstructure:"path" yaml:"path"`
	// ImportDir is watched by the daemon for new exports.
	ImportDir string `mapstructure:"import_dir" yaml:"import_dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// setDefaults registers a default for every key. Keys without a default
// are invisible to environment overrides during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("owner_id", "")
	v.SetDefault("local.path", filepath.Join(".lsync", "local.db"))

	v.SetDefault("remote.driver", "sqlite")
	v.SetDefault("remote.dsn", filepath.Join(".lsync", "remote.db"))
	v.SetDefault("remote.auth_token", "")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.probe_interval", 15*time.Second)

	v.SetDefault("sync.full_sync_delay", 3*time.Second)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.parallelism", 1)
	v.SetDefault("sync.auto_full", true)

	v.SetDefault("ids.format", "uuid")

	v.SetDefault("blob.provider", "local")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.prefix", "attachments/")
	v.SetDefault("blob.access_key_id", "")
	v.SetDefault("blob.secret_access_key", "")
	v.SetDefault("blob.use_path_style", false)
	v.SetDefault("blob.cache_dir", filepath.Join(".lsync", "blobs"))

	v.SetDefault("legacy.path", "")
	v.SetDefault("legacy.import_dir", filepath.Join(".lsync", "import"))

	d := logging.DefaultConfig()
	v.SetDefault("log.level", d.Level)
	v.SetDefault("log.format", d.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.MaxSizeMB)
	v.SetDefault("log.max_backups", d.MaxBackups)

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8080)
}

// Load reads configuration. When file is empty, lsync.yaml is looked up in
// the working directory and then in $HOME/.config/lsync; a missing file is
// not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("lsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "lsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a sync.
func (c *Config) Validate() error {
	if c.Local.Path == "" {
		return errors.New("local.path is required")
	}
	if _, err := store.ParseDialect(c.Remote.Driver); err != nil {
		return fmt.Errorf("remote.driver: %w", err)
	}
	if c.Sync.Parallelism < 1 {
		return fmt.Errorf("sync.parallelism must be at least 1 (got %d)", c.Sync.Parallelism)
	}
	switch c.Blob.Provider {
	case "local":
	case "s3":
		if c.Blob.Bucket == "" {
			return errors.New("blob.bucket is required for the s3 provider")
		}
	default:
		return fmt.Errorf("unknown blob.provider %q (must be local or s3)", c.Blob.Provider)
	}
	return nil
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

// StoreRemote returns the remote store settings.
func (c *Config) StoreRemote() (store.RemoteConfig, error) {
	d, err := store.ParseDialect(c.Remote.Driver)
	if err != nil {
		return store.RemoteConfig{}, err
	}
	return store.RemoteConfig{
		Dialect:   d,
		DSN:       c.Remote.DSN,
		AuthToken: c.Remote.AuthToken,
		Timeout:   c.Remote.Timeout,
	}, nil
}

// S3 returns the S3 uploader settings.
func (c *Config) S3() blob.S3Config {
	return blob.S3Config{
		Bucket:          c.Blob.Bucket,
		Region:          c.Blob.Region,
		Endpoint:        c.Blob.Endpoint,
		AccessKeyID:     c.Blob.AccessKeyID,
		SecretAccessKey: c.Blob.SecretAccessKey,
		Prefix:          c.Blob.Prefix,
		UsePathStyle:    c.Blob.UsePathStyle,
	}
}

// YAML renders the configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	out.Remote.AuthToken = mask(out.Remote.AuthToken)
	out.Blob.SecretAccessKey = mask(out.Blob.SecretAccessKey)
	return yaml.Marshal(out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
