package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "mongo".
	Driver string `mapstructure:"driver" yaml:"driver"`

	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`

	// Timeout bounds every store call. An expired call is a transient
	// failure, never an empty result.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// VerificationConfig controls one-time code issuance.
type VerificationConfig struct {
	// ExposeCode returns issued codes to the API caller. Never enable in
	// production.
	ExposeCode  bool          `mapstructure:"expose_code" yaml:"expose_code"`
	TTL         time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// SchedulerConfig controls reminder time arithmetic.
type SchedulerConfig struct {
	// Timezone is an IANA zone name; "Local" uses the host zone and an
	// empty value means UTC.
	Timezone     string `mapstructure:"timezone" yaml:"timezone"`
	ReminderHour int    `mapstructure:"reminder_hour" yaml:"reminder_hour"`
}

// DispatcherConfig controls the periodic reminder scan.
type DispatcherConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	LeadDays    int           `mapstructure:"lead_days" yaml:"lead_days"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryMin    time.Duration `mapstructure:"retry_min" yaml:"retry_min"`
	RetryMax    time.Duration `mapstructure:"retry_max" yaml:"retry_max"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	Verification VerificationConfig `mapstructure:"verification" yaml:"verification"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler" yaml:"scheduler"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher" yaml:"dispatcher"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// Location resolves the scheduler timezone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/gardenreminders/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "gardenreminders", "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Driver:        "sqlite",
			SQLitePath:    "gardenreminders.db",
			MongoDatabase: "gardenreminders",
			Timeout:       5 * time.Second,
		},
		Verification: VerificationConfig{
			TTL:         10 * time.Minute,
			MaxAttempts: 3,
		},
		Scheduler: SchedulerConfig{
			Timezone:     "UTC",
			ReminderHour: 9,
		},
		Dispatcher: DispatcherConfig{
			Enabled:     true,
			Interval:    time.Hour,
			LeadDays:    1,
			MaxAttempts: 3,
			RetryMin:    time.Second,
			RetryMax:    30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults mirrors DefaultAppConfig into v so that partially filled
// files resolve missing keys.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.mongo_database", d.Store.MongoDatabase)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("verification.ttl", d.Verification.TTL)
	v.SetDefault("verification.max_attempts", d.Verification.MaxAttempts)
	v.SetDefault("scheduler.timezone", d.Scheduler.Timezone)
	v.SetDefault("scheduler.reminder_hour", d.Scheduler.ReminderHour)
	v.SetDefault("dispatcher.enabled", d.Dispatcher.Enabled)
	v.SetDefault("dispatcher.interval", d.Dispatcher.Interval)
	v.SetDefault("dispatcher.lead_days", d.Dispatcher.LeadDays)
	v.SetDefault("dispatcher.max_attempts", d.Dispatcher.MaxAttempts)
	v.SetDefault("dispatcher.retry_min", d.Dispatcher.RetryMin)
	v.SetDefault("dispatcher.retry_max", d.Dispatcher.RetryMax)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed GARDEN_ override file values
// (e.g. GARDEN_STORE_DRIVER).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	return LoadConfigWith(v, path)
}

// LoadConfigWith is LoadConfig on a caller-supplied Viper, so command-line
// flags bound to v take part in resolution.
func LoadConfigWith(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("garden")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if _, ok := err.(*os.PathError); !ok && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Verification.MaxAttempts <= 0 {
		cfg.Verification.MaxAttempts = 3
	}
	if cfg.Dispatcher.Interval <= 0 {
		cfg.Dispatcher.Interval = time.Hour
	}
	if cfg.Scheduler.ReminderHour < 0 || cfg.Scheduler.ReminderHour > 23 {
		return nil, fmt.Errorf("scheduler.reminder_hour %d out of range", cfg.Scheduler.ReminderHour)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("store", cfg.Store)
	v.Set("verification", cfg.Verification)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("dispatcher", cfg.Dispatcher)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
