// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"omikuji-bot/internal/game/omikuji"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Configuration errors.
var (
	ErrUnknownDriver   = errors.New("unknown storage driver")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrMissingDataFile = errors.New("storage.data_file is required for the file driver")
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Omikuji   OmikujiConfig   `mapstructure:"omikuji"`
	Health    HealthConfig    `mapstructure:"health"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig selects where user records live.
type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	DataFile string `mapstructure:"data_file"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// OmikujiConfig holds the draw table and day boundary configuration.
type OmikujiConfig struct {
	Timezone    string          `mapstructure:"timezone"`
	BonusLabel  string          `mapstructure:"bonus_label"`
	BonusReward int64           `mapstructure:"bonus_reward"`
	Outcomes    []OutcomeConfig `mapstructure:"outcomes"`
	Messages    []string        `mapstructure:"messages"`
}

// OutcomeConfig is one weighted outcome.
type OutcomeConfig struct {
	Label  string `mapstructure:"label"`
	Weight int    `mapstructure:"weight"`
}

// HealthConfig holds the liveness endpoint configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Location loads the configured timezone.
func (o *OmikujiConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTimezone, o.Timezone, err)
	}
	return loc, nil
}

// SelectorConfig converts the draw table into the selector's configuration.
func (o *OmikujiConfig) SelectorConfig() *omikuji.Config {
	cfg := &omikuji.Config{
		Messages:    o.Messages,
		BonusLabel:  o.BonusLabel,
		BonusReward: o.BonusReward,
	}
	for _, oc := range o.Outcomes {
		cfg.Outcomes = append(cfg.Outcomes, omikuji.Outcome{Label: oc.Label, Weight: oc.Weight})
	}
	return cfg
}

// Addr returns the listen address for the liveness endpoint.
func (h *HealthConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory. A .env file in the
// working directory or the config directory is loaded into the environment
// first; variables already set take precedence over it.
func Load(configPath string) (*Config, error) {
	loadDotEnv(configPath)

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, STORAGE_DRIVER, OMIKUJI_TIMEZONE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Hosting platforms hand out the listen port as PORT.
	_ = v.BindEnv("health.port", "HEALTH_PORT", "PORT")

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads .env files if present. Missing files are ignored.
func loadDotEnv(configPath string) {
	for _, path := range []string{".env", filepath.Join(configPath, ".env")} {
		_ = godotenv.Load(path)
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Keys without a default are invisible to env overrides on Unmarshal.
	v.SetDefault("bot.token", "")
	v.SetDefault("log.level", "info")

	// Storage defaults
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.data_file", "omikuji_data.json")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "omikuji")
	v.SetDefault("database.name", "omikuji")
	v.SetDefault("database.pool_size", 4)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Draw defaults
	v.SetDefault("omikuji.timezone", "Asia/Tokyo")
	v.SetDefault("omikuji.bonus_label", omikuji.DefaultBonusLabel)
	v.SetDefault("omikuji.bonus_reward", omikuji.DefaultBonusReward)

	// Liveness endpoint defaults
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8080)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.DataFile == "" {
			return ErrMissingDataFile
		}
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}

	if _, err := c.Omikuji.Location(); err != nil {
		return err
	}
	if omikuji.New(c.Omikuji.SelectorConfig()).TotalWeight() <= 0 {
		return omikuji.ErrNothingToDraw
	}
	return nil
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
