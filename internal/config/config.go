package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	minFreshnessHours = 12
	minRetentionDays  = 7
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Gemini   ProviderConfig `yaml:"gemini"`
	DeepSeek ProviderConfig `yaml:"deepseek"`
}

type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	SessionDays         int    `yaml:"session_days"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type IngestConfig struct {
	Provider                string `yaml:"provider"`
	FreshnessHours          int    `yaml:"freshness_hours"`
	RetentionDays           int    `yaml:"retention_days"`
	ItemsPerSource          int    `yaml:"items_per_source"`
	BatchSize               int    `yaml:"batch_size"`
	CronSecret              string `yaml:"cron_secret"`
	SchedulerHeader         string `yaml:"scheduler_header"`
	ScheduleIntervalMinutes int    `yaml:"schedule_interval_minutes"`
	RunOnStart              bool   `yaml:"run_on_start"`
}

// ProviderConfig holds credentials for one LLM backend. An empty BaseURL
// selects the provider's public endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 300,
			SessionDays:         30,
		},
		Database: DatabaseConfig{
			Path: "./civicwire.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			Provider:                "gemini",
			FreshnessHours:          72,
			RetentionDays:           14,
			ItemsPerSource:          6,
			BatchSize:               18,
			SchedulerHeader:         "X-Vercel-Cron",
			ScheduleIntervalMinutes: 1440,
		},
		Gemini: ProviderConfig{
			Model: "gemini-2.0-flash",
		},
		DeepSeek: ProviderConfig{
			Model: "deepseek-chat",
		},
	}
}

// Load reads a YAML config file and merges it over defaults.
// If the file does not exist, defaults are returned without error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No config file found, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	slog.Info("Loaded environment file", "path", path)
	return nil
}

// ApplyEnv overrides config values from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str("LLM_PROVIDER", &c.Ingest.Provider)
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)
	str("DEEPSEEK_API_KEY", &c.DeepSeek.APIKey)
	str("DEEPSEEK_MODEL", &c.DeepSeek.Model)
	str("INGEST_CRON_SECRET", &c.Ingest.CronSecret)
	str("DATABASE_PATH", &c.Database.Path)
	str("LOG_LEVEL", &c.Logging.Level)

	if err := num("INGEST_MAX_AGE_HOURS", &c.Ingest.FreshnessHours); err != nil {
		return err
	}
	if err := num("STORY_RETENTION_DAYS", &c.Ingest.RetentionDays); err != nil {
		return err
	}
	return num("PORT", &c.Server.Port)
}

// Validate checks values that would otherwise fail later at run time.
func (c Config) Validate() error {
	switch strings.ToLower(c.Ingest.Provider) {
	case "", "gemini", "deepseek":
	default:
		return fmt.Errorf("ingest.provider: unknown provider %q (want gemini or deepseek)", c.Ingest.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Ingest.ScheduleIntervalMinutes < 0 {
		return fmt.Errorf("ingest.schedule_interval_minutes must not be negative")
	}
	return nil
}

// FreshnessWindow is the maximum item age accepted by a run, never less than
// 12 hours. Zero and negative values are raised to the floor.
func (c Config) FreshnessWindow() time.Duration {
	return time.Duration(max(c.Ingest.FreshnessHours, minFreshnessHours)) * time.Hour
}

// RetentionWindow is how long stories are kept, never less than 7 days.
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(max(c.Ingest.RetentionDays, minRetentionDays)) * 24 * time.Hour
}

// ScheduleInterval returns zero when the built-in scheduler is disabled.
func (c Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Ingest.ScheduleIntervalMinutes) * time.Minute
}

func (c Config) SessionTTL() time.Duration {
	days := c.Server.SessionDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// SlogLevel maps logging.level to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
