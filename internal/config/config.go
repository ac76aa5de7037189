// Package config loads runtime settings from defaults, an optional
// spendwise.yaml and SPENDWISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SPENDWISE"

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendSupabase}

type Config struct {
	// HTTP server
	Port      string
	RateLimit int

	// Logging
	LogLevel  string
	LogFormat string

	// Document store
	Backend          string
	MemorySnapshot   string
	SQLiteDBPath     string
	SupabaseURL      string
	SupabaseKey      string
	SupabasePollTime time.Duration

	// Change feed, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	// Insights, disabled when GeminiAPIKey is empty
	GeminiAPIKey string
	GeminiModel  string

	// Google Sheets export, disabled when SheetsSpreadsheetID is empty
	SheetsSpreadsheetID   string
	SheetsCredentialsFile string
	SheetsCredentialsJSON string

	// Chart cache
	ChartCacheSize int
	ChartCacheTTL  time.Duration

	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8081")
	v.SetDefault("http.rate_limit", 120)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.memory_snapshot", "")
	v.SetDefault("sqlite.path", "./data/spendwise.db")
	v.SetDefault("supabase.poll_interval", 5*time.Second)

	v.SetDefault("amqp.exchange", "spendwise.changes")

	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("charts.cache_size", 64)
	v.SetDefault("charts.cache_ttl", 10*time.Minute)
}

// Load reads configuration. configFile may be empty, in which case
// spendwise.yaml is looked up in the working directory and
// $HOME/.config/spendwise; a missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("spendwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/spendwise")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names commonly set by hosting platforms and SDKs.
	_ = v.BindEnv("http.port", EnvPrefix+"_HTTP_PORT", "PORT")
	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("sheets.credentials_json", EnvPrefix+"_SHEETS_CREDENTIALS_JSON", "GOOGLE_CREDENTIALS_JSON")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return &Config{
		Port:      v.GetString("http.port"),
		RateLimit: v.GetInt("http.rate_limit"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		Backend:          strings.ToLower(v.GetString("store.backend")),
		MemorySnapshot:   v.GetString("store.memory_snapshot"),
		SQLiteDBPath:     v.GetString("sqlite.path"),
		SupabaseURL:      v.GetString("supabase.url"),
		SupabaseKey:      v.GetString("supabase.key"),
		SupabasePollTime: v.GetDuration("supabase.poll_interval"),

		AMQPURL:      v.GetString("amqp.url"),
		AMQPExchange: v.GetString("amqp.exchange"),

		GeminiAPIKey: v.GetString("gemini.api_key"),
		GeminiModel:  v.GetString("gemini.model"),

		SheetsSpreadsheetID:   v.GetString("sheets.spreadsheet_id"),
		SheetsCredentialsFile: v.GetString("sheets.credentials_file"),
		SheetsCredentialsJSON: v.GetString("sheets.credentials_json"),

		ChartCacheSize: v.GetInt("charts.cache_size"),
		ChartCacheTTL:  v.GetDuration("charts.cache_ttl"),

		ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
	}, nil
}

func (c *Config) FeedEnabled() bool     { return c.AMQPURL != "" }
func (c *Config) InsightsEnabled() bool { return c.GeminiAPIKey != "" }
func (c *Config) SheetsEnabled() bool   { return c.SheetsSpreadsheetID != "" }

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimit))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, "supabase url and key are required when using supabase backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("invalid supabase url '%s'", c.SupabaseURL))
		}
		if c.SupabasePollTime < 500*time.Millisecond {
			errs = append(errs, fmt.Sprintf("invalid supabase poll interval %v: must be at least 500ms", c.SupabasePollTime))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.Backend, validBackends))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.Backend == BackendMemory {
			errs = append(errs, "the change feed needs a shared backend (sqlite or supabase)")
		}
	}

	if c.SheetsSpreadsheetID != "" && c.SheetsCredentialsFile == "" && c.SheetsCredentialsJSON == "" {
		errs = append(errs, "sheets export needs a credentials file or credentials JSON")
	}
	if c.SheetsCredentialsFile != "" {
		if _, err := os.Stat(c.SheetsCredentialsFile); err != nil {
			errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", c.SheetsCredentialsFile))
		}
	}

	if c.ChartCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid chart cache size %d: must be at least 1", c.ChartCacheSize))
	}
	if c.ChartCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid chart cache ttl %v: must be at least 1 second", c.ChartCacheTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
