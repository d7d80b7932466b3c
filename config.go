/*
 * Email Extractor - Configuration Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// defaultUserAgent is a desktop Chrome identity; some sites reject bot-looking agents.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config struct holds configuration options
type Config struct {
	Timeout            int      `json:"timeout" toml:"timeout" validate:"gte=1,lte=300"`
	UserAgent          string   `json:"user_agent" toml:"user_agent" validate:"required"`
	RateLimitPerSecond float64  `json:"rate_limit_per_second" toml:"rate_limit_per_second" validate:"gt=0,lte=1000"`
	Workers            int      `json:"workers" toml:"workers" validate:"gte=1,lte=200"`
	MaxBodyBytes       int64    `json:"max_body_bytes" toml:"max_body_bytes" validate:"gte=1024"`
	VerifyMX           bool     `json:"verify_mx" toml:"verify_mx"`
	AutoTune           bool     `json:"auto_tune" toml:"auto_tune"`
	NetworkProbe       string   `json:"network_probe" toml:"network_probe" validate:"oneof=dial speedtest"`
	ContactPages       []string `json:"contact_pages" toml:"contact_pages" validate:"dive,startswith=/"`
	IgnoreDomains      []string `json:"ignore_domains" toml:"ignore_domains" validate:"dive,required"`
	CommonEmailDomains []string `json:"common_email_domains" toml:"common_email_domains" validate:"dive,required"`
	EmailClassNames    []string `json:"email_class_fragments" toml:"email_class_fragments" validate:"dive,required"`

	// Logging
	LogLevel  string `json:"log_level" toml:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string `json:"log_format" toml:"log_format" validate:"oneof=console json"`
	LogFile   string `json:"log_file" toml:"log_file"`

	// Job service
	DBPath        string `json:"db_path" toml:"db_path" validate:"required"`
	ListenAddr    string `json:"listen_addr" toml:"listen_addr" validate:"required"`
	BatchSize     int    `json:"batch_size" toml:"batch_size" validate:"gte=1,lte=100"`
	JobsPerTick   int    `json:"jobs_per_tick" toml:"jobs_per_tick" validate:"gte=1,lte=50"`
	BatchInterval string `json:"batch_interval" toml:"batch_interval"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	lists := DefaultLists()
	return Config{
		Timeout:            15,
		UserAgent:          defaultUserAgent,
		RateLimitPerSecond: 20,
		Workers:            1,
		MaxBodyBytes:       5 * 1024 * 1024,
		NetworkProbe:       "dial",
		ContactPages:       lists.ContactPages,
		IgnoreDomains:      lists.IgnoreDomains,
		CommonEmailDomains: lists.CommonEmailDomains,
		EmailClassNames:    lists.EmailClassNames,
		LogLevel:           "info",
		LogFormat:          "console",
		DBPath:             "data/jobs.db",
		ListenAddr:         ":8080",
		BatchSize:          5,
		JobsPerTick:        3,
		BatchInterval:      "@every 30s",
	}
}

// Lists returns the static lookup tables the pipeline components consume.
func (c *Config) Lists() Lists {
	lists := DefaultLists()
	if len(c.ContactPages) > 0 {
		lists.ContactPages = c.ContactPages
	}
	if len(c.IgnoreDomains) > 0 {
		lists.IgnoreDomains = lowerAll(c.IgnoreDomains)
	}
	if len(c.CommonEmailDomains) > 0 {
		lists.CommonEmailDomains = lowerAll(c.CommonEmailDomains)
	}
	if len(c.EmailClassNames) > 0 {
		lists.EmailClassNames = lowerAll(c.EmailClassNames)
	}
	return lists
}

// LoadConfig loads the configuration from a JSON or TOML file, then applies
// .env and environment overrides. A missing file leaves the defaults in place.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults
		case err != nil:
			return config, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := decodeConfig(configPath, data, &config); err != nil {
				return config, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnvOverrides(&config)

	if err := ValidateConfig(&config); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func decodeConfig(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides applies EMAILX_* environment variables on top of the file config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("EMAILX_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Timeout = n
		}
	}
	if v := os.Getenv("EMAILX_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.RateLimitPerSecond = f
		}
	}
	if v := os.Getenv("EMAILX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers = n
		}
	}
	if v := os.Getenv("EMAILX_USER_AGENT"); v != "" {
		config.UserAgent = v
	}
	if v := os.Getenv("EMAILX_LOG_LEVEL"); v != "" {
		config.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("EMAILX_LOG_FORMAT"); v != "" {
		config.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("EMAILX_DB_PATH"); v != "" {
		config.DBPath = v
	}
	if v := os.Getenv("EMAILX_LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	}
	if v := os.Getenv("EMAILX_VERIFY_MX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.VerifyMX = b
		}
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig validates the configuration values
func ValidateConfig(config *Config) error {
	if err := configValidator.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (got %v)", strings.ToLower(fe.Field()), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
