package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFeedURL   = "https://www.metrobus.co.ca/api/timetrack/json/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultClockURL  = "https://timeapi.io/api/Time/current/zone?timeZone=America/St_Johns"
)

// LoadEnvFile loads variables from a .env file into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags on the whole configuration tree.
func Validate(cfg *AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Server.Port = getEnvInt("BUSTRACKER_PORT", cfg.Server.Port)
	cfg.Server.StaticDir = getEnv("BUSTRACKER_STATIC_DIR", cfg.Server.StaticDir)
	cfg.Feed.Kind = getEnv("BUSTRACKER_FEED_KIND", cfg.Feed.Kind)
	cfg.Feed.URL = getEnv("BUSTRACKER_FEED_URL", cfg.Feed.URL)
	cfg.Clock.URL = getEnv("BUSTRACKER_CLOCK_URL", cfg.Clock.URL)
	cfg.Publish.AMQPURL = getEnv("BUSTRACKER_AMQP_URL", cfg.Publish.AMQPURL)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.ShutdownTimeoutMS == 0 {
		cfg.Server.ShutdownTimeoutMS = 10000
	}

	if cfg.Feed.Kind == "" {
		cfg.Feed.Kind = "metrobus"
	}
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = DefaultFeedURL
	}
	if cfg.Feed.UserAgent == "" {
		cfg.Feed.UserAgent = DefaultUserAgent
	}
	if cfg.Feed.RefreshIntervalMS == 0 {
		cfg.Feed.RefreshIntervalMS = 300000
	}
	if cfg.Feed.TimeoutMS == 0 {
		cfg.Feed.TimeoutMS = 10000
	}

	if cfg.Clock.URL == "" {
		cfg.Clock.URL = DefaultClockURL
	}
	if cfg.Clock.PollIntervalMS == 0 {
		cfg.Clock.PollIntervalMS = 1000
	}
	if cfg.Clock.TimeoutMS == 0 {
		cfg.Clock.TimeoutMS = 900
	}
	if cfg.Clock.NoServiceMessage == "" {
		cfg.Clock.NoServiceMessage = "No bus service at this time"
	}

	// St. John's, NL
	if cfg.Map.CenterLat == 0 && cfg.Map.CenterLon == 0 {
		cfg.Map.CenterLat = 47.5615
		cfg.Map.CenterLon = -52.7126
	}
	if cfg.Map.Zoom == 0 {
		cfg.Map.Zoom = 13
	}
	if cfg.Map.FocusZoom == 0 {
		cfg.Map.FocusZoom = 14
	}

	if cfg.Display.CountdownSeconds == 0 {
		cfg.Display.CountdownSeconds = 300
	}
	if cfg.Display.CountdownTickMS == 0 {
		cfg.Display.CountdownTickMS = 1000
	}
	if cfg.Display.HighlightMS == 0 {
		cfg.Display.HighlightMS = 2000
	}

	if cfg.Sessions.MaxParked == 0 {
		cfg.Sessions.MaxParked = 1000
	}
	if cfg.Sessions.ParkedTTLSeconds == 0 {
		cfg.Sessions.ParkedTTLSeconds = 600
	}

	if cfg.Publish.Queue == "" {
		cfg.Publish.Queue = "buses"
	}
	if cfg.Publish.MessageTTLMS == 0 {
		cfg.Publish.MessageTTLMS = 5000
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Millis converts a millisecond setting to a time.Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
