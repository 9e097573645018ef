// Package config loads recipe-ingest configuration from defaults, an
// optional YAML file, a .env file and RECIPE_INGEST_* environment variables,
// in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every scalar override.
const EnvPrefix = "RECIPE_INGEST_"

// Config holds all application configuration.
type Config struct {
	Workers             int           `yaml:"workers" validate:"min=1,max=256"`
	StoragePath         string        `yaml:"storage_path" validate:"required"`
	Database            Database      `yaml:"database"`
	MaxRetries          int           `yaml:"max_retries" validate:"min=0,max=100"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	PollInterval        time.Duration `yaml:"poll_interval" validate:"gt=0"`
	Timeouts            Timeouts      `yaml:"timeouts"`
	Backoff             Backoff       `yaml:"backoff"`
	Language            Language      `yaml:"language"`
	Dedupe              Dedupe        `yaml:"dedupe"`
	AI                  AI            `yaml:"ai"`
	HTTP                HTTP          `yaml:"http"`
	Log                 Log           `yaml:"log"`
	Maintenance         Maintenance   `yaml:"maintenance"`
}

// Database selects the storage driver.
type Database struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// Timeouts bounds each pipeline stage.
type Timeouts struct {
	Extract   time.Duration `yaml:"extract" validate:"gt=0"`
	Translate time.Duration `yaml:"translate" validate:"gt=0"`
	Parse     time.Duration `yaml:"parse" validate:"gt=0"`
}

// Backoff shapes the delay between automatic retries.
type Backoff struct {
	Base time.Duration `yaml:"base" validate:"gt=0"`
	Max  time.Duration `yaml:"max" validate:"gtefield=Base"`
}

// Language configures detection and translation.
type Language struct {
	Canonical     string   `yaml:"canonical" validate:"len=2"`
	MinConfidence float64  `yaml:"min_confidence" validate:"gte=0,lte=1"`
	Supported     []string `yaml:"supported" validate:"min=2,dive,len=2"`
	// TranslationAPIKey defaults to OPENAI_API_KEY. Empty disables translation.
	TranslationAPIKey string `yaml:"translation_api_key"`
	TranslationModel  string `yaml:"translation_model"`
}

// Dedupe configures duplicate detection.
type Dedupe struct {
	SimilarityThreshold  float64 `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
	TimeToleranceMinutes int     `yaml:"time_tolerance_minutes" validate:"min=0"`
}

// AI configures the structured extraction provider.
type AI struct {
	Provider          string  `yaml:"provider" validate:"oneof=openai anthropic"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	MaxTokens         int     `yaml:"max_tokens" validate:"min=1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// HTTP configures the management API.
type HTTP struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Log configures the logger built by SetupLogger.
type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// Maintenance schedules background housekeeping.
type Maintenance struct {
	StaleClaimSchedule string        `yaml:"stale_claim_schedule" validate:"required"`
	CleanupSchedule    string        `yaml:"cleanup_schedule" validate:"required"`
	Retention          time.Duration `yaml:"retention" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers:             4,
		StoragePath:         "data/ingestion",
		Database:            Database{Driver: "sqlite", DSN: "data/ingestion.db"},
		MaxRetries:          3,
		ConfidenceThreshold: 0.75,
		PollInterval:        time.Second,
		Timeouts:            Timeouts{Extract: 30 * time.Second, Translate: 30 * time.Second, Parse: 60 * time.Second},
		Backoff:             Backoff{Base: time.Second, Max: time.Minute},
		Language: Language{
			Canonical:     "en",
			MinConfidence: 0.5,
			Supported:     []string{"en", "it", "fr", "es", "de", "pt"},
		},
		Dedupe: Dedupe{SimilarityThreshold: 0.85, TimeToleranceMinutes: 15},
		AI:     AI{Provider: "openai", MaxTokens: 2000, RequestsPerSecond: 2},
		HTTP:   HTTP{Addr: ":8080"},
		Log:    Log{Level: "info"},
		Maintenance: Maintenance{
			StaleClaimSchedule: "@every 1m",
			CleanupSchedule:    "@daily",
			Retention:          30 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration. path may be empty. A .env file in the
// working directory is loaded when present; variables already set win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New()

// Validate checks field ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s fails %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()+paramSuffix(fe.Param())))
		}
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// LogLevel converts Log.Level to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// applyEnv overlays RECIPE_INGEST_* variables and provider API keys.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	integer("WORKERS", &cfg.Workers)
	str("STORAGE_PATH", &cfg.StoragePath)
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_DSN", &cfg.Database.DSN)
	integer("MAX_RETRIES", &cfg.MaxRetries)
	float("CONFIDENCE_THRESHOLD", &cfg.ConfidenceThreshold)
	duration("POLL_INTERVAL", &cfg.PollInterval)
	duration("TIMEOUT_EXTRACT", &cfg.Timeouts.Extract)
	duration("TIMEOUT_TRANSLATE", &cfg.Timeouts.Translate)
	duration("TIMEOUT_PARSE", &cfg.Timeouts.Parse)
	str("AI_PROVIDER", &cfg.AI.Provider)
	str("AI_API_KEY", &cfg.AI.APIKey)
	str("AI_MODEL", &cfg.AI.Model)
	integer("AI_MAX_TOKENS", &cfg.AI.MaxTokens)
	float("AI_REQUESTS_PER_SECOND", &cfg.AI.RequestsPerSecond)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)
	duration("RETENTION", &cfg.Maintenance.Retention)

	if v, ok := lookup(EnvPrefix + "LANGUAGES"); ok && v != "" {
		var langs []string
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				langs = append(langs, code)
			}
		}
		cfg.Language.Supported = langs
	}

	openAIKey, _ := lookup("OPENAI_API_KEY")
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "anthropic":
			cfg.AI.APIKey, _ = lookup("ANTHROPIC_API_KEY")
		default:
			cfg.AI.APIKey = openAIKey
		}
	}
	if cfg.Language.TranslationAPIKey == "" {
		cfg.Language.TranslationAPIKey = openAIKey
	}

	return errors.Join(errs...)
}
