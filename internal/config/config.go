// Package config builds the immutable per-run configuration from CLI
// flags, environment variables and an optional .env file, in that
// precedence order.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/patient-data-generator/internal/domain"
)

const envPrefix = "PATIENTGEN"

// Config is the process-wide generation configuration. It is
// constructed once at startup and passed read-only to every component.
type Config struct {
	QuestionnairePath string
	LabTestPath       string
	NumPatients       int
	NumProfiles       int
	APIKey            string
	Model             string
	BaseURL           string
	OutputDir         string
	Seed              int64
	RequestTimeout    time.Duration
	RateLimit         int
	CacheSize         int
	LogLevel          string
	LogFormat         string
}

// HasCredential reports whether a model credential was resolved from
// any source. Without one the run operates in fallback-only mode.
func (c *Config) HasCredential() bool {
	return c.APIKey != ""
}

// Load resolves the configuration. Flags may be nil for tests; the
// precedence for every value is flag > environment > .env > default.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// Prime the process environment from .env. godotenv never
	// overrides variables that are already set, which keeps real
	// environment values ahead of the file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	// The credential env var is OPENAI_API_KEY, not a prefixed name.
	if err := v.BindEnv("api_key", "OPENAI_API_KEY"); err != nil {
		return nil, domain.NewConfigError("", "cannot bind credential environment variable", err)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, domain.NewConfigError("", "cannot bind command-line flags", err)
		}
	}

	cfg := &Config{
		QuestionnairePath: v.GetString("questionnaire_path"),
		LabTestPath:       v.GetString("lab_test_path"),
		NumPatients:       v.GetInt("num_patients"),
		NumProfiles:       v.GetInt("num_profiles"),
		APIKey:            v.GetString("api_key"),
		Model:             v.GetString("model"),
		BaseURL:           v.GetString("base_url"),
		OutputDir:         v.GetString("output_dir"),
		Seed:              v.GetInt64("seed"),
		RequestTimeout:    v.GetDuration("timeout"),
		RateLimit:         v.GetInt("rate_limit"),
		CacheSize:         v.GetInt("cache_size"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric knobs. Path existence is checked by the
// glossary loader so the error can name the offending file.
func (c *Config) Validate() error {
	if c.NumPatients < 1 {
		return domain.NewConfigError("", "num_patients must be at least 1", nil)
	}
	if c.RequestTimeout <= 0 {
		return domain.NewConfigError("", "timeout must be positive", nil)
	}
	if c.RateLimit < 1 {
		return domain.NewConfigError("", "rate_limit must be at least 1", nil)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("questionnaire_path", "json/combined_questionnaires_glossary.json")
	v.SetDefault("lab_test_path", "json/combined_lab_tests_glossary.json")
	v.SetDefault("num_patients", 5)
	v.SetDefault("num_profiles", 1)
	v.SetDefault("api_key", "")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("base_url", "https://api.openai.com/v1")
	v.SetDefault("output_dir", "output")
	v.SetDefault("seed", int64(0))
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("rate_limit", 3)
	v.SetDefault("cache_size", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}
