// Command patientgen fabricates synthetic health data: questionnaire
// answers via an OpenAI model (with a guaranteed rule-based fallback)
// and lab test values placed relative to documented reference ranges.
//
// Usage:
//
//	patientgen [flags]            generate patient records
//	patientgen profiles [flags]   generate narrative profile documents
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/patient-data-generator/internal/config"
	"github.com/patient-data-generator/internal/domain"
	"github.com/patient-data-generator/internal/service"
	"github.com/patient-data-generator/pkg/external"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	profilesMode := len(args) > 0 && args[0] == "profiles"
	if profilesMode {
		args = args[1:]
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := config.NewLogger(cfg)

	var model domain.ModelClient
	if cfg.HasCredential() {
		client := external.NewOpenAIClient(external.OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Timeout:   cfg.RequestTimeout,
			RateLimit: cfg.RateLimit,
		}, logger)
		model = external.NewResilientModelClient(client, cfg.CacheSize, logger)
		logger.WithField("model", cfg.Model).Info("Model client initialized")
	} else {
		logger.Warn("No API key configured; using rule-based generation only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if profilesMode {
		err = service.NewProfileService(cfg, model, logger).Run(ctx)
	} else {
		err = service.NewRunner(cfg, model, logger).Run(ctx)
	}
	if err != nil {
		logger.WithError(err).Error("Run failed")
		return 1
	}
	return 0
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("patientgen", pflag.ContinueOnError)
	flags.String("questionnaire_path", "json/combined_questionnaires_glossary.json", "Path to questionnaire glossary JSON")
	flags.String("lab_test_path", "json/combined_lab_tests_glossary.json", "Path to lab test glossary JSON")
	flags.Int("num_patients", 5, "Number of patients to generate data for")
	flags.Int("num_profiles", 1, "Number of narrative profiles to generate (profiles mode)")
	flags.String("api_key", "", "OpenAI API key (or set OPENAI_API_KEY)")
	flags.String("model", "gpt-4o-mini", "OpenAI model to use")
	flags.String("base_url", "https://api.openai.com/v1", "OpenAI API base URL")
	flags.String("output_dir", "output", "Output directory for generated data")
	flags.Int64("seed", 0, "Random seed (0 derives one from the clock)")
	flags.Duration("timeout", 30*time.Second, "Per-request model timeout")
	flags.Int("rate_limit", 3, "Model requests per second")
	flags.Int("cache_size", 256, "Completion cache size")
	flags.String("log_level", "info", "Log level: debug, info, warn, error")
	flags.String("log_format", "text", "Log format: text, json")
	return flags
}
