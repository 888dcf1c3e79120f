package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shpitdev/conference-outreach-pipeline/internal/app"
	"github.com/shpitdev/conference-outreach-pipeline/internal/logger"
	"github.com/shpitdev/conference-outreach-pipeline/internal/redact"
	"github.com/shpitdev/conference-outreach-pipeline/internal/throttle"
	"github.com/shpitdev/conference-outreach-pipeline/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version", "--version":
		_, _ = fmt.Fprintln(os.Stdout, version.Current)
		return
	case "run":
		os.Exit(run(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string) int {
	// A missing .env is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "config error: .env: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	cfg, err := loadConfigFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var requestDelay float64
	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Read speakers from a .json, .csv or .xlsx file instead of scraping (env: SPEAKERS_FILE)")
	fs.StringVar(&cfg.SpeakersURL, "url", cfg.SpeakersURL, "Speaker page to scrape (env: SPEAKERS_URL)")
	fs.StringVar(&cfg.OutputDir, "out-dir", cfg.OutputDir, "Directory for raw_speakers.json and email_list.csv (env: OUTPUT_DIR)")
	fs.StringVar(&cfg.PromptTemplatePath, "prompt-template", cfg.PromptTemplatePath, "Classification prompt template (env: PROMPT_TEMPLATE_PATH)")
	fs.StringVar(&cfg.EmailTemplatesPath, "email-templates", cfg.EmailTemplatesPath, "Email template table, JSON or YAML (env: EMAIL_TEMPLATES_PATH)")
	fs.IntVar(&cfg.MaxConcurrent, "max-concurrent", cfg.MaxConcurrent, "Max in-flight inference calls (env: MAX_CONCURRENT_REQUESTS)")
	fs.Float64Var(&requestDelay, "request-delay", cfg.RequestDelay.Seconds(), "Seconds to wait after acquiring a slot (env: REQUEST_DELAY_SECONDS)")
	fs.Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "Global request rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Per-attempt inference timeout (env: REQUEST_TIMEOUT)")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Abort on the first classification failure (env: STRICT_MODE or DEBUG)")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Inference provider: gemini, openai or stub (env: INFERENCE_PROVIDER)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.RequestDelay = time.Duration(requestDelay * float64(time.Second))

	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	log := logger.New(logger.ConfigFromEnv()).WithRun("")
	if cfg.Strict {
		log.SetDebug()
	}
	log.WithFields(map[string]any{
		"version":          version.Current,
		"provider":         cfg.Provider,
		"classification":   cfg.ClassificationModel,
		"email_generation": cfg.EmailGenerationModel,
		"max_concurrent":   cfg.MaxConcurrent,
		"request_delay":    cfg.RequestDelay.String(),
		"rate_limit_rps":   cfg.RateLimitRPS,
		"strict":           cfg.Strict,
	}).Info("run start")

	client, err := app.NewClient(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "inference config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	proc, err := app.NewProcessor(cfg, client, log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "template error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	if err := app.Run(ctx, app.NewSource(cfg, log), proc, app.Options{OutputDir: cfg.OutputDir, Log: log}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "run failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `outreach: classify conference speakers and draft outreach emails

Usage:
  outreach <command> [flags]

Commands:
  run      Discover speakers, classify them and write out/email_list.csv
  version  Print the version
  help     Show this help

Examples:
  outreach run
  outreach run --input speakers.xlsx --provider openai --strict

Environment (required):
  CLASSIFICATION_MODEL     Model used to classify companies
  EMAIL_GENERATION_MODEL   Model id recorded for email generation

Environment (optional):
  MAX_CONCURRENT_REQUESTS  In-flight inference calls (default 5)
  REQUEST_DELAY_SECONDS    Delay after acquiring a slot (default 0.5)
  RATE_LIMIT_RPS           Global request rate limit, 0 disables (default 0)
  REQUEST_TIMEOUT          Per-attempt inference timeout (default 60s)
  STRICT_MODE, DEBUG       Abort on the first classification failure
  INFERENCE_PROVIDER       gemini (default), openai or stub
  GEMINI_API_KEY           Gemini API key (provider gemini)
  GEMINI_BASE_URL          Optional base URL override (proxies/testing)
  OPENAI_API_KEY           API key (provider openai)
  OPENAI_BASE_URL          OpenAI-compatible base URL (default %s)
  PROMPT_TEMPLATE_PATH     Prompt template (default in/prompt_template.txt)
  EMAIL_TEMPLATES_PATH     Email templates (default in/email_templates.json)
  COMPETITORS              Comma-separated competitor names, replaces the built-in list
  SPEAKERS_URL             Speaker page to scrape
  SPEAKERS_FILE            Speaker file to read instead of scraping
  OUTPUT_DIR               Output directory (default out)
  LOG_LEVEL, ENVIRONMENT   Logging level and format

`, "https://api.openai.com/v1")
}

func loadConfigFromEnv() (app.Config, error) {
	maxConcurrent, err := envInt("MAX_CONCURRENT_REQUESTS", throttle.DefaultMaxConcurrent)
	if err != nil {
		return app.Config{}, err
	}
	delaySeconds, err := envFloat("REQUEST_DELAY_SECONDS", throttle.DefaultDelay.Seconds())
	if err != nil {
		return app.Config{}, err
	}
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0)
	if err != nil {
		return app.Config{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return app.Config{}, err
	}
	strict, err := envBool("STRICT_MODE")
	if err != nil {
		return app.Config{}, err
	}
	debug, err := envBool("DEBUG")
	if err != nil {
		return app.Config{}, err
	}

	return app.Config{
		ClassificationModel:  envString("CLASSIFICATION_MODEL", ""),
		EmailGenerationModel: envString("EMAIL_GENERATION_MODEL", ""),
		MaxConcurrent:        maxConcurrent,
		RequestDelay:         time.Duration(delaySeconds * float64(time.Second)),
		RateLimitRPS:         rateLimitRPS,
		RequestTimeout:       requestTimeout,
		Strict:               strict || debug,
		Provider:             strings.ToLower(envString("INFERENCE_PROVIDER", app.ProviderGemini)),
		GeminiAPIKey:         envString("GEMINI_API_KEY", ""),
		GeminiBaseURL:        envString("GEMINI_BASE_URL", ""),
		OpenAIAPIKey:         envString("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        envString("OPENAI_BASE_URL", ""),
		PromptTemplatePath:   envString("PROMPT_TEMPLATE_PATH", "in/prompt_template.txt"),
		EmailTemplatesPath:   envString("EMAIL_TEMPLATES_PATH", "in/email_templates.json"),
		Competitors:          envList("COMPETITORS"),
		InputPath:            envString("SPEAKERS_FILE", ""),
		SpeakersURL:          envString("SPEAKERS_URL", ""),
		OutputDir:            envString("OUTPUT_DIR", "out"),
	}, nil
}

func envString(varName, fallback string) string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	return v
}

func envList(varName string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(varName), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return false, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
