package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shpitdev/conference-outreach-pipeline/internal/classify"
	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
	"github.com/shpitdev/conference-outreach-pipeline/internal/discovery"
	"github.com/shpitdev/conference-outreach-pipeline/internal/email"
	"github.com/shpitdev/conference-outreach-pipeline/internal/inference"
	"github.com/shpitdev/conference-outreach-pipeline/internal/pipeline"
	"github.com/shpitdev/conference-outreach-pipeline/internal/retry"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
	"github.com/shpitdev/conference-outreach-pipeline/internal/templates"
	"github.com/shpitdev/conference-outreach-pipeline/internal/throttle"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

// Config is everything a run needs. cmd/outreach fills it from env and flags.
type Config struct {
	ClassificationModel  string
	EmailGenerationModel string

	MaxConcurrent  int
	RequestDelay   time.Duration
	RateLimitRPS   float64
	RequestTimeout time.Duration
	Strict         bool

	Provider      string
	GeminiAPIKey  string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	PromptTemplatePath string
	EmailTemplatesPath string
	Competitors        []string

	// InputPath, when set, is read instead of scraping SpeakersURL.
	InputPath   string
	SpeakersURL string
	OutputDir   string
}

// Validate reports the first missing or out-of-range setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClassificationModel) == "" {
		return errors.New("CLASSIFICATION_MODEL is required")
	}
	if strings.TrimSpace(c.EmailGenerationModel) == "" {
		return errors.New("EMAIL_GENERATION_MODEL is required")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be positive, got %d", c.MaxConcurrent)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY_SECONDS must not be negative, got %s", c.RequestDelay)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %g", c.RateLimitRPS)
	}
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderStub:
	default:
		return fmt.Errorf("unknown INFERENCE_PROVIDER %q (want gemini, openai or stub)", c.Provider)
	}
	if strings.TrimSpace(c.PromptTemplatePath) == "" || strings.TrimSpace(c.EmailTemplatesPath) == "" {
		return errors.New("prompt and email template paths are required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output directory is required")
	}
	return nil
}

// NewClient builds the inference client for cfg.Provider.
func NewClient(ctx context.Context, cfg Config) (inference.Client, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return inference.NewGemini(ctx, inference.GeminiConfig{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL})
	case ProviderOpenAI:
		return inference.NewOpenAI(inference.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL})
	case ProviderStub:
		return &inference.Stub{}, nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

// NewProcessor loads templates and wires the classifier and generator around one
// shared gate.
func NewProcessor(cfg Config, client inference.Client, log logrus.FieldLogger) (*pipeline.Processor, error) {
	store, err := templates.Load(cfg.PromptTemplatePath, cfg.EmailTemplatesPath)
	if err != nil {
		return nil, err
	}
	gate := throttle.New(throttle.Options{
		MaxConcurrent: cfg.MaxConcurrent,
		Delay:         cfg.RequestDelay,
		RateLimitRPS:  cfg.RateLimitRPS,
	})
	classifier, err := classify.New(classify.Config{
		Model:          cfg.ClassificationModel,
		Competitors:    cfg.Competitors,
		Strict:         cfg.Strict,
		RequestTimeout: cfg.RequestTimeout,
	}, classify.Deps{
		Templates: store,
		Gate:      gate,
		Client:    client,
		Retry:     retry.Default(),
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	generator := email.New(store, gate, email.Options{Log: log})
	return pipeline.NewProcessor(classifier, generator, pipeline.Options{
		Workers: gate.MaxConcurrent(),
		Strict:  cfg.Strict,
	}, log), nil
}

// NewSource picks the input file when one is configured, else the scraper.
func NewSource(cfg Config, log logrus.FieldLogger) core.InputAdapter[speaker.Speaker] {
	if strings.TrimSpace(cfg.InputPath) != "" {
		return discovery.FileSource{Path: cfg.InputPath}
	}
	return &discovery.Scraper{URL: cfg.SpeakersURL, Log: log}
}
