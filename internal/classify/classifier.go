// Package classify assigns a Category and CompanySize to a speaker's employer.
//
// Known competitors are matched locally. Everyone else goes to the inference
// service through the shared throttle.Gate and a retry.Policy. Rate-limit
// exhaustion is returned as a core.FatalError; every other failure is either
// degraded to speaker.Degraded (permissive) or returned (strict).
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
	"github.com/shpitdev/conference-outreach-pipeline/internal/inference"
	"github.com/shpitdev/conference-outreach-pipeline/internal/redact"
	"github.com/shpitdev/conference-outreach-pipeline/internal/retry"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
	"github.com/shpitdev/conference-outreach-pipeline/internal/templates"
	"github.com/shpitdev/conference-outreach-pipeline/internal/throttle"
)

const (
	DefaultTemperature    float32 = 0.1
	DefaultRequestTimeout         = 60 * time.Second
)

const unparsedReasoning = speaker.UnparsedReasoning

// DefaultCompetitors are vendors selling reality-capture and site-analytics software.
// Entries are matched as substrings, so names that are also construction words
// carry the corporate suffix ("reconstruct inc" must not match "Reconstruction").
var DefaultCompetitors = []string{
	"openspace",
	"doxel",
	"buildots",
	"reconstruct inc",
	"structionsite",
	"avvir",
	"disperse",
	"cupix",
	"holobuilder",
}

type Config struct {
	// Model is the classification model identifier sent with every request.
	Model string
	// Competitors overrides DefaultCompetitors when non-empty.
	Competitors []string
	// Strict returns per-item failures instead of degrading them.
	Strict bool
	// RequestTimeout bounds each inference attempt. Zero uses DefaultRequestTimeout.
	RequestTimeout time.Duration
	Temperature    float32
}

type Deps struct {
	Templates *templates.Store
	Gate      *throttle.Gate
	Client    inference.Client
	Retry     retry.Policy
	Log       logrus.FieldLogger
}

type Classifier struct {
	cfg         Config
	competitors []string
	templates   *templates.Store
	gate        *throttle.Gate
	client      inference.Client
	retry       retry.Policy
	log         logrus.FieldLogger
}

func New(cfg Config, deps Deps) (*Classifier, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("classify: model is required")
	}
	if deps.Templates == nil {
		return nil, errors.New("classify: templates are required")
	}
	if deps.Gate == nil {
		return nil, errors.New("classify: gate is required")
	}
	if deps.Client == nil {
		return nil, errors.New("classify: inference client is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	list := cfg.Competitors
	if len(list) == 0 {
		list = DefaultCompetitors
	}
	competitors := make([]string, 0, len(list))
	for _, c := range list {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			competitors = append(competitors, c)
		}
	}

	return &Classifier{
		cfg:         cfg,
		competitors: competitors,
		templates:   deps.Templates,
		gate:        deps.Gate,
		client:      deps.Client,
		retry:       deps.Retry,
		log:         log,
	}, nil
}

// IsKnownCompetitor reports whether company contains a competitor name, ignoring case.
func (c *Classifier) IsKnownCompetitor(company string) bool {
	lc := strings.ToLower(company)
	for _, name := range c.competitors {
		if strings.Contains(lc, name) {
			return true
		}
	}
	return false
}

// Classify returns a validated result for sp. A non-nil error is either fatal
// (core.IsFatal), a context error, or, in strict mode, the per-item failure.
func (c *Classifier) Classify(ctx context.Context, sp speaker.Speaker) (speaker.ClassificationResult, error) {
	if c.IsKnownCompetitor(sp.Company) {
		c.log.WithField("company", sp.Company).Debug("known competitor; skipping inference")
		return speaker.KnownCompetitor(), nil
	}

	res, err := c.infer(ctx, sp)
	if err == nil {
		return res, nil
	}
	if core.IsFatal(err) {
		return speaker.ClassificationResult{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return speaker.ClassificationResult{}, ctxErr
	}
	if c.cfg.Strict {
		return speaker.ClassificationResult{}, fmt.Errorf("classify %q: %w", sp.Name, err)
	}
	c.log.WithFields(logrus.Fields{
		"speaker": sp.Name,
		"company": sp.Company,
	}).Warnf("classification failed, using default: %s", redact.Secrets(err.Error()))
	return speaker.Degraded(err), nil
}

func (c *Classifier) infer(ctx context.Context, sp speaker.Speaker) (speaker.ClassificationResult, error) {
	prompt, err := c.templates.RenderPrompt(sp)
	if err != nil {
		return speaker.ClassificationResult{}, fmt.Errorf("render prompt: %w", err)
	}

	policy := c.retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			c.log.WithFields(logrus.Fields{
				"speaker": sp.Name,
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warnf("inference failed, retrying: %s", redact.Secrets(err.Error()))
		}
	}

	var text string
	err = c.gate.Do(ctx, func(ctx context.Context) error {
		return policy.Do(ctx, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
			out, err := c.client.Complete(attemptCtx, inference.Request{
				Model:       c.cfg.Model,
				Prompt:      prompt,
				Temperature: c.cfg.Temperature,
			})
			if err != nil {
				return err
			}
			text = out
			return nil
		})
	})
	if err != nil {
		if inference.IsRateLimited(err) {
			return speaker.ClassificationResult{}, core.Fatal(fmt.Errorf("inference retries exhausted: %w", err))
		}
		return speaker.ClassificationResult{}, err
	}

	parsed := ParseResponse(text)
	res, err := speaker.NewClassificationResult(parsed.Category, parsed.CompanySize, parsed.Reasoning)
	if err != nil {
		return speaker.ClassificationResult{}, fmt.Errorf("invalid model response: %w", err)
	}
	return res, nil
}
