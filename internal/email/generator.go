// Package email renders outreach emails for speakers worth contacting.
package email

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shpitdev/conference-outreach-pipeline/internal/redact"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
	"github.com/shpitdev/conference-outreach-pipeline/internal/templates"
	"github.com/shpitdev/conference-outreach-pipeline/internal/throttle"
)

type Options struct {
	// Rand picks subject templates. Nil uses the global source.
	Rand *rand.Rand
	Log  logrus.FieldLogger
}

type Generator struct {
	store *templates.Store
	gate  *throttle.Gate
	log   logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

func New(store *templates.Store, gate *throttle.Gate, opts Options) *Generator {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{store: store, gate: gate, log: log, rng: opts.Rand}
}

// Eligible reports whether a speaker with this classification gets an email.
func Eligible(c speaker.Category, size speaker.CompanySize) bool {
	switch c {
	case speaker.CategoryBuilder, speaker.CategoryOwner:
	case speaker.CategoryPartner, speaker.CategoryCompetitor, speaker.CategoryOther:
		return false
	default:
		return false
	}
	switch size {
	case speaker.CompanySizeLarge:
		return true
	case speaker.CompanySizeSmall, speaker.CompanySizeUnknown:
		return false
	default:
		return false
	}
}

// Generate returns the email for sp, or empty content when sp is not eligible
// or the templates fail to render. The only error is cancellation of ctx.
func (g *Generator) Generate(ctx context.Context, sp speaker.Speaker, c speaker.Category, size speaker.CompanySize) (speaker.EmailContent, error) {
	if !Eligible(c, size) {
		return speaker.EmailContent{}, nil
	}

	var out speaker.EmailContent
	err := g.gate.Do(ctx, func(context.Context) error {
		content, err := g.render(sp, c)
		if err != nil {
			g.log.WithFields(logrus.Fields{
				"speaker":  sp.Name,
				"category": c.String(),
			}).Warnf("email generation failed: %s", redact.Secrets(err.Error()))
			return nil
		}
		out = content
		return nil
	})
	if err != nil {
		return speaker.EmailContent{}, err
	}
	return out, nil
}

func (g *Generator) render(sp speaker.Speaker, c speaker.Category) (speaker.EmailContent, error) {
	tmpl, ok := g.store.Email(c)
	if !ok {
		return speaker.EmailContent{}, fmt.Errorf("no email template for category %s", c)
	}
	if len(tmpl.SubjectTemplates) == 0 {
		return speaker.EmailContent{}, fmt.Errorf("no subject templates for category %s", c)
	}
	subject, err := templates.Render(tmpl.SubjectTemplates[g.pick(len(tmpl.SubjectTemplates))], sp)
	if err != nil {
		return speaker.EmailContent{}, fmt.Errorf("render subject: %w", err)
	}
	body, err := templates.Render(tmpl.BodyTemplate, sp)
	if err != nil {
		return speaker.EmailContent{}, fmt.Errorf("render body: %w", err)
	}
	return speaker.EmailContent{Subject: subject, Body: body}, nil
}

func (g *Generator) pick(n int) int {
	if g.rng == nil {
		return rand.IntN(n)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}
