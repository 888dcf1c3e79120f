package email_test

import (
	"context"
	"math/rand/v2"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/shpitdev/conference-outreach-pipeline/internal/email"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
	"github.com/shpitdev/conference-outreach-pipeline/internal/templates"
	"github.com/shpitdev/conference-outreach-pipeline/internal/throttle"
)

var subjects = []string{"Hello {speaker_name}", "News for {company_name}", "A note for the {speaker_title}"}

func newGenerator(t *testing.T) *email.Generator {
	t.Helper()
	store, err := templates.New("Classify {company_name}", map[string]templates.EmailTemplate{
		"Builder": {SubjectTemplates: subjects, BodyTemplate: "Dear {speaker_name} at {company_name}"},
		"Owner":   {SubjectTemplates: []string{"Owner note for {speaker_name}"}, BodyTemplate: "Owner body {speaker_title}"},
	})
	if err != nil {
		t.Fatalf("templates.New: %v", err)
	}
	log, _ := logtest.NewNullLogger()
	return email.New(store, throttle.New(throttle.Options{MaxConcurrent: 2}), email.Options{
		Rand: rand.New(rand.NewPCG(1, 2)),
		Log:  log,
	})
}

var sp = speaker.Speaker{Name: "Ana Lima", Title: "CTO", Company: "Big Build Co"}

func TestGenerate_Eligibility(t *testing.T) {
	t.Parallel()

	g := newGenerator(t)
	for _, c := range speaker.Categories() {
		for _, size := range speaker.CompanySizes() {
			got, err := g.Generate(context.Background(), sp, c, size)
			if err != nil {
				t.Fatalf("%s/%s: unexpected error: %v", c, size, err)
			}
			wantEmail := (c == speaker.CategoryBuilder || c == speaker.CategoryOwner) && size == speaker.CompanySizeLarge
			if wantEmail != !got.Empty() {
				t.Fatalf("%s/%s: email=%#v wantEmail=%v", c, size, got, wantEmail)
			}
			if email.Eligible(c, size) != wantEmail {
				t.Fatalf("Eligible(%s,%s) mismatch", c, size)
			}
		}
	}
}

func TestGenerate_RendersTemplates(t *testing.T) {
	t.Parallel()

	got, err := newGenerator(t).Generate(context.Background(), sp, speaker.CategoryOwner, speaker.CompanySizeLarge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := speaker.EmailContent{Subject: "Owner note for Ana Lima", Body: "Owner body CTO"}
	if got != want {
		t.Fatalf("got=%#v want=%#v", got, want)
	}
}

func TestGenerate_SubjectDrawnFromList(t *testing.T) {
	t.Parallel()

	allowed := map[string]bool{}
	for _, s := range subjects {
		r, err := templates.Render(s, sp)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		allowed[r] = true
	}

	g := newGenerator(t)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got, err := g.Generate(context.Background(), sp, speaker.CategoryBuilder, speaker.CompanySizeLarge)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed[got.Subject] {
			t.Fatalf("subject %q not from template list", got.Subject)
		}
		if got.Body != "Dear Ana Lima at Big Build Co" {
			t.Fatalf("body=%q", got.Body)
		}
		seen[got.Subject] = true
	}
	if len(seen) != len(subjects) {
		t.Fatalf("expected every subject to be drawn eventually, saw %d of %d", len(seen), len(subjects))
	}
}

func TestGenerate_CanceledContext(t *testing.T) {
	t.Parallel()

	g := newGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Ineligible speakers never touch the gate, so cancellation is irrelevant.
	if _, err := g.Generate(ctx, sp, speaker.CategoryPartner, speaker.CompanySizeLarge); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
