package templates

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

// Placeholder names accepted in every template.
const (
	FieldCompanyName  = "company_name"
	FieldSpeakerName  = "speaker_name"
	FieldSpeakerTitle = "speaker_title"
)

var (
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrMalformedTemplate  = errors.New("malformed template")
)

// EmailTemplate is one category's entry in the email template table.
type EmailTemplate struct {
	SubjectTemplates []string `yaml:"subject_templates" json:"subject_templates"`
	BodyTemplate     string   `yaml:"body_template" json:"body_template"`
}

// Store holds the prompt template and the category-keyed email templates.
//
// A Store is immutable after construction and safe for concurrent use.
type Store struct {
	prompt string
	emails map[speaker.Category]EmailTemplate
}

// Load reads the prompt template (plain text) and the email table (JSON or YAML).
func Load(promptPath, emailPath string) (*Store, error) {
	promptBytes, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	emailBytes, err := os.ReadFile(emailPath)
	if err != nil {
		return nil, fmt.Errorf("read email templates: %w", err)
	}

	// yaml.v3 accepts JSON documents as well.
	var raw map[string]EmailTemplate
	if err := yaml.Unmarshal(emailBytes, &raw); err != nil {
		return nil, fmt.Errorf("parse email templates %s: %w", emailPath, err)
	}

	s, err := New(string(promptBytes), raw)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	return s, nil
}

// New validates the templates and builds a Store. Tests use it to inject fixtures.
func New(prompt string, emails map[string]EmailTemplate) (*Store, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt template is empty", ErrMalformedTemplate)
	}
	if err := check(prompt); err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}

	s := &Store{
		prompt: prompt,
		emails: make(map[speaker.Category]EmailTemplate, len(emails)),
	}
	keys := make([]string, 0, len(emails))
	for k := range emails {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		tmpl := emails[key]
		cat, err := speaker.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("email templates: %w", err)
		}
		if len(tmpl.SubjectTemplates) == 0 {
			return nil, fmt.Errorf("%w: %s has no subject_templates", ErrMalformedTemplate, cat)
		}
		for i, subj := range tmpl.SubjectTemplates {
			if strings.TrimSpace(subj) == "" {
				return nil, fmt.Errorf("%w: %s subject_templates[%d] is empty", ErrMalformedTemplate, cat, i)
			}
			if err := check(subj); err != nil {
				return nil, fmt.Errorf("%s subject_templates[%d]: %w", cat, i, err)
			}
		}
		if strings.TrimSpace(tmpl.BodyTemplate) == "" {
			return nil, fmt.Errorf("%w: %s has no body_template", ErrMalformedTemplate, cat)
		}
		if err := check(tmpl.BodyTemplate); err != nil {
			return nil, fmt.Errorf("%s body_template: %w", cat, err)
		}
		s.emails[cat] = EmailTemplate{
			SubjectTemplates: append([]string(nil), tmpl.SubjectTemplates...),
			BodyTemplate:     tmpl.BodyTemplate,
		}
	}
	for _, required := range []speaker.Category{speaker.CategoryBuilder, speaker.CategoryOwner} {
		if _, ok := s.emails[required]; !ok {
			return nil, fmt.Errorf("%w: email templates missing category %s", ErrMalformedTemplate, required)
		}
	}
	return s, nil
}

// RenderPrompt fills the classification prompt for sp.
func (s *Store) RenderPrompt(sp speaker.Speaker) (string, error) {
	return Render(s.prompt, sp)
}

// Email returns the template entry for a category. The returned subject slice
// must not be modified.
func (s *Store) Email(c speaker.Category) (EmailTemplate, bool) {
	t, ok := s.emails[c]
	return t, ok
}

// Render substitutes {company_name}, {speaker_name} and {speaker_title}.
// Doubled braces ({{ and }}) produce literal braces.
func Render(tmpl string, sp speaker.Speaker) (string, error) {
	return render(tmpl, map[string]string{
		FieldCompanyName:  sp.Company,
		FieldSpeakerName:  sp.Name,
		FieldSpeakerTitle: sp.Title,
	})
}

func check(tmpl string) error {
	_, err := Render(tmpl, speaker.Speaker{})
	return err
}

func render(tmpl string, vals map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); i++ {
		ch := tmpl[i]
		switch ch {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrMalformedTemplate, i)
			}
			name := tmpl[i+1 : i+1+end]
			v, ok := vals[strings.TrimSpace(name)]
			if !ok {
				return "", fmt.Errorf("%w: {%s}", ErrUnknownPlaceholder, name)
			}
			b.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrMalformedTemplate, i)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}
