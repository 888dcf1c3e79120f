package speaker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shpitdev/conference-outreach-pipeline/internal/redact"
)

// MinReasoningLen is the minimum trimmed length of a classification reasoning.
const MinReasoningLen = 10

// UnparsedReasoning is what the response parser reports when the model output had
// no Reasoning line. It never passes validation.
const UnparsedReasoning = "Unable to parse response"

var (
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidCompanySize = errors.New("invalid company size")
	ErrReasoningTooShort  = fmt.Errorf("reasoning must be at least %d characters", MinReasoningLen)
	ErrReasoningMissing   = errors.New("reasoning missing from response")
)

// Speaker is one conference speaker as produced by discovery.
type Speaker struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

// Category is the business-relevance bucket of a speaker's employer.
type Category string

const (
	CategoryBuilder    Category = "Builder"
	CategoryOwner      Category = "Owner"
	CategoryPartner    Category = "Partner"
	CategoryCompetitor Category = "Competitor"
	CategoryOther      Category = "Other"
)

// Categories returns every Category in declaration order.
func Categories() []Category {
	return []Category{CategoryBuilder, CategoryOwner, CategoryPartner, CategoryCompetitor, CategoryOther}
}

func (c Category) String() string { return string(c) }

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryBuilder, CategoryOwner, CategoryPartner, CategoryCompetitor, CategoryOther:
		return true
	default:
		return false
	}
}

// ParseCategory matches a label case-insensitively after trimming.
func ParseCategory(raw string) (Category, error) {
	s := strings.TrimSpace(raw)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}

// CompanySize is a coarse size bucket used as an outreach gate.
type CompanySize string

const (
	CompanySizeSmall   CompanySize = "Small"
	CompanySizeLarge   CompanySize = "Large"
	CompanySizeUnknown CompanySize = "Unknown"
)

// CompanySizes returns every CompanySize in declaration order.
func CompanySizes() []CompanySize {
	return []CompanySize{CompanySizeSmall, CompanySizeLarge, CompanySizeUnknown}
}

func (s CompanySize) String() string { return string(s) }

// Valid reports whether s is a member of the enumeration.
func (s CompanySize) Valid() bool {
	switch s {
	case CompanySizeSmall, CompanySizeLarge, CompanySizeUnknown:
		return true
	default:
		return false
	}
}

// ParseCompanySize matches a label case-insensitively after trimming.
func ParseCompanySize(raw string) (CompanySize, error) {
	s := strings.TrimSpace(raw)
	for _, size := range CompanySizes() {
		if strings.EqualFold(s, string(size)) {
			return size, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCompanySize, raw)
}

// ClassificationResult is a validated judgment about a speaker's employer.
//
// Build it with NewClassificationResult; the zero value is not valid.
type ClassificationResult struct {
	Category    Category
	CompanySize CompanySize
	Reasoning   string
}

// NewClassificationResult parses the labels and validates the reasoning.
func NewClassificationResult(category, companySize, reasoning string) (ClassificationResult, error) {
	cat, err := ParseCategory(category)
	if err != nil {
		return ClassificationResult{}, err
	}
	size, err := ParseCompanySize(companySize)
	if err != nil {
		return ClassificationResult{}, err
	}
	res := ClassificationResult{
		Category:    cat,
		CompanySize: size,
		Reasoning:   strings.TrimSpace(reasoning),
	}
	if err := res.Validate(); err != nil {
		return ClassificationResult{}, err
	}
	return res, nil
}

// Validate checks the enumerations and the reasoning length.
func (r ClassificationResult) Validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, string(r.Category))
	}
	if !r.CompanySize.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCompanySize, string(r.CompanySize))
	}
	reasoning := strings.TrimSpace(r.Reasoning)
	if reasoning == UnparsedReasoning {
		return ErrReasoningMissing
	}
	if len([]rune(reasoning)) < MinReasoningLen {
		return fmt.Errorf("%w (got %d)", ErrReasoningTooShort, len([]rune(reasoning)))
	}
	return nil
}

// Degraded is the sentinel substituted when classification fails for one speaker.
func Degraded(cause error) ClassificationResult {
	msg := "unknown error"
	if cause != nil {
		msg = redact.Secrets(cause.Error())
	}
	return ClassificationResult{
		Category:    CategoryOther,
		CompanySize: CompanySizeUnknown,
		Reasoning:   "Classification failed: " + msg,
	}
}

// KnownCompetitor is returned by the competitor pre-filter without any inference call.
func KnownCompetitor() ClassificationResult {
	return ClassificationResult{
		Category:    CategoryCompetitor,
		CompanySize: CompanySizeUnknown,
		Reasoning:   "Known competitor in the same product space",
	}
}

// EmailContent is a rendered outreach email. Both fields empty means not applicable.
type EmailContent struct {
	Subject string
	Body    string
}

func (e EmailContent) Empty() bool {
	return e.Subject == "" && e.Body == ""
}

// ProcessedSpeaker is the final record handed to export.
type ProcessedSpeaker struct {
	Speaker
	Category     Category
	CompanySize  CompanySize
	Reasoning    string
	EmailSubject string
	EmailBody    string
}

func NewProcessedSpeaker(sp Speaker, res ClassificationResult, email EmailContent) ProcessedSpeaker {
	return ProcessedSpeaker{
		Speaker:      sp,
		Category:     res.Category,
		CompanySize:  res.CompanySize,
		Reasoning:    res.Reasoning,
		EmailSubject: email.Subject,
		EmailBody:    email.Body,
	}
}

// HasEmail reports whether an outreach email was generated.
func (p ProcessedSpeaker) HasEmail() bool {
	return p.EmailSubject != ""
}

// Tally counts records per category. Every category is present, possibly with zero.
func Tally(records []ProcessedSpeaker) map[Category]int {
	out := make(map[Category]int, len(Categories()))
	for _, c := range Categories() {
		out[c] = 0
	}
	for _, r := range records {
		out[r.Category]++
	}
	return out
}

func EmailsGenerated(records []ProcessedSpeaker) int {
	n := 0
	for _, r := range records {
		if r.HasEmail() {
			n++
		}
	}
	return n
}
