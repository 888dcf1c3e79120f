package classify

import "strings"

const (
	prefixCategory    = "Category:"
	prefixCompanySize = "Company Size:"
	prefixReasoning   = "Reasoning:"
)

// Response is the raw triple extracted from model text, before validation.
type Response struct {
	Category    string
	CompanySize string
	Reasoning   string
}

// ParseResponse reads "Category:", "Company Size:" and "Reasoning:" lines.
// Unknown lines are ignored; later lines win. Missing fields fall back to
// Other, Unknown and speaker.UnparsedReasoning.
func ParseResponse(text string) Response {
	out := Response{
		Category:    "Other",
		CompanySize: "Unknown",
		Reasoning:   unparsedReasoning,
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, prefixCategory):
			out.Category = labelValue(strings.TrimPrefix(line, prefixCategory))
		case strings.HasPrefix(line, prefixCompanySize):
			out.CompanySize = labelValue(strings.TrimPrefix(line, prefixCompanySize))
		case strings.HasPrefix(line, prefixReasoning):
			out.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, prefixReasoning))
		}
	}
	return out
}

// labelValue unwraps "[A|B]" to "A".
func labelValue(v string) string {
	v = strings.TrimSpace(v)
	open := strings.IndexByte(v, '[')
	if open < 0 {
		return v
	}
	end := strings.IndexByte(v[open+1:], ']')
	if end < 0 {
		return v
	}
	inner := v[open+1 : open+1+end]
	first, _, _ := strings.Cut(inner, "|")
	return strings.TrimSpace(first)
}
