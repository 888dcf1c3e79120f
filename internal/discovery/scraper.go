// Package discovery produces the speaker list that feeds the pipeline, either by
// scraping a conference speaker page or by reading a local JSON, CSV or XLSX file.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

const (
	DefaultSpeakersURL = "https://www.digitalconstructionweek.com/all-speakers/"
	DefaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	speakerClass = "speaker-grid-details"
	jobClass     = "speaker-job"
)

var _ core.InputAdapter[speaker.Speaker] = (*Scraper)(nil)

// Scraper reads speakers from a conference "all speakers" page.
//
// Load is best effort: an unreachable page or a non-200 reply yields an empty
// list and a warning, never an error.
type Scraper struct {
	URL        string
	UserAgent  string
	HTTPClient *http.Client
	Log        logrus.FieldLogger
}

func (s *Scraper) Load(ctx context.Context) ([]speaker.Speaker, error) {
	url := s.URL
	if strings.TrimSpace(url) == "" {
		url = DefaultSpeakersURL
	}
	ua := s.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build speakers request: %w", err)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Warn("speaker page unreachable")
		return []speaker.Speaker{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("speaker page returned non-200")
		return []speaker.Speaker{}, nil
	}

	speakers, err := ParseSpeakers(resp.Body)
	if err != nil {
		log.WithError(err).Warn("speaker page could not be parsed")
		return []speaker.Speaker{}, nil
	}
	log.WithField("speakers", len(speakers)).Info("scraped speaker page")
	return speakers, nil
}

// ParseSpeakers extracts one Speaker per element with class speaker-grid-details.
// The name comes from its first h3 and the job line from its first .speaker-job.
// Entries without a name are skipped.
func ParseSpeakers(r io.Reader) ([]speaker.Speaker, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	out := []speaker.Speaker{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, speakerClass) {
			name := textOf(find(n, func(c *html.Node) bool { return c.Type == html.ElementNode && c.Data == "h3" }))
			job := textOf(find(n, func(c *html.Node) bool { return c.Type == html.ElementNode && hasClass(c, jobClass) }))
			if name != "" {
				title, company := ParseJobText(job)
				out = append(out, speaker.Speaker{Name: name, Title: title, Company: company})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// ParseJobText splits "Title at Company", "Title - Company" or "Title, Company".
// Text with none of those separators is all title.
func ParseJobText(s string) (title, company string) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{" at ", " - ", ", "} {
		if before, after, ok := strings.Cut(s, sep); ok {
			return strings.TrimSpace(before), strings.TrimSpace(after)
		}
	}
	return s, ""
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// find returns the first descendant of n (depth first, document order) matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			return c
		}
		if m := find(c, pred); m != nil {
			return m
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
