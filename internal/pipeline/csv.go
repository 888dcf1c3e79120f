package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

// Header returns the stable CSV header for exported records.
func Header() []string {
	return []string{
		"Speaker Name",
		"Speaker Title",
		"Speaker Company",
		"Company Category",
		"Email Subject",
		"Email Body",
		"Company Size",
		"Reasoning",
	}
}

// WriteCSV writes records as a CSV with the stable Header() ordering.
func WriteCSV(w io.Writer, records []speaker.ProcessedSpeaker) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.Name,
			r.Title,
			r.Company,
			r.Category.String(),
			r.EmailSubject,
			r.EmailBody,
			r.CompanySize.String(),
			r.Reasoning,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads records written by WriteCSV.
//
// Extra columns are ignored. Required columns from Header() must exist.
func ReadCSV(r io.Reader) ([]speaker.ProcessedSpeaker, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range Header() {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var records []speaker.ProcessedSpeaker
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		get := func(col string) string {
			i := index[col]
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		cat, err := speaker.ParseCategory(get("Company Category"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		size, err := speaker.ParseCompanySize(get("Company Size"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, speaker.ProcessedSpeaker{
			Speaker: speaker.Speaker{
				Name:    get("Speaker Name"),
				Title:   get("Speaker Title"),
				Company: get("Speaker Company"),
			},
			Category:     cat,
			CompanySize:  size,
			Reasoning:    get("Reasoning"),
			EmailSubject: get("Email Subject"),
			EmailBody:    get("Email Body"),
		})
	}
}
