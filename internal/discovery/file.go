package discovery

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

var _ core.InputAdapter[speaker.Speaker] = FileSource{}

// FileSource reads speakers from a local file chosen by extension:
// .json (array of {name,title,company}), .csv or .xlsx (header row with
// name/title/company columns, first sheet for xlsx).
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) ([]speaker.Speaker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(f.Path)); ext {
	case ".json":
		return readJSON(f.Path)
	case ".csv":
		return readCSV(f.Path)
	case ".xlsx":
		return readXLSX(f.Path)
	default:
		return nil, fmt.Errorf("unsupported speaker file extension %q (want .json, .csv or .xlsx)", ext)
	}
}

func readJSON(path string) ([]speaker.Speaker, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read speakers: %w", err)
	}
	var out []speaker.Speaker
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse speakers %s: %w", path, err)
	}
	return clean(out), nil
}

func readCSV(path string) ([]speaker.Speaker, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open speakers: %w", err)
	}
	defer fh.Close()

	cr := csv.NewReader(fh)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read speakers csv: %w", err)
	}
	return fromTable(rows)
}

func readXLSX(path string) ([]speaker.Speaker, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return fromTable(rows)
}

// fromTable maps a header row to name/title/company columns. Header matching is
// case-insensitive and accepts "Speaker Name" style prefixes.
func fromTable(rows [][]string) ([]speaker.Speaker, error) {
	if len(rows) == 0 {
		return []speaker.Speaker{}, nil
	}
	nameIdx, titleIdx, companyIdx := -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		l = strings.TrimPrefix(l, "speaker ")
		switch l {
		case "name":
			nameIdx = i
		case "title", "job title", "role":
			titleIdx = i
		case "company", "organisation", "organization", "employer":
			companyIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("missing name column in header %v", rows[0])
	}

	get := func(r []string, i int) string {
		if i < 0 || i >= len(r) {
			return ""
		}
		return r[i]
	}
	out := make([]speaker.Speaker, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, speaker.Speaker{
			Name:    get(r, nameIdx),
			Title:   get(r, titleIdx),
			Company: get(r, companyIdx),
		})
	}
	return clean(out), nil
}

// clean trims fields and drops entries without a name.
func clean(in []speaker.Speaker) []speaker.Speaker {
	out := make([]speaker.Speaker, 0, len(in))
	for _, sp := range in {
		sp.Name = strings.TrimSpace(sp.Name)
		sp.Title = strings.TrimSpace(sp.Title)
		sp.Company = strings.TrimSpace(sp.Company)
		if sp.Name == "" {
			continue
		}
		out = append(out, sp)
	}
	return out
}

// WriteJSON saves speakers as an indented JSON array, creating parent directories.
func WriteJSON(path string, speakers []speaker.Speaker) error {
	if speakers == nil {
		speakers = []speaker.Speaker{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(speakers); err != nil {
		return fmt.Errorf("encode speakers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
