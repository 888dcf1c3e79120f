package discovery_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/shpitdev/conference-outreach-pipeline/internal/discovery"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

var sample = []speaker.Speaker{
	{Name: "José Müller", Title: "CEO", Company: "Construções & Co <Ltd>"},
	{Name: "Kim Lee", Title: "", Company: "Solo"},
}

func TestWriteJSONThenLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "raw_speakers.json")
	if err := discovery.WriteJSON(path, sample); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "José Müller") || !strings.Contains(string(raw), "<Ltd>") || !strings.Contains(string(raw), `"company"`) {
		t.Fatalf("expected unescaped UTF-8 JSON, got %s", raw)
	}

	got, err := discovery.FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, sample) {
		t.Fatalf("got=%#v want=%#v", got, sample)
	}
}

func TestFileSourceCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "speakers.csv")
	content := "Speaker Name,Company,Title,Extra\n José Müller ,\"Construções & Co <Ltd>\",CEO,x\nKim Lee,Solo,,y\n,Nobody,Ghost,z\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := discovery.FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, sample) {
		t.Fatalf("got=%#v want=%#v", got, sample)
	}
}

func TestFileSourceXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "speakers.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Title", "Company"},
		{"José Müller", "CEO", "Construções & Co <Ltd>"},
		{"Kim Lee", "", "Solo"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	got, err := discovery.FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, sample) {
		t.Fatalf("got=%#v want=%#v", got, sample)
	}
}

func TestFileSourceErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	noName := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(noName, []byte("Title,Company\nCEO,Acme\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{
		filepath.Join(dir, "speakers.txt"),
		filepath.Join(dir, "missing.json"),
		noName,
	} {
		if _, err := (discovery.FileSource{Path: path}).Load(context.Background()); err == nil {
			t.Fatalf("expected error for %s", path)
		}
	}
}
