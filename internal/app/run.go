package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shpitdev/conference-outreach-pipeline/internal/core"
	"github.com/shpitdev/conference-outreach-pipeline/internal/discovery"
	"github.com/shpitdev/conference-outreach-pipeline/internal/pipeline"
	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

const (
	RawSpeakersFile = "raw_speakers.json"
	EmailListFile   = "email_list.csv"

	sampleEmails  = 2
	bodyPreviewLn = 100
)

type Options struct {
	OutputDir string
	Log       logrus.FieldLogger
}

// Run loads speakers, saves them raw, processes the batch and exports the CSV.
// An empty speaker list is not an error: nothing is written.
func Run(ctx context.Context, src core.InputAdapter[speaker.Speaker], proc *pipeline.Processor, opts Options) error {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	runStart := time.Now()

	loadStart := time.Now()
	speakers, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load speakers: %w", err)
	}
	if len(speakers) == 0 {
		log.Warn("no speakers found; nothing to do")
		return nil
	}
	rawPath := filepath.Join(opts.OutputDir, RawSpeakersFile)
	if err := discovery.WriteJSON(rawPath, speakers); err != nil {
		return fmt.Errorf("save raw speakers: %w", err)
	}
	log.WithFields(logrus.Fields{
		"speakers": len(speakers),
		"path":     rawPath,
		"duration": time.Since(loadStart).Round(time.Millisecond).String(),
	}).Info("speakers loaded")

	processStart := time.Now()
	records, err := proc.ProcessBatch(ctx, speakers)
	if err != nil {
		return err
	}
	log.WithField("duration", time.Since(processStart).Round(time.Millisecond).String()).Info("processing complete")

	sink := CSVSink{Path: filepath.Join(opts.OutputDir, EmailListFile)}
	if err := sink.Store(ctx, records); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.WithFields(logrus.Fields{
		"path":               sink.Path,
		"records":            len(records),
		"records_with_email": speaker.EmailsGenerated(records),
	}).Info("csv exported")

	logSamples(log, records)
	log.WithField("duration", time.Since(runStart).Round(time.Millisecond).String()).Info("run complete")
	return nil
}

func logSamples(log logrus.FieldLogger, records []speaker.ProcessedSpeaker) {
	shown := 0
	for _, r := range records {
		if !r.HasEmail() {
			continue
		}
		preview := []rune(r.EmailBody)
		if len(preview) > bodyPreviewLn {
			preview = preview[:bodyPreviewLn]
		}
		log.WithFields(logrus.Fields{
			"speaker":  r.Name,
			"category": r.Category.String(),
			"subject":  r.EmailSubject,
			"preview":  string(preview),
		}).Info("sample email")
		if shown++; shown == sampleEmails {
			return
		}
	}
}

var _ core.OutputAdapter[speaker.ProcessedSpeaker] = CSVSink{}

// CSVSink writes records to a local CSV file, replacing it atomically.
type CSVSink struct {
	Path string
}

func (s CSVSink) Store(_ context.Context, records []speaker.ProcessedSpeaker) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".email_list-*.csv")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := pipeline.WriteCSV(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}
