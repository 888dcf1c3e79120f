// Package pipeline runs the classify-then-email batch and exports its records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
	"github.com/shpitdev/conference-outreach-pipeline/internal/worker"
)

type Classifier interface {
	Classify(ctx context.Context, sp speaker.Speaker) (speaker.ClassificationResult, error)
}

type Generator interface {
	Generate(ctx context.Context, sp speaker.Speaker, c speaker.Category, size speaker.CompanySize) (speaker.EmailContent, error)
}

type Options struct {
	// Workers bounds goroutines per phase. The shared gate inside the classifier
	// and generator is the real limit on in-flight calls.
	Workers int
	// Strict aborts the batch on the first classification error.
	Strict bool
}

type Processor struct {
	classifier Classifier
	generator  Generator
	opts       Options
	log        logrus.FieldLogger
}

func NewProcessor(c Classifier, g Generator, opts Options, log logrus.FieldLogger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{classifier: c, generator: g, opts: opts, log: log}
}

type classified struct {
	sp  speaker.Speaker
	res speaker.ClassificationResult
}

// ProcessBatch returns one record per input speaker, in input order.
//
// Per-item classification failures become speaker.Degraded records. A fatal
// error (or any error in strict mode) aborts the batch and returns no records.
func (p *Processor) ProcessBatch(ctx context.Context, speakers []speaker.Speaker) ([]speaker.ProcessedSpeaker, error) {
	if len(speakers) == 0 {
		return []speaker.ProcessedSpeaker{}, nil
	}

	policy := worker.FailurePolicyPartialOutput
	if p.opts.Strict {
		policy = worker.FailurePolicyFailFast
	}
	wopts := worker.Options{Workers: p.opts.Workers, FailurePolicy: policy}

	p.log.WithField("speakers", len(speakers)).Info("classifying speakers")
	classResults, err := worker.ProcessAllWithCallback(ctx, speakers, p.classifier.Classify, progress[speaker.Speaker, speaker.ClassificationResult](p.log, "classify", len(speakers)), wopts)
	if err != nil {
		return nil, fmt.Errorf("classification aborted: %w", err)
	}

	pairs := make([]classified, len(speakers))
	for i, r := range classResults {
		res := r.Output
		if r.Err != nil {
			entry := p.log.WithField("speaker", r.Input.Name).WithError(r.Err)
			var pe *worker.PanicError
			if errors.As(r.Err, &pe) {
				entry = entry.WithField("stack", string(pe.Stack))
			}
			entry.Warn("classification failed, using default")
			res = speaker.Degraded(r.Err)
		}
		pairs[i] = classified{sp: r.Input, res: res}
	}

	p.log.Info("generating emails for qualifying speakers")
	generate := func(ctx context.Context, c classified) (speaker.EmailContent, error) {
		return p.generator.Generate(ctx, c.sp, c.res.Category, c.res.CompanySize)
	}
	emailResults, err := worker.ProcessAllWithCallback(ctx, pairs, generate, progress[classified, speaker.EmailContent](p.log, "email", len(pairs)), wopts)
	if err != nil {
		return nil, fmt.Errorf("email generation aborted: %w", err)
	}

	out := make([]speaker.ProcessedSpeaker, len(pairs))
	for i, r := range emailResults {
		content := r.Output
		if r.Err != nil {
			content = speaker.EmailContent{}
		}
		out[i] = speaker.NewProcessedSpeaker(pairs[i].sp, pairs[i].res, content)
	}

	fields := logrus.Fields{"emails_generated": speaker.EmailsGenerated(out)}
	for c, n := range speaker.Tally(out) {
		fields[c.String()] = n
	}
	p.log.WithFields(fields).Info("batch complete")
	return out, nil
}

// progress logs each completion at debug level.
func progress[In any, Out any](log logrus.FieldLogger, phase string, total int) func(worker.Result[In, Out]) error {
	var completed atomic.Int64
	return func(r worker.Result[In, Out]) error {
		n := completed.Add(1)
		entry := log.WithFields(logrus.Fields{
			"phase":     phase,
			"completed": fmt.Sprintf("%d/%d", n, total),
		})
		if r.Err != nil {
			entry = entry.WithError(r.Err)
		}
		entry.Debug("item done")
		return nil
	}
}
