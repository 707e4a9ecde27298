package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// Batch stages, as recorded in the failure ledger.
const (
	StageExtract   = "extract"
	StageTranslate = "translate"
	StageMerge     = "merge"
	StageVerify    = "verify"
	StageTimeout   = "timeout"
)

// StageError tags a document failure with the step it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with stage; nil stays nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage of err, or fallback when err carries none.
func StageOf(err error, fallback string) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return fallback
}

// DocumentReport is the outcome of one document in a batch.
type DocumentReport struct {
	Input    string        `json:"input" yaml:"input"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
	Blocks   int           `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Warnings []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Stage    string        `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

// Failed reports whether the document produced no result.
func (r *DocumentReport) Failed() bool { return r.Err != nil }

// Step processes one document. It fills report and returns an error
// tagged with AtStage on failure.
type Step func(ctx context.Context, input string, report *DocumentReport) error

// BatchOptions configure RunBatch.
type BatchOptions struct {
	Workers int
	// Timeout bounds each document; zero means no limit.
	Timeout time.Duration
	// OnDone is called after each document, from the worker goroutine.
	OnDone func(DocumentReport)
}

// RunBatch runs step over inputs with a fixed number of workers. Every
// document gets its own context and handles, so one failure or timeout
// never stops the others. Reports come back in input order.
//
// A step that ignores its context keeps running after the timeout; its
// output is written atomically, so a late finish cannot leave a partial
// file behind.
func RunBatch(ctx context.Context, inputs []string, opts BatchOptions, step Step) []DocumentReport {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	reports := make([]DocumentReport, len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i] = runOne(ctx, inputs[i], opts.Timeout, step)
				if opts.OnDone != nil {
					opts.OnDone(reports[i])
				}
			}
		}()
	}

	for i := range inputs {
		if ctx.Err() != nil {
			reports[i] = DocumentReport{Input: inputs[i], Stage: StageTimeout, Err: ctx.Err(), Error: ctx.Err().Error()}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
	}
	logger.Info("batch finished",
		logger.Int("documents", len(inputs)),
		logger.Int("failed", failed))
	return reports
}

func runOne(parent context.Context, input string, timeout time.Duration, step Step) DocumentReport {
	ctx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	defer cancel()

	log := logger.With(logger.String("input", input))
	start := time.Now()
	type outcome struct {
		report DocumentReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var err error
		report := DocumentReport{Input: input}
		defer func() {
			if r := recover(); r != nil {
				err = AtStage(StageMerge, fmt.Errorf("panic: %v", r))
			}
			done <- outcome{report, err}
		}()
		err = step(ctx, input, &report)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{DocumentReport{Input: input}, AtStage(StageTimeout, ctx.Err())}
	}

	out.report.Duration = time.Since(start)
	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) && StageOf(out.err, "") != StageTimeout {
			out.err = AtStage(StageTimeout, out.err)
		}
		out.report.Err = out.err
		out.report.Error = out.err.Error()
		out.report.Stage = StageOf(out.err, StageMerge)
		log.Warn("document failed",
			logger.String("stage", out.report.Stage),
			logger.Err(out.err))
		return out.report
	}
	log.Debug("document done",
		logger.Int("blocks", out.report.Blocks),
		logger.Duration("elapsed", out.report.Duration))
	return out.report
}
