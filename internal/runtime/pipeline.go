// Package runtime provides the job execution engine.
// It drives events from a source through the pre-filter chain into the
// job's single filter step, and hands accepted events to an optional output.
package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/internal/modules/filter"
	"github.com/opendata-tools/zeejob/internal/modules/input"
	"github.com/opendata-tools/zeejob/internal/modules/output"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// Execution status values
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// ProgressReporter is notified once per event read from the source.
// *progressbar.ProgressBar satisfies it.
type ProgressReporter interface {
	Add(n int) error
}

// Options tunes an Executor.
type Options struct {
	// JobName is attached to every log line
	JobName string
	// MaxEvents caps the number of events delivered to the filter step
	MaxEvents job.EventLimit
	// Workers is the number of concurrent filter invocations; <= 1 runs inline
	Workers int
	// Progress is optional
	Progress ProgressReporter
}

// Executor runs one job: source → pre-filter chain → filter step → output.
//
// The Executor only interacts with modules through their public interfaces,
// so modules can be developed independently of the runtime.
type Executor struct {
	source    input.Source
	prefilter filter.Chain
	step      filter.Module
	output    output.Module
	opts      Options
}

// NewExecutor creates an executor. prefilter and out may be nil.
func NewExecutor(
	source input.Source,
	prefilter filter.Chain,
	step filter.Module,
	out output.Module,
	opts Options,
) *Executor {
	return &Executor{
		source:    source,
		prefilter: prefilter,
		step:      step,
		output:    out,
		opts:      opts,
	}
}

// counters are owned by the reading goroutine except accepted, which
// workers update.
type counters struct {
	read         int
	notCertified int
	deselected   int
	delivered    int
	accepted     atomic.Int64
}

// Execute runs the job until the source is exhausted, maxEvents events have
// been delivered, an error occurs or ctx is canceled.
//
// Resource Management:
//   - Source and output are closed when Execute returns, on every path.
//   - A filter step implementing filter.Lifecycle gets BeginJob before the
//     first event and EndJob after the last, including on the error path.
//
// Returns both result and error; the result is never nil.
func (e *Executor) Execute(ctx context.Context) (*job.ExecutionResult, error) {
	startedAt := time.Now()
	jctx := logger.JobContext{JobID: uuid.NewString(), JobName: e.opts.JobName}
	result := &job.ExecutionResult{
		JobID:     jctx.JobID,
		JobName:   e.opts.JobName,
		Status:    StatusError,
		StartedAt: startedAt,
	}

	if err := e.validate(); err != nil {
		logger.Error("job execution failed", slog.String("job_id", jctx.JobID), slog.String("error", err.Error()))
		result.CompletedAt = time.Now()
		result.Error = &job.ExecutionError{Code: ErrCodeInvalidInput, Message: err.Error()}
		return result, err
	}

	logger.LogJobStart(jctx, e.opts.MaxEvents.String(), e.workers())

	defer e.closeModule(jctx, StageSource, e.source)
	if e.output != nil {
		defer e.closeModule(jctx, StageOutput, e.output)
	}

	var c counters
	err := e.run(ctx, jctx, &c, result)

	result.CompletedAt = time.Now()
	result.EventsRead = c.read
	result.EventsNotCertified = c.notCertified
	result.EventsDeselected = c.deselected
	result.EventsProcessed = c.delivered
	result.EventsAccepted = int(c.accepted.Load())

	duration := result.Duration()
	if err != nil {
		result.Error = buildExecutionError(err)
		if errhandling.GetErrorCategory(err) == errhandling.CategoryCanceled {
			result.Status = StatusCanceled
		}
		logger.LogError("job execution failed", logger.ErrorContext{
			JobID:        jctx.JobID,
			JobName:      jctx.JobName,
			Stage:        result.Error.Stage,
			ErrorCode:    result.Error.Code,
			ErrorMessage: err.Error(),
			Err:          err,
			Duration:     duration,
		})
		logger.LogJobEnd(jctx, result.Status, result.EventsProcessed, duration)
		return result, err
	}

	result.Status = StatusSuccess
	logger.LogJobEnd(jctx, result.Status, result.EventsProcessed, duration)
	logger.LogMetrics(jctx, logger.JobMetrics{
		TotalDuration:      duration,
		EventsRead:         result.EventsRead,
		EventsNotCertified: result.EventsNotCertified,
		EventsDeselected:   result.EventsDeselected,
		EventsProcessed:    result.EventsProcessed,
		EventsAccepted:     result.EventsAccepted,
		EventsPerSecond:    eventsPerSecond(result.EventsRead, duration),
	})
	return result, nil
}

func (e *Executor) validate() error {
	if e.source == nil {
		return ErrNilSource
	}
	if e.step == nil {
		return ErrNilStep
	}
	return nil
}

func (e *Executor) workers() int {
	if e.opts.Workers < 1 {
		return 1
	}
	return e.opts.Workers
}

// run wraps the event loop in the step's BeginJob/EndJob hooks.
func (e *Executor) run(ctx context.Context, jctx logger.JobContext, c *counters, result *job.ExecutionResult) error {
	lc, hasLifecycle := e.step.(filter.Lifecycle)
	if hasLifecycle {
		if err := lc.BeginJob(ctx); err != nil {
			return stageError(ErrCodeFilterFailed, StageFilter, nil, err)
		}
	}

	err := e.loop(ctx, jctx, c, result)

	if hasLifecycle {
		// EndJob must run even when ctx was canceled.
		if endErr := lc.EndJob(context.WithoutCancel(ctx)); endErr != nil && err == nil {
			err = stageError(ErrCodeFilterFailed, StageFilter, nil, endErr)
		}
	}
	return err
}

// loop reads events sequentially and dispatches delivered events either
// inline or through a bounded errgroup.
func (e *Executor) loop(ctx context.Context, jctx logger.JobContext, c *counters, result *job.ExecutionResult) error {
	stageCtx := jctx
	stageCtx.Stage = StageSource
	logger.LogStageStart(stageCtx)
	loopStart := time.Now()

	workers := e.workers()
	var g *errgroup.Group
	readCtx := ctx
	if workers > 1 {
		g, readCtx = errgroup.WithContext(ctx)
		g.SetLimit(workers)
	}

	var runErr error
	for {
		if err := readCtx.Err(); err != nil {
			runErr = err
			break
		}

		id, err := e.source.Next(readCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if readCtx.Err() != nil {
				runErr = readCtx.Err()
			} else {
				runErr = stageError(ErrCodeSourceFailed, StageSource, nil, err)
			}
			break
		}

		c.read++
		e.reportProgress()

		idx, err := e.prefilter.Reject(readCtx, id)
		if err != nil {
			runErr = stageError(ErrCodePrefilterFailed, StagePrefilter, &id, err)
			break
		}
		if idx >= 0 {
			e.countRejected(c, idx)
			continue
		}

		c.delivered++
		if g == nil {
			if err := e.process(readCtx, id, c); err != nil {
				runErr = err
				break
			}
		} else {
			g.Go(func() error {
				return e.process(readCtx, id, c)
			})
		}

		if e.opts.MaxEvents.Reached(c.delivered) {
			result.LimitReached = true
			logger.Debug("event limit reached",
				slog.String("job_id", jctx.JobID),
				slog.String("max_events", e.opts.MaxEvents.String()),
			)
			break
		}
	}

	if g != nil {
		// A worker failure cancels readCtx; report the worker's error
		// unless the caller canceled.
		if werr := g.Wait(); werr != nil && (runErr == nil || ctx.Err() == nil) {
			runErr = werr
		}
	}

	var stageErr *logger.StageError
	if runErr != nil {
		stageErr = &logger.StageError{Code: buildExecutionError(runErr).Code, Message: runErr.Error()}
	}
	logger.LogStageEnd(stageCtx, c.read, time.Since(loopStart), stageErr)
	return runErr
}

// process hands one delivered event to the filter step and, if accepted,
// to the output.
func (e *Executor) process(ctx context.Context, id job.EventID, c *counters) error {
	ok, err := e.step.Filter(ctx, id)
	if err != nil {
		return stageError(ErrCodeFilterFailed, StageFilter, &id, err)
	}
	if !ok {
		return nil
	}
	c.accepted.Add(1)

	if e.output == nil {
		return nil
	}
	if err := e.output.Send(ctx, id); err != nil {
		return stageError(ErrCodeOutputFailed, StageOutput, &id, err)
	}
	return nil
}

func (e *Executor) countRejected(c *counters, idx int) {
	if e.prefilter[idx].Name == filter.StageLumiMask {
		c.notCertified++
		return
	}
	c.deselected++
}

func (e *Executor) reportProgress() {
	if e.opts.Progress == nil {
		return
	}
	if err := e.opts.Progress.Add(1); err != nil {
		logger.Debug("progress reporter failed", slog.String("error", err.Error()))
	}
}

// moduleCloser interface for modules that can be closed.
type moduleCloser interface {
	Close() error
}

// closeModule closes a module and logs any error.
func (e *Executor) closeModule(jctx logger.JobContext, stage string, m moduleCloser) {
	if err := m.Close(); err != nil {
		logger.Warn("failed to close module",
			slog.String("job_id", jctx.JobID),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
	}
}

func eventsPerSecond(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
