// Package assembly composes a job from its configuration: the certified-lumi
// whitelist and the input file list restrict the source, and a single path
// schedules the external event filter.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/factory"
	"github.com/opendata-tools/zeejob/internal/filelist"
	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/internal/lumimask"
	"github.com/opendata-tools/zeejob/internal/modules/filter"
	"github.com/opendata-tools/zeejob/internal/modules/input"
	"github.com/opendata-tools/zeejob/internal/modules/output"
	"github.com/opendata-tools/zeejob/internal/runtime"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// PathName is the label of the job's only path.
const PathName = "mypath"

// SourceType is the host module that reads the input files.
const SourceType = "PoolSource"

// ErrNilConfig is returned when Assemble is given no configuration.
var ErrNilConfig = errors.New("job configuration is nil")

// Step is one scheduled module on a path.
type Step struct {
	// Label is the module label on the path, which is also its type
	Label  string
	Params job.FilterParameters
	Module filter.Module
}

// Path is an ordered list of steps.
type Path struct {
	Name  string
	Steps []Step
}

// Job is an assembled, ready-to-run job. It is immutable.
type Job struct {
	cfg       *job.Config
	mask      *lumimask.Set
	files     *filelist.List
	prefilter filter.Chain
	path      Path
}

// Assemble loads the job's inputs and binds its filter. Any failure aborts
// before an event is processed; the error names the offending file and entry.
func Assemble(ctx context.Context, cfg *job.Config) (*Job, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask, err := lumimask.LoadFile(cfg.LumiMaskPath())
	if err != nil {
		return nil, err
	}

	files, err := filelist.Load(cfg.FileListPath())
	if err != nil {
		return nil, err
	}

	prefilter, err := factory.CreatePrefilterChain(mask, cfg.Selection())
	if err != nil {
		return nil, errhandling.NewValidationError(fmt.Sprintf("job.selection: %v", err), err)
	}

	params := cfg.Filter()
	module, err := factory.CreateFilterModule(params)
	if err != nil {
		return nil, errhandling.NewValidationError(fmt.Sprintf("job.filter: %v", err), err)
	}

	j := &Job{
		cfg:       cfg,
		mask:      mask,
		files:     files,
		prefilter: prefilter,
		path: Path{
			Name:  PathName,
			Steps: []Step{{Label: params.Type, Params: params, Module: module}},
		},
	}

	logger.Info("job assembled",
		slog.String("job_name", cfg.Name()),
		slog.Int("certified_runs", mask.NumRuns()),
		slog.Int("certified_lumis", mask.NumLumis()),
		slog.Int("input_files", files.Len()),
		slog.String("filter_type", params.Type),
		slog.String("max_events", cfg.MaxEvents().String()),
	)
	return j, nil
}

// Config returns the job configuration.
func (j *Job) Config() *job.Config { return j.cfg }

// Mask returns the certified-lumi whitelist.
func (j *Job) Mask() *lumimask.Set { return j.mask }

// Files returns the input file list.
func (j *Job) Files() *filelist.List { return j.files }

// Prefilter returns the stages applied to the source before the path.
func (j *Job) Prefilter() filter.Chain { return j.prefilter }

// Path returns the job's only path. It has exactly one step.
func (j *Job) Path() Path {
	steps := append([]Step(nil), j.path.Steps...)
	return Path{Name: j.path.Name, Steps: steps}
}

// Step returns the path's filter step.
func (j *Job) Step() Step { return j.path.Steps[0] }

// NewExecutor builds an executor that drives src through the whitelist into
// the job's filter step. out and progress may be nil.
func (j *Job) NewExecutor(src input.Source, out output.Module, progress runtime.ProgressReporter) *runtime.Executor {
	return runtime.NewExecutor(src, j.prefilter, j.Step().Module, out, runtime.Options{
		JobName:   j.cfg.Name(),
		MaxEvents: j.cfg.MaxEvents(),
		Workers:   j.cfg.Workers(),
		Progress:  progress,
	})
}
