package cli

import (
	"fmt"
	"io"

	"github.com/opendata-tools/zeejob/internal/assembly"
	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/internal/lumimask"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
}

// PrintExecutionResult displays the job execution result.
func PrintExecutionResult(w io.Writer, result *job.ExecutionResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(w, "✗ No execution result available")
		return
	}

	if err != nil {
		fmt.Fprintln(w, "✗ Job execution failed")
		if result.Error != nil {
			if result.Error.Stage != "" {
				fmt.Fprintf(w, "  Stage: %s\n", result.Error.Stage)
			}
			fmt.Fprintf(w, "  Error: %s\n", result.Error.Message)
		}
		return
	}

	if opts.Quiet {
		return
	}
	fmt.Fprintln(w, "✓ Job executed successfully")
	fmt.Fprintf(w, "  Status: %s\n", result.Status)
	fmt.Fprintf(w, "  Events read: %d\n", result.EventsRead)
	fmt.Fprintf(w, "  Not certified: %d\n", result.EventsNotCertified)
	if result.EventsDeselected > 0 {
		fmt.Fprintf(w, "  Deselected: %d\n", result.EventsDeselected)
	}
	fmt.Fprintf(w, "  Processed: %d\n", result.EventsProcessed)
	fmt.Fprintf(w, "  Accepted: %d\n", result.EventsAccepted)
	if result.LimitReached {
		fmt.Fprintln(w, "  Stopped at maxEvents")
	}
	if opts.Verbose {
		fmt.Fprintf(w, "  Job ID: %s\n", result.JobID)
		fmt.Fprintf(w, "  Duration: %s\n", logger.FormatDuration(result.Duration()))
		fmt.Fprintf(w, "  Summary: %s\n", logger.FormatMetricsHuman(resultMetrics(result)))
	}
}

func resultMetrics(result *job.ExecutionResult) logger.JobMetrics {
	m := logger.JobMetrics{
		TotalDuration:      result.Duration(),
		EventsRead:         result.EventsRead,
		EventsNotCertified: result.EventsNotCertified,
		EventsDeselected:   result.EventsDeselected,
		EventsProcessed:    result.EventsProcessed,
		EventsAccepted:     result.EventsAccepted,
	}
	if secs := m.TotalDuration.Seconds(); secs > 0 {
		m.EventsPerSecond = float64(m.EventsRead) / secs
	}
	return m
}

// PrintJobSummary describes an assembled job.
func PrintJobSummary(w io.Writer, j *assembly.Job, verbose bool) {
	cfg := j.Config()
	step := j.Step()

	fmt.Fprintf(w, "  Job: %s\n", cfg.Name())
	fmt.Fprintf(w, "  Process: %s\n", cfg.Process())
	fmt.Fprintf(w, "  Certified: %d runs, %d lumi sections\n", j.Mask().NumRuns(), j.Mask().NumLumis())
	fmt.Fprintf(w, "  Input files: %d\n", j.Files().Len())
	fmt.Fprintf(w, "  Path: %s -> %s\n", j.Path().Name, step.Label)
	fmt.Fprintf(w, "  Max events: %s\n", cfg.MaxEvents())
	if cfg.Selection() != "" {
		fmt.Fprintf(w, "  Selection: %s\n", cfg.Selection())
	}

	if !verbose {
		return
	}
	fmt.Fprintf(w, "  Workers: %d\n", cfg.Workers())
	fmt.Fprintln(w, "  Filter parameters:")
	fmt.Fprintf(w, "    electronInputTag: %s\n", step.Params.ElectronInputTag)
	fmt.Fprintf(w, "    csvFileName: %s\n", step.Params.CSVFileName)
	fmt.Fprintf(w, "    invariantMassMin: %g\n", step.Params.InvariantMassMin)
	fmt.Fprintf(w, "    invariantMassMax: %g\n", step.Params.InvariantMassMax)
}

// PrintLumiSummary describes a whitelist. In verbose mode every run's
// ranges are listed.
func PrintLumiSummary(w io.Writer, source string, set *lumimask.Set, verbose bool) {
	fmt.Fprintf(w, "%s\n", source)
	fmt.Fprintf(w, "  Runs: %d\n", set.NumRuns())
	fmt.Fprintf(w, "  Ranges: %d\n", set.NumRanges())
	fmt.Fprintf(w, "  Lumi sections: %d\n", set.NumLumis())

	runs := set.Runs()
	if len(runs) > 0 {
		fmt.Fprintf(w, "  First run: %d\n", runs[0])
		fmt.Fprintf(w, "  Last run: %d\n", runs[len(runs)-1])
	}

	if !verbose {
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "    %d:", run)
		for _, r := range set.Ranges(run) {
			fmt.Fprintf(w, " [%d, %d]", r.First, r.Last)
		}
		fmt.Fprintln(w)
	}
}
