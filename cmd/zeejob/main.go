// Package main provides the CLI entry point for zeejob.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/opendata-tools/zeejob/internal/assembly"
	"github.com/opendata-tools/zeejob/internal/cli"
	"github.com/opendata-tools/zeejob/internal/config"
	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/factory"
	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/internal/lumimask"
	"github.com/opendata-tools/zeejob/internal/modules/output"
	"github.com/opendata-tools/zeejob/internal/registry"
	"github.com/opendata-tools/zeejob/internal/template"
)

// Build information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// exitError carries a process exit code out of a command. The message has
// already been printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitWith(code int) error {
	if code == errhandling.ExitSuccess {
		return nil
	}
	return &exitError{code: code}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	logger.CloseLogFile()

	var ee *exitError
	switch {
	case err == nil:
		return errhandling.ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	default:
		// flag and argument errors
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return errhandling.ExitValidationError
	}
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	verbose   bool
	quiet     bool
	logFormat string
	logFile   string

	// Command flags
	outPath     string
	inputFormat string
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "zeejob",
		Short: "zeejob - certified-lumi Z->ee event selection jobs",
		Long: `zeejob assembles and drives Z->ee selection jobs over open collision data.

A job file (JSON/YAML) names a certified-luminosity whitelist, a manifest of
input files and the parameters of the external event filter. zeejob validates
the inputs, renders the host configuration and can replay event lists through
the certified-lumi pre-filter.

Examples:
  # Validate a job file and its inputs
  zeejob validate job.yaml

  # Write the host configuration
  zeejob render job.yaml -o ZeeFilter_cfg.py

  # Replay an event list through the whitelist
  zeejob select job.yaml events.csv -o certified.csv`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.configureLogging,
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "Log format: json or human")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this file")

	root.AddCommand(a.validateCommand())
	root.AddCommand(a.renderCommand())
	root.AddCommand(a.lumisCommand())
	root.AddCommand(a.selectCommand())
	root.AddCommand(a.versionCommand())
	return root
}

func (a *app) configureLogging(_ *cobra.Command, _ []string) error {
	format, err := logger.ParseFormat(a.logFormat)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	} else if a.quiet {
		level = slog.LevelError
	}

	if a.logFile != "" {
		return logger.SetLogFile(a.logFile, level, format)
	}
	logger.SetLevelAndFormat(level, format)
	return nil
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <job-file>",
		Short: "Validate a job file and the inputs it references",
		Long: `Validate a job file against the schema, then load its certified-lumi
whitelist and input file list.

Exit codes:
  0 - Job is valid
  1 - Validation errors (schema violations, inconsistent parameters)
  2 - Parse errors (invalid syntax, malformed or missing input files)`,
		Args: cobra.ExactArgs(1),
		RunE: a.runValidate,
	}
}

func (a *app) runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !a.quiet {
		fmt.Fprintf(a.stdout, "Validating job: %s\n", path)
	}

	result, err := config.ParseFile(path)
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return exitWith(errhandling.ExitCode(err))
	}
	if len(result.ParseErrors) > 0 {
		cli.PrintParseErrors(a.stderr, result.ParseErrors, a.verbose)
		return exitWith(errhandling.ExitParseError)
	}
	if len(result.ValidationErrors) > 0 {
		cli.PrintValidationErrors(a.stderr, result.ValidationErrors, a.verbose, a.quiet)
		return exitWith(errhandling.ExitValidationError)
	}

	cfg, err := config.ConvertToJob(result.Data, filepath.Dir(path))
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return exitWith(errhandling.ExitCode(err))
	}

	j, err := assembly.Assemble(cmd.Context(), cfg)
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return exitWith(errhandling.ExitCode(err))
	}

	if !a.quiet {
		fmt.Fprintf(a.stdout, "✓ Job is valid (format: %s)\n", result.Format)
		cli.PrintJobSummary(a.stdout, j, a.verbose)
	}
	return nil
}

// loadJob loads and assembles a job file, printing any startup error.
func (a *app) loadJob(ctx context.Context, path string) (*assembly.Job, error) {
	cfg, err := config.Load(path)
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return nil, exitWith(errhandling.ExitCode(err))
	}
	j, err := assembly.Assemble(ctx, cfg)
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return nil, exitWith(errhandling.ExitCode(err))
	}
	return j, nil
}

func (a *app) renderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <job-file>",
		Short: "Write the host configuration of a job",
		Long: `Assemble a job and write the equivalent host configuration: the input
files, the certified luminosity sections, the filter module with its
parameters, the event cap and the single path.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runRender,
	}
	cmd.Flags().StringVarP(&a.outPath, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func (a *app) runRender(cmd *cobra.Command, args []string) error {
	j, err := a.loadJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if a.outPath == "" {
		if err := template.RenderCMSSW(a.stdout, j); err != nil {
			fmt.Fprintf(a.stderr, "✗ %v\n", err)
			return exitWith(errhandling.ExitRuntimeError)
		}
		return nil
	}

	f, err := os.Create(a.outPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ %v\n", err)
		return exitWith(errhandling.ExitRuntimeError)
	}
	renderErr := template.RenderCMSSW(f, j)
	if closeErr := f.Close(); renderErr == nil {
		renderErr = closeErr
	}
	if renderErr != nil {
		fmt.Fprintf(a.stderr, "✗ %v\n", renderErr)
		return exitWith(errhandling.ExitRuntimeError)
	}
	if !a.quiet {
		fmt.Fprintf(a.stdout, "✓ Host configuration written to %s\n", a.outPath)
	}
	return nil
}

func (a *app) lumisCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lumis",
		Short: "Inspect certified-lumi whitelists",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "summary <cert.json>...",
		Short: "Summarize one or more whitelists",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runLumisSummary,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check <cert.json> <run:lumi>...",
		Short: "Report whether luminosity sections are certified",
		Long: `Report whether each run:lumi pair is certified. A run absent from the
whitelist is reported as not certified; it is not an error.`,
		Args: cobra.MinimumNArgs(2),
		RunE: a.runLumisCheck,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cmssw <cert.json>",
		Short: "Print the whitelist as comma-separated run:lumi ranges",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runLumisCMSSW,
	})
	return cmd
}

func (a *app) loadMask(path string) (*lumimask.Set, error) {
	set, err := lumimask.LoadFile(path)
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return nil, exitWith(errhandling.ExitCode(err))
	}
	return set, nil
}

func (a *app) runLumisSummary(_ *cobra.Command, args []string) error {
	for i, path := range args {
		set, err := a.loadMask(path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		cli.PrintLumiSummary(a.stdout, path, set, a.verbose)
	}
	return nil
}

func (a *app) runLumisCheck(_ *cobra.Command, args []string) error {
	set, err := a.loadMask(args[0])
	if err != nil {
		return err
	}

	for _, arg := range args[1:] {
		run, lumi, err := parseRunLumi(arg)
		if err != nil {
			fmt.Fprintf(a.stderr, "✗ %v\n", err)
			return exitWith(errhandling.ExitValidationError)
		}
		status := "not certified"
		if set.IsCertified(run, lumi) {
			status = "certified"
		}
		fmt.Fprintf(a.stdout, "%d:%d %s\n", run, lumi, status)
	}
	return nil
}

func parseRunLumi(s string) (run, lumi uint32, err error) {
	runStr, lumiStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not of the form run:lumi", s)
	}
	r, err := strconv.ParseUint(runStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid run in %q", s)
	}
	l, err := strconv.ParseUint(lumiStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lumi in %q", s)
	}
	return uint32(r), uint32(l), nil
}

func (a *app) runLumisCMSSW(_ *cobra.Command, args []string) error {
	set, err := a.loadMask(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, strings.Join(set.CMSSWStrings(), ","))
	return nil
}

func (a *app) selectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <job-file> <events>",
		Short: "Replay an event list through the job",
		Long: `Read run,lumi,event rows and drive them through the job: the
certified-lumi whitelist and optional selection first, then the filter step,
stopping after maxEvents delivered events. Accepted events can be written to
an output event list.

Exit codes:
  0 - Job executed successfully
  1 - Validation errors
  2 - Parse errors (job file, whitelist, manifest or event list)
  3 - Runtime errors`,
		Args: cobra.ExactArgs(2),
		RunE: a.runSelect,
	}
	cmd.Flags().StringVarP(&a.outPath, "output", "o", "", "Write accepted events to this file")
	cmd.Flags().StringVar(&a.inputFormat, "format", "", fmt.Sprintf("Event list format (%s); default from extension",
		strings.Join(registry.ListSourceFormats(), ", ")))
	return cmd
}

func (a *app) runSelect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, err := a.loadJob(ctx, args[0])
	if err != nil {
		return err
	}

	src, err := factory.OpenSource(args[1], a.inputFormat)
	if err != nil {
		cli.PrintStartupError(a.stderr, err)
		return exitWith(errhandling.ExitCode(err))
	}

	var out output.Module
	if a.outPath != "" {
		out, err = factory.CreateOutput(a.outPath, "")
		if err != nil {
			_ = src.Close()
			cli.PrintStartupError(a.stderr, err)
			return exitWith(errhandling.ExitCode(err))
		}
	}

	var bar *progressbar.ProgressBar
	if !a.quiet && logger.IsTerminal() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(a.stderr),
			progressbar.OptionSetDescription("events"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
	}

	var progress interface{ Add(int) error }
	if bar != nil {
		progress = bar
	}
	result, err := j.NewExecutor(src, out, progress).Execute(ctx)
	if bar != nil {
		_ = bar.Finish()
	}

	if err != nil {
		cli.PrintExecutionResult(a.stderr, result, err, cli.OutputOptions{Verbose: a.verbose, Quiet: a.quiet})
		return exitWith(errhandling.ExitCode(err))
	}
	cli.PrintExecutionResult(a.stdout, result, nil, cli.OutputOptions{Verbose: a.verbose, Quiet: a.quiet})
	if a.outPath != "" && !a.quiet {
		fmt.Fprintf(a.stdout, "  Output: %s\n", a.outPath)
	}
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "Version: %s\n", version)
			fmt.Fprintf(a.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(a.stdout, "Build Date: %s\n", buildDate)
		},
	}
}
