package job

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// DefaultProcessName is the process label used when none is configured.
const DefaultProcessName = "opendata"

var processNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// Config is the immutable configuration of one analysis job.
// It is produced by Builder.Build and never changes afterwards; share it by pointer.
type Config struct {
	name         string
	process      string
	lumiMaskPath string
	fileListPath string
	maxEvents    EventLimit
	workers      int
	selection    string
	filter       FilterParameters
}

// Name returns the job name.
func (c *Config) Name() string { return c.name }

// Process returns the host process label.
func (c *Config) Process() string { return c.process }

// LumiMaskPath returns the path of the certification document.
func (c *Config) LumiMaskPath() string { return c.lumiMaskPath }

// FileListPath returns the path of the input file manifest.
func (c *Config) FileListPath() string { return c.fileListPath }

// MaxEvents returns the event cap.
func (c *Config) MaxEvents() EventLimit { return c.maxEvents }

// Workers returns how many events may be inside the filter step at once.
func (c *Config) Workers() int { return c.workers }

// Selection returns the optional event selection expression.
func (c *Config) Selection() string { return c.selection }

// Filter returns the parameters of the external filter module.
func (c *Config) Filter() FilterParameters { return c.filter }

// Builder assembles a Config. The zero value is not usable; call NewBuilder.
type Builder struct {
	cfg  Config
	errs []error
}

// NewBuilder returns a builder seeded with defaults.
func NewBuilder() *Builder {
	return &Builder{
		cfg: Config{
			process:   DefaultProcessName,
			maxEvents: Unlimited,
			workers:   1,
			filter:    DefaultFilterParameters(),
		},
	}
}

// Name sets the job name.
func (b *Builder) Name(name string) *Builder {
	b.cfg.name = strings.TrimSpace(name)
	return b
}

// Process sets the host process label.
func (b *Builder) Process(process string) *Builder {
	b.cfg.process = strings.TrimSpace(process)
	return b
}

// LumiMask sets the certification document path.
func (b *Builder) LumiMask(path string) *Builder {
	b.cfg.lumiMaskPath = strings.TrimSpace(path)
	return b
}

// FileList sets the input file manifest path.
func (b *Builder) FileList(path string) *Builder {
	b.cfg.fileListPath = strings.TrimSpace(path)
	return b
}

// MaxEvents sets the event cap; n <= 0 means no cap. The host declares the
// cap as a signed 32-bit integer, so larger values are rejected by Build.
func (b *Builder) MaxEvents(n int) *Builder {
	switch {
	case n <= 0:
		b.cfg.maxEvents = Unlimited
	case n > math.MaxInt32:
		b.errs = append(b.errs, fmt.Errorf("maxEvents %d exceeds the largest host event cap %d", n, math.MaxInt32))
	default:
		b.cfg.maxEvents = EventLimit(n)
	}
	return b
}

// Workers sets the filter step concurrency.
func (b *Builder) Workers(n int) *Builder {
	b.cfg.workers = n
	return b
}

// Selection sets the optional event selection expression.
func (b *Builder) Selection(expr string) *Builder {
	b.cfg.selection = strings.TrimSpace(expr)
	return b
}

// FilterType sets the module type bound for the filter step.
func (b *Builder) FilterType(moduleType string) *Builder {
	b.cfg.filter.Type = strings.TrimSpace(moduleType)
	return b
}

// ElectronInputTag sets the electron collection tag, e.g. "gsfElectrons".
func (b *Builder) ElectronInputTag(tag string) *Builder {
	parsed, err := ParseInputTag(tag)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("electronInputTag: %w", err))
		return b
	}
	b.cfg.filter.ElectronInputTag = parsed
	return b
}

// CSVFileName sets the destination of matched pairs.
func (b *Builder) CSVFileName(path string) *Builder {
	b.cfg.filter.CSVFileName = strings.TrimSpace(path)
	return b
}

// InvariantMassWindow sets the inclusive mass acceptance window.
func (b *Builder) InvariantMassWindow(lo, hi float64) *Builder {
	b.cfg.filter.InvariantMassMin = lo
	b.cfg.filter.InvariantMassMax = hi
	return b
}

// Build validates the accumulated settings and returns the immutable Config.
func (b *Builder) Build() (*Config, error) {
	errs := append([]error(nil), b.errs...)

	if b.cfg.name == "" {
		errs = append(errs, errors.New("job name cannot be empty"))
	}
	if !processNamePattern.MatchString(b.cfg.process) {
		errs = append(errs, fmt.Errorf("process name %q must be alphanumeric and start with a letter", b.cfg.process))
	}
	if b.cfg.lumiMaskPath == "" {
		errs = append(errs, errors.New("lumiMask path cannot be empty"))
	}
	if b.cfg.fileListPath == "" {
		errs = append(errs, errors.New("fileList path cannot be empty"))
	}
	if b.cfg.workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", b.cfg.workers))
	}
	if err := b.cfg.filter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg := b.cfg
	return &cfg, nil
}
