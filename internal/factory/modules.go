// Package factory creates the modules of a job from its configuration using
// the module registry.
//
// # Module Creation
//
// The factory looks up constructors by filter type or file format. Unknown
// filter types resolve to filter.StubModule; unknown formats are an error.
//
// # Adding New Module Types
//
// To add a new module type, see the documentation in internal/registry.
// You do NOT need to modify this factory; just register your constructor.
package factory

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/internal/modules/filter"
	"github.com/opendata-tools/zeejob/internal/modules/input"
	"github.com/opendata-tools/zeejob/internal/modules/output"
	"github.com/opendata-tools/zeejob/internal/registry"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// CreateFilterModule binds the job's event filter. Uses the registry to look
// up the constructor by type and falls back to a stub for unregistered types.
func CreateFilterModule(params job.FilterParameters) (filter.Module, error) {
	constructor := registry.GetFilterConstructor(params.Type)
	if constructor != nil {
		module, err := constructor(params)
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameters: %w", params.Type, err)
		}
		return module, nil
	}

	logger.Warn("no implementation registered for filter type; using stub",
		slog.String("type", params.Type),
		slog.Any("registered", registry.ListFilterTypes()),
	)
	return filter.NewStub(params), nil
}

// CreatePrefilterChain builds the stages applied before the event filter:
// the certified-lumi mask, then the selection expression when one is set.
func CreatePrefilterChain(whitelist filter.Whitelist, selection string) (filter.Chain, error) {
	chain := filter.Chain{
		{Name: filter.StageLumiMask, Module: filter.NewLumiMask(whitelist)},
	}

	if strings.TrimSpace(selection) != "" {
		sel, err := filter.NewSelection(selection)
		if err != nil {
			return nil, fmt.Errorf("invalid selection: %w", err)
		}
		chain = append(chain, filter.Stage{Name: filter.StageSelection, Module: sel})
	}
	return chain, nil
}

// OpenSource opens an event source. An empty format is taken from the file
// extension.
func OpenSource(path, format string) (input.Source, error) {
	format = resolveFormat(path, format)
	constructor := registry.GetSourceConstructor(format)
	if constructor == nil {
		return nil, fmt.Errorf("unsupported event source format %q (supported: %s)",
			format, strings.Join(registry.ListSourceFormats(), ", "))
	}
	return constructor(path)
}

// CreateOutput creates an event sink. An empty format is taken from the file
// extension.
func CreateOutput(path, format string) (output.Module, error) {
	format = resolveFormat(path, format)
	constructor := registry.GetOutputConstructor(format)
	if constructor == nil {
		return nil, fmt.Errorf("unsupported output format %q (supported: %s)",
			format, strings.Join(registry.ListOutputFormats(), ", "))
	}
	return constructor(path)
}

func resolveFormat(path, format string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
