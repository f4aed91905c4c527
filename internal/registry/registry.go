// Package registry maps module type names to constructors.
//
// # Overview
//
// The job file names its event filter by type (e.g. "ZeeFilter"), and the
// select command picks event sources and sinks by format (e.g. "csv").
// Instead of hard-coded switch statements, implementations register their
// constructors by name, so a new filter type can be added without touching
// the factory.
//
// # Adding a Filter
//
//	package zee
//
//	import (
//	    "github.com/opendata-tools/zeejob/internal/modules/filter"
//	    "github.com/opendata-tools/zeejob/internal/registry"
//	    "github.com/opendata-tools/zeejob/pkg/job"
//	)
//
//	func init() {
//	    registry.RegisterFilter("ZeeFilter", New)
//	}
//
//	func New(params job.FilterParameters) (filter.Module, error) {
//	    return &Filter{...}, nil
//	}
//
// # Stub Fallback
//
// Filter types with no registered constructor resolve to filter.StubModule in
// the factory, which accepts every event and logs its parameters. The Z->ee
// filter itself is an external host module, so this is the normal path for
// rendering and dry runs.
package registry

import (
	"sort"
	"sync"

	"github.com/opendata-tools/zeejob/internal/modules/filter"
	"github.com/opendata-tools/zeejob/internal/modules/input"
	"github.com/opendata-tools/zeejob/internal/modules/output"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// FilterConstructor creates an event filter from the job's filter parameters.
// Returns an error if the parameters are invalid for this implementation.
type FilterConstructor func(params job.FilterParameters) (filter.Module, error)

// SourceConstructor opens an event source at path.
type SourceConstructor func(path string) (input.Source, error)

// OutputConstructor creates an event sink writing to path.
type OutputConstructor func(path string) (output.Module, error)

var (
	filterMu       sync.RWMutex
	filterRegistry = make(map[string]FilterConstructor)
)

var (
	sourceMu       sync.RWMutex
	sourceRegistry = make(map[string]SourceConstructor)
)

var (
	outputMu       sync.RWMutex
	outputRegistry = make(map[string]OutputConstructor)
)

// RegisterFilter registers a filter constructor by type name.
// Registering an already registered type overwrites the previous constructor.
// Safe for concurrent use; typically called from init().
func RegisterFilter(moduleType string, constructor FilterConstructor) {
	filterMu.Lock()
	defer filterMu.Unlock()
	filterRegistry[moduleType] = constructor
}

// RegisterSource registers an event source constructor by format name.
func RegisterSource(format string, constructor SourceConstructor) {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	sourceRegistry[format] = constructor
}

// RegisterOutput registers an event sink constructor by format name.
func RegisterOutput(format string, constructor OutputConstructor) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outputRegistry[format] = constructor
}

// GetFilterConstructor returns the constructor for a filter type, nil if none.
func GetFilterConstructor(moduleType string) FilterConstructor {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return filterRegistry[moduleType]
}

// GetSourceConstructor returns the constructor for a source format, nil if none.
func GetSourceConstructor(format string) SourceConstructor {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return sourceRegistry[format]
}

// GetOutputConstructor returns the constructor for an output format, nil if none.
func GetOutputConstructor(format string) OutputConstructor {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return outputRegistry[format]
}

// ListFilterTypes returns the registered filter type names, sorted.
func ListFilterTypes() []string {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return sortedKeys(filterRegistry)
}

// ListSourceFormats returns the registered source format names, sorted.
func ListSourceFormats() []string {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return sortedKeys(sourceRegistry)
}

// ListOutputFormats returns the registered output format names, sorted.
func ListOutputFormats() []string {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return sortedKeys(outputRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClearRegistries removes all registered constructors.
// This is intended for testing purposes only.
func ClearRegistries() {
	filterMu.Lock()
	filterRegistry = make(map[string]FilterConstructor)
	filterMu.Unlock()

	sourceMu.Lock()
	sourceRegistry = make(map[string]SourceConstructor)
	sourceMu.Unlock()

	outputMu.Lock()
	outputRegistry = make(map[string]OutputConstructor)
	outputMu.Unlock()
}

// ResetBuiltins clears the registries and registers the built-in modules again.
// This is intended for testing purposes only.
func ResetBuiltins() {
	ClearRegistries()
	registerBuiltins()
}
