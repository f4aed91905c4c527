package registry

import (
	"github.com/opendata-tools/zeejob/internal/modules/filter"
	"github.com/opendata-tools/zeejob/internal/modules/input"
	"github.com/opendata-tools/zeejob/internal/modules/output"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// Built-in names.
const (
	FormatCSV       = "csv"
	TypePassThrough = "PassThrough"
)

func init() {
	registerBuiltins()
}

func registerBuiltins() {
	// csv - run,lumi,event rows, optional header
	RegisterSource(FormatCSV, func(path string) (input.Source, error) {
		src, err := input.OpenCSV(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	})

	// csv - Run,Lumi,Event rows of accepted events
	RegisterOutput(FormatCSV, func(path string) (output.Module, error) {
		list, err := output.CreateEventList(path)
		if err != nil {
			return nil, err
		}
		return list, nil
	})

	// PassThrough - accepts every event; same behaviour as the stub fallback,
	// but selected explicitly so no warning is logged.
	RegisterFilter(TypePassThrough, func(params job.FilterParameters) (filter.Module, error) {
		return filter.NewStub(params), nil
	})
}
