package filter

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// StubModule stands in for an external event filter that has no Go
// implementation. It accepts every event and logs its parameters, so a job
// can be dry-run end to end.
type StubModule struct {
	ModuleType string
	Params     job.FilterParameters

	seen atomic.Int64
}

// NewStub creates a new stub filter module.
func NewStub(params job.FilterParameters) *StubModule {
	return &StubModule{
		ModuleType: params.Type,
		Params:     params,
	}
}

// BeginJob logs the bound parameters.
func (m *StubModule) BeginJob(_ context.Context) error {
	logger.Info("filter module bound to stub",
		slog.String("type", m.ModuleType),
		slog.String("electron_input_tag", m.Params.ElectronInputTag.String()),
		slog.String("csv_file_name", m.Params.CSVFileName),
		slog.Float64("invariant_mass_min", m.Params.InvariantMassMin),
		slog.Float64("invariant_mass_max", m.Params.InvariantMassMax),
	)
	return nil
}

// Filter accepts the event.
func (m *StubModule) Filter(_ context.Context, _ job.EventID) (bool, error) {
	m.seen.Add(1)
	return true, nil
}

// EndJob logs how many events reached the stub.
func (m *StubModule) EndJob(_ context.Context) error {
	logger.Debug("stub filter module finished",
		slog.String("type", m.ModuleType),
		slog.Int64("events", m.seen.Load()),
	)
	return nil
}

// Seen returns how many events reached the stub.
func (m *StubModule) Seen() int64 {
	return m.seen.Load()
}

var (
	_ Module    = (*StubModule)(nil)
	_ Lifecycle = (*StubModule)(nil)
)
