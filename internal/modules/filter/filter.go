// Package filter provides the per-event filter stages of a job: the
// certified-lumi pre-filter, the optional selection expression and the
// binding to the external event filter module.
package filter

import (
	"context"

	"github.com/opendata-tools/zeejob/pkg/job"
)

// Module decides whether an event passes. Implementations must be safe for
// concurrent use when the job runs with more than one worker.
type Module interface {
	Filter(ctx context.Context, id job.EventID) (bool, error)
}

// Lifecycle is implemented by modules that need job-level setup and teardown,
// mirroring the host's beginJob/endJob hooks.
type Lifecycle interface {
	BeginJob(ctx context.Context) error
	EndJob(ctx context.Context) error
}

// Stage names used by the pre-filter chain.
const (
	StageLumiMask  = "lumimask"
	StageSelection = "selection"
)

// Stage is one named step of a pre-filter chain.
type Stage struct {
	Name   string
	Module Module
}

// Chain evaluates stages in order and stops at the first rejection.
type Chain []Stage

// Filter implements Module.
func (c Chain) Filter(ctx context.Context, id job.EventID) (bool, error) {
	i, err := c.Reject(ctx, id)
	return i < 0, err
}

// Reject returns the index of the first stage rejecting id, or -1 if every
// stage accepts it.
func (c Chain) Reject(ctx context.Context, id job.EventID) (int, error) {
	for i, s := range c {
		ok, err := s.Module.Filter(ctx, id)
		if err != nil {
			return i, err
		}
		if !ok {
			return i, nil
		}
	}
	return -1, nil
}

// Names returns the stage names in evaluation order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

var _ Module = Chain(nil)
