package filter

import (
	"context"

	"github.com/opendata-tools/zeejob/pkg/job"
)

// Whitelist is the read-only view of a certified-lumi set the pre-filter needs.
type Whitelist interface {
	Contains(key job.EventLumiKey) bool
}

// LumiMask drops events whose (run, lumi) is not certified. Events from runs
// absent from the whitelist are dropped silently.
type LumiMask struct {
	whitelist Whitelist
}

// NewLumiMask creates the certified-lumi pre-filter.
func NewLumiMask(w Whitelist) *LumiMask {
	return &LumiMask{whitelist: w}
}

// Filter implements Module.
func (m *LumiMask) Filter(_ context.Context, id job.EventID) (bool, error) {
	return m.whitelist.Contains(id.LumiKey()), nil
}

var _ Module = (*LumiMask)(nil)
