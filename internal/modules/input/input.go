// Package input provides event sources. A source yields event identifiers in
// file order; the lumi pre-filter is applied downstream of it.
package input

import (
	"context"

	"github.com/opendata-tools/zeejob/pkg/job"
)

// Source yields events one at a time.
type Source interface {
	// Next returns the next event, or io.EOF once the source is exhausted.
	// The context can be used to cancel a blocking read.
	Next(ctx context.Context) (job.EventID, error)
	// Close releases any resources held by the source.
	Close() error
}
