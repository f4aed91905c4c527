// Package output provides sinks for events accepted by the job's filter path.
package output

import (
	"context"

	"github.com/opendata-tools/zeejob/pkg/job"
)

// Module receives accepted events. Send may be called from several
// goroutines when the job runs with more than one worker.
type Module interface {
	// Send records one accepted event.
	Send(ctx context.Context, id job.EventID) error

	// Close flushes and releases any resources held by the module.
	Close() error
}
