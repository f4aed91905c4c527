package input

import (
	"context"
	"io"

	"github.com/opendata-tools/zeejob/pkg/job"
)

// SliceSource serves events from memory.
type SliceSource struct {
	events []job.EventID
	pos    int
	closed bool
}

// NewSliceSource creates a source over a copy of events.
func NewSliceSource(events []job.EventID) *SliceSource {
	return &SliceSource{events: append([]job.EventID(nil), events...)}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (job.EventID, error) {
	if err := ctx.Err(); err != nil {
		return job.EventID{}, err
	}
	if s.closed || s.pos >= len(s.events) {
		return job.EventID{}, io.EOF
	}
	id := s.events[s.pos]
	s.pos++
	return id, nil
}

// Close implements Source.
func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}

var _ Source = (*SliceSource)(nil)
