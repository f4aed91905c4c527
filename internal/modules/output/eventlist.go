package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/opendata-tools/zeejob/internal/pathutil"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// EventListHeader is the header row written by EventList.
var EventListHeader = []string{"Run", "Lumi", "Event"}

// EventList writes accepted event identifiers as CSV, one row per event in
// arrival order.
type EventList struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	count  int
	closed bool
}

// NewEventList writes to w. The header row is written immediately.
func NewEventList(w io.Writer) (*EventList, error) {
	l := &EventList{w: csv.NewWriter(w)}
	if err := l.w.Write(EventListHeader); err != nil {
		return nil, fmt.Errorf("writing event list header: %w", err)
	}
	return l, nil
}

// CreateEventList creates (or truncates) the file at path, creating parent
// directories as needed.
func CreateEventList(path string) (*EventList, error) {
	if err := pathutil.ValidateOutputName(path); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating event list: %w", err)
	}
	l, err := NewEventList(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

// Send implements Module.
func (l *EventList) Send(_ context.Context, id job.EventID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("event list is closed")
	}
	err := l.w.Write([]string{
		strconv.FormatUint(uint64(id.Run), 10),
		strconv.FormatUint(uint64(id.Lumi), 10),
		strconv.FormatUint(id.Event, 10),
	})
	if err != nil {
		return fmt.Errorf("writing event %s: %w", id, err)
	}
	l.count++
	return nil
}

// Count returns the number of rows written, excluding the header.
func (l *EventList) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close implements Module. It is safe to call more than once.
func (l *EventList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	l.w.Flush()
	err := l.w.Error()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ Module = (*EventList)(nil)
