package input

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// EventListRole names an event CSV in error messages.
const EventListRole = "event list"

// column aliases accepted in a header row.
var columnAliases = map[string]string{
	"run":             "run",
	"lumi":            "lumi",
	"ls":              "lumi",
	"luminosityblock": "lumi",
	"lumiblock":       "lumi",
	"event":           "event",
	"evt":             "event",
}

// CSVSource reads run,lumi,event rows. A header row is optional; when present
// it may order the columns freely and carry extra columns, which are ignored.
// Lines starting with '#' are comments.
type CSVSource struct {
	name   string
	reader *csv.Reader
	closer io.Closer

	started bool
	idx     [3]int // column of run, lumi, event
	pending []string
}

// NewCSVSource reads events from r. name is used in error messages.
func NewCSVSource(r io.Reader, name string) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return &CSVSource{name: name, reader: cr, idx: [3]int{0, 1, 2}}
}

// OpenCSV opens an event CSV file.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errhandling.WrapOpenError(path, EventListRole, err)
	}
	s := NewCSVSource(f, path)
	s.closer = f
	return s, nil
}

// Next implements Source.
func (s *CSVSource) Next(ctx context.Context) (job.EventID, error) {
	if err := ctx.Err(); err != nil {
		return job.EventID{}, err
	}

	if !s.started {
		s.started = true
		if err := s.readHeader(); err != nil {
			return job.EventID{}, err
		}
	}

	record := s.pending
	s.pending = nil
	if record == nil {
		var err error
		record, err = s.reader.Read()
		if err != nil {
			return job.EventID{}, s.readError(err)
		}
	}

	line, _ := s.reader.FieldPos(0)
	return s.parseRow(record, line)
}

func (s *CSVSource) readHeader() error {
	record, err := s.reader.Read()
	if err != nil {
		return s.readError(err)
	}
	if len(record) > 0 {
		if _, numErr := strconv.ParseUint(strings.TrimSpace(record[0]), 10, 64); numErr == nil {
			s.pending = record
			return nil
		}
	}

	found := map[string]int{}
	for i, col := range record {
		if canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(col))]; ok {
			if _, dup := found[canonical]; !dup {
				found[canonical] = i
			}
		}
	}
	for i, want := range []string{"run", "lumi", "event"} {
		col, ok := found[want]
		if !ok {
			line, _ := s.reader.FieldPos(0)
			return s.formatError(line, fmt.Sprintf("header has no %q column", want), nil)
		}
		s.idx[i] = col
	}
	return nil
}

func (s *CSVSource) parseRow(record []string, line int) (job.EventID, error) {
	field := func(i int, bits int) (uint64, error) {
		col := s.idx[i]
		if col >= len(record) {
			return 0, fmt.Errorf("row has %d fields, need at least %d", len(record), col+1)
		}
		v, err := strconv.ParseUint(strings.TrimSpace(record[col]), 10, bits)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", [3]string{"run", "lumi", "event"}[i], record[col])
		}
		return v, nil
	}

	run, err := field(0, 32)
	if err != nil {
		return job.EventID{}, s.formatError(line, err.Error(), err)
	}
	lumi, err := field(1, 32)
	if err != nil {
		return job.EventID{}, s.formatError(line, err.Error(), err)
	}
	event, err := field(2, 64)
	if err != nil {
		return job.EventID{}, s.formatError(line, err.Error(), err)
	}
	return job.EventID{Run: uint32(run), Lumi: uint32(lumi), Event: event}, nil
}

func (s *CSVSource) readError(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return s.formatError(pe.Line, pe.Err.Error(), err)
	}
	return fmt.Errorf("reading %s %s: %w", EventListRole, s.name, err)
}

func (s *CSVSource) formatError(line int, msg string, err error) error {
	fe := errhandling.NewConfigFormatError(s.name, fmt.Sprintf("line %d", line), msg, err)
	fe.Line = line
	return fe
}

// Close implements Source.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

var _ Source = (*CSVSource)(nil)
