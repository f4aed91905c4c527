package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opendata-tools/zeejob/internal/config"
	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/lumimask"
	"github.com/opendata-tools/zeejob/pkg/job"
)

func TestPrintParseErrors(t *testing.T) {
	var buf bytes.Buffer
	PrintParseErrors(&buf, []config.ParseError{
		{Path: "job.json", Line: 5, Column: 3, Message: "invalid character '}'", Type: config.ErrorTypeSyntax},
		{Message: "no location"},
	}, true)

	out := buf.String()
	for _, want := range []string{"job.json:5:3: invalid character", "Type: syntax", "  no location\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintValidationErrors(t *testing.T) {
	errs := []config.ValidationError{
		{Path: "/job", Type: "required", Message: "missing properties 'lumiMask', 'fileList'"},
		{Path: "", Type: "additionalProperties", Message: strings.Repeat("x", 100)},
	}

	var compact bytes.Buffer
	PrintValidationErrors(&compact, errs, false, false)
	out := compact.String()
	if !strings.Contains(out, "/job: missing properties") {
		t.Errorf("compact output:\n%s", out)
	}
	if !strings.Contains(out, "  /: "+strings.Repeat("x", 77)+"...") {
		t.Errorf("long message not truncated:\n%s", out)
	}
	if !strings.Contains(out, "Hint:") {
		t.Error("hint missing")
	}

	var verbose bytes.Buffer
	PrintValidationErrors(&verbose, errs, true, false)
	if !strings.Contains(verbose.String(), "Type: required") || strings.Contains(verbose.String(), "Hint:") {
		t.Errorf("verbose output:\n%s", verbose.String())
	}
}

func TestPrintStartupError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			"format",
			errhandling.NewConfigFormatError("cert.json", "run 160410", "firstLumi 30 is greater than lastLumi 12", nil),
			[]string{"Malformed input", "File: cert.json", "Entry: run 160410", "firstLumi 30"},
		},
		{
			"missing",
			&errhandling.MissingFileError{File: "files.txt", Role: "file list"},
			[]string{"Missing input", "file list: files.txt"},
		},
		{"other", errors.New("boom"), []string{"✗ boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintStartupError(&buf, tt.err)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestPrintExecutionResult(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	result := &job.ExecutionResult{
		JobID:              "id-1",
		Status:             "success",
		StartedAt:          start,
		CompletedAt:        start.Add(2 * time.Second),
		EventsRead:         10,
		EventsNotCertified: 4,
		EventsProcessed:    6,
		EventsAccepted:     6,
		LimitReached:       true,
	}

	var buf bytes.Buffer
	PrintExecutionResult(&buf, result, nil, OutputOptions{Verbose: true})
	for _, want := range []string{
		"Events read: 10",
		"Not certified: 4",
		"Processed: 6",
		"maxEvents",
		"Job ID: id-1",
		"Summary: Read 10 events in 2.00s (5.0 events/sec), 6 processed, 6 accepted, 4 not certified",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
	if strings.Contains(buf.String(), "Deselected") {
		t.Error("zero deselected count should be omitted")
	}

	buf.Reset()
	PrintExecutionResult(&buf, result, nil, OutputOptions{})
	if strings.Contains(buf.String(), "Summary:") {
		t.Errorf("summary line is verbose only:\n%s", buf.String())
	}

	buf.Reset()
	PrintExecutionResult(&buf, result, nil, OutputOptions{Quiet: true})
	if buf.Len() != 0 {
		t.Errorf("quiet output = %q", buf.String())
	}

	buf.Reset()
	result.Error = &job.ExecutionError{Stage: "filter", Message: "electron collection not found"}
	PrintExecutionResult(&buf, result, errors.New("failed"), OutputOptions{})
	if !strings.Contains(buf.String(), "Stage: filter") {
		t.Errorf("error output:\n%s", buf.String())
	}
}

func TestPrintLumiSummary(t *testing.T) {
	set, err := lumimask.New(map[uint32][]job.LumiRange{
		160404: {{First: 1, Last: 10}, {First: 20, Last: 25}},
		160405: {{First: 3, Last: 3}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	PrintLumiSummary(&buf, "cert.json", set, true)
	for _, want := range []string{"Runs: 2", "Ranges: 3", "Lumi sections: 17", "First run: 160404", "160404: [1, 10] [20, 25]"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
