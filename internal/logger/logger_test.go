package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opendata-tools/zeejob/internal/logger"
)

// captureJSON swaps the package logger for one writing JSON into a buffer.
func captureJSON(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := logger.Logger
	t.Cleanup(func() { logger.Logger = original })
	logger.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))
	return &buf
}

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggerInitialization(t *testing.T) {
	if logger.Logger == nil {
		t.Fatal("Logger should be initialized on package load")
	}
}

func TestSetLevelAndFormat(t *testing.T) {
	original := logger.Logger
	defer func() { logger.Logger = original }()

	logger.SetLevelAndFormat(slog.LevelDebug, logger.FormatJSON)
	if !logger.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after SetLevelAndFormat(Debug)")
	}
	logger.SetLevelAndFormat(slog.LevelError, logger.FormatHuman)
	if logger.Logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after SetLevelAndFormat(Error)")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.OutputFormat
		wantErr bool
	}{
		{"", logger.FormatJSON, false},
		{"json", logger.FormatJSON, false},
		{"Human", logger.FormatHuman, false},
		{"text", logger.FormatHuman, false},
		{"xml", logger.FormatJSON, true},
	}
	for _, tt := range tests {
		got, err := logger.ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithFile(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	logger.WithFile("file list", "files.txt").Info("loaded")

	entry := decodeLast(t, buf)
	if entry["file_role"] != "file list" || entry["file"] != "files.txt" {
		t.Errorf("Expected file_role and file attributes, got %v", entry)
	}
}

func TestWithContext_OmitsEmptyFields(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	logger.WithContext(logger.JobContext{JobID: "job-1", Stage: "prefilter"}).Info("msg")

	entry := decodeLast(t, buf)
	if entry["stage"] != "prefilter" {
		t.Errorf("Expected stage 'prefilter', got %v", entry["stage"])
	}
	if _, ok := entry["job_name"]; ok {
		t.Error("empty job_name should be omitted")
	}
	if _, ok := entry["module_type"]; ok {
		t.Error("empty module_type should be omitted")
	}
}

func TestLogJobStartAndEnd(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)
	ctx := logger.JobContext{JobID: "job-456", JobName: "zee-run2011a"}

	logger.LogJobStart(ctx, "500000", 2)
	start := decodeLast(t, buf)
	if start["msg"] != "job started" {
		t.Errorf("Expected msg 'job started', got %v", start["msg"])
	}
	if start["max_events"] != "500000" {
		t.Errorf("Expected max_events '500000', got %v", start["max_events"])
	}

	logger.LogJobEnd(ctx, "success", 42, 1500*time.Millisecond)
	end := decodeLast(t, buf)
	if end["msg"] != "job completed" {
		t.Errorf("Expected msg 'job completed', got %v", end["msg"])
	}
	if n, ok := end["events_processed"].(float64); !ok || int(n) != 42 {
		t.Errorf("Expected events_processed 42, got %v", end["events_processed"])
	}

	logger.LogJobEnd(ctx, "error", 0, time.Second)
	failed := decodeLast(t, buf)
	if failed["level"] != "ERROR" || failed["msg"] != "job failed" {
		t.Errorf("Expected error-level 'job failed', got %v / %v", failed["level"], failed["msg"])
	}
}

func TestLogStageEndWithError(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)
	ctx := logger.JobContext{JobID: "job-stage", Stage: "source"}

	logger.LogStageEnd(ctx, 10, time.Second, &logger.StageError{
		Code:    "SOURCE_FAILED",
		Message: "line 4: bad run",
	})

	entry := decodeLast(t, buf)
	if entry["msg"] != "stage failed" {
		t.Errorf("Expected msg 'stage failed', got %v", entry["msg"])
	}
	if entry["error_code"] != "SOURCE_FAILED" {
		t.Errorf("Expected error_code 'SOURCE_FAILED', got %v", entry["error_code"])
	}
}

func TestLogMetrics(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	logger.LogMetrics(logger.JobContext{JobID: "job-m"}, logger.JobMetrics{
		TotalDuration:      2 * time.Second,
		EventsRead:         100,
		EventsNotCertified: 40,
		EventsProcessed:    60,
		EventsAccepted:     12,
		EventsPerSecond:    50,
	})

	entry := decodeLast(t, buf)
	for field, want := range map[string]float64{
		"events_read":          100,
		"events_not_certified": 40,
		"events_processed":     60,
		"events_accepted":      12,
	} {
		if got, ok := entry[field].(float64); !ok || got != want {
			t.Errorf("Expected %s=%v, got %v", field, want, entry[field])
		}
	}
}

func TestLogError(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	inner := errors.New("invalid character")
	logger.LogError("startup failed", logger.ErrorContext{
		JobName:  "zee",
		Stage:    "assembly",
		File:     "cert.json",
		Entry:    "run 160404",
		Err:      fmt.Errorf("parsing: %w", inner),
		Duration: time.Millisecond,
		Extra:    map[string]interface{}{"attempt": 1},
	})

	entry := decodeLast(t, buf)
	if entry["file"] != "cert.json" || entry["entry"] != "run 160404" {
		t.Errorf("Expected file/entry fields, got %v / %v", entry["file"], entry["entry"])
	}
	chain, _ := entry["error_chain"].(string)
	if !strings.Contains(chain, "->") || !strings.Contains(chain, "invalid character") {
		t.Errorf("Expected error_chain with both errors, got %q", chain)
	}
	if _, ok := entry["job_id"]; ok {
		t.Error("empty job_id should be omitted")
	}
}

func TestConsistentFieldNames(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)

	logger.LogStageStart(logger.JobContext{JobID: "x", JobName: "y", Stage: "filter", ModuleType: "ZeeFilter"})

	entry := decodeLast(t, buf)
	for field := range entry {
		if field != strings.ToLower(field) {
			t.Errorf("Field name should be lowercase: %s", field)
		}
	}
}

// =============================================================================
// Human-Readable Format Tests
// =============================================================================

func TestHumanHandler(t *testing.T) {
	var buf bytes.Buffer
	testLogger := slog.New(logger.NewHumanHandler(&buf, &logger.HumanHandlerOptions{
		Level: slog.LevelInfo,
	}))

	testLogger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "ℹ") {
		t.Errorf("Expected output to contain info prefix 'ℹ', got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected output to contain 'key=value', got: %s", output)
	}
}

func TestHumanHandlerLevels(t *testing.T) {
	tests := []struct {
		level          slog.Level
		message        string
		expectedPrefix string
	}{
		{slog.LevelError, "test", "✗"},
		{slog.LevelWarn, "test", "⚠"},
		{slog.LevelInfo, "test", "ℹ"},
		{slog.LevelInfo, "job completed", "✓"},
		{slog.LevelDebug, "test", "·"},
	}

	for _, tt := range tests {
		t.Run(tt.level.String()+"/"+tt.message, func(t *testing.T) {
			var buf bytes.Buffer
			testLogger := slog.New(logger.NewHumanHandler(&buf, &logger.HumanHandlerOptions{
				Level: slog.LevelDebug,
			}))
			testLogger.Log(context.Background(), tt.level, tt.message)

			if !strings.Contains(buf.String(), tt.expectedPrefix) {
				t.Errorf("Expected prefix '%s', got: %s", tt.expectedPrefix, buf.String())
			}
		})
	}
}

func TestHumanHandlerGroupsAndTruncation(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewHumanHandler(&buf, &logger.HumanHandlerOptions{Level: slog.LevelInfo})
	testLogger := slog.New(h).WithGroup("mask").With("runs", 3)

	testLogger.Info("loaded", "a", 1, "b", 2, "c", 3, "d", 4, "e", 5, "f", 6)

	output := buf.String()
	if !strings.Contains(output, "mask.runs=3") {
		t.Errorf("Expected grouped attribute 'mask.runs=3', got: %s", output)
	}
	if !strings.Contains(output, "(+1 more)") {
		t.Errorf("Expected truncation marker, got: %s", output)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		500 * time.Microsecond:  "500µs",
		250 * time.Millisecond:  "250ms",
		2500 * time.Millisecond: "2.50s",
		90 * time.Second:        "1.5m",
	}
	for d, want := range tests {
		if got := logger.FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestFormatMetricsHuman(t *testing.T) {
	formatted := logger.FormatMetricsHuman(logger.JobMetrics{
		TotalDuration:      5 * time.Second,
		EventsRead:         1000,
		EventsNotCertified: 200,
		EventsProcessed:    800,
		EventsAccepted:     40,
		EventsPerSecond:    200.0,
	})

	for _, want := range []string{"1000 events", "5.00s", "200.0 events/sec", "800 processed", "40 accepted", "200 not certified"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Expected formatted metrics to contain %q, got: %s", want, formatted)
		}
	}
	if strings.Contains(formatted, "deselected") {
		t.Errorf("zero deselected should be omitted, got: %s", formatted)
	}
}

// =============================================================================
// Log File Output Tests
// =============================================================================

func TestSetLogFile(t *testing.T) {
	original := logger.Logger
	defer func() {
		logger.CloseLogFile()
		logger.Logger = original
	}()

	path := filepath.Join(t.TempDir(), "zeejob.log")
	if err := logger.SetLogFile(path, slog.LevelInfo, logger.FormatJSON); err != nil {
		t.Fatalf("SetLogFile failed: %v", err)
	}

	logger.Info("test log message", "key", "value")
	logger.CloseLogFile()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["msg"] == "test log message" {
			if entry["key"] != "value" {
				t.Errorf("Expected key='value' in log, got: %v", entry["key"])
			}
			return
		}
	}
	t.Error("Expected to find test log message in log file")
}

func TestSetLogFile_InvalidPath(t *testing.T) {
	original := logger.Logger
	defer func() { logger.Logger = original }()

	err := logger.SetLogFile(filepath.Join(t.TempDir(), "missing", "dir", "x.log"), slog.LevelInfo, logger.FormatJSON)
	if err == nil {
		t.Fatal("expected error for a path in a missing directory")
	}
}

func TestCloseLogFile_NoFile(t *testing.T) {
	logger.CloseLogFile()
	logger.CloseLogFile()
}
