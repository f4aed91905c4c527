package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opendata-tools/zeejob/internal/errhandling"
)

// testFixturePath returns the path to test fixtures
func testFixturePath(pkg, filename string) string {
	return filepath.Join("..", "..", "internal", pkg, "testdata", filename)
}

// runCLI runs the CLI in-process and returns stdout, stderr, and exit code
func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	exitCode = run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), exitCode
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "--help")
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	for _, want := range []string{"zeejob", "validate", "render", "lumis", "select"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "version")
	if exitCode != 0 || !strings.Contains(stdout, "Version: dev") {
		t.Errorf("exit %d, stdout %q", exitCode, stdout)
	}
}

func TestCLI_Validate(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantExit int
		wantOut  string
		wantErr  string
	}{
		{"valid job", testFixturePath("assembly", "job.yaml"), errhandling.ExitSuccess, "Job is valid", ""},
		{"syntax error", testFixturePath("config", "invalid-syntax.json"), errhandling.ExitParseError, "", "Parse errors"},
		{"schema violation", testFixturePath("config", "missing-required.yaml"), errhandling.ExitValidationError, "", "Validation errors"},
		{"inconsistent window", testFixturePath("config", "inverted-window.yaml"), errhandling.ExitValidationError, "", "invariantMass"},
		{"missing job file", testFixturePath("config", "nope.yaml"), errhandling.ExitParseError, "", "Missing input"},
		{"missing whitelist", testFixturePath("config", "valid-job.yaml"), errhandling.ExitParseError, "", "certification document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, exitCode := runCLI(t, "validate", tt.file)
			if exitCode != tt.wantExit {
				t.Errorf("exit code = %d, want %d\nstdout: %s\nstderr: %s", exitCode, tt.wantExit, stdout, stderr)
			}
			if tt.wantOut != "" && !strings.Contains(stdout, tt.wantOut) {
				t.Errorf("stdout missing %q:\n%s", tt.wantOut, stdout)
			}
			if tt.wantErr != "" && !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantErr, stderr)
			}
		})
	}
}

func TestCLI_ValidateVerboseSummary(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "validate", "-v", "--log-format", "human", testFixturePath("assembly", "job.yaml"))
	if exitCode != 0 {
		t.Fatalf("exit code = %d", exitCode)
	}
	for _, want := range []string{"Path: mypath -> ZeeFilter", "Max events: 3", "csvFileName:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestCLI_Render(t *testing.T) {
	stdout, stderr, exitCode := runCLI(t, "-q", "render", testFixturePath("assembly", "job.yaml"))
	if exitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", exitCode, stderr)
	}
	for _, want := range []string{
		"process = cms.Process('opendata')",
		"'160404:1-160404:10',",
		"cms.untracked.int32(3)",
		"process.mypath = cms.Path(process.ZeeFilter)",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("rendered configuration missing %q:\n%s", want, stdout)
		}
	}

	out := filepath.Join(t.TempDir(), "ZeeFilter_cfg.py")
	_, _, exitCode = runCLI(t, "-q", "render", testFixturePath("assembly", "job.yaml"), "-o", out)
	if exitCode != 0 {
		t.Fatalf("exit code = %d", exitCode)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stdout {
		t.Error("file output differs from stdout output")
	}
}

func TestCLI_Lumis(t *testing.T) {
	cert := testFixturePath("assembly", "cert.json")

	stdout, _, exitCode := runCLI(t, "lumis", "summary", cert)
	if exitCode != 0 || !strings.Contains(stdout, "Runs: 2") || !strings.Contains(stdout, "Lumi sections: 17") {
		t.Errorf("summary: exit %d\n%s", exitCode, stdout)
	}

	stdout, _, exitCode = runCLI(t, "lumis", "check", cert, "160404:5", "160404:15", "999999:1")
	if exitCode != 0 {
		t.Fatalf("check: exit %d", exitCode)
	}
	want := "160404:5 certified\n160404:15 not certified\n999999:1 not certified\n"
	if stdout != want {
		t.Errorf("check output = %q, want %q", stdout, want)
	}

	_, _, exitCode = runCLI(t, "lumis", "check", cert, "160404")
	if exitCode != errhandling.ExitValidationError {
		t.Errorf("bad pair: exit %d, want %d", exitCode, errhandling.ExitValidationError)
	}

	stdout, _, exitCode = runCLI(t, "lumis", "cmssw", cert)
	if exitCode != 0 || stdout != "160404:1-160404:10,160404:20-160404:25,160405:3-160405:3\n" {
		t.Errorf("cmssw: exit %d, output %q", exitCode, stdout)
	}

	_, stderr, exitCode := runCLI(t, "lumis", "summary", testFixturePath("lumimask", "inverted.json"))
	if exitCode != errhandling.ExitParseError || !strings.Contains(stderr, "run 160410") {
		t.Errorf("inverted: exit %d, stderr %q", exitCode, stderr)
	}
}

func TestCLI_Select(t *testing.T) {
	out := filepath.Join(t.TempDir(), "certified.csv")
	stdout, stderr, exitCode := runCLI(t, "-q", "select",
		testFixturePath("assembly", "job.yaml"), testFixturePath("assembly", "events.csv"), "-o", out)
	if exitCode != 0 {
		t.Fatalf("exit code = %d\nstdout: %s\nstderr: %s", exitCode, stdout, stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "Run,Lumi,Event\n160404,1,1001\n160405,3,1003\n160404,22,1005\n"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
}

func TestCLI_SelectSummary(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "select",
		testFixturePath("assembly", "job.yaml"), testFixturePath("assembly", "events.csv"))
	if exitCode != 0 {
		t.Fatalf("exit code = %d", exitCode)
	}
	for _, want := range []string{"Events read: 5", "Not certified: 2", "Processed: 3", "Stopped at maxEvents"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestCLI_SelectErrors(t *testing.T) {
	job := testFixturePath("assembly", "job.yaml")
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("160404,1,1\n160404,one,2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		wantExit int
	}{
		{"missing event list", []string{"select", job, filepath.Join(dir, "nope.csv")}, errhandling.ExitParseError},
		{"malformed row", []string{"select", job, bad}, errhandling.ExitParseError},
		{"unsupported format", []string{"select", job, bad, "--format", "parquet"}, errhandling.ExitRuntimeError},
		{"wrong arg count", []string{"select", job}, errhandling.ExitValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, exitCode := runCLI(t, append([]string{"-q"}, tt.args...)...)
			if exitCode != tt.wantExit {
				t.Errorf("exit code = %d, want %d\nstderr: %s", exitCode, tt.wantExit, stderr)
			}
		})
	}
}

func TestCLI_BadLogFormat(t *testing.T) {
	_, stderr, exitCode := runCLI(t, "--log-format", "xml", "version")
	if exitCode != errhandling.ExitValidationError || !strings.Contains(stderr, "log format") {
		t.Errorf("exit %d, stderr %q", exitCode, stderr)
	}
}
