package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/opendata-tools/zeejob/internal/errhandling"
)

func TestParseFile_ValidYAML(t *testing.T) {
	result, err := ParseFile("testdata/valid-job.yaml")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if !result.IsValid() {
		t.Fatalf("expected valid result, got %v", result.AllErrors())
	}
	if result.Format != "yaml" {
		t.Errorf("Format = %q, want yaml", result.Format)
	}
	jobData, ok := result.Data["job"].(map[string]interface{})
	if !ok {
		t.Fatal("expected job section")
	}
	if jobData["name"] != "zee-run2011a" {
		t.Errorf("job.name = %v", jobData["name"])
	}
}

func TestParseFile_ValidJSON(t *testing.T) {
	result, err := ParseFile("testdata/valid-job.json")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if !result.IsValid() {
		t.Fatalf("expected valid result, got %v", result.AllErrors())
	}
	if result.Format != "json" {
		t.Errorf("Format = %q, want json", result.Format)
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile("testdata/does-not-exist.yaml")
	var missing *errhandling.MissingFileError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingFileError", err)
	}
	if missing.Role != Role {
		t.Errorf("Role = %q, want %q", missing.Role, Role)
	}
}

func TestParseFile_SyntaxErrors(t *testing.T) {
	tests := []struct {
		file     string
		wantLine int
	}{
		{"testdata/invalid-syntax.json", 5},
		{"testdata/invalid-syntax.yaml", 4},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			result, err := ParseFile(tt.file)
			if err != nil {
				t.Fatalf("ParseFile() error = %v", err)
			}
			if len(result.ParseErrors) == 0 {
				t.Fatal("expected parse errors")
			}
			pe := result.ParseErrors[0]
			if pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", pe.Line, tt.wantLine, pe)
			}
			if pe.Path != tt.file {
				t.Errorf("Path = %q, want %q", pe.Path, tt.file)
			}
			if len(result.ValidationErrors) != 0 {
				t.Error("validation should be skipped after a parse failure")
			}

			var fe *errhandling.ConfigFormatError
			if !errors.As(result.Err(), &fe) {
				t.Fatalf("Err() = %v, want ConfigFormatError", result.Err())
			}
			if fe.Line != tt.wantLine {
				t.Errorf("ConfigFormatError.Line = %d, want %d", fe.Line, tt.wantLine)
			}
		})
	}
}

func TestParseBytes_AutoDetect(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantFormat string
		wantParse  bool
	}{
		{"json", `{"schemaVersion": "1.0", "job": {"name": "a", "lumiMask": "c", "fileList": "f"}}`, "json", true},
		{"yaml", "schemaVersion: \"1.0\"\njob:\n  name: a\n  lumiMask: c\n  fileList: f\n", "yaml", true},
		{"empty", "", "", false},
		{"scalar", "42", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseBytes([]byte(tt.content), "")
			if tt.wantParse != (len(result.ParseErrors) == 0) {
				t.Fatalf("ParseErrors = %v", result.ParseErrors)
			}
			if tt.wantParse && result.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", result.Format, tt.wantFormat)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "   ", "empty content"},
		{"array", "[1, 2]", "got array"},
		{"null", "null", "got null"},
		{"syntax", "{\"a\": }", "JSON syntax error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseJSON([]byte(tt.content))
			if result.IsValid() {
				t.Fatal("expected error")
			}
			if !strings.Contains(result.Errors[0].Message, tt.wantErr) {
				t.Errorf("Message = %q, want to contain %q", result.Errors[0].Message, tt.wantErr)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "\n\n", "empty content"},
		{"only comments", "# nothing here\n", "got null"},
		{"sequence", "- a\n- b\n", "got array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseYAML([]byte(tt.content))
			if result.IsValid() {
				t.Fatal("expected error")
			}
			if !strings.Contains(result.Errors[0].Message, tt.wantErr) {
				t.Errorf("Message = %q, want to contain %q", result.Errors[0].Message, tt.wantErr)
			}
		})
	}
}

func TestParseYAML_YAML12Booleans(t *testing.T) {
	// yaml.v3 follows YAML 1.2: "yes" stays a string.
	result := ParseYAML([]byte("a: yes\nb: true\n"))
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Data["a"] != "yes" {
		t.Errorf("a = %#v, want string \"yes\"", result.Data["a"])
	}
	if result.Data["b"] != true {
		t.Errorf("b = %#v, want true", result.Data["b"])
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"job.json":    "json",
		"job.JSON":    "json",
		"job.yaml":    "yaml",
		"job.yml":     "yaml",
		"job.txt":     "",
		"job":         "",
		"dir.yaml/x":  "",
		"a/b/job.Yml": "yaml",
	}
	for path, want := range tests {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsJSONAndIsYAML(t *testing.T) {
	if !IsJSON([]byte("  {\"a\": 1}")) {
		t.Error("IsJSON should accept an object")
	}
	if IsJSON([]byte("a: 1")) {
		t.Error("IsJSON should reject YAML")
	}
	if !IsYAML([]byte("a: 1")) {
		t.Error("IsYAML should accept a mapping")
	}
	if IsYAML([]byte("   ")) {
		t.Error("IsYAML should reject blank content")
	}
}

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ParseError
		want string
	}{
		{"message only", ParseError{Message: "bad"}, "bad"},
		{"with path", ParseError{Path: "job.yaml", Message: "bad"}, "job.yaml: bad"},
		{"with line", ParseError{Path: "job.yaml", Line: 3, Message: "bad"}, "job.yaml: line 3: bad"},
		{"with column", ParseError{Line: 3, Column: 7, Message: "bad"}, "line 3, column 7: bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_Err(t *testing.T) {
	valid := &Result{}
	if valid.Err() != nil {
		t.Errorf("Err() on valid result = %v", valid.Err())
	}

	invalid := &Result{
		FilePath: "job.yaml",
		ValidationErrors: []ValidationError{
			{Path: "/job", Type: "required", Message: "missing property 'fileList'"},
			{Path: "/job/workers", Type: "minimum", Message: "must be >= 1"},
		},
	}
	err := invalid.Err()
	if errhandling.GetErrorCategory(err) != errhandling.CategoryValidation {
		t.Errorf("category = %v, want validation", errhandling.GetErrorCategory(err))
	}
	for _, want := range []string{"job.yaml", "fileList", "/job/workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Err() = %q, want to contain %q", err.Error(), want)
		}
	}
	if len(invalid.AllErrors()) != 2 {
		t.Errorf("AllErrors() len = %d, want 2", len(invalid.AllErrors()))
	}
}
