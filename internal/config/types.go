// Package config parses and validates job configuration files (JSON/YAML)
// and converts them into an immutable job.Config.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opendata-tools/zeejob/internal/errhandling"
)

// Parse error types.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)

// ParseResult contains the result of parsing a configuration file.
type ParseResult struct {
	// Data contains the parsed configuration as a map
	Data map[string]interface{}
	// Errors contains any parsing errors encountered
	Errors []ParseError
	// FilePath is the path to the parsed file (empty if parsed from bytes)
	FilePath string
	// Format indicates the detected format (json, yaml)
	Format string
}

// IsValid returns true if no parsing errors occurred.
func (r *ParseResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ParseError represents a parsing error with location information.
type ParseError struct {
	// Path is the file path where the error occurred
	Path string
	// Line is the line number (1-based, 0 if unknown)
	Line int
	// Column is the column number (1-based, 0 if unknown)
	Column int
	// Offset is the byte offset in the file (0 if unknown)
	Offset int64
	// Message is the error message
	Message string
	// Type categorizes the error (syntax, io, format)
	Type string
}

// Error implements the error interface.
func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d", e.Line))
		if e.Column > 0 {
			sb.WriteString(fmt.Sprintf(", column %d", e.Column))
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationResult contains the result of validating a configuration.
type ValidationResult struct {
	// Valid indicates whether the configuration is valid
	Valid bool
	// Errors contains validation errors
	Errors []ValidationError
}

// ValidationError represents a schema validation error.
type ValidationError struct {
	// Path is the JSON pointer of the offending value (e.g. "/job/filter/csvFileName")
	Path string
	// Type is the failing schema keyword (required, type, pattern, minimum, ...)
	Type string
	// Message is the error message
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Result contains the combined result of parsing and validation.
type Result struct {
	// Data contains the parsed and validated configuration
	Data map[string]interface{}
	// ParseErrors contains parsing errors
	ParseErrors []ParseError
	// ValidationErrors contains validation errors
	ValidationErrors []ValidationError
	// FilePath is the path to the configuration file
	FilePath string
	// Format is the detected format (json, yaml)
	Format string
}

// IsValid returns true if no errors occurred.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0
}

// AllErrors returns all errors (parsing and validation) as a single slice.
func (r *Result) AllErrors() []error {
	errs := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errs = append(errs, e)
	}
	for _, e := range r.ValidationErrors {
		errs = append(errs, e)
	}
	return errs
}

// Err folds the result into a single classified error, nil when valid.
// Parse errors become a *errhandling.ConfigFormatError for the first failure;
// schema violations become a validation error listing every violation.
func (r *Result) Err() error {
	if len(r.ParseErrors) > 0 {
		first := r.ParseErrors[0]
		fe := errhandling.NewConfigFormatError(r.FilePath, "", first.Message, first)
		if first.Line > 0 {
			fe.Line = first.Line
			fe.Entry = fmt.Sprintf("line %d", first.Line)
		}
		return fe
	}
	if len(r.ValidationErrors) > 0 {
		msgs := make([]string, len(r.ValidationErrors))
		errs := make([]error, len(r.ValidationErrors))
		for i, e := range r.ValidationErrors {
			msgs[i] = e.Error()
			errs[i] = e
		}
		msg := strings.Join(msgs, "; ")
		if r.FilePath != "" {
			msg = r.FilePath + ": " + msg
		}
		return errhandling.NewValidationError(msg, errors.Join(errs...))
	}
	return nil
}
