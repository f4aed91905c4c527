// Package errhandling provides error types and classification for job startup and execution.
// Startup errors (malformed or missing inputs) are fatal: the job aborts before any
// event is processed. An event whose run is absent from the whitelist is not an error.
package errhandling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrorCategory represents the type/category of an error.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryConfigFormat represents a malformed certification document, manifest or job file.
	CategoryConfigFormat ErrorCategory = "config_format"

	// CategoryMissingFile represents a referenced input that does not exist.
	CategoryMissingFile ErrorCategory = "missing_file"

	// CategoryValidation represents a structurally valid but inconsistent configuration.
	CategoryValidation ErrorCategory = "validation"

	// CategoryIO represents read/write failures other than a missing file.
	CategoryIO ErrorCategory = "io"

	// CategoryCanceled represents a user-initiated cancellation or deadline.
	CategoryCanceled ErrorCategory = "canceled"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ConfigFormatError reports a malformed input file and the entry that failed.
type ConfigFormatError struct {
	// File is the input file path
	File string
	// Entry names the offending entry (a run number, "line 12", a JSON path)
	Entry string
	// Line is the 1-based line number, 0 if unknown
	Line int
	// Message describes what is wrong
	Message string
	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface.
func (e *ConfigFormatError) Error() string {
	msg := e.Message
	if e.Entry != "" {
		msg = fmt.Sprintf("entry %s: %s", e.Entry, msg)
	}
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	return "format error: " + msg
}

// Unwrap returns the underlying error.
func (e *ConfigFormatError) Unwrap() error {
	return e.Err
}

// MissingFileError reports that a referenced input file does not exist.
type MissingFileError struct {
	// File is the path that could not be found
	File string
	// Role describes what the file is for ("certification document", "file list", ...)
	Role string
	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *MissingFileError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("missing %s: %s", e.Role, e.File)
	}
	return "missing file: " + e.File
}

// Unwrap returns the underlying error.
func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// NewConfigFormatError creates a ConfigFormatError.
func NewConfigFormatError(file, entry, message string, err error) *ConfigFormatError {
	return &ConfigFormatError{File: file, Entry: entry, Message: message, Err: err}
}

// ReadInputFile reads a startup input. A missing path becomes a MissingFileError,
// anything else is wrapped with the file name.
func ReadInputFile(path, role string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapOpenError(path, role, err)
	}
	return data, nil
}

// WrapOpenError converts an open/read error for path into a typed error.
func WrapOpenError(path, role string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &MissingFileError{File: path, Role: role, Err: err}
	}
	return fmt.Errorf("reading %s %s: %w", role, path, err)
}

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// NewValidationError creates a ClassifiedError for an inconsistent configuration.
func NewValidationError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryValidation,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// ClassifyError classifies any error into a ClassifiedError.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{
			Category: CategoryUnknown,
			Message:  "nil error",
		}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var formatErr *ConfigFormatError
	if errors.As(err, &formatErr) {
		return &ClassifiedError{Category: CategoryConfigFormat, Message: err.Error(), OriginalErr: err}
	}

	var missingErr *MissingFileError
	if errors.As(err, &missingErr) {
		return &ClassifiedError{Category: CategoryMissingFile, Message: err.Error(), OriginalErr: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Category: CategoryCanceled, Message: err.Error(), OriginalErr: err}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &ClassifiedError{Category: CategoryIO, Message: err.Error(), OriginalErr: err}
	}

	return &ClassifiedError{
		Category:    CategoryUnknown,
		Message:     err.Error(),
		OriginalErr: err,
	}
}

// GetErrorCategory returns the error category for a given error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	return ClassifyError(err).Category
}

// IsFatal returns true if the error must abort the job at startup.
// Fatal categories: ConfigFormat, MissingFile, Validation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	switch GetErrorCategory(err) {
	case CategoryConfigFormat, CategoryMissingFile, CategoryValidation:
		return true
	default:
		return false
	}
}

// Process exit codes used by the CLI.
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

// ExitCode maps an error onto a CLI exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch GetErrorCategory(err) {
	case CategoryConfigFormat, CategoryMissingFile:
		return ExitParseError
	case CategoryValidation:
		return ExitValidationError
	default:
		return ExitRuntimeError
	}
}
