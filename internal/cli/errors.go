// Package cli provides CLI output formatting and display functions.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/opendata-tools/zeejob/internal/config"
	"github.com/opendata-tools/zeejob/internal/errhandling"
)

// PrintParseErrors prints parse errors to w.
func PrintParseErrors(w io.Writer, errs []config.ParseError, verbose bool) {
	fmt.Fprintln(w, "✗ Parse errors:")
	for _, err := range errs {
		printSingleParseError(w, err, verbose)
	}
}

// printSingleParseError prints a single parse error with location information.
func printSingleParseError(w io.Writer, err config.ParseError, verbose bool) {
	location := formatErrorLocation(err.Path, err.Line, err.Column)

	if location != "" {
		fmt.Fprintf(w, "  %s: %s\n", location, err.Message)
	} else {
		fmt.Fprintf(w, "  %s\n", err.Message)
	}

	if verbose && err.Type != "" {
		fmt.Fprintf(w, "    Type: %s\n", err.Type)
	}
}

// formatErrorLocation formats the error location string (path:line:column).
func formatErrorLocation(path string, line, column int) string {
	if path == "" {
		return ""
	}

	location := path
	if line > 0 {
		location += fmt.Sprintf(":%d", line)
		if column > 0 {
			location += fmt.Sprintf(":%d", column)
		}
	}
	return location
}

// PrintValidationErrors prints validation errors to w.
func PrintValidationErrors(w io.Writer, errs []config.ValidationError, verbose, quiet bool) {
	fmt.Fprintln(w, "✗ Validation errors:")
	for _, err := range errs {
		printSingleValidationError(w, err, verbose)
	}
	printValidationHint(w, verbose, quiet)
}

// printSingleValidationError prints a single validation error.
func printSingleValidationError(w io.Writer, err config.ValidationError, verbose bool) {
	path := err.Path
	if path == "" {
		path = "/"
	}

	if verbose {
		fmt.Fprintf(w, "  %s:\n", path)
		fmt.Fprintf(w, "    Message: %s\n", err.Message)
		if err.Type != "" {
			fmt.Fprintf(w, "    Type: %s\n", err.Type)
		}
		return
	}

	shortMsg := err.Message
	if len(shortMsg) > 80 {
		shortMsg = shortMsg[:77] + "..."
	}
	fmt.Fprintf(w, "  %s: %s\n", path, shortMsg)
}

// printValidationHint prints a hint about verbose mode.
func printValidationHint(w io.Writer, verbose, quiet bool) {
	if !verbose && !quiet {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Hint: Use --verbose for detailed error information")
	}
}

// PrintStartupError prints an error that aborted the job before any event
// was processed, naming the offending input where one is known.
func PrintStartupError(w io.Writer, err error) {
	var formatErr *errhandling.ConfigFormatError
	var missingErr *errhandling.MissingFileError
	switch {
	case errors.As(err, &formatErr):
		fmt.Fprintln(w, "✗ Malformed input:")
		fmt.Fprintf(w, "  File: %s\n", formatErr.File)
		if formatErr.Entry != "" {
			fmt.Fprintf(w, "  Entry: %s\n", formatErr.Entry)
		}
		fmt.Fprintf(w, "  Error: %s\n", formatErr.Message)
	case errors.As(err, &missingErr):
		fmt.Fprintln(w, "✗ Missing input:")
		fmt.Fprintf(w, "  %s: %s\n", missingErr.Role, missingErr.File)
	default:
		fmt.Fprintf(w, "✗ %s\n", err)
	}
}
