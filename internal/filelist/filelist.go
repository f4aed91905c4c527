// Package filelist loads the manifest of input dataset files.
package filelist

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/logger"
)

// Role names the manifest in error messages.
const Role = "file list"

// supportedSchemes lists the locator schemes the host input source can open.
// An empty scheme is a plain path or a logical file name.
var supportedSchemes = map[string]bool{
	"":      true,
	"root":  true,
	"file":  true,
	"http":  true,
	"https": true,
	"davs":  true,
}

// List is an ordered, immutable sequence of dataset-file locators.
type List struct {
	source   string
	locators []string
}

// Load reads a manifest from path.
func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errhandling.WrapOpenError(path, Role, err)
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse reads one locator per line from r, preserving order. Blank lines are
// skipped. A manifest without any locator is rejected.
func Parse(r io.Reader, source string) (*List, error) {
	l := &List{source: source}
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		loc := strings.TrimSpace(scanner.Text())
		if loc == "" {
			continue
		}
		if err := checkLocator(loc); err != nil {
			fe := errhandling.NewConfigFormatError(source, fmt.Sprintf("line %d", lineNo), err.Error(), err)
			fe.Line = lineNo
			return nil, fe
		}
		if first, dup := seen[loc]; dup {
			logger.Warn("duplicate locator in file list",
				slog.String("file", source),
				slog.String("locator", loc),
				slog.Int("line", lineNo),
				slog.Int("first_line", first),
			)
		} else {
			seen[loc] = lineNo
		}
		l.locators = append(l.locators, loc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", Role, source, err)
	}

	if len(l.locators) == 0 {
		return nil, errhandling.NewConfigFormatError(source, "", "manifest is empty", nil)
	}

	logger.Debug("loaded file list",
		slog.String("file", source),
		slog.Int("locators", len(l.locators)),
	)
	return l, nil
}

func checkLocator(loc string) error {
	if strings.ContainsAny(loc, " \t\x00") {
		return fmt.Errorf("locator %q contains whitespace or NUL", loc)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return fmt.Errorf("invalid locator %q: %w", loc, err)
	}
	if !supportedSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("locator %q uses unsupported scheme %q", loc, u.Scheme)
	}
	return nil
}

// Source returns the manifest path the list was read from.
func (l *List) Source() string {
	return l.source
}

// Locators returns a copy of the locators in manifest order.
func (l *List) Locators() []string {
	return append([]string(nil), l.locators...)
}

// Len returns the number of locators.
func (l *List) Len() int {
	return len(l.locators)
}
