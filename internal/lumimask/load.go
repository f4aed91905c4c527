package lumimask

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/pkg/job"
)

const schemaURL = "https://zeejob.opendata-tools.org/schemas/certification/v1/certification-schema.json"

//go:embed schema/certification-schema.json
var embeddedSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaInitErr  error
)

var printer = message.NewPrinter(language.English)

func getCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchema))
		if err != nil {
			schemaInitErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			schemaInitErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, schemaInitErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaInitErr
}

// LoadFile reads and parses a certification document from disk.
func LoadFile(path string) (*Set, error) {
	data, err := errhandling.ReadInputFile(path, "certification document")
	if err != nil {
		return nil, err
	}
	s, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	logger.WithFile("certification document", path).Debug("loaded certification document",
		slog.Int("runs", s.NumRuns()),
		slog.Int("ranges", s.NumRanges()),
		slog.Int("lumis", s.NumLumis()),
	)
	return s, nil
}

// Parse decodes a certification document: a JSON object mapping decimal run
// numbers to lists of inclusive [firstLumi, lastLumi] pairs. The first
// malformed entry aborts parsing with a *errhandling.ConfigFormatError that
// names the offending run. source is only used in error messages.
func Parse(data []byte, source string) (*Set, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errhandling.NewConfigFormatError(source, "", "certification document is empty", nil)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, syntaxError(source, data, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errhandling.NewConfigFormatError(source, "",
			fmt.Sprintf("expected a JSON object of runs, got %s", jsonKind(doc)), nil)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if n, err := strconv.ParseUint(k, 10, 32); err != nil || n == 0 {
			return nil, errhandling.NewConfigFormatError(source, "run "+strconv.Quote(k),
				"run number must be a positive 32-bit integer", err)
		}
	}

	if err := checkDuplicateRuns(data, source); err != nil {
		return nil, err
	}

	schema, err := getCompiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaError(source, err)
	}

	runs := make(map[uint32][]job.LumiRange, len(obj))
	for _, k := range keys {
		run, _ := strconv.ParseUint(k, 10, 32)
		pairs := obj[k].([]any)
		ranges := make([]job.LumiRange, 0, len(pairs))
		for _, p := range pairs {
			pair := p.([]any)
			first, err := lumiNumber(pair[0])
			if err != nil {
				return nil, errhandling.NewConfigFormatError(source, "run "+k, err.Error(), err)
			}
			last, err := lumiNumber(pair[1])
			if err != nil {
				return nil, errhandling.NewConfigFormatError(source, "run "+k, err.Error(), err)
			}
			ranges = append(ranges, job.LumiRange{First: first, Last: last})
		}
		runs[uint32(run)] = ranges
	}

	s, err := New(runs)
	if err != nil {
		var fe *errhandling.ConfigFormatError
		if errors.As(err, &fe) && fe.File == "" {
			fe.File = source
		}
		return nil, err
	}
	return s, nil
}

// checkDuplicateRuns rejects a document that lists the same run twice.
// Decoding into a map keeps only the last copy, so the keys are scanned from
// the raw document. data must already be a syntactically valid JSON object.
func checkDuplicateRuns(data []byte, source string) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return syntaxError(source, data, err)
	}

	seen := make(map[uint64]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return syntaxError(source, data, err)
		}
		key, _ := tok.(string)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return syntaxError(source, data, err)
		}

		run, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			continue
		}
		if prev, dup := seen[run]; dup {
			msg := fmt.Sprintf("run %d is listed more than once", run)
			if prev != key {
				msg = fmt.Sprintf("run %d is listed more than once (as %q and %q)", run, prev, key)
			}
			return errhandling.NewConfigFormatError(source, fmt.Sprintf("run %d", run), msg, nil)
		}
		seen[run] = key
	}
	return nil
}

func lumiNumber(v any) (uint32, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("lumi number must be an integer, got %v", v)
	}
	if n, err := strconv.ParseUint(num.String(), 10, 32); err == nil {
		return uint32(n), nil
	}
	// Integral values may be written with a fraction or exponent (1.0, 1e3).
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f < 1 || f > math.MaxUint32 {
		return 0, fmt.Errorf("lumi number %s is out of range", num)
	}
	return uint32(f), nil
}

func syntaxError(source string, data []byte, err error) error {
	fe := errhandling.NewConfigFormatError(source, "", "invalid JSON: "+err.Error(), err)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fe.Line = lineOf(data, syntaxErr.Offset)
		fe.Entry = fmt.Sprintf("line %d", fe.Line)
	} else if errors.Is(err, io.ErrUnexpectedEOF) {
		fe.Message = "invalid JSON: unexpected end of document"
	}
	return fe
}

func lineOf(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte{'\n'}) + 1
}

// schemaError reports the first leaf violation in document order.
func schemaError(source string, err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return errhandling.NewConfigFormatError(source, "", err.Error(), err)
	}

	leaves := leafCauses(ve, nil)
	sort.SliceStable(leaves, func(i, j int) bool {
		return locationLess(leaves[i].InstanceLocation, leaves[j].InstanceLocation)
	})
	first := leaves[0]

	entry := ""
	if len(first.InstanceLocation) > 0 {
		entry = "run " + first.InstanceLocation[0]
	}
	msg := first.ErrorKind.LocalizedString(printer)
	if len(first.InstanceLocation) > 1 {
		msg = fmt.Sprintf("at /%s: %s", strings.Join(first.InstanceLocation, "/"), msg)
	}
	if len(leaves) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(leaves)-1)
	}
	return errhandling.NewConfigFormatError(source, entry, msg, err)
}

func leafCauses(ve *jsonschema.ValidationError, acc []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(acc, ve)
	}
	for _, c := range ve.Causes {
		acc = leafCauses(c, acc)
	}
	return acc
}

// locationLess orders instance locations numerically where both segments are numbers.
func locationLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		na, errA := strconv.ParseUint(a[i], 10, 64)
		nb, errB := strconv.ParseUint(b[i], 10, 64)
		if errA == nil && errB == nil {
			return na < nb
		}
		return a[i] < b[i]
	}
	return len(a) < len(b)
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
