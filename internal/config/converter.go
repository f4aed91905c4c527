package config

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/internal/pathutil"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// ConvertToJob converts a parsed job document into a job.Config.
// The document should have been validated against the schema before calling
// this function. Relative lumiMask, fileList and csvFileName paths are
// resolved against baseDir.
//
// The document is expected to have this structure:
//
//	{
//	  "schemaVersion": "1.0",
//	  "job": {
//	    "name": "...",
//	    "lumiMask": "...",
//	    "fileList": "...",
//	    "filter": {...}
//	  }
//	}
func ConvertToJob(data map[string]interface{}, baseDir string) (*job.Config, error) {
	if data == nil {
		return nil, errhandling.NewValidationError("configuration data is nil", nil)
	}

	jobData, ok := data["job"].(map[string]interface{})
	if !ok {
		return nil, errhandling.NewValidationError("missing or invalid 'job' section", nil)
	}

	b := job.NewBuilder()

	if name, ok := jobData["name"].(string); ok {
		b.Name(name)
	}
	if process, ok := jobData["process"].(string); ok {
		b.Process(process)
	}

	for _, ref := range []struct {
		key string
		set func(string) *job.Builder
	}{
		{"lumiMask", b.LumiMask},
		{"fileList", b.FileList},
	} {
		p, ok := jobData[ref.key].(string)
		if !ok {
			continue
		}
		resolved, err := pathutil.Resolve(baseDir, p)
		if err != nil {
			return nil, errhandling.NewValidationError(fmt.Sprintf("job.%s: %v", ref.key, err), err)
		}
		ref.set(resolved)
	}

	if v, present := jobData["maxEvents"]; present {
		n, err := intValue(v)
		if err != nil {
			return nil, errhandling.NewValidationError("job.maxEvents: "+err.Error(), err)
		}
		b.MaxEvents(n)
	}
	if v, present := jobData["workers"]; present {
		n, err := intValue(v)
		if err != nil {
			return nil, errhandling.NewValidationError("job.workers: "+err.Error(), err)
		}
		b.Workers(n)
	}
	if sel, ok := jobData["selection"].(string); ok {
		b.Selection(sel)
	}

	if filterData, ok := jobData["filter"].(map[string]interface{}); ok {
		if err := convertFilter(b, filterData, baseDir); err != nil {
			return nil, err
		}
	}

	cfg, err := b.Build()
	if err != nil {
		return nil, errhandling.NewValidationError(err.Error(), err)
	}
	return cfg, nil
}

func convertFilter(b *job.Builder, data map[string]interface{}, baseDir string) error {
	if t, ok := data["type"].(string); ok {
		b.FilterType(t)
	}
	if tag, ok := data["electronInputTag"].(string); ok {
		b.ElectronInputTag(tag)
	}
	if name, ok := data["csvFileName"].(string); ok {
		if err := pathutil.ValidateOutputName(name); err != nil {
			return errhandling.NewValidationError("job.filter.csvFileName: "+err.Error(), err)
		}
		resolved, err := pathutil.Resolve(baseDir, name)
		if err != nil {
			return errhandling.NewValidationError("job.filter.csvFileName: "+err.Error(), err)
		}
		b.CSVFileName(resolved)
	}

	defaults := job.DefaultFilterParameters()
	lo, hi := defaults.InvariantMassMin, defaults.InvariantMassMax
	_, hasMin := data["invariantMassMin"]
	_, hasMax := data["invariantMassMax"]
	if hasMin {
		v, err := floatValue(data["invariantMassMin"])
		if err != nil {
			return errhandling.NewValidationError("job.filter.invariantMassMin: "+err.Error(), err)
		}
		lo = v
	}
	if hasMax {
		v, err := floatValue(data["invariantMassMax"])
		if err != nil {
			return errhandling.NewValidationError("job.filter.invariantMassMax: "+err.Error(), err)
		}
		hi = v
	}
	if hasMin || hasMax {
		b.InvariantMassWindow(lo, hi)
	}
	return nil
}

// intValue accepts the integer representations produced by the JSON and YAML decoders.
func intValue(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("value %d is out of range", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, fmt.Errorf("expected an integer, got %g", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %s", n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func floatValue(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
