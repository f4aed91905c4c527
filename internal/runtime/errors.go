package runtime

import (
	"errors"
	"fmt"

	"github.com/opendata-tools/zeejob/internal/errhandling"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// Error codes for job execution errors
const (
	ErrCodeSourceFailed    = "SOURCE_FAILED"
	ErrCodePrefilterFailed = "PREFILTER_FAILED"
	ErrCodeFilterFailed    = "FILTER_FAILED"
	ErrCodeOutputFailed    = "OUTPUT_FAILED"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeCanceled        = "CANCELED"
)

// Stage names reported in errors and logs.
const (
	StageSource    = "source"
	StagePrefilter = "prefilter"
	StageFilter    = "filter"
	StageOutput    = "output"
)

// Common errors
var (
	// ErrNilSource is returned when the executor has no event source
	ErrNilSource = errors.New("event source is nil")

	// ErrNilStep is returned when the executor has no filter step
	ErrNilStep = errors.New("filter step is nil")
)

// StageError ties an execution failure to the stage and, when known, the
// event being processed.
type StageError struct {
	Code  string
	Stage string
	Event *job.EventID
	Err   error
}

func (e *StageError) Error() string {
	if e.Event != nil {
		return fmt.Sprintf("%s stage failed at event %s: %v", e.Stage, e.Event, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(code, stage string, id *job.EventID, err error) *StageError {
	return &StageError{Code: code, Stage: stage, Event: id, Err: err}
}

// buildExecutionError creates an ExecutionError with classified category.
func buildExecutionError(err error) *job.ExecutionError {
	ex := &job.ExecutionError{Message: err.Error()}

	var se *StageError
	if errors.As(err, &se) {
		ex.Code = se.Code
		ex.Stage = se.Stage
		if se.Event != nil {
			ex.Details = map[string]interface{}{"event": se.Event.String()}
		}
	}

	cl := errhandling.ClassifyError(err)
	ex.ErrorCategory = string(cl.Category)
	if cl.Category == errhandling.CategoryCanceled {
		ex.Code = ErrCodeCanceled
	}
	return ex
}
