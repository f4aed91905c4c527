package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// Error codes for the selection stage
const (
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluationFailed  = "EVALUATION_FAILED"
	ErrCodeEventOutOfRange   = "EVENT_OUT_OF_RANGE"
)

var (
	// ErrEmptyExpression is returned when a selection has no expression.
	ErrEmptyExpression = errors.New("expression cannot be empty")
	// ErrInvalidExpression is returned when the expression does not compile.
	ErrInvalidExpression = errors.New("invalid expression syntax")
	// ErrEventOutOfRange is returned for event numbers the expression
	// language cannot represent.
	ErrEventOutOfRange = errors.New("event number exceeds the selection integer range")
)

// selectionEnv is the set of variables a selection expression can reference.
// expr evaluates integers as int, so event numbers above math.MaxInt64 are
// rejected before evaluation instead of wrapping negative.
type selectionEnv struct {
	Run   int `expr:"run"`
	Lumi  int `expr:"lumi"`
	Event int `expr:"event"`
}

// SelectionError carries structured context for selection failures.
type SelectionError struct {
	Code       string
	Message    string
	Expression string
	Event      job.EventID
	Err        error
}

func (e *SelectionError) Error() string {
	return e.Message
}

func (e *SelectionError) Unwrap() error {
	return e.Err
}

// Selection keeps events for which a boolean expression over run, lumi and
// event holds, e.g. "run >= 160404 && lumi < 500" or "run in [160404, 160405]".
type Selection struct {
	expression string
	program    *vm.Program
}

// NewSelection compiles expression. Unknown variables, non-boolean results
// and syntax errors are reported here rather than per event.
func NewSelection(expression string) (*Selection, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmptyExpression
	}

	program, err := expr.Compile(expression, expr.Env(selectionEnv{}), expr.AsBool())
	if err != nil {
		return nil, &SelectionError{
			Code:       ErrCodeInvalidExpression,
			Message:    fmt.Sprintf("%v: %v", ErrInvalidExpression, err),
			Expression: expression,
			Err:        errors.Join(ErrInvalidExpression, err),
		}
	}

	logger.Debug("selection stage initialized",
		slog.String("expression", expression),
	)

	return &Selection{expression: expression, program: program}, nil
}

// Expression returns the source expression.
func (s *Selection) Expression() string {
	return s.expression
}

// Filter implements Module.
func (s *Selection) Filter(_ context.Context, id job.EventID) (bool, error) {
	if id.Event > math.MaxInt64 {
		return false, &SelectionError{
			Code:       ErrCodeEventOutOfRange,
			Message:    fmt.Sprintf("cannot evaluate selection at event %s: %v", id, ErrEventOutOfRange),
			Expression: s.expression,
			Event:      id,
			Err:        ErrEventOutOfRange,
		}
	}
	env := selectionEnv{Run: int(id.Run), Lumi: int(id.Lumi), Event: int(id.Event)}
	output, err := expr.Run(s.program, env)
	if err != nil {
		return false, &SelectionError{
			Code:       ErrCodeEvaluationFailed,
			Message:    fmt.Sprintf("selection evaluation failed at event %s: %v", id, err),
			Expression: s.expression,
			Event:      id,
			Err:        err,
		}
	}
	return output.(bool), nil
}

var _ Module = (*Selection)(nil)
