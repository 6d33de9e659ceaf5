package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
)

var ErrInvalidExpression = errors.New("invalid expression")

// EvaluateExpression computes a free-form arithmetic expression such as
// "2+3*4". Nothing is persisted; this backs the scratchpad endpoint only.
// Expressions that do not evaluate to a finite number are rejected, which
// covers division by zero (govaluate yields +Inf rather than an error).
func EvaluateExpression(expr string) (float64, error) {
	parsed, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	value, err := parsed.Evaluate(nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	result, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: expression is not numeric", ErrInvalidExpression)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrInvalidExpression)
	}
	return result, nil
}
