package calculator

import (
	"errors"
	"fmt"
	"math"
)

// Kind identifies one of the supported arithmetic operations.
type Kind string

const (
	KindAdd      Kind = "add"
	KindSubtract Kind = "subtract"
	KindMultiply Kind = "multiply"
	KindDivide   Kind = "divide"
)

// MinOperands is the smallest operand list any kind accepts.
const MinOperands = 2

var (
	ErrUnknownKind    = errors.New("unknown operation kind")
	ErrTooFewOperands = errors.New("at least two operands are required")
	ErrNotFinite      = errors.New("operands must be finite numbers")
	ErrDivisionByZero = errors.New("division by zero")
)

// ParseKind validates a wire string against the supported kinds.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAdd, KindSubtract, KindMultiply, KindDivide:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Compute folds the operands left to right under the given kind:
// add [10,5,2] = 17, subtract [10,3,2] = 5, multiply [2,3,4] = 24,
// divide [100,2,5] = 10. A zero divisor is rejected before any arithmetic
// happens, and a fold that leaves float64 range is rejected too, so a nil
// error always comes with a finite result.
func Compute(kind Kind, operands []float64) (float64, error) {
	if len(operands) < MinOperands {
		return 0, ErrTooFewOperands
	}
	for _, op := range operands {
		if math.IsNaN(op) || math.IsInf(op, 0) {
			return 0, ErrNotFinite
		}
	}

	acc := operands[0]
	for _, op := range operands[1:] {
		switch kind {
		case KindAdd:
			acc += op
		case KindSubtract:
			acc -= op
		case KindMultiply:
			acc *= op
		case KindDivide:
			if op == 0 {
				return 0, ErrDivisionByZero
			}
			acc /= op
		default:
			return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
	}
	if math.IsNaN(acc) || math.IsInf(acc, 0) {
		return 0, ErrNotFinite
	}
	return acc, nil
}
