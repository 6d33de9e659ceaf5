package calculator

import (
	"errors"
	"math"
	"testing"
)

func TestComputeFoldsOperands(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		operands []float64
		want     float64
	}{
		{"add two", KindAdd, []float64{2, 2}, 4},
		{"add many", KindAdd, []float64{10, 5, 2}, 17},
		{"subtract", KindSubtract, []float64{10, 3, 2}, 5},
		{"subtract negative result", KindSubtract, []float64{3, 10}, -7},
		{"multiply", KindMultiply, []float64{2, 3, 4}, 24},
		{"multiply by zero", KindMultiply, []float64{5, 0}, 0},
		{"divide", KindDivide, []float64{100, 2, 5}, 10},
		{"divide fractional", KindDivide, []float64{1, 3}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.kind, tt.operands)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestComputeRejectsZeroDivisor(t *testing.T) {
	_, err := Compute(KindDivide, []float64{10, 0})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}

	// A zero divisor anywhere after the first operand is rejected.
	_, err = Compute(KindDivide, []float64{100, 2, 0, 5})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero for middle divisor, got %v", err)
	}

	// A zero dividend is fine.
	got, err := Compute(KindDivide, []float64{0, 4})
	if err != nil {
		t.Fatalf("unexpected error for zero dividend: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestComputeRejectsTooFewOperands(t *testing.T) {
	for _, operands := range [][]float64{nil, {}, {1}} {
		if _, err := Compute(KindAdd, operands); !errors.Is(err, ErrTooFewOperands) {
			t.Fatalf("expected ErrTooFewOperands for %v, got %v", operands, err)
		}
	}
}

func TestComputeRejectsNonFiniteOperands(t *testing.T) {
	for _, operands := range [][]float64{
		{math.NaN(), 1},
		{1, math.Inf(1)},
		{1, math.Inf(-1), 2},
	} {
		if _, err := Compute(KindAdd, operands); !errors.Is(err, ErrNotFinite) {
			t.Fatalf("expected ErrNotFinite for %v, got %v", operands, err)
		}
	}

	// Finite operands whose fold overflows are rejected as well.
	if _, err := Compute(KindMultiply, []float64{math.MaxFloat64, 2}); !errors.Is(err, ErrNotFinite) {
		t.Fatalf("expected ErrNotFinite for overflowing fold, got %v", err)
	}
}

func TestComputeRejectsUnknownKind(t *testing.T) {
	if _, err := Compute(Kind("modulo"), []float64{4, 2}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"add", "subtract", "multiply", "divide"} {
		kind, err := ParseKind(s)
		if err != nil {
			t.Fatalf("ParseKind(%q) returned error: %v", s, err)
		}
		if string(kind) != s {
			t.Fatalf("ParseKind(%q) = %q", s, kind)
		}
	}

	for _, s := range []string{"", "addition", "ADD", "pow"} {
		if _, err := ParseKind(s); !errors.Is(err, ErrUnknownKind) {
			t.Fatalf("expected ErrUnknownKind for %q, got %v", s, err)
		}
	}
}

func TestEvaluateExpression(t *testing.T) {
	got, err := EvaluateExpression("2+3*4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 14 {
		t.Fatalf("expected 14, got %v", got)
	}

	got, err = EvaluateExpression("(100/2)/5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestEvaluateExpressionRejectsInvalidInput(t *testing.T) {
	for _, expr := range []string{"2++2", "", "1/0", "1 > 0"} {
		if _, err := EvaluateExpression(expr); !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("expected ErrInvalidExpression for %q, got %v", expr, err)
		}
	}
}
