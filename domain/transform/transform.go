package transform

import (
	"fmt"
	"math"

	"timbersim/domain/core"
)

// Kind enumerates the supported scalar transforms. The set is closed on
// purpose: every kind must validate its own domain exhaustively.
type Kind string

const (
	Identity Kind = "identity"
	Log      Kind = "log"
)

// Transform is an invertible monotone scalar mapping applied to a variable
// before Gaussian modeling. The zero value is the identity transform.
type Transform struct {
	kind Kind
}

// New returns the transform for a kind
func New(kind Kind) (Transform, error) {
	switch kind {
	case "", Identity:
		return Transform{kind: Identity}, nil
	case Log:
		return Transform{kind: Log}, nil
	default:
		return Transform{}, fmt.Errorf("unknown transform kind %q", kind)
	}
}

// MustNew returns the transform for a kind, panicking on unknown kinds.
// Use only for compile-time constant kinds.
func MustNew(kind Kind) Transform {
	tf, err := New(kind)
	if err != nil {
		panic(err)
	}
	return tf
}

// Kind returns the transform's kind tag
func (t Transform) Kind() Kind {
	if t.kind == "" {
		return Identity
	}
	return t.kind
}

// Forward maps a natural-space value into modeling space. The variable key
// is carried for error reporting only.
func (t Transform) Forward(variable core.VariableKey, x float64) (float64, error) {
	switch t.Kind() {
	case Log:
		if x <= 0 {
			return 0, core.NewDomainError(variable, "log", x)
		}
		return math.Log(x), nil
	default:
		return x, nil
	}
}

// Inverse maps a modeling-space value back to natural space
func (t Transform) Inverse(y float64) float64 {
	switch t.Kind() {
	case Log:
		return math.Exp(y)
	default:
		return y
	}
}

// ForwardSlice transforms a column, passing missing values through untouched
func (t Transform) ForwardSlice(variable core.VariableKey, xs []float64) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = x
			continue
		}
		y, err := t.Forward(variable, x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}

// Map is a per-variable transform assignment; absent variables default to identity
type Map map[core.VariableKey]Transform

// For returns the transform registered for a variable, identity if none
func (m Map) For(variable core.VariableKey) Transform {
	if m == nil {
		return Transform{}
	}
	return m[variable]
}

// Equal reports whether two maps assign the same transform to every variable
// of the given set
func (m Map) Equal(other Map, variables []core.VariableKey) bool {
	for _, v := range variables {
		if m.For(v).Kind() != other.For(v).Kind() {
			return false
		}
	}
	return true
}
