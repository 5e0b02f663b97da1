// Package simbase builds and holds covariance-based simulation bases: the
// per-variable moments and correlation structure, in transformed space,
// that drive conditional simulation.
package simbase

import (
	"fmt"
	"math"

	"timbersim/domain/core"
	"timbersim/domain/table"
	"timbersim/domain/transform"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Basis is an immutable simulation basis: mean, sd and correlation of the
// transformed reference values for an ordered variable set.
type Basis struct {
	Variables  []core.VariableKey
	Transforms transform.Map
	Mean       []float64
	SD         []float64
	Corr       *mat.SymDense
	N          int // reference rows used; 0 when built from raw moments
}

const diagTolerance = 1e-9

// Build estimates a basis from reference data. Rows with a missing value in
// any of the chosen variables are rejected rather than imputed.
func Build(ref *table.Table, variables []core.VariableKey, transforms transform.Map) (*Basis, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("%w: no variables requested", core.ErrInvalidMoments)
	}
	seen := make(map[core.VariableKey]bool, len(variables))
	for _, v := range variables {
		if seen[v] {
			return nil, fmt.Errorf("%w: duplicate variable %s", core.ErrInvalidMoments, v)
		}
		seen[v] = true
	}

	cols := make([][]float64, len(variables))
	for i, v := range variables {
		col, ok := ref.Numeric(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrVariableNotFound, v)
		}
		cols[i] = col
	}

	// Complete-case filter over the chosen variables.
	usable := make([]int, 0, ref.RowCount())
	for row := 0; row < ref.RowCount(); row++ {
		complete := true
		for _, col := range cols {
			if table.IsMissing(col[row]) {
				complete = false
				break
			}
		}
		if complete {
			usable = append(usable, row)
		}
	}
	if len(usable) <= len(variables) {
		return nil, core.NewInsufficientDataError(len(usable), len(variables))
	}

	k := len(variables)
	n := len(usable)
	data := mat.NewDense(n, k, nil)
	mean := make([]float64, k)
	sd := make([]float64, k)
	for j, v := range variables {
		tf := transforms.For(v)
		column := make([]float64, n)
		for i, row := range usable {
			y, err := tf.Forward(v, cols[j][row])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
			column[i] = y
			data.Set(i, j, y)
		}
		m, err := stats.Mean(column)
		if err != nil {
			return nil, fmt.Errorf("mean of %s: %w", v, err)
		}
		s, err := stats.StandardDeviationSample(column)
		if err != nil {
			return nil, fmt.Errorf("sd of %s: %w", v, err)
		}
		mean[j] = m
		sd[j] = s
	}

	corr := mat.NewSymDense(k, nil)
	stat.CorrelationMatrix(corr, data, nil)

	return &Basis{
		Variables:  append([]core.VariableKey(nil), variables...),
		Transforms: normalizeTransforms(variables, transforms),
		Mean:       mean,
		SD:         sd,
		Corr:       corr,
		N:          n,
	}, nil
}

// FromMoments constructs a basis directly from supplied moments.
func FromMoments(variables []core.VariableKey, transforms transform.Map, mean, sd []float64, corr *mat.SymDense) (*Basis, error) {
	k := len(variables)
	if k == 0 {
		return nil, fmt.Errorf("%w: no variables", core.ErrInvalidMoments)
	}
	if len(mean) != k || len(sd) != k {
		return nil, fmt.Errorf("%w: mean/sd length %d/%d, want %d", core.ErrInvalidMoments, len(mean), len(sd), k)
	}
	if corr == nil || corr.SymmetricDim() != k {
		return nil, fmt.Errorf("%w: correlation dimension mismatch", core.ErrInvalidMoments)
	}
	for i := 0; i < k; i++ {
		if sd[i] < 0 {
			return nil, fmt.Errorf("%w: negative sd for %s", core.ErrInvalidMoments, variables[i])
		}
		if math.Abs(corr.At(i, i)-1) > diagTolerance {
			return nil, fmt.Errorf("%w: correlation diagonal %v at %s", core.ErrInvalidMoments, corr.At(i, i), variables[i])
		}
		for j := i + 1; j < k; j++ {
			if math.Abs(corr.At(i, j)) > 1+diagTolerance {
				return nil, fmt.Errorf("%w: correlation %v between %s and %s outside [-1, 1]",
					core.ErrInvalidMoments, corr.At(i, j), variables[i], variables[j])
			}
		}
	}
	cp := mat.NewSymDense(k, nil)
	cp.CopySym(corr)
	return &Basis{
		Variables:  append([]core.VariableKey(nil), variables...),
		Transforms: normalizeTransforms(variables, transforms),
		Mean:       append([]float64(nil), mean...),
		SD:         append([]float64(nil), sd...),
		Corr:       cp,
	}, nil
}

func normalizeTransforms(variables []core.VariableKey, transforms transform.Map) transform.Map {
	out := make(transform.Map, len(variables))
	for _, v := range variables {
		out[v] = transforms.For(v)
	}
	return out
}

// Index returns the position of a variable within the basis
func (b *Basis) Index(v core.VariableKey) (int, bool) {
	for i, name := range b.Variables {
		if name == v {
			return i, true
		}
	}
	return -1, false
}

// Covariance assembles the covariance matrix from sd and correlation
func (b *Basis) Covariance() *mat.SymDense {
	k := len(b.Variables)
	cov := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			cov.SetSym(i, j, b.SD[i]*b.SD[j]*b.Corr.At(i, j))
		}
	}
	return cov
}

// SameSchema reports whether another basis covers the same variables with
// the same transforms, in the same order
func (b *Basis) SameSchema(other *Basis) bool {
	if len(b.Variables) != len(other.Variables) {
		return false
	}
	for i, v := range b.Variables {
		if other.Variables[i] != v {
			return false
		}
	}
	return b.Transforms.Equal(other.Transforms, b.Variables)
}

// Payload is the flat serializable form of a basis, used at the edges
// (persistence, HTTP). The core always works on Basis.
type Payload struct {
	Variables  []string          `json:"variables"`
	Transforms map[string]string `json:"transforms,omitempty"`
	Mean       []float64         `json:"mean"`
	SD         []float64         `json:"sd"`
	Corr       [][]float64       `json:"correlation"`
	N          int               `json:"n,omitempty"`
}

// ToPayload converts the basis to its serializable form
func (b *Basis) ToPayload() Payload {
	k := len(b.Variables)
	p := Payload{
		Variables:  make([]string, k),
		Transforms: make(map[string]string),
		Mean:       append([]float64(nil), b.Mean...),
		SD:         append([]float64(nil), b.SD...),
		Corr:       make([][]float64, k),
		N:          b.N,
	}
	for i, v := range b.Variables {
		p.Variables[i] = string(v)
		if kind := b.Transforms.For(v).Kind(); kind != transform.Identity {
			p.Transforms[string(v)] = string(kind)
		}
		p.Corr[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			p.Corr[i][j] = b.Corr.At(i, j)
		}
	}
	return p
}

// FromPayload rebuilds a basis from its serializable form, revalidating
// the moment invariants.
func FromPayload(p Payload) (*Basis, error) {
	k := len(p.Variables)
	variables := make([]core.VariableKey, k)
	transforms := make(transform.Map, k)
	for i, name := range p.Variables {
		v, err := core.ParseVariableKey(name)
		if err != nil {
			return nil, err
		}
		variables[i] = v
		tf, err := transform.New(transform.Kind(p.Transforms[name]))
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		transforms[v] = tf
	}
	if len(p.Corr) != k {
		return nil, fmt.Errorf("%w: correlation has %d rows, want %d", core.ErrInvalidMoments, len(p.Corr), k)
	}
	corr := mat.NewSymDense(k, nil)
	for i := range p.Corr {
		if len(p.Corr[i]) != k {
			return nil, fmt.Errorf("%w: correlation row %d has %d entries", core.ErrInvalidMoments, i, len(p.Corr[i]))
		}
		for j := i; j < k; j++ {
			if math.Abs(p.Corr[i][j]-p.Corr[j][i]) > diagTolerance {
				return nil, fmt.Errorf("%w: correlation not symmetric at (%d,%d)", core.ErrInvalidMoments, i, j)
			}
			corr.SetSym(i, j, p.Corr[i][j])
		}
	}
	b, err := FromMoments(variables, transforms, p.Mean, p.SD, corr)
	if err != nil {
		return nil, err
	}
	b.N = p.N
	return b, nil
}
