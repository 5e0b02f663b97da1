// Package simulate implements the simulation engine: conditional
// multivariate-normal simulation against a fitted basis, anchor sampling
// strategies, and whole-dataset generation.
package simulate

import (
	"fmt"
	"math"
	"math/rand"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/table"

	"gonum.org/v1/gonum/mat"
)

// Conditional appends the basis variables missing from the dataset, drawing
// each row's values from the Gaussian conditional distribution given the
// variables the row already has. Draws happen row by row in row order, one
// multivariate draw per row, so results are reproducible for a fixed rng.
func Conditional(tbl *table.Table, b *simbase.Basis, rng *rand.Rand) (*table.Table, error) {
	cond, err := newConditioner(tbl, b)
	if err != nil {
		return nil, err
	}
	if len(cond.targetIdx) == 0 {
		// Every basis variable is already observed; nothing to simulate.
		return tbl.Clone(), nil
	}

	targets := cond.newTargetColumns(tbl.RowCount())
	for row := 0; row < tbl.RowCount(); row++ {
		if err := cond.simulateRow(tbl, row, targets, rng); err != nil {
			return nil, err
		}
	}
	return appendTargets(tbl, b, cond.targetIdx, targets)
}

// ConditionalGrouped is Conditional with group-wise basis dispatch. Rows
// whose group key has no basis entry receive missing values for every
// target variable; that is policy, not an error. Groups are processed in
// first-appearance order, rows within a group in row order.
func ConditionalGrouped(tbl *table.Table, grouped *simbase.GroupedBasis, rng *rand.Rand) (*table.Table, error) {
	if grouped.Len() == 0 {
		return nil, fmt.Errorf("%w: grouped basis is empty", core.ErrGroupBasisNotFound)
	}
	order, partitions, err := tbl.Partition(grouped.GroupVars)
	if err != nil {
		return nil, err
	}

	// The schema is shared across members, so the observed/target split is
	// decided once against the first member.
	first, _ := grouped.Lookup(grouped.Keys()[0])
	probe, err := newConditioner(tbl, first)
	if err != nil {
		return nil, err
	}
	if len(probe.targetIdx) == 0 {
		return tbl.Clone(), nil
	}

	targets := probe.newTargetColumns(tbl.RowCount())
	for _, key := range order {
		basis, ok := grouped.Lookup(key)
		if !ok {
			continue // missing group: target columns stay NaN
		}
		cond, err := newConditioner(tbl, basis)
		if err != nil {
			return nil, core.NewGroupError(key, err)
		}
		for _, row := range partitions[key] {
			if err := cond.simulateRow(tbl, row, targets, rng); err != nil {
				return nil, core.NewGroupError(key, err)
			}
		}
	}
	return appendTargets(tbl, first, probe.targetIdx, targets)
}

// conditioner holds the per-basis conditioning state: the observed/target
// split and a cache of conditional models keyed by the row's pattern of
// non-missing observed values.
type conditioner struct {
	basis     *simbase.Basis
	cov       *mat.SymDense
	obsIdx    []int // basis indices present as dataset columns
	targetIdx []int // basis indices to simulate
	obsCols   [][]float64
	models    map[uint64]*condModel
}

func newConditioner(tbl *table.Table, b *simbase.Basis) (*conditioner, error) {
	if len(b.Variables) > 64 {
		return nil, fmt.Errorf("%w: basis has %d variables, at most 64 supported", core.ErrInvalidMoments, len(b.Variables))
	}
	c := &conditioner{
		basis:  b,
		cov:    b.Covariance(),
		models: make(map[uint64]*condModel),
	}
	for i, v := range b.Variables {
		if col, ok := tbl.Numeric(v); ok {
			c.obsIdx = append(c.obsIdx, i)
			c.obsCols = append(c.obsCols, col)
		} else {
			c.targetIdx = append(c.targetIdx, i)
		}
	}
	if len(c.obsIdx) == 0 {
		return nil, fmt.Errorf("%w: basis variables %v", core.ErrNoObservedVariables, b.Variables)
	}
	return c, nil
}

func (c *conditioner) newTargetColumns(rows int) [][]float64 {
	out := make([][]float64, len(c.targetIdx))
	for i := range out {
		col := make([]float64, rows)
		for r := range col {
			col[r] = table.Missing()
		}
		out[i] = col
	}
	return out
}

// simulateRow draws the target variables for one row and writes them, in
// natural units, into the target column buffers.
func (c *conditioner) simulateRow(tbl *table.Table, row int, targets [][]float64, rng *rand.Rand) error {
	// Transform the row's observed values and record which are present.
	var mask uint64
	obs := make([]float64, 0, len(c.obsIdx))
	for pos, bi := range c.obsIdx {
		x := c.obsCols[pos][row]
		if table.IsMissing(x) {
			continue
		}
		v := c.basis.Variables[bi]
		y, err := c.basis.Transforms.For(v).Forward(v, x)
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		mask |= 1 << uint(pos)
		obs = append(obs, y)
	}

	model, err := c.model(mask)
	if err != nil {
		return err
	}

	sample := model.draw(obs, rng)
	for i, bi := range c.targetIdx {
		v := c.basis.Variables[bi]
		targets[i][row] = c.basis.Transforms.For(v).Inverse(sample[i])
	}
	return nil
}

// model returns the cached conditional model for a non-missing pattern,
// building it on first use.
func (c *conditioner) model(mask uint64) (*condModel, error) {
	if m, ok := c.models[mask]; ok {
		return m, nil
	}
	m, err := c.buildModel(mask)
	if err != nil {
		return nil, err
	}
	c.models[mask] = m
	return m, nil
}

// condModel is the conditional distribution of the target block given one
// pattern of observed variables: mean offset, regression coefficients and
// a square-root factor of the conditional covariance.
type condModel struct {
	muO    []float64
	muT    []float64
	solve  *mat.Dense // o x t, equals inv(Sigma_oo) * Sigma_ot; nil when o == 0
	factor *mat.Dense // t x t square root of the conditional covariance
}

func (c *conditioner) buildModel(mask uint64) (*condModel, error) {
	var oIdx []int
	for pos, bi := range c.obsIdx {
		if mask&(1<<uint(pos)) != 0 {
			oIdx = append(oIdx, bi)
		}
	}
	tIdx := c.targetIdx
	o, t := len(oIdx), len(tIdx)

	model := &condModel{
		muO: make([]float64, o),
		muT: make([]float64, t),
	}
	for i, bi := range oIdx {
		model.muO[i] = c.basis.Mean[bi]
	}
	for i, bi := range tIdx {
		model.muT[i] = c.basis.Mean[bi]
	}

	// Conditional covariance starts at the target block and, when anything
	// is observed, shrinks by the explained part.
	condCov := mat.NewDense(t, t, nil)
	for i, bi := range tIdx {
		for j, bj := range tIdx {
			condCov.Set(i, j, c.cov.At(bi, bj))
		}
	}

	if o > 0 {
		sigmaOO := mat.NewSymDense(o, nil)
		for i, bi := range oIdx {
			for j := i; j < o; j++ {
				sigmaOO.SetSym(i, j, c.cov.At(bi, oIdx[j]))
			}
		}
		sigmaOT := mat.NewDense(o, t, nil)
		for i, bi := range oIdx {
			for j, bj := range tIdx {
				sigmaOT.Set(i, j, c.cov.At(bi, bj))
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(sigmaOO); !ok {
			observed := make([]core.VariableKey, o)
			for i, bi := range oIdx {
				observed[i] = c.basis.Variables[bi]
			}
			return nil, core.NewSingularCovarianceError(observed)
		}

		solve := mat.NewDense(o, t, nil)
		if err := chol.SolveTo(solve, sigmaOT); err != nil {
			observed := make([]core.VariableKey, o)
			for i, bi := range oIdx {
				observed[i] = c.basis.Variables[bi]
			}
			return nil, core.NewSingularCovarianceError(observed)
		}
		model.solve = solve

		var explained mat.Dense
		explained.Mul(sigmaOT.T(), solve)
		condCov.Sub(condCov, &explained)
	}

	factor, err := covarianceRoot(condCov)
	if err != nil {
		return nil, err
	}
	model.factor = factor
	return model, nil
}

// covarianceRoot returns a square root of a symmetric PSD matrix via
// eigendecomposition, clamping small negative eigenvalues from rounding
// (or from perfectly correlated targets) to zero.
func covarianceRoot(m *mat.Dense) (*mat.Dense, error) {
	t, _ := m.Dims()
	sym := mat.NewSymDense(t, nil)
	for i := 0; i < t; i++ {
		for j := i; j < t; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("conditional covariance eigendecomposition failed")
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	root := mat.NewDense(t, t, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < t; j++ {
			lambda := values[j]
			if lambda < 0 {
				lambda = 0
			}
			root.Set(i, j, vectors.At(i, j)*math.Sqrt(lambda))
		}
	}
	return root, nil
}

// draw samples the target block once, in modeling space. Standard-normal
// deviates are consumed in target-variable order.
func (m *condModel) draw(obs []float64, rng *rand.Rand) []float64 {
	t := len(m.muT)
	mean := append([]float64(nil), m.muT...)

	if m.solve != nil && len(obs) > 0 {
		dev := mat.NewVecDense(len(obs), nil)
		for i, x := range obs {
			dev.SetVec(i, x-m.muO[i])
		}
		adj := mat.NewVecDense(t, nil)
		adj.MulVec(m.solve.T(), dev)
		for i := 0; i < t; i++ {
			mean[i] += adj.AtVec(i)
		}
	}

	z := mat.NewVecDense(t, nil)
	for i := 0; i < t; i++ {
		z.SetVec(i, rng.NormFloat64())
	}
	noise := mat.NewVecDense(t, nil)
	noise.MulVec(m.factor, z)

	out := make([]float64, t)
	for i := 0; i < t; i++ {
		out[i] = mean[i] + noise.AtVec(i)
	}
	return out
}

func appendTargets(tbl *table.Table, b *simbase.Basis, targetIdx []int, targets [][]float64) (*table.Table, error) {
	out := tbl.Clone()
	for i, bi := range targetIdx {
		if err := out.AddNumeric(b.Variables[bi], targets[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
