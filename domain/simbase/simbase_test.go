package simbase_test

import (
	"errors"
	"math"
	"testing"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/table"
	"timbersim/domain/transform"
	"timbersim/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func gdpVariables() []core.VariableKey {
	return []core.VariableKey{"f", "E", "rho"}
}

func gdpTransforms() transform.Map {
	return transform.Map{"f": transform.MustNew(transform.Log)}
}

func TestBuild_CorrelationInvariants(t *testing.T) {
	ref := testkit.GenerateReference(testkit.ReferenceConfig{Rows: 5000, Seed: 42})

	basis, err := simbase.Build(ref, gdpVariables(), gdpTransforms())
	require.NoError(t, err)
	require.Equal(t, 3, basis.Corr.SymmetricDim())
	assert.Equal(t, 5000, basis.N)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, basis.Corr.At(i, i), 1e-12, "diagonal at %d", i)
		for j := i + 1; j < 3; j++ {
			assert.InDelta(t, basis.Corr.At(i, j), basis.Corr.At(j, i), 1e-12)
			assert.Less(t, math.Abs(basis.Corr.At(i, j)), 1.0)
		}
	}

	// Strength and stiffness are strongly positively related in the fixture.
	fi, _ := basis.Index("f")
	ei, _ := basis.Index("E")
	assert.Greater(t, basis.Corr.At(fi, ei), 0.5)

	for i := range basis.SD {
		assert.Greater(t, basis.SD[i], 0.0)
	}
}

func TestBuild_RejectsMissingRows(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddNumeric("f", []float64{30, math.NaN(), 35, 31, 29, 33}))
	require.NoError(t, tbl.AddNumeric("E", []float64{11000, 11500, math.NaN(), 10800, 11200, 11900}))

	basis, err := simbase.Build(tbl, []core.VariableKey{"f", "E"}, nil)
	require.NoError(t, err)
	// Two rows carry missing values and must be excluded, not imputed.
	assert.Equal(t, 4, basis.N)
}

func TestBuild_InsufficientData(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddNumeric("f", []float64{30, 32, 28}))
	require.NoError(t, tbl.AddNumeric("E", []float64{11000, 11500, 10500}))
	require.NoError(t, tbl.AddNumeric("rho", []float64{450, 440, 430}))

	_, err := simbase.Build(tbl, gdpVariables(), nil)
	assert.True(t, core.IsInsufficientDataError(err), "got %v", err)
}

func TestBuild_DomainViolation(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddNumeric("f", []float64{30, 0, 35, 31, 29}))
	require.NoError(t, tbl.AddNumeric("E", []float64{11000, 11500, 10500, 10800, 11200}))

	_, err := simbase.Build(tbl, []core.VariableKey{"f", "E"}, gdpTransforms())
	assert.True(t, core.IsDomainError(err), "got %v", err)
}

func TestBuild_MissingVariable(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddNumeric("f", []float64{30, 32, 28, 31}))

	_, err := simbase.Build(tbl, []core.VariableKey{"f", "E"}, nil)
	assert.ErrorIs(t, err, core.ErrVariableNotFound)
}

func TestFromMoments_Validation(t *testing.T) {
	variables := []core.VariableKey{"f", "E"}
	good := mat.NewSymDense(2, []float64{1, 0.8, 0.8, 1})

	_, err := simbase.FromMoments(variables, nil, []float64{30, 11000}, []float64{10, 2000}, good)
	require.NoError(t, err)

	badDiag := mat.NewSymDense(2, []float64{1, 0.8, 0.8, 0.9})
	_, err = simbase.FromMoments(variables, nil, []float64{30, 11000}, []float64{10, 2000}, badDiag)
	assert.ErrorIs(t, err, core.ErrInvalidMoments)

	_, err = simbase.FromMoments(variables, nil, []float64{30, 11000}, []float64{-1, 2000}, good)
	assert.ErrorIs(t, err, core.ErrInvalidMoments)

	_, err = simbase.FromMoments(variables, nil, []float64{30}, []float64{10, 2000}, good)
	assert.ErrorIs(t, err, core.ErrInvalidMoments)

	outOfRange := mat.NewSymDense(2, []float64{1, 1.2, 1.2, 1})
	_, err = simbase.FromMoments(variables, nil, []float64{30, 11000}, []float64{10, 2000}, outOfRange)
	assert.ErrorIs(t, err, core.ErrInvalidMoments)
}

func TestPayload_RoundTrip(t *testing.T) {
	ref := testkit.GenerateReference(testkit.ReferenceConfig{Rows: 500, Seed: 7})
	basis, err := simbase.Build(ref, gdpVariables(), gdpTransforms())
	require.NoError(t, err)

	restored, err := simbase.FromPayload(basis.ToPayload())
	require.NoError(t, err)
	require.True(t, basis.SameSchema(restored))
	for i := range basis.Mean {
		assert.InDelta(t, basis.Mean[i], restored.Mean[i], 1e-12)
		assert.InDelta(t, basis.SD[i], restored.SD[i], 1e-12)
	}
	assert.InDelta(t, basis.Corr.At(0, 2), restored.Corr.At(0, 2), 1e-12)
	assert.Equal(t, basis.N, restored.N)
}

func TestBuildGrouped(t *testing.T) {
	ref := testkit.GenerateReferenceGrouped([]string{"at", "de", "fi"}, 400, 11)

	grouped, err := simbase.BuildGrouped(ref, []core.VariableKey{"country"}, gdpVariables(), gdpTransforms())
	require.NoError(t, err)
	require.Equal(t, 3, grouped.Len())

	keys := grouped.Keys()
	assert.Equal(t, core.NewGroupKey("at"), keys[0])
	assert.Equal(t, core.NewGroupKey("fi"), keys[2])

	at, ok := grouped.Lookup(core.NewGroupKey("at"))
	require.True(t, ok)
	assert.Equal(t, 400, at.N)

	_, ok = grouped.Lookup(core.NewGroupKey("se"))
	assert.False(t, ok)
}

func TestBuildGrouped_ReportsFailingGroup(t *testing.T) {
	ref := table.New()
	// "de" has only two usable rows for three variables.
	require.NoError(t, ref.AddCategorical("country", []string{"at", "at", "at", "at", "at", "de", "de"}))
	require.NoError(t, ref.AddNumeric("f", []float64{30, 32, 28, 34, 29, 27, 31}))
	require.NoError(t, ref.AddNumeric("E", []float64{11000, 11500, 10500, 12000, 10900, 10400, 11100}))
	require.NoError(t, ref.AddNumeric("rho", []float64{450, 440, 430, 460, 445, 425, 452}))

	_, err := simbase.BuildGrouped(ref, []core.VariableKey{"country"}, gdpVariables(), nil)
	require.Error(t, err)
	assert.True(t, core.IsInsufficientDataError(err))
	assert.Contains(t, err.Error(), "de")
}

func TestGrouped_PutRejectsDuplicatesAndSchemaDrift(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})
	a, err := simbase.FromMoments([]core.VariableKey{"f", "E"}, nil, []float64{30, 11000}, []float64{10, 2000}, corr)
	require.NoError(t, err)
	b, err := simbase.FromMoments([]core.VariableKey{"f", "rho"}, nil, []float64{30, 450}, []float64{10, 40}, corr)
	require.NoError(t, err)

	grouped := simbase.NewGrouped([]core.VariableKey{"country"})
	require.NoError(t, grouped.Put(core.NewGroupKey("at"), a))

	err = grouped.Put(core.NewGroupKey("at"), a)
	assert.Error(t, err)

	err = grouped.Put(core.NewGroupKey("de"), b)
	assert.True(t, errors.Is(err, core.ErrIncompatibleSchema), "got %v", err)
}

func TestCovariance(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})
	basis, err := simbase.FromMoments([]core.VariableKey{"f", "E"}, nil, []float64{30, 11000}, []float64{10, 2000}, corr)
	require.NoError(t, err)

	cov := basis.Covariance()
	assert.InDelta(t, 100, cov.At(0, 0), 1e-9)
	assert.InDelta(t, 4e6, cov.At(1, 1), 1e-3)
	assert.InDelta(t, 0.5*10*2000, cov.At(0, 1), 1e-9)
}
