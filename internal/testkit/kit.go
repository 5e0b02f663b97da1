// Package testkit provides deterministic fixtures for tests: a correlated
// timber reference-data generator and in-memory repository adapters.
package testkit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/simulation"
	"timbersim/domain/table"
	"timbersim/ports"
)

// ReferenceConfig configures the reference-data generator
type ReferenceConfig struct {
	Rows int
	Seed int64
}

// DefaultReferenceConfig returns the defaults used across the test suite
func DefaultReferenceConfig() ReferenceConfig {
	return ReferenceConfig{Rows: 5000, Seed: 42}
}

// loading triplet: shared quality factor, shared density factor, noise
type loading struct {
	q, d, noise float64
}

func (l loading) value(q, d, eps float64) float64 {
	return l.q*q + l.d*d + l.noise*eps
}

// GenerateReference produces a correlated timber property dataset from a
// two-factor latent model: a "quality" factor driving strength/stiffness
// and a "density" factor driving the density-like variables. Strength and
// its indicating property come out log-normal.
func GenerateReference(cfg ReferenceConfig) *table.Table {
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.Rows

	vars := []struct {
		name     core.VariableKey
		mean, sd float64
		load     loading
		logScale bool
	}{
		{"f", 3.37, 0.36, loading{0.85, 0.25, noiseFor(0.85, 0.25)}, true},
		{"E", 11622, 2394, loading{0.90, 0.30, noiseFor(0.90, 0.30)}, false},
		{"rho", 445, 42.1, loading{0.35, 0.85, noiseFor(0.35, 0.85)}, false},
		{"ip_f", 3.31, 0.33, loading{0.80, 0.25, noiseFor(0.80, 0.25)}, true},
		{"E_dyn", 12510, 2480, loading{0.88, 0.33, noiseFor(0.88, 0.33)}, false},
		{"ip_rho", 452, 46.5, loading{0.30, 0.80, noiseFor(0.30, 0.80)}, false},
		{"E_dyn_u", 11890, 2350, loading{0.82, 0.30, noiseFor(0.82, 0.30)}, false},
	}

	columns := make([][]float64, len(vars))
	for i := range columns {
		columns[i] = make([]float64, n)
	}
	for row := 0; row < n; row++ {
		q := rng.NormFloat64()
		d := rng.NormFloat64()
		for i, v := range vars {
			y := v.mean + v.sd*v.load.value(q, d, rng.NormFloat64())
			if v.logScale {
				y = math.Exp(y)
			}
			columns[i][row] = y
		}
	}

	tbl := table.New()
	for i, v := range vars {
		if err := tbl.AddNumeric(v.name, columns[i]); err != nil {
			panic(err)
		}
	}
	return tbl
}

// GenerateReferenceGrouped generates one reference block per country and
// stacks them with a country column prepended.
func GenerateReferenceGrouped(countries []string, rowsPer int, seed int64) *table.Table {
	out := table.New()
	for i, country := range countries {
		block := GenerateReference(ReferenceConfig{Rows: rowsPer, Seed: seed + int64(i)})
		labeled := table.New()
		labels := make([]string, rowsPer)
		for j := range labels {
			labels[j] = country
		}
		if err := labeled.AddCategorical("country", labels); err != nil {
			panic(err)
		}
		for _, name := range block.Columns() {
			nums, _ := block.Numeric(name)
			if err := labeled.AddNumeric(name, nums); err != nil {
				panic(err)
			}
		}
		if err := out.Append(labeled); err != nil {
			panic(err)
		}
	}
	return out
}

// noiseFor completes a loading row to unit variance
func noiseFor(q, d float64) float64 {
	return math.Sqrt(1 - q*q - d*d)
}

// InMemoryBasisRepository is a map-backed BasisRepository for tests
type InMemoryBasisRepository struct {
	mu      sync.RWMutex
	plain   map[core.BasisID]*simbase.Basis
	grouped map[core.BasisID]*simbase.GroupedBasis
}

var _ ports.BasisRepository = (*InMemoryBasisRepository)(nil)

// NewInMemoryBasisRepository creates an empty in-memory basis repository
func NewInMemoryBasisRepository() *InMemoryBasisRepository {
	return &InMemoryBasisRepository{
		plain:   make(map[core.BasisID]*simbase.Basis),
		grouped: make(map[core.BasisID]*simbase.GroupedBasis),
	}
}

func (r *InMemoryBasisRepository) SaveBasis(ctx context.Context, name string, basis *simbase.Basis) (core.BasisID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := core.BasisID(core.NewID())
	r.plain[id] = basis
	return id, nil
}

func (r *InMemoryBasisRepository) SaveGrouped(ctx context.Context, name string, grouped *simbase.GroupedBasis) (core.BasisID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := core.BasisID(core.NewID())
	r.grouped[id] = grouped
	return id, nil
}

func (r *InMemoryBasisRepository) GetBasis(ctx context.Context, id core.BasisID) (*simbase.Basis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.plain[id]
	if !ok {
		return nil, fmt.Errorf("basis %s not found", id)
	}
	return b, nil
}

func (r *InMemoryBasisRepository) GetGrouped(ctx context.Context, id core.BasisID) (*simbase.GroupedBasis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grouped[id]
	if !ok {
		return nil, fmt.Errorf("grouped basis %s not found", id)
	}
	return g, nil
}

// InMemoryRunRepository is a map-backed RunRepository for tests
type InMemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[core.RunID]*simulation.RunManifest
}

var _ ports.RunRepository = (*InMemoryRunRepository)(nil)

// NewInMemoryRunRepository creates an empty in-memory run repository
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]*simulation.RunManifest)}
}

func (r *InMemoryRunRepository) SaveRun(ctx context.Context, manifest *simulation.RunManifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[manifest.RunID]; exists {
		return fmt.Errorf("run %s already exists", manifest.RunID)
	}
	r.runs[manifest.RunID] = manifest
	return nil
}

func (r *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*simulation.RunManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return m, nil
}

func (r *InMemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]*simulation.RunManifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*simulation.RunManifest, 0, len(r.runs))
	for _, m := range r.runs {
		out = append(out, m)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[b].CreatedAt.Before(out[a].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
