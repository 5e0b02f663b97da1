package simulate

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/simulation"
	"timbersim/domain/table"
	"timbersim/domain/transform"
	"timbersim/internal/refstats"

	"github.com/montanaflynn/stats"
)

// Config specifies one whole-dataset simulation run. Zero-value fields fall
// back to the built-in defaults: four single-country subsamples, n=5000,
// the internal basis, the exact-moment anchor sampler.
type Config struct {
	Definitions []simulation.SubsampleDefinition
	N           int
	Seed        int64
	Basis       *simbase.Basis
	Grouped     *simbase.GroupedBasis // takes precedence over Basis when set
	Sampler     AnchorSampler
}

const defaultN = 5000

func (c Config) withDefaults() Config {
	if c.Definitions == nil {
		c.Definitions = refstats.DefaultSubsamples()
	}
	if c.N == 0 {
		c.N = defaultN
	}
	if c.Basis == nil && c.Grouped == nil {
		c.Basis = refstats.DefaultBasis()
	}
	if c.Sampler == nil {
		c.Sampler = ExactMomentSampler{}
	}
	return c
}

// transforms returns the basis transform schema the anchors will later be
// conditioned under, so anchor generation happens in the same space.
func (c Config) transforms() transform.Map {
	if c.Grouped != nil {
		return c.Grouped.Transforms()
	}
	return c.Basis.Transforms
}

// SimulateDataset generates one dataset of simulated boards: grouping-key
// columns, anchor variables with per-subsample target moments, and the
// remaining basis variables drawn by conditional simulation. All draws come
// from a single source seeded with cfg.Seed, consumed in definition order,
// then row order, so identical configs produce identical tables.
func SimulateDataset(cfg Config) (*table.Table, *simulation.RunManifest, error) {
	cfg = cfg.withDefaults()
	if err := validateDefinitions(cfg.Definitions); err != nil {
		return nil, nil, err
	}
	if cfg.N < 1 {
		return nil, nil, fmt.Errorf("%w: total row count %d", core.ErrInvalidSubsample, cfg.N)
	}

	counts := apportion(weights(cfg.Definitions), cfg.N)
	rng := rand.New(rand.NewSource(cfg.Seed))

	manifest := &simulation.RunManifest{
		RunID:     core.RunID(core.NewID()),
		Seed:      cfg.Seed,
		N:         cfg.N,
		Sampler:   cfg.Sampler.Name(),
		CreatedAt: core.Now(),
	}

	anchors := table.New()
	transforms := cfg.transforms()
	for i, def := range cfg.Definitions {
		block, realization, err := simulateSubsample(def, counts[i], cfg.Sampler, transforms, rng)
		if err != nil {
			return nil, nil, fmt.Errorf("definition %d: %w", i, err)
		}
		if block != nil {
			if err := anchors.Append(block); err != nil {
				return nil, nil, fmt.Errorf("definition %d: %w", i, err)
			}
		}
		manifest.Subsamples = append(manifest.Subsamples, realization)
	}
	if anchors.RowCount() == 0 {
		return nil, nil, fmt.Errorf("%w: no definition received any rows", core.ErrInvalidSubsample)
	}

	var (
		result *table.Table
		err    error
	)
	if cfg.Grouped != nil {
		result, err = ConditionalGrouped(anchors, cfg.Grouped, rng)
	} else {
		result, err = Conditional(anchors, cfg.Basis, rng)
	}
	if err != nil {
		return nil, nil, err
	}

	for _, v := range result.Columns() {
		manifest.Variables = append(manifest.Variables, string(v))
	}
	return result, manifest, nil
}

// simulateSubsample builds one definition's block: constant key columns
// plus independently sampled anchor columns.
func simulateSubsample(def simulation.SubsampleDefinition, n int, sampler AnchorSampler, transforms transform.Map, rng *rand.Rand) (*table.Table, simulation.SubsampleRealization, error) {
	realization := simulation.SubsampleRealization{
		Key:  def.GroupKey().String(),
		Rows: n,
	}
	if n == 0 {
		return nil, realization, nil
	}

	block := table.New()
	for _, kv := range def.Keys {
		values := make([]string, n)
		for i := range values {
			values[i] = kv.Value
		}
		if err := block.AddCategorical(kv.Name, values); err != nil {
			return nil, realization, err
		}
	}
	for _, anchor := range def.Anchors {
		sample, err := sampler.Sample(n, anchor, transforms.For(anchor.Variable), rng)
		if err != nil {
			return nil, realization, err
		}
		if err := block.AddNumeric(anchor.Variable, sample); err != nil {
			return nil, realization, err
		}
		realized := simulation.AnchorRealization{
			Variable:   anchor.Variable,
			TargetMean: anchor.Mean,
			TargetSD:   anchor.SD,
		}
		realized.RealizedMean, _ = stats.Mean(sample)
		if n > 1 {
			realized.RealizedSD, _ = stats.StandardDeviationSample(sample)
		}
		realization.Anchors = append(realization.Anchors, realized)
	}
	return block, realization, nil
}

func validateDefinitions(defs []simulation.SubsampleDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: no definitions", core.ErrInvalidSubsample)
	}
	first := defs[0]
	seen := make(map[core.GroupKey]bool, len(defs))
	for i, def := range defs {
		if def.Weight <= 0 {
			return core.NewInvalidSubsampleError(i, fmt.Sprintf("weight %v is not positive", def.Weight))
		}
		if len(def.Anchors) == 0 {
			return core.NewInvalidSubsampleError(i, "no anchor targets")
		}
		key := def.GroupKey()
		if seen[key] {
			return core.NewInvalidSubsampleError(i, fmt.Sprintf("duplicate key %s", key))
		}
		seen[key] = true

		// Every definition must produce the same block schema, or the
		// blocks cannot be stacked into one dataset.
		if !sameSchema(first, def) {
			return core.NewInvalidSubsampleError(i, "key/anchor columns differ from definition 0")
		}
	}
	return nil
}

func sameSchema(a, b simulation.SubsampleDefinition) bool {
	if len(a.Keys) != len(b.Keys) || len(a.Anchors) != len(b.Anchors) {
		return false
	}
	for i := range a.Keys {
		if a.Keys[i].Name != b.Keys[i].Name {
			return false
		}
	}
	for i := range a.Anchors {
		if a.Anchors[i].Variable != b.Anchors[i].Variable {
			return false
		}
	}
	return true
}

func weights(defs []simulation.SubsampleDefinition) []float64 {
	out := make([]float64, len(defs))
	for i, def := range defs {
		out[i] = def.Weight
	}
	return out
}

// apportion distributes n rows across weights using the largest-remainder
// method, so the counts always sum to exactly n. Remainder ties break on
// lower index to stay deterministic.
func apportion(weights []float64, n int) []int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	counts := make([]int, len(weights))
	remainders := make([]float64, len(weights))
	assigned := 0
	for i, w := range weights {
		share := float64(n) * w / total
		counts[i] = int(math.Floor(share))
		remainders[i] = share - float64(counts[i])
		assigned += counts[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for i := 0; i < n-assigned; i++ {
		counts[order[i%len(order)]]++
	}
	return counts
}
