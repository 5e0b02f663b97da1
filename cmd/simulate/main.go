// Command simulate generates a simulated timber dataset, or augments an
// existing one, writing the result to an Excel or CSV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"timbersim/adapters/excel"
	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/simulation"
	"timbersim/domain/table"
	"timbersim/internal/refstats"
	rngstreams "timbersim/internal/rng"
	"timbersim/internal/simulate"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[Simulate] Loaded environment from .env")
	}

	var (
		n          = flag.Int("n", 5000, "total number of rows to simulate")
		seed       = flag.Int64("seed", 42, "random seed")
		refPath    = flag.String("ref", "", "reference data file to build the basis from (xlsx/csv); default basis when empty")
		groupBy    = flag.String("group-by", "", "grouping column for a grouped basis built from -ref")
		augment    = flag.String("augment", "", "existing dataset to augment instead of simulating from scratch")
		outPath    = flag.String("out", "simulated.xlsx", "output file (xlsx/csv)")
		asymptotic = flag.Bool("asymptotic", false, "use the asymptotic anchor sampler instead of exact moments")
	)
	flag.Parse()

	if err := run(*n, *seed, *refPath, *groupBy, *augment, *outPath, *asymptotic); err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
}

func run(n int, seed int64, refPath, groupBy, augmentPath, outPath string, asymptotic bool) error {
	basis, grouped, err := loadBasis(refPath, groupBy)
	if err != nil {
		return err
	}

	var result *table.Table
	if augmentPath != "" {
		result, err = runAugment(augmentPath, seed, basis, grouped)
	} else {
		result, err = runSimulate(n, seed, basis, grouped, asymptotic)
	}
	if err != nil {
		return err
	}

	if err := excel.NewDataWriter(outPath).Write(result); err != nil {
		return err
	}
	log.Printf("[Simulate] Wrote %d rows to %s", result.RowCount(), outPath)
	return nil
}

// loadBasis builds a basis from reference data when given, over the default
// GDP variable set and transforms.
func loadBasis(refPath, groupBy string) (*simbase.Basis, *simbase.GroupedBasis, error) {
	if refPath == "" {
		return nil, nil, nil
	}
	ref, err := excel.NewDataReader(refPath).Read()
	if err != nil {
		return nil, nil, err
	}

	variables := refstats.Variables()
	transforms := refstats.Transforms()
	if groupBy != "" {
		key, err := core.ParseVariableKey(groupBy)
		if err != nil {
			return nil, nil, err
		}
		grouped, err := simbase.BuildGrouped(ref, []core.VariableKey{key}, variables, transforms)
		if err != nil {
			return nil, nil, err
		}
		return nil, grouped, nil
	}
	basis, err := simbase.Build(ref, variables, transforms)
	if err != nil {
		return nil, nil, err
	}
	return basis, nil, nil
}

func runSimulate(n int, seed int64, basis *simbase.Basis, grouped *simbase.GroupedBasis, asymptotic bool) (*table.Table, error) {
	var sampler simulate.AnchorSampler = simulate.ExactMomentSampler{}
	if asymptotic {
		sampler = simulate.AsymptoticSampler{}
	}
	result, manifest, err := simulate.SimulateDataset(simulate.Config{
		N:       n,
		Seed:    seed,
		Basis:   basis,
		Grouped: grouped,
		Sampler: sampler,
	})
	if err != nil {
		return nil, err
	}
	logManifest(manifest)
	return result, nil
}

func runAugment(path string, seed int64, basis *simbase.Basis, grouped *simbase.GroupedBasis) (*table.Table, error) {
	tbl, err := excel.NewDataReader(path).Read()
	if err != nil {
		return nil, err
	}
	rng, err := rngstreams.NewStreamProvider().SeededStream(context.Background(), "augment", seed)
	if err != nil {
		return nil, err
	}
	if grouped != nil {
		return simulate.ConditionalGrouped(tbl, grouped, rng)
	}
	if basis == nil {
		basis = refstats.DefaultBasis()
	}
	return simulate.Conditional(tbl, basis, rng)
}

func logManifest(m *simulation.RunManifest) {
	for _, sub := range m.Subsamples {
		for _, anchor := range sub.Anchors {
			log.Printf("[Simulate] %s: %s mean %.2f (target %.2f) sd %.2f (target %.2f) over %d rows",
				sub.Key, anchor.Variable,
				anchor.RealizedMean, anchor.TargetMean,
				anchor.RealizedSD, anchor.TargetSD, sub.Rows)
		}
	}
}
