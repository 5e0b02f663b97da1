// Package simulation holds the domain types of whole-dataset simulation:
// subsample definitions and the run manifest kept as audit trail.
package simulation

import (
	"timbersim/domain/core"
)

// AnchorSpec targets one anchor variable's sample mean and standard
// deviation, in natural units, within one subsample.
type AnchorSpec struct {
	Variable core.VariableKey `json:"variable"`
	Mean     float64          `json:"mean"`
	SD       float64          `json:"sd"`
}

// KeyValue assigns a constant grouping-column value to a subsample
type KeyValue struct {
	Name  core.VariableKey `json:"name"`
	Value string           `json:"value"`
}

// SubsampleDefinition specifies one simulated subsample: its grouping-key
// values, anchor targets and relative weight in the total row count.
type SubsampleDefinition struct {
	Keys    []KeyValue   `json:"keys"`
	Anchors []AnchorSpec `json:"anchors"`
	Weight  float64      `json:"weight"`
}

// GroupKey returns the composite key formed by the definition's key values
func (d SubsampleDefinition) GroupKey() core.GroupKey {
	values := make([]string, len(d.Keys))
	for i, kv := range d.Keys {
		values[i] = kv.Value
	}
	return core.NewGroupKey(values...)
}

// AnchorRealization records target and realized sample moments of one
// anchor variable within one subsample.
type AnchorRealization struct {
	Variable     core.VariableKey `json:"variable"`
	TargetMean   float64          `json:"target_mean"`
	TargetSD     float64          `json:"target_sd"`
	RealizedMean float64          `json:"realized_mean"`
	RealizedSD   float64          `json:"realized_sd"`
}

// SubsampleRealization records the realized shape of one subsample
type SubsampleRealization struct {
	Key     string              `json:"key"`
	Rows    int                 `json:"rows"`
	Anchors []AnchorRealization `json:"anchors"`
}

// RunManifest captures the complete specification and outcome of one
// simulation run, for reproducibility and reporting.
type RunManifest struct {
	RunID      core.RunID             `json:"run_id"`
	Seed       int64                  `json:"seed"`
	N          int                    `json:"n"`
	Sampler    string                 `json:"sampler"`
	Variables  []string               `json:"variables"`
	Subsamples []SubsampleRealization `json:"subsamples"`
	CreatedAt  core.Timestamp         `json:"created_at"`
}
