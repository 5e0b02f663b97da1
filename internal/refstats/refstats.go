// Package refstats carries published reference statistics of sawn-timber
// grade-determining properties per country and load type, the built-in
// default simulation basis, and the default subsample definitions.
package refstats

import (
	"strings"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/simulation"
	"timbersim/domain/transform"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Basis variable names
const (
	VarF     core.VariableKey = "f"       // bending/tension strength, MPa
	VarE     core.VariableKey = "E"       // static modulus of elasticity, MPa
	VarRho   core.VariableKey = "rho"     // density, kg/m3
	VarIPF   core.VariableKey = "ip_f"    // indicating property for strength
	VarEDyn  core.VariableKey = "E_dyn"   // dynamic modulus of elasticity, MPa
	VarIPRho core.VariableKey = "ip_rho"  // indicating property for density
	VarEDynU core.VariableKey = "E_dyn_u" // dynamic MOE, unplaned/green state
)

// Grouping column names
const (
	KeyCountry  core.VariableKey = "country"
	KeySub      core.VariableKey = "subsample"
	KeyLoadType core.VariableKey = "loadtype"
)

// MeanSD is one published mean/standard deviation pair in natural units
type MeanSD struct {
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
}

// Record is one published country/load-type reference entry
type Record struct {
	Country  string  `json:"country"`
	LoadType string  `json:"loadtype"` // "t" tension, "ec" edgewise bending
	Share    float64 `json:"share"`    // relative sampling share within the study
	N        int     `json:"n"`        // boards behind the published figures
	F        MeanSD  `json:"f"`
	E        MeanSD  `json:"e"`
	Rho      MeanSD  `json:"rho"`
}

// published is the static reference table. Values follow the shape of the
// European grading studies the simulator was calibrated against.
var published = []Record{
	{Country: "at", LoadType: "t", Share: 0.20, N: 1884, F: MeanSD{30.7, 11.0}, E: MeanSD{11622, 2394}, Rho: MeanSD{445, 42.1}},
	{Country: "at", LoadType: "ec", Share: 0.12, N: 1094, F: MeanSD{41.6, 13.8}, E: MeanSD{12199, 2675}, Rho: MeanSD{451, 44.8}},
	{Country: "de", LoadType: "t", Share: 0.16, N: 1512, F: MeanSD{28.4, 10.3}, E: MeanSD{11136, 2296}, Rho: MeanSD{441, 43.7}},
	{Country: "de", LoadType: "ec", Share: 0.09, N: 845, F: MeanSD{38.9, 13.2}, E: MeanSD{11796, 2539}, Rho: MeanSD{446, 45.2}},
	{Country: "fi", LoadType: "t", Share: 0.14, N: 1304, F: MeanSD{32.1, 11.7}, E: MeanSD{11984, 2451}, Rho: MeanSD{449, 41.3}},
	{Country: "fi", LoadType: "ec", Share: 0.08, N: 722, F: MeanSD{43.0, 14.1}, E: MeanSD{12581, 2718}, Rho: MeanSD{455, 43.5}},
	{Country: "se", LoadType: "t", Share: 0.11, N: 1027, F: MeanSD{31.2, 11.2}, E: MeanSD{11765, 2408}, Rho: MeanSD{447, 41.9}},
	{Country: "se", LoadType: "ec", Share: 0.06, N: 588, F: MeanSD{42.2, 13.9}, E: MeanSD{12387, 2662}, Rho: MeanSD{452, 44.0}},
	{Country: "si", LoadType: "t", Share: 0.03, N: 295, F: MeanSD{27.5, 10.1}, E: MeanSD{10874, 2247}, Rho: MeanSD{438, 44.1}},
	{Country: "pl", LoadType: "t", Share: 0.01, N: 112, F: MeanSD{29.3, 10.6}, E: MeanSD{11308, 2331}, Rho: MeanSD{443, 43.0}},
}

// Filter selects reference records; empty slices match everything
type Filter struct {
	Countries []string
	LoadTypes []string
}

// Lookup returns the published records matching a filter, in table order
func Lookup(filter Filter) []Record {
	match := func(want []string, got string) bool {
		if len(want) == 0 {
			return true
		}
		for _, w := range want {
			if strings.EqualFold(w, got) {
				return true
			}
		}
		return false
	}
	out := make([]Record, 0, len(published))
	for _, rec := range published {
		if match(filter.Countries, rec.Country) && match(filter.LoadTypes, rec.LoadType) {
			out = append(out, rec)
		}
	}
	return out
}

// CharacteristicValue returns the 5th percentile of a normal property,
// the characteristic value used in strength grading.
func CharacteristicValue(m MeanSD) float64 {
	dist := distuv.Normal{Mu: m.Mean, Sigma: m.SD}
	return dist.Quantile(0.05)
}

// Variables returns the default basis variable order
func Variables() []core.VariableKey {
	return []core.VariableKey{VarF, VarE, VarRho, VarIPF, VarEDyn, VarIPRho, VarEDynU}
}

// Transforms returns the default per-variable transforms: strength and its
// indicating property are right-skewed and modeled on the log scale.
func Transforms() transform.Map {
	return transform.Map{
		VarF:   transform.MustNew(transform.Log),
		VarIPF: transform.MustNew(transform.Log),
	}
}

// factor loadings behind the default correlation structure. Off-diagonal
// correlations are inner products of the loadings, which keeps the matrix
// positive semidefinite by construction.
var loadings = map[core.VariableKey][2]float64{
	VarF:     {0.85, 0.25},
	VarE:     {0.90, 0.30},
	VarRho:   {0.35, 0.85},
	VarIPF:   {0.80, 0.25},
	VarEDyn:  {0.88, 0.33},
	VarIPRho: {0.30, 0.80},
	VarEDynU: {0.82, 0.30},
}

// moments of the transformed default variables (log space for f, ip_f)
var defaultMoments = map[core.VariableKey]MeanSD{
	VarF:     {3.37, 0.36},
	VarE:     {11622, 2394},
	VarRho:   {445, 42.1},
	VarIPF:   {3.31, 0.33},
	VarEDyn:  {12510, 2480},
	VarIPRho: {452, 46.5},
	VarEDynU: {11890, 2350},
}

// DefaultBasis returns the built-in simulation basis used when the caller
// supplies none.
func DefaultBasis() *simbase.Basis {
	variables := Variables()
	k := len(variables)
	mean := make([]float64, k)
	sd := make([]float64, k)
	corr := mat.NewSymDense(k, nil)
	for i, v := range variables {
		mean[i] = defaultMoments[v].Mean
		sd[i] = defaultMoments[v].SD
		corr.SetSym(i, i, 1)
		for j := i + 1; j < k; j++ {
			li, lj := loadings[v], loadings[variables[j]]
			corr.SetSym(i, j, li[0]*lj[0]+li[1]*lj[1])
		}
	}
	b, err := simbase.FromMoments(variables, Transforms(), mean, sd, corr)
	if err != nil {
		panic(err) // static moments; unreachable unless the table above is broken
	}
	return b
}

// DefaultSubsamples returns the built-in four-subsample single-country
// definition set.
func DefaultSubsamples() []simulation.SubsampleDefinition {
	targets := []struct {
		sub       string
		f, e, rho MeanSD
	}{
		{"1", MeanSD{27.5, 9.0}, MeanSD{10600, 1900}, MeanSD{430, 37}},
		{"2", MeanSD{31.0, 10.2}, MeanSD{11400, 2100}, MeanSD{443, 40}},
		{"3", MeanSD{36.5, 11.4}, MeanSD{12300, 2250}, MeanSD{455, 42}},
		{"4", MeanSD{42.0, 12.6}, MeanSD{13200, 2400}, MeanSD{468, 44}},
	}
	defs := make([]simulation.SubsampleDefinition, 0, len(targets))
	for _, t := range targets {
		defs = append(defs, simulation.SubsampleDefinition{
			Keys: []simulation.KeyValue{
				{Name: KeyCountry, Value: "at"},
				{Name: KeySub, Value: t.sub},
			},
			Anchors: []simulation.AnchorSpec{
				{Variable: VarF, Mean: t.f.Mean, SD: t.f.SD},
				{Variable: VarE, Mean: t.e.Mean, SD: t.e.SD},
				{Variable: VarRho, Mean: t.rho.Mean, SD: t.rho.SD},
			},
			Weight: 1,
		})
	}
	return defs
}

// SubsamplesFromRecords turns published records into subsample definitions,
// weighting each by its study share.
func SubsamplesFromRecords(records []Record) []simulation.SubsampleDefinition {
	defs := make([]simulation.SubsampleDefinition, 0, len(records))
	for _, rec := range records {
		defs = append(defs, simulation.SubsampleDefinition{
			Keys: []simulation.KeyValue{
				{Name: KeyCountry, Value: rec.Country},
				{Name: KeyLoadType, Value: rec.LoadType},
			},
			Anchors: []simulation.AnchorSpec{
				{Variable: VarF, Mean: rec.F.Mean, SD: rec.F.SD},
				{Variable: VarE, Mean: rec.E.Mean, SD: rec.E.SD},
				{Variable: VarRho, Mean: rec.Rho.Mean, SD: rec.Rho.SD},
			},
			Weight: rec.Share,
		})
	}
	return defs
}
