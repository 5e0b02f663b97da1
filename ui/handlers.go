package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/simulation"
	"timbersim/domain/transform"
	"timbersim/internal/refstats"
	"timbersim/internal/simulate"
)

// buildBasisRequest carries reference data and the basis specification
type buildBasisRequest struct {
	Name       string            `json:"name"`
	Columns    []string          `json:"columns"`
	Data       ColumnsJSON       `json:"data"`
	Variables  []string          `json:"variables"`
	Transforms map[string]string `json:"transforms"`
	GroupKeys  []string          `json:"group_keys"`
}

func (a *App) handleBuildBasis(w http.ResponseWriter, r *http.Request) {
	var req buildBasisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	tbl, err := tableFromJSON(req.Columns, req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	variables, err := parseKeys(req.Variables)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	transforms := make(transform.Map, len(req.Transforms))
	for name, kind := range req.Transforms {
		tf, err := transform.New(transform.Kind(kind))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		transforms[core.VariableKey(name)] = tf
	}

	if len(req.GroupKeys) > 0 {
		groupKeys, err := parseKeys(req.GroupKeys)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		grouped, err := simbase.BuildGrouped(tbl, groupKeys, variables, transforms)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		id, err := a.bases.SaveGrouped(r.Context(), req.Name, grouped)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id": id, "grouped": true, "basis": grouped.ToPayload(),
		})
		return
	}

	basis, err := simbase.Build(tbl, variables, transforms)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	id, err := a.bases.SaveBasis(r.Context(), req.Name, basis)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id": id, "grouped": false, "basis": basis.ToPayload(),
	})
}

func (a *App) handleGetBasis(w http.ResponseWriter, r *http.Request) {
	id := core.BasisID(chi.URLParam(r, "id"))
	if basis, err := a.bases.GetBasis(r.Context(), id); err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"grouped": false, "basis": basis.ToPayload()})
		return
	}
	grouped, err := a.bases.GetGrouped(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"grouped": true, "basis": grouped.ToPayload()})
}

// simulateRequest specifies one whole-dataset simulation run
type simulateRequest struct {
	Definitions []simulation.SubsampleDefinition `json:"definitions"`
	N           int                              `json:"n"`
	Seed        int64                            `json:"seed"`
	BasisID     string                           `json:"basis_id"`
	Sampler     string                           `json:"sampler"`
}

func (a *App) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	cfg := simulate.Config{
		Definitions: req.Definitions,
		N:           req.N,
		Seed:        req.Seed,
	}
	switch req.Sampler {
	case "", simulate.ExactMomentSampler{}.Name():
		cfg.Sampler = simulate.ExactMomentSampler{}
	case simulate.AsymptoticSampler{}.Name():
		cfg.Sampler = simulate.AsymptoticSampler{}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown sampler %q", req.Sampler))
		return
	}
	if req.BasisID != "" {
		id := core.BasisID(req.BasisID)
		if basis, err := a.bases.GetBasis(r.Context(), id); err == nil {
			cfg.Basis = basis
		} else if grouped, err := a.bases.GetGrouped(r.Context(), id); err == nil {
			cfg.Grouped = grouped
		} else {
			writeError(w, http.StatusNotFound, fmt.Errorf("basis %s not found", id))
			return
		}
	}

	result, manifest, err := simulate.SimulateDataset(cfg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := a.runs.SaveRun(r.Context(), manifest); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	order, data := tableToJSON(result)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   manifest.RunID,
		"manifest": manifest,
		"columns":  order,
		"data":     data,
	})
}

// augmentRequest carries an existing dataset to extend conditionally
type augmentRequest struct {
	Columns []string    `json:"columns"`
	Data    ColumnsJSON `json:"data"`
	BasisID string      `json:"basis_id"`
	Seed    int64       `json:"seed"`
}

func (a *App) handleAugment(w http.ResponseWriter, r *http.Request) {
	var req augmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	tbl, err := tableFromJSON(req.Columns, req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rng, err := a.streams.SeededStream(r.Context(), "augment", req.Seed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var result = tbl
	if req.BasisID == "" {
		result, err = simulate.Conditional(tbl, refstats.DefaultBasis(), rng)
	} else {
		id := core.BasisID(req.BasisID)
		if basis, berr := a.bases.GetBasis(r.Context(), id); berr == nil {
			result, err = simulate.Conditional(tbl, basis, rng)
		} else if grouped, gerr := a.bases.GetGrouped(r.Context(), id); gerr == nil {
			result, err = simulate.ConditionalGrouped(tbl, grouped, rng)
		} else {
			writeError(w, http.StatusNotFound, fmt.Errorf("basis %s not found", id))
			return
		}
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	order, data := tableToJSON(result)
	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": order, "data": data})
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	runs, err := a.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (a *App) handleRefStats(w http.ResponseWriter, r *http.Request) {
	filter := refstats.Filter{}
	if raw := r.URL.Query().Get("country"); raw != "" {
		filter.Countries = strings.Split(raw, ",")
	}
	if raw := r.URL.Query().Get("loadtype"); raw != "" {
		filter.LoadTypes = strings.Split(raw, ",")
	}
	records := refstats.Lookup(filter)

	type entry struct {
		refstats.Record
		FCharacteristic float64 `json:"f_characteristic"`
	}
	out := make([]entry, len(records))
	for i, rec := range records {
		out[i] = entry{Record: rec, FCharacteristic: refstats.CharacteristicValue(rec.F)}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": out})
}

func parseKeys(names []string) ([]core.VariableKey, error) {
	out := make([]core.VariableKey, len(names))
	for i, name := range names {
		key, err := core.ParseVariableKey(name)
		if err != nil {
			return nil, err
		}
		out[i] = key
	}
	return out, nil
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case core.IsDomainError(err),
		core.IsInsufficientDataError(err),
		core.IsNoObservedVariablesError(err),
		core.IsInvalidSubsampleError(err):
		return http.StatusBadRequest
	case core.IsSingularCovarianceError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
