package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"timbersim/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *App {
	return NewApp(testkit.NewInMemoryBasisRepository(), testkit.NewInMemoryRunRepository())
}

func doJSON(t *testing.T, app *App, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// referenceColumns returns a small correlated two-variable dataset in wire form.
func referenceColumns() (columns []string, data ColumnsJSON) {
	f := []interface{}{28.0, 31.5, 26.2, 35.8, 30.1, 33.4, 27.9, 32.6, 29.3, 34.0}
	e := []interface{}{10400.0, 11600.0, 9900.0, 13100.0, 11200.0, 12400.0, 10300.0, 12000.0, 10900.0, 12700.0}
	return []string{"f", "E"}, ColumnsJSON{"f": f, "E": e}
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildBasis_AndFetch(t *testing.T) {
	app := newTestApp()
	columns, data := referenceColumns()

	rec := doJSON(t, app, http.MethodPost, "/api/basis", map[string]interface{}{
		"name":       "smoke",
		"columns":    columns,
		"data":       data,
		"variables":  []string{"f", "E"},
		"transforms": map[string]string{"f": "log"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode(t, rec)
	assert.Equal(t, false, created["grouped"])
	id, ok := created["id"].(string)
	require.True(t, ok)

	rec = doJSON(t, app, http.MethodGet, "/api/basis/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode(t, rec)
	assert.Equal(t, false, fetched["grouped"])

	rec = doJSON(t, app, http.MethodGet, "/api/basis/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildBasis_Grouped(t *testing.T) {
	app := newTestApp()

	country := make([]interface{}, 20)
	f := make([]interface{}, 20)
	e := make([]interface{}, 20)
	for i := 0; i < 20; i++ {
		if i < 10 {
			country[i] = "at"
		} else {
			country[i] = "de"
		}
		f[i] = 28.0 + float64(i%7)*1.3
		e[i] = 10500.0 + float64(i%7)*310 + float64(i)*12
	}

	rec := doJSON(t, app, http.MethodPost, "/api/basis", map[string]interface{}{
		"name":       "per-country",
		"columns":    []string{"country", "f", "E"},
		"data":       ColumnsJSON{"country": country, "f": f, "E": e},
		"variables":  []string{"f", "E"},
		"group_keys": []string{"country"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["grouped"])
}

func TestBuildBasis_InsufficientData(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodPost, "/api/basis", map[string]interface{}{
		"columns":   []string{"f", "E"},
		"data":      ColumnsJSON{"f": []interface{}{30.0, 31.0}, "E": []interface{}{11000.0, 11200.0}},
		"variables": []string{"f", "E"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulate_DefaultsAndReport(t *testing.T) {
	app := newTestApp()

	rec := doJSON(t, app, http.MethodPost, "/api/simulate", map[string]interface{}{"n": 200, "seed": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	runID, ok := body["run_id"].(string)
	require.True(t, ok)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	f, ok := data["f"].([]interface{})
	require.True(t, ok)
	assert.Len(t, f, 200)

	rec = doJSON(t, app, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode(t, rec)["runs"].([]interface{})
	assert.Len(t, runs, 1)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/runs/%s/report", runID), nil)
	report := httptest.NewRecorder()
	app.Router().ServeHTTP(report, req)
	require.Equal(t, http.StatusOK, report.Code)
	assert.Contains(t, report.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, report.Body.String(), "<table>")
	assert.Contains(t, report.Body.String(), runID)
}

func TestSimulate_UnknownSampler(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodPost, "/api/simulate", map[string]interface{}{
		"n": 50, "sampler": "bootstrap",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulate_InvalidDefinitions(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodPost, "/api/simulate", map[string]interface{}{
		"n": 50,
		"definitions": []map[string]interface{}{
			{"keys": []map[string]string{{"name": "country", "value": "at"}}, "anchors": []interface{}{}, "weight": 1},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAugment_DefaultBasis(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodPost, "/api/augment", map[string]interface{}{
		"columns": []string{"f", "E"},
		"data": ColumnsJSON{
			"f": []interface{}{30.0, nil, 34.5},
			"E": []interface{}{11000.0, 11400.0, 12100.0},
		},
		"seed": 9,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	data := body["data"].(map[string]interface{})
	rho, ok := data["rho"].([]interface{})
	require.True(t, ok, "augmented dataset should gain the density column")
	assert.Len(t, rho, 3)
	for i, cell := range rho {
		assert.NotNil(t, cell, "row %d", i)
	}
	// Observed columns pass through untouched, missing cells included.
	f := data["f"].([]interface{})
	assert.Equal(t, 30.0, f[0])
	assert.Nil(t, f[1])
}

func TestAugment_UnknownBasis(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodPost, "/api/augment", map[string]interface{}{
		"columns":  []string{"f"},
		"data":     ColumnsJSON{"f": []interface{}{30.0}},
		"basis_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAugment_NoObservedVariables(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodPost, "/api/augment", map[string]interface{}{
		"columns": []string{"grade"},
		"data":    ColumnsJSON{"grade": []interface{}{"C24", "C30"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefStats(t *testing.T) {
	rec := doJSON(t, newTestApp(), http.MethodGet, "/api/refstats?country=at", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode(t, rec)["records"].([]interface{})
	require.Len(t, records, 2)

	first := records[0].(map[string]interface{})
	assert.Equal(t, "at", first["country"])
	f := first["f"].(map[string]interface{})
	assert.Less(t, first["f_characteristic"].(float64), f["mean"].(float64))
}
