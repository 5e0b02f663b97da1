package table

import (
	"fmt"
	"math"

	"timbersim/domain/core"
)

// Table is the canonical tabular data object for all simulation work: an
// ordered set of equally sized columns, each numeric or categorical.
// Missing numeric values are NaN; missing categorical values are "".
type Table struct {
	names []core.VariableKey
	cols  map[core.VariableKey]*Column
	rows  int
}

// ColumnKind defines column types
type ColumnKind string

const (
	Numeric     ColumnKind = "numeric"
	Categorical ColumnKind = "categorical"
)

// Column holds one named column of data
type Column struct {
	Name core.VariableKey
	Kind ColumnKind
	Nums []float64 // populated when Kind == Numeric
	Cats []string  // populated when Kind == Categorical
}

// Missing is the numeric missing-value marker
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a numeric value is missing
func IsMissing(v float64) bool { return math.IsNaN(v) }

// New creates an empty table
func New() *Table {
	return &Table{cols: make(map[core.VariableKey]*Column)}
}

// AddNumeric appends a numeric column. The first column fixes the row count.
func (t *Table) AddNumeric(name core.VariableKey, values []float64) error {
	if err := t.checkAdd(name, len(values)); err != nil {
		return err
	}
	t.names = append(t.names, name)
	t.cols[name] = &Column{Name: name, Kind: Numeric, Nums: values}
	t.rows = len(values)
	return nil
}

// AddCategorical appends a categorical column
func (t *Table) AddCategorical(name core.VariableKey, values []string) error {
	if err := t.checkAdd(name, len(values)); err != nil {
		return err
	}
	t.names = append(t.names, name)
	t.cols[name] = &Column{Name: name, Kind: Categorical, Cats: values}
	t.rows = len(values)
	return nil
}

func (t *Table) checkAdd(name core.VariableKey, n int) error {
	if name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if _, exists := t.cols[name]; exists {
		return fmt.Errorf("column %s already exists", name)
	}
	if len(t.names) > 0 && n != t.rows {
		return fmt.Errorf("column %s has %d rows, table has %d", name, n, t.rows)
	}
	return nil
}

// Has reports whether a column exists
func (t *Table) Has(name core.VariableKey) bool {
	_, ok := t.cols[name]
	return ok
}

// Numeric returns the numeric data for a column, false if absent or categorical
func (t *Table) Numeric(name core.VariableKey) ([]float64, bool) {
	col, ok := t.cols[name]
	if !ok || col.Kind != Numeric {
		return nil, false
	}
	return col.Nums, true
}

// Categorical returns the categorical data for a column, false if absent or numeric
func (t *Table) Categorical(name core.VariableKey) ([]string, bool) {
	col, ok := t.cols[name]
	if !ok || col.Kind != Categorical {
		return nil, false
	}
	return col.Cats, true
}

// Columns returns the column names in insertion order
func (t *Table) Columns() []core.VariableKey {
	out := make([]core.VariableKey, len(t.names))
	copy(out, t.names)
	return out
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	return t.rows
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	return len(t.names)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := New()
	for _, name := range t.names {
		col := t.cols[name]
		switch col.Kind {
		case Numeric:
			vals := make([]float64, len(col.Nums))
			copy(vals, col.Nums)
			_ = out.AddNumeric(name, vals)
		case Categorical:
			vals := make([]string, len(col.Cats))
			copy(vals, col.Cats)
			_ = out.AddCategorical(name, vals)
		}
	}
	return out
}

// Append concatenates another table with an identical schema below this one
func (t *Table) Append(other *Table) error {
	if len(t.names) == 0 {
		*t = *other.Clone()
		return nil
	}
	if len(other.names) != len(t.names) {
		return fmt.Errorf("schema mismatch: %d columns vs %d", len(other.names), len(t.names))
	}
	for _, name := range t.names {
		oc, ok := other.cols[name]
		if !ok || oc.Kind != t.cols[name].Kind {
			return fmt.Errorf("schema mismatch on column %s", name)
		}
	}
	for _, name := range t.names {
		col := t.cols[name]
		oc := other.cols[name]
		switch col.Kind {
		case Numeric:
			col.Nums = append(col.Nums, oc.Nums...)
		case Categorical:
			col.Cats = append(col.Cats, oc.Cats...)
		}
	}
	t.rows += other.rows
	return nil
}

// GroupValue renders the grouping value of one row of one column as a string.
// Numeric grouping columns use a compact decimal rendering so equal values
// encode to equal key components.
func (t *Table) GroupValue(name core.VariableKey, row int) (string, error) {
	col, ok := t.cols[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrVariableNotFound, name)
	}
	switch col.Kind {
	case Categorical:
		v := col.Cats[row]
		if v == "" {
			return "", fmt.Errorf("%w: %s row %d", core.ErrMissingGroupingValue, name, row)
		}
		return v, nil
	default:
		v := col.Nums[row]
		if IsMissing(v) {
			return "", fmt.Errorf("%w: %s row %d", core.ErrMissingGroupingValue, name, row)
		}
		return fmt.Sprintf("%g", v), nil
	}
}

// GroupKey builds the composite grouping key for one row over the given columns
func (t *Table) GroupKey(keys []core.VariableKey, row int) (core.GroupKey, error) {
	values := make([]string, len(keys))
	for i, name := range keys {
		v, err := t.GroupValue(name, row)
		if err != nil {
			return "", err
		}
		values[i] = v
	}
	return core.NewGroupKey(values...), nil
}

// Partition groups row indices by the composite key over the given columns.
// Keys are returned in first-appearance order so iteration stays deterministic.
func (t *Table) Partition(keys []core.VariableKey) ([]core.GroupKey, map[core.GroupKey][]int, error) {
	order := make([]core.GroupKey, 0)
	groups := make(map[core.GroupKey][]int)
	for row := 0; row < t.rows; row++ {
		key, err := t.GroupKey(keys, row)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}
	return order, groups, nil
}

// Select returns a new table containing only the given rows, in the given order
func (t *Table) Select(rows []int) *Table {
	out := New()
	for _, name := range t.names {
		col := t.cols[name]
		switch col.Kind {
		case Numeric:
			vals := make([]float64, len(rows))
			for i, r := range rows {
				vals[i] = col.Nums[r]
			}
			_ = out.AddNumeric(name, vals)
		case Categorical:
			vals := make([]string, len(rows))
			for i, r := range rows {
				vals[i] = col.Cats[r]
			}
			_ = out.AddCategorical(name, vals)
		}
	}
	return out
}
