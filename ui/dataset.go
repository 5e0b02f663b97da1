package ui

import (
	"fmt"

	"timbersim/domain/core"
	"timbersim/domain/table"
)

// ColumnsJSON is the wire form of a table: column name to cell values.
// Numbers become numeric columns, strings categorical, null means missing.
type ColumnsJSON map[string][]interface{}

// tableFromJSON decodes the wire form into a table. Column order follows
// the accompanying ordered name list so round trips stay stable.
func tableFromJSON(order []string, cols ColumnsJSON) (*table.Table, error) {
	if len(order) == 0 {
		for name := range cols {
			order = append(order, name)
		}
	}
	tbl := table.New()
	for _, name := range order {
		cells, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("column %s listed but not present", name)
		}
		key, err := core.ParseVariableKey(name)
		if err != nil {
			return nil, err
		}

		numeric := true
		for _, cell := range cells {
			switch cell.(type) {
			case float64, nil:
			default:
				numeric = false
			}
		}

		if numeric {
			nums := make([]float64, len(cells))
			for i, cell := range cells {
				if cell == nil {
					nums[i] = table.Missing()
					continue
				}
				nums[i] = cell.(float64)
			}
			if err := tbl.AddNumeric(key, nums); err != nil {
				return nil, err
			}
			continue
		}

		cats := make([]string, len(cells))
		for i, cell := range cells {
			switch v := cell.(type) {
			case string:
				cats[i] = v
			case nil:
				cats[i] = ""
			default:
				return nil, fmt.Errorf("column %s: mixed cell types", name)
			}
		}
		if err := tbl.AddCategorical(key, cats); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// tableToJSON encodes a table into the wire form plus its column order
func tableToJSON(tbl *table.Table) ([]string, ColumnsJSON) {
	order := make([]string, 0, tbl.ColumnCount())
	cols := make(ColumnsJSON, tbl.ColumnCount())
	for _, name := range tbl.Columns() {
		order = append(order, string(name))
		if nums, ok := tbl.Numeric(name); ok {
			cells := make([]interface{}, len(nums))
			for i, v := range nums {
				if table.IsMissing(v) {
					continue // stays nil
				}
				cells[i] = v
			}
			cols[string(name)] = cells
			continue
		}
		cats, _ := tbl.Categorical(name)
		cells := make([]interface{}, len(cats))
		for i, v := range cats {
			if v != "" {
				cells[i] = v
			}
		}
		cols[string(name)] = cells
	}
	return order, cols
}
