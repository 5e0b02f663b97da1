// Package excel adapts Excel and CSV files to the table abstraction the
// simulation core consumes.
package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"timbersim/domain/core"
	"timbersim/domain/table"
	"timbersim/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

var _ ports.DatasetReader = (*DataReader)(nil)

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// Read loads the file into a table
func (r *DataReader) Read() (*table.Table, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSV()
	case "xlsx":
		return r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcel() (*table.Table, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read first sheet: %w", err)
	}
	log.Printf("[DataReader] Excel sheet read in %.2fms (%d rows)",
		float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return buildTable(rows)
}

func (r *DataReader) readCSV() (*table.Table, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return buildTable(rows)
}

// buildTable converts header + data rows into a table, inferring each
// column as numeric when every non-empty cell parses as a float.
func buildTable(rows [][]string) (*table.Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}
	headers := rows[0]
	data := rows[1:]

	tbl := table.New()
	for col, header := range headers {
		name, err := core.ParseVariableKey(strings.TrimSpace(header))
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", col, err)
		}

		raw := make([]string, len(data))
		numeric := true
		for i, row := range data {
			if col < len(row) {
				raw[i] = strings.TrimSpace(row[col])
			}
			if raw[i] == "" {
				continue
			}
			if _, err := strconv.ParseFloat(raw[i], 64); err != nil {
				numeric = false
			}
		}

		if numeric {
			nums := make([]float64, len(raw))
			for i, cell := range raw {
				if cell == "" {
					nums[i] = table.Missing()
					continue
				}
				nums[i], _ = strconv.ParseFloat(cell, 64)
			}
			if err := tbl.AddNumeric(name, nums); err != nil {
				return nil, err
			}
			continue
		}
		if err := tbl.AddCategorical(name, raw); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
