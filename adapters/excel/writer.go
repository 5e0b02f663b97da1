package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"timbersim/domain/table"
	"timbersim/ports"

	"github.com/xuri/excelize/v2"
)

// DataWriter writes a table to an Excel or CSV file, chosen by extension
type DataWriter struct {
	filePath string
	fileType string
}

var _ ports.DatasetWriter = (*DataWriter)(nil)

// NewDataWriter creates a writer for the given path
func NewDataWriter(filePath string) *DataWriter {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataWriter{filePath: filePath, fileType: fileType}
}

// Write persists the table
func (w *DataWriter) Write(tbl *table.Table) error {
	log.Printf("[DataWriter] Writing %d rows x %d columns to %s", tbl.RowCount(), tbl.ColumnCount(), w.filePath)
	switch w.fileType {
	case "csv":
		return w.writeCSV(tbl)
	default:
		return w.writeExcel(tbl)
	}
}

func (w *DataWriter) writeExcel(tbl *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	rows := renderRows(tbl)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(w.filePath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func (w *DataWriter) writeCSV(tbl *table.Table) error {
	file, err := os.Create(w.filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	for _, row := range renderRows(tbl) {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}

// renderRows flattens a table into header + string data rows. Missing
// numeric values render as empty cells.
func renderRows(tbl *table.Table) [][]string {
	columns := tbl.Columns()
	rows := make([][]string, tbl.RowCount()+1)

	header := make([]string, len(columns))
	for j, name := range columns {
		header[j] = string(name)
	}
	rows[0] = header

	for i := 0; i < tbl.RowCount(); i++ {
		row := make([]string, len(columns))
		for j, name := range columns {
			if nums, ok := tbl.Numeric(name); ok {
				if table.IsMissing(nums[i]) {
					continue
				}
				row[j] = strconv.FormatFloat(nums[i], 'g', -1, 64)
				continue
			}
			if cats, ok := tbl.Categorical(name); ok {
				row[j] = cats[i]
			}
		}
		rows[i+1] = row
	}
	return rows
}
