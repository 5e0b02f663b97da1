package ports

import (
	"timbersim/domain/table"
)

// DatasetReader loads a tabular dataset from an external source
type DatasetReader interface {
	// Read loads the full dataset
	Read() (*table.Table, error)
}

// DatasetWriter persists a tabular dataset to an external sink
type DatasetWriter interface {
	// Write stores the full dataset
	Write(tbl *table.Table) error
}
