package models

import "time"

// ColumnKind is the domain a column was classified into
type ColumnKind string

const (
	ColumnNumeric     ColumnKind = "numeric"
	ColumnCategorical ColumnKind = "categorical"
)

// ValueCount is one entry of a categorical column's most frequent values
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnProfile holds the statistics computed for one column.
// Numeric fields are only set for numeric columns with at least one
// non-null value; MostCommon only for categorical columns with data.
type ColumnProfile struct {
	Name          string       `json:"name"`
	DataType      string       `json:"data_type"`
	Kind          ColumnKind   `json:"kind"`
	Count         int          `json:"count"`
	NullCount     int          `json:"null_count"`
	UniqueCount   *int         `json:"unique_count,omitempty"`
	MinValue      *float64     `json:"min_value,omitempty"`
	MaxValue      *float64     `json:"max_value,omitempty"`
	Mean          *float64     `json:"mean,omitempty"`
	Median        *float64     `json:"median,omitempty"`
	StdDev        *float64     `json:"std_dev,omitempty"`
	MostCommon    []ValueCount `json:"most_common,omitempty"`
	ExampleValues []string     `json:"example_values,omitempty"`
	Degraded      bool         `json:"degraded,omitempty"`
}

// DatasetPreview is the result of reading and profiling a table
type DatasetPreview struct {
	Columns     []string                 `json:"columns"`
	PreviewRows []map[string]any         `json:"preview_rows"`
	ColumnStats map[string]ColumnProfile `json:"column_stats"`
	TotalRows   int                      `json:"total_rows"`
	Sampled     bool                     `json:"sampled,omitempty"`
}

// Dataset is a registered, profiled table. It is not modified after
// registration.
type Dataset struct {
	ID               string
	Name             string
	OriginalFilename string
	FilePath         string
	FileType         string
	FileSize         int64
	UploadedAt       time.Time
	Columns          []string
	RowCount         int
	PreviewRows      []map[string]any
	Stats            map[string]ColumnProfile
	Sampled          bool
}

// Preview rebuilds the preview view of a stored dataset
func (d *Dataset) Preview() DatasetPreview {
	return DatasetPreview{
		Columns:     d.Columns,
		PreviewRows: d.PreviewRows,
		ColumnStats: d.Stats,
		TotalRows:   d.RowCount,
		Sampled:     d.Sampled,
	}
}
