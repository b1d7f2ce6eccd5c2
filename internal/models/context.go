package models

// MissingValues describes the nulls found in one column
type MissingValues struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ColumnContext is the prompt-facing summary of one column
type ColumnContext struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	ExampleValues []string       `json:"example_values,omitempty"`
	Min           *float64       `json:"min,omitempty"`
	Max           *float64       `json:"max,omitempty"`
	Mean          *float64       `json:"mean,omitempty"`
	Missing       *MissingValues `json:"missing,omitempty"`
}

// DatasetContext is the bounded projection of a Dataset that gets embedded
// into prompts. It is rebuilt for every query and never stored.
type DatasetContext struct {
	Name    string          `json:"name"`
	Rows    int             `json:"rows"`
	Columns []ColumnContext `json:"columns"`
}
