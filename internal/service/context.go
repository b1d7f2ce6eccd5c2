package service

import (
	"fmt"

	"datainsight/internal/analysis"
	"datainsight/internal/models"
)

// DatasetLookup resolves a dataset by id
type DatasetLookup interface {
	Resolve(id string) (*models.Dataset, error)
}

// ContextService projects stored datasets into prompt context
type ContextService struct {
	datasets DatasetLookup
}

func NewContextService(datasets DatasetLookup) *ContextService {
	return &ContextService{datasets: datasets}
}

// ForDataset resolves id and summarizes the dataset
func (s *ContextService) ForDataset(id string) (*models.DatasetContext, error) {
	if s.datasets == nil {
		return nil, fmt.Errorf("no dataset store configured")
	}
	d, err := s.datasets.Resolve(id)
	if err != nil {
		return nil, err
	}
	ctx := Summarize(d)
	return &ctx, nil
}

// Summarize builds the bounded context for d. Every column gets a fixed set
// of fields, at most 3 example values and at most one missing-value note.
func Summarize(d *models.Dataset) models.DatasetContext {
	ctx := models.DatasetContext{
		Name:    d.Name,
		Rows:    d.RowCount,
		Columns: make([]models.ColumnContext, 0, len(d.Columns)),
	}
	for _, name := range d.Columns {
		col := models.ColumnContext{Name: name, Type: analysis.TypeObject}

		stats, ok := d.Stats[name]
		if ok {
			col.Type = stats.DataType
			if n := len(stats.ExampleValues); n > 0 {
				if n > analysis.ExampleValues {
					n = analysis.ExampleValues
				}
				col.ExampleValues = append([]string(nil), stats.ExampleValues[:n]...)
			}
			col.Min = stats.MinValue
			col.Max = stats.MaxValue
			col.Mean = stats.Mean
			if stats.NullCount > 0 {
				col.Missing = &models.MissingValues{
					Count:      stats.NullCount,
					Percentage: float64(stats.NullCount) / float64(stats.Count+stats.NullCount) * 100,
				}
			}
		}
		ctx.Columns = append(ctx.Columns, col)
	}
	return ctx
}
