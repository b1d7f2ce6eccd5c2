package analysis

import (
	"context"

	"datainsight/internal/models"

	log "github.com/sirupsen/logrus"
)

// PreviewRows is the number of leading rows kept for display
const PreviewRows = 10

// Processor reads and profiles tables. Work is admitted through a Pool so
// profiling cannot stall query dispatch.
type Processor struct {
	pool *Pool
}

func NewProcessor(pool *Pool) *Processor {
	return &Processor{pool: pool}
}

// Process reads a file and profiles it
func (p *Processor) Process(ctx context.Context, path string, mode Mode) (models.DatasetPreview, error) {
	var preview models.DatasetPreview
	err := p.pool.Do(ctx, func() error {
		t, err := ReadFile(path, mode)
		if err != nil {
			return err
		}
		preview = Analyze(t)
		preview.Sampled = mode == ModeSample
		return nil
	})
	if err != nil {
		return models.DatasetPreview{}, err
	}

	log.WithFields(log.Fields{
		"path":    path,
		"rows":    preview.TotalRows,
		"columns": len(preview.Columns),
		"sampled": preview.Sampled,
		"event":   "dataset_profiled",
	}).Info("Dataset profiled")
	return preview, nil
}

// ProcessTable profiles an already loaded table, e.g. one read from a database
func (p *Processor) ProcessTable(ctx context.Context, t *Table) (models.DatasetPreview, error) {
	var preview models.DatasetPreview
	err := p.pool.Do(ctx, func() error {
		preview = Analyze(t)
		return nil
	})
	return preview, err
}

// Analyze profiles a table and builds its preview
func Analyze(t *Table) models.DatasetPreview {
	return models.DatasetPreview{
		Columns:     append([]string(nil), t.Columns...),
		PreviewRows: previewRows(t, PreviewRows),
		ColumnStats: Profile(t),
		TotalRows:   len(t.Rows),
	}
}

func previewRows(t *Table, n int) []map[string]any {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	rows := make([]map[string]any, n)
	for r := 0; r < n; r++ {
		row := make(map[string]any, len(t.Columns))
		for c, name := range t.Columns {
			row[name] = t.Cell(r, c).Interface()
		}
		rows[r] = row
	}
	return rows
}
