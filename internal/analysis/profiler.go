package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"datainsight/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
)

const (
	// TopValues bounds the most-common list of categorical columns
	TopValues = 5
	// ExampleValues bounds the example values kept per column
	ExampleValues = 3
)

// Data type labels inferred per column
const (
	TypeInt64   = "int64"
	TypeFloat64 = "float64"
	TypeBool    = "bool"
	TypeObject  = "object"
)

// profileColumnFn is swapped in tests to force a column failure
var profileColumnFn = profileColumn

// Profile computes a ColumnProfile for every column of the table. A failure
// in one column is logged and yields a degraded profile for that column only.
func Profile(t *Table) map[string]models.ColumnProfile {
	profiles := make(map[string]models.ColumnProfile, len(t.Columns))
	for c, name := range t.Columns {
		var (
			p   models.ColumnProfile
			err error
		)
		recovered := panics.Try(func() {
			p, err = profileColumnFn(t, c)
		})
		if recovered != nil {
			err = recovered.AsError()
		}
		if err != nil {
			perr := &ColumnProfilingError{Column: name, Err: err}
			log.WithFields(log.Fields{
				"column": name,
				"error":  perr.Error(),
				"event":  "column_profile_degraded",
			}).Warn("Column profiling failed, using minimal profile")
			p = minimalProfile(t, c)
		}
		profiles[name] = p
	}
	return profiles
}

// minimalProfile carries the type label and counts only
func minimalProfile(t *Table, c int) models.ColumnProfile {
	p := models.ColumnProfile{
		Name:     columnName(t, c),
		DataType: TypeObject,
		Kind:     models.ColumnCategorical,
		Degraded: true,
	}
	for r := range t.Rows {
		if t.Cell(r, c).IsNull() {
			p.NullCount++
		} else {
			p.Count++
		}
	}
	return p
}

func columnName(t *Table, c int) string {
	if c < len(t.Columns) {
		return t.Columns[c]
	}
	return fmt.Sprintf("column_%d", c)
}

func profileColumn(t *Table, c int) (models.ColumnProfile, error) {
	if c >= len(t.Columns) {
		return models.ColumnProfile{}, errors.New("column index out of range")
	}

	values := make([]Value, 0, len(t.Rows))
	nulls := 0
	for r := range t.Rows {
		v := t.Cell(r, c)
		if v.IsNull() {
			nulls++
			continue
		}
		values = append(values, v)
	}

	dtype := InferType(values)
	p := models.ColumnProfile{
		Name:      t.Columns[c],
		DataType:  dtype,
		Kind:      KindOf(dtype),
		Count:     len(values),
		NullCount: nulls,
	}

	unique := countUnique(values)
	p.UniqueCount = &unique

	for _, v := range values {
		if len(p.ExampleValues) == ExampleValues {
			break
		}
		p.ExampleValues = append(p.ExampleValues, v.String())
	}

	if len(values) == 0 {
		return p, nil
	}

	if p.Kind == models.ColumnNumeric {
		nums := make([]float64, len(values))
		for i, v := range values {
			nums[i], _ = v.Number()
		}
		numericStats(&p, nums)
		return p, nil
	}

	p.MostCommon = mostCommon(values, TopValues)
	return p, nil
}

// InferType labels a column from the kinds of its non-null values
func InferType(values []Value) string {
	if len(values) == 0 {
		return TypeObject
	}
	ints, floats, bools := 0, 0, 0
	for _, v := range values {
		switch v.Kind {
		case KindInteger:
			ints++
		case KindFloat:
			floats++
		case KindBoolean:
			bools++
		}
	}
	switch {
	case ints == len(values):
		return TypeInt64
	case ints+floats == len(values):
		return TypeFloat64
	case bools == len(values):
		return TypeBool
	}
	return TypeObject
}

// KindOf maps a data type label onto its domain kind
func KindOf(dtype string) models.ColumnKind {
	switch dtype {
	case TypeInt64, TypeFloat64:
		return models.ColumnNumeric
	}
	return models.ColumnCategorical
}

func numericStats(p *models.ColumnProfile, nums []float64) {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	n := len(sorted)

	minV, maxV := sorted[0], sorted[n-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	p.MinValue = &minV
	p.MaxValue = &maxV
	p.Mean = &mean
	p.Median = &median

	// Sample deviation is undefined below two values
	if n >= 2 {
		ss := 0.0
		for _, v := range sorted {
			d := v - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(n-1))
		p.StdDev = &std
	}
}

// valueKey groups values for unique and frequency counts. Numbers compare by
// their float64 value so 1 and 1.0 are the same entry.
type valueKey struct {
	kind Kind
	num  float64
	text string
}

func keyOf(v Value) valueKey {
	if f, ok := v.Number(); ok {
		return valueKey{kind: KindFloat, num: f}
	}
	if v.Kind == KindBoolean {
		return valueKey{kind: KindBoolean, text: v.String()}
	}
	return valueKey{kind: v.Kind, text: v.Text}
}

func countUnique(values []Value) int {
	seen := make(map[valueKey]struct{}, len(values))
	for _, v := range values {
		seen[keyOf(v)] = struct{}{}
	}
	return len(seen)
}

// mostCommon returns the top n values by count; ties keep first-seen order
func mostCommon(values []Value, n int) []models.ValueCount {
	type entry struct {
		label string
		count int
		first int
	}
	index := make(map[valueKey]int)
	var entries []entry
	for i, v := range values {
		k := keyOf(v)
		if j, ok := index[k]; ok {
			entries[j].count++
			continue
		}
		index[k] = len(entries)
		entries = append(entries, entry{label: v.String(), count: 1, first: i})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].count > entries[b].count
	})
	if len(entries) > n {
		entries = entries[:n]
	}

	out := make([]models.ValueCount, len(entries))
	for i, e := range entries {
		out[i] = models.ValueCount{Value: e.label, Count: e.count}
	}
	return out
}
