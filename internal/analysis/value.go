package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Kind is the semantic kind of a single cell
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is one classified cell. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Text  string
}

var Null = Value{}

func Int(i int64) Value     { return Value{Kind: KindInteger, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func Bool(b bool) Value     { return Value{Kind: KindBoolean, Bool: b} }
func Text(s string) Value   { return Value{Kind: KindText, Text: s} }

// IsNull reports whether the cell is missing
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Number returns the numeric value of integer and float cells
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String renders the cell the way it is shown to users and models
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return FormatFloat(v.Float)
	case KindBoolean:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// Interface converts the cell for JSON encoding
func (v Value) Interface() any {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBoolean:
		return v.Bool
	case KindText:
		return v.Text
	default:
		return nil
	}
}

// FormatFloat renders whole numbers with one decimal ("3.0")
func FormatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

var nullTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"null": true,
	"NULL": true,
	"None": true,
	"#N/A": true,
	"<NA>": true,
	"#NA":  true,
	"-nan": true,
}

// ParseCell classifies a raw text cell
func ParseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if nullTokens[s] {
		return Null
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Float(f)
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return Text(raw)
}

// ValueOf classifies a Go value coming from a decoder or database driver
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return floatOrNull(float64(t))
	case float64:
		return floatOrNull(t)
	case bool:
		return Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		if f, err := t.Float64(); err == nil {
			return floatOrNull(f)
		}
		return Text(t.String())
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	case time.Time:
		return Text(t.Format(time.RFC3339))
	case json.Marshaler, map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return Text(fmt.Sprint(t))
		}
		return Text(string(b))
	default:
		return Text(fmt.Sprint(t))
	}
}

func floatOrNull(f float64) Value {
	if math.IsNaN(f) {
		return Null
	}
	return Float(f)
}

// Table is an in-memory row/column table
type Table struct {
	Columns []string
	Rows    [][]Value
}

// Cell returns the value at row r and column c; short rows read as null
func (t *Table) Cell(r, c int) Value {
	row := t.Rows[r]
	if c >= len(row) {
		return Null
	}
	return row[c]
}

// Truncate keeps at most n rows
func (t *Table) Truncate(n int) {
	if n >= 0 && len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
}
