package analysis

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Mode selects between reading a whole file and a bounded sample
type Mode int

const (
	ModeFull Mode = iota
	ModeSample
)

// SampleRows is the row bound applied in ModeSample
const SampleRows = 1000

// SupportedExtensions lists the file types the reader accepts
var SupportedExtensions = []string{".csv", ".xlsx", ".json"}

// LegacyExcelExtension is the BIFF workbook format, which cannot be read
const LegacyExcelExtension = ".xls"

var errInvalidEncoding = errors.New("invalid utf-8 input")

// fallbackEncoding is tried once when a text file is not valid UTF-8
var fallbackEncoding encoding.Encoding = charmap.ISO8859_1

// IsSupported reports whether the file extension can be read
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ReadFile loads a table from disk. In ModeSample at most SampleRows data
// rows are returned.
func ReadFile(path string, mode Mode) (*Table, error) {
	limit := -1
	if mode == ModeSample {
		limit = SampleRows
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		t   *Table
		err error
	)
	switch ext {
	case ".csv":
		t, err = readCSV(path, limit)
	case ".json":
		t, err = readJSON(path, limit)
	case ".xlsx":
		t, err = readXLSX(path, limit)
	default:
		return nil, &UnsupportedFormatError{Extension: ext}
	}
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &ReadError{Path: path, Err: err}
	}
	return t, nil
}

// ============================================================================
// CSV
// ============================================================================

func readCSV(path string, limit int) (*Table, error) {
	t, err := readCSVWith(path, limit, nil)
	if errors.Is(err, errInvalidEncoding) {
		log.WithFields(log.Fields{
			"path":  path,
			"event": "encoding_fallback",
		}).Warn("CSV is not valid UTF-8, retrying as ISO-8859-1")
		t, err = readCSVWith(path, limit, fallbackEncoding)
	}
	return t, err
}

func readCSVWith(path string, limit int, enc encoding.Encoding) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var src io.Reader = file
	if enc != nil {
		src = enc.NewDecoder().Reader(file)
	}
	br := bufio.NewReader(src)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true    // Allow bare quotes in non-quoted fields

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}
	if !validUTF8(headers) {
		return nil, errInvalidEncoding
	}
	headers = append([]string(nil), headers...)
	for i, h := range headers {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
	}
	headers = uniqueColumns(headers)

	t := &Table{Columns: headers}
	skipped := 0
	for limit < 0 || len(t.Rows) < limit {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, err
		}
		if !validUTF8(record) {
			return nil, errInvalidEncoding
		}
		if len(record) > len(headers) {
			skipped++
			continue
		}
		row := make([]Value, len(headers))
		for i, cell := range record {
			row[i] = ParseCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}

	if skipped > 0 {
		log.WithFields(log.Fields{
			"path":    path,
			"skipped": skipped,
			"event":   "bad_lines_skipped",
		}).Warn("Skipped malformed CSV rows")
	}
	return t, nil
}

// sniffDelimiter picks ',', ';' or tab from the header line
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	best, bestN := ',', bytes.Count(peek, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(peek, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// uniqueColumns names blank headers "Unnamed: i" and suffixes repeated
// names with ".1", ".2", ... so every column keeps its own key.
func uniqueColumns(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	counts := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		name := n
		for used[name] {
			counts[n]++
			name = fmt.Sprintf("%s.%d", n, counts[n])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func validUTF8(fields []string) bool {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return false
		}
	}
	return true
}

// ============================================================================
// JSON
// ============================================================================

func readJSON(path string, limit int) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		log.WithFields(log.Fields{
			"path":  path,
			"event": "encoding_fallback",
		}).Warn("JSON is not valid UTF-8, retrying as ISO-8859-1")
		data, err = fallbackEncoding.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeOrdered(dec)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	t, err := tableFromJSON(root)
	if err != nil {
		return nil, err
	}
	// JSON cannot be row-limited while parsing
	t.Truncate(limit)
	return t, nil
}

// orderedObject is a JSON object that remembers key order
type orderedObject struct {
	keys   []string
	values map[string]any
}

func (o *orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := &orderedObject{values: map[string]any{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			if _, seen := obj.values[key]; !seen {
				obj.keys = append(obj.keys, key)
			}
			obj.values[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// tableFromJSON accepts a list of records or an object of columns
func tableFromJSON(root any) (*Table, error) {
	switch doc := root.(type) {
	case []any:
		return tableFromRecords(doc), nil
	case *orderedObject:
		return tableFromColumns(doc), nil
	}
	return nil, fmt.Errorf("unsupported JSON layout: expected an array of records or an object of columns")
}

func tableFromRecords(records []any) *Table {
	t := &Table{}
	index := map[string]int{}
	var objs []*orderedObject
	skipped := 0
	for _, rec := range records {
		obj, ok := rec.(*orderedObject)
		if !ok {
			skipped++
			continue
		}
		for _, k := range obj.keys {
			if _, ok := index[k]; !ok {
				index[k] = len(t.Columns)
				t.Columns = append(t.Columns, k)
			}
		}
		objs = append(objs, obj)
	}
	for _, obj := range objs {
		row := make([]Value, len(t.Columns))
		for _, k := range obj.keys {
			row[index[k]] = ValueOf(obj.values[k])
		}
		t.Rows = append(t.Rows, row)
	}
	if skipped > 0 {
		log.WithFields(log.Fields{
			"skipped": skipped,
			"event":   "bad_records_skipped",
		}).Warn("Skipped JSON records that are not objects")
	}
	return t
}

func tableFromColumns(obj *orderedObject) *Table {
	t := &Table{Columns: uniqueColumns(obj.keys)}
	cols := make([][]any, len(obj.keys))
	n := 0
	for i, k := range obj.keys {
		switch v := obj.values[k].(type) {
		case []any:
			cols[i] = v
		case *orderedObject:
			vals := make([]any, len(v.keys))
			for j, ik := range v.keys {
				vals[j] = v.values[ik]
			}
			cols[i] = vals
		default:
			cols[i] = []any{v}
		}
		if len(cols[i]) > n {
			n = len(cols[i])
		}
	}
	for r := 0; r < n; r++ {
		row := make([]Value, len(cols))
		for c, vals := range cols {
			if r < len(vals) {
				row[c] = ValueOf(vals[r])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ============================================================================
// XLSX
// ============================================================================

func readXLSX(path string, limit int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var t *Table
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if t == nil {
			headers := make([]string, len(cells))
			for i, c := range cells {
				headers[i] = strings.TrimSpace(c)
			}
			t = &Table{Columns: uniqueColumns(headers)}
			continue
		}
		if isBlank(cells) {
			continue
		}
		if limit >= 0 && len(t.Rows) >= limit {
			break
		}
		row := make([]Value, len(t.Columns))
		for i, c := range cells {
			if i >= len(row) {
				break
			}
			row[i] = ParseCell(c)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("no columns to parse from file")
	}
	return t, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
