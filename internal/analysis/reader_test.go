package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReadFile_SampleModeBoundsRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&b, "%d,%d.5\n", i, i)
	}
	path := writeFile(t, "big.csv", []byte(b.String()))

	sample, err := ReadFile(path, ModeSample)
	require.NoError(t, err)
	assert.Len(t, sample.Rows, SampleRows)

	full, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	assert.Len(t, full.Rows, 5000)
}

func TestReadFile_SampleModeBoundsJSON(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 5000; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"n":%d}`, i)
	}
	b.WriteString("]")
	path := writeFile(t, "big.json", []byte(b.String()))

	tbl, err := ReadFile(path, ModeSample)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, SampleRows)
}

func TestReadFile_CSVTypesAndNulls(t *testing.T) {
	path := writeFile(t, "mixed.csv", []byte("\ufeffa,b,c,d\n1,2.5,yes,true\nNA,,x,False\n"))

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)

	assert.Equal(t, Int(1), tbl.Rows[0][0])
	assert.Equal(t, Float(2.5), tbl.Rows[0][1])
	assert.Equal(t, Text("yes"), tbl.Rows[0][2])
	assert.Equal(t, Bool(true), tbl.Rows[0][3])
	assert.True(t, tbl.Rows[1][0].IsNull())
	assert.True(t, tbl.Rows[1][1].IsNull())
	assert.Equal(t, Bool(false), tbl.Rows[1][3])
}

func TestReadFile_SkipsMalformedRows(t *testing.T) {
	path := writeFile(t, "bad.csv", []byte("a,b\n1,2\n3,4,5\n6\n7,8\n"))

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, Int(1), tbl.Rows[0][0])
	// short rows are padded with nulls
	assert.Equal(t, Int(6), tbl.Rows[1][0])
	assert.True(t, tbl.Rows[1][1].IsNull())
	assert.Equal(t, Int(7), tbl.Rows[2][0])
}

func TestReadFile_SemicolonDelimiter(t *testing.T) {
	path := writeFile(t, "semi.csv", []byte("a;b\n1;2\n"))

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.Equal(t, Int(2), tbl.Rows[0][1])
}

func TestReadFile_Latin1Fallback(t *testing.T) {
	// "café" in ISO-8859-1
	data := []byte("name,n\ncaf\xe9,1\n")
	path := writeFile(t, "latin1.csv", data)

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, Text("café"), tbl.Rows[0][0])

	jsonPath := writeFile(t, "latin1.json", []byte("[{\"name\":\"caf\xe9\"}]"))
	tbl, err = ReadFile(jsonPath, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, Text("café"), tbl.Rows[0][0])
}

func TestReadFile_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("hello"))

	_, err := ReadFile(path, ModeFull)
	var ue *UnsupportedFormatError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ".txt", ue.Extension)
}

func TestReadFile_ReadErrors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"), ModeFull)
	var re *ReadError
	require.ErrorAs(t, err, &re)

	path := writeFile(t, "broken.json", []byte(`{"a": [1, 2`))
	_, err = ReadFile(path, ModeFull)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, path, re.Path)

	empty := writeFile(t, "empty.csv", nil)
	_, err = ReadFile(empty, ModeFull)
	require.ErrorAs(t, err, &re)
}

func TestReadFile_JSONLayouts(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		columns []string
		rows    int
	}{
		{"records", `[{"b":1,"a":"x"},{"a":"y","c":true},5]`, []string{"b", "a", "c"}, 2},
		{"columns", `{"z":[1,2,3],"y":["a","b"]}`, []string{"z", "y"}, 3},
		{"index maps", `{"x":{"0":1.5,"1":2},"w":{"0":null,"1":"q"}}`, []string{"x", "w"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "data.json", []byte(tt.body))
			tbl, err := ReadFile(path, ModeFull)
			require.NoError(t, err)
			assert.Equal(t, tt.columns, tbl.Columns)
			assert.Len(t, tbl.Rows, tt.rows)
		})
	}
}

func TestReadFile_JSONNestedValuesBecomeText(t *testing.T) {
	path := writeFile(t, "nested.json", []byte(`[{"tags":["a","b"],"meta":{"k":1,"a":2}}]`))

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, Text(`["a","b"]`), tbl.Rows[0][0])
	assert.Equal(t, Text(`{"k":1,"a":2}`), tbl.Rows[0][1])
}

func TestReadFile_DuplicateHeaders(t *testing.T) {
	path := writeFile(t, "dup.csv", []byte("a,a,b,,a.1,\n1,x,2,3,4,5\n2,y,3,4,5,6\n"))

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "b", "Unnamed: 3", "a.1.1", "Unnamed: 5"}, tbl.Columns)

	preview := Analyze(tbl)
	assert.Len(t, preview.ColumnStats, len(tbl.Columns))
	assert.Equal(t, "int64", preview.ColumnStats["a"].DataType)
	assert.Equal(t, "object", preview.ColumnStats["a.1"].DataType)
	assert.Equal(t, int64(1), preview.PreviewRows[0]["a"])
	assert.Equal(t, "x", preview.PreviewRows[0]["a.1"])
}

func TestUniqueColumns(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]string{"a", "a", "a"}, []string{"a", "a.1", "a.2"}},
		{[]string{"a", "b", "", ""}, []string{"a", "b", "Unnamed: 2", "Unnamed: 3"}},
		{[]string{"x.1", "x", "x"}, []string{"x.1", "x", "x.2"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, uniqueColumns(tt.in))
	}
}

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadFile_XLSX(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{" id ", "name", "id"},
		{1, "alpha", 1.5},
		{nil, nil, nil},
		{2, "beta", 2.5},
	})

	tbl, err := ReadFile(path, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "id.1"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, Int(1), tbl.Rows[0][0])
	assert.Equal(t, Text("alpha"), tbl.Rows[0][1])
	assert.Equal(t, Float(2.5), tbl.Rows[1][2])
}

func TestReadFile_XLSXSampleMode(t *testing.T) {
	rows := [][]any{{"n", "label"}}
	for i := 0; i < 5000; i++ {
		if i == 10 {
			rows = append(rows, []any{nil, nil})
		}
		rows = append(rows, []any{i, fmt.Sprintf("row-%d", i)})
	}
	path := writeXLSX(t, rows)

	tbl, err := ReadFile(path, ModeSample)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, SampleRows)
	assert.Equal(t, Int(0), tbl.Rows[0][0])
	assert.Equal(t, Int(10), tbl.Rows[10][0])
	assert.Equal(t, Int(SampleRows-1), tbl.Rows[SampleRows-1][0])
}

func TestReadFile_XLSXEmptyWorkbook(t *testing.T) {
	path := writeXLSX(t, nil)

	_, err := ReadFile(path, ModeFull)
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, path, re.Path)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.CSV"))
	assert.True(t, IsSupported("b.xlsx"))
	assert.True(t, IsSupported("c.json"))
	assert.False(t, IsSupported("d.xls"))
}
