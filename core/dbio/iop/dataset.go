package iop

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/flarco/g"
	"github.com/flarco/g/csv"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// Table is tabular data that can be written out as delimited
// files and split into row-bounded chunks.
type Table interface {
	Count() int
	Chunk(rowsPerChunk int) []Table
	CsvFormat() CsvFormat
	WriteCsvFile(folder string, cpType CompressorType) (path string, err error)
}

// CsvFormat is the layout of the files written by WriteCsvFile
type CsvFormat struct {
	Delimiter string
	NullAs    string
	Header    bool
}

// Column represents a dataset column
type Column struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Columns represent many columns
type Columns []Column

// NewColumnsFromFields creates Columns from fields
func NewColumnsFromFields(fields ...string) (cols Columns) {
	cols = make(Columns, len(fields))
	for i, field := range fields {
		cols[i] = Column{Name: field, Position: i + 1}
	}
	return
}

// Names return the column names
func (cols Columns) Names() []string {
	return lo.Map(cols, func(c Column, i int) string { return c.Name })
}

// Dataset is an in-memory table
type Dataset struct {
	Columns Columns `json:"columns"`
	Rows    [][]any `json:"rows"`

	// NullAs is the text written for nil values
	NullAs    string `json:"null_as,omitempty"`
	Delimiter rune   `json:"-"`
}

// NewDataset return a new dataset
func NewDataset(columns Columns) (data Dataset) {
	data = Dataset{
		Columns: columns,
		Rows:    [][]any{},
	}
	return
}

// Append appends a new row
func (data *Dataset) Append(row ...[]any) {
	data.Rows = append(data.Rows, row...)
}

// Count returns the number of rows
func (data *Dataset) Count() int {
	return len(data.Rows)
}

// CsvFormat returns the layout WriteCsv uses
func (data *Dataset) CsvFormat() CsvFormat {
	delimiter := ","
	if data.Delimiter != 0 {
		delimiter = string(data.Delimiter)
	}
	return CsvFormat{Delimiter: delimiter, NullAs: data.NullAs, Header: true}
}

// GetFields return the fields of the Data
func (data *Dataset) GetFields() []string {
	return data.Columns.Names()
}

// Chunk splits the dataset into datasets of at most rowsPerChunk
// rows. The chunks share the columns and row slices of data.
func (data *Dataset) Chunk(rowsPerChunk int) (chunks []Table) {
	if rowsPerChunk <= 0 || len(data.Rows) <= rowsPerChunk {
		return []Table{data}
	}

	for _, rows := range lo.Chunk(data.Rows, rowsPerChunk) {
		chunk := *data
		chunk.Rows = rows
		chunks = append(chunks, &chunk)
	}
	return
}

// WriteCsv writes the header and rows as CSV
func (data *Dataset) WriteCsv(dest io.Writer) (tbw int, err error) {
	w := csv.NewWriter(dest)
	if data.Delimiter != 0 {
		w.Comma = data.Delimiter
	}
	defer w.Flush()

	tbw, err = w.Write(data.GetFields())
	if err != nil {
		return tbw, g.Error(err, "error write row to csv file")
	}

	for _, row := range data.Rows {
		rec := make([]string, len(row))
		for i, val := range row {
			rec[i] = data.castToString(val)
		}
		bw, err := w.Write(rec)
		if err != nil {
			return tbw, g.Error(err, "error write row to csv file")
		}
		tbw = tbw + bw
	}
	return
}

// WriteCsvFile writes the dataset into a new file in folder,
// compressed with cpType. The caller owns the returned file.
func (data *Dataset) WriteCsvFile(folder string, cpType CompressorType) (path string, err error) {
	compressor := NewCompressor(cpType)

	file, err := os.CreateTemp(folder, "rscopy-*.csv"+compressor.Suffix())
	if err != nil {
		return "", g.Error(err, "could not create temp file in %s", folder)
	}
	path = file.Name()

	cleanUp := func() {
		file.Close()
		os.Remove(path)
	}

	cw, err := compressor.NewWriter(file)
	if err != nil {
		cleanUp()
		return "", g.Error(err, "could not open compressor")
	}

	if _, err = data.WriteCsv(cw); err != nil {
		cleanUp()
		return "", g.Error(err, "could not write csv to %s", path)
	}

	if err = cw.Close(); err != nil {
		cleanUp()
		return "", g.Error(err, "could not close compressor for %s", path)
	}

	if err = file.Close(); err != nil {
		os.Remove(path)
		return "", g.Error(err, "could not close %s", path)
	}

	return path, nil
}

func (data *Dataset) castToString(val any) string {
	switch v := val.(type) {
	case nil:
		return data.NullAs
	case time.Time:
		if v.IsZero() {
			return data.NullAs
		}
		return v.Format("2006-01-02 15:04:05.000000")
	case *time.Time:
		if v == nil {
			return data.NullAs
		}
		return data.castToString(*v)
	case []byte:
		return string(v)
	case bool:
		return strings.ToLower(cast.ToString(v))
	default:
		return cast.ToString(v)
	}
}
