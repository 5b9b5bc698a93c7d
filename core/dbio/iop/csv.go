package iop

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/flarco/g"
	"github.com/flarco/g/csv"
)

// CSV is a csv object
type CSV struct {
	Path      string
	NoHeader  bool
	Delimiter rune
	Reader    io.Reader
}

// ReadCsv reads CSV and returns dataset
func ReadCsv(path string) (Dataset, error) {
	c := CSV{Path: path}
	return c.Read()
}

// Read reads the whole CSV into a Dataset. Gzip and zstd
// input is detected and decompressed.
func (c *CSV) Read() (data Dataset, err error) {
	data = NewDataset(nil)

	if c.Reader == nil {
		file, err := os.Open(c.Path)
		if err != nil {
			return data, g.Error(err, "cannot open: %#v", c.Path)
		}
		defer file.Close()
		c.Reader = bufio.NewReader(file)
	}

	reader, err := AutoDecompress(c.Reader)
	if err != nil {
		return data, g.Error(err, "could not decompress %s", c.Path)
	}

	r := csv.NewReader(reader)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	if c.Delimiter != 0 {
		r.Comma = c.Delimiter
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return data, g.Error(err, "could not read csv row %d", len(data.Rows)+1)
		}

		if data.Columns == nil {
			if c.NoHeader {
				data.Columns = NewColumnsFromFields(CreateDummyFields(len(row))...)
			} else {
				header := make([]string, len(row))
				for i, field := range row {
					header[i] = strings.TrimSpace(field)
				}
				data.Columns = NewColumnsFromFields(header...)
				continue
			}
		}

		rec := make([]any, len(row))
		for i, val := range row {
			rec[i] = val
		}
		data.Append(rec)
	}

	g.Trace("read %d rows from %s", len(data.Rows), c.Path)

	return data, nil
}

// CreateDummyFields creates dummy columns for csvs with no header row
func CreateDummyFields(numCols int) (cols []string) {
	colFmt := "col_%03d"
	cols = make([]string, numCols)
	for i := 0; i < numCols; i++ {
		cols[i] = g.F(colFmt, i+1)
	}
	return
}
