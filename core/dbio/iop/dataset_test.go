package iop

import (
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/flarco/g"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDataset(numRows int) Dataset {
	data := NewDataset(NewColumnsFromFields("id", "name", "created_at"))
	for i := 0; i < numRows; i++ {
		data.Append([]any{i, g.F("name_%d", i), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)})
	}
	return data
}

func TestDatasetChunk(t *testing.T) {
	data := makeDataset(25)
	assert.Equal(t, 25, data.Count())

	chunks := data.Chunk(10)
	if assert.Len(t, chunks, 3) {
		assert.Equal(t, 10, chunks[0].Count())
		assert.Equal(t, 10, chunks[1].Count())
		assert.Equal(t, 5, chunks[2].Count())
	}

	chunks = data.Chunk(5)
	assert.Len(t, chunks, 5)

	// non-positive or oversized chunks keep a single table
	assert.Len(t, data.Chunk(0), 1)
	assert.Len(t, data.Chunk(100), 1)

	empty := makeDataset(0)
	assert.Len(t, empty.Chunk(3), 1)
}

func TestDatasetWriteCsv(t *testing.T) {
	data := NewDataset(NewColumnsFromFields("a", "b", "c", "d"))
	data.NullAs = `\N`
	data.Append([]any{1, nil, true, "x,y"})

	sb := &strings.Builder{}
	_, err := data.WriteCsv(sb)
	g.AssertNoError(t, err)
	assert.Equal(t, "a,b,c,d\n1,\\N,true,\"x,y\"\n", sb.String())

	data.Delimiter = '|'
	sb.Reset()
	_, err = data.WriteCsv(sb)
	g.AssertNoError(t, err)
	assert.Equal(t, "a|b|c|d\n1|\\N|true|x,y\n", sb.String())
}

func TestDatasetWriteCsvFile(t *testing.T) {
	folder := t.TempDir()
	data := makeDataset(7)

	for _, cpType := range []CompressorType{NoneCompressorType, GzipCompressorType, ZStandardCompressorType} {
		filePath, err := data.WriteCsvFile(folder, cpType)
		require.NoError(t, err)
		assert.Equal(t, folder, path.Dir(filePath))
		assert.True(t, strings.HasSuffix(filePath, ".csv"+NewCompressor(cpType).Suffix()))

		stat, err := os.Stat(filePath)
		require.NoError(t, err)
		assert.Greater(t, stat.Size(), int64(0))

		data2, err := ReadCsv(filePath)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "created_at"}, data2.GetFields())
		if assert.Equal(t, 7, data2.Count()) {
			assert.Equal(t, "name_6", data2.Rows[6][1])
			assert.Equal(t, "2024-01-02 03:04:05.000000", data2.Rows[0][2])
		}
	}

	_, err := data.WriteCsvFile(path.Join(folder, "missing", "dir"), GzipCompressorType)
	assert.Error(t, err)
}

func TestReadCsvNoHeader(t *testing.T) {
	c := CSV{Reader: strings.NewReader("1;a\n2;b\n"), NoHeader: true, Delimiter: ';'}
	data, err := c.Read()
	g.AssertNoError(t, err)
	assert.Equal(t, []string{"col_001", "col_002"}, data.GetFields())
	assert.Equal(t, 2, data.Count())
}
