package iop

import (
	"bytes"
	"io"
	"testing"

	"github.com/flarco/g"
	"github.com/stretchr/testify/assert"
)

func TestCompression(t *testing.T) {
	value := "testing,compression\n1,2\n"

	for _, cpType := range []CompressorType{NoneCompressorType, GzipCompressorType, ZStandardCompressorType} {
		cp := NewCompressor(cpType)
		assert.Equal(t, cpType, cp.Type())

		buf := &bytes.Buffer{}
		w, err := cp.NewWriter(buf)
		g.AssertNoError(t, err)
		_, err = w.Write([]byte(value))
		g.AssertNoError(t, err)
		g.AssertNoError(t, w.Close())

		dReader, err := cp.Decompress(bytes.NewReader(buf.Bytes()))
		g.AssertNoError(t, err)
		result, err := io.ReadAll(dReader)
		g.AssertNoError(t, err)
		assert.Equal(t, value, string(result), cpType)

		// auto-detection
		aReader, err := AutoDecompress(bytes.NewReader(buf.Bytes()))
		g.AssertNoError(t, err)
		result, err = io.ReadAll(aReader)
		g.AssertNoError(t, err)
		assert.Equal(t, value, string(result), cpType)
	}

	assert.Equal(t, ".gz", NewCompressor("GZIP").Suffix())
	assert.Equal(t, ".zst", NewCompressor(ZStandardCompressorType).Suffix())
	assert.Equal(t, "", NewCompressor("snappy").Suffix())
}
