package iop

import (
	"bufio"
	"io"
	"strings"

	"github.com/flarco/g"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compressor implements differnt kind of compression
type Compressor interface {
	Type() CompressorType
	NewWriter(io.Writer) (io.WriteCloser, error)
	Decompress(io.Reader) (io.Reader, error)
	Suffix() string
}

// CompressorType is the name of a compression codec
type CompressorType string

const (
	// NoneCompressorType is for no compression
	NoneCompressorType CompressorType = "none"
	// GzipCompressorType is for Gzip compression
	GzipCompressorType CompressorType = "gzip"
	// ZStandardCompressorType is for ZStandard
	ZStandardCompressorType CompressorType = "zstd"
)

// String converts to lowercase
func (ct CompressorType) String() string {
	return strings.ToLower(string(ct))
}

// NewCompressor returns the compressor for the type. Unknown
// types fall back to no compression.
func NewCompressor(cpType CompressorType) Compressor {
	var compressor Compressor
	switch CompressorType(cpType.String()) {
	case GzipCompressorType:
		compressor = &GzipCompressor{suffix: ".gz"}
	case ZStandardCompressorType:
		compressor = &ZStandardCompressor{suffix: ".zst"}
	default:
		compressor = &NoneCompressor{suffix: ""}
	}
	return compressor
}

type NoneCompressor struct {
	suffix string
}

func (cp *NoneCompressor) Type() CompressorType {
	return NoneCompressorType
}

func (cp *NoneCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (cp *NoneCompressor) Decompress(reader io.Reader) (io.Reader, error) {
	return reader, nil
}

func (cp *NoneCompressor) Suffix() string {
	return cp.suffix
}

type GzipCompressor struct {
	suffix string
}

func (cp *GzipCompressor) Type() CompressorType {
	return GzipCompressorType
}

// NewWriter wraps w with a gzip writer
func (cp *GzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	gw, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return nil, g.Error(err, "could not create gzip writer")
	}
	return gw, nil
}

// Decompress uses gzip to decompress
func (cp *GzipCompressor) Decompress(reader io.Reader) (gReader io.Reader, err error) {
	gReader, err = gzip.NewReader(reader)
	if err != nil {
		return reader, g.Error(err, "Error using gzip decompressor")
	}

	return gReader, nil
}

func (cp *GzipCompressor) Suffix() string {
	return cp.suffix
}

type ZStandardCompressor struct {
	suffix string
}

func (cp *ZStandardCompressor) Type() CompressorType {
	return ZStandardCompressorType
}

// NewWriter wraps w with a zstd encoder
func (cp *ZStandardCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, g.Error(err, "could not create zstandard writer")
	}
	return zw, nil
}

func (cp *ZStandardCompressor) Decompress(reader io.Reader) (sReader io.Reader, err error) {
	zr, err := zstd.NewReader(reader)
	if err != nil {
		return nil, g.Error(err, "Error decompressing with Zstandard")
	}

	return zr.IOReadCloser(), nil
}

func (cp *ZStandardCompressor) Suffix() string {
	return cp.suffix
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// AutoDecompress auto detects compression to decompress. Otherwise return same reader
func AutoDecompress(reader io.Reader) (gReader io.Reader, err error) {
	bReader, ok := reader.(*bufio.Reader)
	if !ok {
		bReader = bufio.NewReader(reader)
	}

	testBytes, err := bReader.Peek(4)
	if err != nil {
		return bReader, nil
	}

	switch {
	case testBytes[0] == 31 && testBytes[1] == 139:
		return NewCompressor(GzipCompressorType).Decompress(bReader)
	case testBytes[0] == 0x28 && testBytes[1] == 0xb5 && testBytes[2] == 0x2f && testBytes[3] == 0xfd:
		return NewCompressor(ZStandardCompressorType).Decompress(bReader)
	}

	return bReader, nil
}
