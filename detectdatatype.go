package chromquant

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

func (d DataType) String() string {
	switch d {
	case DataTypeNoCompression:
		return "uncompressed"
	case DataTypeGzip:
		return "gzip"
	case DataTypeZip:
		return "zip"
	case DataTypeXZ:
		return "xz"
	case DataTypeZ:
		return "zlib"
	case DataTypeBZip2:
		return "bzip2"
	}

	return "invalid"
}

// zlib streams start with 0x78 followed by a byte encoding the compression
// level.
var byteCodeSigs = []struct {
	DataType
	sig []byte
}{
	{DataTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{DataTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{DataTypeGzip, []byte{0x1f, 0x8b, 0x08}},
	{DataTypeBZip2, []byte{0x42, 0x5a, 0x68}},
	{DataTypeZ, []byte{0x78, 0x01}},
	{DataTypeZ, []byte{0x78, 0x5e}},
	{DataTypeZ, []byte{0x78, 0x9c}},
	{DataTypeZ, []byte{0x78, 0xda}},
}

// DetectDataType attempts to detect the data type of a stream by checking
// against a set of known data types. Byte code signatures from
// https://stackoverflow.com/a/19127748/199475 . Streams shorter than a
// signature are treated as uncompressed.
func DetectDataType(r io.Reader) (DataType, error) {
	buff := make([]byte, 6)
	n, err := io.ReadFull(r, buff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return DataTypeInvalid, err
	}
	buff = buff[:n]

	for _, candidate := range byteCodeSigs {
		if bytes.HasPrefix(buff, candidate.sig) {
			return candidate.DataType, nil
		}
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompressReadCloser sniffs the first bytes of rsc, rewinds it, and
// wraps it in the matching decompressor. Closing the result closes rsc. Zip
// archives yield the contents of their first entry.
func MaybeDecompressReadCloser(rsc ReadSeekCloser) (io.ReadCloser, error) {
	dt, err := DetectDataType(rsc)
	if err != nil {
		return nil, err
	}

	// Reset the original reader before handing it to a decompressor, which
	// may consume its header immediately.
	if _, err := rsc.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch dt {
	case DataTypeGzip:
		gz, err := gzip.NewReader(rsc)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: gz, closers: []io.Closer{gz, rsc}}, nil
	case DataTypeZip:
		zr := zipstream.NewReader(rsc)
		if _, err := zr.Next(); err != nil {
			return nil, fmt.Errorf("zip stream has no readable entry: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{rsc}}, nil
	case DataTypeBZip2:
		return &stackedCloser{Reader: bzip2.NewReader(rsc), closers: []io.Closer{rsc}}, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(rsc, 0)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: reader, closers: []io.Closer{rsc}}, nil
	case DataTypeZ:
		zl, err := zlib.NewReader(rsc)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: zl, closers: []io.Closer{zl, rsc}}, nil
	}

	// No data type detected. For now, we assume this is uncompressed.
	return rsc, nil
}

// stackedCloser closes the decompressor (if it needs it) and then the
// underlying source.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *stackedCloser) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
