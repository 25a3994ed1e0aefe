package aggregate

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// NumPy .npy files: magic, version, little-endian header length, then a
// Python dict literal padded with spaces to a 64-byte boundary and ended with
// a newline, then the raw array.
var npyMagic = []byte("\x93NUMPY")

const npyAlign = 64

// WriteNPY writes data as a little-endian float64 array of the given shape
// in C order, NumPy format version 1.0.
func WriteNPY(w io.Writer, shape []int, data []float64) error {
	n := 1
	dims := make([]string, len(shape))
	for i, d := range shape {
		n *= d
		dims[i] = strconv.Itoa(d)
	}
	if n != len(data) {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}

	tuple := "(" + strings.Join(dims, ", ") + ")"
	if len(shape) == 1 {
		tuple = "(" + dims[0] + ",)"
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': %s, }", tuple)

	// magic(6) + version(2) + length(2) + header + padding + '\n'
	prefix := len(npyMagic) + 4
	total := prefix + len(header) + 1
	if rem := total % npyAlign; rem != 0 {
		header += strings.Repeat(" ", npyAlign-rem)
	}
	header += "\n"
	if len(header) > 0xffff {
		return fmt.Errorf("npy header of %d bytes does not fit version 1.0", len(header))
	}

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)
	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return err
	}

	return bw.Flush()
}

var (
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPY reads a float64 array written by WriteNPY or by NumPy itself
// (format 1.0 or 2.0, '<f8', C order).
func ReadNPY(r io.Reader) (shape []int, data []float64, err error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, fmt.Errorf("reading npy magic: %w", err)
	}
	if !bytes.Equal(magic[:len(npyMagic)], npyMagic) {
		return nil, nil, fmt.Errorf("not an npy file")
	}

	var headerLen int
	switch major := magic[len(npyMagic)]; major {
	case 1:
		var l uint16
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, nil, err
		}
		headerLen = int(l)
	case 2, 3:
		var l uint32
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, nil, err
		}
		headerLen = int(l)
	default:
		return nil, nil, fmt.Errorf("unsupported npy format version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, nil, fmt.Errorf("reading npy header: %w", err)
	}

	m := npyDescr.FindSubmatch(header)
	if m == nil || string(m[1]) != "<f8" {
		return nil, nil, fmt.Errorf("unsupported npy dtype in header %q", header)
	}
	if m := npyFortran.FindSubmatch(header); m == nil || string(m[1]) != "False" {
		return nil, nil, fmt.Errorf("only C-ordered npy arrays are supported")
	}
	m = npyShape.FindSubmatch(header)
	if m == nil {
		return nil, nil, fmt.Errorf("npy header has no shape: %q", header)
	}

	n := 1
	for _, field := range strings.Split(string(m[1]), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		d, err := strconv.Atoi(field)
		if err != nil || d < 0 {
			return nil, nil, fmt.Errorf("bad npy dimension %q", field)
		}
		shape = append(shape, d)
		n *= d
	}

	data = make([]float64, n)
	if err := binary.Read(br, binary.LittleEndian, data); err != nil {
		return nil, nil, fmt.Errorf("reading npy data: %w", err)
	}

	return shape, data, nil
}
