package chromquant

import (
	"bytes"
	"io"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// Delimiters that tabular inputs (calibration tables, manifests) may use.
const tabularDelimiters = ",\t;"

// DetermineDelimiter returns the most likely rune delimiting the values in
// the reader, assuming a CSV-like file. Only comma, tab and semicolon are
// considered; anything else falls back to a comma.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()

	for _, candidate := range d.DetectDelimiter(r, '"') {
		if len(candidate) == 1 && strings.ContainsRune(tabularDelimiters, rune(candidate[0])) {
			return rune(candidate[0])
		}
	}

	return ','
}

// DetermineDelimiterBytes is DetermineDelimiter over an in-memory file. If
// the header line contains exactly one of the accepted delimiters it is
// trusted directly, since the detector needs several rows to be confident.
func DetermineDelimiterBytes(b []byte) rune {
	header := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		header = b[:i]
	}

	var found []rune
	for _, d := range tabularDelimiters {
		if bytes.ContainsRune(header, d) {
			found = append(found, d)
		}
	}
	if len(found) == 1 {
		return found[0]
	}

	return DetermineDelimiter(bytes.NewReader(b))
}
