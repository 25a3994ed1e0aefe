package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout of the PeakSimple ASCII export. Line numbers are 1-based.
const (
	headerSkipLines = 18
	dateLine        = 19
	timeLine        = 20
	rateLine        = 21
	sizeLine        = 22
	postHeaderSkip  = 3

	// Footer lines carrying integration point numbers rather than data.
	footerMarker = "IPOINT"

	// Raw values are millivolts.
	intensityScale = 1000.0

	// Upper bound on the capacity reserved from the SIZE header. Longer
	// traces still parse; the slice grows as needed.
	maxPrealloc = 1 << 20
)

// ParseError reports a malformed trace file. The file's conversion is
// abandoned; callers processing a batch move on to the next file.
type ParseError struct {
	Path  string
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: parsing %s: %v", e.Path, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: parsing %s: %v", e.Path, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errMissingField = errors.New("field is missing")

// Options control how header fields are interpreted.
type Options struct {
	// Location in which the instrument recorded its wall clock. Nil means
	// time.Local.
	Location *time.Location
}

// Parse decodes one ASC export. path is used only for error messages and is
// recorded on the Trace.
func Parse(r io.Reader, path string, opts Options) (*Trace, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := &Trace{Path: path}

	var dateField, timeField string
	lineNo := 0
	headerEnd := sizeLine + postHeaderSkip
	for lineNo < headerEnd && scanner.Scan() {
		lineNo++
		line := scanner.Text()

		var err error
		switch lineNo {
		case dateLine:
			dateField, err = headerValue(line)
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Field: "date", Err: err}
			}
		case timeLine:
			timeField, err = headerValue(line)
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Field: "time", Err: err}
			}
		case rateLine:
			out.SampleRateHz, err = parseRate(line)
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Field: "sample rate", Err: err}
			}
		case sizeLine:
			out.DeclaredSize, err = parseSize(line)
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Field: "size", Err: err}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: lineNo, Field: "header", Err: err}
	}
	if lineNo < headerEnd {
		return nil, &ParseError{Path: path, Line: lineNo, Field: "header", Err: fmt.Errorf("file ends after %d lines, expected at least %d", lineNo, headerEnd)}
	}

	acquired, err := parseAcquired(dateField, timeField, loc)
	if err != nil {
		return nil, &ParseError{Path: path, Line: dateLine, Field: "acquisition timestamp", Err: err}
	}
	out.Acquired = acquired

	values := make([]float64, 0, min(out.DeclaredSize, maxPrealloc))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(line, footerMarker) {
			continue
		}

		token := line
		if i := strings.IndexByte(line, ','); i >= 0 {
			token = strings.TrimSpace(line[:i])
		}
		raw, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, &ParseError{Path: path, Line: lineNo, Field: "intensity", Err: err}
		}
		values = append(values, float64(raw)/intensityScale)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: lineNo, Field: "intensity", Err: err}
	}

	if len(values) != out.DeclaredSize {
		out.Warnings = append(out.Warnings, PointCountWarning{Path: path, Declared: out.DeclaredSize, Parsed: len(values)})
	}

	out.Intensity = values
	out.Time = TimeAxis(len(values), out.SampleRateHz)

	return out, nil
}

// headerValue returns the trimmed text after the first '='.
func headerValue(line string) (string, error) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", errMissingField
	}

	v := strings.TrimSpace(line[i+1:])
	if v == "" {
		return "", errMissingField
	}

	return v, nil
}

// parseRate reads only the first digit after '=', the way the instrument
// software has always been read here (e.g. "SAMPLE RATE=5 Hz").
func parseRate(line string) (int, error) {
	v, err := headerValue(line)
	if err != nil {
		return 0, err
	}

	c := v[0]
	if c < '1' || c > '9' {
		return 0, fmt.Errorf("expected a nonzero leading digit, found %q", v)
	}

	return int(c - '0'), nil
}

func parseSize(line string) (int, error) {
	v, err := headerValue(line)
	if err != nil {
		return 0, err
	}

	size, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, fmt.Errorf("negative size %d", size)
	}

	return size, nil
}

// parseAcquired combines "MM-DD-YYYY" and "HH:MM:SS" fields. Exports that do
// not follow that layout are handed to dateparse.
func parseAcquired(dateField, timeField string, loc *time.Location) (time.Time, error) {
	if dateField == "" || timeField == "" {
		return time.Time{}, errMissingField
	}

	date, dateErr := splitInts(dateField, "-", 3)
	clock, clockErr := splitInts(timeField, ":", 3)
	if dateErr == nil && clockErr == nil {
		month, day, year := date[0], date[1], date[2]
		if month < 1 || month > 12 || day < 1 || day > 31 || clock[0] > 23 || clock[1] > 59 || clock[2] > 59 {
			return time.Time{}, fmt.Errorf("date %q time %q out of range", dateField, timeField)
		}
		// time.Date normalizes 02-31 into March. The clock is not compared
		// since a daylight saving gap legitimately moves the hour.
		t := time.Date(year, time.Month(month), day, clock[0], clock[1], clock[2], 0, loc)
		if t.Year() != year || int(t.Month()) != month || t.Day() != day {
			return time.Time{}, fmt.Errorf("date %q time %q out of range", dateField, timeField)
		}
		return t, nil
	}

	t, err := dateparse.ParseIn(dateField+" "+timeField, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not interpret date %q and time %q: %w", dateField, timeField, err)
	}

	return t, nil
}

func splitInts(s, sep string, n int) ([]int, error) {
	parts := strings.Split(s, sep)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d %q-separated fields in %q", n, sep, s)
	}

	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("negative field %d in %q", v, s)
		}
		out[i] = v
	}

	return out, nil
}
