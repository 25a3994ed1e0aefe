package trace

import (
	"path/filepath"
	"strconv"
	"strings"
)

var compressedExtensions = []string{".gz", ".xz", ".zip", ".bz2", ".zz"}

// RunNumber extracts the replicate index the instrument appends to each
// export's stem, e.g. "300K_FID07.ASC" -> 7. For names with several dots the
// part just before the final extension is used, ignoring any compression
// suffix. ok is false if the stem does not end in digits.
func RunNumber(path string) (int, bool) {
	base := filepath.Base(path)
	for _, ext := range compressedExtensions {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}

	parts := strings.Split(base, ".")
	stem := parts[0]
	if len(parts) >= 2 {
		stem = parts[len(parts)-2]
	}

	end := len(stem)
	start := end
	for start > 0 && stem[start-1] >= '0' && stem[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}

	n, err := strconv.Atoi(stem[start:end])
	if err != nil {
		return 0, false
	}

	return n, true
}
