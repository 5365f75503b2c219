package httpapi

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// errRangeUnsatisfiable means a well-formed range lies outside the object.
	errRangeUnsatisfiable = errors.New("range not satisfiable")
	// errRangeMalformed means the header is ignored and the full body served.
	errRangeMalformed = errors.New("malformed range")
)

// byteRange is an inclusive window [start, end].
type byteRange struct {
	start, end int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRange understands a single "bytes=a-b", "bytes=a-" or "bytes=-n" spec
// against an object of size bytes. Ends past the object are clamped.
func parseRange(header string, size int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return byteRange{}, errRangeMalformed
	}
	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return byteRange{}, errRangeMalformed
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return byteRange{}, errRangeMalformed
		}
		if n == 0 || size == 0 {
			return byteRange{}, errRangeUnsatisfiable
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, errRangeMalformed
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return byteRange{}, errRangeMalformed
		}
	}
	if start >= size {
		return byteRange{}, errRangeUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{start: start, end: end}, nil
}
