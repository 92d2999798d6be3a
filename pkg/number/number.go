// Package number converts between numeric text and the float64 numbers
// used by both the lexer and the runtime.
package number

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	hexPattern     = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
	decimalPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// Parse converts s to a number the way the language's tonumber does:
// surrounding whitespace is ignored, hexadecimal literals are read as
// integers and everything else as decimal floating point.
func Parse(s string) (float64, bool) {
	s = strings.Trim(s, " \t\n\r\f\v")
	if s == "" {
		return 0, false
	}

	neg := false
	body := s
	if body[0] == '-' || body[0] == '+' {
		neg = body[0] == '-'
		body = body[1:]
	}

	if hexPattern.MatchString(body) {
		n, err := strconv.ParseUint(body[2:], 16, 64)
		if err != nil {
			// too wide for 64 bits: keep the magnitude as a float
			f, ferr := strconv.ParseFloat("0x"+body[2:]+"p0", 64)
			if ferr != nil {
				return 0, false
			}
			if neg {
				f = -f
			}
			return f, true
		}
		f := float64(n)
		if neg {
			f = -f
		}
		return f, true
	}

	if !decimalPattern.MatchString(body) {
		return 0, false
	}

	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		// ParseFloat reports overflow as an error but still returns ±Inf
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return 0, false
		}
	}
	if neg {
		f = -f
	}

	return f, true
}

// Format renders f like the reference runtime's "%.14g"
func Format(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}

	if f == 0 && math.Signbit(f) {
		return "-0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'g', 14, 64)
}
