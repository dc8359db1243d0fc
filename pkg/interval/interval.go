// Package interval implements real intervals with independent open/closed
// endpoints, the primitive every port contract is built from.
package interval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Interval is a real interval. Unbounded sides are ±Inf and always open.
// The zero value is (0, 0), which is empty; use the constructors.
type Interval struct {
	lo, hi             float64
	loClosed, hiClosed bool
}

// New returns the interval between lo and hi with the given inclusivity flags.
// An infinite bound is forced open. New does not reject empty intervals;
// callers that require non-emptiness check IsEmpty.
func New(lo, hi float64, loClosed, hiClosed bool) Interval {
	if math.IsInf(lo, 0) {
		loClosed = false
	}
	if math.IsInf(hi, 0) {
		hiClosed = false
	}
	return Interval{lo: lo, hi: hi, loClosed: loClosed, hiClosed: hiClosed}
}

// Closed returns [lo, hi].
func Closed(lo, hi float64) Interval { return New(lo, hi, true, true) }

// Open returns (lo, hi).
func Open(lo, hi float64) Interval { return New(lo, hi, false, false) }

// LeftOpen returns (lo, hi].
func LeftOpen(lo, hi float64) Interval { return New(lo, hi, false, true) }

// RightOpen returns [lo, hi).
func RightOpen(lo, hi float64) Interval { return New(lo, hi, true, false) }

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval { return Closed(v, v) }

// Unbounded returns (-∞, ∞).
func Unbounded() Interval { return Open(math.Inf(-1), math.Inf(1)) }

// Lo returns the lower bound.
func (i Interval) Lo() float64 { return i.lo }

// Hi returns the upper bound.
func (i Interval) Hi() float64 { return i.hi }

// LoClosed reports whether the lower bound is included.
func (i Interval) LoClosed() bool { return i.loClosed }

// HiClosed reports whether the upper bound is included.
func (i Interval) HiClosed() bool { return i.hiClosed }

// IsUnbounded reports whether the interval is (-∞, ∞).
func (i Interval) IsUnbounded() bool { return math.IsInf(i.lo, -1) && math.IsInf(i.hi, 1) }

// IsEmpty reports whether the interval contains no point. NaN bounds are empty.
func (i Interval) IsEmpty() bool {
	if !(i.lo <= i.hi) {
		return true
	}
	if i.lo == i.hi {
		return !(i.loClosed && i.hiClosed)
	}
	return false
}

// Contains reports whether x lies in the interval.
func (i Interval) Contains(x float64) bool {
	if math.IsNaN(x) || i.IsEmpty() {
		return false
	}
	if i.loClosed {
		if x < i.lo {
			return false
		}
	} else if !(x > i.lo) {
		return false
	}
	if i.hiClosed {
		return x <= i.hi
	}
	return x < i.hi
}

// Equal reports whether both bounds and both inclusivity flags agree.
func (i Interval) Equal(o Interval) bool {
	return i.lo == o.lo && i.hi == o.hi && i.loClosed == o.loClosed && i.hiClosed == o.hiClosed
}

// Intersect returns the set intersection of a and b. The result may be empty.
func Intersect(a, b Interval) Interval {
	var out Interval
	switch {
	case a.lo > b.lo:
		out.lo, out.loClosed = a.lo, a.loClosed
	case b.lo > a.lo:
		out.lo, out.loClosed = b.lo, b.loClosed
	default:
		out.lo, out.loClosed = a.lo, a.loClosed && b.loClosed
	}
	switch {
	case a.hi < b.hi:
		out.hi, out.hiClosed = a.hi, a.hiClosed
	case b.hi < a.hi:
		out.hi, out.hiClosed = b.hi, b.hiClosed
	default:
		out.hi, out.hiClosed = a.hi, a.hiClosed && b.hiClosed
	}
	return out
}

// Subset reports whether every point of i lies in o. It is the test the
// composer uses: the overlap of i and o reproduces i exactly.
func (i Interval) Subset(o Interval) bool {
	if i.IsEmpty() {
		return true
	}
	return Intersect(i, o).Equal(i)
}

// Width returns hi - lo, or 0 for an empty interval.
func (i Interval) Width() float64 {
	if i.IsEmpty() {
		return 0
	}
	return i.hi - i.lo
}

// Clamp returns the nearest value to x within the closure of i.
func (i Interval) Clamp(x float64) float64 {
	if i.IsEmpty() {
		return x
	}
	return math.Min(math.Max(x, i.lo), i.hi)
}

// String renders ℝ for the unbounded interval and bracket notation otherwise.
func (i Interval) String() string {
	if i.IsUnbounded() {
		return "ℝ"
	}
	var b strings.Builder
	if i.loClosed {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	b.WriteString(formatBound(i.lo))
	b.WriteString(", ")
	b.WriteString(formatBound(i.hi))
	if i.hiClosed {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Parse reads an interval from its text form: "[a, b]", "(a, b]", "[a, b)",
// "(a, b)", "ℝ" or "R", or a bare number for a point. Bounds accept inf, ∞
// and their negations.
func Parse(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return Interval{}, fmt.Errorf("empty interval text")
	case "ℝ", "R", "reals":
		return Unbounded(), nil
	}
	if v, err := parseBound(s); err == nil {
		return Point(v), nil
	}

	left, right := s[0], s[len(s)-1]
	if (left != '[' && left != '(') || (right != ']' && right != ')') {
		return Interval{}, fmt.Errorf("interval %q: expected bracket notation like [a, b)", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("interval %q: expected exactly two bounds", s)
	}
	lo, err := parseBound(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: lower bound: %w", s, err)
	}
	hi, err := parseBound(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: upper bound: %w", s, err)
	}
	return New(lo, hi, left == '[', right == ']'), nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Interval {
	i, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return i
}

func parseBound(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "∞", "+∞":
		return math.Inf(1), nil
	case "-∞":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	return v, nil
}

// MarshalText implements encoding.TextMarshaler using the String form.
func (i Interval) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse.
func (i *Interval) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
