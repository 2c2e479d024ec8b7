package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	binaryOrder = binary.LittleEndian

	ErrUnknownUnit  = errors.New("unknown unit")
	ErrInvalidValue = errors.New("invalid value")
)

// Writer appends fixed-width little-endian fields to a byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

func (w *Writer) Len() int      { return len(w.buf) }
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Uint16(v uint16) {
	w.buf = binaryOrder.AppendUint16(w.buf, v)
}

func (w *Writer) Uint24(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binaryOrder.AppendUint32(w.buf, v)
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (w *Writer) Float32(v float64) {
	w.Uint32(math.Float32bits(float32(v)))
}

// String writes s as a fixed n-byte field (see FixedString).
func (w *Writer) String(s string, n int) {
	w.buf = append(w.buf, FixedString(s, n)...)
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Fill appends n copies of c.
func (w *Writer) Fill(c byte, n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, c)
	}
}

// PadTo fills with c until the writer holds n bytes.
func (w *Writer) PadTo(n int, c byte) {
	if w.Len() < n {
		w.Fill(c, n-w.Len())
	}
}

// FixedString returns s left-justified in an n-byte NUL padded field. At
// most n-1 characters are kept so the field always ends in NUL; longer
// values are truncated silently.
func FixedString(s string, n int) []byte {
	out := make([]byte, n)
	if n == 0 {
		return out
	}
	keep := len(s)
	if keep > n-1 {
		keep = n - 1
	}
	copy(out, s[:keep])
	return out
}

// CString returns the text of a NUL-terminated field.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 || c == 0xFF {
			return string(b[:i])
		}
	}
	return string(b)
}

// Float32At reads a little-endian float32 at off.
func Float32At(b []byte, off int) float64 {
	return float64(math.Float32frombits(binaryOrder.Uint32(b[off:])))
}

func Uint16At(b []byte, off int) uint16 { return binaryOrder.Uint16(b[off:]) }
func Uint32At(b []byte, off int) uint32 { return binaryOrder.Uint32(b[off:]) }
func Int32At(b []byte, off int) int32   { return int32(binaryOrder.Uint32(b[off:])) }

// Seconds converts a duration value in unit to whole seconds.
func Seconds(value float64, unit string) (int32, error) {
	var factor float64
	switch normalizeUnit(unit) {
	case "", "s", "sec", "second", "seconds":
		factor = 1
	case "min", "mins", "minute", "minutes":
		factor = 60
	case "hr", "h", "hrs", "hour", "hours":
		factor = 3600
	default:
		return 0, fmt.Errorf("%w: duration %q", ErrUnknownUnit, unit)
	}
	sec := math.Round(value * factor)
	if math.IsNaN(sec) || sec < math.MinInt32 || sec > math.MaxInt32 {
		return 0, fmt.Errorf("%w: duration %v %s out of range", ErrInvalidValue, value, unit)
	}
	return int32(sec), nil
}

// Micrograms converts a drug amount to micrograms. Amounts in non-mass
// units (units, mEq) are returned unchanged.
func Micrograms(value float64, unit string) (float64, error) {
	switch normalizeUnit(unit) {
	case "mg":
		return value * 1000, nil
	case "mcg", "µg", "ug":
		return value, nil
	case "g":
		return value * 1_000_000, nil
	case "units", "unit", "meq":
		return value, nil
	default:
		return 0, fmt.Errorf("%w: amount %q", ErrUnknownUnit, unit)
	}
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}
