package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestFixedString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want []byte
	}{
		{name: "short", in: "ab", n: 4, want: []byte{'a', 'b', 0, 0}},
		{name: "exact keeps terminator", in: "abcd", n: 4, want: []byte{'a', 'b', 'c', 0}},
		{name: "eleven chars in ten", in: "Norepinephr", n: 10, want: append([]byte("Norepinep"), 0)},
		{name: "empty", in: "", n: 3, want: []byte{0, 0, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FixedString(tc.in, tc.n)
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("FixedString(%q, %d) = % X, want % X", tc.in, tc.n, got, tc.want)
			}
		})
	}
}

func TestCString(t *testing.T) {
	if got := CString([]byte{'h', 'i', 0, 'x'}); got != "hi" {
		t.Fatalf("CString = %q", got)
	}
	if got := CString([]byte{'o', 'k', 0xFF}); got != "ok" {
		t.Fatalf("CString = %q", got)
	}
}

func TestWriterLittleEndian(t *testing.T) {
	w := NewWriter(16)
	w.Uint16(0x0102)
	w.Uint32(0x03040506)
	w.Uint24(0x0A0B0C)
	w.Float32(100)
	want := []byte{0x02, 0x01, 0x06, 0x05, 0x04, 0x03, 0x0C, 0x0B, 0x0A, 0x00, 0x00, 0xC8, 0x42}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("bytes = % X, want % X", w.Bytes(), want)
	}
	if got := Float32At(w.Bytes(), 9); got != 100 {
		t.Fatalf("Float32At = %v", got)
	}
	w.PadTo(16, 0xFF)
	if w.Len() != 16 || w.Bytes()[15] != 0xFF {
		t.Fatalf("PadTo produced %d bytes", w.Len())
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  int32
	}{
		{value: 30, unit: "min", want: 1800},
		{value: 2, unit: "hr", want: 7200},
		{value: 1.5, unit: "h", want: 5400},
		{value: 45, unit: "s", want: 45},
		{value: 12, unit: "", want: 12},
	}
	for _, tc := range tests {
		got, err := Seconds(tc.value, tc.unit)
		if err != nil {
			t.Fatalf("Seconds(%v, %q): %v", tc.value, tc.unit, err)
		}
		if got != tc.want {
			t.Fatalf("Seconds(%v, %q) = %d, want %d", tc.value, tc.unit, got, tc.want)
		}
	}
	if _, err := Seconds(1, "fortnight"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
	for _, v := range []float64{1e9, -1e9, math.NaN()} {
		if _, err := Seconds(v, "hr"); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("Seconds(%v, hr) error = %v, want ErrInvalidValue", v, err)
		}
	}
	if got, err := Seconds(math.MaxInt32, "s"); err != nil || got != math.MaxInt32 {
		t.Fatalf("Seconds(MaxInt32) = %d, %v", got, err)
	}
}

func TestMicrograms(t *testing.T) {
	got, err := Micrograms(50, "mg")
	if err != nil {
		t.Fatalf("Micrograms: %v", err)
	}
	if got != 50000 {
		t.Fatalf("Micrograms(50, mg) = %v, want 50000", got)
	}
	if got, _ := Micrograms(250, "mcg"); got != 250 {
		t.Fatalf("Micrograms(250, mcg) = %v", got)
	}
	if _, err := Micrograms(1, "tsp"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}
