package blockfmt

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

func TestChecksumMatchesReferenceLoop(t *testing.T) {
	// Bit-at-a-time form of the pump tooling's checksum.
	reference := func(seed uint32, data []byte) uint32 {
		crc := seed ^ 0xFFFFFFFF
		for _, b := range data {
			crc ^= uint32(b)
			for j := 0; j < 8; j++ {
				if crc&1 != 0 {
					crc = (crc >> 1) ^ 0xEDB88320
				} else {
					crc >>= 1
				}
			}
		}
		return ^crc
	}
	tests := []struct {
		name string
		seed uint32
		data []byte
	}{
		{name: "empty", seed: 0, data: nil},
		{name: "ascii", seed: 0, data: []byte("123456789")},
		{name: "seeded", seed: 0x6B6B8B66, data: []byte{0x00, 0xFF, 0x10, 0x20}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Checksum(tc.seed, tc.data)
			want := reference(tc.seed, tc.data)
			if got != want {
				t.Fatalf("Checksum = 0x%08X, want 0x%08X", got, want)
			}
		})
	}
	if got := Checksum(0, []byte("123456789")); got != 0xCBF43926 {
		t.Fatalf("check value = 0x%08X, want 0xCBF43926", got)
	}
}

func TestChecksumChains(t *testing.T) {
	a := []byte("first block")
	b := []byte("second block")
	chained := Checksum(Checksum(0, a), b)
	whole := Checksum(0, append(append([]byte{}, a...), b...))
	if chained != whole {
		t.Fatalf("chained = 0x%08X, want 0x%08X", chained, whole)
	}
}

func TestChecksumHex(t *testing.T) {
	got, err := ChecksumHex(0, "313233343536373839")
	if err != nil {
		t.Fatalf("ChecksumHex: %v", err)
	}
	if got != crc32.ChecksumIEEE([]byte("123456789")) {
		t.Fatalf("ChecksumHex = 0x%08X", got)
	}
	if _, err := ChecksumHex(0, "zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}

func TestPadToSize(t *testing.T) {
	got := PadToSize([]byte{1, 2}, 5, FillByte)
	if !bytes.Equal(got, []byte{1, 2, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("PadToSize = % X", got)
	}
	long := []byte{1, 2, 3, 4}
	if got := PadToSize(long, 2, 0); len(got) != 4 {
		t.Fatalf("PadToSize truncated input to %d bytes", len(got))
	}
}

func TestPadAndChecksum(t *testing.T) {
	for _, n := range []int{64, 256, 512} {
		in := []byte("record body")
		out := PadAndChecksum(0, in, n)
		if len(out) != n {
			t.Fatalf("len = %d, want %d", len(out), n)
		}
		padded := PadToSize(in, n-4, 0xFF)
		want := Checksum(0, padded)
		if got := binary.LittleEndian.Uint32(out[n-4:]); got != want {
			t.Fatalf("trailer = 0x%08X, want 0x%08X", got, want)
		}
		if !Verify(0, out) {
			t.Fatalf("Verify failed for size %d", n)
		}
		out[0] ^= 0x01
		if Verify(0, out) {
			t.Fatalf("Verify accepted corrupted record")
		}
	}
}

func TestIsErased(t *testing.T) {
	if !IsErased(Filled(64)) {
		t.Fatalf("Filled block not erased")
	}
	if IsErased([]byte{0xFF, 0x00}) {
		t.Fatalf("block with data reported erased")
	}
}
