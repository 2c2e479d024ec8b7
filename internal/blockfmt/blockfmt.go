package blockfmt

import (
	"encoding/binary"
	"encoding/hex"
	"hash/crc32"
	"strings"
)

const (
	// FillByte is the erased-flash value used for every pad.
	FillByte = 0xFF
	// TrailerSize is the length of the little-endian checksum appended by PadAndChecksum.
	TrailerSize = 4
)

// Checksum returns the seeded CRC-32 of data. The pump firmware uses the
// reflected 0xEDB88320 polynomial with the seed inverted on entry and the
// result inverted on exit, which is exactly crc32.Update with the IEEE table.
func Checksum(seed uint32, data []byte) uint32 {
	return crc32.Update(seed, crc32.IEEETable, data)
}

// ChecksumHex decodes an ASCII hex string and returns its checksum.
func ChecksumHex(seed uint32, hexText string) (uint32, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexText))
	if err != nil {
		return 0, err
	}
	return Checksum(seed, raw), nil
}

// PadToSize right-pads buf with fill up to size bytes. Inputs that are
// already size bytes or longer are returned unchanged.
func PadToSize(buf []byte, size int, fill byte) []byte {
	if len(buf) >= size {
		return buf
	}
	out := make([]byte, size)
	copy(out, buf)
	for i := len(buf); i < size; i++ {
		out[i] = fill
	}
	return out
}

// PadAndChecksum pads buf with 0xFF to size-4 bytes and appends the
// little-endian checksum of the padded bytes.
func PadAndChecksum(seed uint32, buf []byte, size int) []byte {
	padded := PadToSize(buf, size-TrailerSize, FillByte)
	out := make([]byte, len(padded), len(padded)+TrailerSize)
	copy(out, padded)
	return binary.LittleEndian.AppendUint32(out, Checksum(seed, padded))
}

// Verify reports whether a record produced by PadAndChecksum carries a
// matching trailer.
func Verify(seed uint32, record []byte) bool {
	if len(record) < TrailerSize {
		return false
	}
	body := record[:len(record)-TrailerSize]
	want := binary.LittleEndian.Uint32(record[len(record)-TrailerSize:])
	return Checksum(seed, body) == want
}

// Filled returns size bytes of 0xFF.
func Filled(size int) []byte {
	return PadToSize(nil, size, FillByte)
}

// IsErased reports whether every byte of b is 0xFF.
func IsErased(b []byte) bool {
	for _, c := range b {
		if c != FillByte {
			return false
		}
	}
	return true
}
