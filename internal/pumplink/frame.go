package pumplink

import (
	"fmt"
	"strings"
)

const (
	stx = 0x02
	etx = 0x03
)

// ChecksumMode selects how the two checksum characters of a frame are
// computed from the command text.
type ChecksumMode byte

const (
	ChecksumSum ChecksumMode = '+'
	ChecksumXor ChecksumMode = '^'
)

func ParseChecksumMode(s string) (ChecksumMode, error) {
	switch strings.TrimSpace(s) {
	case "", "+", "sum":
		return ChecksumSum, nil
	case "^", "xor":
		return ChecksumXor, nil
	default:
		return 0, fmt.Errorf("unknown checksum symbol %q", s)
	}
}

func (m ChecksumMode) String() string { return string(rune(m)) }

// Checksum returns the last two upper-case hex digits of the sum (or xor)
// of the command bytes.
func Checksum(cmd string, mode ChecksumMode) string {
	var acc uint
	for i := 0; i < len(cmd); i++ {
		if mode == ChecksumXor {
			acc ^= uint(cmd[i])
		} else {
			acc += uint(cmd[i])
		}
	}
	return fmt.Sprintf("%02X", acc&0xFF)
}

// Frame wraps cmd as STX + cmd + checksum + ETX.
func Frame(cmd string, mode ChecksumMode) []byte {
	out := make([]byte, 0, len(cmd)+4)
	out = append(out, stx)
	out = append(out, cmd...)
	out = append(out, Checksum(cmd, mode)...)
	return append(out, etx)
}

// ParseReply strips framing and control characters and the two trailing
// checksum characters from a raw reply line.
func ParseReply(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if c < 0x20 {
			continue
		}
		b.WriteByte(c)
	}
	text := strings.TrimRight(b.String(), " ")
	if len(text) < 2 {
		return ""
	}
	return strings.ToUpper(text[:len(text)-2])
}
