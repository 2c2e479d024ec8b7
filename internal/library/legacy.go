package library

import (
	"strconv"
	"strings"

	"example.com/druglib/internal/blockfmt"
)

// LegacyKind tells how a legacy library token was written.
type LegacyKind int

const (
	LegacyNone LegacyKind = iota
	LegacyRaw
	LegacyDigest
)

const digestPrefix = "MD5--"

func (k LegacyKind) String() string {
	switch k {
	case LegacyRaw:
		return "raw"
	case LegacyDigest:
		return "digest"
	default:
		return "none"
	}
}

// LegacyToken is the resolved library integrity token stored in every
// protocol record and in the globals block.
type LegacyToken struct {
	Kind  LegacyKind
	Text  string
	Value uint32
}

// ResolveLegacyToken interprets the descriptor's token text:
//   - eight hex digits are read big-endian ("6B6B8B66" -> 0x6B6B8B66);
//   - "MD5--<hex>" is hex-decoded and checksummed with seed 0;
//   - anything else resolves to zero.
func ResolveLegacyToken(text string) LegacyToken {
	t := strings.TrimSpace(text)
	tok := LegacyToken{Text: t}
	switch {
	case len(t) == 8 && isHex(t):
		v, err := strconv.ParseUint(t, 16, 32)
		if err != nil {
			return tok
		}
		tok.Kind = LegacyRaw
		tok.Value = uint32(v)
	case strings.HasPrefix(t, digestPrefix):
		v, err := blockfmt.ChecksumHex(0, t[len(digestPrefix):])
		if err != nil {
			return tok
		}
		tok.Kind = LegacyDigest
		tok.Value = v
	}
	return tok
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
