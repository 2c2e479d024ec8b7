package encoder

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Hex returns the lowercase hex dump stored in library files.
func (r *Result) Hex() string {
	return hex.EncodeToString(r.Image)
}

// FileName returns "Library-<name>-<version>@<unix-ms>.hex".
func FileName(name, version string, at time.Time) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch r {
			case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
				return '_'
			}
			return r
		}, strings.TrimSpace(s))
	}
	return fmt.Sprintf("Library-%s-%s@%d.hex", clean(name), clean(version), at.UnixMilli())
}
