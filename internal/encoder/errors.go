package encoder

import (
	"errors"
	"fmt"

	"example.com/druglib/internal/library"
)

var (
	ErrSectionSize         = errors.New("section size mismatch")
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// SizeError reports a section or table whose size differs from the fixed
// layout. It is always fatal.
type SizeError struct {
	Section string
	Got     int
	Want    int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: size %d, want %d", e.Section, e.Got, e.Want)
}

func (e *SizeError) Is(target error) bool { return target == ErrSectionSize }

func configErr(path string, err error) error {
	return &library.ConfigError{Path: path, Err: err}
}

// OptionalIndex is a table position that may be absent. Absent indices are
// written as 0xFF.
type OptionalIndex struct {
	Index uint8
	Valid bool
}

// Some returns a present index.
func Some(i int) OptionalIndex { return OptionalIndex{Index: uint8(i), Valid: true} }

// None is the absent index.
var None = OptionalIndex{}

// Byte returns the encoded index.
func (o OptionalIndex) Byte() byte {
	if !o.Valid {
		return 0xFF
	}
	return o.Index
}

func (o OptionalIndex) String() string {
	if !o.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", o.Index)
}

// Warning records a reference that was degraded to an absent index.
type Warning struct {
	Path   string
	Kind   string
	Target string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s %q not found", w.Path, w.Kind, w.Target)
}

// refs resolves node references against the descriptor tables and collects
// warnings for the ones that miss.
type refs struct {
	d        *library.Descriptor
	strict   bool
	warnings []Warning
}

func (r *refs) resolve(path, kind, name string, lookup func(string) (int, bool)) (OptionalIndex, error) {
	if name == "" {
		return None, nil
	}
	if i, ok := lookup(name); ok {
		return Some(i), nil
	}
	w := Warning{Path: path, Kind: kind, Target: name}
	if r.strict {
		return None, fmt.Errorf("%w: %s", ErrUnresolvedReference, w)
	}
	r.warnings = append(r.warnings, w)
	return None, nil
}

func (r *refs) protocol(path, name string) (OptionalIndex, error) {
	return r.resolve(path, "protocol", name, r.d.ProtocolIndex)
}

func (r *refs) view(path, name string) (OptionalIndex, error) {
	return r.resolve(path, "view", name, r.d.ViewIndex)
}

func (r *refs) labelSet(path, name string) (OptionalIndex, error) {
	return r.resolve(path, "label set", name, r.d.LabelSetIndex)
}
