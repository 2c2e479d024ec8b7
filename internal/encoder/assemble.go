package encoder

import (
	"errors"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/common"
	"example.com/druglib/internal/library"
)

// Options adjusts how references are resolved.
type Options struct {
	// StrictReferences fails the encode on a node reference that names a
	// missing protocol, view or label set instead of writing 0xFF.
	StrictReferences bool
}

// Result is one encoded library image.
// Sections are sub-slices of Image in section order.
type Result struct {
	Image           []byte
	Sections        [][]byte
	LayerCounts     []int
	MapEntries      int
	SkippedDefaults []int
	Warnings        []Warning
}

// Encode compiles d into the fixed-size flash image. The descriptor is not
// modified and equal descriptors always produce equal images.
func Encode(d *library.Descriptor, opts Options) (*Result, error) {
	if d == nil {
		return nil, errors.New("encode: nil descriptor")
	}
	if len(d.Roles) > MaxRoles {
		return nil, &SizeError{Section: "roles", Got: len(d.Roles), Want: MaxRoles}
	}
	if len(d.Protocols) > MaxProtocols {
		return nil, &SizeError{Section: "protocols", Got: len(d.Protocols), Want: MaxProtocols}
	}

	r := &refs{d: d, strict: opts.StrictReferences}
	entries, err := collectProtocolMap(d, r)
	if err != nil {
		return nil, err
	}
	mapPos := make(map[*library.Node]int, len(entries))
	for k, e := range entries {
		mapPos[e.node] = k
	}

	nav, counts, err := encodeNavigation(d, mapPos)
	if err != nil {
		return nil, err
	}

	protocols := make([]byte, 0, ProtocolsSize)
	constraints := make([]byte, 0, ConstraintsSize)
	for i, p := range d.Protocols {
		rec, err := encodeProtocol(i, p, d.Legacy)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, rec...)
		guards, err := encodeConstraints(i, p)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, guards...)
	}
	protocols = blockfmt.PadToSize(protocols, ProtocolsSize, blockfmt.FillByte)
	constraints = blockfmt.PadToSize(constraints, ConstraintsSize, blockfmt.FillByte)

	views, err := encodeViews(d.Views)
	if err != nil {
		return nil, err
	}
	defaults, skipped, err := encodeDefaultViews(d.DefaultViews)
	if err != nil {
		return nil, err
	}
	for _, i := range skipped {
		common.Logf("default view %d: delivery mode %q not encoded", i, d.DefaultViews[i].ModeName)
	}
	userConfig, err := encodeUserConfig(d, entries)
	if err != nil {
		return nil, err
	}

	parts := [][]byte{nav, protocols, constraints, views, defaults, userConfig}
	image := make([]byte, 0, ImageSize)
	res := &Result{
		LayerCounts:     counts,
		MapEntries:      len(entries),
		SkippedDefaults: skipped,
		Warnings:        r.warnings,
	}
	for k, part := range parts {
		if err := checkSize(Sections[k].Name, len(part), Sections[k].Size); err != nil {
			return nil, err
		}
		image = append(image, part...)
	}
	if err := checkSize("image", len(image), ImageSize); err != nil {
		return nil, err
	}
	off := 0
	for _, sec := range Sections {
		res.Sections = append(res.Sections, image[off:off+sec.Size])
		off += sec.Size
	}
	res.Image = image
	for _, w := range res.Warnings {
		common.Logf("unresolved reference %s", w)
	}
	common.Logf("encoded %q: %d protocols, %d views, layers %v, %d map entries",
		d.NameVersion(), len(d.Protocols), len(d.Views), counts, len(entries))
	return res, nil
}

func checkSize(section string, got, want int) error {
	if got != want {
		return &SizeError{Section: section, Got: got, Want: want}
	}
	return nil
}
