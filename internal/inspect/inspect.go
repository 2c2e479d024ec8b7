package inspect

import (
	"encoding/hex"
	"fmt"
	"strings"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/codec"
	"example.com/druglib/internal/common"
	"example.com/druglib/internal/encoder"
	"example.com/druglib/internal/flash"
	"example.com/druglib/internal/library"
)

// StatusBadCRC marks a record whose trailing checksum does not match.
const StatusBadCRC = "crc-mismatch"

// Split decodes a hex dump and splits it into the six image sections.
func Split(hexText string) ([][]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexText))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return SplitBytes(raw)
}

// SplitBytes splits image into its six sections. A length other than the
// fixed image size is a size error.
func SplitBytes(image []byte) ([][]byte, error) {
	if len(image) != encoder.ImageSize {
		return nil, &encoder.SizeError{Section: "image", Got: len(image), Want: encoder.ImageSize}
	}
	out := make([][]byte, 0, len(encoder.Sections))
	off := 0
	for _, sec := range encoder.Sections {
		out = append(out, image[off:off+sec.Size])
		off += sec.Size
	}
	return out, nil
}

// RecordCheck is the verdict on one CRC-protected record.
type RecordCheck struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Offset  int    `json:"offset"`
	Status  string `json:"status"`
}

type SectionSummary struct {
	Name    string `json:"name"`
	Offset  int    `json:"offset"`
	Size    int    `json:"size"`
	Records int    `json:"records"`
	Valid   int    `json:"valid"`
	Empty   int    `json:"empty"`
	Invalid int    `json:"invalid"`
}

type LayerSummary struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Capacity int    `json:"capacity"`
}

type ProtocolSummary struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	Drug       string `json:"drug,omitempty"`
	Switches   uint32 `json:"switches"`
	RateFactor uint16 `json:"rateFactor"`
}

// Report is the decoded overview of one image.
type Report struct {
	Library     string            `json:"library"`
	LibraryID   uint32            `json:"libraryId"`
	LegacyCRC   string            `json:"legacyCrc"`
	Size        int               `json:"size"`
	Sha256      string            `json:"sha256"`
	TransferCRC string            `json:"transferCrc"`
	Sections    []SectionSummary  `json:"sections"`
	Layers      []LayerSummary    `json:"layers"`
	Protocols   []ProtocolSummary `json:"protocols"`
	MapEntries  int               `json:"mapEntries"`
	Failures    []RecordCheck     `json:"failures,omitempty"`
	OK          bool              `json:"ok"`
}

type recordRange struct {
	section string
	offset  int
	size    int
	count   int
}

// checkRecords verifies count records of size bytes starting at offset.
// Erased records are reported as empty.
func checkRecords(image []byte, r recordRange, sum *SectionSummary) []RecordCheck {
	var failures []RecordCheck
	for i := 0; i < r.count; i++ {
		off := r.offset + i*r.size
		rec := image[off : off+r.size]
		sum.Records++
		switch {
		case blockfmt.IsErased(rec):
			sum.Empty++
		case blockfmt.Verify(0, rec):
			sum.Valid++
		default:
			sum.Invalid++
			failures = append(failures, RecordCheck{Section: r.section, Index: i, Offset: off, Status: StatusBadCRC})
		}
	}
	return failures
}

// Inspect verifies every record of image and decodes the summary fields.
func Inspect(image []byte) (*Report, error) {
	sections, err := SplitBytes(image)
	if err != nil {
		return nil, err
	}
	transfer, err := flash.TransferChecksum(image)
	if err != nil {
		return nil, err
	}
	rep := &Report{
		Size:        len(image),
		Sha256:      common.Sha256Hex(image),
		TransferCRC: fmt.Sprintf("%08X", transfer),
	}

	offsets := make([]int, len(encoder.Sections))
	for k := 1; k < len(encoder.Sections); k++ {
		offsets[k] = offsets[k-1] + encoder.Sections[k-1].Size
	}
	ranges := [][]recordRange{
		{
			{section: "navigation", offset: 0, size: encoder.NodeSize, count: encoder.NavigationSize / encoder.NodeSize},
		},
		{{section: "protocols", offset: offsets[1], size: encoder.RecordSize, count: encoder.MaxProtocols}},
		{{section: "constraints", offset: offsets[2], size: encoder.RecordSize, count: encoder.MaxProtocols}},
		{{section: "views", offset: offsets[3], size: encoder.RecordSize, count: encoder.MaxViews}},
		{{section: "defaultViews", offset: offsets[4], size: encoder.RecordSize, count: encoder.MaxDefaultViews}},
		{
			{section: "globals", offset: offsets[5], size: encoder.GlobalsSize, count: 1},
			{section: "labelSets", offset: offsets[5] + encoder.LabelSetsOffset, size: encoder.LabelSetSize, count: encoder.MaxLabelSets},
			{section: "protocolMap", offset: offsets[5] + encoder.ProtocolMapOffset, size: encoder.ProtocolMapSize, count: 1},
		},
	}
	for k, sec := range encoder.Sections {
		sum := SectionSummary{Name: sec.Name, Offset: offsets[k], Size: sec.Size}
		for _, r := range ranges[k] {
			rep.Failures = append(rep.Failures, checkRecords(image, r, &sum)...)
		}
		rep.Sections = append(rep.Sections, sum)
	}

	rep.Layers = decodeLayers(sections[0])
	rep.Protocols = decodeProtocols(sections[1])

	g := sections[5][:encoder.GlobalsSize]
	if !blockfmt.IsErased(g) {
		rep.Library = codec.CString(g[encoder.GlobalsNameVersionOffset : encoder.GlobalsNameVersionOffset+20])
		rep.LibraryID = codec.Uint32At(g, encoder.GlobalsLibraryIDOffset)
		rep.LegacyCRC = fmt.Sprintf("%08X", codec.Uint32At(g, encoder.GlobalsLegacyOffset))
	}
	seq := sections[5][encoder.ProtocolMapOffset+encoder.MaxMapEntries*8:]
	for _, b := range seq[:encoder.MaxMapEntries] {
		if b == blockfmt.FillByte {
			break
		}
		rep.MapEntries++
	}
	rep.OK = len(rep.Failures) == 0
	return rep, nil
}

func decodeLayers(nav []byte) []LayerSummary {
	meta := nav[len(nav)-encoder.NodeSize:]
	out := make([]LayerSummary, 0, len(encoder.Layers))
	for k, l := range encoder.Layers {
		count := int(meta[k*8])
		if count == 0xFF {
			count = 0
		}
		out = append(out, LayerSummary{Name: l.Name, Count: count, Capacity: l.Capacity})
	}
	return out
}

func decodeProtocols(sec []byte) []ProtocolSummary {
	var out []ProtocolSummary
	for i := 0; i < encoder.MaxProtocols; i++ {
		rec := sec[i*encoder.RecordSize : (i+1)*encoder.RecordSize]
		if blockfmt.IsErased(rec) {
			continue
		}
		mode := library.DeliveryMode(rec[encoder.ProtocolModeOffset])
		out = append(out, ProtocolSummary{
			Index:      i,
			Name:       codec.CString(rec[encoder.ProtocolNameOffset : encoder.ProtocolNameOffset+10]),
			Mode:       mode.String(),
			Drug:       codec.CString(rec[encoder.ProtocolDrugNameOffset : encoder.ProtocolDrugNameOffset+10]),
			Switches:   codec.Uint32At(rec, encoder.ProtocolSwitchesOffset),
			RateFactor: codec.Uint16At(rec, encoder.ProtocolRateFactorOffset),
		})
	}
	return out
}
