package inspect

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/common"
	"example.com/druglib/internal/encoder"
	"example.com/druglib/internal/flash"
	"example.com/druglib/internal/library"
)

func init() {
	common.SetLogOutput(io.Discard)
}

func testDescriptor() *library.Descriptor {
	saline := &library.Protocol{
		Name:       "Saline",
		Mode:       library.ModeContinuous,
		RateFactor: 100,
		Params: map[string]library.Param{
			"rate": {Value: 100, Unit: "mL/hr", Enabled: true},
			"vtbi": {Value: 500, Unit: "mL", Enabled: true},
		},
	}
	return &library.Descriptor{
		ID:        7,
		Name:      "Ward",
		Version:   "2",
		Legacy:    library.ResolveLegacyToken("6B6B8B66"),
		Protocols: []*library.Protocol{saline},
		Roles:     []string{"nurse"},
		Globals:   library.Globals{Model: "MIVA"},
		Tree: library.Tree{
			Infusion: &library.Node{
				Type:    library.NodeMenu,
				Label:   "Infusion",
				Visible: true,
				Children: []*library.Node{
					{Type: library.NodeProtocol, Label: "Saline", Protocol: "Saline", Visible: true},
				},
			},
		},
	}
}

func encoded(t *testing.T) []byte {
	t.Helper()
	res, err := encoder.Encode(testDescriptor(), encoder.Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return res.Image
}

func TestSplit(t *testing.T) {
	image := encoded(t)
	sections, err := Split(strings.ToUpper(hex.EncodeToString(image)) + "\n")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(sections) != len(encoder.Sections) {
		t.Fatalf("sections = %d, want %d", len(sections), len(encoder.Sections))
	}
	if !bytes.Equal(bytes.Join(sections, nil), image) {
		t.Fatalf("joined sections differ from image")
	}
	for k, sec := range sections {
		if len(sec) != encoder.Sections[k].Size {
			t.Fatalf("section %d size = %d", k, len(sec))
		}
	}
}

func TestSplitRejectsWrongSize(t *testing.T) {
	_, err := SplitBytes(make([]byte, 100))
	if !errors.Is(err, encoder.ErrSectionSize) {
		t.Fatalf("error = %v, want ErrSectionSize", err)
	}
	if _, err := Split("zz"); err == nil {
		t.Fatalf("expected hex decode error")
	}
}

func TestInspectEncodedImage(t *testing.T) {
	image := encoded(t)
	rep, err := Inspect(image)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !rep.OK || len(rep.Failures) != 0 {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	if rep.Library != "Ward 2" || rep.LibraryID != 7 {
		t.Fatalf("library = %q id %d", rep.Library, rep.LibraryID)
	}
	if rep.Sha256 != common.Sha256Hex(image) {
		t.Fatalf("sha256 = %s", rep.Sha256)
	}
	crc, _ := flash.TransferChecksum(image)
	if rep.TransferCRC == "" || rep.TransferCRC != strings.ToUpper(rep.TransferCRC) {
		t.Fatalf("transfer crc = %q", rep.TransferCRC)
	}
	if crc == 0 {
		t.Fatalf("transfer checksum is zero")
	}
	if len(rep.Protocols) != 1 || rep.Protocols[0].Name != "Saline" || rep.Protocols[0].Mode != "continuousInfusion" {
		t.Fatalf("protocols = %+v", rep.Protocols)
	}
	if rep.MapEntries != 1 {
		t.Fatalf("map entries = %d, want 1", rep.MapEntries)
	}
	var infusion LayerSummary
	for _, l := range rep.Layers {
		if l.Name == "infusion" {
			infusion = l
		}
	}
	if infusion.Count != 2 {
		t.Fatalf("infusion layer = %+v", infusion)
	}
	protocols := rep.Sections[1]
	if protocols.Valid != 1 || protocols.Empty != encoder.MaxProtocols-1 || protocols.Invalid != 0 {
		t.Fatalf("protocol section = %+v", protocols)
	}
}

func TestInspectReportsCorruptRecord(t *testing.T) {
	image := encoded(t)
	off := encoder.NavigationSize + encoder.ProtocolNameOffset
	image[off] ^= 0x20
	rep, err := Inspect(image)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if rep.OK || len(rep.Failures) != 1 {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	f := rep.Failures[0]
	if f.Section != "protocols" || f.Index != 0 || f.Offset != encoder.NavigationSize || f.Status != StatusBadCRC {
		t.Fatalf("failure = %+v", f)
	}
}

func TestInspectErasedImage(t *testing.T) {
	rep, err := Inspect(blockfmt.Filled(encoder.ImageSize))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !rep.OK || rep.Library != "" || rep.MapEntries != 0 || len(rep.Protocols) != 0 {
		t.Fatalf("report = %+v", rep)
	}
	for _, s := range rep.Sections {
		if s.Empty != s.Records {
			t.Fatalf("section %s = %+v", s.Name, s)
		}
	}
}

func TestPrint(t *testing.T) {
	rep, err := Inspect(encoded(t))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	var b strings.Builder
	if err := Print(&b, rep); err != nil {
		t.Fatalf("Print: %v", err)
	}
	out := b.String()
	for _, want := range []string{"Ward 2", "SECTION", "protocols", "Saline", "All records verified."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
