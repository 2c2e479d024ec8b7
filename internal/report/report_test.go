package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/druglib/internal/inspect"
)

func sampleReport() *inspect.Report {
	return &inspect.Report{
		Library:     "Ward 2",
		LibraryID:   7,
		LegacyCRC:   "6B6B8B66",
		Size:        69632,
		Sha256:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		TransferCRC: "1A2B3C4D",
		Sections: []inspect.SectionSummary{
			{Name: "navigation", Size: 12288, Records: 192, Valid: 2, Empty: 189, Invalid: 1},
		},
		Protocols: []inspect.ProtocolSummary{
			{Index: 0, Name: "Saline", Mode: "continuousInfusion", Switches: 3, RateFactor: 100},
		},
		Failures: []inspect.RecordCheck{
			{Section: "navigation", Index: 4, Offset: 256, Status: inspect.StatusBadCRC},
		},
	}
}

func TestInspectionJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspection.json")
	rep := sampleReport()
	if err := SaveInspectionJSON(rep, path); err != nil {
		t.Fatalf("SaveInspectionJSON: %v", err)
	}
	got, err := LoadInspectionJSON(path)
	if err != nil {
		t.Fatalf("LoadInspectionJSON: %v", err)
	}
	if got.Library != rep.Library || len(got.Failures) != 1 || got.Failures[0].Offset != 256 {
		t.Fatalf("loaded = %+v", got)
	}
}

func TestHashToQR(t *testing.T) {
	png, err := HashToQR(" ab-12 ", 64)
	if err != nil {
		t.Fatalf("HashToQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("not a PNG")
	}
	if _, err := HashToQR("zz", 64); err == nil {
		t.Fatalf("expected error for hash without hex digits")
	}
	if got := sanitizeHash(" ab-12 "); got != "AB12" {
		t.Fatalf("sanitizeHash = %q, want AB12", got)
	}
}

func TestSaveInspectionPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspection.pdf")
	opts := PDFOptions{QRSize: 128, GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := SaveInspectionPDF(sampleReport(), path, opts); err != nil {
		t.Fatalf("SaveInspectionPDF: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}

	clean := sampleReport()
	clean.Failures = nil
	clean.OK = true
	b, err := RenderInspectionPDF(clean, PDFOptions{})
	if err != nil {
		t.Fatalf("RenderInspectionPDF: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("rendered output is not a PDF")
	}
}
