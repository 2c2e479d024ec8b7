package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/druglib/internal/inspect"
)

// PDFOptions controls optional parts of the inspection PDF.
type PDFOptions struct {
	QRSize      int
	GeneratedAt time.Time
}

// SaveInspectionPDF renders rep into a PDF document at out.
func SaveInspectionPDF(rep *inspect.Report, out string, opts PDFOptions) error {
	pdf, err := buildPDF(rep, opts)
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(out)
}

// RenderInspectionPDF returns the PDF document as bytes.
func RenderInspectionPDF(rep *inspect.Report, opts PDFOptions) ([]byte, error) {
	pdf, err := buildPDF(rep, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildPDF(rep *inspect.Report, opts PDFOptions) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Drug Library Inspection", false)
	pdf.SetAuthor("libctl", false)
	pdf.SetCreator("libctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Drug Library Inspection")
	if err := addHashQR(pdf, rep.Sha256, opts.QRSize); err != nil {
		return nil, err
	}
	addSummarySection(pdf, rep, opts.GeneratedAt)
	addSectionTable(pdf, rep.Sections)
	addFailuresSection(pdf, rep.Failures)
	addProtocolTable(pdf, rep.Protocols)

	if pdf.Err() {
		return nil, pdf.Error()
	}
	return pdf, nil
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

// addHashQR places a QR code of the image hash in the top right corner.
func addHashQR(pdf *gofpdf.Fpdf, hash string, size int) error {
	if size <= 0 {
		return nil
	}
	png, err := HashToQR(hash, size)
	if err != nil {
		return err
	}
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("sha256", opt, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	const side = 30.0
	pdf.ImageOptions("sha256", pageW-right-side, 12, side, side, false, opt, 0, "")
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, rep *inspect.Report, at time.Time) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Library", value: emptyFallback(rep.Library, "-")},
		{label: "Library ID", value: strconv.FormatUint(uint64(rep.LibraryID), 10)},
		{label: "Legacy CRC", value: emptyFallback(rep.LegacyCRC, "-")},
		{label: "Transfer CRC", value: rep.TransferCRC},
		{label: "Map Entries", value: strconv.Itoa(rep.MapEntries)},
		{label: "Overall", value: passLabel(rep.OK)},
	}
	if !at.IsZero() {
		items = append(items, struct {
			label string
			value string
		}{label: "Generated", value: at.UTC().Format(time.RFC3339)})
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, "SHA-256 "+rep.Sha256, "", "L", false)
	pdf.Ln(4)
}

func addSectionTable(pdf *gofpdf.Fpdf, rows []inspect.SectionSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Sections")
	pdf.Ln(9)

	headers := []string{"Section", "Offset", "Size", "Records", "Valid", "Empty", "Invalid"}
	widths := []float64{40, 25, 25, 25, 20, 20, 25}
	tableHeader(pdf, headers, widths)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		renderTableRow(pdf, widths, []string{
			row.Name,
			fmt.Sprintf("0x%05X", row.Offset),
			strconv.Itoa(row.Size),
			strconv.Itoa(row.Records),
			strconv.Itoa(row.Valid),
			strconv.Itoa(row.Empty),
			strconv.Itoa(row.Invalid),
		}, 5)
	}
	pdf.Ln(4)
}

func addFailuresSection(pdf *gofpdf.Fpdf, failures []inspect.RecordCheck) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Record Findings")
	pdf.Ln(9)

	if len(failures) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "All records verified.", "", "L", false)
		pdf.Ln(2)
		return
	}
	pdf.SetFont("Helvetica", "", 10)
	for i, f := range failures {
		line := fmt.Sprintf("%d. %s[%d] at 0x%05X: %s", i+1, f.Section, f.Index, f.Offset, f.Status)
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	pdf.Ln(2)
}

func addProtocolTable(pdf *gofpdf.Fpdf, rows []inspect.ProtocolSummary) {
	if len(rows) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Protocols")
	pdf.Ln(9)

	headers := []string{"#", "Name", "Mode", "Drug", "Switches", "Rate Factor"}
	widths := []float64{10, 35, 45, 35, 30, 25}
	tableHeader(pdf, headers, widths)

	pdf.SetFont("Helvetica", "", 9)
	for _, p := range rows {
		renderTableRow(pdf, widths, []string{
			strconv.Itoa(p.Index),
			p.Name,
			p.Mode,
			emptyFallback(p.Drug, "-"),
			fmt.Sprintf("%08X", p.Switches),
			strconv.Itoa(int(p.RateFactor)),
		}, 5)
	}
}

func tableHeader(pdf *gofpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
