package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageUsableWidth = 277.0
	pageBreakY      = 190.0
	headerHeight    = 8.0
	rowHeight       = 7.0
)

// PDFExporter renders datasets into a landscape A4 table. The header row is
// repeated on every page and muted rows are shaded grey.
type PDFExporter struct {
	// Widths optionally fixes column widths in mm, aligned with Dataset.Headers.
	Widths []float64
}

// NewPDFExporter constructs a PDF exporter with evenly split columns.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType implements Renderer.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render implements Renderer.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf: %w", ErrNoHeaders)
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	widths := e.columnWidths(len(data.Headers))

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(data.Title)), "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(data.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(210, 222, 240)
		pdf.SetTextColor(0, 0, 0)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], headerHeight, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	for _, row := range data.Rows {
		if pdf.GetY()+rowHeight > pageBreakY {
			pdf.AddPage()
			header()
		}
		pdf.SetFont("Arial", "", 9)
		if row.Muted {
			pdf.SetFillColor(240, 240, 240)
			pdf.SetTextColor(110, 110, 110)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		for i, cell := range row.cells(len(data.Headers)) {
			pdf.CellFormat(widths[i], rowHeight, tr(cell), "1", 0, "", row.Muted, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(columns int) []float64 {
	if len(e.Widths) == columns {
		return e.Widths
	}
	widths := make([]float64, columns)
	for i := range widths {
		widths[i] = pageUsableWidth / float64(columns)
	}
	return widths
}
