// Package report renders a dataset and its cached summary into a PDF
// document. Generation is a pure function of the dataset: regenerating
// from the same dataset yields identical bytes.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"chemflow/internal/server/database"
)

// Generation errors. The store never persists a dataset without records
// or a summary, so hitting either of these indicates an integrity
// problem and is logged as unexpected by callers.
var (
	ErrNoRecords = errors.New("dataset has no records")
	ErrNoSummary = errors.New("dataset summary is missing")
)

const (
	pageLeft  = 15.0
	tableRowH = 7.0
)

// Generate writes the PDF report for a dataset to w. The document
// contains the dataset metadata, the summary statistics, the equipment
// type distribution, and a paginated table of all records.
func Generate(w io.Writer, ds *database.Dataset) error {
	if len(ds.Records) == 0 {
		return ErrNoRecords
	}
	if ds.Summary.TotalCount == 0 {
		return ErrNoSummary
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	// Pin document dates to the upload time so regeneration is
	// byte-identical.
	pdf.SetCreationDate(ds.UploadedAt)
	pdf.SetModificationDate(ds.UploadedAt)
	pdf.SetTitle("Equipment Analysis Report", false)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Title
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Equipment Analysis Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Dataset metadata
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Dataset: %s", ds.Filename), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Upload Date: %s", ds.UploadedAt.UTC().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total Equipment Count: %d", ds.Summary.TotalCount), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	writeSummaryTable(pdf, ds)
	writeTypeDistribution(pdf, ds)
	writeRecordTable(pdf, ds)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

func writeSummaryTable(pdf *gofpdf.Fpdf, ds *database.Dataset) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Summary Statistics", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	s := ds.Summary
	rows := []struct {
		param         string
		min, avg, max float64
	}{
		{"Flowrate", s.MinFlowrate, s.AvgFlowrate, s.MaxFlowrate},
		{"Pressure", s.MinPressure, s.AvgPressure, s.MaxPressure},
		{"Temperature", s.MinTemperature, s.AvgTemperature, s.MaxTemperature},
	}

	widths := []float64{45, 35, 35, 35}
	header := []string{"Parameter", "Minimum", "Average", "Maximum"}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(16, 185, 129)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetX(pageLeft)
	for i, h := range header {
		pdf.CellFormat(widths[i], tableRowH, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		pdf.SetX(pageLeft)
		pdf.CellFormat(widths[0], tableRowH, row.param, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], tableRowH, fmt.Sprintf("%.2f", row.min), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], tableRowH, fmt.Sprintf("%.2f", row.avg), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], tableRowH, fmt.Sprintf("%.2f", row.max), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)
}

func writeTypeDistribution(pdf *gofpdf.Fpdf, ds *database.Dataset) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Equipment Type Distribution", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	// Map iteration order is random; sort for stable output.
	types := make([]string, 0, len(ds.Summary.TypeDistribution))
	for t := range ds.Summary.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)

	pdf.SetFont("Helvetica", "", 11)
	for _, t := range types {
		pdf.SetX(pageLeft + 5)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s: %d", t, ds.Summary.TypeDistribution[t]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func writeRecordTable(pdf *gofpdf.Fpdf, ds *database.Dataset) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Equipment Records", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	widths := []float64{55, 40, 30, 30, 30}
	header := []string{"Name", "Type", "Flowrate", "Pressure", "Temperature"}

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(51, 65, 85)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetX(pageLeft)
		for i, h := range header {
			pdf.CellFormat(widths[i], tableRowH, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
	}
	writeHeader()

	_, pageH := pdf.GetPageSize()
	for _, rec := range ds.Records {
		// Repeat the header after a page break.
		if pdf.GetY()+tableRowH > pageH-20 {
			pdf.AddPage()
			writeHeader()
		}
		pdf.SetX(pageLeft)
		pdf.CellFormat(widths[0], tableRowH, truncate(rec.Name, 30), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], tableRowH, truncate(rec.Type, 20), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], tableRowH, fmt.Sprintf("%.2f", rec.Flowrate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], tableRowH, fmt.Sprintf("%.2f", rec.Pressure), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], tableRowH, fmt.Sprintf("%.2f", rec.Temperature), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

// truncate limits s to max runes, never splitting a multi-byte rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
