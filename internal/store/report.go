package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BuildReportPDF renders a driving-performance report covering the aggregate
// statistics and the listed trips.
func BuildReportPDF(stats *Statistics, trips []Trip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Driving Performance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Trips: %d", stats.TotalTrips))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Distance (mi): %.1f", stats.TotalDistanceMiles))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Duration (min): %.1f", stats.TotalDurationMinutes))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Fuel Consumed (L): %.1f", stats.TotalFuelConsumed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Avg Smoothness: %.1f", stats.AvgSmoothness))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Avg Fuel Efficiency (MPG): %.1f", stats.AvgFuelEfficiencyMPG))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Avg Speed Compliance: %.1f%%", stats.AvgSpeedCompliance))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Avg Safety: %.1f", stats.AvgSafety))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Best Grade: %s    Worst Grade: %s", stats.BestGrade, stats.WorstGrade))
	pdf.Ln(8)

	// Trip table
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Start", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Duration (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Distance (mi)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Avg Speed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Fuel (L)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Grade", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, t := range trips {
		pdf.CellFormat(35, 6, t.StartTime.UTC().Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", t.DurationMinutes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", t.DistanceMiles), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", t.AverageSpeed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", t.FuelConsumed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, string(t.OverallGrade), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
