package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// csvHeader is the export contract; changing it breaks downstream consumers.
var csvHeader = []string{
	"Id", "StartTime", "EndTime", "Duration", "Distance", "Smoothness",
	"MPG", "SpeedCompliance", "Grade", "AvgSpeed", "FuelConsumed",
}

// WriteCSV writes all given trips as CSV with ISO-8601 timestamps.
func WriteCSV(w io.Writer, trips []Trip) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range trips {
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.StartTime.UTC().Format(time.RFC3339),
			t.EndTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.DurationMinutes, 'f', 2, 64),
			strconv.FormatFloat(t.DistanceMiles, 'f', 2, 64),
			strconv.FormatFloat(t.SmoothnessScore, 'f', 2, 64),
			strconv.FormatFloat(t.FuelEfficiencyMPG, 'f', 2, 64),
			strconv.FormatFloat(t.SpeedCompliancePercent, 'f', 2, 64),
			string(t.OverallGrade),
			strconv.FormatFloat(t.AverageSpeed, 'f', 2, 64),
			strconv.FormatFloat(t.FuelConsumed, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write trip %d: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// BuildXLSX renders the trip history as a single-sheet workbook.
func BuildXLSX(trips []Trip) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "trips"
	f.SetSheetName("Sheet1", sheet)

	for col, name := range csvHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, name)
	}

	for i, t := range trips {
		row := i + 2
		values := []interface{}{
			t.ID,
			t.StartTime.UTC().Format(time.RFC3339),
			t.EndTime.UTC().Format(time.RFC3339),
			t.DurationMinutes,
			t.DistanceMiles,
			t.SmoothnessScore,
			t.FuelEfficiencyMPG,
			t.SpeedCompliancePercent,
			string(t.OverallGrade),
			t.AverageSpeed,
			t.FuelConsumed,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
