package store

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Aldentec/ATSMap-sub000/internal/grade"
)

func exportTrips() []Trip {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return []Trip{
		{
			ID:                     1,
			StartTime:              start,
			EndTime:                start.Add(30 * time.Minute),
			DurationMinutes:        30,
			DistanceMiles:          21.4,
			SmoothnessScore:        93.5,
			FuelEfficiencyMPG:      8.1,
			SpeedCompliancePercent: 97.2,
			SafetyScore:            90.0,
			OverallGrade:           grade.A,
			AverageSpeed:           42.8,
			FuelConsumed:           11.3,
		},
		{
			ID:                     2,
			StartTime:              start.Add(2 * time.Hour),
			EndTime:                start.Add(3 * time.Hour),
			DurationMinutes:        60,
			DistanceMiles:          48.0,
			SmoothnessScore:        78.0,
			FuelEfficiencyMPG:      6.9,
			SpeedCompliancePercent: 88.0,
			SafetyScore:            82.5,
			OverallGrade:           grade.B,
			AverageSpeed:           48.0,
			FuelConsumed:           28.9,
		},
	}
}

func TestWriteCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d rows, want header only", len(records))
	}

	want := []string{
		"Id", "StartTime", "EndTime", "Duration", "Distance", "Smoothness",
		"MPG", "SpeedCompliance", "Grade", "AvgSpeed", "FuelConsumed",
	}
	if len(records[0]) != len(want) {
		t.Fatalf("header has %d columns, want %d", len(records[0]), len(want))
	}
	for i, name := range want {
		if records[0][i] != name {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], name)
		}
	}
}

func TestWriteCSVRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, exportTrips()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header + 2 trips", len(records))
	}

	row := records[1]
	if row[0] != "1" {
		t.Errorf("Id = %q, want 1", row[0])
	}
	if row[1] != "2026-03-14T09:00:00Z" {
		t.Errorf("StartTime = %q, want RFC3339 UTC", row[1])
	}
	if row[4] != "21.40" {
		t.Errorf("Distance = %q, want 21.40", row[4])
	}
	if row[8] != "A" {
		t.Errorf("Grade = %q, want A", row[8])
	}
}

func TestBuildXLSX(t *testing.T) {
	data, err := BuildXLSX(exportTrips())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("trips", "A1"); v != "Id" {
		t.Errorf("A1 = %q, want Id", v)
	}
	if v, _ := f.GetCellValue("trips", "I2"); v != "A" {
		t.Errorf("I2 = %q, want grade A", v)
	}
	if v, _ := f.GetCellValue("trips", "A3"); v != "2" {
		t.Errorf("A3 = %q, want second trip id", v)
	}
}

func TestBuildReportPDF(t *testing.T) {
	stats := &Statistics{
		TotalTrips:         2,
		TotalDistanceMiles: 69.4,
		BestGrade:          grade.A,
		WorstGrade:         grade.B,
	}

	data, err := BuildReportPDF(stats, exportTrips())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty report")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("report does not start with a PDF header")
	}
}
