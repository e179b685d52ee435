package scoring

import (
	"time"

	"github.com/Aldentec/ATSMap-sub000/internal/grade"
)

// Trend classifies the current overall score against its recent rolling
// average.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Snapshot is an immutable, fully-copied view of the current scores. Every
// call to GetCurrentSnapshot produces a fresh value, including independent
// copies of the history buffers, so a holder never observes in-place mutation
// of engine state.
type Snapshot struct {
	Smoothness          float64       `json:"smoothness"`
	FuelEfficiencyScore float64       `json:"fuel_efficiency_score"`
	EstimatedMPG        float64       `json:"estimated_mpg"`
	SpeedCompliance     float64       `json:"speed_compliance"`
	ComplianceGrade     grade.Grade   `json:"compliance_grade"`
	Safety              float64       `json:"safety"`
	VehicleCondition    float64       `json:"vehicle_condition"`
	DamageFreeStreak    time.Duration `json:"damage_free_streak"`
	Overall             float64       `json:"overall"`
	OverallGrade        grade.Grade   `json:"overall_grade"`
	Trend               Trend         `json:"trend"`

	SessionDuration   time.Duration `json:"session_duration"`
	SessionDistanceKm float64       `json:"session_distance_km"`
	AverageSpeedKmh   float64       `json:"average_speed_kmh"`
	FuelConsumedL     float64       `json:"fuel_consumed_l"`

	SmoothnessHistory []float64 `json:"smoothness_history"`
	ComplianceHistory []float64 `json:"compliance_history"`
	SafetyHistory     []float64 `json:"safety_history"`
	OverallHistory    []float64 `json:"overall_history"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Component is one entry in the score breakdown.
type Component struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
	Class       string  `json:"class"` // good, neutral, poor
}

// classForValue buckets a 0-100 value into a qualitative color class.
func classForValue(v float64) string {
	switch {
	case v >= 85:
		return "good"
	case v >= 65:
		return "neutral"
	default:
		return "poor"
	}
}
