package telemetry

import "time"

// Sample represents one instant of vehicle state as delivered by the
// telemetry source (~10 Hz). Samples are immutable once produced; consumers
// borrow them for the duration of a single update call.
type Sample struct {
	Connected bool      `json:"connected"`
	Paused    bool      `json:"paused"`
	Timestamp time.Time `json:"timestamp"`

	// World position in meters.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Orientation in radians.
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`

	SpeedKmh      float64 `json:"speed_kmh"`
	FuelLiters    float64 `json:"fuel_liters"`
	FuelCapacity  float64 `json:"fuel_capacity"`
	OdometerKm    float64 `json:"odometer_km"`
	SpeedLimitKmh float64 `json:"speed_limit_kmh"` // 0 = unknown
	DamagePercent float64 `json:"damage_percent"`  // 0-100

	LeftBlinker   bool    `json:"left_blinker"`
	RightBlinker  bool    `json:"right_blinker"`
	HighBeams     bool    `json:"high_beams"`
	ParkBrake     bool    `json:"park_brake"`
	EngineBrake   bool    `json:"engine_brake"`
	CruiseControl bool    `json:"cruise_control"`
	RetarderLevel int     `json:"retarder_level"`
	EngineRPM     float64 `json:"engine_rpm"`
	EngineMaxRPM  float64 `json:"engine_max_rpm"`
	BrakeTempC    float64 `json:"brake_temp_c"`
}

// Validate checks sample fields for obviously out-of-range values and returns
// a human-readable message per violation.
func Validate(s *Sample) []string {
	var errors []string

	if s.Timestamp.IsZero() {
		errors = append(errors, "timestamp is required")
	}
	if s.SpeedKmh < 0 {
		errors = append(errors, "speed_kmh cannot be negative")
	}
	if s.DamagePercent < 0 || s.DamagePercent > 100 {
		errors = append(errors, "damage_percent must be between 0 and 100")
	}
	if s.FuelLiters < 0 {
		errors = append(errors, "fuel_liters cannot be negative")
	}
	if s.FuelCapacity < 0 {
		errors = append(errors, "fuel_capacity cannot be negative")
	}
	if s.OdometerKm < 0 {
		errors = append(errors, "odometer_km cannot be negative")
	}
	if s.SpeedLimitKmh < 0 {
		errors = append(errors, "speed_limit_kmh cannot be negative")
	}
	if s.RetarderLevel < 0 {
		errors = append(errors, "retarder_level cannot be negative")
	}
	if s.EngineRPM < 0 {
		errors = append(errors, "engine_rpm cannot be negative")
	}

	return errors
}
