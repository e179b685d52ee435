// Package store persists completed trips in SQLite and computes aggregate
// statistics over the trip history.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Aldentec/ATSMap-sub000/internal/grade"

	_ "github.com/mattn/go-sqlite3"
)

// Trip is one detected driving session. The identifier is assigned on
// persistence.
type Trip struct {
	ID                     int64       `json:"id"`
	StartTime              time.Time   `json:"start_time"`
	EndTime                time.Time   `json:"end_time"`
	DurationMinutes        float64     `json:"duration_minutes"`
	DistanceMiles          float64     `json:"distance_miles"`
	SmoothnessScore        float64     `json:"smoothness_score"`
	FuelEfficiencyMPG      float64     `json:"fuel_efficiency_mpg"`
	SpeedCompliancePercent float64     `json:"speed_compliance_percent"`
	SafetyScore            float64     `json:"safety_score"`
	OverallGrade           grade.Grade `json:"overall_grade"`
	AverageSpeed           float64     `json:"average_speed"` // mph
	FuelConsumed           float64     `json:"fuel_consumed"` // liters
}

// Statistics aggregates the full trip history. Derived on demand, not stored.
type Statistics struct {
	TotalTrips           int         `json:"total_trips"`
	TotalDistanceMiles   float64     `json:"total_distance_miles"`
	TotalDurationMinutes float64     `json:"total_duration_minutes"`
	TotalFuelConsumed    float64     `json:"total_fuel_consumed"`
	AvgSmoothness        float64     `json:"avg_smoothness"`
	AvgFuelEfficiencyMPG float64     `json:"avg_fuel_efficiency_mpg"`
	AvgSpeedCompliance   float64     `json:"avg_speed_compliance"`
	AvgSafety            float64     `json:"avg_safety"`
	BestGrade            grade.Grade `json:"best_grade"`
	WorstGrade           grade.Grade `json:"worst_grade"`
	AvgTripDistanceMiles float64     `json:"avg_trip_distance_miles"`
	AvgTripDurationMin   float64     `json:"avg_trip_duration_minutes"`
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the trip database. Use ":memory:" for an ephemeral
// store.
func New(dbPath string) (*Store, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// initialize creates the trips table and indexes.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration_minutes REAL NOT NULL,
		distance_miles REAL NOT NULL,
		smoothness_score REAL NOT NULL,
		fuel_efficiency_mpg REAL NOT NULL,
		speed_compliance_percent REAL NOT NULL,
		safety_score REAL NOT NULL,
		overall_grade TEXT NOT NULL,
		average_speed REAL NOT NULL,
		fuel_consumed REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trips_start_time ON trips(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_trips_grade ON trips(overall_grade);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// SaveTrip persists a trip and assigns its identifier.
func (s *Store) SaveTrip(t *Trip) (int64, error) {
	query := `
		INSERT INTO trips
		(start_time, end_time, duration_minutes, distance_miles, smoothness_score,
		 fuel_efficiency_mpg, speed_compliance_percent, safety_score, overall_grade,
		 average_speed, fuel_consumed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.conn.Exec(query,
		t.StartTime.UTC().Format(time.RFC3339), t.EndTime.UTC().Format(time.RFC3339),
		t.DurationMinutes, t.DistanceMiles, t.SmoothnessScore,
		t.FuelEfficiencyMPG, t.SpeedCompliancePercent, t.SafetyScore,
		string(t.OverallGrade), t.AverageSpeed, t.FuelConsumed,
	)
	if err != nil {
		return 0, fmt.Errorf("save trip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save trip: %w", err)
	}
	t.ID = id
	return id, nil
}

const tripColumns = `id, start_time, end_time, duration_minutes, distance_miles,
	smoothness_score, fuel_efficiency_mpg, speed_compliance_percent, safety_score,
	overall_grade, average_speed, fuel_consumed`

// GetRecentTrips returns the most recent trips, newest first.
func (s *Store) GetRecentTrips(count int) ([]Trip, error) {
	if count <= 0 {
		count = 10
	}
	query := fmt.Sprintf(`SELECT %s FROM trips ORDER BY start_time DESC LIMIT ?`, tripColumns)

	rows, err := s.conn.Query(query, count)
	if err != nil {
		return nil, fmt.Errorf("recent trips: %w", err)
	}
	defer rows.Close()

	return scanTrips(rows)
}

// GetTripsByDateRange returns trips whose start time falls within [start, end]
// inclusive, newest first.
func (s *Store) GetTripsByDateRange(start, end time.Time) ([]Trip, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trips
		WHERE start_time >= ? AND start_time <= ?
		ORDER BY start_time DESC
	`, tripColumns)

	rows, err := s.conn.Query(query,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("trips by range: %w", err)
	}
	defer rows.Close()

	return scanTrips(rows)
}

// GetAllTrips returns the full trip history, newest first.
func (s *Store) GetAllTrips() ([]Trip, error) {
	query := fmt.Sprintf(`SELECT %s FROM trips ORDER BY start_time DESC`, tripColumns)

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("all trips: %w", err)
	}
	defer rows.Close()

	return scanTrips(rows)
}

func scanTrips(rows *sql.Rows) ([]Trip, error) {
	var trips []Trip
	for rows.Next() {
		var t Trip
		var startStr, endStr, gradeStr string

		err := rows.Scan(
			&t.ID, &startStr, &endStr, &t.DurationMinutes, &t.DistanceMiles,
			&t.SmoothnessScore, &t.FuelEfficiencyMPG, &t.SpeedCompliancePercent,
			&t.SafetyScore, &gradeStr, &t.AverageSpeed, &t.FuelConsumed,
		)
		if err != nil {
			return nil, err
		}

		if t.StartTime, err = time.Parse(time.RFC3339, startStr); err != nil {
			return nil, fmt.Errorf("parse start_time: %w", err)
		}
		if t.EndTime, err = time.Parse(time.RFC3339, endStr); err != nil {
			return nil, fmt.Errorf("parse end_time: %w", err)
		}
		t.OverallGrade = grade.Grade(gradeStr)

		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// GetStatistics aggregates the full trip history. An empty store yields
// TotalTrips=0 with zeroed averages and Unknown grades, never NaN.
func (s *Store) GetStatistics() (*Statistics, error) {
	stats := &Statistics{
		BestGrade:  grade.Unknown,
		WorstGrade: grade.Unknown,
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(distance_miles), 0),
			COALESCE(SUM(duration_minutes), 0),
			COALESCE(SUM(fuel_consumed), 0),
			COALESCE(AVG(smoothness_score), 0),
			COALESCE(AVG(fuel_efficiency_mpg), 0),
			COALESCE(AVG(speed_compliance_percent), 0),
			COALESCE(AVG(safety_score), 0)
		FROM trips
	`
	err := s.conn.QueryRow(query).Scan(
		&stats.TotalTrips, &stats.TotalDistanceMiles, &stats.TotalDurationMinutes,
		&stats.TotalFuelConsumed, &stats.AvgSmoothness, &stats.AvgFuelEfficiencyMPG,
		&stats.AvgSpeedCompliance, &stats.AvgSafety,
	)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}

	if stats.TotalTrips == 0 {
		return stats, nil
	}

	stats.AvgTripDistanceMiles = stats.TotalDistanceMiles / float64(stats.TotalTrips)
	stats.AvgTripDurationMin = stats.TotalDurationMinutes / float64(stats.TotalTrips)

	// Best/worst use the grade's quality rank, not lexical text ordering.
	rows, err := s.conn.Query(`SELECT overall_grade FROM trips`)
	if err != nil {
		return nil, fmt.Errorf("statistics grades: %w", err)
	}
	defer rows.Close()

	var grades []grade.Grade
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		grades = append(grades, grade.Grade(g))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.BestGrade = grade.Best(grades)
	stats.WorstGrade = grade.Worst(grades)

	return stats, nil
}
