package telemetry

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Parser reads recorded telemetry captures for replay.
type Parser struct {
	format string
	log    *slog.Logger
}

// NewParser creates a parser for the given capture format (csv, json, jsonl).
func NewParser(format string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{format: format, log: logger.With(slog.String("component", "parser"))}
}

// ParseFile parses a telemetry capture file into samples in file order.
func (p *Parser) ParseFile(filename string) ([]Sample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(file)
	case "json":
		return p.parseJSON(file)
	case "jsonl":
		return p.parseJSONLines(file)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

// parseCSV parses CSV captures with a header row; unknown columns are ignored
// and malformed lines are skipped with a warning.
func (p *Parser) parseCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var results []Sample
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		sample, err := p.recordToSample(record, indices)
		if err != nil {
			p.log.Warn("skipping malformed record", slog.Int("line", lineNum), slog.String("err", err.Error()))
			continue
		}
		results = append(results, sample)
	}

	return results, nil
}

// recordToSample converts a CSV record to a Sample.
func (p *Parser) recordToSample(record []string, indices map[string]int) (Sample, error) {
	var s Sample
	var err error

	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}
	getFloat := func(key string) float64 {
		v, _ := strconv.ParseFloat(getValue(key), 64)
		return v
	}
	getBool := func(key string) bool {
		v, _ := strconv.ParseBool(getValue(key))
		return v
	}

	tsStr := getValue("timestamp")
	if tsStr == "" {
		return s, fmt.Errorf("missing timestamp")
	}
	s.Timestamp, err = parseTimestamp(tsStr)
	if err != nil {
		return s, fmt.Errorf("invalid timestamp: %w", err)
	}

	// Captures without an explicit connected column are treated as live.
	if _, ok := indices["connected"]; ok {
		s.Connected = getBool("connected")
	} else {
		s.Connected = true
	}
	s.Paused = getBool("paused")

	s.X = getFloat("x")
	s.Y = getFloat("y")
	s.Z = getFloat("z")
	s.Heading = getFloat("heading")
	s.Pitch = getFloat("pitch")
	s.Roll = getFloat("roll")
	s.SpeedKmh = getFloat("speed_kmh")
	s.FuelLiters = getFloat("fuel_liters")
	s.FuelCapacity = getFloat("fuel_capacity")
	s.OdometerKm = getFloat("odometer_km")
	s.SpeedLimitKmh = getFloat("speed_limit_kmh")
	s.DamagePercent = getFloat("damage_percent")
	s.LeftBlinker = getBool("left_blinker")
	s.RightBlinker = getBool("right_blinker")
	s.HighBeams = getBool("high_beams")
	s.ParkBrake = getBool("park_brake")
	s.EngineBrake = getBool("engine_brake")
	s.CruiseControl = getBool("cruise_control")
	s.RetarderLevel, _ = strconv.Atoi(getValue("retarder_level"))
	s.EngineRPM = getFloat("engine_rpm")
	s.EngineMaxRPM = getFloat("engine_max_rpm")
	s.BrakeTempC = getFloat("brake_temp_c")

	return s, nil
}

// parseJSON parses a JSON array capture, falling back to newline-delimited
// JSON when the document is not an array. Both attempts run over the same
// full content; the array decode must not consume the line parser's input.
func (p *Parser) parseJSON(r io.Reader) ([]Sample, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	var results []Sample
	if err := json.Unmarshal(raw, &results); err == nil {
		return results, nil
	}

	return p.parseJSONLines(bytes.NewReader(raw))
}

// parseJSONLines parses newline-delimited JSON.
func (p *Parser) parseJSONLines(r io.Reader) ([]Sample, error) {
	var results []Sample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")

		var s Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			p.log.Warn("skipping malformed record", slog.Int("line", lineNum), slog.String("err", err.Error()))
			continue
		}
		results = append(results, s)
	}

	return results, scanner.Err()
}

// parseTimestamp tries multiple timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	// Unix seconds, with optional fractional part.
	if ts, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}
