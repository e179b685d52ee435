// Package config resolves runtime settings by layering defaults, an optional
// YAML file, and environment variables so the tool can boot with no setup at
// all and still expose every scoring calibration knob.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures all runtime settings.
type Config struct {
	// ListenAddr is the TCP address used by the HTTP server.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the path to the SQLite trip database.
	DBPath string `yaml:"db_path"`

	Scoring Scoring `yaml:"scoring"`
	Trip    Trip    `yaml:"trip"`
}

// Scoring holds every threshold and weight used by the scoring engine.
// All penalties and rewards are expressed in score points; continuous rates
// are points per second of sustained behavior.
type Scoring struct {
	// Longitudinal acceleration thresholds, m/s^2. Braking uses separate,
	// higher thresholds than acceleration.
	HardAccelMS2     float64 `yaml:"hard_accel_ms2"`
	ModerateAccelMS2 float64 `yaml:"moderate_accel_ms2"`
	HardBrakeMS2     float64 `yaml:"hard_brake_ms2"`
	ModerateBrakeMS2 float64 `yaml:"moderate_brake_ms2"`

	HardAccelPenalty     float64 `yaml:"hard_accel_penalty"`
	ModerateAccelPenalty float64 `yaml:"moderate_accel_penalty"`
	HardBrakePenalty     float64 `yaml:"hard_brake_penalty"`
	ModerateBrakePenalty float64 `yaml:"moderate_brake_penalty"`

	// Speed held within this band of the previous sample earns a small
	// continuous reward.
	SteadySpeedBandMS2 float64 `yaml:"steady_speed_band_ms2"`
	SteadyRewardPerSec float64 `yaml:"steady_reward_per_sec"`
	MinScoringSpeedKmh float64 `yaml:"min_scoring_speed_kmh"`
	HeadingRateDegSec  float64 `yaml:"heading_rate_deg_sec"`
	HeadingPenalty     float64 `yaml:"heading_penalty"`
	AttitudeRateDegSec float64 `yaml:"attitude_rate_deg_sec"`
	AttitudePenalty    float64 `yaml:"attitude_penalty"`

	// Fuel efficiency is estimated from smoothness, interpolated between
	// floor and ceiling MPG; the score is a percentage of the baseline.
	MPGFloor    float64 `yaml:"mpg_floor"`
	MPGCeiling  float64 `yaml:"mpg_ceiling"`
	MPGBaseline float64 `yaml:"mpg_baseline"`

	// Speed compliance defaults used when no posted limit is known.
	OpenRoadLimitKmh float64 `yaml:"open_road_limit_kmh"`
	UrbanLimitKmh    float64 `yaml:"urban_limit_kmh"`
	OpenRoadSpeedKmh float64 `yaml:"open_road_speed_kmh"`

	// Safety rules.
	TurnSignalPenalty       float64 `yaml:"turn_signal_penalty"`
	TurnSignalCooldownSec   float64 `yaml:"turn_signal_cooldown_sec"`
	ParkBrakeSpeedKmh       float64 `yaml:"park_brake_speed_kmh"`
	ParkBrakePenaltyPerSec  float64 `yaml:"park_brake_penalty_per_sec"`
	ParkBrakeCooldownSec    float64 `yaml:"park_brake_cooldown_sec"`
	HighBeamSpeedKmh        float64 `yaml:"high_beam_speed_kmh"`
	HighBeamPenaltyPerSec   float64 `yaml:"high_beam_penalty_per_sec"`
	HighBeamCooldownSec     float64 `yaml:"high_beam_cooldown_sec"`
	EngineBrakeMinSpeedKmh  float64 `yaml:"engine_brake_min_speed_kmh"`
	EngineBrakeRewardPerSec float64 `yaml:"engine_brake_reward_per_sec"`
	EngineBrakeCooldownSec  float64 `yaml:"engine_brake_cooldown_sec"`
	RPMFraction             float64 `yaml:"rpm_fraction"`
	RPMPenaltyPerSec        float64 `yaml:"rpm_penalty_per_sec"`
	RPMCooldownSec          float64 `yaml:"rpm_cooldown_sec"`
	BrakeTempHighC          float64 `yaml:"brake_temp_high_c"`
	BrakeTempSevereC        float64 `yaml:"brake_temp_severe_c"`
	BrakeTempPenaltyPerSec  float64 `yaml:"brake_temp_penalty_per_sec"`
	BrakeTempCooldownSec    float64 `yaml:"brake_temp_cooldown_sec"`

	// DamageEpsilon is the smallest damage increase treated as new damage.
	DamageEpsilon float64 `yaml:"damage_epsilon"`

	// MaxSampleGapSec is the sanity ceiling for the elapsed time between two
	// samples; larger gaps re-anchor state without scoring.
	MaxSampleGapSec float64 `yaml:"max_sample_gap_sec"`

	// HistoryCapacity bounds the per-dimension score history, sized for
	// roughly one minute at the 10 Hz sample rate.
	HistoryCapacity int     `yaml:"history_capacity"`
	TrendDeadBand   float64 `yaml:"trend_dead_band"`
	TrendMinSamples int     `yaml:"trend_min_samples"`
}

// Trip holds trip lifecycle detection settings.
type Trip struct {
	// MovingThresholdKmh separates "moving" from "stopped".
	MovingThresholdKmh float64 `yaml:"moving_threshold_kmh"`
	// StopTimeout is how long the vehicle must remain at or below the moving
	// threshold before an active trip ends.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// TeleportCeilingM discards single-update displacements larger than this
	// when falling back to positional distance.
	TeleportCeilingM float64 `yaml:"teleport_ceiling_m"`
}

const (
	defaultListenAddr = ":8090"
	defaultDBPath     = "trips.db"

	envPrefix = "PERF_"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		Scoring: Scoring{
			HardAccelMS2:     2.5,
			ModerateAccelMS2: 1.5,
			HardBrakeMS2:     3.5,
			ModerateBrakeMS2: 2.5,

			HardAccelPenalty:     2.0,
			ModerateAccelPenalty: 0.5,
			HardBrakePenalty:     3.0,
			ModerateBrakePenalty: 1.0,

			SteadySpeedBandMS2: 0.2,
			SteadyRewardPerSec: 0.05,
			MinScoringSpeedKmh: 10,
			HeadingRateDegSec:  15,
			HeadingPenalty:     1.0,
			AttitudeRateDegSec: 8,
			AttitudePenalty:    0.5,

			MPGFloor:    4.5,
			MPGCeiling:  9.5,
			MPGBaseline: 8.0,

			OpenRoadLimitKmh: 80,
			UrbanLimitKmh:    50,
			OpenRoadSpeedKmh: 60,

			TurnSignalPenalty:       2.0,
			TurnSignalCooldownSec:   5,
			ParkBrakeSpeedKmh:       5,
			ParkBrakePenaltyPerSec:  2.0,
			ParkBrakeCooldownSec:    10,
			HighBeamSpeedKmh:        60,
			HighBeamPenaltyPerSec:   0.5,
			HighBeamCooldownSec:     10,
			EngineBrakeMinSpeedKmh:  30,
			EngineBrakeRewardPerSec: 0.2,
			EngineBrakeCooldownSec:  15,
			RPMFraction:             0.9,
			RPMPenaltyPerSec:        0.5,
			RPMCooldownSec:          10,
			BrakeTempHighC:          400,
			BrakeTempSevereC:        600,
			BrakeTempPenaltyPerSec:  0.5,
			BrakeTempCooldownSec:    10,

			DamageEpsilon:   0.1,
			MaxSampleGapSec: 5,

			HistoryCapacity: 600,
			TrendDeadBand:   2.0,
			TrendMinSamples: 30,
		},
		Trip: Trip{
			MovingThresholdKmh: 1.0,
			StopTimeout:        5 * time.Minute,
			TeleportCeilingM:   500,
		},
	}
}

// Load resolves configuration by layering defaults, the optional YAML file at
// path, and finally environment variables. An empty path means "defaults
// only"; a missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	// Best-effort .env support for local development.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(envPrefix + "LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "STOP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse %sSTOP_TIMEOUT: %w", envPrefix, err)
		}
		cfg.Trip.StopTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.Scoring.HistoryCapacity <= 0 {
		return errors.New("scoring.history_capacity must be positive")
	}
	if c.Scoring.MaxSampleGapSec <= 0 {
		return errors.New("scoring.max_sample_gap_sec must be positive")
	}
	if c.Scoring.MPGCeiling < c.Scoring.MPGFloor {
		return errors.New("scoring.mpg_ceiling must not be below scoring.mpg_floor")
	}
	if c.Trip.StopTimeout <= 0 {
		return errors.New("trip.stop_timeout must be positive")
	}
	if c.Trip.TeleportCeilingM <= 0 {
		return errors.New("trip.teleport_ceiling_m must be positive")
	}
	return nil
}
