// Package scoring owns all driving-performance score state. The engine
// consumes one telemetry sample at a time and exposes immutable snapshots,
// a weighted breakdown, and a notification stream.
package scoring

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Aldentec/ATSMap-sub000/internal/config"
	"github.com/Aldentec/ATSMap-sub000/internal/grade"
	"github.com/Aldentec/ATSMap-sub000/internal/metrics"
	"github.com/Aldentec/ATSMap-sub000/internal/telemetry"
)

const notificationBuffer = 128

// Engine computes the live behavioral score. It is safe for concurrent use:
// the sample path and the query path may run from different goroutines.
type Engine struct {
	cfg    config.Scoring
	log    *slog.Logger
	events chan Notification

	mu sync.Mutex

	smoothness float64
	safety     float64

	compliantSec float64
	totalSec     float64

	sessionStart    time.Time
	startOdometerKm float64
	lastOdometerKm  float64
	fuelConsumedL   float64

	lastDamage   float64
	streakDamage float64 // damage level recorded at streak start
	streakStart  time.Time

	hasPrev      bool
	prevTime     time.Time
	prevSpeedKmh float64
	prevHeading  float64
	prevPitch    float64
	prevRoll     float64
	prevFuelL    float64

	cool cooldowns

	smoothHist     *history
	complianceHist *history
	safetyHist     *history
	overallHist    *history
}

// cooldowns rate-limit repeated notifications. They are decremented by the
// same elapsed-time deltas used for scoring, so behavior is deterministic
// under replay.
type cooldowns struct {
	turnSignal  float64
	parkBrake   float64
	highBeam    float64
	engineBrake float64
	rpm         float64
	brakeTemp   float64
}

func (c *cooldowns) tick(dt float64) {
	c.turnSignal -= dt
	c.parkBrake -= dt
	c.highBeam -= dt
	c.engineBrake -= dt
	c.rpm -= dt
	c.brakeTemp -= dt
}

// NewEngine creates an engine with all scores at their starting values.
func NewEngine(cfg config.Scoring, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:            cfg,
		log:            logger.With(slog.String("component", "scoring_engine")),
		events:         make(chan Notification, notificationBuffer),
		smoothness:     100,
		safety:         100,
		smoothHist:     newHistory(cfg.HistoryCapacity),
		complianceHist: newHistory(cfg.HistoryCapacity),
		safetyHist:     newHistory(cfg.HistoryCapacity),
		overallHist:    newHistory(cfg.HistoryCapacity),
	}
}

// Notifications returns the bounded event stream. The caller is expected to
// drain it; events are dropped, not blocked on, when the buffer is full.
func (e *Engine) Notifications() <-chan Notification {
	return e.events
}

// UpdateFromSample advances every scoring dimension by the elapsed time since
// the previous valid sample. Disconnected or paused samples are no-ops;
// non-positive or excessive deltas re-anchor state without scoring.
func (e *Engine) UpdateFromSample(s *telemetry.Sample) {
	if s == nil {
		return
	}
	if !s.Connected {
		metrics.IncSampleSkipped("disconnected")
		return
	}
	if s.Paused {
		metrics.IncSampleSkipped("paused")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasPrev {
		e.anchor(s)
		metrics.IncSampleSkipped("anchor")
		return
	}

	dt := s.Timestamp.Sub(e.prevTime).Seconds()
	if dt <= 0 || dt > e.cfg.MaxSampleGapSec {
		e.anchor(s)
		metrics.IncSampleSkipped("gap")
		return
	}

	e.cool.tick(dt)

	e.scoreSmoothness(s, dt)
	e.scoreCompliance(s, dt)
	e.scoreSafety(s, dt)
	e.scoreCondition(s)

	if s.OdometerKm > 0 {
		if e.startOdometerKm == 0 {
			e.startOdometerKm = s.OdometerKm
		}
		e.lastOdometerKm = s.OdometerKm
	}
	if s.FuelLiters < e.prevFuelL {
		e.fuelConsumedL += e.prevFuelL - s.FuelLiters
	}

	e.smoothHist.push(e.smoothness)
	e.complianceHist.push(e.compliancePctLocked())
	e.safetyHist.push(e.safety)
	e.overallHist.push(e.overallLocked())

	e.rememberPrev(s)
	metrics.IncSampleProcessed()
}

// anchor (re)establishes the previous-sample reference without scoring.
// Session anchors are only set once per session.
func (e *Engine) anchor(s *telemetry.Sample) {
	if e.sessionStart.IsZero() {
		e.sessionStart = s.Timestamp
	}
	if e.startOdometerKm == 0 && s.OdometerKm > 0 {
		e.startOdometerKm = s.OdometerKm
		e.lastOdometerKm = s.OdometerKm
	}
	if e.streakStart.IsZero() {
		e.streakStart = s.Timestamp
		e.streakDamage = s.DamagePercent
	}
	e.lastDamage = s.DamagePercent
	e.rememberPrev(s)
}

func (e *Engine) rememberPrev(s *telemetry.Sample) {
	e.prevTime = s.Timestamp
	e.prevSpeedKmh = s.SpeedKmh
	e.prevHeading = s.Heading
	e.prevPitch = s.Pitch
	e.prevRoll = s.Roll
	e.prevFuelL = s.FuelLiters
	e.hasPrev = true
}

func (e *Engine) scoreSmoothness(s *telemetry.Sample, dt float64) {
	accel := (s.SpeedKmh - e.prevSpeedKmh) / 3.6 / dt

	switch {
	case accel >= e.cfg.HardAccelMS2:
		e.smoothness -= e.cfg.HardAccelPenalty
		e.notify("Hard acceleration", -e.cfg.HardAccelPenalty, "smoothness", s.Timestamp)
	case accel >= e.cfg.ModerateAccelMS2:
		e.smoothness -= e.cfg.ModerateAccelPenalty
	case accel <= -e.cfg.HardBrakeMS2:
		e.smoothness -= e.cfg.HardBrakePenalty
		e.notify("Harsh braking", -e.cfg.HardBrakePenalty, "smoothness", s.Timestamp)
	case accel <= -e.cfg.ModerateBrakeMS2:
		e.smoothness -= e.cfg.ModerateBrakePenalty
	default:
		if math.Abs(accel) <= e.cfg.SteadySpeedBandMS2 && s.SpeedKmh > e.cfg.MinScoringSpeedKmh {
			e.smoothness += e.cfg.SteadyRewardPerSec * dt
		}
	}

	// Stationary steering is not scored.
	if s.SpeedKmh > e.cfg.MinScoringSpeedKmh {
		headingRate := math.Abs(angleDelta(s.Heading, e.prevHeading)) / dt * 180 / math.Pi
		if headingRate > e.cfg.HeadingRateDegSec {
			e.smoothness -= e.cfg.HeadingPenalty * dt
		}

		pitchRate := math.Abs(angleDelta(s.Pitch, e.prevPitch)) / dt * 180 / math.Pi
		rollRate := math.Abs(angleDelta(s.Roll, e.prevRoll)) / dt * 180 / math.Pi
		if pitchRate > e.cfg.AttitudeRateDegSec || rollRate > e.cfg.AttitudeRateDegSec {
			e.smoothness -= e.cfg.AttitudePenalty * dt
		}
	}

	e.smoothness = clamp(e.smoothness)
}

// effectiveLimit returns the posted limit when known, otherwise a default
// inferred from current speed.
func (e *Engine) effectiveLimit(s *telemetry.Sample) float64 {
	if s.SpeedLimitKmh > 0 {
		return s.SpeedLimitKmh
	}
	if s.SpeedKmh > e.cfg.OpenRoadSpeedKmh {
		return e.cfg.OpenRoadLimitKmh
	}
	return e.cfg.UrbanLimitKmh
}

func (e *Engine) scoreCompliance(s *telemetry.Sample, dt float64) {
	e.totalSec += dt
	if s.SpeedKmh <= e.effectiveLimit(s) {
		e.compliantSec += dt
	}
}

func (e *Engine) scoreSafety(s *telemetry.Sample, dt float64) {
	if s.SpeedKmh > e.cfg.MinScoringSpeedKmh {
		d := angleDelta(s.Heading, e.prevHeading)
		rate := math.Abs(d) / dt * 180 / math.Pi
		if rate > e.cfg.HeadingRateDegSec {
			signaled := (d > 0 && s.LeftBlinker) || (d < 0 && s.RightBlinker)
			if !signaled && e.cool.turnSignal <= 0 {
				e.safety -= e.cfg.TurnSignalPenalty
				e.notify("Turning without signaling", -e.cfg.TurnSignalPenalty, "safety", s.Timestamp)
				e.cool.turnSignal = e.cfg.TurnSignalCooldownSec
			}
		}
	}

	if s.ParkBrake && s.SpeedKmh > e.cfg.ParkBrakeSpeedKmh {
		e.safety -= e.cfg.ParkBrakePenaltyPerSec * dt
		if e.cool.parkBrake <= 0 {
			e.notify("Parking brake engaged while moving", -e.cfg.ParkBrakePenaltyPerSec, "safety", s.Timestamp)
			e.cool.parkBrake = e.cfg.ParkBrakeCooldownSec
		}
	}

	if s.HighBeams && (s.SpeedKmh < e.cfg.HighBeamSpeedKmh || e.effectiveLimit(s) <= e.cfg.UrbanLimitKmh) {
		e.safety -= e.cfg.HighBeamPenaltyPerSec * dt
		if e.cool.highBeam <= 0 {
			e.notify("High beams in low-speed traffic", -e.cfg.HighBeamPenaltyPerSec, "safety", s.Timestamp)
			e.cool.highBeam = e.cfg.HighBeamCooldownSec
		}
	}

	if (s.EngineBrake || s.RetarderLevel > 0) && s.Pitch < 0 && s.SpeedKmh > e.cfg.EngineBrakeMinSpeedKmh {
		e.safety += e.cfg.EngineBrakeRewardPerSec * dt
		if e.cool.engineBrake <= 0 {
			e.notify("Good descent control", e.cfg.EngineBrakeRewardPerSec, "safety", s.Timestamp)
			e.cool.engineBrake = e.cfg.EngineBrakeCooldownSec
		}
	}

	if s.EngineMaxRPM > 0 && s.EngineRPM > e.cfg.RPMFraction*s.EngineMaxRPM {
		e.safety -= e.cfg.RPMPenaltyPerSec * dt
		if e.cool.rpm <= 0 {
			e.notify("Engine over-revving", -e.cfg.RPMPenaltyPerSec, "safety", s.Timestamp)
			e.cool.rpm = e.cfg.RPMCooldownSec
		}
	}

	if s.BrakeTempC > e.cfg.BrakeTempHighC {
		rate := e.cfg.BrakeTempPenaltyPerSec
		msg := "Brake temperature high"
		if s.BrakeTempC > e.cfg.BrakeTempSevereC {
			rate *= 2
			msg = "Brake temperature critical"
		}
		e.safety -= rate * dt
		if e.cool.brakeTemp <= 0 {
			e.notify(msg, -rate, "safety", s.Timestamp)
			e.cool.brakeTemp = e.cfg.BrakeTempCooldownSec
		}
	}

	e.safety = clamp(e.safety)
}

func (e *Engine) scoreCondition(s *telemetry.Sample) {
	if s.DamagePercent > e.streakDamage+e.cfg.DamageEpsilon {
		// Delta against the streak-start level: lastDamage may already hold
		// the new value when the increase arrived during a re-anchoring gap.
		delta := s.DamagePercent - e.streakDamage
		e.streakStart = s.Timestamp
		e.streakDamage = s.DamagePercent
		e.notify("Vehicle damage increased", -delta, "condition", s.Timestamp)
	}
	e.lastDamage = s.DamagePercent
}

func (e *Engine) compliancePctLocked() float64 {
	if e.totalSec <= 0 {
		return 100
	}
	return clamp(e.compliantSec / e.totalSec * 100)
}

func (e *Engine) conditionLocked() float64 {
	return clamp(100 - e.lastDamage)
}

func (e *Engine) overallLocked() float64 {
	return clamp((e.smoothness + e.compliancePctLocked() + e.safety + e.conditionLocked()) / 4)
}

func (e *Engine) estimatedMPGLocked() float64 {
	return e.cfg.MPGFloor + (e.cfg.MPGCeiling-e.cfg.MPGFloor)*e.smoothness/100
}

// GetCurrentSnapshot returns an independent copy of the current metrics,
// including fresh copies of the history buffers.
func (e *Engine) GetCurrentSnapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	compliance := e.compliancePctLocked()
	condition := e.conditionLocked()
	overall := e.overallLocked()
	mpg := e.estimatedMPGLocked()

	var duration time.Duration
	if !e.sessionStart.IsZero() && e.prevTime.After(e.sessionStart) {
		duration = e.prevTime.Sub(e.sessionStart)
	}

	var streak time.Duration
	if !e.streakStart.IsZero() && e.prevTime.After(e.streakStart) {
		streak = e.prevTime.Sub(e.streakStart)
	}

	var distanceKm float64
	if e.startOdometerKm > 0 && e.lastOdometerKm > e.startOdometerKm {
		distanceKm = e.lastOdometerKm - e.startOdometerKm
	}

	var avgSpeed float64
	if duration > 0 {
		avgSpeed = distanceKm / duration.Hours()
	}

	trend := TrendStable
	if e.overallHist.len() >= e.cfg.TrendMinSamples {
		diff := overall - e.overallHist.mean()
		switch {
		case diff > e.cfg.TrendDeadBand:
			trend = TrendUp
		case diff < -e.cfg.TrendDeadBand:
			trend = TrendDown
		}
	}

	fuelScore := clamp(mpg / e.cfg.MPGBaseline * 100)

	return Snapshot{
		Smoothness:          e.smoothness,
		FuelEfficiencyScore: fuelScore,
		EstimatedMPG:        mpg,
		SpeedCompliance:     compliance,
		ComplianceGrade:     grade.ForScore(compliance),
		Safety:              e.safety,
		VehicleCondition:    condition,
		DamageFreeStreak:    streak,
		Overall:             overall,
		OverallGrade:        grade.ForScore(overall),
		Trend:               trend,
		SessionDuration:     duration,
		SessionDistanceKm:   distanceKm,
		AverageSpeedKmh:     avgSpeed,
		FuelConsumedL:       e.fuelConsumedL,
		SmoothnessHistory:   e.smoothHist.values(),
		ComplianceHistory:   e.complianceHist.values(),
		SafetyHistory:       e.safetyHist.values(),
		OverallHistory:      e.overallHist.values(),
		GeneratedAt:         time.Now().UTC(),
	}
}

// GetScoreBreakdown returns the per-dimension breakdown using the same
// underlying values as the current snapshot.
func (e *Engine) GetScoreBreakdown() []Component {
	e.mu.Lock()
	defer e.mu.Unlock()

	compliance := e.compliancePctLocked()
	condition := e.conditionLocked()

	return []Component{
		{
			Name:        "Smoothness",
			Value:       e.smoothness,
			Weight:      0.25,
			Description: "Acceleration, braking, and steering consistency",
			Class:       classForValue(e.smoothness),
		},
		{
			Name:        "Speed Compliance",
			Value:       compliance,
			Weight:      0.25,
			Description: "Share of driving time at or below the speed limit",
			Class:       classForValue(compliance),
		},
		{
			Name:        "Safety",
			Value:       e.safety,
			Weight:      0.25,
			Description: "Signal use, brake discipline, and engine handling",
			Class:       classForValue(e.safety),
		},
		{
			Name:        "Vehicle Condition",
			Value:       condition,
			Weight:      0.25,
			Description: "Complement of accumulated vehicle damage",
			Class:       classForValue(condition),
		},
	}
}

// ResetSession reinitializes all score state to the defined starting values.
func (e *Engine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.smoothness = 100
	e.safety = 100
	e.compliantSec = 0
	e.totalSec = 0
	e.sessionStart = time.Time{}
	e.startOdometerKm = 0
	e.lastOdometerKm = 0
	e.fuelConsumedL = 0
	e.lastDamage = 0
	e.streakDamage = 0
	e.streakStart = time.Time{}
	e.hasPrev = false
	e.prevTime = time.Time{}
	e.cool = cooldowns{}
	e.smoothHist.reset()
	e.complianceHist.reset()
	e.safetyHist.reset()
	e.overallHist.reset()

	e.log.Info("session_reset")
}

func (e *Engine) notify(message string, points float64, category string, at time.Time) {
	n := Notification{
		Message:   message,
		Points:    points,
		Timestamp: at,
		Type:      typeForPoints(points),
		Category:  category,
	}
	select {
	case e.events <- n:
	default:
		// No consumer draining; dropping beats blocking the sample path.
	}
	metrics.IncNotification(string(n.Type))
}

// angleDelta returns the shortest signed angular difference a-b in radians,
// avoiding wraparound artifacts at the 0/2pi boundary.
func angleDelta(a, b float64) float64 {
	return math.Atan2(math.Sin(a-b), math.Cos(a-b))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
