package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/Aldentec/ATSMap-sub000/internal/config"
	"github.com/Aldentec/ATSMap-sub000/internal/grade"
	"github.com/Aldentec/ATSMap-sub000/internal/telemetry"
)

var testBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewEngine(config.Default().Scoring, nil)
}

func testSample(at time.Time, speedKmh float64) *telemetry.Sample {
	return &telemetry.Sample{
		Connected: true,
		Timestamp: at,
		SpeedKmh:  speedKmh,
	}
}

func drainNotifications(e *Engine) []Notification {
	var out []Notification
	for {
		select {
		case n := <-e.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInitialSnapshot(t *testing.T) {
	e := testEngine()
	snap := e.GetCurrentSnapshot()

	if snap.Smoothness != 100 || snap.Safety != 100 {
		t.Errorf("initial scores = %.1f/%.1f, want 100/100", snap.Smoothness, snap.Safety)
	}
	if snap.SpeedCompliance != 100 {
		t.Errorf("initial compliance = %.1f, want 100", snap.SpeedCompliance)
	}
	if snap.VehicleCondition != 100 {
		t.Errorf("initial condition = %.1f, want 100", snap.VehicleCondition)
	}
	if snap.Overall != 100 || snap.OverallGrade != grade.APlus {
		t.Errorf("initial overall = %.1f (%s), want 100 (A+)", snap.Overall, snap.OverallGrade)
	}
	if snap.Trend != TrendStable {
		t.Errorf("initial trend = %s, want stable", snap.Trend)
	}
	if snap.SessionDuration != 0 {
		t.Errorf("initial duration = %v, want 0", snap.SessionDuration)
	}
	if len(snap.OverallHistory) != 0 {
		t.Errorf("initial history len = %d, want 0", len(snap.OverallHistory))
	}
	if !almostEqual(snap.EstimatedMPG, 9.5) {
		t.Errorf("initial MPG = %.2f, want 9.5", snap.EstimatedMPG)
	}
}

func TestIgnoresDisconnectedAndPaused(t *testing.T) {
	e := testEngine()

	s := testSample(testBase, 50)
	s.Connected = false
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(time.Second), 50)
	s.Paused = true
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if snap.SessionDuration != 0 || len(snap.SmoothnessHistory) != 0 {
		t.Errorf("skipped samples should not advance state, duration=%v histLen=%d",
			snap.SessionDuration, len(snap.SmoothnessHistory))
	}
}

func TestHardAccelerationPenalty(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	// +10.8 km/h over 1s is 3.0 m/s^2.
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 60.8))

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Smoothness, 98) {
		t.Errorf("smoothness = %.2f, want 98", snap.Smoothness)
	}

	events := drainNotifications(e)
	if len(events) != 1 || events[0].Message != "Hard acceleration" {
		t.Fatalf("events = %+v, want one Hard acceleration", events)
	}
	if events[0].Type != NotificationPenalty || !almostEqual(events[0].Points, -2) {
		t.Errorf("event = %+v, want penalty of -2", events[0])
	}
}

func TestHarshBrakingPenalty(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 60))
	// -14.4 km/h over 1s is -4.0 m/s^2.
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 45.6))

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Smoothness, 97) {
		t.Errorf("smoothness = %.2f, want 97", snap.Smoothness)
	}

	events := drainNotifications(e)
	if len(events) != 1 || events[0].Message != "Harsh braking" {
		t.Fatalf("events = %+v, want one Harsh braking", events)
	}
}

func TestModeratePenaltiesAreSilent(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	// +7.2 km/h over 1s is 2.0 m/s^2, moderate.
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 57.2))

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Smoothness, 99.5) {
		t.Errorf("smoothness = %.2f, want 99.5", snap.Smoothness)
	}
	if events := drainNotifications(e); len(events) != 0 {
		t.Errorf("moderate penalty should not notify, got %+v", events)
	}
}

func TestSmoothnessClampedAtHundred(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	for i := 1; i <= 5; i++ {
		e.UpdateFromSample(testSample(testBase.Add(time.Duration(i)*time.Second), 50))
	}

	if snap := e.GetCurrentSnapshot(); snap.Smoothness != 100 {
		t.Errorf("smoothness = %.2f, want clamp at 100", snap.Smoothness)
	}
}

func TestSteadyRewardRecovers(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 60))
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 45.6)) // harsh brake, 97
	e.UpdateFromSample(testSample(testBase.Add(2*time.Second), 45.6))

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Smoothness, 97.05) {
		t.Errorf("smoothness = %.4f, want 97.05", snap.Smoothness)
	}
}

func TestSpeedCompliance(t *testing.T) {
	e := testEngine()

	s := testSample(testBase, 40)
	s.SpeedLimitKmh = 50
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(time.Second), 40)
	s.SpeedLimitKmh = 50
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(2*time.Second), 60)
	s.SpeedLimitKmh = 50
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.SpeedCompliance, 50) {
		t.Errorf("compliance = %.2f, want 50", snap.SpeedCompliance)
	}
	if snap.ComplianceGrade != grade.F {
		t.Errorf("compliance grade = %s, want F", snap.ComplianceGrade)
	}
}

func TestComplianceDefaultLimits(t *testing.T) {
	e := testEngine()

	// No posted limit: 55 km/h is below the open-road cutoff, so the urban
	// default of 50 applies and the interval is non-compliant.
	e.UpdateFromSample(testSample(testBase, 55))
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 55))

	if snap := e.GetCurrentSnapshot(); !almostEqual(snap.SpeedCompliance, 0) {
		t.Errorf("compliance = %.2f, want 0", snap.SpeedCompliance)
	}

	// Above the cutoff the open-road default of 80 applies.
	e2 := testEngine()
	e2.UpdateFromSample(testSample(testBase, 70))
	e2.UpdateFromSample(testSample(testBase.Add(time.Second), 70))

	if snap := e2.GetCurrentSnapshot(); !almostEqual(snap.SpeedCompliance, 100) {
		t.Errorf("open-road compliance = %.2f, want 100", snap.SpeedCompliance)
	}
}

func TestGapReanchorsWithoutScoring(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 0))
	// A 10s gap exceeds the 5s ceiling: the huge speed jump must not score.
	e.UpdateFromSample(testSample(testBase.Add(10*time.Second), 100))

	snap := e.GetCurrentSnapshot()
	if snap.Smoothness != 100 {
		t.Errorf("smoothness = %.2f, want 100 after gap", snap.Smoothness)
	}
	if len(snap.SmoothnessHistory) != 0 {
		t.Errorf("gap samples should not be recorded, histLen=%d", len(snap.SmoothnessHistory))
	}

	// Scoring resumes from the new anchor.
	e.UpdateFromSample(testSample(testBase.Add(11*time.Second), 100))
	if snap := e.GetCurrentSnapshot(); len(snap.SmoothnessHistory) != 1 {
		t.Errorf("histLen = %d, want 1 after resuming", len(snap.SmoothnessHistory))
	}
}

func TestOutOfOrderSampleReanchors(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	e.UpdateFromSample(testSample(testBase.Add(-time.Second), 110))

	if snap := e.GetCurrentSnapshot(); snap.Smoothness != 100 {
		t.Errorf("smoothness = %.2f, want 100 for out-of-order sample", snap.Smoothness)
	}
}

func TestDamageStreak(t *testing.T) {
	e := testEngine()

	s := testSample(testBase, 50)
	e.UpdateFromSample(s)
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 50))

	s = testSample(testBase.Add(2*time.Second), 50)
	s.DamagePercent = 5
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.VehicleCondition, 95) {
		t.Errorf("condition = %.2f, want 95", snap.VehicleCondition)
	}
	if snap.DamageFreeStreak != 0 {
		t.Errorf("streak = %v, want 0 right after damage", snap.DamageFreeStreak)
	}

	var damageEvents int
	for _, n := range drainNotifications(e) {
		if n.Category == "condition" {
			damageEvents++
			if !almostEqual(n.Points, -5) {
				t.Errorf("damage event points = %.2f, want -5", n.Points)
			}
		}
	}
	if damageEvents != 1 {
		t.Fatalf("damage events = %d, want 1", damageEvents)
	}

	// The streak grows while damage holds level.
	s = testSample(testBase.Add(3*time.Second), 50)
	s.DamagePercent = 5
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); snap.DamageFreeStreak != time.Second {
		t.Errorf("streak = %v, want 1s", snap.DamageFreeStreak)
	}
}

func TestDamageDuringGapStillPenalized(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	// The damage lands inside a re-anchoring gap; the next scored sample
	// must still report the full increase as a penalty.
	s := testSample(testBase.Add(10*time.Second), 50)
	s.DamagePercent = 10
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(11*time.Second), 50)
	s.DamagePercent = 10
	e.UpdateFromSample(s)

	var damageEvents []Notification
	for _, n := range drainNotifications(e) {
		if n.Category == "condition" {
			damageEvents = append(damageEvents, n)
		}
	}
	if len(damageEvents) != 1 {
		t.Fatalf("damage events = %d, want 1", len(damageEvents))
	}
	if !almostEqual(damageEvents[0].Points, -10) {
		t.Errorf("points = %.2f, want -10", damageEvents[0].Points)
	}
	if damageEvents[0].Type != NotificationPenalty {
		t.Errorf("type = %s, want penalty", damageEvents[0].Type)
	}
}

func TestDamageBelowEpsilonIgnored(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	s := testSample(testBase.Add(time.Second), 50)
	s.DamagePercent = 0.05
	e.UpdateFromSample(s)

	for _, n := range drainNotifications(e) {
		if n.Category == "condition" {
			t.Fatalf("sub-epsilon damage should not notify, got %+v", n)
		}
	}
}

func TestUnsignaledTurnPenalty(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	// 0.5 rad over 1s is ~28.6 deg/s, well above the 15 deg/s threshold.
	s := testSample(testBase.Add(time.Second), 50)
	s.Heading = 0.5
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Safety, 98) {
		t.Errorf("safety = %.2f, want 98", snap.Safety)
	}

	// A second sharp turn inside the cooldown window is not penalized again.
	s = testSample(testBase.Add(2*time.Second), 50)
	s.Heading = 1.0
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); !almostEqual(snap.Safety, 98) {
		t.Errorf("safety = %.2f, want 98 inside cooldown", snap.Safety)
	}
}

func TestSignaledTurnNotPenalized(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	s := testSample(testBase.Add(time.Second), 50)
	s.Heading = 0.5
	s.LeftBlinker = true
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); snap.Safety != 100 {
		t.Errorf("safety = %.2f, want 100 for signaled turn", snap.Safety)
	}
}

func TestWrongBlinkerStillPenalized(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	s := testSample(testBase.Add(time.Second), 50)
	s.Heading = 0.5
	s.RightBlinker = true
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); !almostEqual(snap.Safety, 98) {
		t.Errorf("safety = %.2f, want 98 for wrong-side blinker", snap.Safety)
	}
}

func TestStationarySteeringNotScored(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 0))

	s := testSample(testBase.Add(time.Second), 0)
	s.Heading = 1.5
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if snap.Safety != 100 || snap.Smoothness != 100 {
		t.Errorf("stationary steering scored: safety=%.2f smoothness=%.2f", snap.Safety, snap.Smoothness)
	}
}

func TestParkBrakeContinuousPenalty(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 20))

	for i := 1; i <= 2; i++ {
		s := testSample(testBase.Add(time.Duration(i)*time.Second), 20)
		s.ParkBrake = true
		e.UpdateFromSample(s)
	}

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Safety, 96) {
		t.Errorf("safety = %.2f, want 96 after 2s of park brake", snap.Safety)
	}

	// Penalty applies every second, but the cooldown limits it to one event.
	var parkEvents int
	for _, n := range drainNotifications(e) {
		if n.Message == "Parking brake engaged while moving" {
			parkEvents++
		}
	}
	if parkEvents != 1 {
		t.Errorf("park brake events = %d, want 1", parkEvents)
	}
}

func TestBrakeTempSevereDoublesRate(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	s := testSample(testBase.Add(time.Second), 50)
	s.BrakeTempC = 650
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Safety, 99) {
		t.Errorf("safety = %.2f, want 99 at severe brake temp", snap.Safety)
	}

	events := drainNotifications(e)
	if len(events) != 1 || events[0].Message != "Brake temperature critical" {
		t.Fatalf("events = %+v, want Brake temperature critical", events)
	}
}

func TestEngineBrakeRewardOnDescent(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 20))

	// Take a park brake hit first so the reward is visible under the clamp.
	s := testSample(testBase.Add(time.Second), 20)
	s.ParkBrake = true
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(2*time.Second), 50)
	s.Pitch = -0.1
	s.EngineBrake = true
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if !almostEqual(snap.Safety, 98.2) {
		t.Errorf("safety = %.2f, want 98.2 after descent reward", snap.Safety)
	}

	var reward bool
	for _, n := range drainNotifications(e) {
		if n.Message == "Good descent control" && n.Type == NotificationReward {
			reward = true
		}
	}
	if !reward {
		t.Error("expected a descent control reward event")
	}
}

func TestOverRevPenalty(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	s := testSample(testBase.Add(time.Second), 50)
	s.EngineRPM = 1900
	s.EngineMaxRPM = 2000
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); !almostEqual(snap.Safety, 99.5) {
		t.Errorf("safety = %.2f, want 99.5 while over-revving", snap.Safety)
	}
}

func TestFuelTracking(t *testing.T) {
	e := testEngine()

	s := testSample(testBase, 50)
	s.FuelLiters = 500
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(time.Second), 50)
	s.FuelLiters = 499.5
	e.UpdateFromSample(s)

	// A refuel must not count as consumption.
	s = testSample(testBase.Add(2*time.Second), 50)
	s.FuelLiters = 600
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); !almostEqual(snap.FuelConsumedL, 0.5) {
		t.Errorf("fuel consumed = %.2f, want 0.5", snap.FuelConsumedL)
	}
}

func TestSessionDistanceFromOdometer(t *testing.T) {
	e := testEngine()

	s := testSample(testBase, 50)
	s.OdometerKm = 1000
	e.UpdateFromSample(s)

	s = testSample(testBase.Add(time.Second), 50)
	s.OdometerKm = 1001.2
	e.UpdateFromSample(s)

	snap := e.GetCurrentSnapshot()
	if math.Abs(snap.SessionDistanceKm-1.2) > 1e-6 {
		t.Errorf("distance = %.4f, want 1.2", snap.SessionDistanceKm)
	}
	if snap.SessionDuration != time.Second {
		t.Errorf("duration = %v, want 1s", snap.SessionDuration)
	}
	// 1.2 km in one second of driving.
	if math.Abs(snap.AverageSpeedKmh-4320) > 1e-3 {
		t.Errorf("avg speed = %.2f, want 4320", snap.AverageSpeedKmh)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	e.UpdateFromSample(testSample(testBase.Add(time.Second), 50))

	snap := e.GetCurrentSnapshot()
	if len(snap.SmoothnessHistory) != 1 {
		t.Fatalf("histLen = %d, want 1", len(snap.SmoothnessHistory))
	}
	snap.SmoothnessHistory[0] = -1

	if again := e.GetCurrentSnapshot(); again.SmoothnessHistory[0] == -1 {
		t.Error("snapshot history shares memory with the engine")
	}
}

func TestTrendStableWithinDeadBand(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	for i := 1; i <= 35; i++ {
		e.UpdateFromSample(testSample(testBase.Add(time.Duration(i)*time.Second), 50))
	}

	if snap := e.GetCurrentSnapshot(); snap.Trend != TrendStable {
		t.Errorf("trend = %s, want stable", snap.Trend)
	}
}

func TestTrendDownAfterDamage(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))
	for i := 1; i <= 30; i++ {
		e.UpdateFromSample(testSample(testBase.Add(time.Duration(i)*time.Second), 50))
	}

	s := testSample(testBase.Add(31*time.Second), 50)
	s.DamagePercent = 40
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); snap.Trend != TrendDown {
		t.Errorf("trend = %s, want down", snap.Trend)
	}
}

func TestTrendNeedsMinimumSamples(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 50))

	s := testSample(testBase.Add(time.Second), 50)
	s.DamagePercent = 40
	e.UpdateFromSample(s)

	if snap := e.GetCurrentSnapshot(); snap.Trend != TrendStable {
		t.Errorf("trend = %s, want stable before enough samples", snap.Trend)
	}
}

func TestGetScoreBreakdown(t *testing.T) {
	e := testEngine()

	components := e.GetScoreBreakdown()
	if len(components) != 4 {
		t.Fatalf("components = %d, want 4", len(components))
	}

	var totalWeight float64
	for _, c := range components {
		totalWeight += c.Weight
		if c.Value != 100 || c.Class != "good" {
			t.Errorf("%s = %.1f (%s), want 100 (good)", c.Name, c.Value, c.Class)
		}
	}
	if !almostEqual(totalWeight, 1) {
		t.Errorf("weights sum to %.2f, want 1", totalWeight)
	}
}

func TestResetSession(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 60))
	s := testSample(testBase.Add(time.Second), 45.6)
	s.DamagePercent = 20
	s.ParkBrake = true
	e.UpdateFromSample(s)

	e.ResetSession()

	snap := e.GetCurrentSnapshot()
	if snap.Smoothness != 100 || snap.Safety != 100 || snap.VehicleCondition != 100 {
		t.Errorf("scores after reset = %.1f/%.1f/%.1f, want all 100",
			snap.Smoothness, snap.Safety, snap.VehicleCondition)
	}
	if snap.Overall != 100 || snap.OverallGrade != grade.APlus {
		t.Errorf("overall after reset = %.1f (%s)", snap.Overall, snap.OverallGrade)
	}
	if snap.SessionDuration != 0 || snap.FuelConsumedL != 0 {
		t.Errorf("session state after reset: duration=%v fuel=%.2f", snap.SessionDuration, snap.FuelConsumedL)
	}
	if len(snap.OverallHistory) != 0 {
		t.Errorf("history after reset = %d entries, want 0", len(snap.OverallHistory))
	}
	if snap.DamageFreeStreak != 0 {
		t.Errorf("streak after reset = %v, want 0", snap.DamageFreeStreak)
	}
}

func TestNotificationBufferDropsWhenFull(t *testing.T) {
	e := testEngine()

	e.UpdateFromSample(testSample(testBase, 0))
	// Alternate damage increases without draining; the buffer caps out
	// instead of blocking the sample path.
	for i := 1; i <= notificationBuffer+20; i++ {
		s := testSample(testBase.Add(time.Duration(i)*time.Second), 0)
		s.DamagePercent = float64(i)
		e.UpdateFromSample(s)
	}

	if got := len(drainNotifications(e)); got != notificationBuffer {
		t.Errorf("buffered events = %d, want %d", got, notificationBuffer)
	}
}

func TestAngleDeltaWraparound(t *testing.T) {
	// Crossing the 0/2pi boundary must give a small delta, not ~2pi.
	d := angleDelta(0.1, 2*math.Pi-0.1)
	if math.Abs(d-0.2) > 1e-9 {
		t.Errorf("angleDelta across boundary = %.4f, want 0.2", d)
	}

	d = angleDelta(2*math.Pi-0.1, 0.1)
	if math.Abs(d+0.2) > 1e-9 {
		t.Errorf("angleDelta across boundary = %.4f, want -0.2", d)
	}
}
