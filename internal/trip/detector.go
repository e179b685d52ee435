// Package trip detects bounded driving sessions from the telemetry stream
// and hands completed trips to the trip store.
package trip

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Aldentec/ATSMap-sub000/internal/config"
	"github.com/Aldentec/ATSMap-sub000/internal/metrics"
	"github.com/Aldentec/ATSMap-sub000/internal/scoring"
	"github.com/Aldentec/ATSMap-sub000/internal/store"
	"github.com/Aldentec/ATSMap-sub000/internal/telemetry"
)

const kmToMiles = 0.621371

// Writer persists completed trips.
type Writer interface {
	SaveTrip(t *store.Trip) (int64, error)
}

// Detector runs the Idle/Active trip state machine. At most one trip is
// active at a time.
type Detector struct {
	engine *scoring.Engine
	writer Writer
	log    *slog.Logger
	cfg    config.Trip

	mu     sync.Mutex
	active bool

	startTime  time.Time
	distanceKm float64
	fuelUsedL  float64

	hasOdo  bool
	lastOdo float64
	hasPos  bool
	lastX   float64
	lastY   float64
	lastZ   float64

	lastFuel   float64
	lastTime   time.Time
	stoppedFor time.Duration

	// saves tracks in-flight fire-and-forget persistence.
	saves sync.WaitGroup
}

// New creates a detector in the Idle state.
func New(engine *scoring.Engine, writer Writer, logger *slog.Logger, cfg config.Trip) *Detector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Detector{
		engine: engine,
		writer: writer,
		log:    logger.With(slog.String("component", "trip_detector")),
		cfg:    cfg,
	}
}

// Active reports whether a trip is in progress.
func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Observe advances the state machine with one sample. Disconnected and paused
// samples are ignored. When the sample ends the active trip, the completed
// trip is returned so the caller keeps it even if the background save fails;
// otherwise the result is nil.
func (d *Detector) Observe(s *telemetry.Sample) *store.Trip {
	if s == nil || !s.Connected || s.Paused {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		if s.SpeedKmh > d.cfg.MovingThresholdKmh {
			d.startLocked(s)
		}
		return nil
	}

	dt := s.Timestamp.Sub(d.lastTime)
	if dt < 0 {
		dt = 0
	}

	d.accumulateLocked(s)

	if s.SpeedKmh <= d.cfg.MovingThresholdKmh {
		d.stoppedFor += dt
		if d.stoppedFor > d.cfg.StopTimeout {
			return d.endLocked(s.Timestamp, false)
		}
	} else {
		d.stoppedFor = 0
	}

	d.rememberLocked(s)
	return nil
}

func (d *Detector) startLocked(s *telemetry.Sample) {
	d.active = true
	d.startTime = s.Timestamp
	d.distanceKm = 0
	d.fuelUsedL = 0
	d.stoppedFor = 0
	d.hasOdo = false
	d.hasPos = false
	d.rememberLocked(s)

	metrics.SetTripActive(true)
	d.log.Info("trip_started", slog.Time("start", s.Timestamp))
}

func (d *Detector) rememberLocked(s *telemetry.Sample) {
	d.lastTime = s.Timestamp
	d.lastFuel = s.FuelLiters
	if s.OdometerKm > 0 {
		d.lastOdo = s.OdometerKm
		d.hasOdo = true
	}
	d.lastX, d.lastY, d.lastZ = s.X, s.Y, s.Z
	d.hasPos = true
}

// accumulateLocked prefers the odometer delta when present and increasing,
// falling back to 3-D displacement with a teleport filter.
func (d *Detector) accumulateLocked(s *telemetry.Sample) {
	switch {
	case s.OdometerKm > 0 && d.hasOdo && s.OdometerKm >= d.lastOdo:
		d.distanceKm += s.OdometerKm - d.lastOdo
	case d.hasPos:
		dx := s.X - d.lastX
		dy := s.Y - d.lastY
		dz := s.Z - d.lastZ
		dispM := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dispM <= d.cfg.TeleportCeilingM {
			d.distanceKm += dispM / 1000
		}
	}

	if s.FuelLiters < d.lastFuel {
		d.fuelUsedL += d.lastFuel - s.FuelLiters
	}
}

// endLocked finalizes the active trip at the given instant. Persistence is
// fire-and-forget unless blocking is set (host shutdown), so the sample path
// never blocks on storage.
func (d *Detector) endLocked(at time.Time, blocking bool) *store.Trip {
	if at.Before(d.startTime) {
		at = d.startTime
	}

	snapshot := d.engine.GetCurrentSnapshot()

	durationMin := at.Sub(d.startTime).Minutes()
	distanceMiles := d.distanceKm * kmToMiles

	var avgSpeed float64
	if durationMin > 0 {
		avgSpeed = distanceMiles / (durationMin / 60)
	}

	trip := &store.Trip{
		StartTime:              d.startTime,
		EndTime:                at,
		DurationMinutes:        durationMin,
		DistanceMiles:          distanceMiles,
		SmoothnessScore:        snapshot.Smoothness,
		FuelEfficiencyMPG:      snapshot.EstimatedMPG,
		SpeedCompliancePercent: snapshot.SpeedCompliance,
		SafetyScore:            snapshot.Safety,
		OverallGrade:           snapshot.OverallGrade,
		AverageSpeed:           avgSpeed,
		FuelConsumed:           d.fuelUsedL,
	}

	d.active = false
	d.stoppedFor = 0
	metrics.SetTripActive(false)

	d.log.Info("trip_ended",
		slog.Time("start", trip.StartTime),
		slog.Time("end", trip.EndTime),
		slog.Float64("distance_miles", trip.DistanceMiles),
		slog.String("grade", string(trip.OverallGrade)),
	)

	if blocking {
		d.save(trip)
	} else {
		d.saves.Add(1)
		go func() {
			defer d.saves.Done()
			d.save(trip)
		}()
	}

	return trip
}

// save is best-effort: a failure is logged, never retried, and the in-memory
// trip stays valid for the caller.
func (d *Detector) save(trip *store.Trip) {
	if d.writer == nil {
		return
	}
	id, err := d.writer.SaveTrip(trip)
	if err != nil {
		metrics.IncTripSaveFailure()
		d.log.Error("trip_save_failed",
			slog.Time("start", trip.StartTime),
			slog.Float64("distance_miles", trip.DistanceMiles),
			slog.String("err", err.Error()),
		)
		return
	}
	metrics.IncTripSaved()
	d.log.Info("trip_saved", slog.Int64("id", id))
}

// Shutdown ends any active trip regardless of the stop timeout, persisting it
// synchronously, and waits for in-flight saves. Returns the ended trip, or
// nil if none was active.
func (d *Detector) Shutdown() *store.Trip {
	d.mu.Lock()
	var trip *store.Trip
	if d.active {
		trip = d.endLocked(d.lastTime, true)
	}
	d.mu.Unlock()

	d.saves.Wait()
	return trip
}
