package tracker

import (
	"time"

	"backend-wanderqi/internal/shared/geo"
)

const (
	// MetersPerQi is how far a player must walk to earn one qi unit.
	MetersPerQi = 100.0

	// Deltas at or below minDeltaM are GPS jitter, deltas at or above
	// maxDeltaM are teleports/glitches. Both are rejected.
	minDeltaM = 0.01
	maxDeltaM = 500.0
)

// Position is a single timestamped GPS fix.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is what one observed sample produced.
type Result struct {
	Position      Position `json:"position"`
	DistanceMoved float64  `json:"distance_moved_m"`
	QiGained      int      `json:"qi_gained"`
	TotalDistance float64  `json:"total_distance_m"`
	SpeedKmh      float64  `json:"speed_kmh"`
}

// Tracker turns raw position samples into distance and qi accrual.
// It is owned by a single session and is not safe for concurrent use.
type Tracker struct {
	last     *Position
	total    float64
	residual float64
	speedKmh float64
}

// New creates a tracker seeded with the character's lifetime distance
// loaded from the durable store.
func New(initialDistanceM float64) *Tracker {
	return &Tracker{total: initialDistanceM}
}

// Observe folds one sample into the tracker state. The first sample only
// establishes the baseline. Rejected deltas report zero movement but
// still re-anchor the baseline so drift cannot compound against a stale
// fix: a rejected jump is a new anchor, not "no movement happened".
func (t *Tracker) Observe(sample Position) Result {
	res := Result{Position: sample, TotalDistance: t.total}

	if t.last == nil {
		t.last = &sample
		t.speedKmh = 0
		return res
	}

	d := geo.HaversineM(t.last.Lat, t.last.Lng, sample.Lat, sample.Lng)
	if d > minDeltaM && d < maxDeltaM {
		t.total += d
		t.residual += d

		gained := int(t.residual / MetersPerQi)
		t.residual -= float64(gained) * MetersPerQi

		res.DistanceMoved = d
		res.QiGained = gained
		res.TotalDistance = t.total

		if elapsed := sample.Timestamp.Sub(t.last.Timestamp).Seconds(); elapsed > 0 {
			res.SpeedKmh = d / elapsed * 3.6
		}
	}

	t.last = &sample
	t.speedKmh = res.SpeedKmh
	return res
}

// TotalDistance returns the lifetime accepted distance in meters.
func (t *Tracker) TotalDistance() float64 {
	return t.total
}

// SpeedKmh returns the speed computed from the last accepted delta.
func (t *Tracker) SpeedKmh() float64 {
	return t.speedKmh
}

// LastPosition returns the current baseline, if any sample was observed.
func (t *Tracker) LastPosition() (Position, bool) {
	if t.last == nil {
		return Position{}, false
	}
	return *t.last, true
}
