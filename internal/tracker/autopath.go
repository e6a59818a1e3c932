package tracker

import (
	"context"
	"sync"
	"time"

	"backend-wanderqi/internal/shared/geo"
)

const (
	autoPathTick    = 100 * time.Millisecond
	autoPathSpeedMs = 4.5
	arriveWithinM   = 5.0
)

// AutoPath synthesizes samples toward a chosen destination, substituting
// for live positioning. One destination at a time; SetDestination
// retargets, arrival clears it and generation stops.
type AutoPath struct {
	mu      sync.Mutex
	pos     Position
	dest    *Position
	tick    time.Duration
	speedMs float64

	out chan Position
}

// NewAutoPath starts pathing from the given position.
func NewAutoPath(start Position) *AutoPath {
	return &AutoPath{
		pos:     start,
		tick:    autoPathTick,
		speedMs: autoPathSpeedMs,
		out:     make(chan Position, 16),
	}
}

// Samples is the synthetic sample stream.
func (p *AutoPath) Samples() <-chan Position {
	return p.out
}

// Active reports whether a destination is currently set.
func (p *AutoPath) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dest != nil
}

// SetDestination begins, or retargets, synthetic generation.
func (p *AutoPath) SetDestination(lat, lng float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dest = &Position{Lat: lat, Lng: lng}
}

// Reanchor moves the path origin to the latest known position. Called
// before a destination is set so interpolation starts from where the
// player actually is.
func (p *AutoPath) Reanchor(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dest == nil {
		p.pos = pos
	}
}

// Run emits interpolated samples on a fixed tick until ctx is cancelled.
// Ticks with no destination are idle. The output channel is closed when
// Run returns.
func (p *AutoPath) Run(ctx context.Context) {
	defer close(p.out)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sample, ok := p.step(now)
			if !ok {
				continue
			}
			select {
			case p.out <- sample:
			case <-ctx.Done():
				return
			}
		}
	}
}

// step advances one tick toward the destination, clamped so a tick never
// overshoots. Returns false when there is nothing to emit.
func (p *AutoPath) step(now time.Time) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dest == nil {
		return Position{}, false
	}

	remaining := geo.HaversineM(p.pos.Lat, p.pos.Lng, p.dest.Lat, p.dest.Lng)
	if remaining < arriveWithinM {
		p.dest = nil
		return Position{}, false
	}

	stepM := p.speedMs * p.tick.Seconds()
	if stepM > remaining {
		stepM = remaining
	}
	frac := stepM / remaining

	p.pos.Lat += (p.dest.Lat - p.pos.Lat) * frac
	p.pos.Lng += (p.dest.Lng - p.pos.Lng) * frac
	p.pos.Timestamp = now
	return p.pos, true
}
