package tracker

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SamplerState tracks where the unified sample stream comes from.
type SamplerState int

const (
	StateAcquiring SamplerState = iota
	StateLive
	StateSimulated
)

const (
	defaultAcquireTimeout = 3 * time.Second
	defaultSimTick        = time.Second

	// ~0.00004 degrees is about 4.5m of latitude; a single simulated
	// step stays under ~5m per axis.
	simStepDegrees = 0.00008
)

// DefaultOrigin anchors simulation when no fix was ever acquired
// (Hoan Kiem Lake, Hanoi).
var DefaultOrigin = Position{Lat: 21.0285, Lng: 105.8542}

// Sampler wraps a live positioning source and falls back to a synthetic
// random walk when no fix arrives in time or the source errors out.
// The fallback is one-directional: once simulation starts, later live
// fixes are dropped for the rest of the session. Real positioning that
// recovers mid-session is deliberately not picked back up; revisit with
// product before changing this.
type Sampler struct {
	mu    sync.Mutex
	state SamplerState
	pos   Position

	acquireTimeout time.Duration
	simTick        time.Duration

	out  chan Position
	fail chan struct{}
	rand *rand.Rand
}

// NewSampler builds a sampler anchored at origin with reference timings.
func NewSampler(origin Position) *Sampler {
	return &Sampler{
		state:          StateAcquiring,
		pos:            origin,
		acquireTimeout: defaultAcquireTimeout,
		simTick:        defaultSimTick,
		out:            make(chan Position, 16),
		fail:           make(chan struct{}, 1),
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Samples is the unified output stream; consumers are origin-agnostic.
func (s *Sampler) Samples() <-chan Position {
	return s.out
}

// State reports the current cascade state.
func (s *Sampler) State() SamplerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fail signals a positioning source error and forces simulation.
func (s *Sampler) Fail() {
	select {
	case s.fail <- struct{}{}:
	default:
	}
}

// Run pumps live fixes into the unified stream until ctx is cancelled,
// switching to the random-walk generator on timeout or source failure.
// The output channel is closed when Run returns.
func (s *Sampler) Run(ctx context.Context, live <-chan Position) {
	defer close(s.out)

	timer := time.NewTimer(s.acquireTimeout)
	defer timer.Stop()

	ticker := time.NewTicker(s.simTick)
	ticker.Stop()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if s.State() == StateAcquiring {
				s.startSimulation(ticker)
			}
		case <-s.fail:
			if s.State() != StateSimulated {
				s.startSimulation(ticker)
			}
		case sample, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			s.mu.Lock()
			if s.state == StateSimulated {
				// One-way cascade: simulation already owns the stream.
				s.mu.Unlock()
				continue
			}
			s.state = StateLive
			s.pos = sample
			s.mu.Unlock()
			s.emit(ctx, sample)
		case <-ticker.C:
			s.emit(ctx, s.walk())
		}
	}
}

func (s *Sampler) startSimulation(ticker *time.Ticker) {
	s.mu.Lock()
	s.state = StateSimulated
	first := s.pos
	first.Timestamp = time.Now()
	s.pos = first
	s.mu.Unlock()

	// Immediate sample so the tracker gets a baseline before the first tick.
	select {
	case s.out <- first:
	default:
	}
	ticker.Reset(s.simTick)
}

func (s *Sampler) walk() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos.Lat += (s.rand.Float64() - 0.5) * simStepDegrees
	s.pos.Lng += (s.rand.Float64() - 0.5) * simStepDegrees
	s.pos.Timestamp = time.Now()
	return s.pos
}

func (s *Sampler) emit(ctx context.Context, sample Position) {
	select {
	case s.out <- sample:
	case <-ctx.Done():
	}
}
