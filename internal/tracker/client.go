package tracker

import (
	"context"
	"sync"
)

// Client is the per-session state object tying the sampler, the
// auto-path driver and the tracker together. It owns all three; nothing
// here is shared across sessions. While a destination is active, live
// sampler input is dropped so the two sources never race on the tracker.
type Client struct {
	mu      sync.Mutex
	tracker *Tracker
	sampler *Sampler
	path    *AutoPath

	onResult func(Result)

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewClient seeds the session with the lifetime distance loaded from the
// durable store and a starting position.
func NewClient(initialDistanceM float64, start Position, onResult func(Result)) *Client {
	return &Client{
		tracker:  New(initialDistanceM),
		sampler:  NewSampler(start),
		path:     NewAutoPath(start),
		onResult: onResult,
	}
}

// Start begins consuming positions. live may be nil, in which case the
// sampler falls back to simulation after its acquisition timeout.
func (c *Client) Start(ctx context.Context, live <-chan Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.sampler.Run(runCtx, live)
	go c.path.Run(runCtx)
	go c.loop()
}

func (c *Client) loop() {
	defer close(c.done)

	samples := c.sampler.Samples()
	pathed := c.path.Samples()

	for samples != nil || pathed != nil {
		select {
		case sample, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			if c.path.Active() {
				// Auto-path owns the tracker while a destination is set.
				continue
			}
			c.path.Reanchor(sample)
			c.observe(sample)
		case sample, ok := <-pathed:
			if !ok {
				pathed = nil
				continue
			}
			c.observe(sample)
		}
	}
}

func (c *Client) observe(sample Position) {
	res := c.tracker.Observe(sample)
	if c.onResult != nil {
		c.onResult(res)
	}
}

// SetDestination routes the session onto the auto-path driver.
func (c *Client) SetDestination(lat, lng float64) {
	if pos, ok := c.tracker.LastPosition(); ok {
		c.path.Reanchor(pos)
	}
	c.path.SetDestination(lat, lng)
}

// SamplerState exposes the fallback cascade state for UI notices.
func (c *Client) SamplerState() SamplerState {
	return c.sampler.State()
}

// TotalDistance returns the tracker's lifetime distance in meters.
func (c *Client) TotalDistance() float64 {
	return c.tracker.TotalDistance()
}

// Stop cancels all timers and waits for the pipeline to drain.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
