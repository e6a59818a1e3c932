package presence

import (
	"context"
	"log"
	"time"
)

// Ticker grants passive qi to meditating sessions on a fixed interval,
// independent of any session's own activity. The scan snapshots entries
// under the directory lock and grants outside it; a session leaving
// mid-tick may or may not receive that tick's grant.
type Ticker struct {
	directory *Directory
	interval  time.Duration
	amount    int
}

func NewTicker(d *Directory, interval time.Duration, amount int) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	if amount <= 0 {
		amount = 1
	}
	return &Ticker{directory: d, interval: interval, amount: amount}
}

// Run ticks until the context is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick grants the configured amount to each meditating session: once
// addressed to the owner, plus a visibility copy to the other sessions
// so they can render the gain.
func (t *Ticker) tick() {
	router := t.directory.Router()
	for _, e := range t.directory.Meditating() {
		frame, err := Encode(TypeQiGained, QiGainedPayload{ID: e.ID, Amount: t.amount})
		if err != nil {
			log.Printf("presence: encode qi grant failed: %v", err)
			continue
		}
		router.Send(e.ID, frame)
		router.Broadcast(e.ID, frame)
	}
}
