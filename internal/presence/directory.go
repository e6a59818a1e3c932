package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrUnknownCharacter means registration named an identity the durable
// store does not have. Fatal for that registration attempt only.
var ErrUnknownCharacter = errors.New("unknown character")

// CharacterStore is the durable-store surface the directory consumes.
type CharacterStore interface {
	// Display fetches identity-bound character data at registration.
	Display(ctx context.Context, id string) (Display, error)
	// SavePosition persists the last known position and last-seen
	// timestamp when a session disconnects.
	SavePosition(ctx context.Context, id string, lat, lng float64, lastSeen time.Time) error
}

// Directory is the authoritative map of connected sessions. Every
// read-modify-write on the entry collection happens under one mutex;
// store and cache calls stay outside it.
type Directory struct {
	mu      sync.Mutex
	entries map[string]*Entry

	store  CharacterStore
	cache  Cache
	router *Router
}

func NewDirectory(store CharacterStore, cache Cache, router *Router) *Directory {
	return &Directory{
		entries: map[string]*Entry{},
		store:   store,
		cache:   cache,
		router:  router,
	}
}

// Router exposes the broadcast router for transports and the ticker.
func (d *Directory) Router() *Router {
	return d.router
}

// Register creates the session's entry, announces it to other sessions
// and returns a snapshot of the others taken strictly after the insert.
// An identity missing from the durable store creates no entry and emits
// no broadcast.
func (d *Directory) Register(ctx context.Context, id string, lat, lng float64) ([]Entry, error) {
	display, err := d.store.Display(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}

	entry := Entry{
		ID:        id,
		Name:      display.Name,
		Avatar:    display.Avatar,
		Element:   display.Element,
		Realm:     display.Realm,
		Lat:       lat,
		Lng:       lng,
		Status:    StatusIdle,
		UpdatedAt: time.Now(),
	}

	d.mu.Lock()
	d.entries[id] = &entry
	others := d.snapshotLocked(id)
	d.mu.Unlock()

	d.mirror(ctx, entry)
	d.announce(id, TypeJoined, entry)
	return others, nil
}

// Move updates the entry's position and marks it walking.
func (d *Directory) Move(ctx context.Context, id string, lat, lng, speedKmh float64) bool {
	d.mu.Lock()
	e, ok := d.entries[id]
	if !ok {
		d.mu.Unlock()
		return false
	}
	e.Lat = lat
	e.Lng = lng
	e.Status = StatusWalking
	e.SpeedKmh = speedKmh
	e.UpdatedAt = time.Now()
	entry := *e
	d.mu.Unlock()

	d.mirror(ctx, entry)
	d.announce(id, TypeMoved, entry)
	return true
}

// SetMeditation toggles the entry between idle and meditating without
// touching its position. The notification reuses the moved shape: both
// mean "this entry changed".
func (d *Directory) SetMeditation(ctx context.Context, id string, active bool) bool {
	d.mu.Lock()
	e, ok := d.entries[id]
	if !ok {
		d.mu.Unlock()
		return false
	}
	if active {
		e.Status = StatusMeditating
	} else {
		e.Status = StatusIdle
	}
	e.UpdatedAt = time.Now()
	entry := *e
	d.mu.Unlock()

	d.mirror(ctx, entry)
	d.announce(id, TypeMoved, entry)
	return true
}

// Disconnect flushes the entry to the durable store (best effort),
// drops the cache mirror and removes the entry. Exactly one left
// notification goes to the remaining sessions.
func (d *Directory) Disconnect(ctx context.Context, id string) {
	d.mu.Lock()
	e, ok := d.entries[id]
	if ok {
		delete(d.entries, id)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	if err := d.store.SavePosition(ctx, id, e.Lat, e.Lng, e.UpdatedAt); err != nil {
		log.Printf("presence: save position for %s failed: %v", id, err)
	}
	if d.cache != nil {
		if err := d.cache.Delete(ctx, id); err != nil {
			log.Printf("presence: cache delete for %s failed: %v", id, err)
		}
	}
	d.announce(id, TypeLeft, LeftPayload{ID: id})
}

// Snapshot returns a copy of every entry.
func (d *Directory) Snapshot() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked("")
}

// Meditating returns a copy of every entry currently meditating.
func (d *Directory) Meditating() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Entry
	for _, e := range d.entries {
		if e.Status == StatusMeditating {
			out = append(out, *e)
		}
	}
	return out
}

func (d *Directory) snapshotLocked(exclude string) []Entry {
	out := make([]Entry, 0, len(d.entries))
	for id, e := range d.entries {
		if id == exclude {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func (d *Directory) mirror(ctx context.Context, entry Entry) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Put(ctx, entry); err != nil {
		log.Printf("presence: cache put for %s failed: %v", entry.ID, err)
	}
}

func (d *Directory) announce(originator, msgType string, payload any) {
	frame, err := Encode(msgType, payload)
	if err != nil {
		log.Printf("presence: encode %s failed: %v", msgType, err)
		return
	}
	d.router.Broadcast(originator, frame)
}
