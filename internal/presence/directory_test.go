package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type savedPosition struct {
	id       string
	lat, lng float64
	lastSeen time.Time
}

type stubStore struct {
	mu       sync.Mutex
	displays map[string]Display
	saved    []savedPosition
	saveErr  error
}

func newStubStore(ids ...string) *stubStore {
	displays := map[string]Display{}
	for _, id := range ids {
		displays[id] = Display{Name: "Wanderer " + id, Element: "fire", Realm: "qi_refining"}
	}
	return &stubStore{displays: displays}
}

func (s *stubStore) Display(_ context.Context, id string) (Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.displays[id]
	if !ok {
		return Display{}, errors.New("no such character")
	}
	return d, nil
}

func (s *stubStore) SavePosition(_ context.Context, id string, lat, lng float64, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedPosition{id: id, lat: lat, lng: lng, lastSeen: lastSeen})
	return s.saveErr
}

func (s *stubStore) flushed() []savedPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedPosition(nil), s.saved...)
}

type failingCache struct{}

func (failingCache) Put(context.Context, Entry) error     { return errors.New("cache down") }
func (failingCache) Delete(context.Context, string) error { return errors.New("cache down") }

func drain(ch chan []byte) []Envelope {
	var out []Envelope
	for {
		select {
		case frame := <-ch:
			var env Envelope
			if err := json.Unmarshal(frame, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func TestRegisterAnnouncesAndSnapshots(t *testing.T) {
	store := newStubStore("a", "b")
	d := NewDirectory(store, nil, NewRouter())

	chA := d.Router().Attach("a")
	others, err := d.Register(context.Background(), "a", 21.0, 105.8)
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("first session should see nobody, got %d", len(others))
	}

	chB := d.Router().Attach("b")
	others, err = d.Register(context.Background(), "b", 21.1, 105.9)
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	if len(others) != 1 || others[0].ID != "a" {
		t.Fatalf("expected snapshot containing a, got %+v", others)
	}

	msgs := drain(chA)
	if len(msgs) != 1 || msgs[0].Type != TypeJoined {
		t.Fatalf("expected one joined frame for a, got %+v", msgs)
	}
	var joined Entry
	if err := json.Unmarshal(msgs[0].Data, &joined); err != nil || joined.ID != "b" {
		t.Fatalf("unexpected joined entry: %s", msgs[0].Data)
	}
	if joined.Status != StatusIdle {
		t.Fatalf("fresh entry should be idle, got %s", joined.Status)
	}

	if msgs := drain(chB); len(msgs) != 0 {
		t.Fatalf("originator must not receive its own join, got %+v", msgs)
	}
}

func TestRegisterUnknownCharacter(t *testing.T) {
	store := newStubStore("a")
	d := NewDirectory(store, nil, NewRouter())

	chA := d.Router().Attach("a")
	if _, err := d.Register(context.Background(), "a", 21.0, 105.8); err != nil {
		t.Fatalf("register a: %v", err)
	}
	drain(chA)

	if _, err := d.Register(context.Background(), "ghost", 0, 0); !errors.Is(err, ErrUnknownCharacter) {
		t.Fatalf("expected ErrUnknownCharacter, got %v", err)
	}
	if len(d.Snapshot()) != 1 {
		t.Fatalf("failed registration must not create an entry")
	}
	if msgs := drain(chA); len(msgs) != 0 {
		t.Fatalf("failed registration must not broadcast, got %+v", msgs)
	}
}

func TestMoveUpdatesAndBroadcasts(t *testing.T) {
	store := newStubStore("a", "b")
	d := NewDirectory(store, nil, NewRouter())

	chA := d.Router().Attach("a")
	chB := d.Router().Attach("b")
	_, _ = d.Register(context.Background(), "a", 21.0, 105.8)
	_, _ = d.Register(context.Background(), "b", 21.1, 105.9)
	drain(chA)
	drain(chB)

	if !d.Move(context.Background(), "a", 21.05, 105.85, 4.2) {
		t.Fatalf("move should succeed for a registered session")
	}

	msgs := drain(chB)
	if len(msgs) != 1 || msgs[0].Type != TypeMoved {
		t.Fatalf("expected one moved frame for b, got %+v", msgs)
	}
	var moved Entry
	if err := json.Unmarshal(msgs[0].Data, &moved); err != nil {
		t.Fatalf("unmarshal moved: %v", err)
	}
	if moved.ID != "a" || moved.Status != StatusWalking || moved.SpeedKmh != 4.2 {
		t.Fatalf("unexpected moved entry: %+v", moved)
	}
	if msgs := drain(chA); len(msgs) != 0 {
		t.Fatalf("mover must not receive its own move")
	}

	if d.Move(context.Background(), "ghost", 0, 0, 0) {
		t.Fatalf("move for unregistered session must report false")
	}
}

func TestSetMeditationTogglesStatus(t *testing.T) {
	store := newStubStore("a", "b")
	d := NewDirectory(store, nil, NewRouter())

	chB := d.Router().Attach("b")
	_, _ = d.Register(context.Background(), "a", 21.0, 105.8)
	_, _ = d.Register(context.Background(), "b", 21.1, 105.9)
	drain(chB)

	if !d.SetMeditation(context.Background(), "a", true) {
		t.Fatalf("meditation toggle should succeed")
	}
	meditating := d.Meditating()
	if len(meditating) != 1 || meditating[0].ID != "a" {
		t.Fatalf("expected a meditating, got %+v", meditating)
	}

	msgs := drain(chB)
	if len(msgs) != 1 || msgs[0].Type != TypeMoved {
		t.Fatalf("expected one status frame for b, got %+v", msgs)
	}
	var entry Entry
	if err := json.Unmarshal(msgs[0].Data, &entry); err != nil || entry.Status != StatusMeditating {
		t.Fatalf("unexpected status frame: %s", msgs[0].Data)
	}

	d.SetMeditation(context.Background(), "a", false)
	if len(d.Meditating()) != 0 {
		t.Fatalf("expected nobody meditating after toggle off")
	}
}

func TestDisconnectFlushesAndAnnouncesOnce(t *testing.T) {
	store := newStubStore("a", "b")
	d := NewDirectory(store, nil, NewRouter())

	chB := d.Router().Attach("b")
	_, _ = d.Register(context.Background(), "a", 21.0, 105.8)
	_, _ = d.Register(context.Background(), "b", 21.1, 105.9)
	drain(chB)

	d.Disconnect(context.Background(), "a")
	d.Disconnect(context.Background(), "a") // second call is a no-op

	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one position flush, got %d", len(store.saved))
	}
	if store.saved[0].id != "a" || store.saved[0].lat != 21.0 {
		t.Fatalf("unexpected flush: %+v", store.saved[0])
	}

	msgs := drain(chB)
	if len(msgs) != 1 || msgs[0].Type != TypeLeft {
		t.Fatalf("expected exactly one left frame, got %+v", msgs)
	}
	var left LeftPayload
	if err := json.Unmarshal(msgs[0].Data, &left); err != nil || left.ID != "a" {
		t.Fatalf("unexpected left payload: %s", msgs[0].Data)
	}

	for _, e := range d.Snapshot() {
		if e.ID == "a" {
			t.Fatalf("disconnected entry still present")
		}
	}
}

func TestDisconnectSurvivesStoreError(t *testing.T) {
	store := newStubStore("a")
	store.saveErr = errors.New("db down")
	d := NewDirectory(store, nil, NewRouter())

	_, _ = d.Register(context.Background(), "a", 21.0, 105.8)
	d.Disconnect(context.Background(), "a")

	if len(d.Snapshot()) != 0 {
		t.Fatalf("entry must be removed even when the flush fails")
	}
}

func TestCacheFailureIsNonFatal(t *testing.T) {
	store := newStubStore("a")
	d := NewDirectory(store, failingCache{}, NewRouter())

	if _, err := d.Register(context.Background(), "a", 21.0, 105.8); err != nil {
		t.Fatalf("register must succeed despite cache failure: %v", err)
	}
	if !d.Move(context.Background(), "a", 21.1, 105.9, 3.0) {
		t.Fatalf("move must succeed despite cache failure")
	}
	d.Disconnect(context.Background(), "a")
	if len(d.Snapshot()) != 0 {
		t.Fatalf("disconnect must succeed despite cache failure")
	}
}

func TestRegisterMirrorsToCache(t *testing.T) {
	mirror := &recordingCache{}
	store := newStubStore("a")
	d := NewDirectory(store, mirror, NewRouter())

	_, _ = d.Register(context.Background(), "a", 21.0, 105.8)
	if len(mirror.puts) != 1 || mirror.puts[0].ID != "a" {
		t.Fatalf("expected mirrored entry, got %+v", mirror.puts)
	}

	d.Disconnect(context.Background(), "a")
	if len(mirror.deletes) != 1 || mirror.deletes[0] != "a" {
		t.Fatalf("expected mirror cleanup, got %+v", mirror.deletes)
	}
}

type recordingCache struct {
	mu      sync.Mutex
	puts    []Entry
	deletes []string
}

func (c *recordingCache) Put(_ context.Context, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, entry)
	return nil
}

func (c *recordingCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, id)
	return nil
}
