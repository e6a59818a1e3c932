package presence

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// session is the per-connection context: one socket, one identity, and
// the directory it talks to. Built once per connection and handed to
// every message handler.
type session struct {
	directory *Directory
	id        string
	send      chan []byte
}

func RegisterRoutes(r fiber.Router, d *Directory) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		sess := &session{directory: d}
		defer sess.teardown()

		done := make(chan struct{})
		pumpDone := make(chan struct{})
		close(pumpDone) // no pump until the session registers

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			msg, err := DecodeInbound(raw)
			if err != nil {
				log.Printf("presence: dropping frame: %v", err)
				continue
			}

			switch m := msg.(type) {
			case RegisterPayload:
				if sess.id != "" {
					continue
				}
				pumpDone = sess.register(c, m, done)
			case MovePayload:
				if sess.id == "" {
					continue
				}
				sess.directory.Move(context.Background(), sess.id, m.Lat, m.Lng, m.SpeedKmh)
			case MeditatePayload:
				if sess.id == "" {
					continue
				}
				sess.directory.SetMeditation(context.Background(), sess.id, m.Active)
			}
		}

		close(done)
		<-pumpDone
	}))
}

// register attaches the session to the router before inserting the
// directory entry so join notifications cannot slip past it, then
// replies with the post-insert snapshot of the other sessions.
func (s *session) register(c *websocket.Conn, m RegisterPayload, done chan struct{}) chan struct{} {
	router := s.directory.Router()
	send := router.Attach(m.CharacterID)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for {
			select {
			case frame, ok := <-send:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	others, err := s.directory.Register(context.Background(), m.CharacterID, m.Lat, m.Lng)
	if err != nil {
		log.Printf("presence: register %s failed: %v", m.CharacterID, err)
		if frame, encErr := Encode(TypeError, ErrorPayload{Message: err.Error()}); encErr == nil {
			router.Send(m.CharacterID, frame)
		}
		router.Detach(m.CharacterID, send)
		return pumpDone
	}

	s.id = m.CharacterID
	s.send = send

	if frame, err := Encode(TypeNearby, others); err == nil {
		router.Send(m.CharacterID, frame)
	}
	return pumpDone
}

// teardown runs on socket closure or explicit client close. Durable
// flush happens inside Disconnect and does not block on completion
// beyond its own call.
func (s *session) teardown() {
	if s.id == "" {
		return
	}
	s.directory.Disconnect(context.Background(), s.id)
	s.directory.Router().Detach(s.id, s.send)
}
