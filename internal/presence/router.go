package presence

import "sync"

// Router fans out presence notifications to connected sessions. Sends
// are non-blocking; a slow consumer drops frames rather than stalling
// the directory.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]chan []byte
}

func NewRouter() *Router {
	return &Router{sessions: map[string]chan []byte{}}
}

// Attach registers a session's outbound channel, replacing (and closing)
// any previous channel under the same identity.
func (r *Router) Attach(id string) chan []byte {
	ch := make(chan []byte, 64)

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[id]; ok {
		close(old)
	}
	r.sessions[id] = ch
	return ch
}

// Detach removes and closes the session's channel, if it is still the
// one registered.
func (r *Router) Detach(id string, ch chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[id]; ok && current == ch {
		delete(r.sessions, id)
		close(current)
	}
}

// Send delivers a frame to one session.
func (r *Router) Send(id string, payload []byte) {
	r.mu.RLock()
	ch, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- payload:
	default:
	}
}

// Broadcast delivers a frame to every session except the originator.
func (r *Router) Broadcast(exclude string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, ch := range r.sessions {
		if id == exclude {
			continue
		}
		select {
		case ch <- payload:
		default:
		}
	}
}
