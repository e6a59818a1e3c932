package presence

import "time"

// Status is the movement state of a connected player.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusWalking    Status = "walking"
	StatusMeditating Status = "meditating"
)

// Entry is the authoritative record of one connected player. It exists
// only while the session is connected; disconnection removes it.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Element   string    `json:"element"`
	Realm     string    `json:"realm"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Status    Status    `json:"status"`
	SpeedKmh  float64   `json:"speed_kmh"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Display is the identity-bound character data fetched from the durable
// store when a session registers.
type Display struct {
	Name    string
	Avatar  string
	Element string
	Realm   string
}
