package character

import "time"

// Element is the spirit root rolled at awakening.
var Elements = []string{"metal", "wood", "water", "fire", "earth"}

// Realms in ascending cultivation order. New characters start at the first.
var Realms = []string{
	"qi_refining",
	"foundation",
	"core_formation",
	"nascent_soul",
	"spirit_severing",
	"void_refinement",
	"mahayana",
	"tribulation",
}

type Character struct {
	ID             string    `json:"id"`
	Username       string    `json:"username,omitempty"`
	Name           string    `json:"name"`
	Avatar         string    `json:"avatar,omitempty"`
	Element        string    `json:"element"`
	Realm          string    `json:"realm"`
	Qi             int64     `json:"qi"`
	Exp            int64     `json:"exp"`
	TotalDistanceM float64   `json:"total_distance_m"`
	LastLat        float64   `json:"last_lat"`
	LastLng        float64   `json:"last_lng"`
	LastOnline     time.Time `json:"last_online"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateRequest struct {
	Element string `json:"element"`
}

type ProgressRequest struct {
	DistanceDeltaM float64 `json:"distance_delta_m"`
	QiDelta        int64   `json:"qi_delta"`
}
