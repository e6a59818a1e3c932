package character

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"backend-wanderqi/internal/db"
	"backend-wanderqi/internal/presence"

	"github.com/google/uuid"
)

var namePrefixes = []string{"Dao", "Huyen", "Thanh", "Tu", "Linh"}
var nameSuffixes = []string{"Tu", "Phong", "Van", "Son", "Hai"}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Create awakens a new character with the given element and a generated
// wanderer name.
func (s *Service) Create(ctx context.Context, element string) (Character, error) {
	if !validElement(element) {
		return Character{}, errors.New("invalid element")
	}

	c := Character{
		ID:         uuid.NewString(),
		Name:       RandomName(),
		Element:    element,
		Realm:      Realms[0],
		LastLat:    21.0285,
		LastLng:    105.8542,
		LastOnline: time.Now(),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO characters (id, name, element, realm, qi, exp, total_distance_m, last_lat, last_lng, last_online)
		VALUES ($1,$2,$3,$4,0,0,0,$5,$6,$7)
		RETURNING created_at
	`, c.ID, c.Name, c.Element, c.Realm, c.LastLat, c.LastLng, c.LastOnline)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return Character{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Character, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(avatar,''), element, realm, qi, exp, total_distance_m, last_lat, last_lng, last_online, created_at
		FROM characters WHERE id=$1
	`, id)

	var c Character
	if err := row.Scan(&c.ID, &c.Name, &c.Avatar, &c.Element, &c.Realm, &c.Qi, &c.Exp, &c.TotalDistanceM, &c.LastLat, &c.LastLng, &c.LastOnline, &c.CreatedAt); err != nil {
		return Character{}, err
	}
	return c, nil
}

// UpdateProgress credits walked distance and earned qi. Negative
// distance deltas are ignored so lifetime distance stays monotonic.
func (s *Service) UpdateProgress(ctx context.Context, id string, distanceDeltaM float64, qiDelta int64) (Character, error) {
	if distanceDeltaM < 0 {
		distanceDeltaM = 0
	}

	row := s.db.QueryRow(ctx, `
		UPDATE characters
		SET total_distance_m = total_distance_m + $2,
		    qi = qi + $3,
		    exp = exp + $3
		WHERE id=$1
		RETURNING id, name, COALESCE(avatar,''), element, realm, qi, exp, total_distance_m, last_lat, last_lng, last_online, created_at
	`, id, distanceDeltaM, qiDelta)

	var c Character
	if err := row.Scan(&c.ID, &c.Name, &c.Avatar, &c.Element, &c.Realm, &c.Qi, &c.Exp, &c.TotalDistanceM, &c.LastLat, &c.LastLng, &c.LastOnline, &c.CreatedAt); err != nil {
		return Character{}, err
	}
	return c, nil
}

// Display implements presence.CharacterStore for session registration.
func (s *Service) Display(ctx context.Context, id string) (presence.Display, error) {
	row := s.db.QueryRow(ctx, `
		SELECT name, COALESCE(avatar,''), element, realm
		FROM characters WHERE id=$1
	`, id)

	var d presence.Display
	if err := row.Scan(&d.Name, &d.Avatar, &d.Element, &d.Realm); err != nil {
		return presence.Display{}, err
	}
	return d, nil
}

// SavePosition implements presence.CharacterStore for disconnect flushes.
func (s *Service) SavePosition(ctx context.Context, id string, lat, lng float64, lastSeen time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE characters
		SET last_lat=$2, last_lng=$3, last_online=$4
		WHERE id=$1
	`, id, lat, lng, lastSeen)
	return err
}

func validElement(element string) bool {
	for _, e := range Elements {
		if e == element {
			return true
		}
	}
	return false
}

// RandomName rolls a wanderer name for a freshly awakened character.
func RandomName() string {
	prefix := namePrefixes[rand.Intn(len(namePrefixes))]
	suffix := nameSuffixes[rand.Intn(len(nameSuffixes))]
	return fmt.Sprintf("%s %s %d", prefix, suffix, rand.Intn(100))
}
