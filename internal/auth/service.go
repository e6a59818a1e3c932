package auth

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"backend-wanderqi/internal/character"
	"backend-wanderqi/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	CharacterID string `json:"character_id"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

var hashPasswordFn = bcrypt.GenerateFromPassword
var signTokenFn = (*Service).signToken
var parseWithClaimsFn = jwt.ParseWithClaims

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

// Register creates a credentialed character: the account row and the
// playable character are the same record. Element and name are rolled
// at awakening.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (character.Character, TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return character.Character{}, TokenResponse{}, errors.New("username and password required")
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return character.Character{}, TokenResponse{}, err
	}

	c := character.Character{
		ID:         uuid.NewString(),
		Username:   req.Username,
		Name:       character.RandomName(),
		Element:    character.Elements[rand.Intn(len(character.Elements))],
		Realm:      character.Realms[0],
		LastOnline: time.Now(),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO characters (id, username, password_hash, name, element, realm, qi, exp, total_distance_m, last_online)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,0,$7)
		RETURNING created_at
	`, c.ID, c.Username, string(hash), c.Name, c.Element, c.Realm, c.LastOnline)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return character.Character{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(ctx, c.ID)
	if err != nil {
		return character.Character{}, TokenResponse{}, err
	}
	return c, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (character.Character, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, name, element, realm, qi, exp, total_distance_m, created_at
		FROM characters WHERE username = $1
	`, req.Username)

	var c character.Character
	var passwordHash string
	if err := row.Scan(&c.ID, &c.Username, &passwordHash, &c.Name, &c.Element, &c.Realm, &c.Qi, &c.Exp, &c.TotalDistanceM, &c.CreatedAt); err != nil {
		return character.Character{}, TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		return character.Character{}, TokenResponse{}, errors.New("invalid credentials")
	}

	tokens, err := s.GenerateTokens(ctx, c.ID)
	if err != nil {
		return character.Character{}, TokenResponse{}, err
	}
	return c, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, characterID string) (TokenResponse, error) {
	access, err := signTokenFn(s, characterID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, characterID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, characterID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	characterID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || characterID != claims.CharacterID || time.Now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.CharacterID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.CharacterID, nil
}

func (s *Service) signToken(characterID string, ttl time.Duration) (string, error) {
	claims := Claims{
		CharacterID: characterID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, characterID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, character_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), characterID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT character_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var characterID string
	var expiresAt time.Time
	if err := row.Scan(&characterID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return characterID, expiresAt, nil
}
