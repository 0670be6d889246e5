package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken wraps every signature, expiry or claim failure.
var ErrInvalidToken = errors.New("invalid token")

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

type JWTConfig struct {
	Issuer         string
	AccessSecret   string
	RefreshSecret  string
	AccessTTLMin   int
	RefreshTTLDays int
}

// Claims carries the user id and role. Kind stops an access token from
// being replayed as a refresh token when both secrets happen to match.
type Claims struct {
	UserID int64     `json:"uid"`
	Role   string    `json:"role"`
	Kind   tokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is what login, register and refresh hand back to the client.
type TokenPair struct {
	Token            string    `json:"token"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type signingKey struct {
	secret []byte
	ttl    time.Duration
}

// JWTManager signs and verifies HS256 tokens for both kinds.
type JWTManager struct {
	issuer string
	keys   map[tokenKind]signingKey
	parser *jwt.Parser
	now    func() time.Time
}

func NewJWTManager(cfg JWTConfig) *JWTManager {
	return &JWTManager{
		issuer: cfg.Issuer,
		keys: map[tokenKind]signingKey{
			kindAccess:  {secret: []byte(cfg.AccessSecret), ttl: time.Duration(cfg.AccessTTLMin) * time.Minute},
			kindRefresh: {secret: []byte(cfg.RefreshSecret), ttl: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour},
		},
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
		now: time.Now,
	}
}

func (m *JWTManager) SignAccess(userID int64, role string) (string, time.Time, error) {
	return m.sign(kindAccess, userID, role)
}

func (m *JWTManager) SignPair(userID int64, role string) (TokenPair, error) {
	var pair TokenPair
	var err error
	if pair.Token, pair.ExpiresAt, err = m.sign(kindAccess, userID, role); err != nil {
		return TokenPair{}, err
	}
	if pair.RefreshToken, pair.RefreshExpiresAt, err = m.sign(kindRefresh, userID, role); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (m *JWTManager) ParseAccess(raw string) (*Claims, error) {
	return m.parse(kindAccess, raw)
}

func (m *JWTManager) ParseRefresh(raw string) (*Claims, error) {
	return m.parse(kindRefresh, raw)
}

func (m *JWTManager) sign(kind tokenKind, userID int64, role string) (string, time.Time, error) {
	key := m.keys[kind]
	now := m.now()
	exp := now.Add(key.ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps two tokens minted in the same second distinct
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

func (m *JWTManager) parse(kind tokenKind, raw string) (*Claims, error) {
	var claims Claims
	_, err := m.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.keys[kind].secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	return &claims, nil
}
