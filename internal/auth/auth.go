// Package auth issues and checks the room-scoped tokens callers present.
// A token names one room and one user id; whether that user is the host or a
// participant is decided against room state, not the token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

type Claims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

type Identity struct {
	Room   string
	UserID string
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(room, userID string) (string, error) {
	now := i.now()
	claims := Claims{
		Room: room,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Verify(tokenString string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", game.ErrUnauthorized)
	}
	if claims.Room == "" || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: incomplete claims", game.ErrUnauthorized)
	}
	return Identity{Room: claims.Room, UserID: claims.Subject}, nil
}
