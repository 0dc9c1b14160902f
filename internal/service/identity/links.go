package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeSignup     = "signup"
	purposeMagicLink  = "magiclink"
	purposeOAuthState = "oauth_state"
)

var errInvalidLink = errors.New("link is invalid or has expired")

type linkClaims struct {
	Purpose string `json:"pur"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// linkSigner mints and verifies the HS256 tokens carried by emailed links and OAuth state.
type linkSigner struct {
	secret []byte
	now    func() time.Time
}

func newLinkSigner(secret string) (*linkSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("link secret must be at least 16 bytes")
	}
	return &linkSigner{secret: []byte(secret), now: time.Now}, nil
}

func (s *linkSigner) sign(purpose, email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := linkClaims{
		Purpose: purpose,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign link: %w", err)
	}
	return token, nil
}

func (s *linkSigner) parse(raw string, purposes ...string) (*linkClaims, error) {
	claims := &linkClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errInvalidLink
	}
	for _, p := range purposes {
		if claims.Purpose == p {
			return claims, nil
		}
	}
	return nil, errInvalidLink
}
