package authenticator

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audience of every service token exchanged between the bot (or any other
// trusted facade) and the erp-server.
const Audience = "ferum-erp"

var ErrInvalidToken = errors.New("invalid service token")

// Authenticator signs and verifies the shared-secret service tokens that
// authenticate machine callers. There is no per-user auth here: the chat id
// inside the request body is the end-user credential proxy, and this layer
// only proves the request came from a trusted process.
type Authenticator struct {
	secret  []byte
	issuer  string
	enabled bool
}

func New(secret, issuer string) *Authenticator {
	return &Authenticator{
		secret:  []byte(secret),
		issuer:  issuer,
		enabled: secret != "",
	}
}

// Enabled reports whether token checks are active. An empty secret disables
// them, which is only acceptable for local development.
func (a *Authenticator) Enabled() bool {
	return a.enabled
}

// Sign issues a short-lived HS256 token for a calling service.
func (a *Authenticator) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}

	return signed, nil
}

// Verify checks signature, expiry and audience and returns the caller name.
func (a *Authenticator) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithAudience(Audience), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
