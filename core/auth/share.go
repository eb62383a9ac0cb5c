package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const shareIssuer = "storyreel"

// ErrInvalidShareToken is returned for malformed, forged or expired tokens.
var ErrInvalidShareToken = errors.New("invalid share token")

// ShareClaims identifies the job whose video a link unlocks.
type ShareClaims struct {
	jwt.RegisteredClaims
}

// ShareTokens issues and verifies time limited download links.
type ShareTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewShareTokens creates a signer. An empty secret is rejected.
func NewShareTokens(secret string, ttl time.Duration) (*ShareTokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("share token secret is empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ShareTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns how long issued tokens stay valid.
func (s *ShareTokens) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for jobID.
func (s *ShareTokens) Issue(jobID string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := ShareClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    shareIssuer,
			Subject:   jobID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign share token: %w", err)
	}
	return token, expires, nil
}

// Parse verifies token and returns the job id it was issued for.
func (s *ShareTokens) Parse(token string) (string, error) {
	var claims ShareClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(shareIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidShareToken
	}
	return claims.Subject, nil
}
