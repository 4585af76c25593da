package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateManager issues and verifies the CSRF state round-tripped through an
// OAuth redirect. The state is a signed, time-boxed token rather than a bare
// nonce, so stale or tampered values are rejected by the signature check
// alone, without a store lookup.
type StateManager struct {
	secret []byte
	ttl    time.Duration
}

// NewStateManager creates a new state manager
func NewStateManager(secret string, ttl time.Duration) *StateManager {
	return &StateManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue generates a new signed state value
func (m *StateManager) Issue() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"jti": uuid.New().String(),
		"exp": now.Add(m.ttl).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	state, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}

	return state, nil
}

// Verify checks the signature and expiry of a state value
func (m *StateManager) Verify(state string) error {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil {
		return fmt.Errorf("failed to parse state: %w", err)
	}

	if !token.Valid {
		return fmt.Errorf("invalid state")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid state claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return fmt.Errorf("invalid exp in state")
	}

	if time.Now().Unix() > int64(exp) {
		return fmt.Errorf("state is expired")
	}

	return nil
}
