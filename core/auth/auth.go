// Package auth guards the HTTP API and signs share links.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashAPIKey generates a bcrypt hash of key for the API_KEY_HASH setting.
func HashAPIKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("api key is empty")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(bytes), nil
}

// CheckAPIKey compares a presented key with a bcrypt hash.
func CheckAPIKey(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// KeyChecker verifies API keys against a single bcrypt hash. bcrypt is slow,
// so the last accepted key is remembered.
type KeyChecker struct {
	hash     string
	mu       sync.RWMutex
	accepted []byte
}

// NewKeyChecker returns nil when hash is empty, which disables the check.
func NewKeyChecker(hash string) *KeyChecker {
	if hash == "" {
		return nil
	}
	return &KeyChecker{hash: hash}
}

// Allow reports whether key is valid. A nil checker allows everything.
func (k *KeyChecker) Allow(key string) bool {
	if k == nil {
		return true
	}
	k.mu.RLock()
	accepted := k.accepted
	k.mu.RUnlock()
	if accepted != nil && subtle.ConstantTimeCompare(accepted, []byte(key)) == 1 {
		return true
	}
	if !CheckAPIKey(key, k.hash) {
		return false
	}
	k.mu.Lock()
	k.accepted = []byte(key)
	k.mu.Unlock()
	return true
}
