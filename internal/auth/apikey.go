// Package auth implements the tenant registry and API-key authentication
// layer (spec.md §4.1, component C1).
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/genmedia-bff/bff/internal/models"
)

const (
	// apiKeyRandomBytes is the number of random bytes used for key
	// generation (256 bits, well over the spec's 128-bit minimum).
	apiKeyRandomBytes = 32

	// bcryptCost is the cost factor for bcrypt hashing of stored keys.
	bcryptCost = 10
)

// keyPrefix returns the tenant-type prefix the spec requires for human
// debuggability (spec.md §4.1: "prefixed by tenant type").
func keyPrefix(t models.TenantType) string {
	return string(t) + "_"
}

// GenerateAPIKey creates a new opaque API key, prefixed by tenant type.
func GenerateAPIKey(tenantType models.TenantType) (string, error) {
	randomBytes := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	return keyPrefix(tenantType) + encoded, nil
}

// HashAPIKey hashes an API key using bcrypt for secure storage.
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// CompareAPIKey compares a plaintext API key with a stored hash.
// Returns nil if they match.
func CompareAPIKey(key, hash string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if hash == "" {
		return fmt.Errorf("hash cannot be empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
