package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/genmedia-bff/bff/internal/models"
)

func TestGenerateAPIKey_PrefixedByTenantType(t *testing.T) {
	key, err := GenerateAPIKey(models.TenantApp)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "app_"))

	storefrontKey, err := GenerateAPIKey(models.TenantStorefront)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(storefrontKey, "storefront_"))
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateAPIKey(models.TenantDev)
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key generated")
		seen[key] = true
	}
}

func TestHashAndCompareAPIKey(t *testing.T) {
	key, err := GenerateAPIKey(models.TenantCustom)
	require.NoError(t, err)

	hash, err := HashAPIKey(key)
	require.NoError(t, err)
	assert.NotEqual(t, key, hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$"))

	assert.NoError(t, CompareAPIKey(key, hash))
	assert.Error(t, CompareAPIKey("wrong_key", hash))
	assert.Error(t, CompareAPIKey("", hash))
	assert.Error(t, CompareAPIKey(key, ""))
}

func TestBcryptCostFactor(t *testing.T) {
	key, _ := GenerateAPIKey(models.TenantDev)
	hash, err := HashAPIKey(key)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcryptCost, cost)
	assert.GreaterOrEqual(t, cost, 10)
}
