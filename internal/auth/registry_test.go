package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genmedia-bff/bff/internal/db"
	"github.com/genmedia-bff/bff/internal/models"
)

// fakeTenantStore is an in-memory TenantStore for registry tests, in the
// teacher's mock-the-interface style.
type fakeTenantStore struct {
	byIdentifier map[string]*models.Tenant
	byID         map[string]*models.Tenant
	keys         map[string]db.ActiveKeyRow // hash -> row
	nextID       int
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{
		byIdentifier: map[string]*models.Tenant{},
		byID:         map[string]*models.Tenant{},
		keys:         map[string]db.ActiveKeyRow{},
	}
}

func (f *fakeTenantStore) GetByIdentifier(_ context.Context, identifier string) (*models.Tenant, error) {
	t, ok := f.byIdentifier[identifier]
	if !ok {
		return nil, db.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantStore) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantStore) Create(_ context.Context, t *models.Tenant) (*models.Tenant, error) {
	f.nextID++
	created := *t
	created.ID = string(rune('a' + f.nextID))
	created.Active = true
	f.byIdentifier[created.Identifier] = &created
	f.byID[created.ID] = &created
	return &created, nil
}

func (f *fakeTenantStore) CreateAPIKey(_ context.Context, tenantID, keyHash string) (*models.ApiKey, error) {
	f.keys[keyHash] = db.ActiveKeyRow{ID: keyHash, Hash: keyHash, TenantID: tenantID}
	return &models.ApiKey{TenantID: tenantID, KeyHash: keyHash, Active: true}, nil
}

func (f *fakeTenantStore) DeactivateActiveKeys(_ context.Context, tenantID string) error {
	for h, row := range f.keys {
		if row.TenantID == tenantID {
			delete(f.keys, h)
		}
	}
	return nil
}

func (f *fakeTenantStore) ActiveKeyHashes(_ context.Context, _ int) ([]db.ActiveKeyRow, error) {
	var out []db.ActiveKeyRow
	for _, row := range f.keys {
		out = append(out, row)
	}
	return out, nil
}

func TestRegistry_Register_NewTenant(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	result, err := reg.Register(context.Background(), "secret", models.TenantApp, "my-app", "My App", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.APIKey)
	assert.NotEmpty(t, result.TenantID)
	assert.Equal(t, models.TenantApp, result.TenantType)
}

func TestRegistry_Register_WrongSecret(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	_, err := reg.Register(context.Background(), "wrong", models.TenantApp, "my-app", "My App", nil)
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestRegistry_Register_InvalidTenantType(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	_, err := reg.Register(context.Background(), "secret", models.TenantType("bogus"), "x", "X", nil)
	require.Error(t, err)
}

func TestRegistry_Register_StorefrontIdentifierFormat(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	_, err := reg.Register(context.Background(), "secret", models.TenantStorefront, "not-a-storefront-host", "S", nil)
	require.Error(t, err)

	_, err = reg.Register(context.Background(), "secret", models.TenantStorefront, "acme.storefronts.example", "Acme", nil)
	require.NoError(t, err)
}

func TestRegistry_Register_ExistingIdentifierDeactivatesPriorKey(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	first, err := reg.Register(context.Background(), "secret", models.TenantApp, "my-app", "My App", nil)
	require.NoError(t, err)

	_, err = reg.Authenticate(context.Background(), first.APIKey)
	require.NoError(t, err)

	second, err := reg.Register(context.Background(), "secret", models.TenantApp, "my-app", "My App", nil)
	require.NoError(t, err)
	assert.Equal(t, first.TenantID, second.TenantID)

	_, err = reg.Authenticate(context.Background(), first.APIKey)
	require.Error(t, err, "prior key must no longer authenticate")

	_, err = reg.Authenticate(context.Background(), second.APIKey)
	require.NoError(t, err)
}

func TestRegistry_Authenticate_MissingKey(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	_, err := reg.Authenticate(context.Background(), "")
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Missing API key", authErr.Message)
}

func TestRegistry_Authenticate_UnknownKey(t *testing.T) {
	store := newFakeTenantStore()
	reg := NewRegistry(store, "secret", ".storefronts.example")

	_, err := reg.Authenticate(context.Background(), "app_doesnotexist")
	require.Error(t, err)
}
