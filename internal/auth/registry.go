package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/genmedia-bff/bff/internal/db"
	"github.com/genmedia-bff/bff/internal/models"
)

// AuthError carries a fixed-wording 401 message (spec.md §4.1: "Missing API
// key" / "Invalid or inactive API key" / registration-secret mismatch).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// NewAuthError constructs an AuthError with the given message.
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// TenantStore is the narrow persistence interface Registry depends on,
// satisfied by *db.TenantRepository; narrowed here the way the teacher's
// handlers depend on XxxRepositoryInterface rather than the concrete repo.
type TenantStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*models.Tenant, error)
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	Create(ctx context.Context, t *models.Tenant) (*models.Tenant, error)
	CreateAPIKey(ctx context.Context, tenantID, keyHash string) (*models.ApiKey, error)
	DeactivateActiveKeys(ctx context.Context, tenantID string) error
	ActiveKeyHashes(ctx context.Context, limit int) ([]db.ActiveKeyRow, error)
}

var storefrontHostPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Registry implements C1: registration and authentication against the
// tenant/api_keys tables.
type Registry struct {
	store              TenantStore
	registrationSecret string
	storefrontSuffix   string
}

// NewRegistry constructs a Registry.
func NewRegistry(store TenantStore, registrationSecret, storefrontSuffix string) *Registry {
	return &Registry{store: store, registrationSecret: registrationSecret, storefrontSuffix: storefrontSuffix}
}

// RegisterResult is the response payload for POST /auth/register.
type RegisterResult struct {
	APIKey     string
	TenantID   string
	TenantType models.TenantType
}

// Register implements spec.md §4.1's register operation, including the
// "re-registering an existing identifier issues a new key and deactivates
// the prior one" rule.
func (reg *Registry) Register(ctx context.Context, verificationSecret string, tenantType models.TenantType, identifier, displayName string, metadata map[string]interface{}) (*RegisterResult, error) {
	if verificationSecret != reg.registrationSecret {
		return nil, NewAuthError("invalid registration secret")
	}

	if !tenantType.Valid() {
		return nil, fmt.Errorf("%w: unknown tenant type %q", ErrValidation, tenantType)
	}

	if tenantType == models.TenantStorefront {
		if err := reg.validateStorefrontIdentifier(identifier); err != nil {
			return nil, err
		}
	}

	tenant, err := reg.store.GetByIdentifier(ctx, identifier)
	if errors.Is(err, db.ErrNotFound) {
		tenant, err = reg.store.Create(ctx, &models.Tenant{
			Type:        tenantType,
			Identifier:  identifier,
			DisplayName: displayName,
			Metadata:    metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("create tenant: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("lookup tenant: %w", err)
	} else {
		// Existing tenant: deactivate its prior key before minting a new one
		// so no window exists with two active keys.
		if err := reg.store.DeactivateActiveKeys(ctx, tenant.ID); err != nil {
			return nil, fmt.Errorf("deactivate prior keys: %w", err)
		}
	}

	plaintext, err := GenerateAPIKey(tenant.Type)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	hash, err := HashAPIKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}
	if _, err := reg.store.CreateAPIKey(ctx, tenant.ID, hash); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}

	return &RegisterResult{APIKey: plaintext, TenantID: tenant.ID, TenantType: tenant.Type}, nil
}

// Authenticate resolves an API key to its owning Tenant, or returns an
// *AuthError with one of the spec's fixed 401 phrasings.
func (reg *Registry) Authenticate(ctx context.Context, apiKey string) (*models.Tenant, error) {
	if apiKey == "" {
		return nil, NewAuthError("Missing API key")
	}

	candidates, err := reg.store.ActiveKeyHashes(ctx, 10000)
	if err != nil {
		return nil, fmt.Errorf("list active keys: %w", err)
	}

	for _, c := range candidates {
		if CompareAPIKey(apiKey, c.Hash) == nil {
			tenant, err := reg.store.GetByID(ctx, c.TenantID)
			if err != nil {
				return nil, fmt.Errorf("load tenant: %w", err)
			}
			if !tenant.Active {
				return nil, NewAuthError("Invalid or inactive API key")
			}
			return tenant, nil
		}
	}

	return nil, NewAuthError("Invalid or inactive API key")
}

func (reg *Registry) validateStorefrontIdentifier(identifier string) error {
	if len(identifier) <= len(reg.storefrontSuffix) || identifier[len(identifier)-len(reg.storefrontSuffix):] != reg.storefrontSuffix {
		return fmt.Errorf("%w: storefront identifier must end with %q", ErrValidation, reg.storefrontSuffix)
	}
	name := identifier[:len(identifier)-len(reg.storefrontSuffix)]
	if name == "" || !storefrontHostPattern.MatchString(name) {
		return fmt.Errorf("%w: storefront identifier has an invalid name segment", ErrValidation)
	}
	return nil
}

// ErrValidation marks a registration request rejected for a bad field value
// (unknown tenant type, malformed storefront identifier) rather than a bad
// registration secret — callers use errors.Is to pick 400 vs 401.
var ErrValidation = errors.New("validation")
