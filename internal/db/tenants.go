package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/genmedia-bff/bff/internal/models"
)

// ErrNotFound is returned by repository lookups that find no matching row.
var ErrNotFound = errors.New("not found")

// TenantRepository is the C1 storage adapter: the tenant and API-key
// registry. Modeled on the teacher's column-list + INSERT...RETURNING
// repository shape (internal/db/agents.go in the teacher tree).
type TenantRepository struct {
	pool *Pool
}

// NewTenantRepository constructs a TenantRepository.
func NewTenantRepository(pool *Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

const tenantColumns = `id, type, identifier, display_name, active, metadata, created_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	var metadataBytes []byte
	if err := row.Scan(&t.ID, &t.Type, &t.Identifier, &t.DisplayName, &t.Active, &metadataBytes, &t.CreatedAt); err != nil {
		return nil, err
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode tenant metadata: %w", err)
		}
	}
	return &t, nil
}

// GetByIdentifier returns the tenant with the given identifier, regardless
// of active status (registration needs to see deactivated tenants too).
func (r *TenantRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE identifier = $1`, identifier)
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by identifier: %w", err)
	}
	return t, nil
}

// GetByID returns the tenant with the given id.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return t, nil
}

// Create inserts a new tenant.
func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) (*models.Tenant, error) {
	metadataBytes, err := json.Marshal(t.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode tenant metadata: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (type, identifier, display_name, active, metadata)
		VALUES ($1, $2, $3, true, $4)
		RETURNING `+tenantColumns,
		t.Type, t.Identifier, t.DisplayName, metadataBytes,
	)
	created, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return created, nil
}

// CreateAPIKey inserts a new, active API key for tenantID. It does not
// deactivate any prior key — callers that need the "one active key" rule
// must call DeactivateActiveKeys first within the same transaction (see
// Registry.Register in internal/auth).
func (r *TenantRepository) CreateAPIKey(ctx context.Context, tenantID, keyHash string) (*models.ApiKey, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (tenant_id, key_hash, active)
		VALUES ($1, $2, true)
		RETURNING id, key_hash, tenant_id, active, created_at`,
		tenantID, keyHash,
	)
	var k models.ApiKey
	if err := row.Scan(&k.ID, &k.KeyHash, &k.TenantID, &k.Active, &k.CreatedAt); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return &k, nil
}

// DeactivateActiveKeys deactivates every currently-active key for tenantID.
// Used as a CAS-style guard so a concurrent re-registration cannot leave two
// active keys (SPEC_FULL.md §4, "Admin-style tenant deactivation").
func (r *TenantRepository) DeactivateActiveKeys(ctx context.Context, tenantID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET active = false WHERE tenant_id = $1 AND active = true`, tenantID)
	if err != nil {
		return fmt.Errorf("deactivate active keys: %w", err)
	}
	return nil
}

// ActiveKeyHashes returns every active key's hash, newest first. Lookup by
// API key requires a hash-then-compare scan because bcrypt hashes are salted
// and cannot be looked up by equality (spec.md §4.1).
func (r *TenantRepository) ActiveKeyHashes(ctx context.Context, limit int) ([]ActiveKeyRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, key_hash, tenant_id FROM api_keys
		WHERE active = true
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active api keys: %w", err)
	}
	defer rows.Close()

	var out []ActiveKeyRow
	for rows.Next() {
		var k ActiveKeyRow
		if err := rows.Scan(&k.ID, &k.Hash, &k.TenantID); err != nil {
			return nil, fmt.Errorf("scan active api key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ActiveKeyRow is one row of the active-key scan used by Authenticate.
type ActiveKeyRow struct {
	ID       string
	Hash     string
	TenantID string
}
