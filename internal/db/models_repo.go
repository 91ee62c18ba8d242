package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/genmedia-bff/bff/internal/models"
)

// ModelRepository is the C4 metadata store adapter for the models table.
// Mirrors ImageRepository's CAS shape exactly (spec.md §4.4 applies
// identically to both tables); kept as a separate type rather than a
// generic so each table's SQL stays simple to read, matching the teacher's
// one-repository-per-table convention.
type ModelRepository struct {
	pool *Pool
}

// NewModelRepository constructs a ModelRepository.
func NewModelRepository(pool *Pool) *ModelRepository {
	return &ModelRepository{pool: pool}
}

const modelColumns = `id, client_task_id, user_id, source_image_id, prompt, style, asset_url, status, provider_job_id, provider, metadata_json, created_at`

func scanModelRow(row pgx.Row) (*models.ModelRow, error) {
	var r models.ModelRow
	var metadataBytes []byte
	if err := row.Scan(
		&r.ID, &r.ClientTaskID, &r.UserID, &r.SourceImageID, &r.Prompt, &r.Style,
		&r.AssetURL, &r.Status, &r.ProviderJobID, &r.Provider, &metadataBytes, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &r.MetadataJSON); err != nil {
			return nil, fmt.Errorf("decode model metadata: %w", err)
		}
	}
	return &r, nil
}

// CreatePending inserts a new models row with status=pending, enforcing
// (client_task_id) uniqueness; on conflict returns the existing row.
func (r *ModelRepository) CreatePending(ctx context.Context, row *models.ModelRow) (*models.ModelRow, bool, error) {
	metadataBytes, err := json.Marshal(row.MetadataJSON)
	if err != nil {
		return nil, false, fmt.Errorf("encode model metadata: %w", err)
	}

	inserted := r.pool.QueryRow(ctx, `
		INSERT INTO models (client_task_id, user_id, source_image_id, prompt, style, status, provider, metadata_json)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
		ON CONFLICT (client_task_id) DO NOTHING
		RETURNING `+modelColumns,
		row.ClientTaskID, row.UserID, row.SourceImageID, row.Prompt, row.Style, row.Provider, metadataBytes,
	)

	created, err := scanModelRow(inserted)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create pending model row: %w", err)
	}

	existing, err := r.GetByClientTaskID(ctx, row.ClientTaskID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing model row after conflict: %w", err)
	}
	return existing, false, nil
}

// SetProcessing transitions a pending row to processing; false means the
// row was not pending (duplicate delivery).
func (r *ModelRepository) SetProcessing(ctx context.Context, rowID string, providerJobID *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE models SET status = 'processing', provider_job_id = COALESCE($2, provider_job_id)
		WHERE id = $1 AND status = 'pending'`,
		rowID, providerJobID,
	)
	if err != nil {
		return false, fmt.Errorf("set processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetProviderJobID records the provider's handle for an async job already in
// flight, guarding on status='processing' rather than SetProcessing's
// pending->processing transition (see ImageRepository.SetProviderJobID).
func (r *ModelRepository) SetProviderJobID(ctx context.Context, rowID, providerJobID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE models SET provider_job_id = $2
		WHERE id = $1 AND status = 'processing'`,
		rowID, providerJobID,
	)
	if err != nil {
		return fmt.Errorf("set provider job id: %w", err)
	}
	return nil
}

// SetComplete performs the CAS completion update from status=processing.
func (r *ModelRepository) SetComplete(ctx context.Context, rowID, assetURL string) (*models.ModelRow, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE models SET status = 'complete', asset_url = $2
		WHERE id = $1 AND status = 'processing'`,
		rowID, assetURL,
	)
	if err != nil {
		return nil, false, fmt.Errorf("set complete: %w", err)
	}
	won := tag.RowsAffected() == 1

	row, err := r.Get(ctx, rowID)
	if err != nil {
		return nil, false, fmt.Errorf("reload row after set complete: %w", err)
	}
	return row, won, nil
}

// SetFailed transitions a row to failed with a short, sanitized error
// string.
func (r *ModelRepository) SetFailed(ctx context.Context, rowID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE models SET status = 'failed', metadata_json = metadata_json || jsonb_build_object('error', $2::text)
		WHERE id = $1 AND status IN ('pending', 'processing')`,
		rowID, errMsg,
	)
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Get reads a row by its internal id.
func (r *ModelRepository) Get(ctx context.Context, rowID string) (*models.ModelRow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE id = $1`, rowID)
	out, err := scanModelRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model row: %w", err)
	}
	return out, nil
}

// GetByClientTaskID reads a row by its client-supplied task id.
func (r *ModelRepository) GetByClientTaskID(ctx context.Context, clientTaskID string) (*models.ModelRow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE client_task_id = $1`, clientTaskID)
	out, err := scanModelRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model row by client task id: %w", err)
	}
	return out, nil
}
