package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/genmedia-bff/bff/internal/models"
)

// ImageRepository is the C4 metadata store adapter for the images table.
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository constructs an ImageRepository.
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

const imageColumns = `id, client_task_id, user_id, image_type, source_image_id, prompt, style, asset_url, status, provider_job_id, provider, metadata_json, created_at`

func scanImageRow(row pgx.Row) (*models.ImageRow, error) {
	var r models.ImageRow
	var metadataBytes []byte
	if err := row.Scan(
		&r.ID, &r.ClientTaskID, &r.UserID, &r.ImageType, &r.SourceImageID,
		&r.Prompt, &r.Style, &r.AssetURL, &r.Status, &r.ProviderJobID,
		&r.Provider, &metadataBytes, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &r.MetadataJSON); err != nil {
			return nil, fmt.Errorf("decode image metadata: %w", err)
		}
	}
	return &r, nil
}

// CreatePending inserts a new images row with status=pending, enforcing
// (client_task_id) uniqueness. On conflict it returns the existing row
// (spec.md §4.4, §4.7 idempotent resubmission).
func (r *ImageRepository) CreatePending(ctx context.Context, row *models.ImageRow) (*models.ImageRow, bool, error) {
	metadataBytes, err := json.Marshal(row.MetadataJSON)
	if err != nil {
		return nil, false, fmt.Errorf("encode image metadata: %w", err)
	}

	inserted := r.pool.QueryRow(ctx, `
		INSERT INTO images (client_task_id, user_id, image_type, source_image_id, prompt, style, status, provider, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
		ON CONFLICT (client_task_id) DO NOTHING
		RETURNING `+imageColumns,
		row.ClientTaskID, row.UserID, row.ImageType, row.SourceImageID, row.Prompt, row.Style, row.Provider, metadataBytes,
	)

	created, err := scanImageRow(inserted)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create pending image row: %w", err)
	}

	existing, err := r.GetByClientTaskID(ctx, row.ClientTaskID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing image row after conflict: %w", err)
	}
	return existing, false, nil
}

// SetProcessing transitions a pending row to processing. It is a no-op
// (returns false) if the row is not currently pending, which is how the
// worker detects a duplicate delivery (spec.md §4.6 step 1).
func (r *ImageRepository) SetProcessing(ctx context.Context, rowID string, providerJobID *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE images SET status = 'processing', provider_job_id = COALESCE($2, provider_job_id)
		WHERE id = $1 AND status = 'pending'`,
		rowID, providerJobID,
	)
	if err != nil {
		return false, fmt.Errorf("set processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetProviderJobID records the provider's handle for an async job that is
// already in flight. Unlike SetProcessing it does not need to win a
// pending->processing transition — the worker already claimed the row before
// invoking the provider — so this guards on status='processing' instead, the
// only state an async job can be in between invoke and the status-poll
// finalizer (spec.md §4.8).
func (r *ImageRepository) SetProviderJobID(ctx context.Context, rowID, providerJobID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images SET provider_job_id = $2
		WHERE id = $1 AND status = 'processing'`,
		rowID, providerJobID,
	)
	if err != nil {
		return fmt.Errorf("set provider job id: %w", err)
	}
	return nil
}

// SetComplete performs the compare-and-set completion update: it only
// succeeds from status=processing (spec.md §4.4). Returns the row as it
// exists after the call, whether this caller won the CAS or lost it to a
// concurrent finalizer (spec.md §4.8, "the loser reads the winner's URL").
func (r *ImageRepository) SetComplete(ctx context.Context, rowID, assetURL string) (*models.ImageRow, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE images SET status = 'complete', asset_url = $2
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
func (r *ImageRepository) SetFailed(ctx context.Context, rowID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE images SET status = 'failed', metadata_json = metadata_json || jsonb_build_object('error', $2::text)
		WHERE id = $1 AND status IN ('pending', 'processing')`,
		rowID, errMsg,
	)
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Get reads a row by its internal id.
func (r *ImageRepository) Get(ctx context.Context, rowID string) (*models.ImageRow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, rowID)
	out, err := scanImageRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image row: %w", err)
	}
	return out, nil
}

// GetByClientTaskID reads a row by its client-supplied task id.
func (r *ImageRepository) GetByClientTaskID(ctx context.Context, clientTaskID string) (*models.ImageRow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE client_task_id = $1`, clientTaskID)
	out, err := scanImageRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image row by client task id: %w", err)
	}
	return out, nil
}
