// Package handlers implements the C7 dispatch layer and C8 status
// endpoint: one HTTP handler per /generate/* operation plus the unified
// GET /tasks/{internal_task_id}/status endpoint (spec.md §4.6-4.8, §6).
package handlers

import (
	"context"
	"log/slog"

	"github.com/genmedia-bff/bff/internal/auth"
	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/credits"
	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/providers"
)

// ImageStore is the slice of ImageRepository the dispatch/status handlers
// need (satisfied by *db.ImageRepository).
type ImageStore interface {
	CreatePending(ctx context.Context, row *models.ImageRow) (*models.ImageRow, bool, error)
	Get(ctx context.Context, rowID string) (*models.ImageRow, error)
	GetByClientTaskID(ctx context.Context, clientTaskID string) (*models.ImageRow, error)
	SetComplete(ctx context.Context, rowID, assetURL string) (*models.ImageRow, bool, error)
	SetFailed(ctx context.Context, rowID, errMsg string) error
}

// ModelStore is the model-row equivalent of ImageStore (satisfied by
// *db.ModelRepository).
type ModelStore interface {
	CreatePending(ctx context.Context, row *models.ModelRow) (*models.ModelRow, bool, error)
	Get(ctx context.Context, rowID string) (*models.ModelRow, error)
	GetByClientTaskID(ctx context.Context, clientTaskID string) (*models.ModelRow, error)
	SetComplete(ctx context.Context, rowID, assetURL string) (*models.ModelRow, bool, error)
	SetFailed(ctx context.Context, rowID, errMsg string) error
}

// Enqueuer is the slice of *queue.Broker the dispatch handlers need.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, job interface{}) error
}

// Fetcher downloads a URL's bytes (satisfied by *objectstore.Store.Fetch).
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Uploader stores produced bytes and returns a URL for them (satisfied by
// *objectstore.Store.Put).
type Uploader func(ctx context.Context, kind, clientTaskID, name string, data []byte, contentType string) (string, error)

// Deps bundles every collaborator the dispatch and status handlers need.
// Built once in cmd/api/main.go and shared across all handler methods,
// matching the teacher's *Handler-struct-with-repo-fields convention
// (backend/internal/api/handlers/approaches_handler.go's ProblemsHandler).
type Deps struct {
	Images   ImageStore
	Models   ModelStore
	Queue    Enqueuer
	Registry *providers.Registry
	Auth     *auth.Registry
	Fetch    Fetcher
	Upload   Uploader
	Credits  credits.Gate
	Config   *config.Config
	Logger   *slog.Logger
}

// Handler holds Deps plus nothing else; every endpoint is a method on it.
type Handler struct {
	Deps
}

// New constructs a Handler.
func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}
