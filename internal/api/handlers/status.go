package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/db"
	"github.com/genmedia-bff/bff/internal/httpresponse"
	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/providers"
)

// kindForFamily maps a route family to the table it reads status from:
// image operations are always sync and land in images; 3D operations are
// always async and land in models (spec.md §2 component table, §4.8).
func kindForFamily(family config.RouteFamily) models.RowKind {
	switch family {
	case config.FamilyImageSync, config.FamilyUpscale, config.FamilyDownscale:
		return models.KindImage
	case config.Family3DOther, config.Family3DRefine:
		return models.KindModel
	default:
		return ""
	}
}

// Status handles GET /tasks/{internal_task_id}/status?service={family}
// (spec.md §4.8). For images the worker has already finalized sync providers;
// for models it may still need to drive the async poll-and-finalize sequence.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	internalTaskID := chi.URLParam(r, "internal_task_id")
	family := config.RouteFamily(r.URL.Query().Get("service"))

	switch kindForFamily(family) {
	case models.KindImage:
		h.statusImage(w, r, internalTaskID, family)
	case models.KindModel:
		h.statusModel(w, r, internalTaskID, family)
	default:
		httpresponse.WriteValidationError(w, "unknown or missing service family", nil)
	}
}

func (h *Handler) statusImage(w http.ResponseWriter, r *http.Request, id string, family config.RouteFamily) {
	row, err := h.Images.Get(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httpresponse.WriteNotFound(w, "task not found")
		return
	}
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to load task", err, h.Logger)
		return
	}
	writeRowStatus(w, row.Status, row.AssetURL, row.MetadataJSON, family)
}

func (h *Handler) statusModel(w http.ResponseWriter, r *http.Request, id string, family config.RouteFamily) {
	ctx := r.Context()
	row, err := h.Models.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		httpresponse.WriteNotFound(w, "task not found")
		return
	}
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to load task", err, h.Logger)
		return
	}

	if row.Status == models.StatusProcessing && row.ProviderJobID != nil {
		h.finalizeAsyncModel(ctx, w, row, family)
		return
	}
	writeRowStatus(w, row.Status, row.AssetURL, row.MetadataJSON, family)
}

// writeRowStatus renders the uniform status payload (spec.md §4.8 table).
// The downscale family is the one place the key name for a completed
// artifact differs (image_url instead of asset_url, spec.md §9 Open
// Questions: preserved bit-exactly, not "fixed").
func writeRowStatus(w http.ResponseWriter, status models.RowStatus, assetURL *string, metadata map[string]interface{}, family config.RouteFamily) {
	switch status {
	case models.StatusPending:
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "pending"})
	case models.StatusProcessing:
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "processing"})
	case models.StatusComplete:
		payload := map[string]string{"status": "complete"}
		key := "asset_url"
		if family == config.FamilyDownscale {
			key = "image_url"
		}
		payload[key] = derefString(assetURL)
		httpresponse.WriteJSON(w, http.StatusOK, payload)
	case models.StatusFailed:
		errMsg, _ := metadata["error"].(string)
		if errMsg == "" {
			errMsg = "task failed"
		}
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": errMsg})
	default:
		httpresponse.WriteInternalError(w, "unknown task status")
	}
}

// finalizeAsyncModel drives one poll of an async provider and, on terminal
// success, performs the download-then-upload-then-CAS-complete sequence
// exactly once per concurrent race (spec.md §4.8, §5).
func (h *Handler) finalizeAsyncModel(ctx context.Context, w http.ResponseWriter, row *models.ModelRow, family config.RouteFamily) {
	operation, _ := row.MetadataJSON["operation"].(string)

	if deadline, ok := h.Config.PollDeadlineByFamily[string(family)]; ok && deadline > 0 {
		if time.Since(row.CreatedAt) > deadline {
			_ = h.Models.SetFailed(ctx, row.ID, "provider_timeout")
			httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": "provider_timeout"})
			return
		}
	}

	adapter, ok := h.Registry.AdapterByID(row.Provider)
	if !ok || adapter.Poll == nil {
		httpresponse.WriteInternalErrorWithLog(w, "no poller configured for provider",
			fmt.Errorf("provider %q operation %q", row.Provider, operation), h.Logger)
		return
	}

	result, err := adapter.Poll(ctx, *row.ProviderJobID)
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "provider poll failed", err, h.Logger)
		return
	}

	switch result.Status {
	case providers.PollInProgress:
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "processing"})
	case providers.PollFailed:
		_ = h.Models.SetFailed(ctx, row.ID, result.FailReason)
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": result.FailReason})
	case providers.PollDone:
		h.finalizeModelArtifact(ctx, w, row, result)
	default:
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "processing"})
	}
}

// finalizeModelArtifact performs the download-then-upload-then-CAS-complete
// sequence (spec.md §4.8 step 3, glossary "Finalize"): the CAS loser never
// overwrites, and both winner and loser report the same asset_url.
func (h *Handler) finalizeModelArtifact(ctx context.Context, w http.ResponseWriter, row *models.ModelRow, result *providers.PollResult) {
	data, err := h.Fetch(ctx, result.ArtifactURL)
	if err != nil {
		_ = h.Models.SetFailed(ctx, row.ID, "input_fetch_failed")
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": "input_fetch_failed"})
		return
	}

	name := "model" + modelExtensionFor(result.ContentType)
	url, err := h.Upload(ctx, "models", row.ClientTaskID, name, data, result.ContentType)
	if err != nil {
		_ = h.Models.SetFailed(ctx, row.ID, "store_put_failed")
		httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": "store_put_failed"})
		return
	}

	final, _, err := h.Models.SetComplete(ctx, row.ID, url)
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to finalize task", err, h.Logger)
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "complete", "asset_url": derefString(final.AssetURL)})
}

func modelExtensionFor(contentType string) string {
	switch contentType {
	case "model/obj", "text/plain":
		return ".obj"
	default:
		return ".glb"
	}
}
