package handlers

import (
	"net/http"

	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/providers"
)

// baseModelRequest is the set of fields every 3D-model endpoint accepts.
type baseModelRequest struct {
	TaskID string                 `json:"task_id"`
	Provider string               `json:"provider"`
	Prompt   string               `json:"prompt"`
	Style    string               `json:"style"`
	UserID   string               `json:"user_id"`
	Params   map[string]interface{} `json:"params"`
}

// TextToModel handles POST /generate/text-to-model.
func (h *Handler) TextToModel(w http.ResponseWriter, r *http.Request) {
	var req baseModelRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.Prompt == "" {
		writeValidationErr(w, newValidationError("prompt is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpTextToModel, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpTextToModel) {
		return
	}

	h.dispatchModel(r.Context(), w, modelSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		Prompt:       optionalString(req.Prompt),
		Style:        optionalString(req.Style),
		Provider:     provider,
		Operation:    providers.OpTextToModel,
		Family:       config.Family3DOther,
		Extra:        req.Params,
		RawBody:      body,
	})
}

// imageToModelRequest carries the multi-view positional source image list
// (spec.md §4.5 "Multi-view constraint").
type imageToModelRequest struct {
	baseModelRequest
	InputImageAssetURLs []string `json:"input_image_asset_urls"`
}

// ImageToModel handles POST /generate/image-to-model.
func (h *Handler) ImageToModel(w http.ResponseWriter, r *http.Request) {
	var req imageToModelRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	ordered, verr := validateMultiViewURLs(req.InputImageAssetURLs)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpImageToModel, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpImageToModel) {
		return
	}

	h.dispatchModel(r.Context(), w, modelSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		Prompt:       optionalString(req.Prompt),
		Style:        optionalString(req.Style),
		Provider:     provider,
		Operation:    providers.OpImageToModel,
		Family:       config.Family3DOther,
		InputURLs:    ordered,
		Extra:        req.Params,
		RawBody:      body,
	})
}

// refineModelRequest requires a source model rather than a source image.
type refineModelRequest struct {
	baseModelRequest
	InputModelAssetURL string `json:"input_model_asset_url"`
}

// RefineModel handles POST /generate/refine-model.
func (h *Handler) RefineModel(w http.ResponseWriter, r *http.Request) {
	var req refineModelRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputModelAssetURL == "" {
		writeValidationErr(w, newValidationError("input_model_asset_url is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpRefineModel, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpRefineModel) {
		return
	}

	h.dispatchModel(r.Context(), w, modelSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		Prompt:       optionalString(req.Prompt),
		Provider:     provider,
		Operation:    providers.OpRefineModel,
		Family:       config.Family3DRefine,
		InputURLs:    []string{req.InputModelAssetURL},
		Extra:        req.Params,
		RawBody:      body,
	})
}

// validateMultiViewURLs enforces the positional [front, left, back, right]
// prefix rule on the client-supplied URL list (spec.md §4.5, §8 "Multi-view
// invalid order"), reusing providers.ValidateMultiView/OrderedViews by
// treating each present URL as a non-empty placeholder byte slice.
func validateMultiViewURLs(urls []string) ([]string, *validationError) {
	if len(urls) == 0 || len(urls) > 4 {
		return nil, newValidationError("input_image_asset_urls must contain 1 to 4 entries", nil)
	}

	views := make(map[providers.View][]byte, len(urls))
	order := []providers.View{providers.ViewFront, providers.ViewLeft, providers.ViewBack, providers.ViewRight}
	for i, url := range urls {
		if i >= len(order) || url == "" {
			continue
		}
		views[order[i]] = []byte(url)
	}

	if err := providers.ValidateMultiView(views); err != nil {
		return nil, newValidationError("front view required and positions must be contiguous", nil)
	}

	orderedBytes := providers.OrderedViews(views)
	ordered := make([]string, len(orderedBytes))
	for i, b := range orderedBytes {
		ordered[i] = string(b)
	}
	return ordered, nil
}
