package handlers

import (
	"net/http"

	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/httpresponse"
	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/providers"
)

// baseImageRequest is the set of fields every sync-image endpoint accepts
// (spec.md §6). Params carries whatever provider-specific extras the
// endpoint doesn't name explicitly; it travels opaquely through the queue
// payload (spec.md §9 "dynamic config object parameters").
type baseImageRequest struct {
	TaskID   string                 `json:"task_id"`
	Provider string                 `json:"provider"`
	Prompt   string                 `json:"prompt"`
	Style    string                 `json:"style"`
	UserID   string                 `json:"user_id"`
	Params   map[string]interface{} `json:"params"`
}

func requireTaskID(w http.ResponseWriter, taskID string) bool {
	if taskID == "" {
		writeValidationErr(w, newValidationError("task_id is required", nil))
		return false
	}
	return true
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TextToImage handles POST /generate/text-to-image.
func (h *Handler) TextToImage(w http.ResponseWriter, r *http.Request) {
	var req baseImageRequest
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
	provider, verr := resolveProvider(h.Registry, providers.OpTextToImage, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpTextToImage) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Prompt:       optionalString(req.Prompt),
		Style:        optionalString(req.Style),
		Provider:     provider,
		Operation:    providers.OpTextToImage,
		Family:       config.FamilyImageSync,
		Extra:        req.Params,
		RawBody:      body,
	})
}

// imageToImageRequest adds the single required source image.
type imageToImageRequest struct {
	baseImageRequest
	InputImageAssetURL string `json:"input_image_asset_url"`
}

// ImageToImage handles POST /generate/image-to-image.
func (h *Handler) ImageToImage(w http.ResponseWriter, r *http.Request) {
	var req imageToImageRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputImageAssetURL == "" {
		writeValidationErr(w, newValidationError("input_image_asset_url is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpImageToImage, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpImageToImage) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Prompt:       optionalString(req.Prompt),
		Style:        optionalString(req.Style),
		Provider:     provider,
		Operation:    providers.OpImageToImage,
		Family:       config.FamilyImageSync,
		InputURLs:    []string{req.InputImageAssetURL},
		Extra:        req.Params,
		RawBody:      body,
	})
}

// sketchToImageRequest carries the sketch source.
type sketchToImageRequest struct {
	baseImageRequest
	InputSketchAssetURL string `json:"input_sketch_asset_url"`
}

// SketchToImage handles POST /generate/sketch-to-image.
func (h *Handler) SketchToImage(w http.ResponseWriter, r *http.Request) {
	var req sketchToImageRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputSketchAssetURL == "" {
		writeValidationErr(w, newValidationError("input_sketch_asset_url is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpSketchToImage, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpSketchToImage) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Prompt:       optionalString(req.Prompt),
		Provider:     provider,
		Operation:    providers.OpSketchToImage,
		Family:       config.FamilyImageSync,
		InputURLs:    []string{req.InputSketchAssetURL},
		Extra:        req.Params,
		RawBody:      body,
	})
}

// imageSourceRequest is the shape shared by remove-background and upscale:
// a single required source image, no prompt required.
type imageSourceRequest struct {
	baseImageRequest
	InputImageAssetURL string `json:"input_image_asset_url"`
}

// RemoveBackground handles POST /generate/remove-background.
func (h *Handler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req imageSourceRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputImageAssetURL == "" {
		writeValidationErr(w, newValidationError("input_image_asset_url is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpRemoveBackground, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpRemoveBackground) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Provider:     provider,
		Operation:    providers.OpRemoveBackground,
		Family:       config.FamilyImageSync,
		InputURLs:    []string{req.InputImageAssetURL},
		Extra:        req.Params,
		RawBody:      body,
	})
}

// Upscale handles POST /generate/upscale.
func (h *Handler) Upscale(w http.ResponseWriter, r *http.Request) {
	var req imageSourceRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputImageAssetURL == "" {
		writeValidationErr(w, newValidationError("input_image_asset_url is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpUpscale, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpUpscale) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Provider:     provider,
		Operation:    providers.OpUpscale,
		Family:       config.FamilyUpscale,
		InputURLs:    []string{req.InputImageAssetURL},
		Extra:        req.Params,
		RawBody:      body,
	})
}

// imageInpaintRequest requires both a source image and a mask.
type imageInpaintRequest struct {
	baseImageRequest
	InputImageAssetURL string `json:"input_image_asset_url"`
	InputMaskAssetURL  string `json:"input_mask_asset_url"`
}

// ImageInpaint handles POST /generate/image-inpaint.
func (h *Handler) ImageInpaint(w http.ResponseWriter, r *http.Request) {
	var req imageInpaintRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputImageAssetURL == "" {
		writeValidationErr(w, newValidationError("input_image_asset_url is required", nil))
		return
	}
	if req.InputMaskAssetURL == "" {
		writeValidationErr(w, newValidationError("input_mask_asset_url is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpImageInpaint, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpImageInpaint) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Prompt:       optionalString(req.Prompt),
		Provider:     provider,
		Operation:    providers.OpImageInpaint,
		Family:       config.FamilyImageSync,
		InputURLs:    []string{req.InputImageAssetURL},
		MaskURL:      req.InputMaskAssetURL,
		Extra:        req.Params,
		RawBody:      body,
	})
}

// searchAndRecolorRequest requires select_prompt alongside prompt.
type searchAndRecolorRequest struct {
	baseImageRequest
	InputImageAssetURL string `json:"input_image_asset_url"`
	SelectPrompt       string `json:"select_prompt"`
}

// SearchAndRecolor handles POST /generate/search-and-recolor.
func (h *Handler) SearchAndRecolor(w http.ResponseWriter, r *http.Request) {
	var req searchAndRecolorRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputImageAssetURL == "" {
		writeValidationErr(w, newValidationError("input_image_asset_url is required", nil))
		return
	}
	if req.SelectPrompt == "" {
		writeValidationErr(w, newValidationError("select_prompt is required", nil))
		return
	}
	provider, verr := resolveProvider(h.Registry, providers.OpSearchRecolor, req.Provider)
	if verr != nil {
		writeValidationErr(w, verr)
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpSearchRecolor) {
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Prompt:       optionalString(req.Prompt),
		Provider:     provider,
		Operation:    providers.OpSearchRecolor,
		Family:       config.FamilyImageSync,
		InputURLs:    []string{req.InputImageAssetURL},
		SelectPrompt: req.SelectPrompt,
		Extra:        req.Params,
		RawBody:      body,
	})
}

// downscaleRequest takes no provider field: downscale is local processing
// (spec.md §4.5, §6).
type downscaleRequest struct {
	TaskID             string  `json:"task_id"`
	UserID             string  `json:"user_id"`
	InputImageAssetURL string  `json:"input_image_asset_url"`
	MaxSizeMB          float64 `json:"max_size_mb"`
	AspectRatioMode    string  `json:"aspect_ratio_mode"`
	OutputFormat       string  `json:"output_format"`
}

var validAspectRatioModes = map[string]bool{"original": true, "square": true}
var validOutputFormats = map[string]bool{"original": true, "jpeg": true, "png": true}

// Downscale handles POST /generate/downscale (spec.md §8 boundary behaviors:
// max_size_mb outside [0.1, 20.0] or an unrecognized aspect_ratio_mode /
// output_format are both 400s).
func (h *Handler) Downscale(w http.ResponseWriter, r *http.Request) {
	var req downscaleRequest
	body, err := decodeJSON(r, &req)
	if err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}
	if !requireTaskID(w, req.TaskID) {
		return
	}
	if req.InputImageAssetURL == "" {
		writeValidationErr(w, newValidationError("input_image_asset_url is required", nil))
		return
	}
	if req.MaxSizeMB < 0.1 || req.MaxSizeMB > 20.0 {
		writeValidationErr(w, newValidationError("max_size_mb must be between 0.1 and 20.0", nil))
		return
	}
	if req.AspectRatioMode == "" {
		req.AspectRatioMode = "original"
	}
	if !validAspectRatioModes[req.AspectRatioMode] {
		writeValidationErr(w, newValidationError("aspect_ratio_mode must be one of original, square", nil))
		return
	}
	if req.OutputFormat == "" {
		req.OutputFormat = "original"
	}
	if !validOutputFormats[req.OutputFormat] {
		writeValidationErr(w, newValidationError("output_format must be one of original, jpeg, png", nil))
		return
	}
	if !h.checkCredits(r.Context(), w, req.UserID, providers.OpDownscale) {
		return
	}

	provider, err2 := h.Registry.DefaultProvider(providers.OpDownscale, providers.AllowedProviders[providers.OpDownscale])
	if err2 != nil {
		httpresponse.WriteInternalErrorWithLog(w, "no provider configured for downscale", err2, h.Logger)
		return
	}

	h.dispatchImage(r.Context(), w, imageSubmission{
		ClientTaskID: req.TaskID,
		UserID:       req.UserID,
		ImageType:    models.ImageAIGenerated,
		Provider:     provider,
		Operation:    providers.OpDownscale,
		Family:       config.FamilyDownscale,
		InputURLs:    []string{req.InputImageAssetURL},
		Extra: map[string]interface{}{
			"max_size_mb":       req.MaxSizeMB,
			"aspect_ratio_mode": req.AspectRatioMode,
			"output_format":     req.OutputFormat,
		},
		RawBody: body,
	})
}
