package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genmedia-bff/bff/internal/models"
)

func TestTextToImage_MissingTaskID(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.TextToImage, http.MethodPost, `{"prompt":"a cat"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextToImage_MissingPrompt(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.TextToImage, http.MethodPost, `{"task_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextToImage_UnsupportedProvider(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.TextToImage, http.MethodPost, `{"task_id":"t1","prompt":"a cat","provider":"provider_d"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextToImage_Success(t *testing.T) {
	h, images, _, enq := newTestHandler(t)
	rec := doJSON(h.TextToImage, http.MethodPost, `{"task_id":"t1","user_id":"u1","prompt":"a cat"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	row, err := images.GetByClientTaskID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, row.Status)
	require.Len(t, enq.jobs, 1)
	assert.Equal(t, "text_to_image", enq.jobs[0].Operation)
	assert.Equal(t, "a cat", enq.jobs[0].Prompt)
	assert.Equal(t, "t1", enq.jobs[0].ClientTaskID, "queued job must carry the client task id so the worker uploads under images/t1/..., not the internal handle")
}

func TestTextToImage_IdempotentResubmit_SameBody_DoesNotReenqueue(t *testing.T) {
	h, _, _, enq := newTestHandler(t)
	body := `{"task_id":"t1","user_id":"u1","prompt":"a cat"}`
	rec1 := doJSON(h.TextToImage, http.MethodPost, body)
	require.Equal(t, http.StatusAccepted, rec1.Code)
	rec2 := doJSON(h.TextToImage, http.MethodPost, body)
	require.Equal(t, http.StatusAccepted, rec2.Code)
	assert.Len(t, enq.jobs, 1, "resubmitting an identical body must not enqueue twice")
}

func TestTextToImage_IdempotentResubmit_DifferentBody_Conflict(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec1 := doJSON(h.TextToImage, http.MethodPost, `{"task_id":"t1","user_id":"u1","prompt":"a cat"}`)
	require.Equal(t, http.StatusAccepted, rec1.Code)
	rec2 := doJSON(h.TextToImage, http.MethodPost, `{"task_id":"t1","user_id":"u1","prompt":"a dog"}`)
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestTextToImage_CreditsDenied(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	h.Credits = fakeCredits{Allow: false}
	rec := doJSON(h.TextToImage, http.MethodPost, `{"task_id":"t1","user_id":"u1","prompt":"a cat"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestImageInpaint_RequiresMask(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.ImageInpaint, http.MethodPost, `{"task_id":"t1","input_image_asset_url":"https://x/img.png"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageInpaint_Success(t *testing.T) {
	h, _, _, enq := newTestHandler(t)
	rec := doJSON(h.ImageInpaint, http.MethodPost, `{"task_id":"t1","input_image_asset_url":"https://x/img.png","input_mask_asset_url":"https://x/mask.png"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.jobs, 1)
	assert.Equal(t, "https://x/mask.png", enq.jobs[0].MaskURL)
}

func TestSearchAndRecolor_RequiresSelectPrompt(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.SearchAndRecolor, http.MethodPost, `{"task_id":"t1","input_image_asset_url":"https://x/img.png","prompt":"blue"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownscale_MaxSizeOutOfRange(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.Downscale, http.MethodPost, `{"task_id":"t1","input_image_asset_url":"https://x/img.png","max_size_mb":50}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownscale_BadAspectRatioMode(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.Downscale, http.MethodPost, `{"task_id":"t1","input_image_asset_url":"https://x/img.png","max_size_mb":2,"aspect_ratio_mode":"wide"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownscale_Success_DefaultsApplied(t *testing.T) {
	h, images, _, enq := newTestHandler(t)
	rec := doJSON(h.Downscale, http.MethodPost, `{"task_id":"t1","user_id":"u1","input_image_asset_url":"https://x/img.png","max_size_mb":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.jobs, 1)
	assert.Equal(t, "original", enq.jobs[0].Params["aspect_ratio_mode"])
	assert.Equal(t, "original", enq.jobs[0].Params["output_format"])

	row, err := images.GetByClientTaskID(context.Background(), "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, row.Provider, "downscale still books a provider id even though processing is local")
}
