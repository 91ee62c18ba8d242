package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genmedia-bff/bff/internal/providers"
)

func TestValidateMultiViewURLs_FrontOnly_OK(t *testing.T) {
	ordered, verr := validateMultiViewURLs([]string{"https://x/front.png"})
	require.Nil(t, verr)
	assert.Equal(t, []string{"https://x/front.png"}, ordered)
}

func TestValidateMultiViewURLs_MissingFront_Rejected(t *testing.T) {
	_, verr := validateMultiViewURLs([]string{"", "https://x/left.png"})
	assert.NotNil(t, verr)
}

func TestValidateMultiViewURLs_Gap_Rejected(t *testing.T) {
	// front present, left empty, back present: a gap, not a contiguous prefix.
	_, verr := validateMultiViewURLs([]string{"https://x/front.png", "", "https://x/back.png"})
	assert.NotNil(t, verr)
}

func TestValidateMultiViewURLs_TooMany_Rejected(t *testing.T) {
	_, verr := validateMultiViewURLs([]string{"a", "b", "c", "d", "e"})
	assert.NotNil(t, verr)
}

func TestValidateMultiViewURLs_Empty_Rejected(t *testing.T) {
	_, verr := validateMultiViewURLs(nil)
	assert.NotNil(t, verr)
}

func TestTextToModel_MissingPrompt(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.TextToModel, http.MethodPost, `{"task_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextToModel_Success_RoutesToAsyncOtherQueue(t *testing.T) {
	h, _, models, enq := newTestHandler(t)
	rec := doJSON(h.TextToModel, http.MethodPost, `{"task_id":"t1","user_id":"u1","prompt":"a chair"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.jobs, 1)
	assert.Equal(t, "async_other", enq.queue[0])
	assert.Equal(t, "t1", enq.jobs[0].ClientTaskID, "queued job must carry the client task id so a later sync finalize uploads under models/t1/..., not the internal handle")

	row, err := models.Get(nil, enq.jobs[0].RowID)
	require.NoError(t, err)
	assert.Contains(t, providers.AllowedProviders[providers.OpTextToModel], row.Provider)
}

func TestImageToModel_InvalidOrder_Rejected(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.ImageToModel, http.MethodPost, `{"task_id":"t1","input_image_asset_urls":["","https://x/left.png"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageToModel_Success(t *testing.T) {
	h, _, _, enq := newTestHandler(t)
	rec := doJSON(h.ImageToModel, http.MethodPost, `{"task_id":"t1","user_id":"u1","input_image_asset_urls":["https://x/front.png","https://x/left.png"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.jobs, 1)
	assert.Equal(t, []string{"https://x/front.png", "https://x/left.png"}, enq.jobs[0].InputURLs)
}

func TestRefineModel_MissingSourceModel(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doJSON(h.RefineModel, http.MethodPost, `{"task_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefineModel_Success_RoutesToAsyncRefineQueue(t *testing.T) {
	h, _, _, enq := newTestHandler(t)
	rec := doJSON(h.RefineModel, http.MethodPost, `{"task_id":"t1","user_id":"u1","input_model_asset_url":"https://x/model.glb"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.jobs, 1)
	assert.Equal(t, "async_refine", enq.queue[0])
}
