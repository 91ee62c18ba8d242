package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncImageAdapter_InvokeReturnsDecodedArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req genImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text_to_image", req.Op)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		resp := genImageResponse{
			Images:      []string{base64.StdEncoding.EncodeToString([]byte("pixels"))},
			ContentType: "image/png",
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewSyncImageAdapter("provider_a", srv.URL, "secret", 5*time.Second, OpTextToImage)
	sync, async, err := a.Invoke(context.Background(), Request{Operation: OpTextToImage, Prompt: "a cat"})
	require.NoError(t, err)
	assert.Nil(t, async)
	require.NotNil(t, sync)
	assert.Equal(t, [][]byte{[]byte("pixels")}, sync.Artifacts)
	assert.Equal(t, "image/png", sync.ContentType)
}

func TestSyncImageAdapter_RejectsUnsupportedOperation(t *testing.T) {
	a := NewSyncImageAdapter("provider_d", "http://unused.invalid", "secret", time.Second, OpRemoveBackground)
	_, _, err := a.Invoke(context.Background(), Request{Operation: OpTextToImage})
	assert.ErrorIs(t, err, ErrProviderCall)
}

func TestSyncImageAdapter_PropagatesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(genImageResponse{Error: "rejected prompt"})
	}))
	defer srv.Close()

	a := NewSyncImageAdapter("provider_a", srv.URL, "secret", 5*time.Second, OpTextToImage)
	_, _, err := a.Invoke(context.Background(), Request{Operation: OpTextToImage, Prompt: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderCall)
}

func TestAsyncModelAdapter_SubmitThenPollDone(t *testing.T) {
	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("glb-bytes"))
	}))
	defer modelSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(genModelSubmitResponse{JobID: "job-123"})
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(genModelPollResponse{
				Status:      "done",
				ModelURL:    modelSrv.URL,
				ContentType: "model/gltf-binary",
			})
		}
	}))
	defer srv.Close()

	a := NewAsyncModelAdapter("provider_e", srv.URL, "secret", 5*time.Second, OpTextToModel)

	sync, async, err := a.Invoke(context.Background(), Request{Operation: OpTextToModel, Prompt: "a chair"})
	require.NoError(t, err)
	assert.Nil(t, sync)
	require.NotNil(t, async)
	assert.Equal(t, "job-123", async.ProviderJobID)

	poll, err := a.Poll(context.Background(), async.ProviderJobID)
	require.NoError(t, err)
	assert.Equal(t, PollDone, poll.Status)
	assert.Equal(t, modelSrv.URL, poll.ArtifactURL)
}

func TestAsyncModelAdapter_PollInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(genModelPollResponse{Status: "in_progress"})
	}))
	defer srv.Close()

	a := NewAsyncModelAdapter("provider_e", srv.URL, "secret", 5*time.Second, OpTextToModel)
	poll, err := a.Poll(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, PollInProgress, poll.Status)
}

func TestAsyncModelAdapter_PollFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(genModelPollResponse{Status: "failed", Error: "geometry collapse"})
	}))
	defer srv.Close()

	a := NewAsyncModelAdapter("provider_e", srv.URL, "secret", 5*time.Second, OpTextToModel)
	poll, err := a.Poll(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, PollFailed, poll.Status)
	assert.Equal(t, "geometry collapse", poll.FailReason)
}

func TestHTTPTransport_RetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(genImageResponse{Images: []string{base64.StdEncoding.EncodeToString([]byte("x"))}})
	}))
	defer srv.Close()

	transport := newHTTPTransport(srv.URL, "secret", 5*time.Second)
	transport.retryBase = time.Millisecond
	body, err := transport.postJSON(context.Background(), "/v1/generate", genImageRequest{Op: "text_to_image"})
	require.NoError(t, err)
	assert.Greater(t, attempts, 1)
	assert.Contains(t, string(body), "images")
}

func TestHTTPTransport_FailsFastOn4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	transport := newHTTPTransport(srv.URL, "secret", 5*time.Second)
	transport.retryBase = time.Millisecond
	_, err := transport.postJSON(context.Background(), "/v1/generate", genImageRequest{Op: "text_to_image"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
