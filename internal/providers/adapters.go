package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// This file wires the closed set of provider adapters (spec.md §4.5,
// §9 obfuscation requirement). Each constructor builds an *Adapter around
// an httpTransport; wire shapes are adapter-private and never leak past
// SyncResult/PollResult.

// genImageRequest is the wire shape shared by the sync image providers.
type genImageRequest struct {
	Op           string   `json:"operation"`
	Prompt       string   `json:"prompt,omitempty"`
	SelectPrompt string   `json:"select_prompt,omitempty"`
	InputImages  []string `json:"input_images,omitempty"` // base64
	Mask         string   `json:"mask,omitempty"`         // base64
	Params       map[string]interface{} `json:"params,omitempty"`
}

type genImageResponse struct {
	Images      []string `json:"images"` // base64
	ContentType string   `json:"content_type"`
	Error       string   `json:"error,omitempty"`
}

// NewSyncImageAdapter builds an adapter for a provider that completes image
// operations within a single HTTP call (spec.md §4.5 "sync providers").
func NewSyncImageAdapter(id, baseURL, apiKey string, timeout time.Duration, supported ...Operation) *Adapter {
	transport := newHTTPTransport(baseURL, apiKey, timeout)
	supportedSet := make(map[Operation]bool, len(supported))
	for _, op := range supported {
		supportedSet[op] = true
	}

	return &Adapter{
		ID:      id,
		Async:   func(Operation) bool { return false },
		Timeout: timeout,
		Invoke: func(ctx context.Context, req Request) (*SyncResult, *AsyncHandle, error) {
			if !supportedSet[req.Operation] {
				return nil, nil, fmt.Errorf("%w: %s does not support %s", ErrProviderCall, id, req.Operation)
			}

			if req.Operation == OpDownscale {
				return invokeLocalDownscale(req)
			}

			wireReq := genImageRequest{
				Op:           string(req.Operation),
				Prompt:       req.Prompt,
				SelectPrompt: req.SelectPrompt,
				Params:       req.Extra,
			}
			for _, b := range req.InputBytes {
				wireReq.InputImages = append(wireReq.InputImages, base64.StdEncoding.EncodeToString(b))
			}
			if len(req.MaskBytes) > 0 {
				wireReq.Mask = base64.StdEncoding.EncodeToString(req.MaskBytes)
			}

			respBytes, err := transport.postJSON(ctx, "/v1/generate", wireReq)
			if err != nil {
				return nil, nil, err
			}

			var wireResp genImageResponse
			if err := json.Unmarshal(respBytes, &wireResp); err != nil {
				return nil, nil, fmt.Errorf("%w: decode response: %v", ErrProviderCall, err)
			}
			if wireResp.Error != "" {
				return nil, nil, fmt.Errorf("%w: %s", ErrProviderCall, wireResp.Error)
			}
			if len(wireResp.Images) == 0 {
				return nil, nil, fmt.Errorf("%w: empty image result", ErrProviderCall)
			}

			artifacts := make([][]byte, 0, len(wireResp.Images))
			for _, encoded := range wireResp.Images {
				decoded, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: decode image payload: %v", ErrProviderCall, err)
				}
				artifacts = append(artifacts, decoded)
			}

			contentType := wireResp.ContentType
			if contentType == "" {
				contentType = "image/png"
			}
			return &SyncResult{Artifacts: artifacts, ContentType: contentType}, nil, nil
		},
		Poll: nil,
	}
}

// genModelRequest is the wire shape for the async 3D-model providers.
type genModelRequest struct {
	Op          string                 `json:"operation"`
	Prompt      string                 `json:"prompt,omitempty"`
	InputImages []string               `json:"input_images,omitempty"` // base64, ordered [front, left, back, right]
	Params      map[string]interface{} `json:"params,omitempty"`
}

type genModelSubmitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

type genModelPollResponse struct {
	Status      string `json:"status"` // "in_progress" | "done" | "failed"
	ModelURL    string `json:"model_url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewAsyncModelAdapter builds an adapter for a provider that submits a job
// and requires polling for completion (spec.md §4.5 "async providers").
func NewAsyncModelAdapter(id, baseURL, apiKey string, timeout time.Duration, supported ...Operation) *Adapter {
	transport := newHTTPTransport(baseURL, apiKey, timeout)
	supportedSet := make(map[Operation]bool, len(supported))
	for _, op := range supported {
		supportedSet[op] = true
	}

	return &Adapter{
		ID:      id,
		Async:   func(Operation) bool { return true },
		Timeout: timeout,
		Invoke: func(ctx context.Context, req Request) (*SyncResult, *AsyncHandle, error) {
			if !supportedSet[req.Operation] {
				return nil, nil, fmt.Errorf("%w: %s does not support %s", ErrProviderCall, id, req.Operation)
			}

			wireReq := genModelRequest{
				Op:     string(req.Operation),
				Prompt: req.Prompt,
				Params: req.Extra,
			}
			for _, b := range req.InputBytes {
				wireReq.InputImages = append(wireReq.InputImages, base64.StdEncoding.EncodeToString(b))
			}

			respBytes, err := transport.postJSON(ctx, "/v1/jobs", wireReq)
			if err != nil {
				return nil, nil, err
			}

			var wireResp genModelSubmitResponse
			if err := json.Unmarshal(respBytes, &wireResp); err != nil {
				return nil, nil, fmt.Errorf("%w: decode submit response: %v", ErrProviderCall, err)
			}
			if wireResp.Error != "" {
				return nil, nil, fmt.Errorf("%w: %s", ErrProviderCall, wireResp.Error)
			}
			if wireResp.JobID == "" {
				return nil, nil, fmt.Errorf("%w: empty job id", ErrProviderCall)
			}

			return nil, &AsyncHandle{ProviderJobID: wireResp.JobID}, nil
		},
		Poll: func(ctx context.Context, providerJobID string) (*PollResult, error) {
			respBytes, err := transport.getJSON(ctx, "/v1/jobs/"+providerJobID)
			if err != nil {
				return nil, err
			}

			var wireResp genModelPollResponse
			if err := json.Unmarshal(respBytes, &wireResp); err != nil {
				return nil, fmt.Errorf("%w: decode poll response: %v", ErrProviderCall, err)
			}

			switch wireResp.Status {
			case "done":
				if wireResp.ModelURL == "" {
					return &PollResult{Status: PollFailed, FailReason: "provider reported done with no model url"}, nil
				}
				return &PollResult{
					Status:      PollDone,
					ArtifactURL: wireResp.ModelURL,
					ContentType: firstNonEmpty(wireResp.ContentType, "model/gltf-binary"),
				}, nil
			case "failed":
				return &PollResult{Status: PollFailed, FailReason: sanitizeFailReason(wireResp.Error)}, nil
			default:
				return &PollResult{Status: PollInProgress}, nil
			}
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// sanitizeFailReason replaces an empty reason with a generic message. A
// non-empty reason is returned unchanged: it is neither filtered for
// provider identity nor truncated.
func sanitizeFailReason(reason string) string {
	if reason == "" {
		return "provider reported failure"
	}
	return reason
}
