package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Generic HTTP-backed adapter construction, grounded on the teacher's
// Voyage embedding client (backend/internal/services/embeddings.go):
// bounded retries with exponential backoff, retry on 429/5xx, fail fast on
// other 4xx. Retry scheduling is the same cenkalti/backoff/v5 machinery
// internal/objectstore/store.go uses for its own bounded-retry concern.

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 500 * time.Millisecond
	defaultRetryCap   = 5 * time.Second
)

// ErrProviderCall is the sanitized failure kind surfaced to callers; the
// underlying provider identity and raw response body never escape past
// this package (spec.md §9 obfuscation requirement).
var ErrProviderCall = errors.New("provider call failed")

// httpTransport is the shared retry/post machinery used by both sync and
// async HTTP adapters.
type httpTransport struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	retryBase  time.Duration
}

func newHTTPTransport(baseURL, apiKey string, timeout time.Duration) *httpTransport {
	return &httpTransport{
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
}

func (t *httpTransport) postJSON(ctx context.Context, path string, reqBody interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrProviderCall, err)
	}
	return t.doWithRetry(ctx, http.MethodPost, path, bodyBytes)
}

func (t *httpTransport) getJSON(ctx context.Context, path string) ([]byte, error) {
	return t.doWithRetry(ctx, http.MethodGet, path, nil)
}

func (t *httpTransport) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		respBody, statusCode, err := t.do(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if statusCode >= 200 && statusCode < 300 {
			return respBody, nil
		}

		retryable := fmt.Errorf("%w: status %d", ErrProviderCall, statusCode)
		if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
			return nil, retryable
		}
		return nil, backoff.Permanent(retryable)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.retryBase
	bo.MaxInterval = defaultRetryCap

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(t.maxRetries+1)),
	)
}

func (t *httpTransport) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request: %v", ErrProviderCall, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrProviderCall, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", ErrProviderCall, err)
	}
	return respBody, resp.StatusCode, nil
}
