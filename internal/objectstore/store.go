// Package objectstore implements the C3 adapter: fetching client-supplied
// input URLs and uploading produced artifacts to the deterministic path
// scheme (spec.md §4.3, §6). Adapted from the teacher pack's S3-backed
// artifact store (Mindburn-Labs-helm/core/pkg/artifacts/s3_store.go),
// generalized from content-hash keys to the spec's
// {kind_plural}/{client_task_id}/{name} layout and given a retrying fetch
// and presigned GET URLs that expire after seven days.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v5"
)

// Store is the C3 object store adapter.
type Store struct {
	client      *s3.Client
	presigner   *s3.PresignClient
	bucket      string
	prefix      string
	testMode    bool
	httpClient  *http.Client
}

// Config configures a Store.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // custom endpoint for MinIO/LocalStack
	Prefix   string
	// TestMode prefixes every put path with "test_outputs/" (spec.md §6,
	// TEST_ASSETS_MODE).
	TestMode bool
}

// New constructs a Store backed by S3 (or an S3-compatible endpoint).
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}
	client := s3.NewFromConfig(awsCfg, clientOpts)

	return &Store{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		testMode:   cfg.TestMode,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// errInputFetch is the sanitized failure kind for Fetch (spec.md §7).
var errInputFetch = fmt.Errorf("input_fetch_failed")

// errStorePut is the sanitized failure kind for Put (spec.md §7).
var errStorePut = fmt.Errorf("store_put_failed")

// Fetch downloads a client-supplied input URL, retrying transient network
// failures with bounded exponential backoff (<=5 attempts, base 200ms, cap
// 5s, per spec.md §4.3).
func (s *Store) Fetch(ctx context.Context, url string) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", errInputFetch, err))
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInputFetch, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(fmt.Errorf("%w: status %d", errInputFetch, resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", errInputFetch, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInputFetch, err)
		}
		return body, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// kindPlural maps a row kind to its object-store path segment.
func kindPlural(kind string) string {
	switch kind {
	case "image", "images":
		return "images"
	case "model", "models":
		return "models"
	default:
		return kind
	}
}

// path builds the deterministic object key for (kind, client_task_id, name),
// applying the test_outputs/ prefix under TEST_ASSETS_MODE (spec.md §6).
func (s *Store) path(kind, clientTaskID, name string) string {
	key := fmt.Sprintf("%s/%s/%s", kindPlural(kind), clientTaskID, name)
	if s.testMode {
		key = "test_outputs/" + key
	}
	if s.prefix != "" {
		key = s.prefix + key
	}
	return key
}

// Put uploads bytes to the deterministic path and returns a presigned GET
// URL for it (see PermanentURL). The URL is signed per call and expires
// after seven days; it is not a permanent public URL.
// Uploads are idempotent by path: repeating an upload overwrites
// (spec.md §4.3).
func (s *Store) Put(ctx context.Context, kind, clientTaskID, name string, data []byte, contentType string) (string, error) {
	key := s.path(kind, clientTaskID, name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errStorePut, err)
	}

	url, err := s.PermanentURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errStorePut, err)
	}
	return url, nil
}

// PermanentURL returns a long-lived, presigned GET URL for key.
func (s *Store) PermanentURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(7*24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
