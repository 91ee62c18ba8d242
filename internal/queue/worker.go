package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/providers"
)

// maxAttempts bounds retries for a single job before it is permanently
// marked failed (spec.md §4.6 retry-with-backoff is not unbounded).
const maxAttempts = 5

// RowStore is the narrow slice of the C4 repositories a worker needs. Both
// ImageRepository and ModelRepository satisfy it.
type RowStore interface {
	SetProcessing(ctx context.Context, rowID string, providerJobID *string) (bool, error)
	SetProviderJobID(ctx context.Context, rowID, providerJobID string) error
	SetComplete(ctx context.Context, rowID, assetURL string) (won bool, err error)
	SetFailed(ctx context.Context, rowID, errMsg string) error
}

// rowStoreAdapter narrows ImageRepository/ModelRepository's richer
// SetComplete (which also returns the row) down to RowStore's shape.
type rowStoreAdapter struct {
	setProcessing    func(ctx context.Context, rowID string, providerJobID *string) (bool, error)
	setProviderJobID func(ctx context.Context, rowID, providerJobID string) error
	setComplete      func(ctx context.Context, rowID, assetURL string) (bool, error)
	setFailed        func(ctx context.Context, rowID, errMsg string) error
}

func (a rowStoreAdapter) SetProcessing(ctx context.Context, rowID string, providerJobID *string) (bool, error) {
	return a.setProcessing(ctx, rowID, providerJobID)
}
func (a rowStoreAdapter) SetProviderJobID(ctx context.Context, rowID, providerJobID string) error {
	return a.setProviderJobID(ctx, rowID, providerJobID)
}
func (a rowStoreAdapter) SetComplete(ctx context.Context, rowID, assetURL string) (bool, error) {
	return a.setComplete(ctx, rowID, assetURL)
}
func (a rowStoreAdapter) SetFailed(ctx context.Context, rowID, errMsg string) error {
	return a.setFailed(ctx, rowID, errMsg)
}

// NewRowStoreAdapter builds a RowStore from repository methods whose
// SetComplete signature additionally returns the reloaded row; the row
// value itself is discarded here since the worker pool only needs the CAS
// outcome (the status endpoint is the one that reads the row back).
func NewRowStoreAdapter(
	setProcessing func(ctx context.Context, rowID string, providerJobID *string) (bool, error),
	setProviderJobID func(ctx context.Context, rowID, providerJobID string) error,
	setComplete func(ctx context.Context, rowID, assetURL string) (bool, error),
	setFailed func(ctx context.Context, rowID, errMsg string) error,
) RowStore {
	return rowStoreAdapter{
		setProcessing:    setProcessing,
		setProviderJobID: setProviderJobID,
		setComplete:      setComplete,
		setFailed:        setFailed,
	}
}

// Fetcher downloads a URL's bytes (satisfied by *objectstore.Store.Fetch).
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Uploader stores produced bytes and returns a URL for them (satisfied by
// *objectstore.Store.Put).
type Uploader func(ctx context.Context, kind, clientTaskID, name string, data []byte, contentType string) (string, error)

// jobBroker is the narrow slice of *Broker a Pool needs; defined as an
// interface so tests can exercise the worker loop against a fake.
type jobBroker interface {
	Dequeue(ctx context.Context, queueName string, blockFor time.Duration) ([]byte, error)
	Ack(ctx context.Context, queueName string, payload []byte) error
	Enqueue(ctx context.Context, queueName string, job interface{}) error
}

// Pool runs a bounded set of workers draining one named queue. Grounded on
// the teacher's RunScheduled ticker loop (backend/internal/jobs/cleanup.go)
// but blocking on the broker instead of a ticker, since jobs arrive
// irregularly rather than on a schedule.
type Pool struct {
	name        string
	broker      jobBroker
	concurrency int
	registry    *providers.Registry
	rows        map[models.RowKind]RowStore
	fetch       Fetcher
	upload      Uploader
	pollEvery   time.Duration
	blockFor    time.Duration
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewPool constructs a worker pool for queueName.
func NewPool(
	name string,
	broker jobBroker,
	concurrency int,
	registry *providers.Registry,
	rows map[models.RowKind]RowStore,
	fetch Fetcher,
	upload Uploader,
	logger *slog.Logger,
) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		name:        name,
		broker:      broker,
		concurrency: concurrency,
		registry:    registry,
		rows:        rows,
		fetch:       fetch,
		upload:      upload,
		pollEvery:   500 * time.Millisecond,
		blockFor:    2 * time.Second,
		logger:      logger,
	}
}

// Run starts concurrency worker goroutines and blocks until ctx is
// cancelled, then waits for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) {
	p.wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go func(workerID int) {
			defer p.wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}
	<-ctx.Done()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", "queue", p.name)
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := p.broker.Dequeue(ctx, p.name, p.blockFor)
		if err != nil {
			if err == ErrNoJob {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", "queue", p.name, "worker", workerID, "error", err)
			time.Sleep(p.pollEvery)
			continue
		}

		p.handle(ctx, payload)
	}
}

func (p *Pool) handle(ctx context.Context, payload []byte) {
	var job models.QueuedJob
	if err := json.Unmarshal(payload, &job); err != nil {
		p.logger.Error("malformed job payload, dropping", "queue", p.name, "error", err)
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}

	logger := p.logger.With("queue", p.name, "internal_task_id", job.InternalTaskID, "operation", job.Operation)

	rowStore, ok := p.rows[job.Kind]
	if !ok {
		logger.Error("no row store configured for kind", "kind", job.Kind)
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}

	started, err := rowStore.SetProcessing(ctx, job.RowID, nil)
	if err != nil {
		logger.Error("set processing failed", "error", err)
		p.retryOrFail(ctx, payload, &job, rowStore, "internal error")
		return
	}
	if !started {
		// Row was not pending: duplicate delivery already handled by
		// another worker (spec.md §4.6 at-least-once delivery).
		logger.Info("duplicate delivery, skipping")
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}

	adapter, err := p.registry.Resolve(providers.Operation(job.Operation), job.Provider)
	if err != nil {
		logger.Error("provider resolution failed", "error", err)
		_ = rowStore.SetFailed(ctx, job.RowID, "provider unavailable")
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}

	inputBytes := make([][]byte, 0, len(job.InputURLs))
	for _, url := range job.InputURLs {
		b, err := p.fetch(ctx, url)
		if err != nil {
			logger.Error("input fetch failed", "error", err)
			p.retryOrFail(ctx, payload, &job, rowStore, "input fetch failed")
			return
		}
		inputBytes = append(inputBytes, b)
	}

	var maskBytes []byte
	if job.MaskURL != "" {
		b, err := p.fetch(ctx, job.MaskURL)
		if err != nil {
			logger.Error("mask fetch failed", "error", err)
			p.retryOrFail(ctx, payload, &job, rowStore, "mask fetch failed")
			return
		}
		maskBytes = b
	}

	invokeCtx, cancel := context.WithTimeout(ctx, adapter.Timeout)
	sync, async, err := adapter.Invoke(invokeCtx, providers.Request{
		Operation:    providers.Operation(job.Operation),
		ClientTaskID: job.ClientTaskID,
		Prompt:       job.Prompt,
		SelectPrompt: job.SelectPrompt,
		InputURLs:    job.InputURLs,
		InputBytes:   inputBytes,
		MaskBytes:    maskBytes,
		Extra:        job.Params,
	})
	cancel()
	if err != nil {
		logger.Error("provider invoke failed", "error", err)
		p.retryOrFail(ctx, payload, &job, rowStore, "provider invocation failed")
		return
	}

	if sync != nil {
		p.finalizeSync(ctx, &job, rowStore, sync, logger)
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}

	// Async: record the provider job id and leave status=processing. A
	// separate status-poll path (driven by client GET /tasks/{id}/status
	// calls, spec.md §4.8) finalizes the row once the provider reports
	// done, so the worker's job ends once the handle is recorded.
	if async != nil {
		if err := rowStore.SetProviderJobID(ctx, job.RowID, async.ProviderJobID); err != nil {
			logger.Error("record provider job id failed", "error", err)
		}
	}
	_ = p.broker.Ack(ctx, p.name, payload)
}

// finalizeSync uploads every artifact the provider returned, all under the
// same client_task_id folder (spec.md §3 invariant 6, §6: "all generated
// artifacts for a task share the folder"). The row's asset_url column holds
// a single URL, so it records the first artifact (index 0 / "model.ext") —
// the rest remain fetchable at their own index paths even though nothing
// else in this schema points at them.
func (p *Pool) finalizeSync(ctx context.Context, job *models.QueuedJob, rowStore RowStore, result *providers.SyncResult, logger *slog.Logger) {
	if len(result.Artifacts) == 0 {
		logger.Error("sync provider returned no artifacts")
		_ = rowStore.SetFailed(ctx, job.RowID, "provider returned no artifacts")
		return
	}

	urls := make([]string, 0, len(result.Artifacts))
	for i, artifact := range result.Artifacts {
		name := fmt.Sprintf("%d%s", i, extensionFor(result.ContentType))
		kind := "images"
		if job.Kind == models.KindModel {
			kind = "models"
			name = "model" + extensionFor(result.ContentType)
		}
		url, err := p.upload(ctx, kind, job.ClientTaskID, name, artifact, result.ContentType)
		if err != nil {
			logger.Error("artifact upload failed", "error", err, "uploaded", len(urls))
			_ = rowStore.SetFailed(ctx, job.RowID, "artifact storage failed")
			return
		}
		urls = append(urls, url)
	}
	if len(urls) > 1 {
		logger.Info("multiple artifacts uploaded, row records the first", "count", len(urls))
	}

	if _, err := rowStore.SetComplete(ctx, job.RowID, urls[0]); err != nil {
		logger.Error("set complete failed", "error", err)
	}
}

func (p *Pool) retryOrFail(ctx context.Context, payload []byte, job *models.QueuedJob, rowStore RowStore, reason string) {
	job.Attempts++
	if job.Attempts >= maxAttempts {
		_ = rowStore.SetFailed(ctx, job.RowID, reason)
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}

	retryPayload, err := json.Marshal(job)
	if err != nil {
		_ = rowStore.SetFailed(ctx, job.RowID, reason)
		_ = p.broker.Ack(ctx, p.name, payload)
		return
	}
	_ = p.broker.Ack(ctx, p.name, payload)
	_ = p.broker.Enqueue(ctx, p.name, json.RawMessage(retryPayload))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "model/gltf-binary":
		return ".glb"
	default:
		return ".png"
	}
}
