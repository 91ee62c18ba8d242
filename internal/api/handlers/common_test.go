package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/db"
	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/providers"
)

// fakeImageStore is an in-memory ImageStore for handler tests.
type fakeImageStore struct {
	mu   sync.Mutex
	byID map[string]*models.ImageRow
	byCT map[string]string // client_task_id -> id
	seq  int
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{byID: map[string]*models.ImageRow{}, byCT: map[string]string{}}
}

func (s *fakeImageStore) CreatePending(ctx context.Context, row *models.ImageRow) (*models.ImageRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCT[row.ClientTaskID]; ok {
		existing := s.byID[id]
		return existing, false, nil
	}
	s.seq++
	id := "img-" + itoa(s.seq)
	copyRow := *row
	copyRow.ID = id
	copyRow.Status = models.StatusPending
	s.byID[id] = &copyRow
	s.byCT[row.ClientTaskID] = id
	return &copyRow, true, nil
}

func (s *fakeImageStore) Get(ctx context.Context, rowID string) (*models.ImageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[rowID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return row, nil
}

func (s *fakeImageStore) GetByClientTaskID(ctx context.Context, clientTaskID string) (*models.ImageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCT[clientTaskID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *fakeImageStore) SetComplete(ctx context.Context, rowID, assetURL string) (*models.ImageRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[rowID]
	if !ok {
		return nil, false, db.ErrNotFound
	}
	if row.Status == models.StatusComplete {
		return row, false, nil
	}
	row.Status = models.StatusComplete
	row.AssetURL = &assetURL
	return row, true, nil
}

func (s *fakeImageStore) SetFailed(ctx context.Context, rowID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[rowID]
	if !ok {
		return db.ErrNotFound
	}
	row.Status = models.StatusFailed
	if row.MetadataJSON == nil {
		row.MetadataJSON = map[string]interface{}{}
	}
	row.MetadataJSON["error"] = errMsg
	return nil
}

// fakeModelStore mirrors fakeImageStore for ModelRow.
type fakeModelStore struct {
	mu   sync.Mutex
	byID map[string]*models.ModelRow
	byCT map[string]string
	seq  int
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{byID: map[string]*models.ModelRow{}, byCT: map[string]string{}}
}

func (s *fakeModelStore) CreatePending(ctx context.Context, row *models.ModelRow) (*models.ModelRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCT[row.ClientTaskID]; ok {
		return s.byID[id], false, nil
	}
	s.seq++
	id := "mdl-" + itoa(s.seq)
	copyRow := *row
	copyRow.ID = id
	copyRow.Status = models.StatusPending
	s.byID[id] = &copyRow
	s.byCT[row.ClientTaskID] = id
	return &copyRow, true, nil
}

func (s *fakeModelStore) Get(ctx context.Context, rowID string) (*models.ModelRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[rowID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return row, nil
}

func (s *fakeModelStore) GetByClientTaskID(ctx context.Context, clientTaskID string) (*models.ModelRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCT[clientTaskID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *fakeModelStore) SetComplete(ctx context.Context, rowID, assetURL string) (*models.ModelRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[rowID]
	if !ok {
		return nil, false, db.ErrNotFound
	}
	if row.Status == models.StatusComplete {
		return row, false, nil
	}
	row.Status = models.StatusComplete
	row.AssetURL = &assetURL
	return row, true, nil
}

func (s *fakeModelStore) SetFailed(ctx context.Context, rowID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[rowID]
	if !ok {
		return db.ErrNotFound
	}
	row.Status = models.StatusFailed
	if row.MetadataJSON == nil {
		row.MetadataJSON = map[string]interface{}{}
	}
	row.MetadataJSON["error"] = errMsg
	return nil
}

// fakeEnqueuer records every job handed to it; Fail makes Enqueue error.
type fakeEnqueuer struct {
	mu    sync.Mutex
	jobs  []models.QueuedJob
	queue []string
	Fail  bool
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, queueName string, job interface{}) error {
	if f.Fail {
		return errEnqueueFailed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, queueName)
	f.jobs = append(f.jobs, job.(models.QueuedJob))
	return nil
}

var errEnqueueFailed = &validationError{message: "enqueue failed"}

// fakeCredits lets tests deny or error the credit gate on demand.
type fakeCredits struct {
	Allow bool
	Err   error
}

func (f fakeCredits) Reserve(ctx context.Context, userID, operation string) (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	return f.Allow, nil
}

// itoa avoids pulling in strconv just for test-id suffixes.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func testRegistry() *providers.Registry {
	return providers.BuildRegistry(nil, nil, nil)
}

func newTestHandler(t *testing.T) (*Handler, *fakeImageStore, *fakeModelStore, *fakeEnqueuer) {
	t.Helper()
	images := newFakeImageStore()
	modelStore := newFakeModelStore()
	enq := &fakeEnqueuer{}
	h := New(Deps{
		Images:   images,
		Models:   modelStore,
		Queue:    enq,
		Registry: testRegistry(),
		Fetch:    func(ctx context.Context, url string) ([]byte, error) { return []byte("data"), nil },
		Upload:   func(ctx context.Context, kind, clientTaskID, name string, data []byte, contentType string) (string, error) { return "https://store/" + name, nil },
		Credits:  fakeCredits{Allow: true},
		Config: &config.Config{
			PollDeadlineByFamily: map[string]time.Duration{
				string(config.Family3DOther):  10 * time.Minute,
				string(config.Family3DRefine): 5 * time.Minute,
			},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h, images, modelStore, enq
}

func doJSON(h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}
