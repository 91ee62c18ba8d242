package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/httpresponse"
	"github.com/genmedia-bff/bff/internal/models"
	"github.com/genmedia-bff/bff/internal/providers"
)

// maxGenerateBodyBytes bounds a single /generate/* JSON body; well above any
// real prompt/parameter payload, input images travel as URLs not bytes.
const maxGenerateBodyBytes = 64 * 1024

// decodeJSON reads and decodes r.Body into dst, returning the raw bytes too
// (used for the idempotency request-hash, SPEC_FULL.md §4).
func decodeJSON(r *http.Request, dst interface{}) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxGenerateBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxGenerateBodyBytes {
		return nil, errBodyTooLarge
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return nil, err
	}
	return body, nil
}

var errBodyTooLarge = &validationError{message: "request body too large"}

// validationError is a plain 400 with an optional structured details value
// (spec.md §7, SPEC_FULL.md §4 "structured request validation errors").
type validationError struct {
	message string
	details interface{}
}

func (e *validationError) Error() string { return e.message }

func newValidationError(message string, details interface{}) *validationError {
	return &validationError{message: message, details: details}
}

func writeValidationErr(w http.ResponseWriter, err *validationError) {
	httpresponse.WriteValidationError(w, err.message, err.details)
}

// asValidationError normalizes a decodeJSON error (a *validationError for
// the body-too-large case, or a raw json syntax/type error otherwise) into
// one validationError the handler can respond with.
func asValidationError(err error) *validationError {
	if verr, ok := err.(*validationError); ok {
		return verr
	}
	return newValidationError("malformed request body: "+err.Error(), nil)
}

// requestHash is the SHA-256 hex digest of the raw request body, stored on
// a row's metadata at creation and compared on resubmission to detect a
// client_task_id reused with a materially different body (SPEC_FULL.md §4,
// spec.md §9 Open Question: resolved as 409 Conflict, not silent return).
func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// familyQueue maps a route family to its worker queue (spec.md §4.2, §4.6).
var familyQueue = map[config.RouteFamily]config.QueueName{
	config.FamilyImageSync: config.QueueDefault,
	config.FamilyUpscale:   config.QueueDefault,
	config.FamilyDownscale: config.QueueDefault,
	config.Family3DOther:   config.QueueAsyncOther,
	config.Family3DRefine:  config.QueueAsyncRefine,
}

// resolveProvider validates a request's provider field against op's allowed
// set. An empty providerID picks registry.DefaultProvider in the order
// providers.AllowedProviders lists them (spec.md §4.5: the client may omit
// provider and let dispatch choose).
func resolveProvider(registry *providers.Registry, op providers.Operation, providerID string) (string, *validationError) {
	allowed := append([]string(nil), providers.AllowedProviders[op]...)
	sort.Strings(allowed)

	if providerID == "" {
		id, err := registry.DefaultProvider(op, providers.AllowedProviders[op])
		if err != nil {
			return "", newValidationError("no provider available for this operation", nil)
		}
		return id, nil
	}

	if _, err := registry.Resolve(op, providerID); err != nil {
		return "", newValidationError(
			fmt.Sprintf("provider %q is not supported for this operation", providerID),
			map[string]interface{}{"allowed_providers": allowed},
		)
	}
	return providerID, nil
}

// newInternalTaskID mints the server-assigned polling handle returned to
// clients as celery_task_id (spec.md §3, §6) — a plain UUID, matching the
// teacher's internal/models ID convention (uuid.NewString() at creation
// time, e.g. backend/internal/db/agents.go).
func newInternalTaskID() string {
	return uuid.NewString()
}

// enqueueOrFail enqueues job onto queueName, marking the just-created row
// failed if enqueue itself errors (broker unreachable) so the row never
// sits in pending forever with nothing ever going to pick it up.
func (h *Handler) enqueueOrFail(ctx context.Context, queueName string, job models.QueuedJob, kind models.RowKind, rowID string) error {
	if err := h.Queue.Enqueue(ctx, queueName, job); err != nil {
		if kind == models.KindImage {
			_ = h.Images.SetFailed(ctx, rowID, "enqueue failed")
		} else {
			_ = h.Models.SetFailed(ctx, rowID, "enqueue failed")
		}
		return err
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// imageSubmission carries one validated /generate/* image request, assembled
// by the per-endpoint handler and handed to dispatchImage to persist and
// enqueue (spec.md §4.7 dispatch flow).
type imageSubmission struct {
	ClientTaskID  string
	UserID        string
	ImageType     models.ImageType
	SourceImageID *string
	Prompt        *string
	Style         *string
	Provider      string
	Operation     providers.Operation
	Family        config.RouteFamily
	InputURLs     []string
	MaskURL       string
	SelectPrompt  string
	Extra         map[string]interface{}
	RawBody       []byte
}

// dispatchImage runs the common create-pending / idempotency-check /
// enqueue / respond sequence shared by every sync-image-family endpoint
// (spec.md §4.7). sub.Provider is always an already-resolved provider id:
// when the client omits provider, the endpoint handler has picked one via
// resolveProvider (or registry.DefaultProvider) before calling this.
func (h *Handler) dispatchImage(ctx context.Context, w http.ResponseWriter, sub imageSubmission) {
	hash := requestHash(sub.RawBody)
	row := &models.ImageRow{
		ClientTaskID:  sub.ClientTaskID,
		UserID:        sub.UserID,
		ImageType:     sub.ImageType,
		SourceImageID: sub.SourceImageID,
		Prompt:        sub.Prompt,
		Style:         sub.Style,
		Provider:      sub.Provider,
		MetadataJSON: map[string]interface{}{
			"request_hash": hash,
			"operation":    string(sub.Operation),
			"route_family": string(sub.Family),
		},
	}

	created, isNew, err := h.Images.CreatePending(ctx, row)
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to create task", err, h.Logger)
		return
	}

	if !isNew {
		existingHash, _ := created.MetadataJSON["request_hash"].(string)
		if existingHash != hash {
			httpresponse.WriteTaskIDConflict(w)
			return
		}
		httpresponse.WriteAccepted(w, map[string]string{"celery_task_id": created.ID})
		return
	}

	job := models.QueuedJob{
		InternalTaskID: created.ID,
		ClientTaskID:   sub.ClientTaskID,
		RowID:          created.ID,
		Kind:           models.KindImage,
		Provider:       sub.Provider,
		Operation:      string(sub.Operation),
		Prompt:         derefString(sub.Prompt),
		SelectPrompt:   sub.SelectPrompt,
		Params:         sub.Extra,
		InputURLs:      sub.InputURLs,
		MaskURL:        sub.MaskURL,
	}
	if err := h.enqueueOrFail(ctx, string(familyQueue[sub.Family]), job, models.KindImage, created.ID); err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to enqueue task", err, h.Logger)
		return
	}
	httpresponse.WriteAccepted(w, map[string]string{"celery_task_id": created.ID})
}

// modelSubmission is imageSubmission's equivalent for the /generate/*-model
// endpoints (spec.md §4.7, always routed to the async queues).
type modelSubmission struct {
	ClientTaskID  string
	UserID        string
	SourceImageID *string
	Prompt        *string
	Style         *string
	Provider      string
	Operation     providers.Operation
	Family        config.RouteFamily
	InputURLs     []string
	Extra         map[string]interface{}
	RawBody       []byte
}

func (h *Handler) dispatchModel(ctx context.Context, w http.ResponseWriter, sub modelSubmission) {
	hash := requestHash(sub.RawBody)
	row := &models.ModelRow{
		ClientTaskID:  sub.ClientTaskID,
		UserID:        sub.UserID,
		SourceImageID: sub.SourceImageID,
		Prompt:        sub.Prompt,
		Style:         sub.Style,
		Provider:      sub.Provider,
		MetadataJSON: map[string]interface{}{
			"request_hash": hash,
			"operation":    string(sub.Operation),
			"route_family": string(sub.Family),
		},
	}

	created, isNew, err := h.Models.CreatePending(ctx, row)
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to create task", err, h.Logger)
		return
	}

	if !isNew {
		existingHash, _ := created.MetadataJSON["request_hash"].(string)
		if existingHash != hash {
			httpresponse.WriteTaskIDConflict(w)
			return
		}
		httpresponse.WriteAccepted(w, map[string]string{"celery_task_id": created.ID})
		return
	}

	job := models.QueuedJob{
		InternalTaskID: created.ID,
		ClientTaskID:   sub.ClientTaskID,
		RowID:          created.ID,
		Kind:           models.KindModel,
		Provider:       sub.Provider,
		Operation:      string(sub.Operation),
		Prompt:         derefString(sub.Prompt),
		Params:         sub.Extra,
		InputURLs:      sub.InputURLs,
	}
	if err := h.enqueueOrFail(ctx, string(familyQueue[sub.Family]), job, models.KindModel, created.ID); err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "failed to enqueue task", err, h.Logger)
		return
	}
	httpresponse.WriteAccepted(w, map[string]string{"celery_task_id": created.ID})
}

// checkCredits runs the injected credit gate (spec.md §4.7 step 3); a denial
// writes the 402-equivalent response and returns false so the caller stops.
func (h *Handler) checkCredits(ctx context.Context, w http.ResponseWriter, userID string, operation providers.Operation) bool {
	ok, err := h.Credits.Reserve(ctx, userID, string(operation))
	if err != nil {
		httpresponse.WriteInternalErrorWithLog(w, "credit check failed", err, h.Logger)
		return false
	}
	if !ok {
		httpresponse.WriteInsufficientCredits(w)
		return false
	}
	return true
}
