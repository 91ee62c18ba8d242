// Package httpresponse provides the JSON response envelope used by every
// handler in the BFF (spec.md §6-7).
package httpresponse

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SuccessResponse wraps successful responses: {"data": ...}.
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse wraps error responses: {"error": {"code","message","details"}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error payload.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error kinds, the closed set from spec.md §7.
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInsufficientCredits  = "INSUFFICIENT_CREDITS"
	ErrCodeTaskIDConflict       = "TASK_ID_CONFLICT"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
)

// WriteJSON writes a successful JSON response with the data envelope.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(SuccessResponse{Data: data}); err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"failed to encode response"}}`, http.StatusInternalServerError)
	}
}

// WriteAccepted writes a 202 Accepted response (dispatch layer success path).
func WriteAccepted(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusAccepted, data)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteErrorWithDetails writes an error JSON response carrying a structured
// details object alongside the human message (SPEC_FULL.md §4, supplemented
// feature: structured validation errors).
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

// WriteValidationError writes a 400 with structured details.
func WriteValidationError(w http.ResponseWriter, message string, details interface{}) {
	WriteErrorWithDetails(w, http.StatusBadRequest, ErrCodeValidation, message, details)
}

// WriteUnauthorized writes a 401 with one of the spec's fixed phrasings.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteRateLimited writes a 429 with Retry-After set by the caller.
func WriteRateLimited(w http.ResponseWriter, message string, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteError(w, http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

// WriteInsufficientCredits writes the 402-equivalent credit-denial response.
func WriteInsufficientCredits(w http.ResponseWriter) {
	WriteError(w, http.StatusPaymentRequired, ErrCodeInsufficientCredits, "insufficient_credits")
}

// WriteTaskIDConflict writes the 409 returned when a client_task_id is
// resubmitted with a materially different request body (SPEC_FULL.md §4).
func WriteTaskIDConflict(w http.ResponseWriter) {
	WriteError(w, http.StatusConflict, ErrCodeTaskIDConflict, "client_task_id already used with a different request body")
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// WriteInternalErrorWithLog writes a 500 response to the client and logs the
// real error (never sent to the client) with request context.
func WriteInternalErrorWithLog(w http.ResponseWriter, message string, err error, logger *slog.Logger, attrs ...any) {
	if logger != nil {
		all := append([]any{"error", err.Error()}, attrs...)
		logger.Error(message, all...)
	}
	WriteInternalError(w, message)
}
