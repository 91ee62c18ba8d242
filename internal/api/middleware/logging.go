// Package middleware provides HTTP middleware for the genmedia BFF.
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// sensitiveParams lists URL query parameter names that contain secrets.
// Values of these parameters will be redacted in logs.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"access_token",
	"refresh_token",
	"secret",
	"password",
	"key",
}

// apiKeyPrefixes lists the tenant-type key prefixes minted by
// internal/auth/apikey.go's keyPrefix, so logs can redact a raw API key
// wherever it leaks into a header or query string.
var apiKeyPrefixes = []string{"storefront_", "app_", "custom_", "dev_"}

// bearerPrefix is the prefix for Bearer tokens in Authorization headers.
const bearerPrefix = "Bearer "

// jwtRegex matches JWT tokens (three base64 segments separated by dots).
var jwtRegex = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// responseWriter wraps http.ResponseWriter to capture the status code and,
// for error responses, the body — so a 4xx/5xx log line can carry the
// handler's error code/message without the handler logging it twice.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        []byte
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.status >= 400 {
		rw.body = append(rw.body, b...)
	}
	return rw.ResponseWriter.Write(b)
}

// Logging returns middleware that logs each request through the process's
// default slog logger (configured in cmd/api/main.go as a JSON handler),
// the same structured-logging path every other package in this tree writes
// through — rather than a second, independent JSON-encode-and-log.Println
// pipeline. API keys, tokens, and sensitive request-body fields are
// redacted before anything is logged.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var requestBody string
		if r.Method != http.MethodGet && r.Body != nil {
			bodyBytes, err := io.ReadAll(r.Body)
			if err == nil && len(bodyBytes) > 0 {
				requestBody = string(bodyBytes)
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}
		}

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		logPath := r.URL.Path
		if r.URL.RawQuery != "" {
			logPath = RedactURLPath(r.URL.Path + "?" + r.URL.RawQuery)
		}

		attrs := []any{
			"method", r.Method,
			"path", logPath,
			"status", wrapped.status,
			"duration_ms", float64(duration.Nanoseconds()) / 1e6,
		}
		if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		if r.RemoteAddr != "" {
			attrs = append(attrs, "remote_addr", r.RemoteAddr)
		}
		if wrapped.status >= 400 && len(wrapped.body) > 0 {
			if errCode, errMsg := extractErrorDetails(wrapped.body); errCode != "" || errMsg != "" {
				attrs = append(attrs, "error_code", errCode, "error", errMsg)
			}
		}
		if wrapped.status >= 400 && requestBody != "" {
			attrs = append(attrs, "request_body", prepareRequestBodyForLog(requestBody))
		}

		logAtStatus(wrapped.status, "request completed", attrs...)
	})
}

// logAtStatus picks the slog level from the response status, the way
// internal/queue and internal/db log their own outcomes.
func logAtStatus(status int, msg string, attrs ...any) {
	switch {
	case status >= 500:
		slog.Error(msg, attrs...)
	case status >= 400:
		slog.Warn(msg, attrs...)
	default:
		slog.Info(msg, attrs...)
	}
}

// errorResponse mirrors internal/httpresponse's error envelope shape.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// extractErrorDetails extracts error code and message from a JSON response
// body. Returns empty strings if the body isn't valid JSON or doesn't match
// the expected structure.
func extractErrorDetails(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		bodyStr := string(body)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return "", bodyStr
	}

	return resp.Error.Code, resp.Error.Message
}

// RedactSensitiveData redacts sensitive data from a string value. It
// handles tenant API keys (storefront_xxx, app_xxx, custom_xxx, dev_xxx),
// Bearer tokens, and JWTs.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	if strings.HasPrefix(value, bearerPrefix) {
		return bearerPrefix + "***REDACTED***"
	}

	for _, prefix := range apiKeyPrefixes {
		if strings.HasPrefix(value, prefix) {
			return prefix + "***REDACTED***"
		}
	}

	if jwtRegex.MatchString(value) {
		return "***REDACTED***"
	}

	return value
}

// RedactURLPath redacts sensitive query parameters (api_key, token,
// access_token, ...) from a URL path before it reaches a log line.
func RedactURLPath(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	if u.RawQuery == "" {
		return path
	}

	query := u.Query()
	modified := false
	for _, param := range sensitiveParams {
		if query.Has(param) {
			query.Set(param, "***REDACTED***")
			modified = true
		}
	}
	if !modified {
		return path
	}

	u.RawQuery = query.Encode()
	return u.String()
}

// sensitiveBodyFields lists JSON field names that contain secrets. Values
// of these fields are redacted in request body logs.
var sensitiveBodyFields = []string{
	"password",
	"api_key",
	"apikey",
	"token",
	"access_token",
	"refresh_token",
	"secret",
	"credential",
	"credentials",
}

// maxRequestBodyLogSize is the maximum size of request body logged, post
// redaction (1KB).
const maxRequestBodyLogSize = 1024

// prepareRequestBodyForLog redacts sensitive fields and truncates the body.
func prepareRequestBodyForLog(body string) string {
	redacted := RedactRequestBody(body)
	if len(redacted) > maxRequestBodyLogSize {
		return redacted[:maxRequestBodyLogSize] + "...[truncated]"
	}
	return redacted
}

// RedactRequestBody redacts sensitive fields from a JSON request body.
// Fields like password, api_key, and token have their values replaced with
// ***REDACTED***.
func RedactRequestBody(body string) string {
	if body == "" {
		return body
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return body
	}

	redactMapValues(data)

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return string(result)
}

// redactMapValues recursively redacts sensitive field values in a map.
func redactMapValues(data map[string]interface{}) {
	for key, value := range data {
		if isSensitiveField(key) {
			data[key] = "***REDACTED***"
			continue
		}

		switch v := value.(type) {
		case map[string]interface{}:
			redactMapValues(v)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					redactMapValues(m)
				}
			}
		}
	}
}

// isSensitiveField checks if a field name is sensitive (case-insensitive).
func isSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveBodyFields {
		if lowerField == sensitive {
			return true
		}
	}
	return false
}
