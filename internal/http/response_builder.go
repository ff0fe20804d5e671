package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finwiz/internal/analytics"
	applog "finwiz/internal/log"
	"finwiz/internal/services"
	"finwiz/internal/store"
)

// Error codes carried in the "code" field of error bodies.
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeInvalidInput     = "invalid_input"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
	CodeUnavailable      = "unavailable"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSONResponseBuilder builds a JSON response with a fluent API.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
	raw        []byte
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Raw sets an already encoded body, as served from the analytics cache.
func (b *JSONResponseBuilder) Raw(body []byte) *JSONResponseBuilder {
	b.raw = body
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	body := b.raw
	if body == nil && b.data != nil {
		encoded, err := json.Marshal(b.data)
		if err != nil {
			slog.Error("Failed to encode response", "error", err)
			b.statusCode = http.StatusInternalServerError
			encoded, _ = json.Marshal(errorBody{Error: "internal error", Code: CodeInternal})
		}
		body = encoded
	}

	if body != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if body != nil {
		_, _ = w.Write(body)
		_, _ = w.Write([]byte("\n"))
	}
}

func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(errorBody{Error: message, Code: code})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeInvalidArgument, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later")
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported without their details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidArgument):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, services.ErrInvalidInput):
		ErrorResponse(http.StatusUnprocessableEntity, CodeInvalidInput, err.Error()).Write(w)
	case errors.Is(err, store.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal error").Write(w)
	}
}
