// Package http provides the HTTP servers of the cost manager services.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the single place where domain errors become status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"costmanager/internal/core"
	"costmanager/internal/log"
)

// JSONResponseBuilder provides a fluent API for building responses.
type JSONResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	contentType string
	value       any
	raw         []byte
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode:  http.StatusOK,
		headers:     make(map[string]string),
		contentType: "application/json; charset=utf-8",
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body, encoded when the response is written.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.value = v
	b.raw = nil
	return b
}

// Text sets a plain text body.
func (b *JSONResponseBuilder) Text(s string) *JSONResponseBuilder {
	b.contentType = "text/plain; charset=utf-8"
	b.value = nil
	b.raw = []byte(s)
	return b
}

// Write sends the built response. A body that cannot be encoded turns the
// response into a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body := b.raw
	status := b.statusCode
	if b.value != nil {
		encoded, err := json.Marshal(b.value)
		if err != nil {
			encoded, _ = json.Marshal(errorBody{Error: "failed to encode response"})
			status = http.StatusInternalServerError
		}
		body = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", b.contentType)
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError is written by the rate limiter.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", "60")
}

// writeError maps err onto a status code: invalid requests and conflicts
// are 400, missing resources 404, everything else 500. The error text is
// returned to the caller as is.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())

	switch {
	case errors.Is(err, core.ErrInvalidRequest), errors.Is(err, core.ErrConflict):
		logger.WarnContext(r.Context(), "Rejected request",
			log.FieldError, err.Error(),
			log.FieldErrorType, errorType(err))
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	default:
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, errorType(err))
		InternalServerError(err.Error()).Write(w)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrConflict):
		return log.ErrorTypeConflict
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	default:
		return log.ErrorTypeInternal
	}
}
