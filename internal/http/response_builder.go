// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses, including the
// {"detail": ...} error envelope every API error uses.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"landledger/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	payload     any
	raw         []byte
	contentType string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode:  http.StatusOK,
		headers:     make(map[string]string),
		contentType: "application/json",
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

// JSON sets a value to be encoded as the body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	b.raw = nil
	return b
}

// Raw sets an already encoded body.
func (b *JSONResponseBuilder) Raw(body []byte, contentType string) *JSONResponseBuilder {
	b.raw = body
	b.payload = nil
	if contentType != "" {
		b.contentType = contentType
	}
	return b
}

// Message sets a {"message": msg} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.JSON(map[string]string{"message": msg})
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body := b.raw
	if b.payload != nil {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			slog.Error("Failed to encode response", "error", err)
			b.statusCode = http.StatusInternalServerError
			encoded = []byte(`{"detail":"Internal server error"}`)
		}
		body = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(body) > 0 {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorResponse creates a {"detail": detail} error response.
func ErrorResponse(statusCode int, detail string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(map[string]string{"detail": detail})
}

// FieldDetail is one entry of a validation error list.
type FieldDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationErrorResponse lists every rejected field with status 422.
func ValidationErrorResponse(err *core.ValidationError) *JSONResponseBuilder {
	details := make([]FieldDetail, 0, len(err.Fields))
	for _, f := range err.Fields {
		details = append(details, FieldDetail{
			Loc:  []string{"body", f.Field},
			Msg:  f.Message,
			Type: "value_error",
		})
	}
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(map[string]any{"detail": details})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, detail)
}

// UnauthorizedError creates a 401 response with a bearer challenge.
func UnauthorizedError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, detail).
		Header("WWW-Authenticate", "Bearer")
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, detail)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, detail)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}
