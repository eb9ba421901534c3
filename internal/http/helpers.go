package http

import (
	"errors"
	"net/http"
	"strings"

	"landledger/internal/auth"
	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/services"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// writeError maps a service error onto the API's status codes. Unexpected
// errors are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(verr).Write(w)
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrInvalidInput):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Agreement not found").Write(w)
	case errors.Is(err, services.ErrUserNotFound):
		UnauthorizedError("User not found").Write(w)
	case errors.Is(err, auth.ErrInvalidToken):
		UnauthorizedError("Invalid or expired token").Write(w)
	case errors.Is(err, auth.ErrInvalidCredentials):
		UnauthorizedError("Invalid username or password").Write(w)
	case errors.Is(err, services.ErrUsernameTaken):
		BadRequestError("Username already exists").Write(w)
	case errors.Is(err, services.ErrWeakPassword), errors.Is(err, services.ErrEmptyUsername):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		InternalServerError().Write(w)
	}
}
