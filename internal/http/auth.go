package http

import (
	"context"
	"net/http"

	"landledger/internal/core"
	applog "landledger/internal/log"
)

type userContextKey struct{}

// requireUser rejects requests without a valid bearer token and stores the
// resolved user in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present := bearerToken(r)
		if !present {
			UnauthorizedError("Missing Authorization header").Write(w)
			return
		}
		if token == "" {
			UnauthorizedError("Invalid or expired token").Write(w)
			return
		}
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		logger := applog.FromContext(ctx).With(applog.FieldUsername, user.Username)
		ctx = applog.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the user resolved by requireUser.
func currentUser(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(core.User)
	return u, ok
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := DecodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.auth.Register(r.Context(), sanitizeInput(body.Username), body.Password); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("User registered successfully").Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := DecodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.auth.Login(r.Context(), sanitizeInput(body.Username), body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(token).Write(w)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := DecodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message(s.auth.ForgotPassword(r.Context(), sanitizeInput(body.Username))).Write(w)
}
