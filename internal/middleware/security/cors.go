package security

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// CORSConfig lists the browser origins allowed to call the API. "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORS answers preflight requests with 204 and tags responses for allowed
// origins. Requests from other origins pass through without CORS headers.
// Credentials are allowed only for an explicit origin list, never for "*".
// An empty origin list allows no origin.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:       cfg.AllowedOrigins,
		AllowedMethods:       cfg.AllowedMethods,
		AllowedHeaders:       cfg.AllowedHeaders,
		MaxAge:               cfg.MaxAge,
		AllowCredentials:     !slices.Contains(cfg.AllowedOrigins, "*"),
		OptionsSuccessStatus: http.StatusNoContent,
	}
	if len(cfg.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(opts).Handler
}
