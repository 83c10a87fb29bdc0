package server

import (
	"context"
	"net/http"
	"strings"

	resumatchErrors "resumatch/internal/errors"
	"resumatch/internal/observability"

	"github.com/google/uuid"
)

// contextKey is the type for request-scoped values set by middleware
type contextKey string

const requestIDKey contextKey = "request_id"

// routes wires handlers to paths. Health and stats stay open; the
// analysis endpoints run behind the full middleware chain.
func (s *Server) routes(om *observability.Manager) *http.ServeMux {
	rateLimited := s.createRateLimitMiddleware(om)

	// Outermost to innermost: request ID tagging, rate limiting,
	// authentication, body size cap.
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return s.requestIDMiddleware(rateLimited(s.authMiddleware(s.limitRequestBody(h))))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", s.requestIDMiddleware(s.healthHandler))
	mux.HandleFunc("/api/v1/stats", s.requestIDMiddleware(s.statsHandler))
	mux.HandleFunc("/api/v1/analyze", protected(s.createAnalyzeHandler(om)))
	mux.HandleFunc("/api/v1/extract", protected(s.createExtractHandler(om)))
	mux.HandleFunc("/api/v1/keywords", protected(s.createKeywordsHandler(om)))
	return mux
}

// requestIDMiddleware assigns each request an ID, honoring one supplied by
// the client, and echoes it in the X-Request-ID response header
func (s *Server) requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)

		next(w, r.WithContext(ctx))
	}
}

// RequestIDFromContext returns the request ID set by the middleware, or an
// empty string when none is present
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// authMiddleware rejects requests that lack a recognized API key. With no
// keys configured the server runs open and everything passes through.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := clientAPIKey(r)
		switch {
		case apiKey == "":
			s.Logger.Info("Authentication failed: no credentials presented",
				"endpoint", r.URL.Path, "client_ip", r.RemoteAddr,
				"request_id", RequestIDFromContext(r.Context()))
			s.writeAppError(w, resumatchErrors.NewAuthError(resumatchErrors.ErrCodeMissingAPIKey,
				"X-API-Key header or Authorization Bearer token required", nil))

		case !s.APIKeys[apiKey]:
			s.Logger.Info("Authentication failed: key not recognized",
				"endpoint", r.URL.Path, "client_ip", r.RemoteAddr,
				"api_key_prefix", maskKey(apiKey), "request_id", RequestIDFromContext(r.Context()))
			s.writeAppError(w, resumatchErrors.NewAuthError(resumatchErrors.ErrCodeAPIKeyRejected,
				"Invalid API key", nil))

		default:
			s.Logger.Debug("Request authenticated",
				"endpoint", r.URL.Path, "client_ip", r.RemoteAddr, "api_key_prefix", maskKey(apiKey))
			next(w, r)
		}
	}
}

// clientAPIKey pulls the credential from the X-API-Key header, falling
// back to a bearer token in the Authorization header.
func clientAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

// limitRequestBody caps the request body when a maximum size is set. The
// cap surfaces to handlers as an http.MaxBytesError during decoding.
func (s *Server) limitRequestBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
		}
		next(w, r)
	}
}

// maskKey keeps the first eight characters of a key for log
// correlation and hides the rest.
func maskKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
