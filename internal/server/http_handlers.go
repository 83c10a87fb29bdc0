package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	resumatchErrors "resumatch/internal/errors"
)

// Expiry buckets for the certificate section of the health report.
const (
	certCriticalWindow = 24 * time.Hour
	certWarningWindow  = 7 * 24 * time.Hour
)

// healthHandler reports overall service health: AI model reachability,
// circuit breaker state and, when TLS is managed, certificate status.
// Any unhealthy section degrades the whole report to a 503.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	aiStatus, aiHealthy := s.checkAIModelHealth()
	breakerStatus, breakerHealthy := s.checkCircuitBreakerHealth()

	response := map[string]any{
		"status":           "healthy",
		"service":          "resumatch",
		"version":          s.Version,
		"ai_model":         aiStatus,
		"circuit_breakers": breakerStatus,
	}

	healthy := aiHealthy && breakerHealthy
	if certStatus := s.certHealth(); certStatus != nil {
		response["certificates"] = certStatus
		if ok, present := certStatus["healthy"].(bool); present && !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, response)
}

// checkAIModelHealth probes the configured model through the long-lived
// AI service so the check observes the same provider the handlers use
func (s *Server) checkAIModelHealth() (map[string]any, bool) {
	if s.AIService == nil {
		return map[string]any{
			"available": false,
			"error":     "AI service not initialized",
		}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.AppConfig.Observability.HealthCheck.Timeout)
	defer cancel()

	modelInfo := s.AIService.GetModelInfo(ctx)
	status := map[string]any{
		"name":      modelInfo.Name,
		"available": modelInfo.Available,
	}
	if modelInfo.DisplayName != "" {
		status["display_name"] = modelInfo.DisplayName
	}
	if modelInfo.Version != "" {
		status["version"] = modelInfo.Version
	}
	if modelInfo.Error != "" {
		status["error"] = modelInfo.Error
	}

	return status, modelInfo.Available
}

// checkCircuitBreakerHealth reports the provider's circuit breaker state.
// An open breaker marks the service degraded since analyze requests would
// fail immediately.
func (s *Server) checkCircuitBreakerHealth() (map[string]any, bool) {
	if s.AIService == nil {
		return map[string]any{
			"available": false,
			"error":     "AI service not initialized",
		}, false
	}

	provider, ok := s.AIService.Provider.(interface{ GetCircuitBreakerStats() map[string]any })
	if !ok {
		return map[string]any{
			"available": false,
			"message":   "Provider does not expose circuit breaker state",
		}, true
	}

	stats := provider.GetCircuitBreakerStats()
	stats["available"] = true

	healthy := true
	if overall, ok := stats["overall_healthy"].(bool); ok {
		healthy = overall
	}

	return stats, healthy
}

// certHealth summarizes certificate expiry, watcher state and
// reload metrics. Returns nil when no certificate manager is active.
func (s *Server) certHealth() map[string]any {
	if s.CertificateManager == nil {
		return nil
	}

	ttl, err := s.CertificateManager.CheckExpiry()
	if err != nil {
		return map[string]any{
			"healthy": false,
			"error":   fmt.Sprintf("Failed to check certificate expiry: %v", err),
		}
	}

	status, message, healthy := classifyCertExpiry(ttl)
	report := map[string]any{
		"healthy":              healthy,
		"status":               status,
		"message":              message,
		"time_to_expiry":       ttl.String(),
		"time_to_expiry_hours": int(ttl.Hours()),
		"auto_reload":          s.autoReloadStatus(),
	}

	if m := s.CertificateManager.GetMetrics(); m != nil {
		report["metrics"] = map[string]any{
			"reload_count":         m.ReloadCount,
			"reload_success_count": m.ReloadSuccessCount,
			"reload_failure_count": m.ReloadFailureCount,
			"last_reload_time":     m.LastReloadTime,
			"last_reload_success":  m.LastReloadSuccess,
			"last_reload_error":    m.LastReloadError,
		}
	}
	return report
}

// classifyCertExpiry buckets time-to-expiry into the statuses surfaced by
// the health endpoint.
func classifyCertExpiry(ttl time.Duration) (status, message string, healthy bool) {
	switch {
	case ttl <= 0:
		return "expired", "Certificate has expired", false
	case ttl <= certCriticalWindow:
		return "critical", "Certificate expires within 24 hours", false
	case ttl <= certWarningWindow:
		return "warning", "Certificate expires within 7 days", true
	default:
		return "ok", "Certificate is valid", true
	}
}

// autoReloadStatus describes the reload watchers for the health report.
func (s *Server) autoReloadStatus() map[string]any {
	if !s.TLSConfig.AutoReload.Enabled {
		return map[string]any{"enabled": false}
	}

	status := map[string]any{
		"enabled":               true,
		"file_watcher_enabled":  s.TLSConfig.AutoReload.FileWatcher.Enabled,
		"vault_watcher_enabled": s.TLSConfig.AutoReload.VaultWatcher.Enabled,
	}
	if fw := s.CertificateManager.fileWatcher; fw != nil {
		status["file_watcher_running"] = fw.Running()
		status["watched_files"] = fw.WatchedFiles()
	}
	if vw := s.CertificateManager.vaultWatcher; vw != nil {
		status["vault_watcher_status"] = vw.Status()
	}
	return status
}

// statsHandler reports uptime, per-endpoint request counters, rate limit
// state and the effective configuration with the API key masked.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.startTime)
	ac := s.AppConfig.GetAnalyzeConfig()

	response := map[string]any{
		"service":        "resumatch",
		"version":        s.Version,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"requests":       s.counters.snapshot(),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"rate_limiting": s.rateLimitStats(),
		"config": map[string]any{
			"provider":       ac.Provider,
			"model":          ac.Model,
			"api_key":        maskKey(ac.APIKey),
			"tls_mode":       s.TLSConfig.Mode,
			"default_format": s.AppConfig.App.DefaultFormat,
		},
	}
	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) rateLimitStats() map[string]any {
	if s.RateLimiter == nil {
		return map[string]any{"enabled": false}
	}
	return s.RateLimiter.GetStats()
}

// decodeJSON parses a JSON request body into the provided struct
func decodeJSON(r *http.Request, v any) error {
	mediatype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediatype != "application/json" {
		return resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
			"Content-Type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
				fmt.Sprintf("Request body too large (limit is %d bytes)", maxBytesErr.Limit), nil)
		}
		return resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
			"Failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidFormat,
			"Request body is not valid JSON", err)
	}

	return nil
}

// statusCodeFor maps the error taxonomy onto HTTP status codes
func statusCodeFor(err error) int {
	var appErr *resumatchErrors.AppError
	if !stderrors.As(err, &appErr) {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}

	switch appErr.Type {
	case resumatchErrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case resumatchErrors.ErrorTypeAuth:
		return http.StatusUnauthorized
	case resumatchErrors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case resumatchErrors.ErrorTypeExtraction:
		return http.StatusUnprocessableEntity
	case resumatchErrors.ErrorTypeParse:
		return http.StatusBadGateway
	case resumatchErrors.ErrorTypeUpstream:
		if appErr.Code == resumatchErrors.ErrCodeUpstreamTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON emits a JSON response under the given status code. The header
// goes out before the body, so encoding failures can only be logged.
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.Logger.LogError(err, "Failed to encode response")
	}
}

// writeAppError writes a structured error response with the status code
// matching the error taxonomy. Parse failures include the truncated raw
// model output so callers can see what the model actually returned.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:   string(resumatchErrors.TypeOf(err)),
		Message: err.Error(),
	}

	var appErr *resumatchErrors.AppError
	if stderrors.As(err, &appErr) {
		response.Code = appErr.Code
		response.Message = appErr.Message
		if raw, ok := appErr.Context["raw_response"].(string); ok {
			response.RawModelOutput = raw
		}
	}

	s.respondJSON(w, statusCodeFor(err), response)
}
