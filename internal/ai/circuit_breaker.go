package ai

import (
	"resumatch/internal/config"
	"resumatch/internal/errors"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// AICircuitBreaker guards Gemini generate-content calls. A nil value
// means the breaker is disabled and calls pass straight through.
type AICircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[*genai.GenerateContentResponse]
}

// ModelCircuitBreaker guards Gemini model info lookups.
type ModelCircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[*genai.Model]
}

// HTTPCircuitBreaker guards calls to HTTP-based providers.
type HTTPCircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[*resty.Response]
}

// NewAICircuitBreaker builds a breaker for generate-content calls, or
// returns nil when the breaker is disabled for this operation.
func NewAICircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *AICircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return &AICircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[*genai.GenerateContentResponse](operationSettings(operationType, cfg, logger)),
	}
}

// NewModelCircuitBreaker builds a breaker for model info lookups, or
// returns nil when the breaker is disabled.
func NewModelCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *ModelCircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return &ModelCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[*genai.Model](modelSettings(operationType, cfg, logger)),
	}
}

// NewHTTPCircuitBreaker builds a breaker for HTTP provider operations.
func NewHTTPCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *HTTPCircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return &HTTPCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[*resty.Response](operationSettings(operationType, cfg, logger)),
	}
}

// NewHTTPModelCircuitBreaker builds a breaker for HTTP model info checks.
func NewHTTPModelCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *HTTPCircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return &HTTPCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[*resty.Response](modelSettings(operationType, cfg, logger)),
	}
}

// The inner helpers make every method safe on a nil receiver, so
// callers never have to check whether a breaker was constructed.

func (cb *AICircuitBreaker) inner() *gobreaker.CircuitBreaker[*genai.GenerateContentResponse] {
	if cb == nil {
		return nil
	}
	return cb.cb
}

func (cb *ModelCircuitBreaker) inner() *gobreaker.CircuitBreaker[*genai.Model] {
	if cb == nil {
		return nil
	}
	return cb.cb
}

func (cb *HTTPCircuitBreaker) inner() *gobreaker.CircuitBreaker[*resty.Response] {
	if cb == nil {
		return nil
	}
	return cb.cb
}

// Execute runs fn under the breaker.
func (cb *AICircuitBreaker) Execute(fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	return breakerExecute(cb.inner(), fn)
}

// ExecuteModel runs a model lookup under the breaker.
func (cb *ModelCircuitBreaker) ExecuteModel(fn func() (*genai.Model, error)) (*genai.Model, error) {
	return breakerExecute(cb.inner(), fn)
}

// Execute runs an HTTP call under the breaker.
func (cb *HTTPCircuitBreaker) Execute(fn func() (*resty.Response, error)) (*resty.Response, error) {
	return breakerExecute(cb.inner(), fn)
}

// GetStats reports the breaker's name, state, and counters.
func (cb *AICircuitBreaker) GetStats() map[string]any { return breakerStats(cb.inner()) }

// GetModelStats reports the model breaker's name, state, and counters.
func (cb *ModelCircuitBreaker) GetModelStats() map[string]any { return breakerStats(cb.inner()) }

// GetStats reports the breaker's name, state, and counters.
func (cb *HTTPCircuitBreaker) GetStats() map[string]any { return breakerStats(cb.inner()) }

// IsHealthy reports whether the breaker is closed.
func (cb *AICircuitBreaker) IsHealthy() bool { return breakerClosed(cb.inner()) }

// IsModelHealthy reports whether the model breaker is closed.
func (cb *ModelCircuitBreaker) IsModelHealthy() bool { return breakerClosed(cb.inner()) }

// IsHealthy reports whether the breaker is closed.
func (cb *HTTPCircuitBreaker) IsHealthy() bool { return breakerClosed(cb.inner()) }

// operationSettings trips on the thresholds configured for the
// operation.
func operationSettings(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) gobreaker.Settings {
	return breakerSettings("AI-"+operationType, operationType, cfg, logger,
		cfg.CircuitBreaker.MinRequests, cfg.CircuitBreaker.FailureThreshold)
}

// modelSettings trips only after sustained failure. Losing model info
// costs a health detail rather than a user-facing operation.
func modelSettings(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) gobreaker.Settings {
	return breakerSettings("AI-Model-"+operationType, operationType, cfg, logger, 5, 0.8)
}

func breakerSettings(name, operationType string, cfg *config.OperationAIConfig, logger *errors.Logger, minRequests uint32, failureThreshold float64) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name, "operation_type", operationType,
				"from", from.String(), "to", to.String())
		},
	}
}

func breakerExecute[T any](cb *gobreaker.CircuitBreaker[T], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}
	return cb.Execute(fn)
}

func breakerStats[T any](cb *gobreaker.CircuitBreaker[T]) map[string]any {
	if cb == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    cb.Name(),
		"state":   cb.State().String(),
		"counts":  cb.Counts(),
		"enabled": true,
	}
}

func breakerClosed[T any](cb *gobreaker.CircuitBreaker[T]) bool {
	return cb == nil || cb.State() == gobreaker.StateClosed
}
