package ai

import (
	"context"

	"resumatch/internal/config"
	"resumatch/internal/errors"
)

// Service is the entry point for one AI-backed operation. The provider
// is exported so the server can reach provider-specific surfaces such
// as circuit breaker stats.
type Service struct {
	Provider AIProvider
	config   *config.OperationAIConfig
	logger   *errors.Logger
}

// NewService builds the provider named by the operation's configuration.
func NewService(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*Service, error) {
	logger.Debug("Building AI provider",
		"provider", cfg.Provider, "model", cfg.Model, "operation_type", operationType,
		"timeout", *cfg.Timeout, "max_retries", *cfg.MaxRetries,
		"temperature", *cfg.Temperature, "use_system_prompts", *cfg.UseSystemPrompts)

	provider, err := newProvider(cfg, operationType, logger)
	if err != nil {
		// Provider constructors return classified errors already.
		return nil, err
	}

	return &Service{Provider: provider, config: cfg, logger: logger}, nil
}

func newProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(cfg, operationType, logger)
	case "openrouter":
		return NewOpenRouterProvider(cfg, operationType, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Unsupported AI provider: "+cfg.Provider, nil)
	}
}

// GetModelInfo exposes the provider's model details for health checks.
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases provider resources.
func (s *Service) Close() error {
	return s.Provider.Close()
}
