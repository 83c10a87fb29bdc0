package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"resumatch/internal/config"
	matchErrors "resumatch/internal/errors"
	"resumatch/internal/types"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider talks to the OpenRouter chat completions API.
type OpenRouterProvider struct {
	client       *resty.Client
	config       *config.OperationAIConfig
	callBreaker  *HTTPCircuitBreaker
	modelBreaker *HTTPCircuitBreaker
	logger       *matchErrors.Logger
}

var _ AIProvider = (*OpenRouterProvider)(nil)

// NewOpenRouterProvider builds an OpenRouter-backed provider for one operation.
func NewOpenRouterProvider(cfg *config.OperationAIConfig, operationType string, logger *matchErrors.Logger) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, matchErrors.NewAuthError(matchErrors.ErrCodeMissingAPIKey,
			"OpenRouter API key is not configured", nil)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterDefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(*cfg.Timeout)

	return &OpenRouterProvider{
		client:       client,
		config:       cfg,
		callBreaker:  NewHTTPCircuitBreaker(operationType, cfg, logger),
		modelBreaker: NewHTTPModelCircuitBreaker(operationType, cfg, logger),
		logger:       logger,
	}, nil
}

// AnalyzeMatch runs one resume-vs-job-description analysis through the chat
// completions endpoint and returns the raw model output with token usage
func (o *OpenRouterProvider) AnalyzeMatch(ctx context.Context, input types.MatchInput) (*types.ModelResponse, error) {
	ctx, span := startAnalysisSpan(ctx, "openrouter", o.config, input)
	defer span.End()

	requestBody := o.completionRequest(input)

	resp, err := o.callBreaker.Execute(func() (*resty.Response, error) {
		return withRetry(ctx, o.logger, "analyze_match", *o.config.MaxRetries, retryableOpenRouterError,
			func() (*resty.Response, error) {
				return o.post(ctx, "/chat/completions", requestBody)
			})
	})
	if err != nil {
		failAnalysisSpan(span, err)
		return nil, o.classifyError("analyze_match", err)
	}

	response := o.parseCompletion(resp.String())
	finishAnalysisSpan(span, response)
	return response, nil
}

// completionRequest assembles the chat completions body, asking for a JSON
// object back and attaching whichever generation knobs are set.
func (o *OpenRouterProvider) completionRequest(input types.MatchInput) map[string]any {
	userPrompt := analyzeUserPrompt(o.config, input.JobDescription, input.ResumeText)

	messages := make([]map[string]string, 0, 2)
	if *o.config.UseSystemPrompts {
		if sys := analyzeSystemPrompt(o.config); sys != "" {
			messages = append(messages, map[string]string{"role": "system", "content": sys})
		}
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})

	body := map[string]any{
		"model":           o.config.Model,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
	}
	if *o.config.Temperature > 0 {
		body["temperature"] = *o.config.Temperature
	}
	if o.config.MaxTokens != nil && *o.config.MaxTokens > 0 {
		body["max_tokens"] = *o.config.MaxTokens
	}
	return body
}

// post issues one authenticated request, converting non-2xx replies into
// apiStatusError so retry and classification can switch on the status.
func (o *OpenRouterProvider) post(ctx context.Context, path string, body any) (*resty.Response, error) {
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+o.config.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return resp, newAPIStatusError(resp)
	}
	return resp, nil
}

// parseCompletion pulls the message content, model name, and token counts out
// of a chat completions reply.
func (o *OpenRouterProvider) parseCompletion(raw string) *types.ModelResponse {
	content := gjson.Get(raw, "choices.0.message.content").String()
	if content == "" {
		o.logger.Warn("OpenRouter response carried no message content",
			"model", o.config.Model,
			"body", truncateForLog(raw))
	}

	model := gjson.Get(raw, "model").String()
	if model == "" {
		model = o.config.Model
	}

	return &types.ModelResponse{
		Text:  content,
		Model: model,
		Usage: types.TokenUsage{
			InputTokens:  int32(gjson.Get(raw, "usage.prompt_tokens").Int()),
			OutputTokens: int32(gjson.Get(raw, "usage.completion_tokens").Int()),
			TotalTokens:  int32(gjson.Get(raw, "usage.total_tokens").Int()),
		},
	}
}

// GetModelInfo checks that the configured model is listed by OpenRouter
func (o *OpenRouterProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: o.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	resp, err := o.modelBreaker.Execute(func() (*resty.Response, error) {
		resp, err := o.client.R().
			SetContext(checkCtx).
			SetHeader("Authorization", "Bearer "+o.config.APIKey).
			Get("/models")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, newAPIStatusError(resp)
		}
		return resp, nil
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		o.logger.Warn("Could not verify model availability",
			"model", o.config.Model,
			"provider", o.config.Provider,
			"error", err.Error())
		return info
	}

	entry := gjson.Get(resp.String(), fmt.Sprintf(`data.#(id==%q)`, o.config.Model))
	if !entry.Exists() {
		info.Error = fmt.Sprintf("Model %s is not listed by OpenRouter", o.config.Model)
		return info
	}

	info.Available = true
	info.DisplayName = entry.Get("name").String()

	o.logger.Debug("Model is available",
		"model", o.config.Model,
		"provider", o.config.Provider,
		"display_name", info.DisplayName)

	return info
}

// retryableOpenRouterError reports whether another attempt could plausibly
// succeed. Network trouble always qualifies; status errors only when they
// are throttling or server-side.
func retryableOpenRouterError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var statusErr *apiStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// classifyError maps a failed OpenRouter call onto the error taxonomy callers
// switch on for exit codes and HTTP status mapping
func (o *OpenRouterProvider) classifyError(operation string, err error) error {
	var statusErr *apiStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return matchErrors.NewAuthError(matchErrors.ErrCodeAPIKeyRejected,
				"OpenRouter rejected the configured API key", err)
		case http.StatusTooManyRequests:
			return matchErrors.NewRateLimitError(matchErrors.ErrCodeRateLimited,
				"OpenRouter rate limit exceeded", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamTimeout,
			fmt.Sprintf("OpenRouter request timed out during %s", operation), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamTimeout,
			fmt.Sprintf("OpenRouter request timed out during %s", operation), err)
	}

	return matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamFailed,
		fmt.Sprintf("OpenRouter request failed during %s", operation), err)
}

// GetCircuitBreakerStats reports both breakers plus a combined health flag.
func (o *OpenRouterProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    o.callBreaker.GetStats(),
		"model_operations": o.modelBreaker.GetStats(),
		"overall_healthy":  o.callBreaker.IsHealthy() && o.modelBreaker.IsHealthy(),
	}
}

// Close implements AIProvider. Resty keeps no state that needs closing.
func (o *OpenRouterProvider) Close() error {
	return nil
}

// apiStatusError carries the HTTP status of a non-2xx OpenRouter reply so the
// retry and classification logic can switch on it
type apiStatusError struct {
	status  int
	message string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("openrouter returned status %d: %s", e.status, e.message)
}

// newAPIStatusError builds an apiStatusError from an error response, preferring
// the API's own error message over the raw body
func newAPIStatusError(resp *resty.Response) *apiStatusError {
	body := resp.String()
	message := gjson.Get(body, "error.message").String()
	if message == "" {
		message = truncateForLog(body)
	}
	return &apiStatusError{status: resp.StatusCode(), message: message}
}

// truncateForLog shortens a response body for log and error output
func truncateForLog(body string) string {
	const limit = 200
	if len(body) <= limit {
		return body
	}
	return body[:limit] + "..."
}
