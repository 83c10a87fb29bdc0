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

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiProvider talks to Google Gemini through the genai SDK.
type GeminiProvider struct {
	client       *genai.Client
	config       *config.OperationAIConfig
	callBreaker  *AICircuitBreaker
	modelBreaker *ModelCircuitBreaker
	logger       *matchErrors.Logger
}

var _ AIProvider = (*GeminiProvider)(nil)

// NewGeminiProvider builds a Gemini-backed provider for one operation.
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *matchErrors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, matchErrors.NewAuthError(matchErrors.ErrCodeMissingAPIKey,
			"Gemini API key is not configured", nil)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: *cfg.Timeout},
	})
	if err != nil {
		return nil, matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:       client,
		config:       cfg,
		callBreaker:  NewAICircuitBreaker(operationType, cfg, logger),
		modelBreaker: NewModelCircuitBreaker(operationType, cfg, logger),
		logger:       logger,
	}, nil
}

// AnalyzeMatch runs one resume-vs-job-description analysis and returns the raw
// model output together with the token usage reported for the call
func (g *GeminiProvider) AnalyzeMatch(ctx context.Context, input types.MatchInput) (*types.ModelResponse, error) {
	ctx, span := startAnalysisSpan(ctx, "gemini", g.config, input)
	defer span.End()

	genCfg := g.analysisRequestConfig()
	if *g.config.UseSystemPrompts {
		if sys := analyzeSystemPrompt(g.config); sys != "" {
			genCfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
		}
	}
	userPrompt := analyzeUserPrompt(g.config, input.JobDescription, input.ResumeText)

	result, err := g.callBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return withRetry(ctx, g.logger, "analyze_match", *g.config.MaxRetries, retryableGeminiError,
			func() (*genai.GenerateContentResponse, error) {
				return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genCfg)
			})
	})
	if err != nil {
		failAnalysisSpan(span, err)
		return nil, g.classifyError("analyze_match", err)
	}

	response := &types.ModelResponse{
		Text:  result.Text(),
		Model: g.config.Model,
		Usage: geminiTokenUsage(result),
	}
	finishAnalysisSpan(span, response)
	return response, nil
}

// GetModelInfo probes whether the configured model is reachable and fills in
// whatever metadata Gemini reports about it.
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Could not verify model availability",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version

	g.logger.Debug("Model is available",
		"model", g.config.Model,
		"provider", g.config.Provider,
		"display_name", info.DisplayName,
		"version", info.Version)

	return info
}

// retryableGeminiError reports whether another attempt could plausibly
// succeed. Network trouble always qualifies; API errors only when they are
// throttling or server-side.
func retryableGeminiError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
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

// classifyError maps a failed Gemini call onto the error taxonomy callers
// switch on for exit codes and HTTP status mapping
func (g *GeminiProvider) classifyError(operation string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return matchErrors.NewAuthError(matchErrors.ErrCodeAPIKeyRejected,
				"Gemini rejected the configured API key", err)
		case http.StatusTooManyRequests:
			return matchErrors.NewRateLimitError(matchErrors.ErrCodeRateLimited,
				"Gemini rate limit exceeded", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamTimeout,
			fmt.Sprintf("Gemini request timed out during %s", operation), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamTimeout,
			fmt.Sprintf("Gemini request timed out during %s", operation), err)
	}

	return matchErrors.NewUpstreamError(matchErrors.ErrCodeUpstreamFailed,
		fmt.Sprintf("Gemini request failed during %s", operation), err)
}

// GetCircuitBreakerStats reports both breakers plus a combined health flag.
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.callBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetModelStats(),
		"overall_healthy":  g.callBreaker.IsHealthy() && g.modelBreaker.IsModelHealthy(),
	}
}

// Close implements AIProvider. The genai client holds nothing that needs
// closing in single-shot use.
func (g *GeminiProvider) Close() error {
	return nil
}

// analysisRequestConfig builds the generation settings for a match analysis.
// The response schema mirrors the JSON object the analyze prompt asks for.
func (g *GeminiProvider) analysisRequestConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"ats_score":        {Type: genai.TypeInteger},
				"missing_keywords": stringListSchema(),
				"feedback":         {Type: genai.TypeString},
				"extracted_skills": stringListSchema(),
				"contact_info": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"emails":        stringListSchema(),
						"phone_numbers": stringListSchema(),
					},
					Required: []string{"emails", "phone_numbers"},
				},
			},
			Required: []string{"ats_score", "missing_keywords", "feedback", "extracted_skills", "contact_info"},
		},
	}

	if *g.config.Temperature > 0 {
		cfg.Temperature = g.config.Temperature
	}
	if g.config.MaxTokens != nil && *g.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = *g.config.MaxTokens
	}

	return cfg
}

// stringListSchema is the schema for a JSON array of strings.
func stringListSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

// geminiTokenUsage reads usage metadata off a response, tolerating its absence.
func geminiTokenUsage(result *genai.GenerateContentResponse) types.TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return types.TokenUsage{}
	}
	return types.TokenUsage{
		InputTokens:  result.UsageMetadata.PromptTokenCount,
		OutputTokens: result.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  result.UsageMetadata.TotalTokenCount,
	}
}
