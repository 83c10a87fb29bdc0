package ai

import (
	"context"

	"resumatch/internal/types"
)

// AIProvider interface for different AI implementations.
// AnalyzeMatch returns the raw model output; interpreting it is the caller's concern.
type AIProvider interface {
	AnalyzeMatch(ctx context.Context, input types.MatchInput) (*types.ModelResponse, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
