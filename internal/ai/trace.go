package ai

import (
	"context"

	"resumatch/internal/config"
	"resumatch/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startAnalysisSpan opens the span for one analysis call and tags it with
// the request shape. provider is the lowercase provider name.
func startAnalysisSpan(ctx context.Context, provider string, cfg *config.OperationAIConfig, input types.MatchInput) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("resumatch.ai." + provider).Start(ctx, provider+".analyze_match")
	span.SetAttributes(
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", cfg.Model),
		attribute.Float64("ai.temperature", float64(*cfg.Temperature)),
		attribute.Int("input.resume_length", len(input.ResumeText)),
		attribute.Int("input.job_length", len(input.JobDescription)),
	)
	return ctx, span
}

// finishAnalysisSpan marks the span successful and attaches the token usage
// the provider reported.
func finishAnalysisSpan(span trace.Span, resp *types.ModelResponse) {
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", int64(resp.Usage.InputTokens)),
		attribute.Int64("ai.tokens.output", int64(resp.Usage.OutputTokens)),
		attribute.Int64("ai.tokens.total", int64(resp.Usage.TotalTokens)),
		attribute.Int("output.length", len(resp.Text)),
		attribute.Bool("success", true),
	)
}

// failAnalysisSpan records the error and flags the span unsuccessful.
func failAnalysisSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("success", false))
}
