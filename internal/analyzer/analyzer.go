package analyzer

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resumatch/internal/ai"
	"resumatch/internal/config"
	"resumatch/internal/errors"
	"resumatch/internal/extract"
	"resumatch/internal/keywords"
	"resumatch/internal/parse"
	"resumatch/internal/types"
)

// Analyzer runs the resume-vs-job-description pipeline: PDF extraction, one
// model call, response parsing, and result composition. Nothing is kept
// between calls; every analysis is a fresh request.
type Analyzer struct {
	provider  ai.AIProvider
	extractor *extract.Extractor
	deriver   *keywords.Deriver
	logger    *errors.Logger
}

// New assembles an analyzer from its parts. Tests inject a fake provider here.
func New(provider ai.AIProvider, extractor *extract.Extractor, deriver *keywords.Deriver, logger *errors.Logger) *Analyzer {
	return &Analyzer{
		provider:  provider,
		extractor: extractor,
		deriver:   deriver,
		logger:    logger,
	}
}

// NewFromConfig wires an analyzer from application configuration, creating
// the AI service for the analyze operation
func NewFromConfig(cfg *config.Config, logger *errors.Logger) (*Analyzer, error) {
	operationCfg := cfg.GetAnalyzeConfig()
	service, err := ai.NewService(&operationCfg, "analyze", logger)
	if err != nil {
		return nil, err
	}

	return New(
		service.Provider,
		extract.NewExtractor(cfg.Extraction.MaxPDFSize, cfg.Extraction.MinTextChars),
		keywords.NewDeriver(cfg.Keywords.MinWordLength, cfg.Keywords.ExtraStopwords),
		logger,
	), nil
}

// Analyze runs the full pipeline on a resume PDF and a job description
func (a *Analyzer) Analyze(ctx context.Context, resumeBytes []byte, jobDescription string) (*types.AnalysisResult, error) {
	if len(resumeBytes) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Resume document is required", nil)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Job description is required", nil)
	}

	extraction, err := a.extractor.Extract(resumeBytes)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Resume text extracted",
		"chars", extraction.Chars,
		"pages", extraction.Pages)

	return a.AnalyzeText(ctx, extraction.Text, jobDescription)
}

// AnalyzeText runs the pipeline on resume text that is already plain text,
// skipping extraction. The HTTP JSON mode and tests enter here directly.
func (a *Analyzer) AnalyzeText(ctx context.Context, resumeText, jobDescription string) (*types.AnalysisResult, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Resume text is required", nil)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Job description is required", nil)
	}

	tracer := otel.Tracer("resumatch.analyzer")
	ctx, span := tracer.Start(ctx, "analyzer.analyze")
	defer span.End()

	span.SetAttributes(
		attribute.Int("input.resume_chars", len(resumeText)),
		attribute.Int("input.job_chars", len(jobDescription)),
	)

	response, err := a.provider.AnalyzeMatch(ctx, types.MatchInput{
		ResumeText:     resumeText,
		JobDescription: jobDescription,
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, err
	}

	result := a.compose(response, resumeText, jobDescription)

	span.SetAttributes(
		attribute.Bool("result.score_present", result.MatchScore != nil),
		attribute.Int("result.missing_keywords", len(result.MissingKeywords)),
		attribute.Bool("success", true),
	)

	a.logger.Info("Analysis completed",
		"model", result.Model,
		"score_present", result.MatchScore != nil,
		"missing_keywords", len(result.MissingKeywords),
		"total_tokens", result.Usage.TotalTokens)

	return result, nil
}

// compose builds the analysis result from the raw model response. A response
// with no usable fields degrades instead of failing: the truncated raw text
// becomes the feedback, and keywords fall back to the local deriver, the same
// way the original surface showed whatever the model sent.
func (a *Analyzer) compose(response *types.ModelResponse, resumeText, jobDescription string) *types.AnalysisResult {
	result := &types.AnalysisResult{
		ResumeChars: len(resumeText),
		Model:       response.Model,
		Usage:       response.Usage,
	}

	report, err := parse.Report(response.Text)
	if err != nil {
		a.logger.Warn("Model response had no parsable fields, degrading to raw text",
			"model", response.Model,
			"response_chars", len(response.Text))
		result.FeedbackText = parse.Preview(response.Text)
	} else {
		result.MatchScore = report.Score
		result.FeedbackText = report.Feedback
		result.MissingKeywords = uniqueSorted(report.MissingKeywords)
		result.ExtractedSkills = report.ExtractedSkills
	}

	if len(result.MissingKeywords) == 0 {
		result.MissingKeywords = a.deriver.Missing(jobDescription, resumeText)
		if len(result.MissingKeywords) > 0 {
			a.logger.Debug("Missing keywords derived locally",
				"count", len(result.MissingKeywords))
		}
	}

	// The resume text itself is the authority on contact details; the model's
	// claims fill in only when the regexes find nothing
	result.ContactEmail = parse.Email(resumeText)
	if result.ContactEmail == "" && report != nil && len(report.Contact.Emails) > 0 {
		result.ContactEmail = report.Contact.Emails[0]
	}
	result.ContactPhone = parse.Phone(resumeText)
	if result.ContactPhone == "" && report != nil && len(report.Contact.PhoneNumbers) > 0 {
		result.ContactPhone = report.Contact.PhoneNumbers[0]
	}

	return result
}

// Close releases the underlying provider resources
func (a *Analyzer) Close() error {
	return a.provider.Close()
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
