package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Metrics holds the service's custom instruments. A zero Metrics is
// valid; recording through nil instruments is skipped.
type Metrics struct {
	// AI operations
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Business outcomes
	ResumesAnalyzed metric.Int64Counter
	TextsExtracted  metric.Int64Counter
	KeywordReports  metric.Int64Counter
	MatchScore      metric.Int64Histogram
	ExtractedChars  metric.Int64Histogram

	// Infrastructure
	CertReloadCount metric.Int64Counter
	CertExpiryTime  metric.Float64Gauge
	RateLimitHits   metric.Int64Counter
}

// instrumentBuilder creates instruments and remembers the first error,
// so newMetrics can build the whole set without per-instrument checks.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, description string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		b.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
	return c
}

func (b *instrumentBuilder) histogram(name, description, unit string) metric.Int64Histogram {
	if b.err != nil {
		return nil
	}
	opts := []metric.Int64HistogramOption{metric.WithDescription(description)}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	h, err := b.meter.Int64Histogram(name, opts...)
	if err != nil {
		b.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
	return h
}

func (b *instrumentBuilder) seconds(name, description string) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit("s"))
	if err != nil {
		b.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
	return h
}

func (b *instrumentBuilder) secondsGauge(name, description string) metric.Float64Gauge {
	if b.err != nil {
		return nil
	}
	g, err := b.meter.Float64Gauge(name, metric.WithDescription(description), metric.WithUnit("s"))
	if err != nil {
		b.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
	return g
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	b := &instrumentBuilder{meter: meter}

	m := &Metrics{
		AIProcessingTime: b.seconds("resumatch_ai_processing_duration_seconds",
			"Time spent processing AI requests"),
		AIRequestCount: b.counter("resumatch_ai_requests_total",
			"Total number of AI requests"),
		AIErrorCount: b.counter("resumatch_ai_errors_total",
			"Total number of AI request errors"),
		AITokenUsage: b.histogram("resumatch_ai_token_usage_total",
			"Token usage for AI requests (input, output, total)", "tokens"),

		ResumesAnalyzed: b.counter("resumatch_resumes_analyzed_total",
			"Total number of resumes analyzed against a job description"),
		TextsExtracted: b.counter("resumatch_texts_extracted_total",
			"Total number of resume documents extracted"),
		KeywordReports: b.counter("resumatch_keyword_reports_total",
			"Total number of keyword reports produced"),
		MatchScore: b.histogram("resumatch_match_score",
			"Distribution of resume match scores (0-100)", ""),
		ExtractedChars: b.histogram("resumatch_extracted_chars",
			"Characters of text extracted per resume document", ""),

		CertReloadCount: b.counter("resumatch_cert_reloads_total",
			"Total number of certificate reloads"),
		CertExpiryTime: b.secondsGauge("resumatch_cert_expiry_seconds",
			"Seconds until certificate expiry"),
		RateLimitHits: b.counter("resumatch_rate_limit_hits_total",
			"Total number of rate limit hits"),
	}

	return m, b.err
}

// GetMetrics returns the custom instruments. Before initialization it
// returns an empty set whose recording methods all skip.
func (om *Manager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// AIOperationResult carries the outcome of an AI call back to the
// instrumentation wrapper.
type AIOperationResult struct {
	Error      error
	TokenUsage *TokenUsage
}

// outcome tolerates operations that return no result at all.
func (r *AIOperationResult) outcome() error {
	if r == nil {
		return nil
	}
	return r.Error
}

// TokenUsage is the token accounting reported by a provider.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// TrackAIOperationWithTokens runs fn inside a span and records duration,
// outcome, and token usage.
func (m *Metrics) TrackAIOperationWithTokens(ctx context.Context, operation string, fn func(context.Context) *AIOperationResult, om *Manager) error {
	if m.AIProcessingTime == nil {
		// Instruments were never built; run the operation untracked.
		return fn(ctx).outcome()
	}

	ctx, span := otel.Tracer("resumatch.ai").Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	elapsed := time.Since(start)
	err := result.outcome()

	if om.aiMetricsOn() {
		m.recordAIMetrics(ctx, operation, err, elapsed.Seconds(), result, om, span)
	}
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
	return err
}

func (m *Metrics) recordAIMetrics(ctx context.Context, operation string, err error, seconds float64, result *AIOperationResult, om *Manager, span oteltrace.Span) {
	attrs := []attribute.KeyValue{attribute.String("operation", operation), attribute.Bool("success", err == nil)}

	if om.trackDuration() {
		m.AIProcessingTime.Record(ctx, seconds, metric.WithAttributes(attrs...))
	}
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if result != nil && result.TokenUsage != nil {
		m.recordTokenUsage(ctx, result.TokenUsage, attrs, om, span)
	}

	span.SetAttributes(attrs...)
}

func (m *Metrics) recordTokenUsage(ctx context.Context, usage *TokenUsage, attrs []attribute.KeyValue, om *Manager, span oteltrace.Span) {
	if m.AITokenUsage != nil && om.trackTokens() {
		for kind, value := range map[string]int64{
			"input":  usage.InputTokens,
			"output": usage.OutputTokens,
			"total":  usage.TotalTokens,
		} {
			m.AITokenUsage.Record(ctx, value,
				metric.WithAttributes(append(attrs, attribute.String("token_type", kind))...))
		}
	}

	// Token counts always land on the span for debugging.
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", usage.InputTokens),
		attribute.Int64("ai.tokens.output", usage.OutputTokens),
		attribute.Int64("ai.tokens.total", usage.TotalTokens),
	)
}

// RecordBusinessMetric bumps the counter behind a named business event.
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, success bool, om *Manager, attributes ...attribute.KeyValue) {
	if !om.businessMetricsOn() {
		return
	}

	attrs := append([]attribute.KeyValue{attribute.Bool("success", success)}, attributes...)

	var counter metric.Int64Counter
	switch metricType {
	case "resume_analyzed":
		counter = m.ResumesAnalyzed
	case "text_extracted":
		counter = m.TextsExtracted
	case "keyword_report":
		counter = m.KeywordReports
	case "rate_limit_hit":
		// Rate limiting carries its own infrastructure toggle.
		if !om.trackRateLimits() {
			return
		}
		counter = m.RateLimitHits
	default:
		return
	}

	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordMatchScore records the score a completed analysis produced.
func (m *Metrics) RecordMatchScore(ctx context.Context, score int, om *Manager) {
	if m.MatchScore == nil || !om.businessMetricsOn() {
		return
	}
	m.MatchScore.Record(ctx, int64(score))
}

// RecordExtractedChars records how much text an extraction produced.
func (m *Metrics) RecordExtractedChars(ctx context.Context, chars int, om *Manager) {
	if m.ExtractedChars == nil || !om.trackContentSizes() {
		return
	}
	m.ExtractedChars.Record(ctx, int64(chars))
}

// The toggle helpers treat a missing config as everything-on, and are
// safe on a nil manager.

func (om *Manager) aiMetricsOn() bool {
	if om == nil || om.appConfig == nil {
		return true
	}
	return om.appConfig.Observability.CustomMetrics.AIOperations.Enabled
}

func (om *Manager) trackDuration() bool {
	if om == nil || om.appConfig == nil {
		return true
	}
	return om.appConfig.Observability.CustomMetrics.AIOperations.TrackDuration
}

func (om *Manager) trackTokens() bool {
	if om == nil || om.appConfig == nil {
		return true
	}
	return om.appConfig.Observability.CustomMetrics.AIOperations.TrackTokenUsage
}

func (om *Manager) businessMetricsOn() bool {
	if om == nil || om.appConfig == nil {
		return true
	}
	return om.appConfig.Observability.CustomMetrics.BusinessMetrics.Enabled
}

func (om *Manager) trackContentSizes() bool {
	if om == nil || om.appConfig == nil {
		return true
	}
	bm := om.appConfig.Observability.CustomMetrics.BusinessMetrics
	return bm.Enabled && bm.TrackContentSizes
}

func (om *Manager) trackRateLimits() bool {
	if om == nil || om.appConfig == nil {
		return true
	}
	return om.appConfig.Observability.CustomMetrics.Infrastructure.TrackRateLimits
}
