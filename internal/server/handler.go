package server

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	resumatchErrors "resumatch/internal/errors"
	"resumatch/internal/observability"
	"resumatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// apiHandler is the inner shape of the POST endpoints once the shared
// plumbing (method check, request counter, span) has run.
type apiHandler func(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request)

// instrument wires up the bookkeeping every API endpoint needs: POST-only
// enforcement, the per-endpoint counter and a span named after the
// operation.
func (s *Server) instrument(om *observability.Manager, op string, hits *atomic.Int64, h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		hits.Add(1)
		ctx, span := om.Tracer("resumatch.api").Start(r.Context(), "api."+op)
		defer span.End()
		span.SetAttributes(attribute.String("operation", op))

		h(ctx, span, w, r)
	}
}

// fail records the error on the span, counts the failure and writes the
// error response.
func (s *Server) fail(span trace.Span, w http.ResponseWriter, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.type", string(resumatchErrors.TypeOf(err))))
	s.counters.failed.Add(1)
	s.writeAppError(w, err)
}

// createAnalyzeHandler serves the resume-versus-job analysis. The endpoint
// accepts multipart/form-data (a resume PDF plus a job_description field)
// or application/json carrying resume_text.
func (s *Server) createAnalyzeHandler(om *observability.Manager) http.HandlerFunc {
	return s.instrument(om, "analyze", &s.counters.analyze,
		func(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request) {
			resumeBytes, resumeText, jobDescription, err := s.readAnalyzeRequest(r)
			if err != nil {
				s.fail(span, w, err)
				return
			}

			mode := "json"
			if len(resumeBytes) > 0 {
				mode = "multipart"
			}
			span.SetAttributes(attribute.String("request.mode", mode), attribute.Int("request.job_length", len(jobDescription)))

			var result *types.AnalysisResult
			track := func(ctx context.Context) *observability.AIOperationResult {
				var aiErr error
				if mode == "multipart" {
					result, aiErr = s.Analyzer.Analyze(ctx, resumeBytes, jobDescription)
				} else {
					result, aiErr = s.Analyzer.AnalyzeText(ctx, resumeText, jobDescription)
				}

				op := &observability.AIOperationResult{Error: aiErr}
				if result != nil {
					op.TokenUsage = &observability.TokenUsage{
						InputTokens:  int64(result.Usage.InputTokens),
						OutputTokens: int64(result.Usage.OutputTokens),
						TotalTokens:  int64(result.Usage.TotalTokens),
					}
				}
				return op
			}

			metrics := om.GetMetrics()
			if err := metrics.TrackAIOperationWithTokens(ctx, "analyze", track, om); err != nil {
				metrics.RecordBusinessMetric(ctx, "resume_analyzed", false, om, attribute.String("error", err.Error()))
				s.fail(span, w, err)
				return
			}

			metrics.RecordBusinessMetric(ctx, "resume_analyzed", true, om,
				attribute.Int("missing_keywords", len(result.MissingKeywords)),
				attribute.Int("resume_chars", result.ResumeChars))
			if result.MatchScore != nil {
				metrics.RecordMatchScore(ctx, *result.MatchScore, om)
				span.SetAttributes(attribute.Int("match.score", *result.MatchScore))
			}
			span.SetAttributes(attribute.Bool("success", true), attribute.Int("response.missing_keywords", len(result.MissingKeywords)))

			s.respondJSON(w, http.StatusOK, result)
		})
}

// createExtractHandler serves standalone PDF text extraction.
func (s *Server) createExtractHandler(om *observability.Manager) http.HandlerFunc {
	return s.instrument(om, "extract", &s.counters.extract,
		func(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request) {
			data, _, err := s.readMultipartDocument(r)
			if err != nil {
				s.fail(span, w, err)
				return
			}
			span.SetAttributes(attribute.Int("request.document_bytes", len(data)))

			metrics := om.GetMetrics()
			result, err := s.Extractor.Extract(data)
			if err != nil {
				metrics.RecordBusinessMetric(ctx, "text_extracted", false, om)
				s.fail(span, w, err)
				return
			}

			metrics.RecordBusinessMetric(ctx, "text_extracted", true, om, attribute.Int("pages", result.Pages))
			metrics.RecordExtractedChars(ctx, result.Chars, om)
			span.SetAttributes(
				attribute.Bool("success", true),
				attribute.Int("response.chars", result.Chars),
				attribute.Int("response.pages", result.Pages),
			)

			s.respondJSON(w, http.StatusOK, result)
		})
}

// createKeywordsHandler serves keyword derivation. The work is purely
// local, no AI call is involved.
func (s *Server) createKeywordsHandler(om *observability.Manager) http.HandlerFunc {
	return s.instrument(om, "keywords", &s.counters.keywords,
		func(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request) {
			var req KeywordsRequest
			if err := decodeJSON(r, &req); err != nil {
				s.fail(span, w, err)
				return
			}

			job, resume := req.JobDescription, req.ResumeText
			if strings.TrimSpace(job) == "" {
				s.fail(span, w, resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
					"Job description is required", nil))
				return
			}

			span.SetAttributes(
				attribute.Int("request.job_length", len(job)),
				attribute.Bool("request.with_resume", strings.TrimSpace(resume) != ""),
			)

			report := s.Deriver.Report(job, resume)

			om.GetMetrics().RecordBusinessMetric(ctx, "keyword_report", true, om,
				attribute.Int("keywords", len(report.Keywords)),
				attribute.Int("missing_keywords", len(report.MissingKeywords)))
			span.SetAttributes(attribute.Bool("success", true), attribute.Int("response.keywords", len(report.Keywords)))

			s.respondJSON(w, http.StatusOK, report)
		})
}

// readAnalyzeRequest pulls the analyze inputs from either request mode.
// Exactly one of resumeBytes and resumeText is populated.
func (s *Server) readAnalyzeRequest(r *http.Request) (resumeBytes []byte, resumeText, jobDescription string, err error) {
	mediatype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediatype {
	case "multipart/form-data":
		resumeBytes, jobDescription, err = s.readMultipartDocument(r)
		return resumeBytes, "", jobDescription, err
	case "application/json":
		var req AnalyzeJSONRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, "", "", err
		}
		return nil, req.ResumeText, req.JobDescription, nil
	default:
		return nil, "", "", resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
			"Content-Type must be multipart/form-data or application/json", nil)
	}
}

// readMultipartDocument reads the resume file and job_description field
// from a multipart form
func (s *Server) readMultipartDocument(r *http.Request) ([]byte, string, error) {
	maxMemory := s.MaxRequestSize
	if maxMemory <= 0 || maxMemory > 32<<20 {
		maxMemory = 32 << 20
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, "", resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
			"Invalid multipart form", err)
	}

	file, _, err := r.FormFile("resume")
	if err != nil {
		return nil, "", resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
			"A resume file part is required", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && s.Logger != nil {
			s.Logger.Warn("Failed to close uploaded file", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest,
			"Failed to read uploaded resume", err)
	}

	return data, r.FormValue("job_description"), nil
}

// createRateLimitMiddleware chains the rate limiter with a status probe so
// rejected requests surface as a business metric. The probe sits outside
// the limiter, where it sees the 429 responses the limiter writes itself.
func (s *Server) createRateLimitMiddleware(om *observability.Manager) func(http.HandlerFunc) http.HandlerFunc {
	limited := s.throttleMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return s.observeRejections(om, limited(next))
	}
}

// observeRejections records a rate_limit_hit metric whenever the wrapped
// chain answers 429.
func (s *Server) observeRejections(om *observability.Manager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if rec.status == http.StatusTooManyRequests {
			om.GetMetrics().RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
				attribute.String("endpoint", r.URL.Path), attribute.String("method", r.Method))
		}
	}
}

// statusRecorder remembers the status code written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}
