package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"resumatch/internal/ai"
	"resumatch/internal/analyzer"
	"resumatch/internal/config"
	resumatchErrors "resumatch/internal/errors"
	"resumatch/internal/observability"
	"resumatch/internal/types"
)

// stubAIProvider replays a canned model response or error
type stubAIProvider struct {
	response *types.ModelResponse
	err      error
}

func (p *stubAIProvider) AnalyzeMatch(_ context.Context, _ types.MatchInput) (*types.ModelResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.response, nil
}

func (p *stubAIProvider) GetModelInfo(_ context.Context) *ai.ModelInfo {
	return &ai.ModelInfo{Name: "stub-model", Available: true}
}

func (p *stubAIProvider) Close() error { return nil }

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	return NewServer(&config.Config{}, cfg, resumatchErrors.NewLogger(slog.LevelError))
}

func testObservability(t *testing.T) *observability.Manager {
	t.Helper()
	om, err := observability.NewManager(observability.Config{}, nil)
	if err != nil {
		t.Fatalf("NewManager() returned %v", err)
	}
	return om
}

func wireAnalyzer(s *Server, provider ai.AIProvider) {
	s.Analyzer = analyzer.New(provider, s.Extractor, s.Deriver, s.Logger)
}

func postJSON(mux *http.ServeMux, target, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("error response is not valid JSON: %v", err)
	}
	return resp
}

func TestStatusCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "validation",
			err:  resumatchErrors.NewValidationError(resumatchErrors.ErrCodeInvalidRequest, "bad request", nil),
			want: http.StatusBadRequest,
		},
		{
			name: "auth",
			err:  resumatchErrors.NewAuthError(resumatchErrors.ErrCodeAPIKeyRejected, "rejected", nil),
			want: http.StatusUnauthorized,
		},
		{
			name: "rate limit",
			err:  resumatchErrors.NewRateLimitError(resumatchErrors.ErrCodeRateLimited, "slow down", nil),
			want: http.StatusTooManyRequests,
		},
		{
			name: "extraction",
			err:  resumatchErrors.NewExtractionError(resumatchErrors.ErrCodePDFInvalid, "not a pdf", nil),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "parse",
			err:  resumatchErrors.NewParseError(resumatchErrors.ErrCodeResponseNoFields, "no usable fields", nil),
			want: http.StatusBadGateway,
		},
		{
			name: "upstream",
			err:  resumatchErrors.NewUpstreamError(resumatchErrors.ErrCodeUpstreamFailed, "provider down", nil),
			want: http.StatusBadGateway,
		},
		{
			name: "upstream timeout",
			err:  resumatchErrors.NewUpstreamError(resumatchErrors.ErrCodeUpstreamTimeout, "deadline exceeded", nil),
			want: http.StatusGatewayTimeout,
		},
		{
			name: "config",
			err:  resumatchErrors.NewConfigError(resumatchErrors.ErrCodeInvalidConfig, "bad config", nil),
			want: http.StatusInternalServerError,
		},
		{
			name: "plain error",
			err:  stderrors.New("boom"),
			want: http.StatusInternalServerError,
		},
		{
			name: "bare deadline exceeded",
			err:  context.DeadlineExceeded,
			want: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusCodeFor(tt.err); got != tt.want {
				t.Errorf("statusCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteAppErrorIncludesRawModelOutput(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	parseErr := resumatchErrors.NewParseError(resumatchErrors.ErrCodeResponseNoFields,
		"Model response had no usable fields", nil).
		WithContext("raw_response", "I am not JSON")

	rec := httptest.NewRecorder()
	s.writeAppError(rec, parseErr)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error != "parse" {
		t.Errorf("Error = %q, want parse", resp.Error)
	}
	if resp.Code != resumatchErrors.ErrCodeResponseNoFields {
		t.Errorf("Code = %q, want %q", resp.Code, resumatchErrors.ErrCodeResponseNoFields)
	}
	if resp.RawModelOutput != "I am not JSON" {
		t.Errorf("RawModelOutput = %q, want the raw model text", resp.RawModelOutput)
	}
}

func TestParseJSONRequest(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
		wantCode    string
	}{
		{
			name:        "valid json",
			contentType: "application/json",
			body:        `{"job_description": "a job"}`,
		},
		{
			name:        "content type with charset",
			contentType: "application/json; charset=utf-8",
			body:        `{"job_description": "a job"}`,
		},
		{
			name:        "wrong content type",
			contentType: "text/plain",
			body:        `{"job_description": "a job"}`,
			wantErr:     true,
			wantCode:    resumatchErrors.ErrCodeInvalidRequest,
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"job_description": `,
			wantErr:     true,
			wantCode:    resumatchErrors.ErrCodeInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/keywords", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)

			var req KeywordsRequest
			err := decodeJSON(r, &req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("decodeJSON() returned %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("decodeJSON() accepted a bad request")
			}
			var appErr *resumatchErrors.AppError
			if !stderrors.As(err, &appErr) || appErr.Code != tt.wantCode {
				t.Errorf("error = %v, want code %q", err, tt.wantCode)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskKey("short"); got != "****" {
		t.Errorf("maskKey(short) = %q, want ****", got)
	}
	if got := maskKey("abcdefgh12345678"); got != "abcdefgh****" {
		t.Errorf("maskKey() = %q, want abcdefgh****", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(t, ServerConfig{})

	var captured string
	handler := s.requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if captured == "" {
		t.Error("no request ID was assigned")
	}
	if rec.Header().Get("X-Request-ID") != captured {
		t.Errorf("response header = %q, context value = %q", rec.Header().Get("X-Request-ID"), captured)
	}

	// A client-supplied ID is honored
	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	r.Header.Set("X-Request-ID", "client-supplied-id")
	rec = httptest.NewRecorder()
	handler(rec, r)

	if captured != "client-supplied-id" {
		t.Errorf("context value = %q, want client-supplied-id", captured)
	}
	if rec.Header().Get("X-Request-ID") != "client-supplied-id" {
		t.Errorf("response header = %q, want client-supplied-id", rec.Header().Get("X-Request-ID"))
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, ServerConfig{APIKeys: []string{"valid-key-12345678"}})

	called := false
	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	t.Run("missing key", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil))

		if called {
			t.Error("handler was called without credentials")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Code != resumatchErrors.ErrCodeMissingAPIKey {
			t.Errorf("Code = %q, want %q", resp.Code, resumatchErrors.ErrCodeMissingAPIKey)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		called = false
		r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
		r.Header.Set("X-API-Key", "wrong-key")
		rec := httptest.NewRecorder()
		handler(rec, r)

		if called {
			t.Error("handler was called with a bad key")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Code != resumatchErrors.ErrCodeAPIKeyRejected {
			t.Errorf("Code = %q, want %q", resp.Code, resumatchErrors.ErrCodeAPIKeyRejected)
		}
	})

	t.Run("valid header key", func(t *testing.T) {
		called = false
		r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
		r.Header.Set("X-API-Key", "valid-key-12345678")
		handler(httptest.NewRecorder(), r)

		if !called {
			t.Error("handler was not called with a valid key")
		}
	})

	t.Run("valid bearer token", func(t *testing.T) {
		called = false
		r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
		r.Header.Set("Authorization", "Bearer valid-key-12345678")
		handler(httptest.NewRecorder(), r)

		if !called {
			t.Error("handler was not called with a valid bearer token")
		}
	})

	t.Run("no keys configured", func(t *testing.T) {
		open := newTestServer(t, ServerConfig{})
		called = false
		open.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil))

		if !called {
			t.Error("handler was not called when auth is disabled")
		}
	})
}

func TestKeywordsEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	mux := s.routes(testObservability(t))

	t.Run("derives keywords and gaps", func(t *testing.T) {
		rec := postJSON(mux, "/api/v1/keywords",
			`{"job_description": "Looking for engineers with kubernetes and terraform experience",
			  "resume_text": "Backend engineer who ships kubernetes workloads"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var report types.KeywordReport
		if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
			t.Fatalf("response is not valid JSON: %v", err)
		}
		if !slices.Contains(report.Keywords, "kubernetes") {
			t.Errorf("Keywords = %v, want kubernetes included", report.Keywords)
		}
		if !slices.Contains(report.MissingKeywords, "terraform") {
			t.Errorf("MissingKeywords = %v, want terraform included", report.MissingKeywords)
		}
		if slices.Contains(report.MissingKeywords, "kubernetes") {
			t.Errorf("MissingKeywords = %v, kubernetes is present in the resume", report.MissingKeywords)
		}
	})

	t.Run("empty job description", func(t *testing.T) {
		rec := postJSON(mux, "/api/v1/keywords", `{"job_description": "   "}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error != "validation" {
			t.Errorf("Error = %q, want validation", resp.Error)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/keywords", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestExtractEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	mux := s.routes(testObservability(t))

	t.Run("rejects non-pdf upload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("resume", "resume.pdf")
		if err != nil {
			t.Fatalf("CreateFormFile() returned %v", err)
		}
		if _, err := fw.Write([]byte("definitely not a pdf")); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
		if err := mw.Close(); err != nil {
			t.Fatalf("closing multipart writer: %v", err)
		}

		r := httptest.NewRequest(http.MethodPost, "/api/v1/extract", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, r)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
		}
		if resp := decodeError(t, rec); resp.Error != "extraction" {
			t.Errorf("Error = %q, want extraction", resp.Error)
		}
	})

	t.Run("missing file part", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("job_description", "some job"); err != nil {
			t.Fatalf("WriteField() returned %v", err)
		}
		if err := mw.Close(); err != nil {
			t.Fatalf("closing multipart writer: %v", err)
		}

		r := httptest.NewRequest(http.MethodPost, "/api/v1/extract", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, r)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestAnalyzeEndpointJSONMode(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	wireAnalyzer(s, &stubAIProvider{response: &types.ModelResponse{
		Text: `{"ats_score": 72, "missing_keywords": ["kubernetes"], "feedback": "Add infrastructure work."}`,
		Model: "stub-model",
		Usage: types.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}})
	mux := s.routes(testObservability(t))

	rec := postJSON(mux, "/api/v1/analyze",
		`{"resume_text": "Go backend engineer", "job_description": "Go and kubernetes role"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID header on the response")
	}

	var result types.AnalysisResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if result.MatchScore == nil || *result.MatchScore != 72 {
		t.Errorf("MatchScore = %v, want 72", result.MatchScore)
	}
	if result.Model != "stub-model" {
		t.Errorf("Model = %q, want stub-model", result.Model)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", result.Usage.TotalTokens)
	}
}

func TestAnalyzeEndpointUpstreamError(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	wireAnalyzer(s, &stubAIProvider{
		err: resumatchErrors.NewUpstreamError(resumatchErrors.ErrCodeUpstreamFailed, "model unavailable", nil),
	})
	mux := s.routes(testObservability(t))

	rec := postJSON(mux, "/api/v1/analyze",
		`{"resume_text": "a resume", "job_description": "a job"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != resumatchErrors.ErrCodeUpstreamFailed {
		t.Errorf("Code = %q, want %q", resp.Code, resumatchErrors.ErrCodeUpstreamFailed)
	}
	if got := s.counters.failed.Load(); got != 1 {
		t.Errorf("failed counter = %d, want 1", got)
	}
}

func TestAnalyzeEndpointUnsupportedContentType(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	wireAnalyzer(s, &stubAIProvider{})
	mux := s.routes(testObservability(t))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("resume text"))
	r.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimitedEndpointReturns429(t *testing.T) {
	s := newTestServer(t, ServerConfig{
		RateLimit: &config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 1,
			BurstCapacity:  1,
			ByIP:           true,
		},
	})
	defer s.RateLimiter.Close()
	mux := s.routes(testObservability(t))

	body := `{"job_description": "kubernetes engineers wanted"}`

	if rec := postJSON(mux, "/api/v1/keywords", body); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec := postJSON(mux, "/api/v1/keywords", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != resumatchErrors.ErrCodeRateLimited {
		t.Errorf("Code = %q, want %q", resp.Code, resumatchErrors.ErrCodeRateLimited)
	}
}

func TestHealthEndpointDegradedWithoutAIService(t *testing.T) {
	s := newTestServer(t, ServerConfig{Version: "test"})
	mux := s.routes(testObservability(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
	if resp["service"] != "resumatch" {
		t.Errorf("service = %v, want resumatch", resp["service"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{Version: "1.2.3", MaxRequestSize: 1024})
	s.counters.analyze.Add(3)
	s.counters.failed.Add(1)
	mux := s.routes(testObservability(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", resp["version"])
	}

	requests, ok := resp["requests"].(map[string]any)
	if !ok {
		t.Fatalf("requests section missing: %v", resp)
	}
	if requests["analyze"] != float64(3) {
		t.Errorf("analyze counter = %v, want 3", requests["analyze"])
	}
	if requests["failed"] != float64(1) {
		t.Errorf("failed counter = %v, want 1", requests["failed"])
	}

	configEcho, ok := resp["config"].(map[string]any)
	if !ok {
		t.Fatalf("config section missing: %v", resp)
	}
	if configEcho["api_key"] != "****" {
		t.Errorf("api_key = %v, want masked", configEcho["api_key"])
	}

	rateLimiting, ok := resp["rate_limiting"].(map[string]any)
	if !ok {
		t.Fatalf("rate_limiting section missing: %v", resp)
	}
	if rateLimiting["enabled"] != false {
		t.Errorf("rate_limiting.enabled = %v, want false", rateLimiting["enabled"])
	}
}
