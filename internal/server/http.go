package server

import (
	"sync/atomic"
	"time"

	"resumatch/internal/ai"
	"resumatch/internal/analyzer"
	"resumatch/internal/config"
	resumatchErrors "resumatch/internal/errors"
	"resumatch/internal/extract"
	"resumatch/internal/keywords"
)

// AnalyzeJSONRequest is the JSON request body for the analyze endpoint.
// Multipart requests carry the same job description as a form field plus
// a resume PDF file instead of resume_text.
type AnalyzeJSONRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

// KeywordsRequest is the request body for the keywords endpoint
type KeywordsRequest struct {
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text,omitempty"`
}

// ErrorResponse carries the error taxonomy code alongside the message.
// RawModelOutput is set only for parse failures, so callers can inspect
// what the model actually returned.
type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
	RawModelOutput string `json:"raw_model_output,omitempty"`
}

// requestCounters tracks per-endpoint request counts for the stats endpoint
type requestCounters struct {
	analyze  atomic.Int64
	extract  atomic.Int64
	keywords atomic.Int64
	failed   atomic.Int64
}

func (c *requestCounters) snapshot() map[string]any {
	return map[string]any{
		"analyze":  c.analyze.Load(),
		"extract":  c.extract.Load(),
		"keywords": c.keywords.Load(),
		"failed":   c.failed.Load(),
	}
}

// Server carries everything the HTTP frontend needs: listener settings,
// auth material, TLS and rate limit state, and the analysis pipeline
// shared by all requests.
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config

	TLSConfig          config.TLSConfig
	CertificateManager *CertificateManager

	// An empty key set disables authentication.
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *LimiterPool

	// The AI service is created once at startup so circuit breaker state
	// carries across requests.
	Extractor *extract.Extractor
	Deriver   *keywords.Deriver
	AIService *ai.Service
	Analyzer  *analyzer.Analyzer

	Logger *resumatchErrors.Logger

	startTime time.Time
	counters  requestCounters
}

// ServerConfig collects the constructor arguments for NewServer.
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServer assembles a Server. The extraction and keyword components are
// pure and built immediately; the AI half of the pipeline is wired during
// Start, once observability exists.
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *resumatchErrors.Logger) *Server {
	var limiter *LimiterPool
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		limiter = NewLimiterPool(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeySet(cfg.APIKeys),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    limiter,
		Extractor:      extract.NewExtractor(appCfg.Extraction.MaxPDFSize, appCfg.Extraction.MinTextChars),
		Deriver:        keywords.NewDeriver(appCfg.Keywords.MinWordLength, appCfg.Keywords.ExtraStopwords),
		Logger:         logger,
		startTime:      time.Now(),
	}
}

// apiKeySet drops empty entries and turns the key list into a lookup map.
func apiKeySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			set[key] = true
		}
	}
	return set
}
