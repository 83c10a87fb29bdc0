package config

import (
	"time"

	"github.com/spf13/viper"
)

// registerDefaults registers every configuration default with viper.
func registerDefaults(v *viper.Viper) {
	for key, value := range defaultSettings {
		v.SetDefault(key, value)
	}
}

// defaultSettings holds all defaults keyed by viper path, so the full
// default configuration is readable in one place.
var defaultSettings = map[string]any{
	// Global AI settings
	"ai.provider":         "gemini",
	"ai.model":            "gemini-1.5-flash-latest",
	"ai.baseURL":          "",
	"ai.timeout":          60 * time.Second,
	"ai.apiKey":           "",
	"ai.maxRetries":       3,
	"ai.maxTokens":        0, // 0 keeps the provider default
	"ai.temperature":      0.7,
	"ai.useSystemPrompts": true,

	// Analyze operation overrides. Empty provider and model fall back to
	// the globals; the low temperature keeps analysis output consistent.
	"ai.analyze.provider":         "",
	"ai.analyze.model":            "",
	"ai.analyze.timeout":          75 * time.Second,
	"ai.analyze.apiKey":           "",
	"ai.analyze.maxRetries":       2,
	"ai.analyze.temperature":      0.2,
	"ai.analyze.useSystemPrompts": true,

	// Circuit breaker around the analyze operation
	"ai.analyze.circuitBreaker.enabled":          true,
	"ai.analyze.circuitBreaker.maxRequests":      3,
	"ai.analyze.circuitBreaker.interval":         60 * time.Second,
	"ai.analyze.circuitBreaker.timeout":          60 * time.Second,
	"ai.analyze.circuitBreaker.minRequests":      3,
	"ai.analyze.circuitBreaker.failureThreshold": 0.6,

	// PDF extraction
	"extraction.maxPDFSize":   10 * 1024 * 1024, // 10MB
	"extraction.minTextChars": 1,

	// Keyword derivation
	"keywords.minWordLength":  3,
	"keywords.extraStopwords": []string{},

	// HTTP server
	"server.host":           "localhost",
	"server.port":           "8080",
	"server.readTimeout":    30 * time.Second,
	"server.writeTimeout":   60 * time.Second,
	"server.idleTimeout":    120 * time.Second,
	"server.maxRequestSize": 12 * 1024 * 1024, // PDF upload plus multipart overhead

	// TLS. Mode is one of disabled, server, mutual; the client auth
	// policy is one of require, request, verify.
	"server.tls.mode":               "disabled",
	"server.tls.certFile":           "",
	"server.tls.keyFile":            "",
	"server.tls.caFile":             "",
	"server.tls.minVersion":         "1.2",
	"server.tls.cipherSuites":       []string{}, // empty means Go defaults
	"server.tls.clientAuthPolicy":   "require",
	"server.tls.insecureSkipVerify": false,
	"server.tls.serverName":         "",

	// Certificate auto-reload
	"server.tls.autoReload.enabled":           true,
	"server.tls.autoReload.checkInterval":     30 * time.Second,
	"server.tls.autoReload.preemptiveRenewal": 72 * time.Hour,
	"server.tls.autoReload.maxRetries":        3,
	"server.tls.autoReload.retryDelay":        10 * time.Second,

	"server.tls.autoReload.fileWatcher.enabled":       true,
	"server.tls.autoReload.fileWatcher.debounceDelay": time.Second,

	"server.tls.autoReload.vaultWatcher.enabled":        false,
	"server.tls.autoReload.vaultWatcher.pollInterval":   5 * time.Minute,
	"server.tls.autoReload.vaultWatcher.autoRenew":      true,
	"server.tls.autoReload.vaultWatcher.renewThreshold": 24 * time.Hour,
	"server.tls.autoReload.vaultWatcher.secretPath":     "",

	// API authentication and rate limiting
	"server.apiKeys":                  []string{},
	"server.rateLimit.enabled":        false,
	"server.rateLimit.requestsPerMin": 60,
	"server.rateLimit.burstCapacity":  10,
	"server.rateLimit.byIP":           true,
	"server.rateLimit.byAPIKey":       false,
	"server.rateLimit.window":         time.Minute,

	// Application
	"app.logLevel":         "info",
	"app.defaultFormat":    "json",
	"app.supportedFormats": []string{"json", "text", "markdown"},
	"app.maxFileSize":      10 * 1024 * 1024, // 10MB, resumes arrive as PDFs

	// Vault
	"vault.enabled":               false,
	"vault.address":               "",
	"vault.token":                 "",
	"vault.tokenFile":             "",
	"vault.namespace":             "",
	"vault.secrets.apiKeys":       "",
	"vault.secrets.geminiKey":     "",
	"vault.secrets.openRouterKey": "",
	"vault.secrets.tlsCerts":      "",

	// Observability. Empty serviceVersion falls back to the app version
	// and an empty serviceInstance is derived from the hostname.
	"observability.enabled":         true,
	"observability.serviceName":     "resumatch",
	"observability.serviceVersion":  "",
	"observability.serviceInstance": "",
	"observability.consoleOutput":   false,
	"observability.sampleRate":      1.0,

	"observability.tracing.enabled":    true,
	"observability.tracing.sampleRate": 1.0,

	"observability.metrics.enabled":            true,
	"observability.metrics.collectionInterval": 15 * time.Second,

	"observability.customMetrics.aiOperations.enabled":         true,
	"observability.customMetrics.aiOperations.trackDuration":   true,
	"observability.customMetrics.aiOperations.trackTokenUsage": true,
	"observability.customMetrics.aiOperations.trackModelInfo":  true,

	"observability.customMetrics.businessMetrics.enabled":           true,
	"observability.customMetrics.businessMetrics.trackSuccessRates": true,
	"observability.customMetrics.businessMetrics.trackContentSizes": true,

	"observability.customMetrics.infrastructure.enabled":         true,
	"observability.customMetrics.infrastructure.trackRateLimits": true,
	"observability.customMetrics.infrastructure.trackCertExpiry": true,

	"observability.console.enabled":     false,
	"observability.console.prettyPrint": true,

	"observability.prometheus.enabled":  true,
	"observability.prometheus.endpoint": "/metrics",
	"observability.prometheus.port":     "9090",

	"observability.otlp.enabled":  false,
	"observability.otlp.endpoint": "http://localhost:4318",
	"observability.otlp.insecure": true,
	"observability.otlp.headers":  map[string]string{},

	"observability.healthCheck.timeout":             15 * time.Second,
	"observability.healthCheck.aiModelCheckTimeout": 10 * time.Second,
}
