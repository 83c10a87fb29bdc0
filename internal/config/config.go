package config

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"resumatch/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root of all runtime configuration.
//
// API keys resolve from the highest-priority source that carries one:
// Vault when enabled, then the config file, then environment variables
// (RESUMATCH_AI_APIKEY, GEMINI_API_KEY, ...), then defaults.
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Extraction    ExtractionConfig    `mapstructure:"extraction"`
	Keywords      KeywordsConfig      `mapstructure:"keywords"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig carries the provider settings shared by every AI operation.
type AIConfig struct {
	// Defaults any operation falls back to
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	BaseURL          string        `mapstructure:"baseURL"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	MaxTokens        int32         `mapstructure:"maxTokens"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig  `mapstructure:"customPrompts"`

	// Per-operation overrides
	Analyze OperationAIConfig `mapstructure:"analyze"`
}

// CircuitBreakerConfig tunes the breaker guarding AI calls.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Probe budget while half-open
	Interval         time.Duration `mapstructure:"interval"`         // Closed-state window after which counts reset
	Timeout          time.Duration `mapstructure:"timeout"`          // How long open lasts before probing resumes
	MinRequests      uint32        `mapstructure:"minRequests"`      // Fewer requests than this never trip
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Trip once failures/requests reaches this ratio
}

// OperationAIConfig overrides AIConfig for a single operation. Pointer
// fields distinguish "not set" from an explicit zero.
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	BaseURL          string               `mapstructure:"baseURL"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	MaxTokens        *int32               `mapstructure:"maxTokens"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig         `mapstructure:"customPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig pairs the two prompt halves sent to a provider.
type PromptConfig struct {
	SystemPrompts SystemPrompts `mapstructure:"systemPrompts"`
	UserPrompts   UserPrompts   `mapstructure:"userPrompts"`
}

// SystemPrompts are the model instructions, inline or from a file.
type SystemPrompts struct {
	AnalyzeMatch     string `mapstructure:"analyzeMatch"`
	AnalyzeMatchFile string `mapstructure:"analyzeMatchFile"`
}

// UserPrompts are the request templates, inline or from a file.
type UserPrompts struct {
	AnalyzeMatch     string `mapstructure:"analyzeMatch"`
	AnalyzeMatchFile string `mapstructure:"analyzeMatchFile"`
}

// ExtractionConfig bounds PDF text extraction.
type ExtractionConfig struct {
	MaxPDFSize   int64 `mapstructure:"maxPDFSize"`   // Largest accepted PDF in bytes
	MinTextChars int   `mapstructure:"minTextChars"` // Minimum extracted characters before a document counts as text-bearing
}

// KeywordsConfig tunes keyword derivation.
type KeywordsConfig struct {
	MinWordLength  int      `mapstructure:"minWordLength"`  // Shortest token treated as a keyword
	ExtraStopwords []string `mapstructure:"extraStopwords"` // Additional stopwords merged with the built-in set
}

// ServerConfig carries everything the HTTP server needs.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// Largest accepted request body in bytes
	MaxRequestSize int64 `mapstructure:"maxRequestSize"`

	TLS TLSConfig `mapstructure:"tls"`

	// Keys the auth middleware accepts. Leaving this empty runs the
	// server open.
	APIKeys []string `mapstructure:"apiKeys"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig covers plain TLS and mutual TLS for the HTTP server.
type TLSConfig struct {
	Mode     string `mapstructure:"mode"`     // "disabled", "server", or "mutual"
	CertFile string `mapstructure:"certFile"` // PEM server certificate path
	KeyFile  string `mapstructure:"keyFile"`  // PEM private key path
	CAFile   string `mapstructure:"caFile"`   // PEM CA bundle verifying client certs, needed in mutual mode

	// PEM content overrides, filled when certificates come from Vault
	// rather than disk
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`
	CAContent   string `mapstructure:"caContent"`

	MinVersion       string   `mapstructure:"minVersion"`       // "1.2" or "1.3"
	CipherSuites     []string `mapstructure:"cipherSuites"`     // Optional allow-list
	ClientAuthPolicy string   `mapstructure:"clientAuthPolicy"` // "require", "request", or "verify" in mutual mode

	InsecureSkipVerify bool   `mapstructure:"insecureSkipVerify"` // Disables verification, development only
	ServerName         string `mapstructure:"serverName"`         // Expected name on the peer certificate

	AutoReload AutoReloadConfig `mapstructure:"autoReload"`
}

// AutoReloadConfig controls automatic certificate reloading.
type AutoReloadConfig struct {
	Enabled           bool               `mapstructure:"enabled"`
	CheckInterval     time.Duration      `mapstructure:"checkInterval"`     // How often expiry is checked
	PreemptiveRenewal time.Duration      `mapstructure:"preemptiveRenewal"` // Renew this long before expiry
	MaxRetries        int                `mapstructure:"maxRetries"`        // Reload attempts before giving up
	RetryDelay        time.Duration      `mapstructure:"retryDelay"`        // Pause between attempts
	FileWatcher       FileWatcherConfig  `mapstructure:"fileWatcher"`
	VaultWatcher      VaultWatcherConfig `mapstructure:"vaultWatcher"`
}

// FileWatcherConfig tunes certificate file watching.
type FileWatcherConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"` // Quiet period after a change event before reloading
}

// VaultWatcherConfig tunes Vault certificate polling.
type VaultWatcherConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	PollInterval   time.Duration `mapstructure:"pollInterval"`   // How often the secret is re-read
	AutoRenew      bool          `mapstructure:"autoRenew"`      // Renew leases automatically
	RenewThreshold time.Duration `mapstructure:"renewThreshold"` // Renew once a lease has less than this left
	SecretPath     string        `mapstructure:"secretPath"`     // KV path holding the TLS material
}

// RateLimitConfig tunes the per-client token buckets.
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"` // Sustained refill rate
	BurstCapacity  int  `mapstructure:"burstCapacity"`  // Bucket size
	ByIP           bool `mapstructure:"byIP"`           // Key buckets by client IP
	ByAPIKey       bool `mapstructure:"byAPIKey"`       // Key buckets by API key
}

// AppConfig carries settings shared by the CLI and the server.
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig is the root of the tracing and metrics settings.
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

// TracingConfig toggles span export and sampling.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig toggles metric export.
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig controls the stdout exporters.
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig switches individual metric families on and off.
type CustomMetricsConfig struct {
	AIOperations    AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig selects which AI call metrics are recorded.
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
	TrackModelInfo  bool `mapstructure:"trackModelInfo"`
}

// BusinessMetricsConfig selects which outcome counters are recorded.
type BusinessMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackSuccessRates bool `mapstructure:"trackSuccessRates"`
	TrackContentSizes bool `mapstructure:"trackContentSizes"`
}

// InfrastructureMetricsConfig selects rate-limit and certificate metrics.
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
	TrackCertExpiry bool `mapstructure:"trackCertExpiry"`
}

// PrometheusConfig configures the scrape endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig configures the OTLP HTTP exporters.
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig bounds the work a readiness probe may do.
type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

// LoadConfig assembles the configuration from defaults, an optional YAML
// file, environment variables, and Vault, in ascending precedence.
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Loading configuration")

	// A local .env is applied before viper consults the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("[CONFIG] Loaded environment overrides from .env file")
	}

	v := newViper()

	configFile, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.normalize()

	// Vault secrets overlay everything loaded so far. The structured logger
	// does not exist yet during bootstrap; ApplyVaultSecrets tolerates nil.
	if cfg.Vault.Enabled {
		vaultLogger, _ := errors.New(cfg.App.LogLevel)
		if err := ApplyVaultSecrets(&cfg, vaultLogger); err != nil {
			return nil, fmt.Errorf("failed to apply vault secrets: %w", err)
		}
		log.Println("[CONFIG] Applied secret overrides from Vault")
	}

	cfg.logConfigSummary(configFile)

	// File-backed prompts are checked up front so a bad path fails the
	// load instead of surfacing on the first request.
	if err := cfg.checkPromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt files failed validation: %w", err)
	}
	if err := cfg.loadFilePrompts(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Println("[CONFIG] Configuration ready")
	return &cfg, nil
}

// newViper returns a viper instance with defaults, environment handling,
// and the config file search paths registered.
func newViper() *viper.Viper {
	v := viper.New()

	registerDefaults(v)

	v.SetEnvPrefix("RESUMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Environment variables bound under the RESUMATCH prefix")

	v.SetConfigName("resumatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.resumatch")
	v.AddConfigPath("/etc/resumatch/")

	return v
}

// readConfigFile loads resumatch.yaml when one exists on the search path
// and reports which file was used. An empty name means the process runs on
// defaults and environment alone, which is not an error.
func readConfigFile(v *viper.Viper) (string, error) {
	err := v.ReadInConfig()
	if err == nil {
		file := v.ConfigFileUsed()
		log.Printf("[CONFIG] Read config file: %s", file)
		return file, nil
	}
	if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
		log.Println("[CONFIG] No config file on the search path, continuing with defaults and environment")
		return "", nil
	}
	return "", fmt.Errorf("failed to read config file: %w", err)
}

// Validate checks if the configuration is valid. API keys are not checked
// here: extraction and keyword operations run without one, and the AI
// providers return a typed auth error when an analysis needs a missing key.
func (c *Config) Validate() error {
	if err := c.checkValues(); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid configuration", err)
	}
	return nil
}

func (c *Config) checkValues() error {
	switch c.AI.Provider {
	case "gemini", "openrouter":
	default:
		return fmt.Errorf("unsupported AI provider: %s (must be 'gemini' or 'openrouter')", c.AI.Provider)
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai timeout must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port must be set")
	}
	if c.Extraction.MaxPDFSize <= 0 {
		return fmt.Errorf("extraction maxPDFSize must be positive")
	}
	if c.Keywords.MinWordLength <= 0 {
		return fmt.Errorf("keywords minWordLength must be positive")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("default format %s is not among the supported formats", c.App.DefaultFormat)
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	return nil
}
