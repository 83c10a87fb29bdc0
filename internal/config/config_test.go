package config

import (
	"strings"
	"testing"
	"time"

	"resumatch/internal/errors"
)

func validTestConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-1.5-flash-latest",
			Timeout:  60 * time.Second,
		},
		Extraction: ExtractionConfig{
			MaxPDFSize:   10 << 20,
			MinTextChars: 1,
		},
		Keywords: KeywordsConfig{
			MinWordLength: 3,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: "8080",
			TLS:  TLSConfig{Mode: "disabled"},
		},
		App: AppConfig{
			LogLevel:         "info",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
		},
	}
}

func TestValidate(t *testing.T) {
	if err := validTestConfig().Validate(); err != nil {
		t.Fatalf("Validate() on a valid config returned %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "unsupported provider",
			mutate:  func(c *Config) { c.AI.Provider = "watson" },
			wantMsg: "unsupported AI provider: watson",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.AI.Timeout = 0 },
			wantMsg: "ai timeout must be positive",
		},
		{
			name:    "missing server port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantMsg: "server port must be set",
		},
		{
			name:    "non-positive max PDF size",
			mutate:  func(c *Config) { c.Extraction.MaxPDFSize = 0 },
			wantMsg: "maxPDFSize must be positive",
		},
		{
			name:    "non-positive min word length",
			mutate:  func(c *Config) { c.Keywords.MinWordLength = -1 },
			wantMsg: "minWordLength must be positive",
		},
		{
			name:    "default format not in supported list",
			mutate:  func(c *Config) { c.App.DefaultFormat = "yaml" },
			wantMsg: "default format yaml is not among the supported formats",
		},
		{
			name:    "server mode without certificates",
			mutate:  func(c *Config) { c.Server.TLS.Mode = "server" },
			wantMsg: "invalid TLS configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted an invalid config")
			}
			if !errors.IsType(err, errors.ErrorTypeConfig) {
				t.Errorf("Validate() returned %T, want a config error", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestApplyProviderKeyFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		ai          AIConfig
		env         map[string]string
		wantGlobal  string
		wantAnalyze string
	}{
		{
			name: "gemini key from GEMINI_API_KEY",
			ai:   AIConfig{Provider: "gemini"},
			env: map[string]string{
				"GEMINI_API_KEY": "gm-key",
				"GOOGLE_API_KEY": "legacy-key",
			},
			wantGlobal: "gm-key",
		},
		{
			name:       "gemini falls back to GOOGLE_API_KEY",
			ai:         AIConfig{Provider: "gemini"},
			env:        map[string]string{"GOOGLE_API_KEY": "legacy-key"},
			wantGlobal: "legacy-key",
		},
		{
			name:       "openrouter key from OPENROUTER_API_KEY",
			ai:         AIConfig{Provider: "openrouter"},
			env:        map[string]string{"OPENROUTER_API_KEY": "or-key"},
			wantGlobal: "or-key",
		},
		{
			name:       "configured key is not overwritten",
			ai:         AIConfig{Provider: "gemini", APIKey: "from-file"},
			env:        map[string]string{"GEMINI_API_KEY": "gm-key"},
			wantGlobal: "from-file",
		},
		{
			name: "analyze pinned to openrouter gets its own key",
			ai: AIConfig{
				Provider: "gemini",
				Analyze:  OperationAIConfig{Provider: "openrouter"},
			},
			env: map[string]string{
				"GEMINI_API_KEY":     "gm-key",
				"OPENROUTER_API_KEY": "or-key",
			},
			wantGlobal:  "gm-key",
			wantAnalyze: "or-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENROUTER_API_KEY"} {
				t.Setenv(name, tt.env[name])
			}

			cfg := &Config{AI: tt.ai}
			cfg.applyProviderKeyFallbacks()

			if cfg.AI.APIKey != tt.wantGlobal {
				t.Errorf("AI.APIKey = %q, want %q", cfg.AI.APIKey, tt.wantGlobal)
			}
			if cfg.AI.Analyze.APIKey != tt.wantAnalyze {
				t.Errorf("AI.Analyze.APIKey = %q, want %q", cfg.AI.Analyze.APIKey, tt.wantAnalyze)
			}
		})
	}
}

func TestApplyServerAPIKeyFallbacks(t *testing.T) {
	t.Run("keys split and trimmed from environment", func(t *testing.T) {
		t.Setenv("RESUMATCH_SERVER_APIKEYS", "key-a, key-b ,key-c")

		cfg := &Config{}
		cfg.applyServerKeysFromEnv()

		want := []string{"key-a", "key-b", "key-c"}
		if len(cfg.Server.APIKeys) != len(want) {
			t.Fatalf("Server.APIKeys = %v, want %v", cfg.Server.APIKeys, want)
		}
		for i, key := range want {
			if cfg.Server.APIKeys[i] != key {
				t.Errorf("Server.APIKeys[%d] = %q, want %q", i, cfg.Server.APIKeys[i], key)
			}
		}
	})

	t.Run("configured keys are preserved", func(t *testing.T) {
		t.Setenv("RESUMATCH_SERVER_APIKEYS", "env-key")

		cfg := &Config{Server: ServerConfig{APIKeys: []string{"file-key"}}}
		cfg.applyServerKeysFromEnv()

		if len(cfg.Server.APIKeys) != 1 || cfg.Server.APIKeys[0] != "file-key" {
			t.Errorf("Server.APIKeys = %v, want [file-key]", cfg.Server.APIKeys)
		}
	})

	t.Run("no keys anywhere", func(t *testing.T) {
		t.Setenv("RESUMATCH_SERVER_APIKEYS", "")

		cfg := &Config{}
		cfg.applyServerKeysFromEnv()

		if len(cfg.Server.APIKeys) != 0 {
			t.Errorf("Server.APIKeys = %v, want empty", cfg.Server.APIKeys)
		}
	})
}

func TestApplyTLSDefaults(t *testing.T) {
	t.Run("mutual mode defaults", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{TLS: TLSConfig{Mode: "mutual"}}}
		cfg.fillTLSDefaults()

		if cfg.Server.TLS.ClientAuthPolicy != "require" {
			t.Errorf("ClientAuthPolicy = %q, want %q", cfg.Server.TLS.ClientAuthPolicy, "require")
		}
		if cfg.Server.TLS.MinVersion != "1.2" {
			t.Errorf("MinVersion = %q, want %q", cfg.Server.TLS.MinVersion, "1.2")
		}
	})

	t.Run("disabled mode untouched", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{TLS: TLSConfig{Mode: "disabled"}}}
		cfg.fillTLSDefaults()

		if cfg.Server.TLS.ClientAuthPolicy != "" {
			t.Errorf("ClientAuthPolicy = %q, want empty", cfg.Server.TLS.ClientAuthPolicy)
		}
		if cfg.Server.TLS.MinVersion != "" {
			t.Errorf("MinVersion = %q, want empty", cfg.Server.TLS.MinVersion)
		}
	})

	t.Run("explicit values kept", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{TLS: TLSConfig{
			Mode:             "mutual",
			ClientAuthPolicy: "verify",
			MinVersion:       "1.3",
		}}}
		cfg.fillTLSDefaults()

		if cfg.Server.TLS.ClientAuthPolicy != "verify" {
			t.Errorf("ClientAuthPolicy = %q, want %q", cfg.Server.TLS.ClientAuthPolicy, "verify")
		}
		if cfg.Server.TLS.MinVersion != "1.3" {
			t.Errorf("MinVersion = %q, want %q", cfg.Server.TLS.MinVersion, "1.3")
		}
	})
}
