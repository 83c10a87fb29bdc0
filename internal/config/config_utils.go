package config

import (
	"log"
	"os"
	"strings"
)

// normalize applies environment variable fallbacks
func (c *Config) normalize() {
	c.applyProviderKeyFallbacks()
	c.applyServerKeysFromEnv()
	c.fillTLSDefaults()
	c.deriveServiceInstance()
}

// applyProviderKeyFallbacks honors the provider SDKs' own environment
// variables when no key was configured through RESUMATCH_ variables,
// a config file, or Vault
func (c *Config) applyProviderKeyFallbacks() {
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case "openrouter":
			c.AI.APIKey = os.Getenv("OPENROUTER_API_KEY")
		default:
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				c.AI.APIKey = key
			} else {
				c.AI.APIKey = os.Getenv("GOOGLE_API_KEY")
			}
		}
	}

	// An analyze operation pinned to a different provider than the global
	// one needs its own key
	if c.AI.Analyze.Provider == "openrouter" && c.AI.Analyze.APIKey == "" && c.AI.Provider != "openrouter" {
		c.AI.Analyze.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
}

// applyServerKeysFromEnv reads server keys from the environment when
// none came from the config file.
func (c *Config) applyServerKeysFromEnv() {
	if len(c.Server.APIKeys) > 0 {
		return
	}
	raw := os.Getenv("RESUMATCH_SERVER_APIKEYS")
	if raw == "" {
		return
	}

	keys := strings.Split(raw, ",")
	for i, key := range keys {
		keys[i] = strings.TrimSpace(key)
	}
	c.Server.APIKeys = keys
}

// fillTLSDefaults fills the TLS fields that have sensible defaults.
func (c *Config) fillTLSDefaults() {
	if c.Server.TLS.Mode == "mutual" && c.Server.TLS.ClientAuthPolicy == "" {
		c.Server.TLS.ClientAuthPolicy = "require"
	}
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

// deriveServiceInstance derives a service instance ID from the
// hostname when none is configured.
func (c *Config) deriveServiceInstance() {
	if c.Observability.ServiceInstance != "" {
		return
	}
	instance := c.Observability.ServiceName + "-1"
	if hostname, err := os.Hostname(); err == nil {
		instance = c.Observability.ServiceName + "-" + hostname
	}
	c.Observability.ServiceInstance = instance
}

// logConfigSummary prints a bootstrap summary of where settings
// came from. The standard log package is used because the structured
// logger is not built until after configuration loads.
func (c *Config) logConfigSummary(configFileUsed string) {
	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: none, using defaults and environment")
	}

	logWatchedEnvVars()

	apiKeyState := "***NOT SET***"
	if c.AI.APIKey != "" {
		apiKeyState = "***CONFIGURED***"
	}

	log.Println("[CONFIG] Effective settings:")
	summary := []struct {
		label string
		value any
	}{
		{"AI Provider", c.AI.Provider},
		{"AI Model", c.AI.Model},
		{"AI API Key", apiKeyState},
		{"Analyze Provider", c.AI.Analyze.Provider},
		{"Analyze Model", c.AI.Analyze.Model},
		{"Server Host", c.Server.Host},
		{"Server Port", c.Server.Port},
		{"Log Level", c.App.LogLevel},
		{"TLS Mode", c.Server.TLS.Mode},
		{"Vault Enabled", c.Vault.Enabled},
		{"Observability Enabled", c.Observability.Enabled},
	}
	for _, row := range summary {
		log.Printf("[CONFIG]   %s: %v", row.label, row.value)
	}
}

// watchedEnvVars are echoed during bootstrap. Anything whose name
// suggests a credential is masked.
var watchedEnvVars = []string{
	"RESUMATCH_AI_APIKEY",
	"RESUMATCH_AI_PROVIDER",
	"RESUMATCH_AI_MODEL",
	"RESUMATCH_SERVER_PORT",
	"RESUMATCH_SERVER_HOST",
	"RESUMATCH_APP_LOGLEVEL",
	"RESUMATCH_VAULT_ENABLED",
	"GEMINI_API_KEY",
	"GOOGLE_API_KEY",
	"OPENROUTER_API_KEY",
}

func logWatchedEnvVars() {
	log.Println("[CONFIG] Environment overrides:")
	found := false
	for _, name := range watchedEnvVars {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		found = true
		if strings.Contains(strings.ToLower(name), "key") {
			log.Printf("[CONFIG]   %s=***MASKED***", name)
		} else {
			log.Printf("[CONFIG]   %s=%s", name, value)
		}
	}
	if !found {
		log.Println("[CONFIG]   none")
	}
}
