package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"resumatch/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KVv2 paths the secret overlay reads. The APIKeys
// secret holds a "keys" field with a comma-separated list, the provider key
// secrets hold an "api_key" field, and the TLSCerts secret holds "cert",
// "key" and "ca" fields with PEM content.
type VaultSecrets struct {
	APIKeys       string `mapstructure:"apiKeys"`
	GeminiKey     string `mapstructure:"geminiKey"`
	OpenRouterKey string `mapstructure:"openRouterKey"`
	TLSCerts      string `mapstructure:"tlsCerts"`
}

// VaultClient wraps the Vault API client.
type VaultClient struct {
	api    *api.Client
	cfg    VaultConfig
	logger *errors.Logger
}

// NewVaultClient connects to the Vault server named in cfg and verifies the
// connection with a health probe. A disabled config returns (nil, nil) so
// callers can treat the client as optional. A nil logger silences the client.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.Discard()
	}
	if !cfg.Enabled {
		logger.Debug("Vault integration is disabled")
		return nil, nil
	}

	token, err := cfg.resolveToken()
	if err != nil {
		logger.LogError(err, "Could not resolve Vault token")
		return nil, err
	}

	logger.Debug("Connecting to Vault", "address", cfg.Address, "namespace", cfg.Namespace)

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Vault health probe failed", "address", cfg.Address)
		return nil, fmt.Errorf("failed to reach vault at %s: %w", cfg.Address, err)
	}
	logger.Info("Connected to Vault",
		"address", cfg.Address, "version", health.Version, "sealed", health.Sealed)

	return &VaultClient{api: client, cfg: cfg, logger: logger}, nil
}

// resolveToken returns the configured token, falling back to the token file.
func (vc VaultConfig) resolveToken() (string, error) {
	if vc.Token != "" {
		return vc.Token, nil
	}
	if vc.TokenFile != "" {
		raw, err := os.ReadFile(vc.TokenFile)
		if err != nil {
			return "", fmt.Errorf("reading vault token file: %w", err)
		}
		if token := strings.TrimSpace(string(raw)); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("vault is enabled but no token was provided")
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 reads a secret from a KVv2 mount.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client is not initialized")
	}

	raw, err := vc.api.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if raw == nil || raw.Data == nil {
		vc.logger.Warn("Secret not found", "path", path)
		return nil, fmt.Errorf("no secret found at %s", path)
	}
	return unwrapKVv2(raw.Data, path)
}

// unwrapKVv2 strips the data/metadata envelope the KVv2 engine wraps around
// stored fields. Reading a KVv1 mount, or a KVv2 mount without the /data/
// path segment, yields a flat map and fails here.
func unwrapKVv2(envelope map[string]any, path string) (*VaultSecret, error) {
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret %s has no KVv2 'data' envelope", path)
	}
	meta, ok := envelope["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret %s has no KVv2 'metadata' envelope", path)
	}
	version, err := secretVersion(meta["version"])
	if err != nil {
		return nil, fmt.Errorf("secret %s version: %w", path, err)
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// secretVersion coerces the KVv2 version field, whose Go type depends on how
// the API response was decoded.
func secretVersion(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected version type %T", raw)
	}
}

// GetStringSecret returns a single string field from the secret at path.
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	raw, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %s", key, path)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value for key %q in secret %s is not a string", key, path)
	}
	vc.logger.Debug("Secret read from Vault", "path", path, "key", key, "value", maskSecret(value))
	return value, nil
}

// maskSecret keeps enough of a secret visible to recognize it in debug logs.
func maskSecret(s string) string {
	switch {
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	case len(s) > 0:
		return "****"
	default:
		return ""
	}
}

// GetStringSliceSecret splits a comma-separated secret value into a slice.
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	joined, err := vc.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	if joined == "" {
		return nil, nil
	}
	parts := strings.Split(joined, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts, nil
}

// ApplyVaultSecrets overlays secrets from Vault onto an already loaded
// configuration. Vault values win over file and environment values, except
// that an explicitly configured operation-level API key is preserved.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if logger == nil {
		logger = errors.Discard()
	}
	if !cfg.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret overlay")
		return nil
	}

	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	paths := cfg.Vault.Secrets
	if err := client.overlayServerKeys(cfg, paths.APIKeys); err != nil {
		return err
	}
	if err := client.overlayProviderKey(cfg, "gemini", paths.GeminiKey); err != nil {
		return err
	}
	if err := client.overlayProviderKey(cfg, "openrouter", paths.OpenRouterKey); err != nil {
		return err
	}
	if err := client.overlayTLSMaterial(cfg, paths.TLSCerts); err != nil {
		return err
	}

	logger.Info("Applied secrets from Vault")
	return nil
}

// overlayServerKeys replaces the server API key list when the secret holds one.
func (vc *VaultClient) overlayServerKeys(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	keys, err := vc.GetStringSliceSecret(path, "keys")
	if err != nil {
		return fmt.Errorf("failed to load server API keys from vault: %w", err)
	}
	if len(keys) == 0 {
		vc.logger.Warn("No API keys found in Vault", "path", path)
		return nil
	}
	cfg.Server.APIKeys = keys
	vc.logger.Info("Server API keys loaded from Vault", "count", len(keys))
	return nil
}

// overlayProviderKey reads an AI provider key and routes it to every
// configuration slot selecting that provider.
func (vc *VaultClient) overlayProviderKey(cfg *Config, provider, path string) error {
	if path == "" {
		return nil
	}
	key, err := vc.GetStringSecret(path, "api_key")
	if err != nil {
		return fmt.Errorf("failed to load the %s API key from vault: %w", provider, err)
	}
	if key == "" {
		vc.logger.Warn("Empty provider API key in Vault", "provider", provider, "path", path)
		return nil
	}
	applyProviderKey(cfg, provider, key)
	vc.logger.Info("Provider API key loaded from Vault", "provider", provider)
	return nil
}

// applyProviderKey overwrites the global key when the provider matches, and
// fills the analyze operation key when that operation resolves to the same
// provider and has no key of its own.
func applyProviderKey(cfg *Config, provider, key string) {
	if cfg.AI.Provider == provider {
		cfg.AI.APIKey = key
	}
	op := cfg.AI.Analyze.Provider
	if op == "" {
		op = cfg.AI.Provider
	}
	if op == provider && cfg.AI.Analyze.APIKey == "" {
		cfg.AI.Analyze.APIKey = key
	}
}

// overlayTLSMaterial copies PEM content for the server certificate, private
// key and CA bundle out of a single Vault secret.
func (vc *VaultClient) overlayTLSMaterial(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return fmt.Errorf("failed to load TLS material from vault: %w", err)
	}

	// File path indirection was removed from the Vault layout; the secret
	// must carry the PEM content itself.
	for _, field := range []string{"cert_file", "key_file", "ca_file"} {
		if _, found := secret.Data[field]; found {
			want := strings.TrimSuffix(field, "_file")
			return fmt.Errorf("vault TLS secret field %q is no longer supported, store the PEM content under %q instead", field, want)
		}
	}

	loaded := 0
	for field, target := range map[string]*string{
		"cert": &cfg.Server.TLS.CertContent,
		"key":  &cfg.Server.TLS.KeyContent,
		"ca":   &cfg.Server.TLS.CAContent,
	} {
		if content, ok := secret.Data[field].(string); ok && content != "" {
			*target = content
			loaded++
		}
	}

	vc.logger.Info("TLS certificates loaded from Vault", "path", path, "fields", loaded)
	return nil
}
