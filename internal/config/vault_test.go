package config

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resumatch/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *errors.Logger {
	return errors.NewLogger(slog.LevelError)
}

// fakeVault serves the KVv2 read API for a fixed set of secrets, plus the
// health endpoint the client probes on startup.
func fakeVault(t *testing.T, secrets map[string]map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sys/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"initialized": true,
			"sealed":      false,
			"version":     "1.16.0",
		})
	})
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v1/")
		data, ok := secrets[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"errors": []string{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     data,
				"metadata": map[string]any{"version": 3},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func vaultClientFor(t *testing.T, srv *httptest.Server) *VaultClient {
	t.Helper()

	client, err := NewVaultClient(VaultConfig{
		Enabled: true,
		Address: srv.URL,
		Token:   "unit-test-token",
	}, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
	return client
}

func TestNewVaultClientDisabled(t *testing.T) {
	client, err := NewVaultClient(VaultConfig{Enabled: false}, quietLogger())
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewVaultClientRequiresToken(t *testing.T) {
	_, err := NewVaultClient(VaultConfig{
		Enabled: true,
		Address: "http://127.0.0.1:0",
	}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token was provided")
}

func TestGetSecretV2(t *testing.T) {
	srv := fakeVault(t, map[string]map[string]any{
		"secret/data/app": {"api_key": "svc-key-123"},
	})
	client := vaultClientFor(t, srv)

	secret, err := client.GetSecretV2("secret/data/app")
	require.NoError(t, err)
	assert.Equal(t, "svc-key-123", secret.Data["api_key"])
	// The version travels through the KVv2 metadata envelope as a
	// json.Number.
	assert.Equal(t, int64(3), secret.Version)
}

func TestGetSecretV2NotFound(t *testing.T) {
	srv := fakeVault(t, nil)
	client := vaultClientFor(t, srv)

	_, err := client.GetSecretV2("secret/data/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no secret found at")
}

func TestGetSecretV2NilClient(t *testing.T) {
	var client *VaultClient
	_, err := client.GetSecretV2("secret/data/app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestGetStringSecret(t *testing.T) {
	srv := fakeVault(t, map[string]map[string]any{
		"secret/data/app": {
			"api_key": "svc-key-123",
			"enabled": true,
		},
	})
	client := vaultClientFor(t, srv)

	t.Run("present", func(t *testing.T) {
		value, err := client.GetStringSecret("secret/data/app", "api_key")
		require.NoError(t, err)
		assert.Equal(t, "svc-key-123", value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := client.GetStringSecret("secret/data/app", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in secret")
	})

	t.Run("non-string value", func(t *testing.T) {
		_, err := client.GetStringSecret("secret/data/app", "enabled")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a string")
	})
}

func TestGetStringSliceSecret(t *testing.T) {
	srv := fakeVault(t, map[string]map[string]any{
		"secret/data/keys":  {"keys": "alpha, beta ,gamma"},
		"secret/data/empty": {"keys": ""},
	})
	client := vaultClientFor(t, srv)

	keys, err := client.GetStringSliceSecret("secret/data/keys", "keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, keys)

	keys, err = client.GetStringSliceSecret("secret/data/empty", "keys")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSecretVersion(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    int64
		wantErr bool
	}{
		{name: "int64", raw: int64(42), want: 42},
		{name: "float64", raw: float64(42), want: 42},
		{name: "json number", raw: json.Number("42"), want: 42},
		{name: "numeric string", raw: "42", want: 42},
		{name: "garbage string", raw: "not-a-number", wantErr: true},
		{name: "unsupported type", raw: []string{"42"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := secretVersion(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****wxyz", maskSecret("abcdefghijklwxyz"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestResolveToken(t *testing.T) {
	t.Run("direct token wins", func(t *testing.T) {
		token, err := VaultConfig{Token: "direct-token"}.resolveToken()
		require.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token file is trimmed", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := VaultConfig{TokenFile: tokenFile}.resolveToken()
		require.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("unreadable token file", func(t *testing.T) {
		_, err := VaultConfig{TokenFile: "/nonexistent/token/file"}.resolveToken()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading vault token file")
	})

	t.Run("whitespace-only token file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "empty-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("   \n  \n"), 0600))

		_, err := VaultConfig{TokenFile: tokenFile}.resolveToken()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no token was provided")
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := VaultConfig{}.resolveToken()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no token was provided")
	})
}

func TestApplyProviderKey(t *testing.T) {
	t.Run("fills global and analyze slots", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{Provider: "gemini"}}

		applyProviderKey(cfg, "gemini", "g-key")

		assert.Equal(t, "g-key", cfg.AI.APIKey)
		assert.Equal(t, "g-key", cfg.AI.Analyze.APIKey)
	})

	t.Run("explicit analyze key survives", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{
			Provider: "gemini",
			Analyze:  OperationAIConfig{APIKey: "pinned-key"},
		}}

		applyProviderKey(cfg, "gemini", "g-key")

		assert.Equal(t, "g-key", cfg.AI.APIKey)
		assert.Equal(t, "pinned-key", cfg.AI.Analyze.APIKey)
	})

	t.Run("other provider untouched", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{Provider: "gemini", APIKey: "existing"}}

		applyProviderKey(cfg, "openrouter", "or-key")

		assert.Equal(t, "existing", cfg.AI.APIKey)
		assert.Empty(t, cfg.AI.Analyze.APIKey)
	})

	t.Run("analyze pinned to other provider", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{
			Provider: "gemini",
			APIKey:   "g-key",
			Analyze:  OperationAIConfig{Provider: "openrouter"},
		}}

		applyProviderKey(cfg, "openrouter", "or-key")

		assert.Equal(t, "g-key", cfg.AI.APIKey)
		assert.Equal(t, "or-key", cfg.AI.Analyze.APIKey)
	})
}

func TestApplyVaultSecretsSkipsWhenDisabled(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{Enabled: false}}
	assert.NoError(t, ApplyVaultSecrets(cfg, quietLogger()))
}

func TestApplyVaultSecretsOverlay(t *testing.T) {
	srv := fakeVault(t, map[string]map[string]any{
		"secret/data/server": {"keys": "alpha, beta"},
		"secret/data/gemini": {"api_key": "vault-gemini-key"},
		"secret/data/tls": {
			"cert": "CERT-PEM",
			"key":  "KEY-PEM",
			"ca":   "CA-PEM",
		},
	})

	cfg := &Config{
		AI: AIConfig{Provider: "gemini", APIKey: "stale-key"},
		Server: ServerConfig{
			APIKeys: []string{"stale-server-key"},
		},
		Vault: VaultConfig{
			Enabled: true,
			Address: srv.URL,
			Token:   "unit-test-token",
			Secrets: VaultSecrets{
				APIKeys:   "secret/data/server",
				GeminiKey: "secret/data/gemini",
				TLSCerts:  "secret/data/tls",
			},
		},
	}

	require.NoError(t, ApplyVaultSecrets(cfg, quietLogger()))

	assert.Equal(t, []string{"alpha", "beta"}, cfg.Server.APIKeys)
	assert.Equal(t, "vault-gemini-key", cfg.AI.APIKey)
	assert.Equal(t, "vault-gemini-key", cfg.AI.Analyze.APIKey)
	assert.Equal(t, "CERT-PEM", cfg.Server.TLS.CertContent)
	assert.Equal(t, "KEY-PEM", cfg.Server.TLS.KeyContent)
	assert.Equal(t, "CA-PEM", cfg.Server.TLS.CAContent)
}

func TestApplyVaultSecretsRejectsCertFilePaths(t *testing.T) {
	srv := fakeVault(t, map[string]map[string]any{
		"secret/data/tls": {"cert_file": "/etc/tls/server.crt"},
	})

	cfg := &Config{
		Vault: VaultConfig{
			Enabled: true,
			Address: srv.URL,
			Token:   "unit-test-token",
			Secrets: VaultSecrets{TLSCerts: "secret/data/tls"},
		},
	}

	err := ApplyVaultSecrets(cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cert_file")
	assert.Contains(t, err.Error(), "no longer supported")
}
